package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"sports-ratings/internal/config"
	"sports-ratings/internal/domain"
)

// Adjuster rescales raw team statistics by opponent strength. The output is
// a pure function of the rating records and raw stats at computation time,
// so recomputing is always safe.
type Adjuster struct {
	ratings RatingStore
	stats   StatStore
	sports  *config.SportsConfig
	logger  zerolog.Logger
}

func NewAdjuster(ratings RatingStore, stats StatStore, sports *config.SportsConfig, logger zerolog.Logger) *Adjuster {
	return &Adjuster{
		ratings: ratings,
		stats:   stats,
		sports:  sports,
		logger:  logger,
	}
}

// AdjustSport recomputes the sport's adjusted metrics wholesale and returns
// how many were written. A sport without raw statistics yields
// InsufficientDataError, which batch callers treat as a zero count.
func (a *Adjuster) AdjustSport(ctx context.Context, sport domain.Sport) (int, error) {
	settings, err := a.sports.Settings(sport)
	if err != nil {
		return 0, err
	}

	stats, err := a.stats.TeamStats(ctx, sport)
	if err != nil {
		return 0, fmt.Errorf("failed to load team stats: %w", err)
	}
	if len(stats) == 0 {
		return 0, &domain.InsufficientDataError{Sport: sport.String()}
	}

	records, err := a.ratings.ListBySport(ctx, sport)
	if err != nil {
		return 0, fmt.Errorf("failed to load ratings: %w", err)
	}

	ratingByTeam := make(map[string]float64, len(records))
	leagueAvg := a.sports.DefaultRating
	if len(records) > 0 {
		sum := 0.0
		for _, rec := range records {
			ratingByTeam[rec.Team] = rec.Rating
			sum += rec.Rating
		}
		leagueAvg = sum / float64(len(records))
	}

	teams, byTeam := groupStatsByTeam(stats)

	count := 0
	now := time.Now()
	for _, team := range teams {
		teamStats := byTeam[team]
		factor := a.strengthFactor(teamStats, ratingByTeam, leagueAvg)

		var set []domain.AdjustedMetric
		for _, stat := range teamStats {
			if !settings.TracksMetric(stat.Metric) {
				a.logger.Debug().
					Str("sport", sport.String()).
					Str("team", team).
					Str("metric", stat.Metric).
					Msg("metric not tracked, skipping")
				continue
			}

			applied := factor
			if stat.SampleSize < a.sports.MinSampleSize {
				// too few games to trust the schedule signal
				applied = 1
			}

			set = append(set, domain.AdjustedMetric{
				Sport:      sport,
				Team:       team,
				Metric:     stat.Metric,
				Value:      stat.Value * applied,
				Factor:     applied,
				SampleSize: stat.SampleSize,
				ComputedAt: now,
			})
		}
		if len(set) == 0 {
			continue
		}

		if err := a.stats.ReplaceAdjusted(ctx, sport, team, set); err != nil {
			return count, fmt.Errorf("failed to persist adjusted metrics for %s: %w", team, err)
		}
		count += len(set)
	}

	a.logger.Info().
		Str("sport", sport.String()).
		Int("teams", len(teams)).
		Int("metrics", count).
		Float64("league_avg", leagueAvg).
		Msg("opponent-adjusted metrics computed")
	return count, nil
}

// strengthFactor is league average over the mean rating of the opponents
// faced, clamped to the configured bounds. Opponents without a record count
// at the default rating; no opponent information at all leaves the raw
// value untouched.
func (a *Adjuster) strengthFactor(teamStats []domain.TeamStat, ratingByTeam map[string]float64, leagueAvg float64) float64 {
	sum := 0.0
	n := 0
	for _, stat := range teamStats {
		for _, opponent := range stat.Opponents {
			rating, ok := ratingByTeam[opponent]
			if !ok {
				rating = a.sports.DefaultRating
			}
			sum += rating
			n++
		}
	}
	if n == 0 {
		return 1
	}
	avgOpp := sum / float64(n)
	if avgOpp <= 0 {
		return 1
	}
	return a.sports.Clamp(leagueAvg / avgOpp)
}

func groupStatsByTeam(stats []domain.TeamStat) ([]string, map[string][]domain.TeamStat) {
	byTeam := make(map[string][]domain.TeamStat)
	teams := make([]string, 0, len(stats))
	for _, stat := range stats {
		if _, ok := byTeam[stat.Team]; !ok {
			teams = append(teams, stat.Team)
		}
		byTeam[stat.Team] = append(byTeam[stat.Team], stat)
	}
	return teams, byTeam
}
