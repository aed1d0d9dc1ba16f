package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sports-ratings/internal/config"
	"sports-ratings/internal/constants"
	"sports-ratings/internal/domain"
	"sports-ratings/internal/engine"
	"sports-ratings/pkg/metrics"
)

// GameFeed is the slice of the provider client the sync path consumes.
type GameFeed interface {
	Games(ctx context.Context, sport domain.Sport, since time.Time) ([]domain.Game, error)
	TeamStats(ctx context.Context, sport domain.Sport) ([]domain.TeamStat, error)
}

type SyncService struct {
	feed    GameFeed
	elo     *engine.Elo
	stats   engine.StatStore
	sports  *config.SportsConfig
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewSyncService(feed GameFeed, elo *engine.Elo, stats engine.StatStore, sports *config.SportsConfig, m *metrics.Metrics, logger zerolog.Logger) *SyncService {
	return &SyncService{feed: feed, elo: elo, stats: stats, sports: sports, metrics: m, logger: logger}
}

// SyncResult reports one sport's sync outcome. Err is set instead of
// returned so a batch can carry per-sport failures.
type SyncResult struct {
	Sport        domain.Sport
	GamesApplied int
	Duplicates   int
	Invalid      int
	StatsStored  int
	Err          error
}

// SyncSport pulls the recent window of completed games plus current team
// stats from the feed and folds them into the store.
func (s *SyncService) SyncSport(ctx context.Context, sportName string) (SyncResult, error) {
	sport, err := s.sports.Resolve(sportName)
	if err != nil {
		return SyncResult{}, err
	}

	result := s.syncSport(ctx, sport)
	return result, result.Err
}

// SyncAll fans out one sync per configured sport. A sport that fails never
// blocks the others; its failure travels inside its result.
func (s *SyncService) SyncAll(ctx context.Context) []SyncResult {
	sportKeys := s.sports.SportKeys()
	results := make([]SyncResult, len(sportKeys))

	g := new(errgroup.Group)
	for i, sport := range sportKeys {
		i, sport := i, sport // per-iteration copies; go.mod pins go 1.21 loop semantics
		g.Go(func() error {
			results[i] = s.syncSport(ctx, sport)
			return nil
		})
	}
	// goroutines never return errors, Wait only synchronizes
	_ = g.Wait()

	failed := 0
	for _, result := range results {
		if result.Err != nil {
			failed++
		}
	}
	s.logger.Info().
		Int("sports", len(results)).
		Int("failed", failed).
		Msg("sync sweep complete")
	return results
}

func (s *SyncService) syncSport(ctx context.Context, sport domain.Sport) SyncResult {
	ctx, cancel := context.WithTimeout(ctx, constants.SyncTimeout)
	defer cancel()

	result := SyncResult{Sport: sport}
	since := time.Now().Add(-constants.SyncWindow)

	s.logger.Info().Str("sport", sport.String()).Time("since", since).Msg("syncing sport")

	games, err := s.feed.Games(ctx, sport, since)
	if err != nil {
		return s.failSync(result, "sync", fmt.Errorf("failed to fetch games: %w", err))
	}

	replay, err := s.elo.Replay(ctx, sport, games)
	if err != nil {
		return s.failSync(result, "sync", fmt.Errorf("failed to replay games: %w", err))
	}
	result.GamesApplied = replay.Applied
	result.Duplicates = replay.Duplicates
	result.Invalid = replay.Invalid

	s.metrics.GamesApplied.WithLabelValues(sport.String()).Add(float64(replay.Applied))
	s.metrics.GamesDuplicate.WithLabelValues(sport.String()).Add(float64(replay.Duplicates))
	s.metrics.GamesRejected.WithLabelValues(sport.String()).Add(float64(replay.Invalid))

	teamStats, err := s.feed.TeamStats(ctx, sport)
	if err != nil {
		return s.failSync(result, "sync", fmt.Errorf("failed to fetch team stats: %w", err))
	}
	if err := s.stats.UpsertTeamStats(ctx, teamStats); err != nil {
		return s.failSync(result, "sync", fmt.Errorf("failed to store team stats: %w", err))
	}
	result.StatsStored = len(teamStats)

	s.metrics.SyncRuns.WithLabelValues(sport.String(), "success").Inc()
	s.logger.Info().
		Str("sport", sport.String()).
		Int("applied", result.GamesApplied).
		Int("duplicates", result.Duplicates).
		Int("invalid", result.Invalid).
		Int("stats", result.StatsStored).
		Msg("sport synced")
	return result
}

func (s *SyncService) failSync(result SyncResult, operation string, err error) SyncResult {
	result.Err = err
	s.logger.Error().Err(err).Str("sport", result.Sport.String()).Msg("sport sync failed")
	s.metrics.SyncRuns.WithLabelValues(result.Sport.String(), "failure").Inc()
	s.metrics.SportFailures.WithLabelValues(result.Sport.String(), operation).Inc()
	return result
}
