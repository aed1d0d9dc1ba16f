package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"sports-ratings/internal/config"
	"sports-ratings/internal/constants"
	"sports-ratings/internal/domain"
	"sports-ratings/internal/engine"
	"sports-ratings/pkg/metrics"
)

type RatingService struct {
	elo     *engine.Elo
	store   engine.RatingStore
	sports  *config.SportsConfig
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewRatingService(elo *engine.Elo, store engine.RatingStore, sports *config.SportsConfig, m *metrics.Metrics, logger zerolog.Logger) *RatingService {
	return &RatingService{elo: elo, store: store, sports: sports, metrics: m, logger: logger}
}

// QueryRatings resolves the sport, aliases included, and returns one record
// per requested team. Teams never seen before come back at the default
// rating and are persisted on the way.
func (s *RatingService) QueryRatings(ctx context.Context, sportName string, teams []string) ([]domain.RatingRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	sport, err := s.sports.Resolve(sportName)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("sport", sport.String()).Int("teams", len(teams)).Msg("querying ratings")

	records := make([]domain.RatingRecord, 0, len(teams))
	for _, team := range teams {
		rec, err := s.elo.Rating(ctx, sport, team)
		if err != nil {
			s.logger.Error().Err(err).Str("sport", sport.String()).Str("team", team).Msg("failed to resolve rating")
			return nil, fmt.Errorf("failed to resolve rating for %s: %w", team, err)
		}
		records = append(records, rec)
		s.metrics.RatingQueries.Inc()
	}
	return records, nil
}

// RatingsBySport lists every stored record for a sport, sorted by team.
func (s *RatingService) RatingsBySport(ctx context.Context, sportName string) ([]domain.RatingRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	sport, err := s.sports.Resolve(sportName)
	if err != nil {
		return nil, err
	}

	records, err := s.store.ListBySport(ctx, sport)
	if err != nil {
		s.logger.Error().Err(err).Str("sport", sport.String()).Msg("failed to list ratings")
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}

	s.logger.Debug().Str("sport", sport.String()).Int("count", len(records)).Msg("listed ratings")
	return records, nil
}
