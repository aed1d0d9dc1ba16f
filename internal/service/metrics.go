package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sports-ratings/internal/config"
	"sports-ratings/internal/constants"
	"sports-ratings/internal/domain"
	"sports-ratings/internal/engine"
	"sports-ratings/pkg/metrics"
)

type MetricsService struct {
	adjuster *engine.Adjuster
	stats    engine.StatStore
	sports   *config.SportsConfig
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewMetricsService(adjuster *engine.Adjuster, stats engine.StatStore, sports *config.SportsConfig, m *metrics.Metrics, logger zerolog.Logger) *MetricsService {
	return &MetricsService{adjuster: adjuster, stats: stats, sports: sports, metrics: m, logger: logger}
}

// BatchResult summarizes one adjustment sweep across every configured sport.
type BatchResult struct {
	Counts map[string]int
	Total  int
}

// CalculateAll recomputes opponent-adjusted metrics for every configured
// sport concurrently. A sport with no stored stats contributes zero, and a
// sport that fails never blocks the rest.
func (s *MetricsService) CalculateAll(ctx context.Context) BatchResult {
	ctx, cancel := context.WithTimeout(ctx, constants.MetricsBatchTimeout)
	defer cancel()

	sportKeys := s.sports.SportKeys()
	counts := make([]int, len(sportKeys))

	g := new(errgroup.Group)
	for i, sport := range sportKeys {
		i, sport := i, sport // per-iteration copies; go.mod pins go 1.21 loop semantics
		g.Go(func() error {
			count, err := s.adjuster.AdjustSport(ctx, sport)
			if err != nil {
				var insufficient *domain.InsufficientDataError
				if errors.As(err, &insufficient) {
					s.logger.Warn().Str("sport", sport.String()).Msg("no stats stored, nothing to adjust")
				} else {
					s.logger.Error().Err(err).Str("sport", sport.String()).Msg("failed to adjust sport")
					s.metrics.SportFailures.WithLabelValues(sport.String(), "adjust").Inc()
				}
				return nil
			}
			counts[i] = count
			s.metrics.AdjustedWritten.WithLabelValues(sport.String()).Add(float64(count))
			return nil
		})
	}
	// goroutines never return errors, Wait only synchronizes
	_ = g.Wait()

	result := BatchResult{Counts: make(map[string]int, len(sportKeys))}
	for i, sport := range sportKeys {
		result.Counts[sport.String()] = counts[i]
		result.Total += counts[i]
	}

	s.logger.Info().Int("total", result.Total).Msg("metrics batch complete")
	return result
}

// CalculateSport recomputes a single sport on demand.
func (s *MetricsService) CalculateSport(ctx context.Context, sportName string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.MetricsBatchTimeout)
	defer cancel()

	sport, err := s.sports.Resolve(sportName)
	if err != nil {
		return 0, err
	}

	count, err := s.adjuster.AdjustSport(ctx, sport)
	if err != nil {
		return 0, err
	}

	s.metrics.AdjustedWritten.WithLabelValues(sport.String()).Add(float64(count))
	s.logger.Info().Str("sport", sport.String()).Int("count", count).Msg("sport adjusted")
	return count, nil
}

// AdjustedBySport returns the stored adjusted metrics for one sport.
func (s *MetricsService) AdjustedBySport(ctx context.Context, sportName string) ([]domain.AdjustedMetric, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	sport, err := s.sports.Resolve(sportName)
	if err != nil {
		return nil, err
	}

	stored, err := s.stats.AdjustedBySport(ctx, sport)
	if err != nil {
		s.logger.Error().Err(err).Str("sport", sport.String()).Msg("failed to load adjusted metrics")
		return nil, fmt.Errorf("failed to load adjusted metrics: %w", err)
	}
	return stored, nil
}
