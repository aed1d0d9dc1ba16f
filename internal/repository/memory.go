package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sports-ratings/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// MemoryStore keeps ratings and stats in process memory. It mirrors the
// SQLite repositories closely enough to stand in for them in tests and
// ephemeral runs.
type MemoryStore struct {
	mu        sync.RWMutex
	ratings   map[string]domain.RatingRecord
	processed map[string]struct{}
	stats     map[string]domain.TeamStat
	adjusted  map[string][]domain.AdjustedMetric
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ratings:   make(map[string]domain.RatingRecord),
		processed: make(map[string]struct{}),
		stats:     make(map[string]domain.TeamStat),
		adjusted:  make(map[string][]domain.AdjustedMetric),
	}
}

func memKey(parts ...string) string {
	key := parts[0]
	for _, p := range parts[1:] {
		key += "|" + p
	}
	return key
}

func (s *MemoryStore) Get(_ context.Context, sport domain.Sport, team string) (domain.RatingRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.ratings[memKey(sport.String(), team)]
	return rec, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, rec domain.RatingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(rec)
	return nil
}

func (s *MemoryStore) putLocked(rec domain.RatingRecord) {
	key := memKey(rec.Sport.String(), rec.Team)
	if existing, ok := s.ratings[key]; ok {
		rec.CreatedAt = existing.CreatedAt
	}
	s.ratings[key] = rec
}

func (s *MemoryStore) RecordGame(_ context.Context, sport domain.Sport, gameID string, home, away domain.RatingRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gameKey := memKey(sport.String(), gameID)
	if _, ok := s.processed[gameKey]; ok {
		return false, nil
	}
	s.putLocked(home)
	s.putLocked(away)
	s.processed[gameKey] = struct{}{}
	return true, nil
}

func (s *MemoryStore) WasProcessed(_ context.Context, sport domain.Sport, gameID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.processed[memKey(sport.String(), gameID)]
	return ok, nil
}

func (s *MemoryStore) ListBySport(_ context.Context, sport domain.Sport) ([]domain.RatingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []domain.RatingRecord
	for _, rec := range s.ratings {
		if rec.Sport == sport {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Team < records[j].Team })
	return records, nil
}

func (s *MemoryStore) UpsertTeamStats(_ context.Context, stats []domain.TeamStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stat := range stats {
		stat.Opponents = append([]string(nil), stat.Opponents...)
		if stat.UpdatedAt.IsZero() {
			stat.UpdatedAt = time.Now()
		}
		s.stats[memKey(stat.Sport.String(), stat.Team, stat.Metric)] = stat
	}
	return nil
}

func (s *MemoryStore) TeamStats(_ context.Context, sport domain.Sport) ([]domain.TeamStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats []domain.TeamStat
	for _, stat := range s.stats {
		if stat.Sport != sport {
			continue
		}
		stat.Opponents = append([]string(nil), stat.Opponents...)
		stats = append(stats, stat)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Team != stats[j].Team {
			return stats[i].Team < stats[j].Team
		}
		return stats[i].Metric < stats[j].Metric
	})
	return stats, nil
}

func (s *MemoryStore) ReplaceAdjusted(_ context.Context, sport domain.Sport, team string, metrics []domain.AdjustedMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	replacement := make([]domain.AdjustedMetric, 0, len(metrics))
	for _, metric := range metrics {
		if metric.ID == "" {
			id, err := gonanoid.New()
			if err != nil {
				return fmt.Errorf("failed to generate nanoid: %w", err)
			}
			metric.ID = id
		}
		if metric.ComputedAt.IsZero() {
			metric.ComputedAt = time.Now()
		}
		replacement = append(replacement, metric)
	}
	s.adjusted[memKey(sport.String(), team)] = replacement
	return nil
}

func (s *MemoryStore) AdjustedBySport(_ context.Context, sport domain.Sport) ([]domain.AdjustedMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var metrics []domain.AdjustedMetric
	for _, set := range s.adjusted {
		for _, metric := range set {
			if metric.Sport == sport {
				metrics = append(metrics, metric)
			}
		}
	}
	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].Team != metrics[j].Team {
			return metrics[i].Team < metrics[j].Team
		}
		return metrics[i].Metric < metrics[j].Metric
	})
	return metrics, nil
}
