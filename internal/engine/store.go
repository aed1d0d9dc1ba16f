package engine

import (
	"context"

	"sports-ratings/internal/domain"
)

// RatingStore is the durable (sport, team) -> RatingRecord mapping the
// engines read and write through. Implementations must make RecordGame
// atomic: both records and the processed mark land together or not at all.
type RatingStore interface {
	Get(ctx context.Context, sport domain.Sport, team string) (domain.RatingRecord, bool, error)
	Put(ctx context.Context, rec domain.RatingRecord) error
	RecordGame(ctx context.Context, sport domain.Sport, gameID string, home, away domain.RatingRecord) (bool, error)
	WasProcessed(ctx context.Context, sport domain.Sport, gameID string) (bool, error)
	ListBySport(ctx context.Context, sport domain.Sport) ([]domain.RatingRecord, error)
}

// StatStore persists raw team statistics and the adjusted metrics derived
// from them.
type StatStore interface {
	UpsertTeamStats(ctx context.Context, stats []domain.TeamStat) error
	TeamStats(ctx context.Context, sport domain.Sport) ([]domain.TeamStat, error)
	ReplaceAdjusted(ctx context.Context, sport domain.Sport, team string, metrics []domain.AdjustedMetric) error
	AdjustedBySport(ctx context.Context, sport domain.Sport) ([]domain.AdjustedMetric, error)
}
