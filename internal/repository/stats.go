package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"sports-ratings/internal/constants"
	"sports-ratings/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

const upsertTeamStatSQL = `
INSERT INTO team_stats (sport, team, metric, value, sample_size, opponents, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (sport, team, metric) DO UPDATE SET
    value = excluded.value,
    sample_size = excluded.sample_size,
    opponents = excluded.opponents,
    updated_at = excluded.updated_at`

type StatRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewStatRepository(sqlDB *sql.DB, logger zerolog.Logger) *StatRepository {
	return &StatRepository{
		db:     sqlDB,
		logger: logger,
	}
}

func (r *StatRepository) UpsertTeamStats(ctx context.Context, stats []domain.TeamStat) error {
	if len(stats) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := 0; i < len(stats); i += constants.DBBatchSize {
		end := i + constants.DBBatchSize
		if end > len(stats) {
			end = len(stats)
		}

		for _, stat := range stats[i:end] {
			opponents := stat.Opponents
			if opponents == nil {
				opponents = []string{}
			}
			encoded, err := json.Marshal(opponents)
			if err != nil {
				return fmt.Errorf("failed to encode opponents for %s: %w", stat.Team, err)
			}

			updatedAt := stat.UpdatedAt
			if updatedAt.IsZero() {
				updatedAt = time.Now()
			}

			_, err = tx.ExecContext(ctx, upsertTeamStatSQL,
				stat.Sport.String(), stat.Team, stat.Metric, stat.Value,
				stat.SampleSize, string(encoded), updatedAt)
			if err != nil {
				return fmt.Errorf("failed to upsert stat %s/%s: %w", stat.Team, stat.Metric, err)
			}
		}
	}

	return tx.Commit()
}

func (r *StatRepository) TeamStats(ctx context.Context, sport domain.Sport) ([]domain.TeamStat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT sport, team, metric, value, sample_size, opponents, updated_at
		 FROM team_stats WHERE sport = ? ORDER BY team, metric`,
		sport.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list team stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.TeamStat
	for rows.Next() {
		var stat domain.TeamStat
		var sportKey, opponents string
		err := rows.Scan(&sportKey, &stat.Team, &stat.Metric, &stat.Value,
			&stat.SampleSize, &opponents, &stat.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team stat: %w", err)
		}
		stat.Sport = domain.Sport(sportKey)
		if err := json.Unmarshal([]byte(opponents), &stat.Opponents); err != nil {
			return nil, fmt.Errorf("failed to decode opponents for %s: %w", stat.Team, err)
		}
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate team stats: %w", err)
	}
	return stats, nil
}

// ReplaceAdjusted swaps out a team's adjusted metric set wholesale.
func (r *StatRepository) ReplaceAdjusted(ctx context.Context, sport domain.Sport, team string, metrics []domain.AdjustedMetric) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM adjusted_metrics WHERE sport = ? AND team = ?`,
		sport.String(), team)
	if err != nil {
		return fmt.Errorf("failed to clear adjusted metrics for %s: %w", team, err)
	}

	for _, metric := range metrics {
		id := metric.ID
		if id == "" {
			id, err = gonanoid.New()
			if err != nil {
				return fmt.Errorf("failed to generate nanoid: %w", err)
			}
		}

		computedAt := metric.ComputedAt
		if computedAt.IsZero() {
			computedAt = time.Now()
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO adjusted_metrics (id, sport, team, metric, value, factor, sample_size, computed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, metric.Sport.String(), metric.Team, metric.Metric,
			metric.Value, metric.Factor, metric.SampleSize, computedAt)
		if err != nil {
			return fmt.Errorf("failed to insert adjusted metric %s/%s: %w", team, metric.Metric, err)
		}
	}

	return tx.Commit()
}

func (r *StatRepository) AdjustedBySport(ctx context.Context, sport domain.Sport) ([]domain.AdjustedMetric, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, sport, team, metric, value, factor, sample_size, computed_at
		 FROM adjusted_metrics WHERE sport = ? ORDER BY team, metric`,
		sport.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list adjusted metrics: %w", err)
	}
	defer rows.Close()

	var metrics []domain.AdjustedMetric
	for rows.Next() {
		var metric domain.AdjustedMetric
		var sportKey string
		err := rows.Scan(&metric.ID, &sportKey, &metric.Team, &metric.Metric,
			&metric.Value, &metric.Factor, &metric.SampleSize, &metric.ComputedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan adjusted metric: %w", err)
		}
		metric.Sport = domain.Sport(sportKey)
		metrics = append(metrics, metric)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate adjusted metrics: %w", err)
	}
	return metrics, nil
}
