package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sports-ratings/internal/domain"

	"github.com/rs/zerolog"
)

const ratingColumns = `sport, team, rating, games_played, last_updated, last_processed_game_id, created_at`

const upsertRatingSQL = `
INSERT INTO ratings (sport, team, rating, games_played, last_updated, last_processed_game_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (sport, team) DO UPDATE SET
    rating = excluded.rating,
    games_played = excluded.games_played,
    last_updated = excluded.last_updated,
    last_processed_game_id = excluded.last_processed_game_id`

type RatingRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRatingRepository(sqlDB *sql.DB, logger zerolog.Logger) *RatingRepository {
	return &RatingRepository{
		db:     sqlDB,
		logger: logger,
	}
}

func (r *RatingRepository) Get(ctx context.Context, sport domain.Sport, team string) (domain.RatingRecord, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ratingColumns+` FROM ratings WHERE sport = ? AND team = ?`,
		sport.String(), team)

	rec, err := scanRating(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RatingRecord{}, false, nil
	}
	if err != nil {
		r.logger.Error().Err(err).Str("sport", sport.String()).Str("team", team).Msg("failed to get rating")
		return domain.RatingRecord{}, false, fmt.Errorf("failed to get rating: %w", err)
	}
	return rec, true, nil
}

func (r *RatingRepository) Put(ctx context.Context, rec domain.RatingRecord) error {
	_, err := r.db.ExecContext(ctx, upsertRatingSQL,
		rec.Sport.String(), rec.Team, rec.Rating, rec.GamesPlayed,
		rec.LastUpdated, rec.LastProcessedGameID, rec.CreatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("sport", rec.Sport.String()).Str("team", rec.Team).Msg("failed to upsert rating")
		return fmt.Errorf("failed to upsert rating for %s: %w", rec.Team, err)
	}
	return nil
}

// RecordGame writes both updated records and marks the game processed in one
// transaction. It reports false without writing when the game was already
// processed, which makes replays safe under concurrent delivery.
func (r *RatingRepository) RecordGame(ctx context.Context, sport domain.Sport, gameID string, home, away domain.RatingRecord) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM processed_games WHERE sport = ? AND game_id = ?`,
		sport.String(), gameID).Scan(&one)
	if err == nil {
		r.logger.Debug().Str("sport", sport.String()).Str("game_id", gameID).Msg("game already processed, skipping")
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("failed to check processed game: %w", err)
	}

	for _, rec := range []domain.RatingRecord{home, away} {
		_, err = tx.ExecContext(ctx, upsertRatingSQL,
			rec.Sport.String(), rec.Team, rec.Rating, rec.GamesPlayed,
			rec.LastUpdated, rec.LastProcessedGameID, rec.CreatedAt)
		if err != nil {
			return false, fmt.Errorf("failed to upsert rating for %s: %w", rec.Team, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO processed_games (sport, game_id, processed_at) VALUES (?, ?, ?)`,
		sport.String(), gameID, home.LastUpdated)
	if err != nil {
		return false, fmt.Errorf("failed to mark game processed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit game update: %w", err)
	}
	return true, nil
}

func (r *RatingRepository) WasProcessed(ctx context.Context, sport domain.Sport, gameID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_games WHERE sport = ? AND game_id = ?`,
		sport.String(), gameID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check processed game: %w", err)
	}
	return true, nil
}

func (r *RatingRepository) ListBySport(ctx context.Context, sport domain.Sport) ([]domain.RatingRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ratingColumns+` FROM ratings WHERE sport = ? ORDER BY team`,
		sport.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	defer rows.Close()

	var records []domain.RatingRecord
	for rows.Next() {
		rec, err := scanRating(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ratings: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRating(row rowScanner) (domain.RatingRecord, error) {
	var rec domain.RatingRecord
	var sportKey string
	err := row.Scan(&sportKey, &rec.Team, &rec.Rating, &rec.GamesPlayed,
		&rec.LastUpdated, &rec.LastProcessedGameID, &rec.CreatedAt)
	if err != nil {
		return domain.RatingRecord{}, err
	}
	rec.Sport = domain.Sport(sportKey)
	return rec, nil
}
