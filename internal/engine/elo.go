package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sports-ratings/internal/config"
	"sports-ratings/internal/domain"
)

// Elo maintains per-team skill ratings, one record per (sport, team).
// Updates within a sport are serialized behind a per-sport lock; different
// sports never contend.
type Elo struct {
	store  RatingStore
	sports *config.SportsConfig
	logger zerolog.Logger
	locks  map[domain.Sport]*sync.Mutex
}

func NewElo(store RatingStore, sports *config.SportsConfig, logger zerolog.Logger) *Elo {
	keys := sports.SportKeys()
	locks := make(map[domain.Sport]*sync.Mutex, len(keys))
	for _, sport := range keys {
		locks[sport] = &sync.Mutex{}
	}
	return &Elo{
		store:  store,
		sports: sports,
		logger: logger,
		locks:  locks,
	}
}

// GameResult carries the post-game ratings of both sides. Applied is false
// when the game had already been processed and nothing changed.
type GameResult struct {
	HomeRating float64
	AwayRating float64
	Applied    bool
}

// ReplayStats breaks down how a batch was consumed.
type ReplayStats struct {
	Applied    int
	Duplicates int
	Invalid    int
}

// Rating returns the team's current record, materializing the default on
// first sight.
func (e *Elo) Rating(ctx context.Context, sport domain.Sport, team string) (domain.RatingRecord, error) {
	if _, err := e.sports.Settings(sport); err != nil {
		return domain.RatingRecord{}, err
	}

	rec, found, err := e.store.Get(ctx, sport, team)
	if err != nil {
		return domain.RatingRecord{}, fmt.Errorf("failed to load rating for %s: %w", team, err)
	}
	if found {
		return rec, nil
	}

	lock := e.locks[sport]
	lock.Lock()
	defer lock.Unlock()

	// re-check under the sport lock so a game applied in the meantime is
	// not clobbered by the default
	rec, found, err = e.store.Get(ctx, sport, team)
	if err != nil {
		return domain.RatingRecord{}, fmt.Errorf("failed to load rating for %s: %w", team, err)
	}
	if found {
		return rec, nil
	}

	rec = e.defaultRecord(sport, team)
	if err := e.store.Put(ctx, rec); err != nil {
		return domain.RatingRecord{}, fmt.Errorf("failed to store default rating for %s: %w", team, err)
	}
	e.logger.Debug().
		Str("sport", sport.String()).
		Str("team", team).
		Float64("rating", rec.Rating).
		Msg("default rating created")
	return rec, nil
}

// ApplyGame runs one game through the rating update. Re-delivery of an
// already processed game returns the stored ratings unchanged.
func (e *Elo) ApplyGame(ctx context.Context, sport domain.Sport, game domain.Game) (GameResult, error) {
	settings, err := e.sports.Settings(sport)
	if err != nil {
		return GameResult{}, err
	}
	if err := validateGame(sport, game); err != nil {
		return GameResult{}, err
	}

	lock := e.locks[sport]
	lock.Lock()
	defer lock.Unlock()

	return e.applyLocked(ctx, sport, settings, game)
}

// Replay applies a game batch in nondecreasing timestamp order. Invalid
// games are logged and skipped; already processed games count as duplicates.
// Resubmitting the same batch any number of times leaves ratings unchanged.
func (e *Elo) Replay(ctx context.Context, sport domain.Sport, games []domain.Game) (ReplayStats, error) {
	settings, err := e.sports.Settings(sport)
	if err != nil {
		return ReplayStats{}, err
	}

	ordered := make([]domain.Game, len(games))
	copy(ordered, games)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].PlayedAt.Before(ordered[j].PlayedAt)
	})

	lock := e.locks[sport]
	lock.Lock()
	defer lock.Unlock()

	var stats ReplayStats
	for _, game := range ordered {
		if err := validateGame(sport, game); err != nil {
			e.logger.Error().
				Err(err).
				Str("sport", sport.String()).
				Str("game_id", game.ID).
				Msg("rejecting invalid game")
			stats.Invalid++
			continue
		}
		result, err := e.applyLocked(ctx, sport, settings, game)
		if err != nil {
			return stats, fmt.Errorf("failed to apply game %s: %w", game.ID, err)
		}
		if result.Applied {
			stats.Applied++
		} else {
			stats.Duplicates++
		}
	}

	e.logger.Info().
		Str("sport", sport.String()).
		Int("games", len(ordered)).
		Int("applied", stats.Applied).
		Int("duplicates", stats.Duplicates).
		Int("invalid", stats.Invalid).
		Msg("replay complete")
	return stats, nil
}

func (e *Elo) applyLocked(ctx context.Context, sport domain.Sport, settings config.SportSettings, game domain.Game) (GameResult, error) {
	processed, err := e.store.WasProcessed(ctx, sport, game.ID)
	if err != nil {
		return GameResult{}, fmt.Errorf("failed to check game %s: %w", game.ID, err)
	}
	if processed {
		return e.currentResult(ctx, sport, game)
	}

	home, err := e.loadOrDefault(ctx, sport, game.HomeTeam)
	if err != nil {
		return GameResult{}, err
	}
	away, err := e.loadOrDefault(ctx, sport, game.AwayTeam)
	if err != nil {
		return GameResult{}, err
	}

	expectedHome := expectedScore(home.Rating+settings.HomeAdvantage, away.Rating)
	outcomeHome := game.HomeOutcome()

	k := settings.KFactor
	if settings.MarginOfVictory {
		k *= movMultiplier(game, home.Rating, away.Rating)
	}

	// one symmetric delta keeps the update zero-sum
	delta := k * (outcomeHome - expectedHome)
	now := time.Now()
	home = advance(home, home.Rating+delta, game.ID, now)
	away = advance(away, away.Rating-delta, game.ID, now)

	applied, err := e.store.RecordGame(ctx, sport, game.ID, home, away)
	if err != nil {
		return GameResult{}, fmt.Errorf("failed to persist game %s: %w", game.ID, err)
	}
	if !applied {
		return e.currentResult(ctx, sport, game)
	}

	e.logger.Info().
		Str("sport", sport.String()).
		Str("game_id", game.ID).
		Str("home", home.Team).
		Str("away", away.Team).
		Float64("home_rating", home.Rating).
		Float64("away_rating", away.Rating).
		Float64("delta", delta).
		Msg("game applied")

	return GameResult{HomeRating: home.Rating, AwayRating: away.Rating, Applied: true}, nil
}

func (e *Elo) currentResult(ctx context.Context, sport domain.Sport, game domain.Game) (GameResult, error) {
	home, err := e.loadOrDefault(ctx, sport, game.HomeTeam)
	if err != nil {
		return GameResult{}, err
	}
	away, err := e.loadOrDefault(ctx, sport, game.AwayTeam)
	if err != nil {
		return GameResult{}, err
	}
	return GameResult{HomeRating: home.Rating, AwayRating: away.Rating, Applied: false}, nil
}

func (e *Elo) loadOrDefault(ctx context.Context, sport domain.Sport, team string) (domain.RatingRecord, error) {
	rec, found, err := e.store.Get(ctx, sport, team)
	if err != nil {
		return domain.RatingRecord{}, fmt.Errorf("failed to load rating for %s: %w", team, err)
	}
	if !found {
		rec = e.defaultRecord(sport, team)
	}
	return rec, nil
}

func (e *Elo) defaultRecord(sport domain.Sport, team string) domain.RatingRecord {
	now := time.Now()
	return domain.RatingRecord{
		Sport:       sport,
		Team:        team,
		Rating:      e.sports.DefaultRating,
		GamesPlayed: 0,
		LastUpdated: now,
		CreatedAt:   now,
	}
}

func validateGame(sport domain.Sport, game domain.Game) error {
	switch {
	case game.ID == "":
		return &domain.InvalidGameError{GameID: game.ID, Reason: "missing game identifier"}
	case game.Sport != sport:
		return &domain.InvalidGameError{GameID: game.ID, Reason: fmt.Sprintf("game sport %q does not match %q", game.Sport, sport)}
	case game.HomeTeam == "" || game.AwayTeam == "":
		return &domain.InvalidGameError{GameID: game.ID, Reason: "missing team name"}
	case game.HomeTeam == game.AwayTeam:
		return &domain.InvalidGameError{GameID: game.ID, Reason: "home and away teams are identical"}
	case game.HomeScore < 0 || game.AwayScore < 0:
		return &domain.InvalidGameError{GameID: game.ID, Reason: "negative score"}
	}
	return nil
}

func advance(rec domain.RatingRecord, rating float64, gameID string, now time.Time) domain.RatingRecord {
	rec.Rating = rating
	rec.GamesPlayed++
	rec.LastUpdated = now
	rec.LastProcessedGameID = gameID
	return rec
}

// expectedScore is the logistic Elo expectation for a side rated r against
// an opponent rated opp.
func expectedScore(r, opp float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (opp-r)/400.0))
}

// movMultiplier scales K by the victory margin, damped when the higher
// rated side wins big. The same multiplier applies to both teams, so the
// update stays zero-sum.
func movMultiplier(game domain.Game, homeRating, awayRating float64) float64 {
	margin := game.VictoryMargin()
	if margin < 1 {
		margin = 1
	}

	winnerDiff := 0.0
	switch {
	case game.HomeScore > game.AwayScore:
		winnerDiff = homeRating - awayRating
	case game.AwayScore > game.HomeScore:
		winnerDiff = awayRating - homeRating
	}

	// the damping term must stay positive even for absurd rating gaps
	denom := winnerDiff*0.001 + 2.2
	if denom < 0.2 {
		denom = 0.2
	}
	return math.Log(float64(margin)+1.0) * (2.2 / denom)
}
