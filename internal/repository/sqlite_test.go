package repository_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"

	"sports-ratings/internal/config"
	"sports-ratings/internal/database"
	"sports-ratings/internal/domain"
	"sports-ratings/internal/repository"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{DBPath: filepath.Join(t.TempDir(), "ratings.db")}
	db, err := database.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRatingRepositorySQLite(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 11, 2, 19, 0, 0, 0, time.UTC)

	Convey("Given a migrated SQLite database", t, func() {
		db := newTestDB(t)
		repo := repository.NewRatingRepository(db, zerolog.Nop())

		Convey("When a rating is upserted and read back", func() {
			So(repo.Put(ctx, record(nba, "celtics", 1512.5, 3, now)), ShouldBeNil)
			got, found, err := repo.Get(ctx, nba, "celtics")

			Convey("Then the row survives the round trip", func() {
				So(err, ShouldBeNil)
				So(found, ShouldBeTrue)
				So(got.Sport, ShouldEqual, nba)
				So(got.Rating, ShouldAlmostEqual, 1512.5)
				So(got.GamesPlayed, ShouldEqual, 3)
				So(got.LastUpdated, ShouldHappenWithin, time.Second, now)
			})
		})

		Convey("When an absent team is looked up", func() {
			_, found, err := repo.Get(ctx, nba, "nobody")

			Convey("Then it reports not found without error", func() {
				So(err, ShouldBeNil)
				So(found, ShouldBeFalse)
			})
		})

		Convey("When the same key is upserted twice", func() {
			first := record(nba, "celtics", 1500, 0, now.Add(-2*time.Hour))
			So(repo.Put(ctx, first), ShouldBeNil)

			second := record(nba, "celtics", 1510, 1, now)
			second.LastProcessedGameID = "g1"
			So(repo.Put(ctx, second), ShouldBeNil)

			got, _, err := repo.Get(ctx, nba, "celtics")

			Convey("Then the update wins but creation time is kept", func() {
				So(err, ShouldBeNil)
				So(got.Rating, ShouldAlmostEqual, 1510)
				So(got.LastProcessedGameID, ShouldEqual, "g1")
				So(got.CreatedAt, ShouldHappenWithin, time.Second, first.CreatedAt)
			})
		})

		Convey("When a game is recorded atomically", func() {
			home := record(nba, "celtics", 1510, 1, now)
			home.LastProcessedGameID = "g1"
			away := record(nba, "lakers", 1490, 1, now)
			away.LastProcessedGameID = "g1"

			applied, err := repo.RecordGame(ctx, nba, "g1", home, away)

			Convey("Then both rows and the processed mark land together", func() {
				So(err, ShouldBeNil)
				So(applied, ShouldBeTrue)

				seen, err := repo.WasProcessed(ctx, nba, "g1")
				So(err, ShouldBeNil)
				So(seen, ShouldBeTrue)

				records, err := repo.ListBySport(ctx, nba)
				So(err, ShouldBeNil)
				So(len(records), ShouldEqual, 2)
			})

			Convey("And a replayed delivery is refused", func() {
				So(err, ShouldBeNil)

				bumped := record(nba, "celtics", 1999, 9, now)
				again, err := repo.RecordGame(ctx, nba, "g1", bumped, away)
				So(err, ShouldBeNil)
				So(again, ShouldBeFalse)

				got, _, err := repo.Get(ctx, nba, "celtics")
				So(err, ShouldBeNil)
				So(got.Rating, ShouldAlmostEqual, 1510)
			})
		})

		Convey("When several sports share the table", func() {
			So(repo.Put(ctx, record(nba, "warriors", 1490, 1, now)), ShouldBeNil)
			So(repo.Put(ctx, record(nba, "celtics", 1510, 1, now)), ShouldBeNil)
			So(repo.Put(ctx, record(nhl, "bruins", 1502, 1, now)), ShouldBeNil)

			records, err := repo.ListBySport(ctx, nba)

			Convey("Then listing filters by sport and sorts by team", func() {
				So(err, ShouldBeNil)
				So(len(records), ShouldEqual, 2)
				So(records[0].Team, ShouldEqual, "celtics")
				So(records[1].Team, ShouldEqual, "warriors")
			})
		})
	})
}

func TestStatRepositorySQLite(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 11, 2, 19, 0, 0, 0, time.UTC)

	Convey("Given a migrated SQLite database", t, func() {
		db := newTestDB(t)
		repo := repository.NewStatRepository(db, zerolog.Nop())

		Convey("When team stats are upserted and read back", func() {
			stats := []domain.TeamStat{
				{Sport: nba, Team: "lakers", Metric: "points_per_game", Value: 105, SampleSize: 3, Opponents: []string{"celtics", "warriors", "celtics"}, UpdatedAt: now},
				{Sport: nba, Team: "celtics", Metric: "points_per_game", Value: 110, SampleSize: 4, Opponents: []string{"lakers"}, UpdatedAt: now},
			}
			So(repo.UpsertTeamStats(ctx, stats), ShouldBeNil)

			got, err := repo.TeamStats(ctx, nba)

			Convey("Then rows come back sorted with opponents intact", func() {
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 2)
				So(got[0].Team, ShouldEqual, "celtics")
				So(got[1].Team, ShouldEqual, "lakers")
				So(got[1].Opponents, ShouldResemble, []string{"celtics", "warriors", "celtics"})
			})

			Convey("And a second upsert replaces the row", func() {
				So(err, ShouldBeNil)
				So(repo.UpsertTeamStats(ctx, []domain.TeamStat{
					{Sport: nba, Team: "lakers", Metric: "points_per_game", Value: 107, SampleSize: 4, Opponents: []string{"celtics"}, UpdatedAt: now},
				}), ShouldBeNil)

				again, err := repo.TeamStats(ctx, nba)
				So(err, ShouldBeNil)
				So(len(again), ShouldEqual, 2)
				So(again[1].Value, ShouldAlmostEqual, 107)
			})
		})

		Convey("When a stat arrives with no opponents recorded", func() {
			So(repo.UpsertTeamStats(ctx, []domain.TeamStat{
				{Sport: nba, Team: "celtics", Metric: "points_per_game", Value: 110, SampleSize: 0, UpdatedAt: now},
			}), ShouldBeNil)

			got, err := repo.TeamStats(ctx, nba)

			Convey("Then the opponents column round-trips as empty", func() {
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 1)
				So(len(got[0].Opponents), ShouldEqual, 0)
			})
		})

		Convey("When an empty batch is upserted", func() {
			So(repo.UpsertTeamStats(ctx, nil), ShouldBeNil)

			Convey("Then nothing is written", func() {
				got, err := repo.TeamStats(ctx, nba)
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 0)
			})
		})

		Convey("When adjusted metrics are replaced twice for a team", func() {
			first := []domain.AdjustedMetric{
				{Sport: nba, Team: "celtics", Metric: "points_per_game", Value: 115.8, Factor: 1.05, SampleSize: 4},
				{Sport: nba, Team: "celtics", Metric: "points_allowed_per_game", Value: 97.2, Factor: 0.96, SampleSize: 4},
			}
			So(repo.ReplaceAdjusted(ctx, nba, "celtics", first), ShouldBeNil)

			second := []domain.AdjustedMetric{
				{Sport: nba, Team: "celtics", Metric: "points_per_game", Value: 112.1, Factor: 1.02, SampleSize: 5},
			}
			So(repo.ReplaceAdjusted(ctx, nba, "celtics", second), ShouldBeNil)

			got, err := repo.AdjustedBySport(ctx, nba)

			Convey("Then only the latest batch remains", func() {
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 1)
				So(got[0].Value, ShouldAlmostEqual, 112.1)
				So(got[0].ID, ShouldNotBeEmpty)
				So(got[0].ComputedAt.IsZero(), ShouldBeFalse)
			})
		})

		Convey("When two teams hold adjusted metrics", func() {
			So(repo.ReplaceAdjusted(ctx, nba, "celtics", []domain.AdjustedMetric{
				{Sport: nba, Team: "celtics", Metric: "points_per_game", Value: 115.8, Factor: 1.05, SampleSize: 4},
			}), ShouldBeNil)
			So(repo.ReplaceAdjusted(ctx, nba, "lakers", []domain.AdjustedMetric{
				{Sport: nba, Team: "lakers", Metric: "points_per_game", Value: 103.4, Factor: 0.98, SampleSize: 3},
			}), ShouldBeNil)

			got, err := repo.AdjustedBySport(ctx, nba)

			Convey("Then replacing one team leaves the other alone", func() {
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 2)
				So(got[0].Team, ShouldEqual, "celtics")
				So(got[1].Team, ShouldEqual, "lakers")
			})
		})
	})
}

func TestDatabaseReopen(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 11, 2, 19, 0, 0, 0, time.UTC)

	Convey("Given a database that was written and closed", t, func() {
		cfg := &config.Config{DBPath: filepath.Join(t.TempDir(), "ratings.db")}

		db, err := database.New(cfg, zerolog.Nop())
		So(err, ShouldBeNil)
		repo := repository.NewRatingRepository(db, zerolog.Nop())
		So(repo.Put(ctx, record(nba, "celtics", 1510, 1, now)), ShouldBeNil)
		So(db.Close(), ShouldBeNil)

		Convey("When it is opened a second time", func() {
			reopened, err := database.New(cfg, zerolog.Nop())
			So(err, ShouldBeNil)
			defer reopened.Close()

			Convey("Then migrations are idempotent and data persists", func() {
				repo := repository.NewRatingRepository(reopened, zerolog.Nop())
				got, found, err := repo.Get(ctx, nba, "celtics")
				So(err, ShouldBeNil)
				So(found, ShouldBeTrue)
				So(got.Rating, ShouldAlmostEqual, 1510)
			})
		})
	})
}
