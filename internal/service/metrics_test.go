package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"

	"sports-ratings/internal/config"
	"sports-ratings/internal/domain"
	"sports-ratings/internal/engine"
	"sports-ratings/internal/repository"
	"sports-ratings/internal/service"
	"sports-ratings/pkg/metrics"
)

// faultyStatStore fails stat reads for one sport and delegates the rest.
type faultyStatStore struct {
	*repository.MemoryStore
	failSport domain.Sport
}

func (f *faultyStatStore) TeamStats(ctx context.Context, sport domain.Sport) ([]domain.TeamStat, error) {
	if sport == f.failSport {
		return nil, errors.New("storage offline")
	}
	return f.MemoryStore.TeamStats(ctx, sport)
}

func newMetricsService(stats engine.StatStore, store *repository.MemoryStore) *service.MetricsService {
	sports := config.DefaultSports()
	adjuster := engine.NewAdjuster(store, stats, sports, zerolog.Nop())
	return service.NewMetricsService(adjuster, stats, sports, metrics.New(), zerolog.Nop())
}

func seedLeague(ctx context.Context, store *repository.MemoryStore) {
	So(store.UpsertTeamStats(ctx, []domain.TeamStat{
		{Sport: nba, Team: "celtics", Metric: "points_per_game", Value: 110, SampleSize: 4, Opponents: []string{"lakers", "lakers", "lakers", "lakers"}},
		{Sport: nba, Team: "lakers", Metric: "points_per_game", Value: 105, SampleSize: 4, Opponents: []string{"celtics", "celtics", "celtics", "celtics"}},
		{Sport: epl, Team: "arsenal", Metric: "goals_per_game", Value: 2.1, SampleSize: 5, Opponents: []string{"chelsea", "chelsea", "spurs", "spurs", "spurs"}},
	}), ShouldBeNil)
}

func TestCalculateAll(t *testing.T) {
	ctx := context.Background()

	Convey("Given stats stored for some sports and none for others", t, func() {
		store := repository.NewMemoryStore()
		svc := newMetricsService(store, store)
		seedLeague(ctx, store)

		Convey("When the batch runs", func() {
			result := svc.CalculateAll(ctx)

			Convey("Then every configured sport appears in the counts", func() {
				So(len(result.Counts), ShouldEqual, 4)
				So(result.Counts, ShouldContainKey, "basketball_nba")
				So(result.Counts, ShouldContainKey, "icehockey_nhl")
			})

			Convey("And empty sports contribute zero without failing the batch", func() {
				So(result.Counts["basketball_nba"], ShouldEqual, 2)
				So(result.Counts["soccer_epl"], ShouldEqual, 1)
				So(result.Counts["icehockey_nhl"], ShouldEqual, 0)
				So(result.Counts["americanfootball_nfl"], ShouldEqual, 0)
				So(result.Total, ShouldEqual, 3)
			})

			Convey("And the adjusted metrics are queryable afterwards", func() {
				stored, err := store.AdjustedBySport(ctx, nba)
				So(err, ShouldBeNil)
				So(len(stored), ShouldEqual, 2)
			})
		})
	})

	Convey("Given a stat store that fails for one sport", t, func() {
		store := repository.NewMemoryStore()
		faulty := &faultyStatStore{MemoryStore: store, failSport: nba}
		svc := newMetricsService(faulty, store)
		seedLeague(ctx, store)

		Convey("When the batch runs", func() {
			result := svc.CalculateAll(ctx)

			Convey("Then the failing sport reports zero and the rest proceed", func() {
				So(result.Counts["basketball_nba"], ShouldEqual, 0)
				So(result.Counts["soccer_epl"], ShouldEqual, 1)
				So(result.Total, ShouldEqual, 1)
			})
		})
	})
}

func TestCalculateSport(t *testing.T) {
	ctx := context.Background()

	Convey("Given stats stored for one sport", t, func() {
		store := repository.NewMemoryStore()
		svc := newMetricsService(store, store)
		seedLeague(ctx, store)

		Convey("When that sport is recomputed by alias", func() {
			count, err := svc.CalculateSport(ctx, "NBA")

			Convey("Then the alias resolves and metrics land", func() {
				So(err, ShouldBeNil)
				So(count, ShouldEqual, 2)
			})
		})

		Convey("When a sport without stats is recomputed", func() {
			_, err := svc.CalculateSport(ctx, "icehockey_nhl")

			Convey("Then it fails with InsufficientDataError", func() {
				var insufficient *domain.InsufficientDataError
				So(errors.As(err, &insufficient), ShouldBeTrue)
			})
		})

		Convey("When an unknown sport is recomputed", func() {
			_, err := svc.CalculateSport(ctx, "cricket")

			Convey("Then it fails with UnsupportedSportError", func() {
				var unsupported *domain.UnsupportedSportError
				So(errors.As(err, &unsupported), ShouldBeTrue)
			})
		})
	})
}

func TestAdjustedBySport(t *testing.T) {
	ctx := context.Background()

	Convey("Given a computed league", t, func() {
		store := repository.NewMemoryStore()
		svc := newMetricsService(store, store)
		seedLeague(ctx, store)
		svc.CalculateAll(ctx)

		Convey("When stored metrics are fetched by alias", func() {
			stored, err := svc.AdjustedBySport(ctx, "basketball")

			Convey("Then the rows come back", func() {
				So(err, ShouldBeNil)
				So(len(stored), ShouldEqual, 2)
			})
		})

		Convey("When an unknown sport is fetched", func() {
			_, err := svc.AdjustedBySport(ctx, "cricket")

			Convey("Then it fails with UnsupportedSportError", func() {
				var unsupported *domain.UnsupportedSportError
				So(errors.As(err, &unsupported), ShouldBeTrue)
			})
		})
	})
}
