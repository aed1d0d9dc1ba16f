package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"sports-ratings/internal/api"
	"sports-ratings/internal/config"
	"sports-ratings/internal/domain"
)

const nba = domain.Sport("basketball_nba")

func newFeedClient(baseURL string) *api.ScorefeedClient {
	return api.NewScorefeedClient(&config.Config{
		FeedAPIKey:  "test-key",
		FeedBaseURL: baseURL,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestScorefeedGames(t *testing.T) {
	ctx := context.Background()
	kickoff := time.Date(2025, 11, 2, 19, 0, 0, 0, time.UTC)

	Convey("Given a feed serving a mix of finished and live games", t, func() {
		var gotPath, gotAuth string
		var gotQuery map[string][]string

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			gotQuery = r.URL.Query()
			writeJSON(w, api.GamesResponse{
				Status:  200,
				Results: api.ResponseStats{Total: 3, Returned: 3},
				Data: []api.GameData{
					{ID: "g1", Sport: "basketball_nba", HomeTeam: "celtics", AwayTeam: "lakers", HomeScore: 112, AwayScore: 98, Completed: true, CommenceTime: kickoff},
					{ID: "g2", Sport: "basketball_nba", HomeTeam: "warriors", AwayTeam: "lakers", HomeScore: 101, AwayScore: 110, Completed: true, CommenceTime: kickoff.Add(24 * time.Hour)},
					{ID: "g3", Sport: "basketball_nba", HomeTeam: "nets", AwayTeam: "knicks", HomeScore: 54, AwayScore: 51, Completed: false, CommenceTime: kickoff.Add(48 * time.Hour)},
				},
			})
		}))
		defer ts.Close()

		client := newFeedClient(ts.URL)

		Convey("When games are fetched since a cutoff", func() {
			since := kickoff.Add(-7 * 24 * time.Hour)
			games, err := client.Games(ctx, nba, since)

			Convey("Then only completed games come back, mapped to the domain", func() {
				So(err, ShouldBeNil)
				So(len(games), ShouldEqual, 2)
				So(games[0].ID, ShouldEqual, "g1")
				So(games[0].Sport, ShouldEqual, nba)
				So(games[0].HomeTeam, ShouldEqual, "celtics")
				So(games[0].HomeScore, ShouldEqual, 112)
				So(games[0].AwayScore, ShouldEqual, 98)
				So(games[0].PlayedAt.Equal(kickoff), ShouldBeTrue)
				So(games[1].ID, ShouldEqual, "g2")
			})

			Convey("And the request carries the key and filters", func() {
				So(err, ShouldBeNil)
				So(gotPath, ShouldEqual, "/v2/games")
				So(gotAuth, ShouldEqual, "test-key")
				So(gotQuery["sport"], ShouldResemble, []string{"basketball_nba"})
				So(gotQuery["status"], ShouldResemble, []string{"final"})
				So(len(gotQuery["since"]), ShouldEqual, 1)
			})
		})
	})
}

func TestScorefeedTeamStats(t *testing.T) {
	ctx := context.Background()
	updated := time.Date(2025, 11, 5, 8, 0, 0, 0, time.UTC)

	Convey("Given a feed serving per-team metrics", t, func() {
		var gotPath string

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			writeJSON(w, api.StatsResponse{
				Status:  200,
				Results: api.ResponseStats{Total: 2, Returned: 2},
				Data: []api.TeamStatData{
					{Team: "celtics", Metric: "points_per_game", Value: 112.4, SampleSize: 5, Opponents: []string{"lakers", "lakers", "warriors", "nets", "knicks"}, UpdatedAt: updated},
					{Team: "lakers", Metric: "points_per_game", Value: 104.9, SampleSize: 4, Opponents: []string{"celtics", "celtics", "warriors", "nets"}, UpdatedAt: updated},
				},
			})
		}))
		defer ts.Close()

		client := newFeedClient(ts.URL)

		Convey("When stats are fetched", func() {
			stats, err := client.TeamStats(ctx, nba)

			Convey("Then each row maps to a domain stat with its sport filled", func() {
				So(err, ShouldBeNil)
				So(gotPath, ShouldEqual, "/v2/stats/basketball_nba")
				So(len(stats), ShouldEqual, 2)
				So(stats[0].Sport, ShouldEqual, nba)
				So(stats[0].Team, ShouldEqual, "celtics")
				So(stats[0].Value, ShouldAlmostEqual, 112.4)
				So(stats[0].SampleSize, ShouldEqual, 5)
				So(len(stats[0].Opponents), ShouldEqual, 5)
			})
		})
	})
}

func TestScorefeedErrors(t *testing.T) {
	ctx := context.Background()

	Convey("Given a feed that rejects the request outright", t, func() {
		var calls atomic.Int32

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer ts.Close()

		client := newFeedClient(ts.URL)

		Convey("When games are fetched", func() {
			_, err := client.Games(ctx, nba, time.Now())

			Convey("Then the error surfaces without retrying", func() {
				So(err, ShouldNotBeNil)
				So(calls.Load(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a feed that recovers after transient failures", t, func() {
		var calls atomic.Int32

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) <= 2 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			writeJSON(w, api.GamesResponse{Status: 200})
		}))
		defer ts.Close()

		client := newFeedClient(ts.URL)

		Convey("When games are fetched", func() {
			games, err := client.Games(ctx, nba, time.Now())

			Convey("Then the client retries through to success", func() {
				So(err, ShouldBeNil)
				So(games, ShouldBeEmpty)
				So(calls.Load(), ShouldEqual, 3)
			})
		})
	})

	Convey("Given a feed that never recovers", t, func() {
		var calls atomic.Int32

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer ts.Close()

		client := newFeedClient(ts.URL)

		Convey("When games are fetched", func() {
			_, err := client.Games(ctx, nba, time.Now())

			Convey("Then retries stop at the configured attempt limit", func() {
				So(err, ShouldNotBeNil)
				So(calls.Load(), ShouldEqual, 5)
			})
		})
	})
}

func TestScorefeedRateLimit(t *testing.T) {
	ctx := context.Background()

	Convey("Given a feed reporting rate limit headers", t, func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Ratelimit-Bucket", "games")
			w.Header().Set("X-Ratelimit-Limit", "120")
			w.Header().Set("X-Ratelimit-Remaining", "87")
			w.Header().Set("X-Ratelimit-Reset", "33")
			writeJSON(w, api.GamesResponse{Status: 200})
		}))
		defer ts.Close()

		client := newFeedClient(ts.URL)

		Convey("When a request completes", func() {
			_, err := client.Games(ctx, nba, time.Now())

			Convey("Then the tracked rate limit reflects the headers", func() {
				So(err, ShouldBeNil)
				info := client.GetRateLimitInfo()
				So(info.Bucket, ShouldEqual, "games")
				So(info.Limit, ShouldEqual, 120)
				So(info.Remaining, ShouldEqual, 87)
				So(info.Reset, ShouldEqual, 33)
			})
		})
	})
}
