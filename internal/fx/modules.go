package fx

import (
	"sports-ratings/internal/api"
	"sports-ratings/internal/config"
	"sports-ratings/internal/database"
	"sports-ratings/internal/engine"
	"sports-ratings/internal/logger"
	"sports-ratings/internal/repository"
	"sports-ratings/internal/server"
	"sports-ratings/internal/service"
	"sports-ratings/pkg/metrics"

	"go.uber.org/fx"
)

func ProvideRatingStore(repo *repository.RatingRepository) engine.RatingStore {
	return repo
}

func ProvideStatStore(repo *repository.StatRepository) engine.StatStore {
	return repo
}

func ProvideGameFeed(client *api.ScorefeedClient) service.GameFeed {
	return client
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(config.LoadSports),
	fx.Provide(database.New),
	fx.Provide(metrics.New),
	// repos
	fx.Provide(repository.NewRatingRepository),
	fx.Provide(repository.NewStatRepository),
	fx.Provide(ProvideRatingStore),
	fx.Provide(ProvideStatStore),
	// api client
	fx.Provide(api.NewScorefeedClient),
	fx.Provide(ProvideGameFeed),
	// engine
	fx.Provide(engine.NewElo),
	fx.Provide(engine.NewAdjuster),
	// svc
	fx.Provide(service.NewRatingService),
	fx.Provide(service.NewSyncService),
	fx.Provide(service.NewMetricsService),
	// server
	fx.Provide(server.NewServer),
)
