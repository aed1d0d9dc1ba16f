package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	FeedAPIKey       string `env:"FEED_API_KEY"`
	FeedBaseURL      string `env:"FEED_BASE_URL" envDefault:"https://api.scorefeed.dev"`
	DBPath           string `env:"DB_PATH" envDefault:"ratings.db"`
	ServerPort       string `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	SportsConfigPath string `env:"SPORTS_CONFIG" envDefault:""`
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.FeedAPIKey == "" {
		return nil, fmt.Errorf("FEED_API_KEY is required")
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("feed_base_url", cfg.FeedBaseURL).
		Str("sports_config", cfg.SportsConfigPath).
		Msg("configuration loaded")

	return cfg, nil
}

var Module = fx.Provide(Load)
