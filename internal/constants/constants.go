package constants

import "time"

const (
	ExternalAPITimeout  = 10 * time.Second
	DatabaseTimeout     = 5 * time.Second
	RequestTimeout      = 30 * time.Second
	SyncTimeout         = 2 * time.Minute
	MetricsBatchTimeout = 2 * time.Minute
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	DBBatchSize       = 100
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	// SyncWindow bounds how far back a sync pulls completed games. Games
	// already applied are deduplicated, so overlap is harmless.
	SyncWindow = 14 * 24 * time.Hour

	FeedMaxRetries = 4
	FeedRetryBase  = 250 * time.Millisecond
)
