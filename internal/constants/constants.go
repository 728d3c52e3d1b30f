package constants

import "time"

const (
	// RankingCacheTTL bounds how stale a served leaderboard snapshot may be.
	RankingCacheTTL = 5 * time.Minute

	// PlayerUpdateCooldown is the minimum gap between two ingestion runs
	// for the same player.
	PlayerUpdateCooldown = 15 * time.Minute

	// RateLimitCooldown is how long to wait before retrying a 429 from
	// the match provider.
	RateLimitCooldown = 2*time.Minute + time.Second
)

const (
	// MatchHistoryCount is the window of recent match ids fetched per player.
	MatchHistoryCount = 20

	// TrackedGameMode is the arena queue; any other mode is skipped.
	TrackedGameMode = "CHERRY"

	// MatchHistoryQueueType filters the id listing upstream.
	MatchHistoryQueueType = "normal"
)

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	DBBatchSize       = 100
)

const (
	// RecomputeBatchSize partitions tracked players within a full pass.
	RecomputeBatchSize = 20

	// UpsertFlushThreshold is roughly how many mutated players accumulate
	// before a bulk flush to the store.
	UpsertFlushThreshold = 100
)

const (
	SchedulerInitialDelay    = 30 * time.Second
	SchedulerInterval        = 4 * time.Minute
	SchedulerFailureCooldown = 30 * time.Minute
	SchedulerMaxFailures     = 3
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)
