package fx

import (
	"arena-tracker/internal/api"
	"arena-tracker/internal/cache"
	"arena-tracker/internal/config"
	"arena-tracker/internal/database"
	"arena-tracker/internal/ingest"
	"arena-tracker/internal/logger"
	"arena-tracker/internal/recompute"
	"arena-tracker/internal/repository"
	"arena-tracker/internal/scheduler"
	"arena-tracker/internal/server"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// Interface bindings: fx resolves concrete types, so the adapters below
// hand the repository and client to consumers that accept interfaces.

func ProvideCache(repo *repository.PlayerRepository, log zerolog.Logger) *cache.RankingCache {
	return cache.NewRankingCache(repo, log)
}

func ProvideIngestor(repo *repository.PlayerRepository, client *api.RiotClient, log zerolog.Logger) *ingest.Ingestor {
	return ingest.NewIngestor(repo, client, log)
}

func ProvideCoordinator(repo *repository.PlayerRepository, c *cache.RankingCache, ing *ingest.Ingestor, log zerolog.Logger) *recompute.Coordinator {
	return recompute.NewCoordinator(repo, c, ing, log)
}

func ProvideScheduler(coord *recompute.Coordinator, cfg *config.Config, log zerolog.Logger) *scheduler.Scheduler {
	return scheduler.New(coord, cfg, log)
}

func ProvideServer(c *cache.RankingCache, ing *ingest.Ingestor, log zerolog.Logger) *server.Server {
	return server.NewServer(c, ing, log)
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewPlayerRepository),
	// api client
	fx.Provide(api.NewRiotClient),
	// core
	fx.Provide(ProvideCache),
	fx.Provide(ProvideIngestor),
	fx.Provide(ProvideCoordinator),
	fx.Provide(ProvideScheduler),
	// server
	fx.Provide(ProvideServer),
)
