package recompute

import (
	"context"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"arena-tracker/internal/constants"
	"arena-tracker/internal/domain"
	"arena-tracker/internal/ingest"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// PlayerStore is the persistence surface a bulk pass needs: everything the
// ingestor uses, plus enumeration and bulk writes.
type PlayerStore interface {
	ingest.PlayerStore
	GetAll(ctx context.Context) ([]domain.Player, error)
	GetAllTracked(ctx context.Context) ([]domain.Player, error)
	BulkUpsert(ctx context.Context, players []domain.Player) error
}

// SnapshotCache is the slice of the ranking cache the coordinator touches.
type SnapshotCache interface {
	All(ctx context.Context, kind domain.SnapshotKind) ([]domain.Player, error)
	RefreshAsync(kind domain.SnapshotKind)
}

// Stats summarizes one full recompute pass.
type Stats struct {
	Processed int
	Failed    int
}

// Coordinator drives a full ingestion pass over every tracked player:
// bounded fan-out per batch, batched persistence, wholesale rank
// reassignment, then a cache refresh.
type Coordinator struct {
	store    PlayerStore
	cache    SnapshotCache
	ingestor *ingest.Ingestor
	logger   zerolog.Logger
}

func NewCoordinator(store PlayerStore, cache SnapshotCache, ingestor *ingest.Ingestor, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		store:    store,
		cache:    cache,
		ingestor: ingestor,
		logger:   logger,
	}
}

// RunFullPass ingests new matches for every tracked player and reassigns
// rank positions. A single player's failure is counted and skipped, never
// aborting the pass.
func (c *Coordinator) RunFullPass(ctx context.Context) (Stats, error) {
	passID, _ := gonanoid.New()
	started := time.Now()
	log := c.logger.With().Str("pass_id", passID).Logger()

	players, err := c.loadTracked(ctx, log)
	if err != nil {
		return Stats{}, err
	}
	if len(players) == 0 {
		log.Info().Msg("no tracked players, skipping pass")
		return Stats{}, nil
	}

	batch := newBatchingStore(c.store, log)
	ingestor := c.ingestor.WithStore(batch)
	sem := semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0)))

	var processed, failed atomic.Int64
	for start := 0; start < len(players); start += constants.RecomputeBatchSize {
		end := start + constants.RecomputeBatchSize
		if end > len(players) {
			end = len(players)
		}

		g := new(errgroup.Group)
		for i := start; i < end; i++ {
			player := players[i]
			if err := sem.Acquire(ctx, 1); err != nil {
				return Stats{}, err
			}
			g.Go(func() error {
				defer sem.Release(1)
				if ingestor.ProcessPlayer(ctx, &player) {
					processed.Add(1)
				} else {
					failed.Add(1)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Stats{}, err
		}
	}

	if err := batch.Flush(ctx); err != nil {
		return Stats{}, err
	}

	if err := c.reassignRanks(ctx, log); err != nil {
		return Stats{}, err
	}

	c.cache.RefreshAsync(domain.SnapshotLeaderboard)
	c.cache.RefreshAsync(domain.SnapshotAllTracked)

	stats := Stats{Processed: int(processed.Load()), Failed: int(failed.Load())}
	log.Info().
		Int("processed", stats.Processed).
		Int("failed", stats.Failed).
		Dur("elapsed", time.Since(started)).
		Msg("full recompute pass finished")
	return stats, nil
}

// loadTracked prefers the cache's all-tracked snapshot and falls back to a
// direct store scan when the cache cannot serve.
func (c *Coordinator) loadTracked(ctx context.Context, log zerolog.Logger) ([]domain.Player, error) {
	players, err := c.cache.All(ctx, domain.SnapshotAllTracked)
	if err == nil {
		return players, nil
	}
	log.Warn().Err(err).Msg("cache unavailable, loading tracked players from store")
	return c.store.GetAllTracked(ctx)
}

// reassignRanks rebuilds rank positions from scratch: qualifying players
// get a dense 1..N by rating descending, everyone else drops to 0. Only
// players whose position actually changed are written back.
func (c *Coordinator) reassignRanks(ctx context.Context, log zerolog.Logger) error {
	players, err := c.store.GetAll(ctx)
	if err != nil {
		return err
	}

	qualifying := make([]*domain.Player, 0, len(players))
	for i := range players {
		if players[i].QualifiesForLeaderboard() {
			qualifying = append(qualifying, &players[i])
		}
	}
	sort.Slice(qualifying, func(i, j int) bool {
		return qualifying[i].Pdl > qualifying[j].Pdl
	})

	next := make(map[string]int, len(qualifying))
	for i, p := range qualifying {
		next[p.Puuid] = i + 1
	}

	var changed []domain.Player
	for i := range players {
		rank := next[players[i].Puuid]
		if players[i].RankPosition != rank {
			players[i].RankPosition = rank
			changed = append(changed, players[i])
		}
	}
	if len(changed) == 0 {
		return nil
	}

	if err := c.store.BulkUpsert(ctx, changed); err != nil {
		return err
	}
	log.Info().
		Int("ranked", len(qualifying)).
		Int("updated", len(changed)).
		Msg("rank positions reassigned")
	return nil
}
