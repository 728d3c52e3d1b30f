package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"arena-tracker/internal/constants"
	"arena-tracker/internal/domain"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// PlayerSource is the slice of the player repository the cache reads from.
type PlayerSource interface {
	GetRanking(ctx context.Context) ([]domain.Player, error)
	GetAllTracked(ctx context.Context) ([]domain.Player, error)
	GetByPuuid(ctx context.Context, puuid string) (*domain.Player, error)
}

type snapshot struct {
	players []domain.Player
	takenAt time.Time
}

// RankingCache keeps two time-boxed leaderboard snapshots in memory so
// reads never wait on the store while a recompute pass is running. The
// mutex is held only for pointer swaps, never across a store call.
type RankingCache struct {
	store  PlayerSource
	logger zerolog.Logger
	ttl    time.Duration
	now    func() time.Time

	mu        sync.RWMutex
	snapshots [2]snapshot
	byPuuid   map[string]domain.Player

	group      singleflight.Group
	refreshing [2]atomic.Bool
}

func NewRankingCache(store PlayerSource, logger zerolog.Logger) *RankingCache {
	return &RankingCache{
		store:   store,
		logger:  logger,
		ttl:     constants.RankingCacheTTL,
		now:     time.Now,
		byPuuid: make(map[string]domain.Player),
	}
}

// GetPage returns one page (1-based) of the requested snapshot, refreshing
// synchronously only when the snapshot is empty or expired.
func (c *RankingCache) GetPage(ctx context.Context, kind domain.SnapshotKind, page, pageSize int) ([]domain.Player, error) {
	if err := c.ensureFresh(ctx, kind); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	players := c.snapshots[kind].players
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= len(players) {
		return nil, nil
	}
	end := start + pageSize
	if end > len(players) {
		end = len(players)
	}
	return append([]domain.Player(nil), players[start:end]...), nil
}

// All returns a copy of the full snapshot. Used by the recompute pass to
// enumerate tracked players without a store scan.
func (c *RankingCache) All(ctx context.Context, kind domain.SnapshotKind) ([]domain.Player, error) {
	if err := c.ensureFresh(ctx, kind); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Player(nil), c.snapshots[kind].players...), nil
}

// GetTotal returns the number of players in the requested snapshot.
func (c *RankingCache) GetTotal(ctx context.Context, kind domain.SnapshotKind) (int, error) {
	if err := c.ensureFresh(ctx, kind); err != nil {
		return 0, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.snapshots[kind].players), nil
}

// GetByPuuid serves a player from the in-memory index, falling back to the
// store and backfilling the index on a miss.
func (c *RankingCache) GetByPuuid(ctx context.Context, puuid string) (*domain.Player, error) {
	c.mu.RLock()
	player, ok := c.byPuuid[puuid]
	c.mu.RUnlock()
	if ok {
		clone := player
		return &clone, nil
	}

	fetched, err := c.store.GetByPuuid(ctx, puuid)
	if err != nil || fetched == nil {
		return nil, err
	}

	c.mu.Lock()
	c.byPuuid[puuid] = *fetched
	c.mu.Unlock()
	return fetched, nil
}

// Refresh reloads one snapshot from the store. Concurrent calls for the
// same snapshot collapse into a single store scan.
func (c *RankingCache) Refresh(ctx context.Context, kind domain.SnapshotKind) error {
	_, err, _ := c.group.Do(kind.String(), func() (any, error) {
		var (
			players []domain.Player
			err     error
		)
		switch kind {
		case domain.SnapshotLeaderboard:
			players, err = c.store.GetRanking(ctx)
		default:
			players, err = c.store.GetAllTracked(ctx)
		}
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.snapshots[kind] = snapshot{players: players, takenAt: c.now()}
		for i := range players {
			c.byPuuid[players[i].Puuid] = players[i]
		}
		c.mu.Unlock()

		c.logger.Debug().
			Stringer("snapshot", kind).
			Int("players", len(players)).
			Msg("ranking cache refreshed")
		return nil, nil
	})
	return err
}

// RefreshAsync triggers a background refresh. A trigger that arrives while
// a refresh for the same snapshot is still in flight is dropped, not
// queued: the in-flight one will produce an equally fresh result.
func (c *RankingCache) RefreshAsync(kind domain.SnapshotKind) {
	if !c.refreshing[kind].CompareAndSwap(false, true) {
		c.logger.Debug().Stringer("snapshot", kind).Msg("refresh already in flight, dropping trigger")
		return
	}

	go func() {
		defer c.refreshing[kind].Store(false)
		if err := c.Refresh(context.Background(), kind); err != nil {
			c.logger.Error().Err(err).Stringer("snapshot", kind).Msg("background cache refresh failed")
		}
	}()
}

// ensureFresh blocks on a synchronous refresh only when serving from the
// current snapshot would be wrong: never filled yet, or past its TTL.
// A failed refresh over a non-empty snapshot falls back to stale data.
func (c *RankingCache) ensureFresh(ctx context.Context, kind domain.SnapshotKind) error {
	c.mu.RLock()
	snap := c.snapshots[kind]
	c.mu.RUnlock()

	fresh := len(snap.players) > 0 && c.now().Sub(snap.takenAt) <= c.ttl
	if fresh {
		return nil
	}

	if err := c.Refresh(ctx, kind); err != nil {
		if len(snap.players) > 0 {
			c.logger.Warn().Err(err).Stringer("snapshot", kind).Msg("refresh failed, serving stale snapshot")
			return nil
		}
		return err
	}
	return nil
}
