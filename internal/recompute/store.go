package recompute

import (
	"context"
	"sync"

	"arena-tracker/internal/constants"
	"arena-tracker/internal/domain"

	"github.com/rs/zerolog"
)

// batchingStore sits between the ingestor and the real store during a bulk
// pass. Updates are staged in memory and flushed as bulk upserts so a pass
// over hundreds of players does not issue one write per rating change.
// Reads see staged writes first, so the pass observes its own mutations.
type batchingStore struct {
	mu        sync.Mutex
	store     PlayerStore
	pending   map[string]domain.Player
	threshold int
	logger    zerolog.Logger
}

func newBatchingStore(store PlayerStore, logger zerolog.Logger) *batchingStore {
	return &batchingStore{
		store:     store,
		pending:   make(map[string]domain.Player),
		threshold: constants.UpsertFlushThreshold,
		logger:    logger,
	}
}

func (b *batchingStore) GetByPuuid(ctx context.Context, puuid string) (*domain.Player, error) {
	b.mu.Lock()
	if p, ok := b.pending[puuid]; ok {
		b.mu.Unlock()
		clone := p
		return &clone, nil
	}
	b.mu.Unlock()
	return b.store.GetByPuuid(ctx, puuid)
}

func (b *batchingStore) GetManyByPuuids(ctx context.Context, puuids []string) (map[string]*domain.Player, error) {
	found, err := b.store.GetManyByPuuids(ctx, puuids)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, puuid := range puuids {
		if p, ok := b.pending[puuid]; ok {
			clone := p
			found[puuid] = &clone
		}
	}
	return found, nil
}

// Create writes through immediately: a newly discovered participant must be
// visible to concurrent workers resolving the same match.
func (b *batchingStore) Create(ctx context.Context, player *domain.Player) error {
	return b.store.Create(ctx, player)
}

func (b *batchingStore) Update(ctx context.Context, player *domain.Player) error {
	b.mu.Lock()
	b.pending[player.Puuid] = *player
	shouldFlush := len(b.pending) >= b.threshold
	b.mu.Unlock()

	if shouldFlush {
		return b.Flush(ctx)
	}
	return nil
}

// Flush persists all staged updates in one bulk upsert.
func (b *batchingStore) Flush(ctx context.Context) error {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return nil
	}
	players := make([]domain.Player, 0, len(b.pending))
	for _, p := range b.pending {
		players = append(players, p)
	}
	b.pending = make(map[string]domain.Player)
	b.mu.Unlock()

	if err := b.store.BulkUpsert(ctx, players); err != nil {
		b.logger.Error().Err(err).Int("players", len(players)).Msg("bulk flush failed")
		return err
	}
	b.logger.Debug().Int("players", len(players)).Msg("flushed staged rating updates")
	return nil
}
