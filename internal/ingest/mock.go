package ingest

import (
	"context"
	"sync"

	"arena-tracker/internal/api"
	"arena-tracker/internal/domain"
)

// MockStore is an in-memory PlayerStore for tests. Reads hand out copies so
// callers mutate nothing until they write back, like a real store.
type MockStore struct {
	mu      sync.Mutex
	players map[string]domain.Player

	CreateCalls int
	UpdateCalls int
}

func NewMockStore() *MockStore {
	return &MockStore{players: make(map[string]domain.Player)}
}

func (s *MockStore) Seed(players ...*domain.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range players {
		s.players[p.Puuid] = *p
	}
}

func (s *MockStore) GetByPuuid(_ context.Context, puuid string) (*domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.players[puuid]; ok {
		clone := p
		return &clone, nil
	}
	return nil, nil
}

func (s *MockStore) GetManyByPuuids(_ context.Context, puuids []string) (map[string]*domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := make(map[string]*domain.Player)
	for _, puuid := range puuids {
		if p, ok := s.players[puuid]; ok {
			clone := p
			found[puuid] = &clone
		}
	}
	return found, nil
}

func (s *MockStore) Create(_ context.Context, player *domain.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CreateCalls++
	s.players[player.Puuid] = *player
	return nil
}

func (s *MockStore) Update(_ context.Context, player *domain.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpdateCalls++
	s.players[player.Puuid] = *player
	return nil
}

// MockSource is a scripted MatchSource for tests.
type MockSource struct {
	mu sync.Mutex

	MatchIDs    map[string][]string // per puuid, newest first
	ListErr     error
	Details     map[string]*api.MatchResponse
	Tiers       map[string]string // per puuid; missing means UNRANKED
	DetailCalls []string
	TierCalls   []string
}

func NewMockSource() *MockSource {
	return &MockSource{
		MatchIDs: make(map[string][]string),
		Details:  make(map[string]*api.MatchResponse),
		Tiers:    make(map[string]string),
	}
}

func (s *MockSource) ListRecentMatchIDs(_ context.Context, puuid string, count int, _ string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	ids := s.MatchIDs[puuid]
	if len(ids) > count {
		ids = ids[:count]
	}
	return append([]string(nil), ids...), nil
}

func (s *MockSource) GetMatchDetail(_ context.Context, matchID string) (*api.MatchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DetailCalls = append(s.DetailCalls, matchID)
	if detail, ok := s.Details[matchID]; ok {
		return detail, nil
	}
	return nil, api.ErrNotFound
}

func (s *MockSource) GetTierForPlayer(_ context.Context, puuid, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TierCalls = append(s.TierCalls, puuid)
	if tier, ok := s.Tiers[puuid]; ok {
		return tier, nil
	}
	return "UNRANKED", nil
}
