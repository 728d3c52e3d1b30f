package ingest

import (
	"context"

	"arena-tracker/internal/api"
	"arena-tracker/internal/domain"
)

// PlayerStore is the slice of the player repository the ingestor needs.
type PlayerStore interface {
	GetByPuuid(ctx context.Context, puuid string) (*domain.Player, error)
	GetManyByPuuids(ctx context.Context, puuids []string) (map[string]*domain.Player, error)
	Create(ctx context.Context, player *domain.Player) error
	Update(ctx context.Context, player *domain.Player) error
}

// MatchSource provides match history and detail for a player. Implemented
// by api.RiotClient.
type MatchSource interface {
	ListRecentMatchIDs(ctx context.Context, puuid string, count int, queueType string) ([]string, error)
	GetMatchDetail(ctx context.Context, matchID string) (*api.MatchResponse, error)
	GetTierForPlayer(ctx context.Context, puuid, server string) (string, error)
}
