package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"arena-tracker/internal/constants"
	"arena-tracker/internal/domain"

	"github.com/rs/zerolog"
)

const playerColumns = `puuid, game_name, tag_line, region, server, profile_icon_id,
	pdl, rank_position, last_placement, tracking_enabled,
	wins, losses, last_processed_match_id, average_placement,
	champions_played, recent_games, last_update, date_added`

type PlayerRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPlayerRepository(sqlDB *sql.DB, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{
		db:     sqlDB,
		logger: logger,
	}
}

// GetAll returns every player known to the store, tracked or not.
func (r *PlayerRepository) GetAll(ctx context.Context) ([]domain.Player, error) {
	return r.queryPlayers(ctx, fmt.Sprintf(`SELECT %s FROM players`, playerColumns))
}

// GetAllTracked returns players with tracking enabled.
func (r *PlayerRepository) GetAllTracked(ctx context.Context) ([]domain.Player, error) {
	return r.queryPlayers(ctx,
		fmt.Sprintf(`SELECT %s FROM players WHERE tracking_enabled = 1`, playerColumns))
}

// GetRanking returns leaderboard-eligible players ordered by persisted rank.
func (r *PlayerRepository) GetRanking(ctx context.Context) ([]domain.Player, error) {
	return r.queryPlayers(ctx, fmt.Sprintf(
		`SELECT %s FROM players
		 WHERE tracking_enabled = 1 AND wins + losses > 0
		 ORDER BY rank_position ASC`, playerColumns))
}

func (r *PlayerRepository) GetByPuuid(ctx context.Context, puuid string) (*domain.Player, error) {
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM players WHERE puuid = ?`, playerColumns), puuid)

	player, err := scanPlayer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error().Err(err).Str("puuid", puuid).Msg("failed to get player")
		return nil, err
	}
	return player, nil
}

// GetManyByPuuids returns the subset of the given puuids that exist, keyed
// by puuid.
func (r *PlayerRepository) GetManyByPuuids(ctx context.Context, puuids []string) (map[string]*domain.Player, error) {
	if len(puuids) == 0 {
		return map[string]*domain.Player{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(puuids)), ",")
	args := make([]any, len(puuids))
	for i, p := range puuids {
		args[i] = p
	}

	players, err := r.queryPlayers(ctx, fmt.Sprintf(
		`SELECT %s FROM players WHERE puuid IN (%s)`, playerColumns, placeholders), args...)
	if err != nil {
		return nil, err
	}

	byPuuid := make(map[string]*domain.Player, len(players))
	for i := range players {
		byPuuid[players[i].Puuid] = &players[i]
	}
	return byPuuid, nil
}

func (r *PlayerRepository) Create(ctx context.Context, player *domain.Player) error {
	champions, recent, err := marshalStats(&player.MatchStats)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO players (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		playerColumns),
		player.Puuid, player.GameName, player.TagLine, player.Region, player.Server,
		player.ProfileIconID, player.Pdl, player.RankPosition, player.LastPlacement,
		player.TrackingEnabled, player.MatchStats.Wins, player.MatchStats.Losses,
		player.MatchStats.LastProcessedMatchID, player.MatchStats.AveragePlacement,
		champions, recent, player.LastUpdate, player.DateAdded)
	if err != nil {
		r.logger.Error().Err(err).Str("puuid", player.Puuid).Msg("failed to create player")
		return fmt.Errorf("failed to create player %s: %w", player.Puuid, err)
	}
	return nil
}

func (r *PlayerRepository) Update(ctx context.Context, player *domain.Player) error {
	champions, recent, err := marshalStats(&player.MatchStats)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE players SET
			game_name = ?, tag_line = ?, region = ?, server = ?, profile_icon_id = ?,
			pdl = ?, rank_position = ?, last_placement = ?, tracking_enabled = ?,
			wins = ?, losses = ?, last_processed_match_id = ?, average_placement = ?,
			champions_played = ?, recent_games = ?, last_update = ?
		 WHERE puuid = ?`,
		player.GameName, player.TagLine, player.Region, player.Server, player.ProfileIconID,
		player.Pdl, player.RankPosition, player.LastPlacement, player.TrackingEnabled,
		player.MatchStats.Wins, player.MatchStats.Losses,
		player.MatchStats.LastProcessedMatchID, player.MatchStats.AveragePlacement,
		champions, recent, player.LastUpdate, player.Puuid)
	if err != nil {
		r.logger.Error().Err(err).Str("puuid", player.Puuid).Msg("failed to update player")
		return fmt.Errorf("failed to update player %s: %w", player.Puuid, err)
	}
	return nil
}

// BulkUpsert writes players in chunked transactions, inserting missing rows
// and replacing existing ones.
func (r *PlayerRepository) BulkUpsert(ctx context.Context, players []domain.Player) error {
	if len(players) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO players (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(puuid) DO UPDATE SET
			game_name = excluded.game_name,
			tag_line = excluded.tag_line,
			region = excluded.region,
			server = excluded.server,
			profile_icon_id = excluded.profile_icon_id,
			pdl = excluded.pdl,
			rank_position = excluded.rank_position,
			last_placement = excluded.last_placement,
			tracking_enabled = excluded.tracking_enabled,
			wins = excluded.wins,
			losses = excluded.losses,
			last_processed_match_id = excluded.last_processed_match_id,
			average_placement = excluded.average_placement,
			champions_played = excluded.champions_played,
			recent_games = excluded.recent_games,
			last_update = excluded.last_update`, playerColumns))
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < len(players); i += constants.DBBatchSize {
		end := i + constants.DBBatchSize
		if end > len(players) {
			end = len(players)
		}

		for _, player := range players[i:end] {
			champions, recent, err := marshalStats(&player.MatchStats)
			if err != nil {
				return err
			}
			_, err = stmt.ExecContext(ctx,
				player.Puuid, player.GameName, player.TagLine, player.Region, player.Server,
				player.ProfileIconID, player.Pdl, player.RankPosition, player.LastPlacement,
				player.TrackingEnabled, player.MatchStats.Wins, player.MatchStats.Losses,
				player.MatchStats.LastProcessedMatchID, player.MatchStats.AveragePlacement,
				champions, recent, player.LastUpdate, player.DateAdded)
			if err != nil {
				return fmt.Errorf("failed to upsert player %s: %w", player.Puuid, err)
			}
		}
	}

	return tx.Commit()
}

func (r *PlayerRepository) queryPlayers(ctx context.Context, query string, args ...any) ([]domain.Player, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error().Err(err).Msg("player query failed")
		return nil, err
	}
	defer rows.Close()

	var players []domain.Player
	for rows.Next() {
		player, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, *player)
	}
	return players, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (*domain.Player, error) {
	var (
		player    domain.Player
		champions string
		recent    string
	)
	err := row.Scan(
		&player.Puuid, &player.GameName, &player.TagLine, &player.Region, &player.Server,
		&player.ProfileIconID, &player.Pdl, &player.RankPosition, &player.LastPlacement,
		&player.TrackingEnabled, &player.MatchStats.Wins, &player.MatchStats.Losses,
		&player.MatchStats.LastProcessedMatchID, &player.MatchStats.AveragePlacement,
		&champions, &recent, &player.LastUpdate, &player.DateAdded)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(champions), &player.MatchStats.ChampionsPlayed); err != nil {
		return nil, fmt.Errorf("failed to decode champions for %s: %w", player.Puuid, err)
	}
	if err := json.Unmarshal([]byte(recent), &player.MatchStats.RecentGames); err != nil {
		return nil, fmt.Errorf("failed to decode recent games for %s: %w", player.Puuid, err)
	}
	return &player, nil
}

func marshalStats(stats *domain.MatchStats) (champions string, recent string, err error) {
	c, err := json.Marshal(stats.ChampionsPlayed)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode champions: %w", err)
	}
	g, err := json.Marshal(stats.RecentGames)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode recent games: %w", err)
	}
	return string(c), string(g), nil
}
