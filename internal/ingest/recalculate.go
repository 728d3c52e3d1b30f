package ingest

import (
	"context"
	"fmt"

	"arena-tracker/internal/api"
	"arena-tracker/internal/constants"
	"arena-tracker/internal/domain"
)

// RecalculatePlayer resets a tracked player's rating state and replays
// their arena match history oldest-first through the normal ingestion path.
// Intended for repairing a player whose history got out of sync.
func (in *Ingestor) RecalculatePlayer(ctx context.Context, puuid string) error {
	player, err := in.store.GetByPuuid(ctx, puuid)
	if err != nil {
		return err
	}
	if player == nil || !player.TrackingEnabled {
		return fmt.Errorf("player %s not found or not tracked", puuid)
	}

	in.logger.Info().
		Str("game_name", player.GameName).
		Str("tag_line", player.TagLine).
		Msg("recalculating rating from match history")

	matchesToReplay := player.TotalGames()
	if matchesToReplay == 0 {
		matchesToReplay = constants.MatchHistoryCount
	}

	matchIDs, err := in.source.ListRecentMatchIDs(ctx, puuid, matchesToReplay, constants.MatchHistoryQueueType)
	if err != nil {
		return fmt.Errorf("failed to fetch match history for %s: %w", puuid, err)
	}
	if len(matchIDs) == 0 {
		return fmt.Errorf("no match history found for %s", puuid)
	}

	// Wipe rating state, keeping identity and tracking metadata.
	player.Pdl = domain.DefaultPdl
	player.MatchStats = domain.MatchStats{}
	player.LastPlacement = 0
	player.RankPosition = 0
	player.LastUpdate = in.now().UTC()
	if err := in.store.Update(ctx, player); err != nil {
		return fmt.Errorf("failed to reset player %s: %w", puuid, err)
	}

	reverse(matchIDs)
	processed := 0
	for _, matchID := range matchIDs {
		detail, err := in.source.GetMatchDetail(ctx, matchID)
		if err != nil || detail == nil {
			in.logger.Warn().Err(err).Str("match_id", matchID).Msg("skipping match during recalculation")
			continue
		}
		if detail.Info.GameMode != constants.TrackedGameMode {
			continue
		}
		if !participated(detail.Info.Participants, puuid) {
			continue
		}

		if _, err := in.processMatch(ctx, matchID, puuid, player.DateAdded); err != nil {
			in.logger.Error().Err(err).
				Str("match_id", matchID).
				Str("puuid", puuid).
				Msg("failed to replay match")
			continue
		}
		processed++
	}

	replayed, err := in.store.GetByPuuid(ctx, puuid)
	if err != nil || replayed == nil {
		return err
	}
	in.logger.Info().
		Str("game_name", replayed.GameName).
		Str("tag_line", replayed.TagLine).
		Int("pdl", replayed.Pdl).
		Int("processed", processed).
		Int("wins", replayed.MatchStats.Wins).
		Int("losses", replayed.MatchStats.Losses).
		Msg("recalculation finished")
	return nil
}

func participated(participants []api.Participant, puuid string) bool {
	for _, p := range participants {
		if p.Puuid == puuid {
			return true
		}
	}
	return false
}
