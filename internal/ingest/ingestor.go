package ingest

import (
	"context"
	"strconv"
	"strings"
	"time"

	"arena-tracker/internal/api"
	"arena-tracker/internal/constants"
	"arena-tracker/internal/domain"
	"arena-tracker/internal/rating"

	"github.com/rs/zerolog"
)

// Ingestor pulls a player's recent match history and applies every new
// arena match to the affected players' ratings, exactly once per match.
type Ingestor struct {
	store  PlayerStore
	source MatchSource
	logger zerolog.Logger
	now    func() time.Time
}

func NewIngestor(store PlayerStore, source MatchSource, logger zerolog.Logger) *Ingestor {
	return &Ingestor{
		store:  store,
		source: source,
		logger: logger,
		now:    time.Now,
	}
}

// WithStore returns a copy of the ingestor writing through a different
// store. Used by the bulk recompute pass to batch persistence.
func (in *Ingestor) WithStore(store PlayerStore) *Ingestor {
	clone := *in
	clone.store = store
	return &clone
}

// ProcessPlayer runs one ingestion cycle for a tracked player. It returns
// false when no progress could be made: tracking disabled, cooldown still
// active, or the match history fetch failed.
func (in *Ingestor) ProcessPlayer(ctx context.Context, player *domain.Player) bool {
	if !player.TrackingEnabled {
		return false
	}

	// Cooldown keeps upstream traffic bounded and stops two overlapping
	// passes from reprocessing the same player.
	if in.now().Sub(player.LastUpdate) < constants.PlayerUpdateCooldown {
		return false
	}

	matchIDs, err := in.source.ListRecentMatchIDs(ctx, player.Puuid, constants.MatchHistoryCount, constants.MatchHistoryQueueType)
	if err != nil {
		in.logger.Warn().Err(err).
			Str("puuid", player.Puuid).
			Str("game_name", player.GameName).
			Msg("could not retrieve match history")
		return false
	}
	if len(matchIDs) == 0 {
		return false
	}

	newMatchIDs := newMatches(matchIDs, player.MatchStats.LastProcessedMatchID)
	if len(newMatchIDs) == 0 {
		return true
	}

	// The provider returns newest first; apply oldest first so ratings
	// evolve in chronological order.
	reverse(newMatchIDs)
	for _, matchID := range newMatchIDs {
		stop, err := in.processMatch(ctx, matchID, player.Puuid, player.DateAdded)
		if err != nil {
			in.logger.Error().Err(err).
				Str("match_id", matchID).
				Str("puuid", player.Puuid).
				Msg("failed to process match")
			continue
		}
		if stop {
			break
		}
	}

	return true
}

// newMatches returns the prefix of ids (newest first) that precede the
// last processed cursor. An empty cursor means everything is new.
func newMatches(allMatches []string, lastProcessedMatchID string) []string {
	if lastProcessedMatchID == "" {
		return allMatches
	}

	var ids []string
	for _, matchID := range allMatches {
		if matchID == lastProcessedMatchID {
			break
		}
		ids = append(ids, matchID)
	}
	return ids
}

func reverse(ids []string) {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
}

// processMatch applies a single match to every eligible participant. It
// reports stop=true when the per-player loop should not continue this pass
// (non-arena match or a match predating the player's tracking start).
func (in *Ingestor) processMatch(ctx context.Context, matchID, subjectPuuid string, dateAdded time.Time) (stop bool, err error) {
	detail, err := in.source.GetMatchDetail(ctx, matchID)
	if err != nil {
		if err == api.ErrNotFound || err == api.ErrForbidden {
			in.logger.Warn().Err(err).Str("match_id", matchID).Msg("match detail unavailable, skipping")
			return false, nil
		}
		return false, err
	}

	// A non-arena match is processed-but-irrelevant: advance the cursor
	// past it and end this player's pass.
	if detail.Info.GameMode != constants.TrackedGameMode {
		return true, in.advanceCursor(ctx, subjectPuuid, matchID)
	}

	gameCreation := time.UnixMilli(detail.Info.GameCreation).UTC()
	if gameCreation.Before(dateAdded) {
		return true, in.advanceCursor(ctx, subjectPuuid, matchID)
	}

	puuids := make([]string, 0, len(detail.Info.Participants))
	for _, p := range detail.Info.Participants {
		puuids = append(puuids, p.Puuid)
	}

	known, err := in.store.GetManyByPuuids(ctx, puuids)
	if err != nil {
		return false, err
	}
	// Bulk lookup can be served from a stale snapshot; re-check misses
	// individually before treating a participant as brand new.
	for _, puuid := range puuids {
		if _, ok := known[puuid]; ok {
			continue
		}
		player, err := in.store.GetByPuuid(ctx, puuid)
		if err != nil {
			return false, err
		}
		if player != nil {
			known[puuid] = player
		}
	}

	server, region := originFromMatchID(matchID)
	summary := buildSummary(detail)

	totalPdl := 0
	var toMutate []*domain.Player
	prePdl := make(map[string]int)
	placements := make(map[string]int)
	icons := make(map[string]int)

	for _, participant := range detail.Info.Participants {
		player, exists := known[participant.Puuid]
		if exists {
			totalPdl += player.Pdl

			// A match already applied to this player must never be
			// applied twice. Other tracked players are left for their
			// own pass so their history stays chronological.
			if player.MatchStats.LastProcessedMatchID == matchID {
				continue
			}
			if player.TrackingEnabled && participant.Puuid != subjectPuuid {
				continue
			}
		} else {
			player = in.registerParticipant(ctx, participant, region, server)
			if player == nil {
				continue
			}
			known[participant.Puuid] = player
			totalPdl += player.Pdl
		}

		prePdl[participant.Puuid] = player.Pdl
		placements[participant.Puuid] = participant.Placement
		icons[participant.Puuid] = participant.ProfileIcon
		toMutate = append(toMutate, player)
	}

	averagePdl := domain.DefaultPdl
	if len(detail.Info.Participants) > 0 {
		averagePdl = totalPdl / len(detail.Info.Participants)
	}

	for _, player := range toMutate {
		in.applyMatchToPlayer(ctx, player, summary, matchID,
			prePdl[player.Puuid], averagePdl, placements[player.Puuid], icons[player.Puuid])
	}

	return false, nil
}

// registerParticipant creates a store record for a player first observed in
// a match: untracked, seeded with a tier-derived rating. Returns nil when
// the record could not be created.
func (in *Ingestor) registerParticipant(ctx context.Context, participant api.Participant, region, server string) *domain.Player {
	tier, err := in.source.GetTierForPlayer(ctx, participant.Puuid, server)
	if err != nil || tier == "" {
		in.logger.Warn().Err(err).
			Str("game_name", participant.RiotIDGameName).
			Str("tag_line", participant.RiotIDTagline).
			Msg("could not retrieve tier, assuming unranked")
		tier = "UNRANKED"
	}

	player := &domain.Player{
		Puuid:           participant.Puuid,
		GameName:        participant.RiotIDGameName,
		TagLine:         participant.RiotIDTagline,
		Region:          region,
		Server:          server,
		Pdl:             rating.DefaultRatingForTier(tier),
		TrackingEnabled: false,
		LastUpdate:      in.now().UTC(),
		DateAdded:       in.now().UTC(),
	}

	if err := in.store.Create(ctx, player); err != nil {
		in.logger.Error().Err(err).
			Str("puuid", participant.Puuid).
			Msg("failed to add new player")
		return nil
	}
	return player
}

// applyMatchToPlayer mutates one participant's rating and stats for one
// match and persists the result. Failures are logged and isolated.
func (in *Ingestor) applyMatchToPlayer(ctx context.Context, player *domain.Player, summary domain.MatchSummary,
	matchID string, prePdl, averagePdl, placement, profileIcon int) {

	isWin := rating.IsWin(placement)
	if isWin {
		player.MatchStats.Wins++
	} else {
		player.MatchStats.Losses++
	}
	matchesPlayed := player.TotalGames()

	delta := rating.ComputeDelta(prePdl, averagePdl, placement, matchesPlayed)
	player.Pdl = prePdl + delta

	champion := findChampion(summary, player.Puuid)
	if champion != nil {
		player.MatchStats.RotateChampion(*champion)
	}
	player.MatchStats.AddRecentGame(summary)

	if player.MatchStats.AveragePlacement == 0 {
		player.MatchStats.AveragePlacement = float64(placement)
	} else {
		n := float64(matchesPlayed)
		player.MatchStats.AveragePlacement =
			(player.MatchStats.AveragePlacement*(n-1) + float64(placement)) / n
	}

	player.MatchStats.LastProcessedMatchID = matchID
	player.LastUpdate = in.now().UTC()
	player.LastPlacement = placement
	player.ProfileIconID = profileIcon

	if err := in.store.Update(ctx, player); err != nil {
		in.logger.Error().Err(err).
			Str("puuid", player.Puuid).
			Str("match_id", matchID).
			Msg("failed to persist rating update")
		return
	}

	if player.TrackingEnabled {
		in.logger.Info().
			Str("game_name", player.GameName).
			Str("tag_line", player.TagLine).
			Int("placement", placement).
			Int("pdl_before", prePdl).
			Int("pdl_after", player.Pdl).
			Int("delta", delta).
			Msg("rating updated")
	}
}

// advanceCursor marks a match as processed for a player without touching
// rating or stats.
func (in *Ingestor) advanceCursor(ctx context.Context, puuid, matchID string) error {
	player, err := in.store.GetByPuuid(ctx, puuid)
	if err != nil || player == nil {
		return err
	}
	player.MatchStats.LastProcessedMatchID = matchID
	player.LastUpdate = in.now().UTC()
	return in.store.Update(ctx, player)
}

func buildSummary(detail *api.MatchResponse) domain.MatchSummary {
	players := make([]domain.ParticipantResult, 0, len(detail.Info.Participants))
	for _, p := range detail.Info.Participants {
		players = append(players, domain.ParticipantResult{
			Puuid:            p.Puuid,
			GameName:         p.RiotIDGameName,
			TagLine:          p.RiotIDTagline,
			ChampionID:       p.ChampionID,
			ChampionName:     p.ChampionName,
			Placement:        p.Placement,
			ProfileIcon:      p.ProfileIcon,
			Kills:            p.Kills,
			Deaths:           p.Deaths,
			Assists:          p.Assists,
			TotalDamageDealt: p.TotalDamageDealt,
			Items:            p.Items(),
			Augments:         p.Augments,
		})
	}

	return domain.MatchSummary{
		MatchID:      detail.Metadata.MatchID,
		GameMode:     detail.Info.GameMode,
		GameCreation: time.UnixMilli(detail.Info.GameCreation).UTC(),
		GameDuration: detail.Info.GameDuration,
		Players:      players,
	}
}

func findChampion(summary domain.MatchSummary, puuid string) *domain.ChampionPlayed {
	for _, p := range summary.Players {
		if p.Puuid == puuid {
			return &domain.ChampionPlayed{
				ChampionID:   strconv.Itoa(p.ChampionID),
				ChampionName: p.ChampionName,
			}
		}
	}
	return nil
}

// originFromMatchID infers the platform server and routing region from a
// match id prefix such as "BR1_123456".
func originFromMatchID(matchID string) (server, region string) {
	server = strings.ToLower(strings.SplitN(matchID, "_", 2)[0])
	switch server {
	case "br1", "la1", "la2", "na1":
		region = "americas"
	case "eun1", "euw1", "tr1", "ru":
		region = "europe"
	case "kr", "jp1":
		region = "asia"
	case "oc1", "ph2", "sg2", "th2", "tw2", "vn2":
		region = "sea"
	default:
		region = "americas"
	}
	return server, region
}
