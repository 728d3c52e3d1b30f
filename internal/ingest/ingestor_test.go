package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"arena-tracker/internal/api"
	"arena-tracker/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestIngestor(store *MockStore, source *MockSource) *Ingestor {
	ing := NewIngestor(store, source, zerolog.Nop())
	ing.now = func() time.Time { return testTime }
	return ing
}

func trackedPlayer(puuid string, pdl int) *domain.Player {
	return &domain.Player{
		Puuid:           puuid,
		GameName:        "Player " + puuid,
		TagLine:         "BR1",
		Region:          "americas",
		Server:          "br1",
		Pdl:             pdl,
		TrackingEnabled: true,
		DateAdded:       testTime.Add(-24 * time.Hour),
	}
}

// arenaMatch builds a CHERRY match where participant i (0-based) gets
// placement i+1. The subject is always participant 0.
func arenaMatch(matchID string, creation time.Time, puuids ...string) *api.MatchResponse {
	participants := make([]api.Participant, len(puuids))
	for i, puuid := range puuids {
		participants[i] = api.Participant{
			Puuid:          puuid,
			RiotIDGameName: "Player " + puuid,
			RiotIDTagline:  "BR1",
			ChampionID:     100 + i,
			ChampionName:   fmt.Sprintf("Champion%d", i),
			Placement:      i + 1,
			ProfileIcon:    10 + i,
			Kills:          i,
			Deaths:         1,
			Assists:        2,
		}
	}
	return &api.MatchResponse{
		Metadata: api.MatchMetadata{MatchID: matchID, Participants: puuids},
		Info: api.MatchInfo{
			GameMode:     "CHERRY",
			GameCreation: creation.UnixMilli(),
			GameDuration: 900,
			Participants: participants,
		},
	}
}

func lobby(subject string) []string {
	puuids := []string{subject}
	for i := 2; i <= 8; i++ {
		puuids = append(puuids, fmt.Sprintf("other-%d", i))
	}
	return puuids
}

func TestProcessPlayerSkipsUntracked(t *testing.T) {
	store, source := NewMockStore(), NewMockSource()
	ing := newTestIngestor(store, source)

	p := trackedPlayer("p1", 1000)
	p.TrackingEnabled = false

	assert.False(t, ing.ProcessPlayer(context.Background(), p))
	assert.Empty(t, source.DetailCalls)
}

func TestProcessPlayerHonorsCooldown(t *testing.T) {
	store, source := NewMockStore(), NewMockSource()
	ing := newTestIngestor(store, source)

	p := trackedPlayer("p1", 1000)
	p.LastUpdate = testTime.Add(-5 * time.Minute)

	assert.False(t, ing.ProcessPlayer(context.Background(), p))
	assert.Empty(t, source.DetailCalls)
}

func TestProcessPlayerHistoryFetchFailure(t *testing.T) {
	store, source := NewMockStore(), NewMockSource()
	source.ListErr = errors.New("boom")
	ing := newTestIngestor(store, source)

	assert.False(t, ing.ProcessPlayer(context.Background(), trackedPlayer("p1", 1000)))
}

func TestProcessPlayerNoNewMatchesIsNoop(t *testing.T) {
	store, source := NewMockStore(), NewMockSource()
	ing := newTestIngestor(store, source)

	p := trackedPlayer("p1", 1000)
	p.MatchStats.LastProcessedMatchID = "BR1_3"
	store.Seed(p)
	source.MatchIDs["p1"] = []string{"BR1_3", "BR1_2", "BR1_1"}

	assert.True(t, ing.ProcessPlayer(context.Background(), p))
	assert.Empty(t, source.DetailCalls)
	assert.Zero(t, store.UpdateCalls)
}

func TestProcessPlayerAppliesNewMatchesOldestFirst(t *testing.T) {
	store, source := NewMockStore(), NewMockSource()
	ing := newTestIngestor(store, source)

	p := trackedPlayer("p1", 1000)
	store.Seed(p)
	source.MatchIDs["p1"] = []string{"BR1_3", "BR1_2", "BR1_1"}
	source.Details["BR1_1"] = arenaMatch("BR1_1", testTime.Add(-3*time.Hour), lobby("p1")...)
	source.Details["BR1_2"] = arenaMatch("BR1_2", testTime.Add(-2*time.Hour), lobby("p1")...)
	source.Details["BR1_3"] = arenaMatch("BR1_3", testTime.Add(-1*time.Hour), lobby("p1")...)

	assert.True(t, ing.ProcessPlayer(context.Background(), p))
	assert.Equal(t, []string{"BR1_1", "BR1_2", "BR1_3"}, source.DetailCalls)

	got, _ := store.GetByPuuid(context.Background(), "p1")
	assert.Equal(t, "BR1_3", got.MatchStats.LastProcessedMatchID)
	assert.Equal(t, 3, got.MatchStats.Wins)
	assert.Len(t, got.MatchStats.RecentGames, 3)
	assert.Equal(t, "BR1_3", got.MatchStats.RecentGames[0].MatchID)
}

func TestProcessPlayerFirstWinRatingScenario(t *testing.T) {
	store, source := NewMockStore(), NewMockSource()
	ing := newTestIngestor(store, source)

	p := trackedPlayer("p1", 1000)
	store.Seed(p)
	source.MatchIDs["p1"] = []string{"BR1_1"}
	source.Details["BR1_1"] = arenaMatch("BR1_1", testTime.Add(-time.Hour), lobby("p1")...)

	require.True(t, ing.ProcessPlayer(context.Background(), p))

	// All eight participants sit at 1000 so the cohort average is 1000;
	// provisional K of 80 with the first-place multiplier caps at +100.
	got, _ := store.GetByPuuid(context.Background(), "p1")
	assert.Equal(t, 1100, got.Pdl)
	assert.Equal(t, 1, got.MatchStats.Wins)
	assert.Equal(t, 0, got.MatchStats.Losses)
	assert.Equal(t, 1.0, got.MatchStats.AveragePlacement)
	assert.Equal(t, 1, got.LastPlacement)
	assert.Equal(t, 10, got.ProfileIconID)
	require.Len(t, got.MatchStats.ChampionsPlayed, 1)
	assert.Equal(t, "100", got.MatchStats.ChampionsPlayed[0].ChampionID)
}

func TestProcessPlayerRegistersUnknownParticipants(t *testing.T) {
	store, source := NewMockStore(), NewMockSource()
	ing := newTestIngestor(store, source)

	p := trackedPlayer("p1", 1000)
	store.Seed(p)
	source.MatchIDs["p1"] = []string{"BR1_1"}
	source.Details["BR1_1"] = arenaMatch("BR1_1", testTime.Add(-time.Hour), lobby("p1")...)
	source.Tiers["other-2"] = "CHALLENGER"

	require.True(t, ing.ProcessPlayer(context.Background(), p))

	// Seven unseen lobby members created, each after a tier lookup.
	assert.Equal(t, 7, store.CreateCalls)
	assert.Len(t, source.TierCalls, 7)

	created, _ := store.GetByPuuid(context.Background(), "other-2")
	require.NotNil(t, created)
	assert.False(t, created.TrackingEnabled)
	assert.Equal(t, "br1", created.Server)
	assert.Equal(t, "americas", created.Region)
	// Ride-along mutation: placement 2 win applied on top of the
	// CHALLENGER seed rating.
	assert.Equal(t, 1, created.MatchStats.Wins)
	assert.Equal(t, "BR1_1", created.MatchStats.LastProcessedMatchID)
	assert.Greater(t, created.Pdl, 4000)
}

func TestProcessPlayerLeavesOtherTrackedPlayersAlone(t *testing.T) {
	store, source := NewMockStore(), NewMockSource()
	ing := newTestIngestor(store, source)

	subject := trackedPlayer("p1", 1000)
	other := trackedPlayer("other-2", 2000)
	store.Seed(subject, other)
	source.MatchIDs["p1"] = []string{"BR1_1"}
	source.Details["BR1_1"] = arenaMatch("BR1_1", testTime.Add(-time.Hour), lobby("p1")...)

	require.True(t, ing.ProcessPlayer(context.Background(), subject))

	// The tracked lobby member keeps its own chronology: untouched here,
	// but its 2000 PDL raised the cohort average.
	got, _ := store.GetByPuuid(context.Background(), "other-2")
	assert.Equal(t, 2000, got.Pdl)
	assert.Zero(t, got.TotalGames())
	assert.Empty(t, got.MatchStats.LastProcessedMatchID)

	// total = 1000 + 2000 + 6*1000 = 9000, avg 1125; provisional K=80,
	// 80*1.3 = 104 -> clamped to +100.
	me, _ := store.GetByPuuid(context.Background(), "p1")
	assert.Equal(t, 1100, me.Pdl)
}

func TestProcessPlayerSkipsAlreadyProcessedParticipant(t *testing.T) {
	store, source := NewMockStore(), NewMockSource()
	ing := newTestIngestor(store, source)

	subject := trackedPlayer("p1", 1000)
	seen := trackedPlayer("other-2", 1000)
	seen.TrackingEnabled = false
	seen.MatchStats.LastProcessedMatchID = "BR1_1"
	seen.MatchStats.Wins = 1
	store.Seed(subject, seen)
	source.MatchIDs["p1"] = []string{"BR1_1"}
	source.Details["BR1_1"] = arenaMatch("BR1_1", testTime.Add(-time.Hour), lobby("p1")...)

	require.True(t, ing.ProcessPlayer(context.Background(), subject))

	got, _ := store.GetByPuuid(context.Background(), "other-2")
	assert.Equal(t, 1, got.MatchStats.Wins, "match must not be applied twice")
	assert.Equal(t, 1000, got.Pdl)
}

func TestProcessPlayerNonArenaMatchAdvancesCursorAndStops(t *testing.T) {
	store, source := NewMockStore(), NewMockSource()
	ing := newTestIngestor(store, source)

	p := trackedPlayer("p1", 1000)
	store.Seed(p)
	source.MatchIDs["p1"] = []string{"BR1_2", "BR1_1"}
	classic := arenaMatch("BR1_1", testTime.Add(-2*time.Hour), lobby("p1")...)
	classic.Info.GameMode = "CLASSIC"
	source.Details["BR1_1"] = classic
	source.Details["BR1_2"] = arenaMatch("BR1_2", testTime.Add(-time.Hour), lobby("p1")...)

	require.True(t, ing.ProcessPlayer(context.Background(), p))

	// Only the oldest match was inspected; the cursor moved past it and
	// the pass stopped without touching ratings.
	assert.Equal(t, []string{"BR1_1"}, source.DetailCalls)
	got, _ := store.GetByPuuid(context.Background(), "p1")
	assert.Equal(t, "BR1_1", got.MatchStats.LastProcessedMatchID)
	assert.Equal(t, 1000, got.Pdl)
	assert.Zero(t, got.TotalGames())
}

func TestProcessPlayerPreTrackingMatchAdvancesCursorAndStops(t *testing.T) {
	store, source := NewMockStore(), NewMockSource()
	ing := newTestIngestor(store, source)

	p := trackedPlayer("p1", 1000)
	store.Seed(p)
	source.MatchIDs["p1"] = []string{"BR1_1"}
	source.Details["BR1_1"] = arenaMatch("BR1_1", p.DateAdded.Add(-time.Hour), lobby("p1")...)

	require.True(t, ing.ProcessPlayer(context.Background(), p))

	got, _ := store.GetByPuuid(context.Background(), "p1")
	assert.Equal(t, "BR1_1", got.MatchStats.LastProcessedMatchID)
	assert.Equal(t, 1000, got.Pdl)
	assert.Zero(t, got.TotalGames())
}

func TestProcessPlayerIsIdempotent(t *testing.T) {
	store, source := NewMockStore(), NewMockSource()
	ing := newTestIngestor(store, source)

	p := trackedPlayer("p1", 1000)
	store.Seed(p)
	source.MatchIDs["p1"] = []string{"BR1_1"}
	source.Details["BR1_1"] = arenaMatch("BR1_1", testTime.Add(-time.Hour), lobby("p1")...)

	require.True(t, ing.ProcessPlayer(context.Background(), p))
	after, _ := store.GetByPuuid(context.Background(), "p1")

	// Immediately re-reading the player and processing again is a no-op:
	// the 15 minute cooldown rejects it outright.
	assert.False(t, ing.ProcessPlayer(context.Background(), after))

	// Even past the cooldown the empty new-match set keeps state stable.
	ing.now = func() time.Time { return testTime.Add(20 * time.Minute) }
	updates := store.UpdateCalls
	assert.True(t, ing.ProcessPlayer(context.Background(), after))

	final, _ := store.GetByPuuid(context.Background(), "p1")
	assert.Equal(t, after.Pdl, final.Pdl)
	assert.Len(t, final.MatchStats.RecentGames, 1)
	assert.Equal(t, updates, store.UpdateCalls)
}

func TestRecalculatePlayerReplaysHistory(t *testing.T) {
	store, source := NewMockStore(), NewMockSource()
	ing := newTestIngestor(store, source)

	p := trackedPlayer("p1", 1400)
	p.MatchStats.Wins = 1
	p.MatchStats.Losses = 1
	p.MatchStats.LastProcessedMatchID = "BR1_2"
	store.Seed(p)

	source.MatchIDs["p1"] = []string{"BR1_2", "BR1_1"}
	source.Details["BR1_1"] = arenaMatch("BR1_1", testTime.Add(-2*time.Hour), lobby("p1")...)
	source.Details["BR1_2"] = arenaMatch("BR1_2", testTime.Add(-time.Hour), lobby("p1")...)

	require.NoError(t, ing.RecalculatePlayer(context.Background(), "p1"))

	got, _ := store.GetByPuuid(context.Background(), "p1")
	assert.Equal(t, 2, got.MatchStats.Wins)
	assert.Equal(t, 0, got.MatchStats.Losses)
	assert.Equal(t, "BR1_2", got.MatchStats.LastProcessedMatchID)
	assert.Greater(t, got.Pdl, 1000)
	assert.Len(t, got.MatchStats.RecentGames, 2)
}

func TestRecalculatePlayerRejectsUntracked(t *testing.T) {
	store, source := NewMockStore(), NewMockSource()
	ing := newTestIngestor(store, source)

	p := trackedPlayer("p1", 1000)
	p.TrackingEnabled = false
	store.Seed(p)

	assert.Error(t, ing.RecalculatePlayer(context.Background(), "p1"))
}
