package domain

import (
	"time"
)

// DefaultPdl is the rating a brand-new tracked player starts with.
const DefaultPdl = 1000

const (
	// MaxRecentGames bounds the per-player recent match list. Oldest
	// entries (by game creation time) are evicted first.
	MaxRecentGames = 10

	// MaxChampionsPlayed bounds the champion rotation history (FIFO).
	MaxChampionsPlayed = 4
)

type Player struct {
	Puuid           string
	GameName        string
	TagLine         string
	Region          string // routing region, e.g. "americas"
	Server          string // platform, e.g. "br1"
	ProfileIconID   int
	Pdl             int
	RankPosition    int // 0 = unranked
	LastPlacement   int
	TrackingEnabled bool
	MatchStats      MatchStats
	LastUpdate      time.Time
	DateAdded       time.Time
}

// TotalGames is the number of arena matches applied to this player.
func (p *Player) TotalGames() int {
	return p.MatchStats.Wins + p.MatchStats.Losses
}

// QualifiesForLeaderboard reports whether the player is ranked: tracked
// and with at least one processed match.
func (p *Player) QualifiesForLeaderboard() bool {
	return p.TrackingEnabled && p.TotalGames() > 0
}

type MatchStats struct {
	Wins                 int
	Losses               int
	LastProcessedMatchID string
	AveragePlacement     float64
	ChampionsPlayed      []ChampionPlayed
	RecentGames          []MatchSummary
}

// RotateChampion appends the champion just played, evicting the oldest
// entry once the list is at capacity.
func (ms *MatchStats) RotateChampion(c ChampionPlayed) {
	if len(ms.ChampionsPlayed) >= MaxChampionsPlayed {
		ms.ChampionsPlayed = ms.ChampionsPlayed[1:]
	}
	ms.ChampionsPlayed = append(ms.ChampionsPlayed, c)
}

// AddRecentGame inserts a match summary, deduplicated by match id, keeping
// the list sorted by game creation descending and capped at MaxRecentGames.
func (ms *MatchStats) AddRecentGame(g MatchSummary) {
	for _, existing := range ms.RecentGames {
		if existing.MatchID == g.MatchID {
			return
		}
	}
	ms.RecentGames = append(ms.RecentGames, g)
	// Insertion sort from the tail keeps the newest-first ordering.
	for i := len(ms.RecentGames) - 1; i > 0; i-- {
		if ms.RecentGames[i].GameCreation.After(ms.RecentGames[i-1].GameCreation) {
			ms.RecentGames[i], ms.RecentGames[i-1] = ms.RecentGames[i-1], ms.RecentGames[i]
		} else {
			break
		}
	}
	if len(ms.RecentGames) > MaxRecentGames {
		ms.RecentGames = ms.RecentGames[:MaxRecentGames]
	}
}

type ChampionPlayed struct {
	ChampionID   string `json:"championId"`
	ChampionName string `json:"championName"`
}

// MatchSummary is one arena match as stored in a player's recent games.
type MatchSummary struct {
	MatchID      string              `json:"matchId"`
	GameMode     string              `json:"gameMode"`
	GameCreation time.Time           `json:"gameCreation"`
	GameDuration int64               `json:"gameDuration"`
	Players      []ParticipantResult `json:"players"`
}

type ParticipantResult struct {
	Puuid            string   `json:"puuid"`
	GameName         string   `json:"gameName"`
	TagLine          string   `json:"tagLine"`
	ChampionID       int      `json:"championId"`
	ChampionName     string   `json:"championName"`
	Placement        int      `json:"placement"`
	ProfileIcon      int      `json:"profileIcon"`
	Kills            int      `json:"kills"`
	Deaths           int      `json:"deaths"`
	Assists          int      `json:"assists"`
	TotalDamageDealt int      `json:"totalDamageDealt"`
	Items            []int    `json:"items"`
	Augments         []string `json:"augments"`
}

// SnapshotKind selects one of the two ranking cache snapshots.
type SnapshotKind int

const (
	// SnapshotLeaderboard holds leaderboard-eligible players ordered by
	// persisted rank position.
	SnapshotLeaderboard SnapshotKind = iota
	// SnapshotAllTracked holds every tracking-enabled player.
	SnapshotAllTracked
)

func (k SnapshotKind) String() string {
	switch k {
	case SnapshotLeaderboard:
		return "leaderboard"
	case SnapshotAllTracked:
		return "all-tracked"
	default:
		return "unknown"
	}
}
