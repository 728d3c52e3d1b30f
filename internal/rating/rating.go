package rating

import (
	"math"
	"strings"
)

const (
	kFactorBase      = 50
	kFactorNewPlayer = 80
	kMax             = 140

	// minMatchesStable is the provisional period: players with fewer
	// matches move at the new-player K-factor.
	minMatchesStable = 10

	// MaxDeltaPerMatch clamps a single match's rating swing.
	MaxDeltaPerMatch = 100
)

// placementMultipliers maps an arena finishing position (1 best, 8 worst)
// to its gain/loss multiplier. Placements outside 1..8 map to 0.
var placementMultipliers = map[int]float64{
	1: 1.3,
	2: 1.1,
	3: 0.8,
	4: 0.6,
	5: -0.4,
	6: -0.6,
	7: -1.0,
	8: -1.7,
}

// defaultPdlByTier seeds a starting rating for players first observed in a
// match, from their solo-queue tier. Unknown tiers (including UNRANKED)
// fall back to 1000.
var defaultPdlByTier = map[string]int{
	"IRON":        800,
	"BRONZE":      900,
	"SILVER":      1000,
	"GOLD":        1200,
	"PLATINUM":    1500,
	"EMERALD":     2000,
	"DIAMOND":     2500,
	"MASTER":      3000,
	"GRANDMASTER": 3500,
	"CHALLENGER":  4000,
}

// ComputeDelta returns the rating adjustment for a single match result.
// It is deterministic and has no side effects.
//
// playerPdl and averagePdl are pre-match ratings; averagePdl is the mean
// over all eight participants. matchesPlayed counts the player's matches
// including this one.
func ComputeDelta(playerPdl, averagePdl, placement, matchesPlayed int) int {
	var k float64
	if matchesPlayed < minMatchesStable {
		k = kFactorNewPlayer
	} else if averagePdl == 0 {
		k = kFactorBase
	} else {
		diff := math.Abs(float64(playerPdl - averagePdl))
		// The farther the player sits from the lobby average, the more
		// the result is allowed to move them.
		adj := (10 / (1 + math.Log10(1+diff))) * math.Abs(math.Tanh(diff/4))
		k = kFactorBase + math.Min(kMax-kFactorBase, adj)

		if playerPdl > averagePdl && placement > 6 {
			k *= 1.1 // favorite finishing near the bottom
		} else if playerPdl < averagePdl && placement <= 2 {
			k *= 1.15 // underdog finishing near the top
		}
	}

	// Soften losses below 3000 PDL so mid-ladder players are not farmed
	// down too fast.
	if placement > 4 && playerPdl <= 3000 {
		k = math.Max(40, k-float64(placement-4)*10)
	}

	multiplier := placementMultipliers[placement]

	delta := int(math.Round(k * multiplier))
	if delta > MaxDeltaPerMatch {
		delta = MaxDeltaPerMatch
	}
	if delta < -MaxDeltaPerMatch {
		delta = -MaxDeltaPerMatch
	}
	return delta
}

// IsWin reports whether an arena placement counts as a win (top 4).
func IsWin(placement int) bool {
	return placement <= 4
}

// DefaultRatingForTier maps a ranked tier to the starting PDL for a player
// not yet known to the system.
func DefaultRatingForTier(tier string) int {
	if pdl, ok := defaultPdlByTier[strings.ToUpper(tier)]; ok {
		return pdl
	}
	return 1000
}
