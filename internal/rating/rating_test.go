package rating_test

import (
	"testing"

	"arena-tracker/internal/rating"

	"github.com/stretchr/testify/assert"
)

func TestComputeDeltaStaysWithinBounds(t *testing.T) {
	pdls := []int{0, 500, 800, 1000, 1500, 2500, 3000, 3500, 4000}
	averages := []int{0, 800, 1000, 1500, 3000, 4000}
	games := []int{0, 5, 10, 50, 500}

	for _, pdl := range pdls {
		for _, avg := range averages {
			for _, played := range games {
				for placement := 1; placement <= 8; placement++ {
					delta := rating.ComputeDelta(pdl, avg, placement, played)
					assert.GreaterOrEqual(t, delta, -100,
						"pdl=%d avg=%d placement=%d played=%d", pdl, avg, placement, played)
					assert.LessOrEqual(t, delta, 100,
						"pdl=%d avg=%d placement=%d played=%d", pdl, avg, placement, played)
				}
			}
		}
	}
}

func TestComputeDeltaUnknownPlacementIsZero(t *testing.T) {
	for _, placement := range []int{-1, 0, 9, 100} {
		assert.Zero(t, rating.ComputeDelta(1500, 1200, placement, 50))
		assert.Zero(t, rating.ComputeDelta(1000, 1000, placement, 3))
	}
}

func TestComputeDeltaMonotonicInPlacement(t *testing.T) {
	pdls := []int{800, 1000, 1500, 2500, 3200}
	averages := []int{900, 1000, 1400, 3000}
	games := []int{5, 20}

	for _, pdl := range pdls {
		for _, avg := range averages {
			for _, played := range games {
				prev := rating.ComputeDelta(pdl, avg, 1, played)
				for placement := 2; placement <= 8; placement++ {
					cur := rating.ComputeDelta(pdl, avg, placement, played)
					assert.LessOrEqual(t, cur, prev,
						"pdl=%d avg=%d placement=%d played=%d", pdl, avg, placement, played)
					prev = cur
				}
			}
		}
	}
}

func TestComputeDeltaProvisionalWinner(t *testing.T) {
	// Provisional K of 80 with the 1.3 first-place multiplier would give
	// 104, which the per-match cap pulls back to 100.
	delta := rating.ComputeDelta(1000, 1000, 1, 5)
	assert.Equal(t, 100, delta)
}

func TestComputeDeltaZeroAverageUsesBaseFactor(t *testing.T) {
	// K = 50, multiplier 1.3.
	assert.Equal(t, 65, rating.ComputeDelta(1000, 0, 1, 30))
}

func TestComputeDeltaUnderdogBonus(t *testing.T) {
	baseline := rating.ComputeDelta(1000, 1000, 1, 30)
	boosted := rating.ComputeDelta(900, 1400, 1, 30)
	assert.Greater(t, boosted, baseline)
}

func TestIsWin(t *testing.T) {
	for placement := 1; placement <= 4; placement++ {
		assert.True(t, rating.IsWin(placement))
	}
	for placement := 5; placement <= 8; placement++ {
		assert.False(t, rating.IsWin(placement))
	}
}

func TestDefaultRatingForTier(t *testing.T) {
	assert.Equal(t, 800, rating.DefaultRatingForTier("IRON"))
	assert.Equal(t, 4000, rating.DefaultRatingForTier("CHALLENGER"))
	assert.Equal(t, 1200, rating.DefaultRatingForTier("gold"))
	assert.Equal(t, 1000, rating.DefaultRatingForTier("UNRANKED"))
	assert.Equal(t, 1000, rating.DefaultRatingForTier(""))
}
