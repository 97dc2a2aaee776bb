package frecency

import (
	"testing"

	"github.com/hamr-launcher/hamrd/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWilsonScoreZeroTotalIsZero(t *testing.T) {
	assert.Zero(t, WilsonScore(0, 0, 1.65))
}

func TestWilsonScoreIncreasesWithMoreSuccesses(t *testing.T) {
	low := WilsonScoreDefault(1, 10)
	high := WilsonScoreDefault(9, 10)
	assert.Less(t, low, high)
}

func TestSequenceConfidenceRejectsBelowMinCount(t *testing.T) {
	assert.Zero(t, SequenceConfidence(2, 10, 5, 100, 3))
}

func TestSequenceConfidenceRejectsLowLift(t *testing.T) {
	// confidence = 10/10 = 1.0, prob_b = 90/100 = 0.9, lift = 1.11 < 1.2
	assert.Zero(t, SequenceConfidence(10, 10, 90, 100, 3))
}

func TestSequenceConfidenceAdmitsStrongAssociation(t *testing.T) {
	// confidence = 8/10 = 0.8, prob_b = 10/100 = 0.1, lift = 8.0
	got := SequenceConfidence(8, 10, 10, 100, 3)
	assert.Greater(t, got, 0.0)
	assert.LessOrEqual(t, got, 1.0)
}

func TestDecayFactorNoDecayWhenHalfLifeZero(t *testing.T) {
	assert.Equal(t, 1.0, DecayFactor(30, 0))
}

func TestDecayFactorHalvesAtHalfLife(t *testing.T) {
	assert.InDelta(t, 0.5, DecayFactor(10, 10), 0.0001)
}

func TestIsTooOldDisabledWhenMaxAgeZero(t *testing.T) {
	assert.False(t, IsTooOld(9999, 0))
}

func TestIsTooOldPastThreshold(t *testing.T) {
	assert.True(t, IsTooOld(31, 30))
	assert.False(t, IsTooOld(29, 30))
}

func TestSuggestEmptyStoreReturnsNothing(t *testing.T) {
	s := index.New()
	out := Suggest(s, Context{NowMS: 1000}, 5, 0, 0)
	assert.Empty(t, out)
}

func TestSuggestSessionStartSignalAdmitsCandidate(t *testing.T) {
	s := index.New()
	s.UpdateFull("apps", []index.Item{{ID: "terminal"}})
	now := int64(10_000_000)
	for i := 0; i < 5; i++ {
		s.RecordExecution("apps", "terminal", index.ExecutionContext{Now: now + int64(i), SessionStart: true}, index.ModeItem, nil)
	}

	out := Suggest(s, Context{NowMS: now + 100, IsSessionStart: true}, 5, 0, 0)
	require.NotEmpty(t, out)
	assert.Equal(t, "terminal", out[0].ItemID)
}
