package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(day time.Weekday, hour int) time.Time {
	// 2025-03-02 is a Sunday
	return time.Date(2025, time.March, 2+int(day), hour, 15, 0, 0, time.UTC)
}

func TestDealProbabilitySurface(t *testing.T) {
	rules := DefaultRuleset()
	obs := []Observation{
		{EntityID: "A", ObservedAt: at(time.Monday, 9), Tier: TierSteal},
		{EntityID: "B", ObservedAt: at(time.Monday, 9), Tier: TierSkip},
		{EntityID: "C", ObservedAt: at(time.Monday, 9), Tier: TierGoodDeal},
		{EntityID: "D", ObservedAt: at(time.Monday, 9), Tier: TierOK},
		{EntityID: "A", ObservedAt: at(time.Saturday, 23), Tier: TierQualityPick},
	}

	s := DealProbability(Enrich(obs, rules))
	assert.InDelta(t, 0.5, s.At(1, 9), 1e-9)
	assert.InDelta(t, 1.0, s.At(6, 23), 1e-9)
	assert.Zero(t, s.At(0, 0))

	for _, c := range s.Cells() {
		assert.False(t, math.IsNaN(c.Value))
		assert.GreaterOrEqual(t, c.Value, 0.0)
		assert.LessOrEqual(t, c.Value, 1.0)
	}
}

func TestDealProbabilityInjectedTiers(t *testing.T) {
	rules := DefaultRuleset()
	rules.GoodTiers = LegacyGoodTiers

	obs := []Observation{
		{ObservedAt: at(time.Tuesday, 12), Tier: "SUPER"},
		{ObservedAt: at(time.Tuesday, 12), Tier: TierSteal},
	}
	s := DealProbability(Enrich(obs, rules))
	assert.InDelta(t, 0.5, s.At(2, 12), 1e-9)
}

func TestDealProbabilityEmpty(t *testing.T) {
	s := DealProbability(nil)
	assert.Len(t, s.Cells(), 168)
	for _, c := range s.Cells() {
		assert.Zero(t, c.Value)
	}
}

func TestPriceDropProbabilityEmpty(t *testing.T) {
	got := PriceDropProbability(nil, 10)
	assert.Zero(t, got.Probability)
	assert.Zero(t, got.PctBelowTarget)
	assert.Nil(t, got.HistoricalMin)

	got = PriceDropProbability([]float64{math.NaN()}, 10)
	assert.Nil(t, got.HistoricalMin)
}

func TestPriceDropProbabilityNonFiniteTarget(t *testing.T) {
	for _, target := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		got := PriceDropProbability([]float64{10, 12, 14}, target)
		assert.Equal(t, DropProbability{}, got)
	}
}

func TestPriceDropProbabilityNormal(t *testing.T) {
	prices := []float64{10, 20, 30, 40}
	got := PriceDropProbability(prices, 25)

	require.NotNil(t, got.HistoricalMin)
	assert.Equal(t, 10.0, *got.HistoricalMin)
	assert.Equal(t, 0.5, got.PctBelowTarget)
	assert.Equal(t, 0.5, got.Probability)
	assert.Equal(t, 25.0, got.HistoricalMean)
	assert.Equal(t, 4, got.Samples)

	low := PriceDropProbability(prices, 5)
	assert.Less(t, low.Probability, 0.5)
	assert.Zero(t, low.PctBelowTarget)
}

func TestPriceDropProbabilityZeroVariance(t *testing.T) {
	prices := []float64{20, 20, 20}
	assert.Equal(t, 1.0, PriceDropProbability(prices, 20).Probability)
	assert.Equal(t, 1.0, PriceDropProbability(prices, 25).Probability)
	assert.Equal(t, 0.0, PriceDropProbability(prices, 14.9).Probability)
}

func TestPriceDropProbabilityRounding(t *testing.T) {
	got := PriceDropProbability([]float64{10, 11, 13}, 12)
	assert.Equal(t, 0.667, got.PctBelowTarget)
	assert.Equal(t, 11.33, got.HistoricalMean)
}
