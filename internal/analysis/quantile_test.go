package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentRankAveragesTies(t *testing.T) {
	got := PercentRank([]float64{3, 1, 2, 2})
	assert.Equal(t, []float64{1, 0.25, 0.62, 0.62}, got)
	assert.Empty(t, PercentRank(nil))
}

func TestReviewScore(t *testing.T) {
	assert.Equal(t, 0.0, ReviewScore(nil, nil))
	assert.Equal(t, 0.0, ReviewScore(ptrF(math.NaN()), ptrI(10)))
	assert.InDelta(t, 8.0, ReviewScore(ptrF(4), ptrI(99)), 1e-9)
}

func TestClassifyBatchQuantiles(t *testing.T) {
	rules := LegacyRuleset()

	// review score and discount rise together, so both ranks are (i+1)/10
	in := make([]ClassifierInput, 10)
	for i := range in {
		in[i] = ClassifierInput{
			PromoPrice:      20,
			DiscountPercent: float64(10 * (i + 1)),
			Rating:          ptrF(4),
			ReviewCount:     ptrI(10 * (i + 1)),
		}
	}

	got := ClassifyBatch(in, rules)
	require.Len(t, got, 10)
	assert.Equal(t, TierAvoid, got[0].Tier)
	assert.Equal(t, TierNeutral, got[6].Tier)
	assert.Equal(t, TierGoodDeal, got[7].Tier)
	assert.Equal(t, TierSuper, got[8].Tier)
	assert.Equal(t, 0.9, got[8].ReviewQuantile)
	assert.Equal(t, 0.9, got[8].DiscountQuantile)
	assert.Equal(t, TierSuper, got[9].Tier)

	for _, c := range got {
		assert.Zero(t, c.Total)
	}
}

func TestClassifyBatchAbsoluteBranches(t *testing.T) {
	rules := LegacyRuleset()
	in := []ClassifierInput{
		{PromoPrice: 30, DiscountPercent: 10, Rating: ptrF(4.9), ReviewCount: ptrI(900)},
		{PromoPrice: 30, DiscountPercent: 20, Rating: ptrF(4.8), ReviewCount: ptrI(800)},
		{PromoPrice: 4.90, DiscountPercent: 30, Rating: ptrF(4.7), ReviewCount: ptrI(700)},
		{PromoPrice: 30, DiscountPercent: 80, Rating: ptrF(4.6), ReviewCount: ptrI(600)},
		{PromoPrice: 9, DiscountPercent: 40, Rating: ptrF(4.5), ReviewCount: ptrI(500)},
		{PromoPrice: 9, DiscountPercent: math.NaN()},
	}

	got := ClassifyBatch(in, rules)
	assert.Equal(t, TierVeryCheap, got[2].Tier)
	assert.Equal(t, TierCheapButMid, got[3].Tier)
	assert.Equal(t, TierNeutral, got[5].Tier)
	assert.Zero(t, got[5].DiscountQuantile)
}

func TestClassifyBatchPointsMatchesClassify(t *testing.T) {
	rules := DefaultRuleset()
	in := []ClassifierInput{
		{PromoPrice: 5, DiscountPercent: 80, Rating: ptrF(4.5), ReviewCount: ptrI(120)},
		{PromoPrice: 25, DiscountPercent: 10},
	}
	got := ClassifyBatch(in, rules)
	for i := range in {
		assert.Equal(t, Classify(in[i], rules), got[i])
	}
}

func TestClassifySingleQuantileInput(t *testing.T) {
	got := Classify(ClassifierInput{PromoPrice: 5.90, DiscountPercent: 80, Rating: ptrF(4.8), ReviewCount: ptrI(500)}, LegacyRuleset())
	assert.Equal(t, TierSuper, got.Tier)
	assert.True(t, LegacyRuleset().IsGood(got.Tier))
}
