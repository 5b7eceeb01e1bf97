package analysis

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// classifyQuantiles ranks review score and discount across the batch and
// labels every input from its two percentile ranks. Inputs without a
// discount are not ranked and come out NEUTRAL.
func classifyQuantiles(in []ClassifierInput, q QuantileRules) []Classification {
	out := make([]Classification, len(in))

	ranked := make([]int, 0, len(in))
	scores := make([]float64, 0, len(in))
	discounts := make([]float64, 0, len(in))
	for i, x := range in {
		out[i].ReviewScore = ReviewScore(x.Rating, x.ReviewCount)
		if math.IsNaN(x.DiscountPercent) {
			out[i].Tier = TierNeutral
			continue
		}
		ranked = append(ranked, i)
		scores = append(scores, out[i].ReviewScore)
		discounts = append(discounts, roundBank(x.DiscountPercent, 2))
	}

	reviewRanks := PercentRank(scores)
	discountRanks := PercentRank(discounts)
	for j, i := range ranked {
		c := &out[i]
		c.ReviewQuantile = reviewRanks[j]
		c.DiscountQuantile = discountRanks[j]
		c.Tier = quantileTier(c.ReviewQuantile, c.DiscountQuantile, in[i].DiscountPercent, in[i].PromoPrice, q)
	}
	return out
}

func quantileTier(rq, dq, discount, price float64, q QuantileRules) string {
	switch {
	case rq >= q.ReviewTop && dq >= q.DiscountHigh:
		return TierSuper
	case rq >= q.ReviewTop && dq >= q.DiscountMid:
		return TierWaitForSale
	case rq >= q.ReviewHigh && dq >= q.DiscountHigh:
		return TierGoodDeal
	case rq >= q.ReviewHigh && dq >= q.DiscountDecent:
		return TierDecent
	case rq >= q.ReviewUpperMid && rq < q.ReviewHigh && dq >= q.DiscountHigh:
		return TierCheapUpperMid
	case rq < q.ReviewMid && dq >= q.DiscountTop:
		return TierCheapButMid
	case discount >= q.BigDiscount:
		return TierBigDiscount
	case !math.IsNaN(price) && price <= q.VeryCheap:
		return TierVeryCheap
	case rq < q.ReviewLow && dq < q.DiscountLow:
		return TierAvoid
	default:
		return TierNeutral
	}
}

// ReviewScore weighs the rating by the log of the review count. Missing
// values count as zero.
func ReviewScore(rating *float64, reviews *int) float64 {
	r := 0.0
	if rating != nil && !math.IsNaN(*rating) {
		r = *rating
	}
	n := 0
	if reviews != nil && *reviews > 0 {
		n = *reviews
	}
	return roundBank(r*math.Log10(float64(n)+1), 2)
}

// PercentRank returns the percentile rank of every value, rounded to two
// decimals. Ties share their average rank.
func PercentRank(values []float64) []float64 {
	n := len(values)
	ranks := make([]float64, n)
	if n == 0 {
		return ranks
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	for i := 0; i < n; {
		j := i
		for j+1 < n && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = roundBank(avg/float64(n), 2)
		}
		i = j + 1
	}
	return ranks
}

func roundBank(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).RoundBank(places).InexactFloat64()
}
