package analysis

import "math"

// ClassifierInput carries the fields the classifier scores.
type ClassifierInput struct {
	PromoPrice      float64
	DiscountPercent float64
	Rating          *float64
	ReviewCount     *int
}

// Classification is a tier label together with the scores behind it. The
// point fields are set by the point-based rule set, the quantile fields by
// the quantile rule set.
type Classification struct {
	Tier     string
	Price    int
	Discount int
	Quality  int
	Total    int

	ReviewScore      float64
	ReviewQuantile   float64
	DiscountQuantile float64
}

// InputFrom builds classifier input from an observation.
func InputFrom(o Observation) ClassifierInput {
	return ClassifierInput{
		PromoPrice:      o.PromoPrice,
		DiscountPercent: o.DiscountPercent,
		Rating:          o.Rating,
		ReviewCount:     o.ReviewCount,
	}
}

// Classify scores one observation and assigns its tier. Rules are tried in
// priority order and the first match wins. Under the quantile strategy a
// single input is ranked against itself; use ClassifyBatch to rank a whole
// snapshot.
func Classify(in ClassifierInput, rules Ruleset) Classification {
	if rules.Strategy == StrategyQuantile {
		return ClassifyBatch([]ClassifierInput{in}, rules)[0]
	}
	return classifyPoints(in, rules)
}

// ClassifyBatch classifies a snapshot. Results are index-aligned with in.
func ClassifyBatch(in []ClassifierInput, rules Ruleset) []Classification {
	if rules.Strategy == StrategyQuantile {
		return classifyQuantiles(in, rules.Quantile)
	}
	out := make([]Classification, len(in))
	for i := range in {
		out[i] = classifyPoints(in[i], rules)
	}
	return out
}

func classifyPoints(in ClassifierInput, rules Ruleset) Classification {
	c := Classification{
		Price:    pricePoints(in.PromoPrice, rules.PriceSteps),
		Discount: discountPoints(in.DiscountPercent, rules.DiscountSteps),
		Quality:  qualityPoints(in.Rating, in.ReviewCount, rules.QualitySteps),
	}
	c.Total = c.Price + c.Discount + c.Quality

	switch {
	case c.Total >= rules.StealTotal:
		c.Tier = TierSteal
	case c.Total >= rules.GreatTotal:
		c.Tier = TierGreatDeal
	case c.Price >= rules.BargainPricePoints && c.Discount >= rules.BargainDiscountPoints && c.Quality == 0:
		c.Tier = TierBargainBin
	case c.Quality >= rules.QualityPickPoints && c.Discount >= rules.MinDiscountPoints:
		c.Tier = TierQualityPick
	case c.Total >= rules.GoodDealTotal && c.Discount >= rules.MinDiscountPoints:
		c.Tier = TierGoodDeal
	case c.Total >= rules.OKTotal:
		c.Tier = TierOK
	default:
		c.Tier = TierSkip
	}
	return c
}

func pricePoints(price float64, steps []Step) int {
	if math.IsNaN(price) || price < 0 {
		return 0
	}
	for _, s := range steps {
		if price <= s.Bound {
			return s.Points
		}
	}
	return 0
}

func discountPoints(discount float64, steps []Step) int {
	if math.IsNaN(discount) {
		return 0
	}
	for _, s := range steps {
		if discount >= s.Bound {
			return s.Points
		}
	}
	return 0
}

func qualityPoints(rating *float64, reviews *int, steps []QualityStep) int {
	r := 0.0
	if rating != nil && !math.IsNaN(*rating) {
		r = *rating
	}
	n := 0
	if reviews != nil {
		n = *reviews
	}
	for _, s := range steps {
		if r >= s.MinRating && n >= s.MinReviews {
			return s.Points
		}
	}
	return 0
}
