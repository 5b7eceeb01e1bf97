package analysis

// Tier labels produced by the point-based rule set.
const (
	TierSteal       = "STEAL"
	TierGreatDeal   = "GREAT DEAL"
	TierBargainBin  = "BARGAIN BIN"
	TierQualityPick = "QUALITY PICK"
	TierGoodDeal    = "GOOD DEAL"
	TierOK          = "OK"
	TierSkip        = "SKIP"
)

// Tier labels produced by the quantile rule set. GOOD DEAL is shared with
// the point-based labels.
const (
	TierSuper         = "SUPER"
	TierWaitForSale   = "WAIT FOR SALE"
	TierDecent        = "DECENT"
	TierCheapUpperMid = "CHEAP UPPER MID"
	TierCheapButMid   = "CHEAP BUT MID"
	TierBigDiscount   = "BIG DISCOUNT"
	TierVeryCheap     = "VERY CHEAP"
	TierAvoid         = "AVOID"
	TierNeutral       = "NEUTRAL"
)

// Strategy selects how a batch of observations is classified.
type Strategy string

const (
	// StrategyPoints scores every observation on its own.
	StrategyPoints Strategy = "points"
	// StrategyQuantile ranks review score and discount across the batch.
	StrategyQuantile Strategy = "quantile"
)

// LegacyGoodTiers is the good-deal vocabulary of the quantile rule set.
var LegacyGoodTiers = []string{TierSuper, TierGoodDeal, TierBigDiscount, TierVeryCheap, TierCheapUpperMid}

// PointGoodTiers is the good-deal vocabulary of the point-based rule set.
var PointGoodTiers = []string{TierSteal, TierGreatDeal, TierQualityPick, TierGoodDeal}

// QualityStep awards Points when both rating and review count reach the minimum.
type QualityStep struct {
	MinRating  float64
	MinReviews int
	Points     int
}

// Ruleset holds classifier thresholds and the set of tiers counted as good deals.
type Ruleset struct {
	// PriceSteps maps a maximum promo price to its points, highest points first.
	PriceSteps []Step
	// DiscountSteps maps a minimum discount percent to its points, highest points first.
	DiscountSteps []Step
	QualitySteps  []QualityStep

	StealTotal    int
	GreatTotal    int
	GoodDealTotal int
	OKTotal       int

	// BARGAIN BIN needs these price and discount points with no quality points.
	BargainPricePoints    int
	BargainDiscountPoints int
	// QUALITY PICK needs QualityPickPoints quality points.
	QualityPickPoints int
	// MinDiscountPoints gates QUALITY PICK and GOOD DEAL.
	MinDiscountPoints int

	Strategy Strategy
	Quantile QuantileRules

	GoodTiers []string
}

// QuantileRules are the cut points of the quantile rule set. Review and
// discount quantiles are percentile ranks in [0, 1].
type QuantileRules struct {
	ReviewTop      float64
	ReviewHigh     float64
	ReviewUpperMid float64
	ReviewMid      float64
	ReviewLow      float64

	DiscountTop    float64
	DiscountHigh   float64
	DiscountMid    float64
	DiscountDecent float64
	DiscountLow    float64

	// BigDiscount is an absolute discount percent.
	BigDiscount float64
	// VeryCheap is an absolute promo price.
	VeryCheap float64
}

// Step is one bucket boundary.
type Step struct {
	Bound  float64
	Points int
}

// DefaultRuleset returns the point-based rule set.
func DefaultRuleset() Ruleset {
	return Ruleset{
		PriceSteps: []Step{
			{Bound: 9.90, Points: 3},
			{Bound: 14.90, Points: 2},
			{Bound: 19.90, Points: 1},
		},
		DiscountSteps: []Step{
			{Bound: 70, Points: 3},
			{Bound: 55, Points: 2},
			{Bound: 40, Points: 1},
		},
		QualitySteps: []QualityStep{
			{MinRating: 4.0, MinReviews: 50, Points: 3},
			{MinRating: 3.8, MinReviews: 20, Points: 2},
			{MinRating: 3.5, MinReviews: 5, Points: 1},
		},
		StealTotal:    7,
		GreatTotal:    6,
		GoodDealTotal: 4,
		OKTotal:       3,

		BargainPricePoints:    2,
		BargainDiscountPoints: 2,
		QualityPickPoints:     3,
		MinDiscountPoints:     1,

		Strategy: StrategyPoints,
		Quantile: DefaultQuantileRules(),

		GoodTiers: append([]string(nil), PointGoodTiers...),
	}
}

// LegacyRuleset returns the quantile rule set with its good-tier vocabulary.
func LegacyRuleset() Ruleset {
	r := DefaultRuleset()
	r.Strategy = StrategyQuantile
	r.GoodTiers = append([]string(nil), LegacyGoodTiers...)
	return r
}

// DefaultQuantileRules returns the cut points of the quantile rule set.
func DefaultQuantileRules() QuantileRules {
	return QuantileRules{
		ReviewTop:      0.9,
		ReviewHigh:     0.8,
		ReviewUpperMid: 0.7,
		ReviewMid:      0.5,
		ReviewLow:      0.3,
		DiscountTop:    0.9,
		DiscountHigh:   0.8,
		DiscountMid:    0.5,
		DiscountDecent: 0.4,
		DiscountLow:    0.3,
		BigDiscount:    76,
		VeryCheap:      5,
	}
}

// IsGood reports whether tier belongs to the good-deal set.
func (r Ruleset) IsGood(tier string) bool {
	for _, t := range r.GoodTiers {
		if t == tier {
			return true
		}
	}
	return false
}
