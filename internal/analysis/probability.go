package analysis

import (
	"math"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DealProbability computes P(good deal | day, hour) over enriched observations.
// Cells without observations are 0.
func DealProbability(obs []Enriched) Surface {
	var c cellCounter
	for _, o := range obs {
		hit := 0.0
		if o.IsGoodDeal {
			hit = 1
		}
		c.add(o.DayOfWeek, o.Hour, hit)
	}
	return c.ratio()
}

// DropProbability estimates how likely the price reaches a target.
type DropProbability struct {
	// Probability is the Normal CDF at the target.
	Probability float64
	// PctBelowTarget is the empirical share of prices at or below the target.
	PctBelowTarget float64
	HistoricalMin  *float64
	HistoricalMean float64
	Samples        int
}

// PriceDropProbability estimates the chance the price falls to or below
// target from the historical price sample. NaN prices are ignored and a
// non-finite target yields the zero result.
func PriceDropProbability(prices []float64, target float64) DropProbability {
	if math.IsNaN(target) || math.IsInf(target, 0) {
		return DropProbability{}
	}
	clean := make([]float64, 0, len(prices))
	for _, p := range prices {
		if !math.IsNaN(p) {
			clean = append(clean, p)
		}
	}
	if len(clean) == 0 {
		return DropProbability{}
	}

	below := 0
	for _, p := range clean {
		if p <= target {
			below++
		}
	}

	mu, sigma := stat.PopMeanStdDev(clean, nil)
	var prob float64
	if sigma > 0 {
		prob = distuv.Normal{Mu: mu, Sigma: sigma}.CDF(target)
	} else if target >= mu {
		prob = 1
	}

	hmin := floats.Min(clean)
	return DropProbability{
		Probability:    round(prob, 3),
		PctBelowTarget: round(float64(below)/float64(len(clean)), 3),
		HistoricalMin:  &hmin,
		HistoricalMean: round(mu, 2),
		Samples:        len(clean),
	}
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
