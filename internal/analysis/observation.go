package analysis

import (
	"math"
	"time"
)

// Observation is a single price snapshot of one product variant.
type Observation struct {
	EntityID        string
	Name            string
	URL             string
	Gender          string
	Color           string
	Size            string
	ObservedAt      time.Time
	PromoPrice      float64
	OriginalPrice   float64
	DiscountPercent float64
	Rating          *float64
	ReviewCount     *int
	Tier            string
}

// VariantKey identifies one entity time series.
type VariantKey struct {
	EntityID string
	Color    string
	Size     string
}

// Key returns the grouping key of the observation.
func (o Observation) Key() VariantKey {
	return VariantKey{EntityID: o.EntityID, Color: o.Color, Size: o.Size}
}

// DiscountPercent derives the discount from promo and original price.
// Prices above the original yield a negative value.
func DiscountPercent(promo, original float64) float64 {
	if original <= 0 || math.IsNaN(original) || math.IsNaN(promo) {
		return 0
	}
	return (original - promo) / original * 100
}

// GroupByVariant splits observations into per-variant series. The
// returned keys preserve first-seen order.
func GroupByVariant(obs []Observation) ([]VariantKey, map[VariantKey][]Observation) {
	groups := make(map[VariantKey][]Observation)
	keys := make([]VariantKey, 0)
	for _, o := range obs {
		k := o.Key()
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], o)
	}
	return keys, groups
}

// Prices extracts promo prices, skipping NaN values.
func Prices(obs []Observation) []float64 {
	out := make([]float64, 0, len(obs))
	for _, o := range obs {
		if math.IsNaN(o.PromoPrice) {
			continue
		}
		out = append(out, o.PromoPrice)
	}
	return out
}
