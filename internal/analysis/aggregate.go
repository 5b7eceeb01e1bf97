package analysis

import (
	"math"
	"sort"
)

// DefaultTopProducts caps TopProducts when no limit is given.
const DefaultTopProducts = 50

// SeasonalRow aggregates one (year, month, ISO week, size) bucket.
type SeasonalRow struct {
	Year      int
	Month     int
	MonthName string
	Season    string
	Week      int
	Size      string

	Observations int
	GoodDeals    int
	// Averages and the minimum skip missing values and are NaN when none remain.
	AvgDiscount float64
	MinPrice    float64
	AvgPrice    float64
}

// DealRate is the share of good deals in the bucket.
func (r SeasonalRow) DealRate() float64 {
	return float64(r.GoodDeals) / float64(max(r.Observations, 1))
}

type seasonalKey struct {
	year, month, week int
	size              string
}

// Seasonal groups enriched observations by calendar bucket and size,
// ordered by year, month, week then size. Buckets use UTC.
func Seasonal(obs []Enriched) []SeasonalRow {
	type acc struct {
		row       SeasonalRow
		discounts mean
		prices    mean
	}

	buckets := make(map[seasonalKey]*acc)
	for _, o := range obs {
		at := o.ObservedAt.UTC()
		_, week := at.ISOWeek()
		key := seasonalKey{year: at.Year(), month: o.Month, week: week, size: o.Size}

		b, ok := buckets[key]
		if !ok {
			b = &acc{row: SeasonalRow{
				Year:      key.year,
				Month:     o.Month,
				MonthName: o.MonthName,
				Season:    o.Season,
				Week:      week,
				Size:      o.Size,
				MinPrice:  math.NaN(),
			}}
			buckets[key] = b
		}

		b.row.Observations++
		if o.IsGoodDeal {
			b.row.GoodDeals++
		}
		b.discounts.add(o.DiscountPercent)
		if b.prices.add(o.PromoPrice) && (math.IsNaN(b.row.MinPrice) || o.PromoPrice < b.row.MinPrice) {
			b.row.MinPrice = o.PromoPrice
		}
	}

	out := make([]SeasonalRow, 0, len(buckets))
	for _, b := range buckets {
		b.row.AvgDiscount = b.discounts.value()
		b.row.AvgPrice = b.prices.value()
		out = append(out, b.row)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		if a.Week != b.Week {
			return a.Week < b.Week
		}
		return a.Size < b.Size
	})
	return out
}

// TopProduct summarises the deal history of one product.
type TopProduct struct {
	EntityID string
	Name     string
	Gender   string

	Observations int
	GoodDeals    int
	MinPrice     float64
	AvgPrice     float64
	MaxDiscount  float64
	AvgDiscount  float64
	// AvgRating is rounded to two decimals; nil when no rating was seen.
	AvgRating  *float64
	MaxReviews *int
	// TrackedDays spans the first to the last observation.
	TrackedDays float64
}

// TopProducts ranks products by good-deal count, most first, ties broken by
// product ID. limit <= 0 uses DefaultTopProducts.
func TopProducts(obs []Enriched, limit int) []TopProduct {
	if limit <= 0 {
		limit = DefaultTopProducts
	}

	type acc struct {
		p                          TopProduct
		prices, discounts, ratings mean
		first, last                float64
	}

	order := make([]string, 0)
	products := make(map[string]*acc)
	for _, o := range obs {
		b, ok := products[o.EntityID]
		if !ok {
			b = &acc{
				p: TopProduct{
					EntityID:    o.EntityID,
					Name:        o.Name,
					Gender:      o.Gender,
					MinPrice:    math.NaN(),
					MaxDiscount: math.NaN(),
				},
				first: o.DaysSinceStart,
				last:  o.DaysSinceStart,
			}
			products[o.EntityID] = b
			order = append(order, o.EntityID)
		}

		b.p.Observations++
		if o.IsGoodDeal {
			b.p.GoodDeals++
		}
		if b.prices.add(o.PromoPrice) && (math.IsNaN(b.p.MinPrice) || o.PromoPrice < b.p.MinPrice) {
			b.p.MinPrice = o.PromoPrice
		}
		if b.discounts.add(o.DiscountPercent) && (math.IsNaN(b.p.MaxDiscount) || o.DiscountPercent > b.p.MaxDiscount) {
			b.p.MaxDiscount = o.DiscountPercent
		}
		if o.Rating != nil {
			b.ratings.add(*o.Rating)
		}
		if o.ReviewCount != nil && (b.p.MaxReviews == nil || *o.ReviewCount > *b.p.MaxReviews) {
			n := *o.ReviewCount
			b.p.MaxReviews = &n
		}
		b.first = math.Min(b.first, o.DaysSinceStart)
		b.last = math.Max(b.last, o.DaysSinceStart)
	}

	out := make([]TopProduct, 0, len(order))
	for _, id := range order {
		b := products[id]
		b.p.AvgPrice = b.prices.value()
		b.p.AvgDiscount = b.discounts.value()
		if b.ratings.n > 0 {
			r := round(b.ratings.value(), 2)
			b.p.AvgRating = &r
		}
		b.p.TrackedDays = b.last - b.first
		out = append(out, b.p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].GoodDeals != out[j].GoodDeals {
			return out[i].GoodDeals > out[j].GoodDeals
		}
		return out[i].EntityID < out[j].EntityID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// DiscountSurface is the mean discount per (day, hour) cell. Cells without
// a discount are 0.
func DiscountSurface(obs []Enriched) Surface {
	var c cellCounter
	for _, o := range obs {
		if !math.IsNaN(o.DiscountPercent) {
			c.add(o.DayOfWeek, o.Hour, o.DiscountPercent)
		}
	}
	return c.ratio()
}

// WeekendDealRates returns the good-deal share on weekends and on weekdays.
func WeekendDealRates(obs []Enriched) (weekend, weekday float64) {
	var hits, totals [2]int
	for _, o := range obs {
		i := 1
		if o.IsWeekend {
			i = 0
		}
		totals[i]++
		if o.IsGoodDeal {
			hits[i]++
		}
	}
	return float64(hits[0]) / float64(max(totals[0], 1)), float64(hits[1]) / float64(max(totals[1], 1))
}

// mean accumulates a running average of finite values.
type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	m.sum += v
	m.n++
	return true
}

func (m *mean) value() float64 {
	if m.n == 0 {
		return math.NaN()
	}
	return m.sum / float64(m.n)
}
