package snapshot

import (
	"context"
	"errors"
	"math"
	"net/url"
	"time"

	"dealwatcher/internal/analysis"
)

// ErrNoRows indicates a snapshot without any usable product row.
var ErrNoRows = errors.New("snapshot: no rows")

// UnknownSize marks observations whose size list could not be scraped.
const UnknownSize = "Unknown"

// Source yields the rows of the latest catalog snapshot.
type Source interface {
	Fetch(ctx context.Context) ([]Row, error)
}

// Variant is one colour of a product with its available sizes.
type Variant struct {
	ColorCode string
	ColorName string
	Sizes     []string
}

// Row is one product line of a scraper snapshot.
type Row struct {
	ProductID     string
	Name          string
	URL           string
	VariantURL    string
	Gender        string
	PromoPrice    float64
	OriginalPrice float64
	Rating        *float64
	Reviews       *int
	FetchedAt     time.Time
	Sizes         string
	Variants      []Variant
}

// Discount returns the discount percent of the row.
func (r Row) Discount() float64 {
	if math.IsNaN(r.PromoPrice) || math.IsNaN(r.OriginalPrice) {
		return math.NaN()
	}
	return analysis.DiscountPercent(r.PromoPrice, r.OriginalPrice)
}

// Observations expands the row into one observation per colour and size.
// Rows without a parsable size list produce a single observation sized
// UnknownSize in the colour taken from the variant URL.
func (r Row) Observations() []analysis.Observation {
	base := analysis.Observation{
		EntityID:        r.ProductID,
		Name:            r.Name,
		URL:             r.URL,
		Gender:          r.Gender,
		ObservedAt:      r.FetchedAt,
		PromoPrice:      r.PromoPrice,
		OriginalPrice:   r.OriginalPrice,
		DiscountPercent: r.Discount(),
		Rating:          r.Rating,
		ReviewCount:     r.Reviews,
	}

	if len(r.Variants) == 0 {
		o := base
		o.Color = colorFromURL(r.VariantURL)
		o.Size = UnknownSize
		return []analysis.Observation{o}
	}

	out := make([]analysis.Observation, 0, len(r.Variants)*4)
	for _, v := range r.Variants {
		for _, size := range v.Sizes {
			o := base
			o.Color = v.ColorCode
			o.Size = size
			out = append(out, o)
		}
	}
	return out
}

// colorFromURL extracts colorDisplayCode from a product URL.
func colorFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Query().Get("colorDisplayCode")
}
