package analysis

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultHorizonDays is the forecast length used when none is given.
	DefaultHorizonDays = 30
	// DefaultDegree is the polynomial degree used when none is given.
	DefaultDegree = 2

	// z-score of a two-tailed 80% interval.
	confidenceZ = 1.2816
	// slope threshold in price units per day.
	trendSlope = 0.05

	minForecastPoints = 3
)

// Trend labels.
const (
	TrendFalling = "falling"
	TrendRising  = "rising"
	TrendStable  = "stable"
)

// ForecastOptions tune PredictPrice.
type ForecastOptions struct {
	HorizonDays int
	Degree      int
}

// Forecast is a polynomial price projection with an 80% band.
type Forecast struct {
	Dates  []time.Time
	Prices []float64
	Lower  []float64
	Upper  []float64

	CurrentPrice         float64
	MinPriceEver         float64
	ExpectedMinInHorizon float64
	Trend                string
	Std                  float64

	Degree int
	Points int
}

// PredictPrice fits a least-squares polynomial to the series and projects it
// HorizonDays ahead. It returns nil without error when fewer than three
// distinct (timestamp, price) pairs are available. The band width is constant
// over the horizon.
func PredictPrice(series []Observation, opts ForecastOptions) (*Forecast, error) {
	horizon := opts.HorizonDays
	if horizon <= 0 {
		horizon = DefaultHorizonDays
	}
	degree := opts.Degree
	if degree <= 0 {
		degree = DefaultDegree
	}

	points := dedupeSeries(series)
	if len(points) < minForecastPoints {
		return nil, nil
	}

	start := points[0].ObservedAt
	x := make([]float64, len(points))
	y := make([]float64, len(points))
	distinct := make(map[float64]struct{}, len(points))
	for i, p := range points {
		x[i] = daysBetween(start, p.ObservedAt)
		y[i] = p.PromoPrice
		distinct[x[i]] = struct{}{}
	}

	degree = min(degree, len(points)-1, len(distinct)-1)
	if degree < 1 {
		// every observation shares one timestamp
		return nil, nil
	}

	coeffs, err := polyfit(x, y, degree)
	if err != nil {
		return nil, fmt.Errorf("fit price trend: %w", err)
	}

	residuals := make([]float64, len(x))
	for i := range x {
		residuals[i] = y[i] - polyval(coeffs, x[i])
	}
	std := stat.PopStdDev(residuals, nil)

	lastDay := floats.Max(x)
	lastSeen := points[len(points)-1].ObservedAt

	f := &Forecast{
		Dates:        make([]time.Time, horizon),
		Prices:       make([]float64, horizon),
		Lower:        make([]float64, horizon),
		Upper:        make([]float64, horizon),
		CurrentPrice: y[len(y)-1],
		MinPriceEver: floats.Min(y),
		Std:          std,
		Degree:       degree,
		Points:       len(points),
	}

	band := confidenceZ * std
	for i := 0; i < horizon; i++ {
		price := polyval(coeffs, lastDay+float64(i+1))
		f.Dates[i] = lastSeen.AddDate(0, 0, i+1)
		f.Prices[i] = price
		f.Lower[i] = price - band
		f.Upper[i] = price + band
	}
	f.ExpectedMinInHorizon = floats.Min(f.Prices)
	f.Trend = trendLabel(polyder(coeffs, lastDay))

	return f, nil
}

// dedupeSeries sorts by time, drops NaN prices and exact duplicate
// (timestamp, price) pairs keeping the first.
func dedupeSeries(series []Observation) []Observation {
	sorted := make([]Observation, 0, len(series))
	for _, o := range series {
		if math.IsNaN(o.PromoPrice) {
			continue
		}
		sorted = append(sorted, o)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ObservedAt.Before(sorted[j].ObservedAt)
	})

	type pair struct {
		ts    int64
		price float64
	}
	seen := make(map[pair]struct{}, len(sorted))
	out := sorted[:0]
	for _, o := range sorted {
		k := pair{ts: o.ObservedAt.UnixNano(), price: o.PromoPrice}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, o)
	}
	return out
}

// polyfit returns coefficients c[0..degree] of c0 + c1*x + ... minimising
// squared error.
func polyfit(x, y []float64, degree int) ([]float64, error) {
	n := len(x)
	a := mat.NewDense(n, degree+1, nil)
	for i, xi := range x {
		v := 1.0
		for j := 0; j <= degree; j++ {
			a.Set(i, j, v)
			v *= xi
		}
	}

	var qr mat.QR
	qr.Factorize(a)

	var coef mat.VecDense
	if err := qr.SolveVecTo(&coef, false, mat.NewVecDense(n, append([]float64(nil), y...))); err != nil {
		return nil, err
	}
	return coef.RawVector().Data, nil
}

func polyval(c []float64, x float64) float64 {
	v := 0.0
	for j := len(c) - 1; j >= 0; j-- {
		v = v*x + c[j]
	}
	return v
}

func polyder(c []float64, x float64) float64 {
	v := 0.0
	for j := len(c) - 1; j >= 1; j-- {
		v = v*x + float64(j)*c[j]
	}
	return v
}

func trendLabel(slope float64) string {
	switch {
	case slope < -trendSlope:
		return TrendFalling
	case slope > trendSlope:
		return TrendRising
	default:
		return TrendStable
	}
}
