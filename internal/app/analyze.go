package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"dealwatcher/internal/analysis"
)

// VariantForecast pairs a variant with its projection. Forecast is nil when
// the variant has too little history.
type VariantForecast struct {
	Key      analysis.VariantKey
	Samples  int
	Forecast *analysis.Forecast
}

// AnalysisReport summarises the price outlook of one product.
type AnalysisReport struct {
	ProductID    string
	Name         string
	Observations int
	Overall      *analysis.Forecast
	Variants     []VariantForecast
	Target       *float64
	Drop         *analysis.DropProbability
}

// Analyze forecasts a product's price and, given a target, the chance of
// reaching it.
func (a *App) Analyze(ctx context.Context, opts AnalyzeOptions) error {
	if opts.History.ProductID == "" {
		return errors.New("product id is required")
	}

	obs, err := a.loadHistory(ctx, opts.History)
	if err != nil {
		return err
	}

	fopts := a.Config.ForecastOptions()
	if opts.HorizonDays > 0 {
		fopts.HorizonDays = opts.HorizonDays
	}
	if opts.Degree > 0 {
		fopts.Degree = opts.Degree
	}

	report, err := BuildAnalysis(ctx, obs, fopts, opts.Target, a.Config.Analysis.Workers)
	if err != nil {
		return err
	}
	a.Logger.Info().Str("product", report.ProductID).
		Int("observations", report.Observations).
		Int("variants", len(report.Variants)).
		Msg("analysis complete")

	return WriteAnalysis(a.Out, report)
}

// BuildAnalysis fits the overall series and every variant series, the
// latter concurrently with at most workers goroutines.
func BuildAnalysis(ctx context.Context, obs []analysis.Observation, opts analysis.ForecastOptions, target *float64, workers int) (AnalysisReport, error) {
	if len(obs) == 0 {
		return AnalysisReport{}, ErrNoHistory
	}

	report := AnalysisReport{
		ProductID:    obs[0].EntityID,
		Name:         obs[0].Name,
		Observations: len(obs),
		Target:       target,
	}

	overall, err := analysis.PredictPrice(obs, opts)
	if err != nil {
		return AnalysisReport{}, err
	}
	report.Overall = overall

	keys, groups := analysis.GroupByVariant(obs)
	report.Variants = make([]VariantForecast, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, key := range keys {
		i, key := i, key
		series := groups[key]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := analysis.PredictPrice(series, opts)
			if err != nil {
				return fmt.Errorf("forecast %s/%s/%s: %w", key.EntityID, key.Color, key.Size, err)
			}
			report.Variants[i] = VariantForecast{Key: key, Samples: len(series), Forecast: f}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return AnalysisReport{}, err
	}

	if target != nil {
		drop := analysis.PriceDropProbability(analysis.Prices(obs), *target)
		report.Drop = &drop
	}
	return report, nil
}

// WriteAnalysis prints the report as aligned text.
func WriteAnalysis(out io.Writer, r AnalysisReport) error {
	fmt.Fprintf(out, "Product: %s %s (%d observations)\n", r.ProductID, r.Name, r.Observations)

	if r.Overall == nil {
		fmt.Fprintln(out, "Forecast: not enough data")
	} else {
		f := r.Overall
		fmt.Fprintf(out, "Current: %s  Min ever: %s  Expected min (%dd): %s  Trend: %s  Std: %s\n",
			money(f.CurrentPrice), money(f.MinPriceEver), len(f.Prices),
			money(f.ExpectedMinInHorizon), f.Trend, money(f.Std))
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Color\tSize\tSamples\tCurrent\tExpected Min\tLower\tUpper\tTrend")
	for _, v := range r.Variants {
		if v.Forecast == nil {
			fmt.Fprintf(writer, "%s\t%s\t%d\t-\t-\t-\t-\tn/a\n", v.Key.Color, v.Key.Size, v.Samples)
			continue
		}
		f := v.Forecast
		last := len(f.Prices) - 1
		fmt.Fprintf(writer, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			v.Key.Color, v.Key.Size, v.Samples,
			money(f.CurrentPrice), money(f.ExpectedMinInHorizon),
			money(f.Lower[last]), money(f.Upper[last]), f.Trend)
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	if r.Drop != nil && r.Target != nil {
		d := r.Drop
		hmin := "-"
		if d.HistoricalMin != nil {
			hmin = money(*d.HistoricalMin)
		}
		fmt.Fprintf(out, "Target %s: probability %.3f, below target %.1f%%, historical min %s, mean %s (%d samples)\n",
			money(*r.Target), d.Probability, d.PctBelowTarget*100, hmin, money(d.HistoricalMean), d.Samples)
	}
	return nil
}

func money(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}
