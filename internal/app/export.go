package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"dealwatcher/internal/analysis"
)

// Export renders a price history and its forecast as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.History.ProductID == "" {
		return errors.New("product id is required")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	obs, err := a.loadHistory(ctx, opts.History)
	if err != nil {
		return err
	}

	forecast, err := analysis.PredictPrice(obs, a.Config.ForecastOptions())
	if err != nil {
		return err
	}

	downsampled := downsampleObservations(obs, opts.MaxPoints)
	a.Logger.Info().Int("total", len(obs)).Int("exported", len(downsampled)).Bool("forecast", forecast != nil).Msg("exporting history")

	if opts.CSVPath != "" {
		if err := writeHistoryCSV(opts.CSVPath, downsampled, forecast); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeHistoryPNG(opts.PNGPath, downsampled, forecast); err != nil {
			return err
		}
	}

	return nil
}

func downsampleObservations(obs []analysis.Observation, max int) []analysis.Observation {
	if max <= 0 || len(obs) <= max {
		return obs
	}
	if max == 1 {
		return obs[len(obs)-1:]
	}

	result := make([]analysis.Observation, 0, max)
	step := float64(len(obs)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(obs) {
			idx = len(obs) - 1
		}
		result = append(result, obs[idx])
	}
	return result
}

func writeHistoryCSV(path string, obs []analysis.Observation, forecast *analysis.Forecast) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"kind", "timestamp", "product_id", "color", "size", "promo_price", "original_price", "discount_pct", "tier", "lower", "upper"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, o := range obs {
		record := []string{
			"observed",
			o.ObservedAt.UTC().Format(time.RFC3339),
			o.EntityID,
			o.Color,
			o.Size,
			formatFloat(o.PromoPrice, 2),
			formatFloat(o.OriginalPrice, 2),
			formatFloat(o.DiscountPercent, 1),
			o.Tier,
			"",
			"",
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	if forecast != nil {
		id := ""
		if len(obs) > 0 {
			id = obs[0].EntityID
		}
		for i, d := range forecast.Dates {
			record := []string{
				"forecast",
				d.UTC().Format(time.RFC3339),
				id,
				"",
				"",
				formatFloat(forecast.Prices[i], 2),
				"",
				"",
				"",
				formatFloat(forecast.Lower[i], 2),
				formatFloat(forecast.Upper[i], 2),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	return writer.Error()
}

func writeHistoryPNG(path string, obs []analysis.Observation, forecast *analysis.Forecast) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, 0, len(obs))
	promo := make([]float64, 0, len(obs))
	for _, o := range obs {
		if math.IsNaN(o.PromoPrice) {
			continue
		}
		x = append(x, o.ObservedAt)
		promo = append(promo, o.PromoPrice)
	}
	if len(x) < 2 {
		return errors.New("not enough observations to plot")
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	series := []chart.Series{
		chart.TimeSeries{
			Name:    "Promo price",
			XValues: x,
			YValues: promo,
		},
	}
	if forecast != nil {
		series = append(series,
			chart.TimeSeries{
				Name:    "Forecast",
				XValues: forecast.Dates,
				YValues: forecast.Prices,
				Style:   chart.Style{StrokeDashArray: []float64{5, 5}},
			},
			chart.TimeSeries{
				Name:    "Lower 80%",
				XValues: forecast.Dates,
				YValues: forecast.Lower,
				Style:   chart.Style{StrokeColor: chart.ColorAlternateGray},
			},
			chart.TimeSeries{
				Name:    "Upper 80%",
				XValues: forecast.Dates,
				YValues: forecast.Upper,
				Style:   chart.Style{StrokeColor: chart.ColorAlternateGray},
			},
		)
	}

	graph := chart.Chart{
		Title:  obs[0].Name,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price",
			ValueFormatter: priceFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func formatFloat(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

func formatOptional(v *float64, places int32) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v, places)
}

func formatCount(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
