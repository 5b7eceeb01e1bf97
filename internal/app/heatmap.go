package app

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"dealwatcher/internal/analysis"
)

// HeatmapOptions configure the heatmap command.
type HeatmapOptions struct {
	History HistoryOptions
	// Drops adds the drop-rate and average drop surfaces.
	Drops bool
}

// HeatmapReport holds the timing surfaces of an observation set.
type HeatmapReport struct {
	Observations int
	Deal         analysis.Surface
	AvgDiscount  analysis.Surface
	Best         analysis.Recommendation
	WeekendRate  float64
	WeekdayRate  float64
	Drops        *analysis.DropSurfaces
	BestDrop     *analysis.Recommendation
}

// Heatmap prints when good deals and price drops tend to appear.
func (a *App) Heatmap(ctx context.Context, opts HeatmapOptions) error {
	obs, err := a.loadHistory(ctx, opts.History)
	if err != nil {
		return err
	}

	report := BuildHeatmap(obs, a.Config.Ruleset(), opts.Drops)
	a.Logger.Info().Int("observations", report.Observations).
		Int("best_day", report.Best.Day).
		Int("best_hour", report.Best.Hour).
		Msg("heatmap computed")

	return WriteHeatmap(a.Out, report)
}

// BuildHeatmap enriches observations and derives the deal surface and,
// optionally, the sequential drop surfaces.
func BuildHeatmap(obs []analysis.Observation, rules analysis.Ruleset, drops bool) HeatmapReport {
	enriched := analysis.Enrich(obs, rules)
	deal := analysis.DealProbability(enriched)
	report := HeatmapReport{
		Observations: len(obs),
		Deal:         deal,
		AvgDiscount:  analysis.DiscountSurface(enriched),
		Best:         analysis.BestTimeToBuy(deal),
	}
	report.WeekendRate, report.WeekdayRate = analysis.WeekendDealRates(enriched)
	if drops {
		ds := analysis.AnalyzeDrops(obs)
		best := analysis.BestTimeToBuy(ds.Rate)
		report.Drops = &ds
		report.BestDrop = &best
	}
	return report
}

// WriteHeatmap prints every surface as an hour by weekday grid.
func WriteHeatmap(out io.Writer, r HeatmapReport) error {
	fmt.Fprintf(out, "Observations: %d\n", r.Observations)

	if err := writeSurface(out, "P(good deal)", r.Deal, "%.2f"); err != nil {
		return err
	}
	fmt.Fprintf(out, "Best time to buy: %s %02d:00 (p=%.3f)\n", r.Best.DayName, r.Best.Hour, r.Best.Probability)
	fmt.Fprintf(out, "Good deals: weekend %.1f%%, weekday %.1f%%\n", r.WeekendRate*100, r.WeekdayRate*100)

	if err := writeSurface(out, "Avg discount %", r.AvgDiscount, "%.1f"); err != nil {
		return err
	}

	if r.Drops != nil {
		if err := writeSurface(out, "P(price drop)", r.Drops.Rate, "%.2f"); err != nil {
			return err
		}
		if err := writeSurface(out, "Avg drop %", r.Drops.AvgDropPct, "%.1f"); err != nil {
			return err
		}
		dropped := 0
		for _, e := range r.Drops.Events {
			if e.Dropped {
				dropped++
			}
		}
		fmt.Fprintf(out, "Drops: %d of %d transitions\n", dropped, len(r.Drops.Events))
		if r.BestDrop != nil {
			fmt.Fprintf(out, "Most likely drop: %s %02d:00 (p=%.3f)\n", r.BestDrop.DayName, r.BestDrop.Hour, r.BestDrop.Probability)
		}
	}
	return nil
}

func writeSurface(out io.Writer, title string, s analysis.Surface, format string) error {
	fmt.Fprintf(out, "\n%s (max "+format+")\n", title, s.Max())

	writer := tabwriter.NewWriter(out, 0, 4, 1, ' ', tabwriter.AlignRight)
	fmt.Fprintf(writer, "Hour\t%s\t\n", strings.Join(analysis.DayNames[:], "\t"))
	for h := 0; h < 24; h++ {
		cells := make([]string, 7)
		for d := 0; d < 7; d++ {
			v := s.At(d, h)
			if math.IsNaN(v) {
				cells[d] = "-"
				continue
			}
			cells[d] = fmt.Sprintf(format, v)
		}
		fmt.Fprintf(writer, "%02d\t%s\t\n", h, strings.Join(cells, "\t"))
	}
	return writer.Flush()
}
