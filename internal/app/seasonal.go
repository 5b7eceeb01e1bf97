package app

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"dealwatcher/internal/analysis"
)

// SeasonalOptions configure the seasonal command.
type SeasonalOptions struct {
	History HistoryOptions
}

// TopOptions configure the top command.
type TopOptions struct {
	History HistoryOptions
	Limit   int
}

// Seasonal prints deal counts, discounts and prices per calendar week and size.
func (a *App) Seasonal(ctx context.Context, opts SeasonalOptions) error {
	obs, err := a.loadHistory(ctx, opts.History)
	if err != nil {
		return err
	}

	rows := analysis.Seasonal(analysis.Enrich(obs, a.Config.Ruleset()))
	a.Logger.Info().Int("observations", len(obs)).Int("buckets", len(rows)).Msg("seasonal computed")
	return WriteSeasonal(a.Out, rows)
}

// Top prints the products with the most good-deal observations.
func (a *App) Top(ctx context.Context, opts TopOptions) error {
	obs, err := a.loadHistory(ctx, opts.History)
	if err != nil {
		return err
	}

	products := analysis.TopProducts(analysis.Enrich(obs, a.Config.Ruleset()), opts.Limit)
	a.Logger.Info().Int("observations", len(obs)).Int("products", len(products)).Msg("top products computed")
	return WriteTopProducts(a.Out, products)
}

// WriteSeasonal prints seasonal buckets as an aligned table.
func WriteSeasonal(out io.Writer, rows []analysis.SeasonalRow) error {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Year\tWeek\tMonth\tSeason\tSize\tObs\tGood\tRate%\tAvg discount%\tMin price\tAvg price")
	for _, r := range rows {
		fmt.Fprintf(
			writer,
			"%d\t%02d\t%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s\n",
			r.Year,
			r.Week,
			r.MonthName,
			r.Season,
			r.Size,
			r.Observations,
			r.GoodDeals,
			formatFloat(r.DealRate()*100, 1),
			formatFloat(r.AvgDiscount, 1),
			formatFloat(r.MinPrice, 2),
			formatFloat(r.AvgPrice, 2),
		)
	}
	return writer.Flush()
}

// WriteTopProducts prints the product ranking as an aligned table.
func WriteTopProducts(out io.Writer, products []analysis.TopProduct) error {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "#\tProduct\tName\tGender\tObs\tGood\tMin price\tAvg price\tMax discount%\tAvg discount%\tRating\tReviews\tDays")
	for i, p := range products {
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i+1,
			p.EntityID,
			sanitizeInline(p.Name),
			p.Gender,
			p.Observations,
			p.GoodDeals,
			formatFloat(p.MinPrice, 2),
			formatFloat(p.AvgPrice, 2),
			formatFloat(p.MaxDiscount, 1),
			formatFloat(p.AvgDiscount, 1),
			formatOptional(p.AvgRating, 2),
			formatCount(p.MaxReviews),
			formatFloat(p.TrackedDays, 1),
		)
	}
	return writer.Flush()
}
