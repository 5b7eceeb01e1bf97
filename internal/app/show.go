package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"dealwatcher/internal/analysis"
)

// Show prints the most recent observations.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show observations")
	}
	if closeStore != nil {
		defer closeStore()
	}

	obs, err := store.ListRecentObservations(ctx, a.Config.App.Country, opts.Limit)
	if err != nil {
		return err
	}
	return WriteObservations(a.Out, obs)
}

// WriteObservations prints observations as an aligned table.
func WriteObservations(out io.Writer, obs []analysis.Observation) error {
	if len(obs) == 0 {
		fmt.Fprintln(out, "no observations found")
		return nil
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tProduct\tName\tColor\tSize\tPromo\tOriginal\tDiscount%\tRating\tReviews\tTier")

	for _, o := range obs {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.ObservedAt.UTC().Format(time.RFC3339),
			o.EntityID,
			sanitizeInline(o.Name),
			o.Color,
			o.Size,
			formatFloat(o.PromoPrice, 2),
			formatFloat(o.OriginalPrice, 2),
			formatFloat(o.DiscountPercent, 1),
			formatOptional(o.Rating, 1),
			formatCount(o.ReviewCount),
			o.Tier,
		)
	}

	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.ReplaceAll(cleaned, "\t", " ")
	return cleaned
}
