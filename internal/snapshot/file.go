package snapshot

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// column aliases, raw scraper output first, cleaned CSV second.
var columns = map[string][]string{
	"id":        {"Product ID"},
	"name":      {"Product Name"},
	"url":       {"Product URL"},
	"variants":  {"Color Variant URLs"},
	"promo":     {"Price (Promo)", "Promo Price"},
	"original":  {"Price (Original)", "Original Price"},
	"rating":    {"Rating"},
	"reviews":   {"Reviews"},
	"fetchedAt": {"Fetched At"},
	"sizes":     {"Available Sizes"},
}

var requiredColumns = []string{"id", "promo", "original", "fetchedAt"}

// FileOptions parameterise the CSV snapshot source.
type FileOptions struct {
	Path           string
	GenderKeywords map[string][]string
}

// FileSource reads a scraper CSV snapshot from disk.
type FileSource struct {
	opts   FileOptions
	logger zerolog.Logger
}

// NewFileSource constructs a CSV snapshot source.
func NewFileSource(opts FileOptions, logger zerolog.Logger) *FileSource {
	return &FileSource{opts: opts, logger: logger.With().Str("component", "snapshot_file").Logger()}
}

// Fetch reads and parses the configured CSV file.
func (f *FileSource) Fetch(ctx context.Context) ([]Row, error) {
	if f.opts.Path == "" {
		return nil, errors.New("snapshot path not configured")
	}

	file, err := os.Open(f.opts.Path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	rows, skipped, err := Read(ctx, file, f.opts.GenderKeywords)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		f.logger.Warn().Int("skipped", skipped).Str("path", f.opts.Path).Msg("snapshot rows skipped")
	}
	f.logger.Debug().Int("rows", len(rows)).Str("path", f.opts.Path).Msg("snapshot loaded")
	return rows, nil
}

// Read parses a CSV snapshot. Rows without a product id or a parsable
// timestamp are skipped and counted.
func Read(ctx context.Context, r io.Reader, genderKeywords map[string][]string) ([]Row, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, ErrNoRows
		}
		return nil, 0, fmt.Errorf("read snapshot header: %w", err)
	}

	idx := indexColumns(header)
	for _, name := range requiredColumns {
		if _, ok := idx[name]; !ok {
			return nil, 0, fmt.Errorf("snapshot missing column %q", columns[name][0])
		}
	}

	var (
		rows    []Row
		skipped int
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, skipped, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("read snapshot record: %w", err)
		}

		get := func(name string) string {
			i, ok := idx[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		id := get("id")
		fetchedAt, terr := ParseTime(get("fetchedAt"))
		if id == "" || terr != nil {
			skipped++
			continue
		}

		row := Row{
			ProductID:     id,
			Name:          get("name"),
			URL:           get("url"),
			PromoPrice:    CleanPrice(get("promo")),
			OriginalPrice: CleanPrice(get("original")),
			Rating:        ParseRating(get("rating")),
			Reviews:       ParseReviews(get("reviews")),
			FetchedAt:     fetchedAt,
			Sizes:         get("sizes"),
		}
		row.VariantURL = row.URL
		if v := get("variants"); v != "" {
			row.VariantURL = strings.TrimSpace(strings.Split(v, "|")[0])
		}
		row.Variants = ParseVariants(row.Sizes)
		row.Gender = DetectGender(row.URL, genderKeywords)

		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, skipped, ErrNoRows
	}
	return rows, skipped, nil
}

func indexColumns(header []string) map[string]int {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}

	idx := make(map[string]int, len(columns))
	for key, aliases := range columns {
		for _, alias := range aliases {
			if i, ok := pos[alias]; ok {
				idx[key] = i
				break
			}
		}
	}
	return idx
}

var _ Source = (*FileSource)(nil)
