package snapshot

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	numberPattern = regexp.MustCompile(`\d+\.?\d*`)
	nonDigits     = regexp.MustCompile(`[^0-9]`)
	spaces        = regexp.MustCompile(`\s+`)
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// CleanPrice parses a scraped price such as "12,90 €". Unparsable input
// yields NaN.
func CleanPrice(raw string) float64 {
	s := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(raw, "€", ""), ",", "."))
	m := numberPattern.FindString(s)
	if m == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// ParseReviews keeps only the digits of a review count ("1.234 Bewertungen").
func ParseReviews(raw string) *int {
	digits := nonDigits.ReplaceAllString(raw, "")
	if digits == "" {
		return nil
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return nil
	}
	return &n
}

// ParseRating parses a decimal rating, accepting a comma separator.
func ParseRating(raw string) *float64 {
	s := strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return nil
	}
	return &v
}

// ParseTime parses the scraper timestamp and returns it in UTC.
func ParseTime(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse fetched_at %q: unsupported layout", raw)
}

// ParseVariants parses "0069-NAVY: S, M | 0009-BLACK: L" into variants.
// Empty, Unknown and Unavailable lists yield nil.
func ParseVariants(raw string) []Variant {
	s := strings.TrimSpace(spaces.ReplaceAllString(raw, " "))
	switch strings.ToLower(s) {
	case "", "unavailable", "unknown":
		return nil
	}

	var out []Variant
	for _, block := range strings.Split(s, "|") {
		block = strings.TrimSpace(block)
		colorPart, sizesPart, ok := strings.Cut(block, ":")
		if !ok {
			continue
		}
		colorPart = strings.TrimSpace(colorPart)
		code, name, found := strings.Cut(colorPart, "-")
		if !found {
			name = colorPart
		}

		var sizes []string
		for _, size := range strings.Split(sizesPart, ",") {
			if size = strings.TrimSpace(size); size != "" {
				sizes = append(sizes, size)
			}
		}
		if len(sizes) == 0 {
			continue
		}
		out = append(out, Variant{ColorCode: code, ColorName: name, Sizes: sizes})
	}
	return out
}

// DetectGender returns the first gender whose keyword occurs in the URL.
// Genders are checked in lexical order; no match yields "unknown".
func DetectGender(rawURL string, keywords map[string][]string) string {
	lower := strings.ToLower(rawURL)
	genders := make([]string, 0, len(keywords))
	for g := range keywords {
		genders = append(genders, g)
	}
	sort.Strings(genders)

	for _, g := range genders {
		for _, kw := range keywords[g] {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return g
			}
		}
	}
	return "unknown"
}
