package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealwatcher/internal/analysis"
	"dealwatcher/internal/config"
	"dealwatcher/internal/storage"
)

const snapshotHeader = "Product ID,Product Name,Product URL,Price (Promo),Price (Original),Rating,Reviews,Fetched At,Available Sizes,Color Variant URLs\n"

func testApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	cfg := &config.Config{
		App:       config.AppConfig{Country: "de"},
		Scheduler: config.SchedulerConfig{Interval: 6 * time.Hour},
		Snapshot:  config.SnapshotConfig{GenderKeywords: map[string][]string{"women": {"damen"}}},
		Analysis:  config.AnalysisConfig{HorizonDays: 30, Degree: 2, Workers: 2},
		Digest:    config.DigestConfig{MaxItems: 40, MinDiscount: 35},
		Export:    config.ExportConfig{MaxDataPoints: 1000},
	}
	var buf bytes.Buffer
	a := NewApp(cfg, zerolog.Nop())
	a.Out = &buf
	return a, &buf
}

// writeSnapshots writes one CSV per day with a steadily falling price.
func writeSnapshots(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	prices := []string{"59,90", "49,90", "39,90", "29,90"}
	for i, p := range prices {
		fetched := time.Date(2025, time.March, 3+i, 10, 0, 0, 0, time.UTC).Format("2006-01-02 15:04:05")
		row := fmt.Sprintf("P1,Damen Tee,https://shop.example/damen/P1,\"%s €\",\"59,90 €\",4.5,20,%s,09-BLACK: M,https://shop.example/damen/P1?colorDisplayCode=09\n", p, fetched)
		path := filepath.Join(dir, fmt.Sprintf("snapshot-%d.csv", i))
		require.NoError(t, os.WriteFile(path, []byte(snapshotHeader+row), 0o600))
	}
	return filepath.Join(dir, "*.csv")
}

func TestAnalyzeFromSnapshots(t *testing.T) {
	a, out := testApp(t)
	target := 30.0

	err := a.Analyze(context.Background(), AnalyzeOptions{
		History: HistoryOptions{ProductID: "P1", Snapshots: writeSnapshots(t)},
		Target:  &target,
	})
	require.NoError(t, err)

	report := out.String()
	assert.Contains(t, report, "Product: P1 Damen Tee (4 observations)")
	assert.Contains(t, report, "Current: 29.90")
	assert.Contains(t, report, "Trend: falling")
	assert.Contains(t, report, "below target 25.0%")
	assert.Contains(t, report, "09")
}

func TestAnalyzeRequiresProduct(t *testing.T) {
	a, _ := testApp(t)
	assert.Error(t, a.Analyze(context.Background(), AnalyzeOptions{}))
}

func TestAnalyzeWithoutDatabase(t *testing.T) {
	a, _ := testApp(t)
	err := a.Analyze(context.Background(), AnalyzeOptions{History: HistoryOptions{ProductID: "P1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--snapshots")
}

func TestAnalyzeUnknownProduct(t *testing.T) {
	a, _ := testApp(t)
	err := a.Analyze(context.Background(), AnalyzeOptions{History: HistoryOptions{ProductID: "NOPE", Snapshots: writeSnapshots(t)}})
	assert.ErrorIs(t, err, ErrNoHistory)
}

func TestBuildAnalysisShortVariant(t *testing.T) {
	base := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)
	obs := []analysis.Observation{
		{EntityID: "P", Color: "01", Size: "M", ObservedAt: base, PromoPrice: 10},
		{EntityID: "P", Color: "01", Size: "L", ObservedAt: base, PromoPrice: 12},
	}

	report, err := BuildAnalysis(context.Background(), obs, analysis.ForecastOptions{}, nil, 1)
	require.NoError(t, err)
	assert.Nil(t, report.Overall)
	require.Len(t, report.Variants, 2)
	assert.Nil(t, report.Variants[0].Forecast)
	assert.Nil(t, report.Drop)

	var buf bytes.Buffer
	require.NoError(t, WriteAnalysis(&buf, report))
	assert.Contains(t, buf.String(), "Forecast: not enough data")
	assert.Contains(t, buf.String(), "n/a")
}

func TestHeatmapFromSnapshots(t *testing.T) {
	a, out := testApp(t)

	err := a.Heatmap(context.Background(), HeatmapOptions{
		History: HistoryOptions{Snapshots: writeSnapshots(t)},
		Drops:   true,
	})
	require.NoError(t, err)

	report := out.String()
	assert.Contains(t, report, "Observations: 4")
	assert.Contains(t, report, "P(good deal)")
	assert.Contains(t, report, "Best time to buy:")
	assert.Contains(t, report, "Avg discount %")
	assert.Contains(t, report, "Good deals: weekend")
	assert.Contains(t, report, "Drops: 3 of 3 transitions")
	assert.Contains(t, report, "Sun")
}

func TestSeasonalFromSnapshots(t *testing.T) {
	a, out := testApp(t)

	require.NoError(t, a.Seasonal(context.Background(), SeasonalOptions{History: HistoryOptions{Snapshots: writeSnapshots(t)}}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Avg discount%")
	for _, want := range []string{"2025", "10", "Mar", "Spring", "M", "29.90", "44.90"} {
		assert.Contains(t, lines[1], want)
	}
}

func TestTopFromSnapshots(t *testing.T) {
	a, out := testApp(t)

	require.NoError(t, a.Top(context.Background(), TopOptions{History: HistoryOptions{Snapshots: writeSnapshots(t)}, Limit: 5}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	for _, want := range []string{"P1", "Damen Tee", "women", "29.90", "4.50", "20", "3.0"} {
		assert.Contains(t, lines[1], want)
	}
}

func TestExportFromSnapshots(t *testing.T) {
	a, _ := testApp(t)
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "out", "history.csv")
	pngPath := filepath.Join(dir, "out", "history.png")

	err := a.Export(context.Background(), ExportOptions{
		History: HistoryOptions{ProductID: "P1", Snapshots: writeSnapshots(t)},
		CSVPath: csvPath,
		PNGPath: pngPath,
	})
	require.NoError(t, err)

	file, err := os.Open(csvPath)
	require.NoError(t, err)
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1+4+30)
	assert.Equal(t, "observed", records[1][0])
	assert.Equal(t, "59.90", records[1][5])
	assert.Equal(t, "forecast", records[5][0])

	info, err := os.Stat(pngPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestExportRequiresOutput(t *testing.T) {
	a, _ := testApp(t)
	assert.Error(t, a.Export(context.Background(), ExportOptions{History: HistoryOptions{ProductID: "P1"}}))
}

func TestDownsampleObservations(t *testing.T) {
	obs := make([]analysis.Observation, 10)
	for i := range obs {
		obs[i].PromoPrice = float64(i)
	}

	got := downsampleObservations(obs, 4)
	require.Len(t, got, 4)
	assert.Equal(t, 0.0, got[0].PromoPrice)
	assert.Equal(t, 9.0, got[3].PromoPrice)
	assert.Len(t, downsampleObservations(obs, 20), 10)
	assert.Len(t, downsampleObservations(obs, 1), 1)
}

func TestIngestDryRun(t *testing.T) {
	a, out := testApp(t)
	pattern := writeSnapshots(t)
	paths, err := filepath.Glob(pattern)
	require.NoError(t, err)

	require.NoError(t, a.Ingest(context.Background(), IngestOptions{Paths: paths, DryRun: true}))
	assert.Contains(t, out.String(), "Products: 1  Observations: 4")
	assert.Contains(t, out.String(), "Tier")
}

func TestIngestWithoutDatabase(t *testing.T) {
	a, _ := testApp(t)
	assert.Error(t, a.Ingest(context.Background(), IngestOptions{Paths: []string{"x.csv"}}))
}

func TestClassifyPrintsPoints(t *testing.T) {
	a, out := testApp(t)
	rating := 4.8
	reviews := 200

	require.NoError(t, a.Classify(context.Background(), analysis.ClassifierInput{PromoPrice: 9.9, DiscountPercent: 60, Rating: &rating, ReviewCount: &reviews}))
	want := analysis.Classify(analysis.ClassifierInput{PromoPrice: 9.9, DiscountPercent: 60, Rating: &rating, ReviewCount: &reviews}, analysis.DefaultRuleset())
	assert.Contains(t, out.String(), "Tier: "+want.Tier)
	assert.Contains(t, out.String(), fmt.Sprintf("= %d", want.Total))
}

func TestClassifyLegacyRanksAgainstSnapshot(t *testing.T) {
	a, out := testApp(t)
	a.Config.Rules.Preset = "legacy"
	paths, err := filepath.Glob(writeSnapshots(t))
	require.NoError(t, err)
	a.Config.Snapshot.Path = paths[0]
	rating := 4.8
	reviews := 500

	require.NoError(t, a.Classify(context.Background(), analysis.ClassifierInput{PromoPrice: 5.9, DiscountPercent: 80, Rating: &rating, ReviewCount: &reviews}))
	assert.Contains(t, out.String(), "Tier: SUPER (good deal: true)")
	assert.Contains(t, out.String(), "among 2 products")
}

func TestWriteObservations(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteObservations(&buf, nil))
	assert.Contains(t, buf.String(), "no observations found")

	buf.Reset()
	rating := 4.5
	require.NoError(t, WriteObservations(&buf, []analysis.Observation{{
		EntityID:        "P1",
		Name:            "Tee\nwith newline",
		Color:           "09",
		Size:            "M",
		ObservedAt:      time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC),
		PromoPrice:      9.9,
		OriginalPrice:   19.9,
		DiscountPercent: 50.25,
		Rating:          &rating,
		Tier:            analysis.TierSteal,
	}}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "Tee with newline")
	assert.Contains(t, lines[1], "9.90")
	assert.Contains(t, lines[1], "50.3")
	assert.Contains(t, lines[1], "4.5")
}

func TestFilterObservations(t *testing.T) {
	base := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)
	obs := []analysis.Observation{
		{EntityID: "A", Size: "m", Gender: "women", Tier: analysis.TierSteal, ObservedAt: base},
		{EntityID: "A", Size: "XL", Gender: "women", Tier: analysis.TierOK, ObservedAt: base.Add(time.Hour)},
		{EntityID: "B", Size: "M", Gender: "men", Tier: analysis.TierSteal, ObservedAt: base.Add(2 * time.Hour)},
	}

	got := filterObservations(obs, storage.ObservationFilter{Sizes: []string{"M"}, Gender: "Women"})
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].EntityID)

	got = filterObservations(obs, storage.ObservationFilter{Tiers: []string{"steal"}, Since: base.Add(time.Minute)})
	require.Len(t, got, 1)
	assert.Equal(t, "B", got[0].EntityID)

	assert.Len(t, filterObservations(obs, storage.ObservationFilter{Limit: 2}), 2)
}

func TestMigrateWithoutDatabase(t *testing.T) {
	a, _ := testApp(t)
	assert.Error(t, a.Migrate(context.Background()))
}
