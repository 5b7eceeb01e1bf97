package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrichDerivesCalendarFields(t *testing.T) {
	obs := []Observation{
		{EntityID: "A", ObservedAt: time.Date(2025, time.January, 5, 18, 0, 0, 0, time.UTC), Tier: TierGoodDeal},
		{EntityID: "A", ObservedAt: time.Date(2025, time.January, 4, 6, 0, 0, 0, time.UTC), Tier: TierSkip},
		{EntityID: "B", ObservedAt: time.Date(2025, time.July, 9, 12, 0, 0, 0, time.UTC), Tier: "SUPER"},
	}

	got := Enrich(obs, DefaultRuleset())
	require.Len(t, got, 3)

	assert.Equal(t, 0, got[0].DayOfWeek)
	assert.Equal(t, "Sun", got[0].DayName)
	assert.Equal(t, "Jan", got[0].MonthName)
	assert.Equal(t, "Winter", got[0].Season)
	assert.True(t, got[0].IsWeekend)
	assert.True(t, got[0].IsGoodDeal)
	assert.InDelta(t, 1.5, got[0].DaysSinceStart, 1e-9)

	assert.Equal(t, "Sat", got[1].DayName)
	assert.True(t, got[1].IsWeekend)
	assert.False(t, got[1].IsGoodDeal)
	assert.Zero(t, got[1].DaysSinceStart)

	assert.Equal(t, "Wed", got[2].DayName)
	assert.Equal(t, 7, got[2].Month)
	assert.Equal(t, 12, got[2].Hour)
	assert.Equal(t, "Summer", got[2].Season)
	assert.False(t, got[2].IsWeekend)
	assert.False(t, got[2].IsGoodDeal)
}

func TestSeasonMapping(t *testing.T) {
	want := map[time.Month]string{
		time.December: "Winter", time.February: "Winter",
		time.March: "Spring", time.May: "Spring",
		time.June: "Summer", time.August: "Summer",
		time.September: "Autumn", time.November: "Autumn",
	}
	for m, season := range want {
		assert.Equal(t, season, Season(m), m.String())
	}
}

func TestEnrichEmpty(t *testing.T) {
	assert.Empty(t, Enrich(nil, DefaultRuleset()))
}

func TestEnrichBucketsInUTC(t *testing.T) {
	instant := time.Date(2025, time.March, 3, 23, 30, 0, 0, time.UTC)
	berlin := time.FixedZone("CET", 3600)
	obs := []Observation{
		{EntityID: "A", ObservedAt: instant},
		{EntityID: "A", ObservedAt: instant.In(berlin)},
	}

	got := Enrich(obs, DefaultRuleset())
	for _, e := range got {
		assert.Equal(t, 1, e.DayOfWeek)
		assert.Equal(t, 23, e.Hour)
	}
}
