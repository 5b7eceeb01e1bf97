package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aggregateFixture() []Enriched {
	jan := func(day, hour int) time.Time { return time.Date(2025, time.January, day, hour, 0, 0, 0, time.UTC) }
	obs := []Observation{
		{EntityID: "A", Name: "Tee", Size: "M", ObservedAt: jan(6, 9), PromoPrice: 9.9, DiscountPercent: 50, Rating: ptrF(4.5), ReviewCount: ptrI(10), Tier: TierSteal},
		{EntityID: "A", Name: "Tee", Size: "M", ObservedAt: jan(7, 9), PromoPrice: 7.9, DiscountPercent: 60, Rating: ptrF(4.6), ReviewCount: ptrI(14), Tier: TierSteal},
		{EntityID: "A", Name: "Tee", Size: "L", ObservedAt: jan(7, 9), PromoPrice: math.NaN(), DiscountPercent: math.NaN(), Tier: TierSkip},
		{EntityID: "B", Name: "Shirt", Size: "M", ObservedAt: jan(11, 14), PromoPrice: 19.9, DiscountPercent: 20, Tier: TierGoodDeal},
		{EntityID: "C", Name: "Sock", Size: "M", ObservedAt: jan(13, 10), PromoPrice: 2.9, DiscountPercent: 10, Tier: TierOK},
	}
	return Enrich(obs, DefaultRuleset())
}

func TestSeasonalBuckets(t *testing.T) {
	rows := Seasonal(aggregateFixture())
	require.Len(t, rows, 3)

	// 2025-01-06 and 2025-01-07 fall in ISO week 2, 2025-01-11 too, 2025-01-13 in week 3
	first := rows[0]
	assert.Equal(t, 2025, first.Year)
	assert.Equal(t, 2, first.Week)
	assert.Equal(t, "L", first.Size)
	assert.Equal(t, "Jan", first.MonthName)
	assert.Equal(t, "Winter", first.Season)
	assert.Equal(t, 1, first.Observations)
	assert.True(t, math.IsNaN(first.AvgPrice))
	assert.True(t, math.IsNaN(first.MinPrice))

	week2M := rows[1]
	assert.Equal(t, "M", week2M.Size)
	assert.Equal(t, 3, week2M.Observations)
	assert.Equal(t, 3, week2M.GoodDeals)
	assert.Equal(t, 7.9, week2M.MinPrice)
	assert.InDelta(t, (9.9+7.9+19.9)/3, week2M.AvgPrice, 1e-9)
	assert.InDelta(t, 130.0/3, week2M.AvgDiscount, 1e-9)
	assert.Equal(t, 1.0, week2M.DealRate())

	assert.Equal(t, 3, rows[2].Week)
	assert.Zero(t, rows[2].DealRate())
}

func TestTopProductsRanking(t *testing.T) {
	top := TopProducts(aggregateFixture(), 0)
	require.Len(t, top, 3)

	a := top[0]
	assert.Equal(t, "A", a.EntityID)
	assert.Equal(t, 3, a.Observations)
	assert.Equal(t, 2, a.GoodDeals)
	assert.Equal(t, 7.9, a.MinPrice)
	assert.InDelta(t, 8.9, a.AvgPrice, 1e-9)
	assert.Equal(t, 60.0, a.MaxDiscount)
	assert.InDelta(t, 55.0, a.AvgDiscount, 1e-9)
	require.NotNil(t, a.AvgRating)
	assert.Equal(t, 4.55, *a.AvgRating)
	require.NotNil(t, a.MaxReviews)
	assert.Equal(t, 14, *a.MaxReviews)
	assert.InDelta(t, 1.0, a.TrackedDays, 1e-9)

	assert.Equal(t, "B", top[1].EntityID)
	assert.Equal(t, "C", top[2].EntityID)
	assert.Nil(t, top[2].AvgRating)
	assert.Nil(t, top[2].MaxReviews)

	assert.Len(t, TopProducts(aggregateFixture(), 1), 1)
}

func TestDiscountSurfaceAndWeekendRates(t *testing.T) {
	obs := aggregateFixture()

	s := DiscountSurface(obs)
	// Mon 09:00 and Tue 09:00 hold A's priced observations
	assert.Equal(t, 50.0, s[1][9])
	assert.Equal(t, 60.0, s[2][9])
	assert.Equal(t, 20.0, s[6][14])
	assert.Zero(t, s[0][0])

	weekend, weekday := WeekendDealRates(obs)
	assert.Equal(t, 1.0, weekend)
	assert.Equal(t, 0.5, weekday)

	weekend, weekday = WeekendDealRates(nil)
	assert.Zero(t, weekend)
	assert.Zero(t, weekday)
}
