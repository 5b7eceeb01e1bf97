package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)

func dailySeries(prices ...float64) []Observation {
	out := make([]Observation, len(prices))
	for i, p := range prices {
		out[i] = Observation{
			EntityID:   "E1",
			Color:      "09",
			Size:       "M",
			ObservedAt: day0.AddDate(0, 0, i),
			PromoPrice: p,
		}
	}
	return out
}

func TestPredictPriceFallingSeries(t *testing.T) {
	f, err := PredictPrice(dailySeries(100, 90, 80, 95, 70), ForecastOptions{HorizonDays: 30, Degree: 2})
	require.NoError(t, err)
	require.NotNil(t, f)

	assert.Equal(t, TrendFalling, f.Trend)
	assert.Equal(t, 70.0, f.MinPriceEver)
	assert.Equal(t, 70.0, f.CurrentPrice)
	assert.Equal(t, 2, f.Degree)
	assert.Equal(t, 5, f.Points)
	assert.Len(t, f.Prices, 30)
	assert.Len(t, f.Dates, 30)
	assert.Equal(t, day0.AddDate(0, 0, 5), f.Dates[0])
	assert.Equal(t, day0.AddDate(0, 0, 34), f.Dates[29])
	assert.Greater(t, f.Std, 0.0)
	assert.LessOrEqual(t, f.ExpectedMinInHorizon, f.Prices[0])
}

func TestPredictPriceBandContainsForecast(t *testing.T) {
	f, err := PredictPrice(dailySeries(29.9, 24.9, 27.9, 19.9, 22.9, 19.9, 14.9), ForecastOptions{HorizonDays: 14})
	require.NoError(t, err)
	require.NotNil(t, f)

	width := f.Upper[0] - f.Lower[0]
	for i := range f.Prices {
		assert.LessOrEqual(t, f.Lower[i], f.Prices[i])
		assert.LessOrEqual(t, f.Prices[i], f.Upper[i])
		assert.InDelta(t, width, f.Upper[i]-f.Lower[i], 1e-9)
	}
	assert.InDelta(t, 2*1.2816*f.Std, width, 1e-9)
}

func TestPredictPriceLinearExact(t *testing.T) {
	f, err := PredictPrice(dailySeries(10, 12, 14, 16), ForecastOptions{HorizonDays: 3, Degree: 1})
	require.NoError(t, err)
	require.NotNil(t, f)

	assert.Equal(t, TrendRising, f.Trend)
	assert.InDelta(t, 0, f.Std, 1e-9)
	assert.InDelta(t, 18, f.Prices[0], 1e-6)
	assert.InDelta(t, 22, f.Prices[2], 1e-6)
	assert.InDelta(t, f.Prices[0], f.Lower[0], 1e-6)
}

func TestPredictPriceStable(t *testing.T) {
	f, err := PredictPrice(dailySeries(19.9, 19.9, 19.9, 19.9), ForecastOptions{})
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, TrendStable, f.Trend)
	assert.Len(t, f.Prices, DefaultHorizonDays)
}

func TestPredictPriceInsufficientData(t *testing.T) {
	f, err := PredictPrice(nil, ForecastOptions{})
	assert.NoError(t, err)
	assert.Nil(t, f)

	f, err = PredictPrice(dailySeries(10, 9), ForecastOptions{})
	assert.NoError(t, err)
	assert.Nil(t, f)

	// duplicates collapse to two points
	series := append(dailySeries(10, 9), dailySeries(10, 9)...)
	f, err = PredictPrice(series, ForecastOptions{})
	assert.NoError(t, err)
	assert.Nil(t, f)
}

func TestPredictPriceCapsDegree(t *testing.T) {
	f, err := PredictPrice(dailySeries(30, 20, 25), ForecastOptions{Degree: 5, HorizonDays: 2})
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, 2, f.Degree)
}

func TestPredictPriceUnsortedInput(t *testing.T) {
	series := dailySeries(100, 90, 80, 95, 70)
	reversed := make([]Observation, len(series))
	for i := range series {
		reversed[len(series)-1-i] = series[i]
	}

	a, err := PredictPrice(series, ForecastOptions{})
	require.NoError(t, err)
	b, err := PredictPrice(reversed, ForecastOptions{})
	require.NoError(t, err)
	assert.InDeltaSlice(t, a.Prices, b.Prices, 1e-9)
	assert.Equal(t, 100.0, series[0].PromoPrice)
}
