package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demandcast/backend-go/internal/domain"
)

func series(start time.Time, values ...float64) domain.DailySeries {
	out := make(domain.DailySeries, 0, len(values))
	for i, v := range values {
		out = append(out, domain.SeriesPoint{Date: start.AddDate(0, 0, i), UnitsSold: v})
	}
	return out
}

func TestBaselineFlatMean(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s := series(start, 10, 20, 30)

	points, err := NewBaseline().Forecast(s, 5)
	require.NoError(t, err)
	require.Len(t, points, 5)

	for i, p := range points {
		assert.InDelta(t, 20, p.YHat, 1e-9)
		assert.Equal(t, start.AddDate(0, 0, 2+i+1), p.Date)
	}
}

func TestBaselineRecentWindow(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s := series(start, 100, 100, 100, 10, 10)

	points, err := NewRecentBaseline(2).Forecast(s, 3)
	require.NoError(t, err)
	for _, p := range points {
		assert.InDelta(t, 10, p.YHat, 1e-9)
	}
}

func TestBaselineEmptySeries(t *testing.T) {
	now := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	b := &Baseline{now: func() time.Time { return now }}

	points, err := b.Forecast(nil, 3)
	require.NoError(t, err)
	require.Len(t, points, 3)
	for i, p := range points {
		assert.Zero(t, p.YHat)
		assert.Equal(t, now.AddDate(0, 0, i+1), p.Date)
	}
}

func TestBaselineEmptySeriesLocalMidnight(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	now := time.Date(2024, 5, 10, 15, 42, 7, 0, loc)
	b := &Baseline{now: func() time.Time { return now }}

	points, err := b.Forecast(nil, 1)
	require.NoError(t, err)
	require.Len(t, points, 1)

	// Dates anchor to local midnight of the current day, not an absolute
	// 24-hour boundary that can land on the previous calendar day.
	assert.Equal(t, time.Date(2024, 5, 11, 0, 0, 0, 0, loc), points[0].Date)
}

func TestBaselineZeroHorizon(t *testing.T) {
	points, err := NewBaseline().Forecast(nil, 0)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestSeasonalRejectsShortSeries(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s := series(start, 1, 2, 3, 4, 5)

	_, err := NewSeasonal().Forecast(s, 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrModelFitting)
}

func TestSeasonalRejectsZeroDemand(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s := series(start, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0)

	_, err := NewSeasonal().Forecast(s, 7)
	assert.ErrorIs(t, err, domain.ErrModelFitting)
}

func TestSeasonalForecastIsNonNegative(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	// Steeply declining demand would extrapolate below zero without a clamp.
	s := series(start, 100, 90, 80, 70, 60, 50, 40, 30, 20, 10, 5, 2, 1, 1)

	points, err := NewSeasonal().Forecast(s, 30)
	require.NoError(t, err)
	require.Len(t, points, 30)
	for _, p := range points {
		assert.GreaterOrEqual(t, p.YHat, 0.0)
	}
}

func TestSeasonalDatesFollowLastObservation(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s := series(start, 10, 12, 11, 13, 10, 9, 14, 12, 11, 10, 13, 12)

	points, err := NewSeasonal().Forecast(s, 3)
	require.NoError(t, err)
	last, _ := s.LastDate()
	for i, p := range points {
		assert.Equal(t, last.AddDate(0, 0, i+1), p.Date)
	}
}

func TestWithFallbackSubstitutesBaseline(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	// Too short for the seasonal model, so the baseline answers.
	s := series(start, 6, 6, 6)

	f := WithFallback(NewSeasonal(), NewBaseline())
	points, err := f.Forecast(s, 4)
	require.NoError(t, err)
	require.Len(t, points, 4)
	for _, p := range points {
		assert.InDelta(t, 6, p.YHat, 1e-9)
	}
}

func TestWithFallbackPrefersPrimary(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s := series(start, 10, 12, 11, 13, 10, 9, 14, 12, 11, 10, 13, 12, 11, 10)

	primary, err := NewSeasonal().Forecast(s, 5)
	require.NoError(t, err)

	composed, err := WithFallback(NewSeasonal(), NewBaseline()).Forecast(s, 5)
	require.NoError(t, err)
	assert.Equal(t, primary, composed)
}
