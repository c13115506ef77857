package replenish

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demandcast/backend-go/internal/domain"
)

func flatSeries(days int, units float64) domain.DailySeries {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	series := make(domain.DailySeries, 0, days)
	for d := 0; d < days; d++ {
		series = append(series, domain.SeriesPoint{Date: start.AddDate(0, 0, d), UnitsSold: units})
	}
	return series
}

func simplifiedParams() Params {
	return Params{
		Policy:       PolicySimplified,
		LeadTimeDays: 5,
		BufferDays:   7,
		ForecastDays: 30,
	}
}

func TestParsePolicy(t *testing.T) {
	assert.Equal(t, PolicyStatistical, ParsePolicy("statistical"))
	assert.Equal(t, PolicySimplified, ParsePolicy("simplified"))
	assert.Equal(t, PolicySimplified, ParsePolicy(""))
	assert.Equal(t, PolicySimplified, ParsePolicy("bogus"))
}

func TestSimplifiedRecommendation(t *testing.T) {
	// 10 units/day, buffer 7 days, horizon 30 days: need 300, safety 70.
	series := flatSeries(20, 10)
	e := NewEngine()

	res := e.Recommend(series, 250, simplifiedParams())
	assert.InDelta(t, 10, res.AvgDailyDemand, 1e-9)
	assert.InDelta(t, 70, res.SafetyStock, 1e-9)
	assert.InDelta(t, 120, res.ReorderPoint, 1e-9)
	assert.InDelta(t, 120, res.ReorderQty, 1e-9) // 300+70-250
	assert.Equal(t, domain.StatusUnderstocked, res.StockStatus)

	require.NotNil(t, res.DaysOfStock)
	assert.InDelta(t, 25, *res.DaysOfStock, 1e-9)
}

func TestSimplifiedStatusBoundaries(t *testing.T) {
	series := flatSeries(20, 10)
	e := NewEngine()

	assert.Equal(t, domain.StatusLowStock, e.Recommend(series, 320, simplifiedParams()).StockStatus)
	assert.Equal(t, domain.StatusHealthy, e.Recommend(series, 400, simplifiedParams()).StockStatus)
}

func TestReorderQtyNeverNegative(t *testing.T) {
	series := flatSeries(20, 10)
	res := NewEngine().Recommend(series, 10000, simplifiedParams())
	assert.Zero(t, res.ReorderQty)
	assert.Equal(t, domain.StatusHealthy, res.StockStatus)
}

func TestStatisticalRecommendation(t *testing.T) {
	// Alternating 5 and 15 gives mean 10 and a positive stddev.
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	var series domain.DailySeries
	for d := 0; d < 20; d++ {
		units := 5.0
		if d%2 == 1 {
			units = 15
		}
		series = append(series, domain.SeriesPoint{Date: start.AddDate(0, 0, d), UnitsSold: units})
	}

	p := Params{
		Policy:       PolicyStatistical,
		LeadTimeDays: 5,
		ForecastDays: 30,

		ServiceLevelZ:       1.65,
		OrderingCost:        100,
		HoldingCostPerUnit:  2,
		AnnualizationFactor: 12,
	}

	res := NewEngine().Recommend(series, 50, p)

	expectedSafety := 1.65 * series.StdDev()
	expectedROP := 10*5 + expectedSafety
	expectedEOQ := math.Sqrt(2 * series.Sum() * 12 * 100 / 2)

	assert.InDelta(t, expectedSafety, res.SafetyStock, 1e-9)
	assert.InDelta(t, expectedROP, res.ReorderPoint, 1e-9)
	assert.InDelta(t, expectedEOQ, res.EOQ, 1e-9)

	// Stock of 50 is at or below the reorder point, so the EOQ is ordered.
	assert.InDelta(t, expectedEOQ-50, res.ReorderQty, 1e-9)
}

func TestStatisticalAboveReorderPointOrdersNothing(t *testing.T) {
	series := flatSeries(20, 10)
	p := Params{
		Policy:       PolicyStatistical,
		LeadTimeDays: 5,
		ForecastDays: 30,
	}

	// Flat demand has zero stddev, so the reorder point is 50.
	res := NewEngine().Recommend(series, 51, p)
	assert.Zero(t, res.ReorderQty)
}

func TestEconomicOrderQty(t *testing.T) {
	assert.InDelta(t, math.Sqrt(2*3600*100/2.0), EconomicOrderQty(3600, 100, 2), 1e-9)
	assert.Zero(t, EconomicOrderQty(3600, 100, 0))
	assert.Zero(t, EconomicOrderQty(3600, 100, -1))
}

func TestZeroDemandSeries(t *testing.T) {
	series := flatSeries(10, 0)
	res := NewEngine().Recommend(series, 100, simplifiedParams())

	assert.Zero(t, res.ReorderQty)
	assert.Nil(t, res.DaysOfStock)
	assert.Equal(t, domain.StatusHealthy, res.StockStatus)
}

func TestEmptySeries(t *testing.T) {
	res := NewEngine().Recommend(nil, 100, simplifiedParams())
	assert.Zero(t, res.AvgDailyDemand)
	assert.Nil(t, res.DaysOfStock)
}
