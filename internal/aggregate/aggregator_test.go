package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demandcast/backend-go/internal/domain"
)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func rec(d int, product string, units float64) domain.SalesRecord {
	return domain.SalesRecord{
		Date:      day(d),
		StoreID:   domain.DefaultStoreID,
		ProductID: product,
		UnitsSold: units,
	}
}

func TestDailyGroupsAndSums(t *testing.T) {
	records := []domain.SalesRecord{
		rec(2, "A", 5),
		rec(1, "A", 3),
		rec(1, "A", 2), // same day, same product
		rec(1, "B", 7),
	}

	res := Daily(records)

	require.Len(t, res.Overall, 2)
	assert.Equal(t, day(1), res.Overall[0].Date)
	assert.InDelta(t, 12, res.Overall[0].UnitsSold, 1e-9)
	assert.InDelta(t, 5, res.Overall[1].UnitsSold, 1e-9)
	assert.InDelta(t, 17, res.TotalUnitsSold, 1e-9)

	require.Len(t, res.PerProduct["A"], 2)
	assert.InDelta(t, 5, res.PerProduct["A"][1].UnitsSold, 1e-9)
	require.Len(t, res.PerProduct["B"], 1)
}

func TestDailyTrimsProductIDs(t *testing.T) {
	records := []domain.SalesRecord{
		rec(1, " A ", 3),
		rec(2, "A", 4),
	}

	res := Daily(records)
	require.Len(t, res.PerProduct, 1)
	assert.InDelta(t, 7, res.PerProduct["A"].Sum(), 1e-9)
}

func TestDailyStockSnapshotUsesLatestDay(t *testing.T) {
	withStock := func(d int, product string, units, stock float64) domain.SalesRecord {
		r := rec(d, product, units)
		r.Numeric = map[string]float64{domain.ColInventoryLevel: stock}
		return r
	}

	records := []domain.SalesRecord{
		withStock(1, "A", 5, 100),
		withStock(2, "A", 5, 80),
		withStock(2, "B", 5, 40),
	}

	res := Daily(records)
	require.True(t, res.HasStock())
	assert.InDelta(t, 80, res.ProductStock["A"], 1e-9)
	assert.InDelta(t, 40, res.ProductStock["B"], 1e-9)
	assert.InDelta(t, 120, res.StockTotal(), 1e-9)
}

func TestDailyWithoutInventoryColumn(t *testing.T) {
	res := Daily([]domain.SalesRecord{rec(1, "A", 5)})
	assert.False(t, res.HasStock())
	assert.Zero(t, res.StockTotal())
}

func TestForKeyFiltersAndSorts(t *testing.T) {
	records := []domain.SalesRecord{
		rec(3, "A", 1),
		rec(1, "A", 2),
		rec(2, "B", 3),
	}

	out := ForKey(records, domain.DefaultStoreID, "A")
	require.Len(t, out, 2)
	assert.Equal(t, day(1), out[0].Date)
	assert.Equal(t, day(3), out[1].Date)

	assert.Empty(t, ForKey(records, "other-store", "A"))
}

func TestDailyForKey(t *testing.T) {
	records := []domain.SalesRecord{
		rec(1, "A", 2),
		rec(1, "A", 3),
		rec(2, "A", 4),
		rec(2, "B", 9),
	}

	series := DailyForKey(records, domain.DefaultStoreID, "A")
	require.Len(t, series, 2)
	assert.InDelta(t, 5, series[0].UnitsSold, 1e-9)
	assert.InDelta(t, 4, series[1].UnitsSold, 1e-9)

	assert.Nil(t, DailyForKey(records, domain.DefaultStoreID, "missing"))
}
