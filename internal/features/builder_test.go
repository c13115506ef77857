package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demandcast/backend-go/internal/domain"
)

func record(d int, units float64) domain.SalesRecord {
	return domain.SalesRecord{
		Date:      time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC),
		StoreID:   domain.DefaultStoreID,
		ProductID: "A",
		UnitsSold: units,
	}
}

func columnIndex(t *testing.T, m *Matrix, name string) int {
	t.Helper()
	for i, col := range m.Columns {
		if col == name {
			return i
		}
	}
	t.Fatalf("column %s not in schema %v", name, m.Columns)
	return -1
}

func TestBuildIsDeterministic(t *testing.T) {
	records := []domain.SalesRecord{record(3, 3), record(1, 1), record(2, 2)}

	b := NewBuilder()
	m1, err := b.Build(records)
	require.NoError(t, err)
	m2, err := b.Build(records)
	require.NoError(t, err)

	assert.Equal(t, m1.Columns, m2.Columns)
	assert.Equal(t, m1.Rows, m2.Rows)
	assert.Equal(t, m1.Target, m2.Target)
}

func TestBuildSortsByDateAndFillsLags(t *testing.T) {
	records := []domain.SalesRecord{record(2, 20), record(1, 10), record(3, 30)}

	m, err := NewBuilder().Build(records)
	require.NoError(t, err)
	require.Len(t, m.Rows, 3)

	assert.Equal(t, []float64{10, 20, 30}, m.Target)

	lag1 := columnIndex(t, m, "lag_1")
	lag2 := columnIndex(t, m, "lag_2")

	// First row has no history, lag cells are zero-filled.
	assert.Zero(t, m.Rows[0][lag1])
	assert.InDelta(t, 10, m.Rows[1][lag1], 1e-9)
	assert.InDelta(t, 20, m.Rows[2][lag1], 1e-9)
	assert.InDelta(t, 10, m.Rows[2][lag2], 1e-9)
}

func TestBuildRollingMeanShortHistory(t *testing.T) {
	records := []domain.SalesRecord{record(1, 10), record(2, 20), record(3, 30)}

	m, err := NewBuilder().Build(records)
	require.NoError(t, err)

	rolling := columnIndex(t, m, "rolling_7")
	// The rolling mean includes the current row and shrinks its window at
	// the start of the series.
	assert.InDelta(t, 10, m.Rows[0][rolling], 1e-9)
	assert.InDelta(t, 15, m.Rows[1][rolling], 1e-9)
	assert.InDelta(t, 20, m.Rows[2][rolling], 1e-9)
}

func TestBuildCalendarFeatures(t *testing.T) {
	// 2024-01-06 is a Saturday.
	m, err := NewBuilder().Build([]domain.SalesRecord{record(6, 5)})
	require.NoError(t, err)

	assert.InDelta(t, 6, m.Rows[0][columnIndex(t, m, "day")], 1e-9)
	assert.InDelta(t, 1, m.Rows[0][columnIndex(t, m, "month")], 1e-9)
	assert.InDelta(t, 5, m.Rows[0][columnIndex(t, m, "weekday")], 1e-9)
	assert.InDelta(t, 1, m.Rows[0][columnIndex(t, m, "is_weekend")], 1e-9)
}

func TestBuildNumericCovariateNegotiation(t *testing.T) {
	withPrice := record(1, 5)
	withPrice.Numeric = map[string]float64{domain.ColPrice: 9.5}

	m, err := NewBuilder().Build([]domain.SalesRecord{withPrice, record(2, 6)})
	require.NoError(t, err)

	price := columnIndex(t, m, domain.ColPrice)
	assert.InDelta(t, 9.5, m.Rows[0][price], 1e-9)
	// The second record lacks the covariate; its cell defaults to 0.
	assert.Zero(t, m.Rows[1][price])
	assert.NotContains(t, m.Columns, domain.ColDiscount)
}

func TestBuildOneHotDropsReferenceLevel(t *testing.T) {
	mk := func(d int, region string) domain.SalesRecord {
		r := record(d, 5)
		r.Categorical = map[string]string{domain.ColRegion: region}
		return r
	}

	m, err := NewBuilder().Build([]domain.SalesRecord{mk(1, "north"), mk(2, "south"), mk(3, "east")})
	require.NoError(t, err)

	// Sorted levels are east, north, south; east is the dropped reference.
	assert.NotContains(t, m.Columns, "region_east")
	north := columnIndex(t, m, "region_north")
	south := columnIndex(t, m, "region_south")

	assert.InDelta(t, 1, m.Rows[0][north], 1e-9)
	assert.Zero(t, m.Rows[0][south])
	assert.Zero(t, m.Rows[2][north])
	assert.Zero(t, m.Rows[2][south])
}

func TestLastStateAndAssembleRowRoundTrip(t *testing.T) {
	var records []domain.SalesRecord
	for d := 1; d <= 10; d++ {
		records = append(records, record(d, float64(d)))
	}

	m, err := NewBuilder().Build(records)
	require.NoError(t, err)

	state, err := m.LastState()
	require.NoError(t, err)
	assert.Equal(t, records[9].Date, state.Date)
	assert.InDelta(t, 9, state.Lags[0], 1e-9)
	assert.InDelta(t, 3, state.Lags[6], 1e-9)

	row := AssembleRow(state, m.Columns)
	assert.Equal(t, m.Rows[len(m.Rows)-1], row)
}

func TestAssembleRowReindexesOntoSchema(t *testing.T) {
	state := StepState{
		Date:    time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), // Monday
		Rolling: 12,
		Static:  map[string]float64{domain.ColPrice: 3, "region_north": 1},
	}
	state.Lags[0] = 7

	columns := []string{"weekday", "is_weekend", domain.ColPrice, "category_toys", "lag_1", "rolling_7"}
	row := AssembleRow(state, columns)

	assert.Equal(t, []float64{0, 0, 3, 0, 7, 12}, row)
}

func TestLastStateEmptyMatrix(t *testing.T) {
	_, err := (&Matrix{}).LastState()
	assert.Error(t, err)
}
