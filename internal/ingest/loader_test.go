package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demandcast/backend-go/internal/domain"
)

func TestDetectColumnsAliases(t *testing.T) {
	cols, err := DetectColumns([]string{"Transaction_Date", "SKU", "Qty", "Stock", "Store"})
	require.NoError(t, err)

	assert.Equal(t, 0, cols.Date)
	assert.Equal(t, 1, cols.Product)
	assert.Equal(t, 2, cols.Units)
	assert.Equal(t, 3, cols.Inventory)
	assert.Equal(t, 4, cols.Store)
}

func TestDetectColumnsMissingRequired(t *testing.T) {
	_, err := DetectColumns([]string{"date", "product_id"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)

	_, err = DetectColumns([]string{"product_id", "units_sold"})
	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)
}

func TestDetectColumnsCovariates(t *testing.T) {
	cols, err := DetectColumns([]string{"date", "product_id", "units_sold", "price", "weather", "region"})
	require.NoError(t, err)

	assert.Contains(t, cols.Numeric, domain.ColPrice)
	assert.Contains(t, cols.Categoric, domain.ColWeather)
	assert.Contains(t, cols.Categoric, domain.ColRegion)
	assert.NotContains(t, cols.Numeric, domain.ColDiscount)
}

func TestParseRecordsBasic(t *testing.T) {
	csv := strings.Join([]string{
		"date,product_id,units_sold,store_id",
		"2024-01-02,widget,5,store-1",
		"2024-01-03,widget,7,store-1",
	}, "\n")

	records, err := ParseRecords(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), records[0].Date)
	assert.Equal(t, "widget", records[0].ProductID)
	assert.Equal(t, "store-1", records[0].StoreID)
	assert.InDelta(t, 5, records[0].UnitsSold, 1e-9)
}

func TestParseRecordsDefaultStore(t *testing.T) {
	csv := "date,product_id,units_sold\n2024-01-02,widget,5\n"

	records, err := ParseRecords(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.DefaultStoreID, records[0].StoreID)
}

func TestParseRecordsDropsBadDates(t *testing.T) {
	csv := strings.Join([]string{
		"date,product_id,units_sold",
		"not-a-date,widget,5",
		"2024-01-03,widget,7",
		",widget,9",
	}, "\n")

	records, err := ParseRecords(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.InDelta(t, 7, records[0].UnitsSold, 1e-9)
}

func TestParseRecordsCoercesBadNumbers(t *testing.T) {
	csv := strings.Join([]string{
		"date,product_id,units_sold,price",
		"2024-01-02,widget,abc,9.5",
		"2024-01-03,widget,4,n/a",
	}, "\n")

	records, err := ParseRecords(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Zero(t, records[0].UnitsSold)
	assert.InDelta(t, 9.5, records[0].Numeric[domain.ColPrice], 1e-9)
	assert.Zero(t, records[1].Numeric[domain.ColPrice])
}

func TestParseRecordsDayFirstDates(t *testing.T) {
	csv := "date,product_id,units_sold\n25/12/2024,widget,3\n"

	records, err := ParseRecords(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC), records[0].Date)
}

func TestParseRecordsCategoricalCovariates(t *testing.T) {
	csv := strings.Join([]string{
		"date,product_id,units_sold,season,region",
		"2024-01-02,widget,5,Winter,",
	}, "\n")

	records, err := ParseRecords(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "Winter", records[0].Categorical[domain.ColSeason])
	// Empty categorical cells are absent, not empty strings.
	_, ok := records[0].Categorical[domain.ColRegion]
	assert.False(t, ok)
}

func TestParseRecordsMissingHeader(t *testing.T) {
	_, err := ParseRecords(strings.NewReader("store_id,price\n"))
	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)
}

func TestParseRecordsRaggedRows(t *testing.T) {
	csv := strings.Join([]string{
		"date,product_id,units_sold,price",
		"2024-01-02,widget,5", // short row, price missing
	}, "\n")

	records, err := ParseRecords(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Zero(t, records[0].Numeric[domain.ColPrice])
}
