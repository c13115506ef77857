package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, path string, rows [][]interface{}) {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestConvertXLSXToCSV(t *testing.T) {
	dir := t.TempDir()
	xlsxPath := filepath.Join(dir, "sales.xlsx")
	csvPath := filepath.Join(dir, "sales.csv")

	writeWorkbook(t, xlsxPath, [][]interface{}{
		{"date", "product_id", "units_sold"},
		{"2024-01-01", "A", 5},
		{"2024-01-02", "A", 7},
	})

	require.NoError(t, ConvertXLSXToCSV(xlsxPath, csvPath))

	records, err := LoadFile(csvPath)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "A", records[0].ProductID)
	assert.InDelta(t, 5, records[0].UnitsSold, 1e-9)
	assert.InDelta(t, 7, records[1].UnitsSold, 1e-9)
}

func TestConvertXLSXToCSVMissingFile(t *testing.T) {
	dir := t.TempDir()

	err := ConvertXLSXToCSV(filepath.Join(dir, "absent.xlsx"), filepath.Join(dir, "out.csv"))
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "out.csv"))
	assert.True(t, os.IsNotExist(statErr))
}
