package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/demandcast/backend-go/internal/domain"
)

// Likely column names per canonical field, tried in order. Matching is
// case-insensitive on trimmed headers.
var (
	dateCandidates      = []string{"date", "ds", "transaction_date", "sale_date", "order_date"}
	productCandidates   = []string{"product_id", "product", "item_id", "sku", "product_name", "name"}
	unitsCandidates     = []string{"units_sold", "quantity", "qty", "sales", "units"}
	inventoryCandidates = []string{"inventory_level", "inventory", "stock", "current_stock", "qty_in_stock"}
	storeCandidates     = []string{"store_id", "store"}
)

// Optional covariates are matched by their canonical names only.
var (
	numericCovariateCols     = []string{domain.ColPrice, domain.ColDiscount, domain.ColCompetitorPrice}
	categoricalCovariateCols = []string{domain.ColCategory, domain.ColRegion, domain.ColWeather, domain.ColSeason}
)

// Date layouts tried in order. Day-first layouts come before month-first,
// matching how the source dashboards interpret ambiguous dates.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006/01/02",
}

// Columns maps canonical fields to source header indices. Optional fields
// hold -1 when the source has no such column.
type Columns struct {
	Date      int
	Product   int
	Units     int
	Store     int
	Inventory int
	Numeric   map[string]int
	Categoric map[string]int
}

// DetectColumns resolves header aliases to canonical fields. A dataset
// without date, product and units columns is unusable.
func DetectColumns(header []string) (Columns, error) {
	lower := make(map[string]int, len(header))
	for i, col := range header {
		lower[strings.ToLower(strings.TrimSpace(col))] = i
	}

	find := func(candidates []string) int {
		for _, cand := range candidates {
			if idx, ok := lower[cand]; ok {
				return idx
			}
		}
		return -1
	}

	cols := Columns{
		Date:      find(dateCandidates),
		Product:   find(productCandidates),
		Units:     find(unitsCandidates),
		Store:     find(storeCandidates),
		Inventory: find(inventoryCandidates),
		Numeric:   make(map[string]int),
		Categoric: make(map[string]int),
	}

	if cols.Date < 0 || cols.Product < 0 || cols.Units < 0 {
		return Columns{}, fmt.Errorf("%w: need date, product and units columns", domain.ErrMissingRequiredField)
	}

	for _, name := range numericCovariateCols {
		if idx, ok := lower[name]; ok {
			cols.Numeric[name] = idx
		}
	}
	for _, name := range categoricalCovariateCols {
		if idx, ok := lower[name]; ok {
			cols.Categoric[name] = idx
		}
	}

	return cols, nil
}

// ParseRecords reads a header-led CSV stream into cleaned sales records.
// Rows with unparseable dates are dropped; numeric coercion failures become
// 0. Only dataset-level problems (missing required columns, broken CSV
// structure) surface as errors.
func ParseRecords(r io.Reader) ([]domain.SalesRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	cols, err := DetectColumns(header)
	if err != nil {
		return nil, err
	}

	var records []domain.SalesRecord
	dropped := 0

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}

		field := func(idx int) string {
			if idx >= 0 && idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}

		date, ok := parseDate(field(cols.Date))
		if !ok {
			dropped++
			continue
		}

		rec := domain.SalesRecord{
			Date:      date,
			ProductID: field(cols.Product),
			StoreID:   domain.DefaultStoreID,
			UnitsSold: coerceFloat(field(cols.Units)),
		}
		if cols.Store >= 0 {
			if store := field(cols.Store); store != "" {
				rec.StoreID = store
			}
		}

		if cols.Inventory >= 0 || len(cols.Numeric) > 0 {
			rec.Numeric = make(map[string]float64)
			if cols.Inventory >= 0 {
				rec.Numeric[domain.ColInventoryLevel] = coerceFloat(field(cols.Inventory))
			}
			for name, idx := range cols.Numeric {
				rec.Numeric[name] = coerceFloat(field(idx))
			}
		}
		if len(cols.Categoric) > 0 {
			rec.Categorical = make(map[string]string)
			for name, idx := range cols.Categoric {
				if v := field(idx); v != "" {
					rec.Categorical[name] = v
				}
			}
		}

		records = append(records, rec)
	}

	if dropped > 0 {
		log.Debug().Int("rows", dropped).Msg("dropped rows with unparseable dates")
	}

	return records, nil
}

// LoadFile loads a CSV or XLSX dataset from disk. XLSX files go through a
// first-sheet CSV conversion next to the source file.
func LoadFile(path string) ([]domain.SalesRecord, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		csvPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".csv"
		if err := ConvertXLSXToCSV(path, csvPath); err != nil {
			return nil, err
		}
		path = csvPath
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer f.Close()

	return ParseRecords(f)
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func coerceFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
