package aggregate

import (
	"sort"
	"strings"
	"time"

	"github.com/demandcast/backend-go/internal/domain"
)

// Result holds the time-indexed aggregation of a raw record set.
type Result struct {
	// Overall is the dataset-wide daily sales series.
	Overall domain.DailySeries

	// PerProduct maps product ID to that product's daily sales series.
	PerProduct map[string]domain.DailySeries

	// ProductStock holds the latest-date inventory snapshot summed per
	// product. Nil when the dataset has no inventory column.
	ProductStock map[string]float64

	// TotalUnitsSold is the sum of units sold across the whole dataset.
	TotalUnitsSold float64
}

// HasStock reports whether the source dataset carried inventory levels.
func (r *Result) HasStock() bool {
	return r.ProductStock != nil
}

// StockTotal returns the summed latest-date inventory across products.
func (r *Result) StockTotal() float64 {
	var total float64
	for _, v := range r.ProductStock {
		total += v
	}
	return total
}

// Daily groups records by exact calendar date and product identity, summing
// same-day quantities. Records arrive already cleaned (unparseable dates are
// dropped at ingestion), so this is a pure fold over valid rows.
func Daily(records []domain.SalesRecord) *Result {
	type bucket struct {
		day     string
		product string
	}

	perBucket := make(map[bucket]float64)
	var hasInventory bool
	var latestDay string

	for _, rec := range records {
		day := rec.Date.Format(domain.DateFormat)
		product := normalizeID(rec.ProductID)
		perBucket[bucket{day: day, product: product}] += rec.UnitsSold
		if day > latestDay {
			latestDay = day
		}
		if _, ok := rec.Inventory(); ok {
			hasInventory = true
		}
	}

	res := &Result{
		PerProduct: make(map[string]domain.DailySeries),
	}

	overall := make(map[string]float64)
	for b, units := range perBucket {
		res.TotalUnitsSold += units
		overall[b.day] += units
		date, _ := parseDay(b.day)
		res.PerProduct[b.product] = append(res.PerProduct[b.product], domain.SeriesPoint{
			Date:      date,
			UnitsSold: units,
		})
	}

	for _, series := range res.PerProduct {
		sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	}

	days := make([]string, 0, len(overall))
	for day := range overall {
		days = append(days, day)
	}
	sort.Strings(days)
	for _, day := range days {
		date, _ := parseDay(day)
		res.Overall = append(res.Overall, domain.SeriesPoint{Date: date, UnitsSold: overall[day]})
	}

	if hasInventory {
		res.ProductStock = make(map[string]float64)
		for _, rec := range records {
			if rec.Date.Format(domain.DateFormat) != latestDay {
				continue
			}
			if level, ok := rec.Inventory(); ok {
				res.ProductStock[normalizeID(rec.ProductID)] += level
			}
		}
	}

	return res
}

// ForKey returns the records for one (store, product) pair, ordered by date.
func ForKey(records []domain.SalesRecord, storeID, productID string) []domain.SalesRecord {
	store := normalizeID(storeID)
	product := normalizeID(productID)

	var out []domain.SalesRecord
	for _, rec := range records {
		if normalizeID(rec.StoreID) == store && normalizeID(rec.ProductID) == product {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// DailyForKey aggregates one (store, product) pair into a daily series.
func DailyForKey(records []domain.SalesRecord, storeID, productID string) domain.DailySeries {
	filtered := ForKey(records, storeID, productID)
	if len(filtered) == 0 {
		return nil
	}

	perDay := make(map[string]float64)
	for _, rec := range filtered {
		perDay[rec.Date.Format(domain.DateFormat)] += rec.UnitsSold
	}

	days := make([]string, 0, len(perDay))
	for day := range perDay {
		days = append(days, day)
	}
	sort.Strings(days)

	series := make(domain.DailySeries, 0, len(days))
	for _, day := range days {
		date, _ := parseDay(day)
		series = append(series, domain.SeriesPoint{Date: date, UnitsSold: perDay[day]})
	}
	return series
}

func normalizeID(id string) string {
	return strings.TrimSpace(id)
}

func parseDay(day string) (time.Time, error) {
	return time.Parse(domain.DateFormat, day)
}
