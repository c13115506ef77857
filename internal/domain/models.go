package domain

import "time"

// DateFormat is the canonical calendar-day format used across the service.
const DateFormat = "2006-01-02"

// DefaultStoreID is assigned when the source dataset has no store column.
const DefaultStoreID = "SINGLE_STORE"

// SalesRecord is one cleaned row of sales history. The ingestion layer
// resolves column aliases to these canonical fields; optional covariates are
// present in the maps only when the source dataset carried the column.
type SalesRecord struct {
	Date      time.Time
	StoreID   string
	ProductID string
	UnitsSold float64

	// Numeric holds optional numeric covariates (price, discount,
	// competitor_price, inventory_level). Values that failed numeric
	// coercion are stored as 0.
	Numeric map[string]float64

	// Categorical holds optional categorical covariates (category, region,
	// weather, season).
	Categorical map[string]string
}

// Inventory returns the inventory_level covariate and whether the source
// dataset carried it.
func (r SalesRecord) Inventory() (float64, bool) {
	v, ok := r.Numeric[ColInventoryLevel]
	return v, ok
}

// Canonical covariate column names.
const (
	ColPrice           = "price"
	ColDiscount        = "discount"
	ColCompetitorPrice = "competitor_price"
	ColInventoryLevel  = "inventory_level"
	ColCategory        = "category"
	ColRegion          = "region"
	ColWeather         = "weather"
	ColSeason          = "season"
)

// ForecastPoint is a single predicted value one or more days past the last
// observation.
type ForecastPoint struct {
	Date time.Time
	YHat float64
}

// ReplenishmentResult holds the replenishment recommendation for one series.
type ReplenishmentResult struct {
	StoreID        string  `json:"store_id,omitempty"`
	ProductID      string  `json:"product_id,omitempty"`
	AvgDailyDemand float64 `json:"avg_daily_demand"`
	SafetyStock    float64 `json:"safety_stock"`
	ReorderPoint   float64 `json:"reorder_point"`
	EOQ            float64 `json:"eoq"`
	ReorderQty     float64 `json:"reorder_qty"`
	CurrentStock   float64 `json:"current_stock"`

	// DaysOfStock is nil when average demand is zero: the stock lasts
	// indefinitely and no finite value applies.
	DaysOfStock *float64 `json:"days_of_stock"`

	StockStatus StockStatus `json:"stock_status"`
}

// ReplenishmentReport is the replenishment view over one dataset: the
// dataset-wide recommendation plus one per product, highest reorder quantity
// first.
type ReplenishmentReport struct {
	FileName string                `json:"file_name"`
	Policy   string                `json:"policy"`
	Overall  ReplenishmentResult   `json:"overall"`
	Products []ReplenishmentResult `json:"products"`
}
