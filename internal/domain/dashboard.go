package domain

// DashboardQuery identifies one dashboard computation: the dataset plus the
// horizon parameters. It doubles as the cache key material.
type DashboardQuery struct {
	FileName     string
	ForecastDays int
	LeadTimeDays int
	BufferDays   int
}

// TrendPoint is one day of observed sales in an API payload.
type TrendPoint struct {
	Date      string  `json:"date"`
	UnitsSold float64 `json:"units_sold"`
}

// ForecastEntry is one predicted day in an API payload. Field names follow
// the charting convention the frontend expects (ds/yhat).
type ForecastEntry struct {
	Date string  `json:"ds"`
	YHat float64 `json:"yhat"`
}

// ProductRecord is a fast- or slow-moving product with its recent trend,
// flat short-horizon forecast and current stock.
type ProductRecord struct {
	Product      string          `json:"product"`
	UnitsSold    float64         `json:"units_sold"`
	Trend        []TrendPoint    `json:"trend"`
	Forecast     []ForecastEntry `json:"forecast"`
	CurrentStock float64         `json:"current_stock"`
}

// DashboardData is the full payload for the dashboard view.
type DashboardData struct {
	FileName          string          `json:"file_name"`
	SalesTrend        []TrendPoint    `json:"sales_trend"`
	Forecast          []ForecastEntry `json:"forecast"`
	FastSelling       []ProductRecord `json:"fast_selling"`
	SlowSelling       []ProductRecord `json:"slow_selling"`
	TotalUnitsSold    float64         `json:"total_units_sold"`
	CurrentStockTotal float64         `json:"current_stock_total"`
	DaysToStockout    *float64        `json:"days_to_stockout"`
	StockoutDate      string          `json:"stockout_date"`
	ReorderQty        float64         `json:"reorder_qty"`
	ReorderPoint      float64         `json:"reorder_point"`
	StockStatus       StockStatus     `json:"stock_status"`
}
