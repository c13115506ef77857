package domain

// StockStatus is the three-way stock classification shown on the dashboard.
type StockStatus string

const (
	StatusUnderstocked StockStatus = "Understocked"
	StatusLowStock     StockStatus = "Low Stock"
	StatusHealthy      StockStatus = "Healthy"
)

// ClassifyStockStatus buckets current stock against the demand expected over
// the forecast horizon. Thresholds are strict: a stock level exactly at a
// boundary belongs to the higher tier.
func ClassifyStockStatus(currentStock, forecastNeed, safetyStock float64) StockStatus {
	switch {
	case currentStock < forecastNeed:
		return StatusUnderstocked
	case currentStock < forecastNeed+safetyStock:
		return StatusLowStock
	default:
		return StatusHealthy
	}
}
