package replenish

import (
	"math"

	"github.com/demandcast/backend-go/internal/domain"
)

// Policy selects which reorder-quantity computation the engine applies. The
// two answer different questions: Simplified asks "how much to top up to
// cover the horizon", Statistical asks "how much to order under an EOQ
// policy".
type Policy string

const (
	// PolicySimplified uses buffer-days safety stock and a top-up
	// quantity against the forecast-horizon demand. This is the
	// dashboard's view.
	PolicySimplified Policy = "simplified"

	// PolicyStatistical uses z·stddev safety stock and orders the EOQ
	// when stock is at or below the reorder point.
	PolicyStatistical Policy = "statistical"
)

// ParsePolicy maps a request parameter to a policy, defaulting to the
// simplified form.
func ParsePolicy(s string) Policy {
	if Policy(s) == PolicyStatistical {
		return PolicyStatistical
	}
	return PolicySimplified
}

// Params carries the knobs of one recommendation request.
type Params struct {
	Policy       Policy
	LeadTimeDays int
	BufferDays   int
	ForecastDays int

	// ServiceLevelZ is the one-sided service-level z score for the
	// statistical safety stock (1.65 ≈ 95%).
	ServiceLevelZ float64

	OrderingCost       float64
	HoldingCostPerUnit float64

	// AnnualizationFactor extrapolates the observed demand total to a
	// yearly figure for the EOQ.
	AnnualizationFactor float64
}

// Defaults mirror the original dashboard parameters.
const (
	DefaultServiceLevelZ       = 1.65
	DefaultOrderingCost        = 100
	DefaultHoldingCostPerUnit  = 2
	DefaultAnnualizationFactor = 12
)

func (p Params) withDefaults() Params {
	if p.ServiceLevelZ <= 0 {
		p.ServiceLevelZ = DefaultServiceLevelZ
	}
	if p.OrderingCost <= 0 {
		p.OrderingCost = DefaultOrderingCost
	}
	if p.AnnualizationFactor <= 0 {
		p.AnnualizationFactor = DefaultAnnualizationFactor
	}
	if p.Policy == "" {
		p.Policy = PolicySimplified
	}
	return p
}

// Engine computes closed-form replenishment recommendations from an
// aggregated daily series.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Recommend derives safety stock, reorder point, EOQ, reorder quantity,
// days of stock and the stock-status verdict for one series.
func (e *Engine) Recommend(series domain.DailySeries, currentStock float64, p Params) domain.ReplenishmentResult {
	p = p.withDefaults()

	avg := series.Mean()

	var safety float64
	switch p.Policy {
	case PolicyStatistical:
		safety = p.ServiceLevelZ * series.StdDev()
	default:
		safety = avg * float64(p.BufferDays)
	}

	rop := avg*float64(p.LeadTimeDays) + safety
	eoq := EconomicOrderQty(series.Sum()*p.AnnualizationFactor, p.OrderingCost, p.HoldingCostPerUnit)

	forecastNeed := avg * float64(p.ForecastDays)

	var qty float64
	switch p.Policy {
	case PolicyStatistical:
		qty = EOQOrderQty(currentStock, rop, eoq)
	default:
		qty = TopUpQty(currentStock, forecastNeed, safety)
	}

	result := domain.ReplenishmentResult{
		AvgDailyDemand: avg,
		SafetyStock:    safety,
		ReorderPoint:   rop,
		EOQ:            eoq,
		ReorderQty:     qty,
		CurrentStock:   currentStock,
		StockStatus:    domain.ClassifyStockStatus(currentStock, forecastNeed, safety),
	}

	if avg > 0 {
		days := currentStock / avg
		result.DaysOfStock = &days
	}

	return result
}

// EconomicOrderQty is the Wilson formula. A non-positive holding cost makes
// the quantity economically undefined, reported as 0.
func EconomicOrderQty(annualDemand, orderingCost, holdingCostPerUnit float64) float64 {
	if holdingCostPerUnit <= 0 {
		return 0
	}
	return math.Sqrt(2 * annualDemand * orderingCost / holdingCostPerUnit)
}

// TopUpQty is the simplified dashboard quantity: enough to cover the
// forecast-horizon demand plus safety stock, net of what is already held.
func TopUpQty(currentStock, forecastNeed, safetyStock float64) float64 {
	return math.Max(0, forecastNeed+safetyStock-currentStock)
}

// EOQOrderQty is the classic inventory-control quantity: order up to the
// EOQ once stock falls to the reorder point, otherwise nothing.
func EOQOrderQty(currentStock, reorderPoint, eoq float64) float64 {
	if currentStock <= reorderPoint {
		return math.Max(0, eoq-currentStock)
	}
	return 0
}
