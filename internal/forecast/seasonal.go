package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/demandcast/backend-go/internal/domain"
)

// MinSeasonalObservations is the shortest series the seasonal model accepts.
const MinSeasonalObservations = 10

// minFactorSupport is the number of observations a weekday or month needs
// before its seasonal factor is trusted; thinner groups use a neutral 1.
const minFactorSupport = 2

// Seasonal fits a trend plus seasonality decomposition: a least-squares
// linear trend over the day index, multiplied by day-of-week factors (daily
// seasonality) and month-of-year factors (yearly seasonality). Fitting
// failures are reported as ErrModelFitting so the caller can substitute the
// baseline via WithFallback.
type Seasonal struct{}

func NewSeasonal() *Seasonal {
	return &Seasonal{}
}

type seasonalFit struct {
	origin    time.Time
	intercept float64
	slope     float64
	weekday   [7]float64
	month     [13]float64
	mean      float64
}

func (s *Seasonal) Forecast(series domain.DailySeries, horizon int) ([]domain.ForecastPoint, error) {
	if horizon <= 0 {
		return nil, nil
	}
	if len(series) < MinSeasonalObservations {
		return nil, fmt.Errorf("%w: need at least %d observations, got %d",
			domain.ErrModelFitting, MinSeasonalObservations, len(series))
	}

	fit, err := s.fit(series)
	if err != nil {
		return nil, err
	}

	last, _ := series.LastDate()
	points := make([]domain.ForecastPoint, 0, horizon)
	for d := 1; d <= horizon; d++ {
		date := last.AddDate(0, 0, d)
		points = append(points, domain.ForecastPoint{
			Date: date,
			YHat: math.Max(0, fit.predict(date)),
		})
	}
	return points, nil
}

func (s *Seasonal) fit(series domain.DailySeries) (*seasonalFit, error) {
	mean := series.Mean()
	if mean <= 0 {
		return nil, fmt.Errorf("%w: series has no demand to decompose", domain.ErrModelFitting)
	}

	origin := series[0].Date

	// Least-squares trend on the day offset from the first observation.
	// Using calendar offsets rather than row indices keeps gapped series
	// honest about elapsed time.
	var sumT, sumY, sumTT, sumTY float64
	n := float64(len(series))
	for _, p := range series {
		t := dayOffset(origin, p.Date)
		sumT += t
		sumY += p.UnitsSold
		sumTT += t * t
		sumTY += t * p.UnitsSold
	}

	denom := n*sumTT - sumT*sumT
	if denom == 0 {
		return nil, fmt.Errorf("%w: no variance in observation dates", domain.ErrModelFitting)
	}
	slope := (n*sumTY - sumT*sumY) / denom
	intercept := (sumY - slope*sumT) / n

	fit := &seasonalFit{
		origin:    origin,
		intercept: intercept,
		slope:     slope,
		mean:      mean,
	}

	var weekdaySum, monthSum [13]float64
	var weekdayCount, monthCount [13]int
	for _, p := range series {
		wd := int(p.Date.Weekday())
		weekdaySum[wd] += p.UnitsSold
		weekdayCount[wd]++
		m := int(p.Date.Month())
		monthSum[m] += p.UnitsSold
		monthCount[m]++
	}

	for wd := 0; wd < 7; wd++ {
		fit.weekday[wd] = 1
		if weekdayCount[wd] >= minFactorSupport {
			fit.weekday[wd] = (weekdaySum[wd] / float64(weekdayCount[wd])) / mean
		}
	}
	for m := 1; m <= 12; m++ {
		fit.month[m] = 1
		if monthCount[m] >= minFactorSupport {
			fit.month[m] = (monthSum[m] / float64(monthCount[m])) / mean
		}
	}

	return fit, nil
}

func (f *seasonalFit) predict(date time.Time) float64 {
	base := f.intercept + f.slope*dayOffset(f.origin, date)
	if base < 0 {
		base = 0
	}
	return base * f.weekday[int(date.Weekday())] * f.month[int(date.Month())]
}

func dayOffset(origin, date time.Time) float64 {
	return date.Sub(origin).Hours() / 24
}
