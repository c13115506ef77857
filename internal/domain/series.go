package domain

import (
	"math"
	"time"
)

// SeriesPoint is one day of an aggregated sales series.
type SeriesPoint struct {
	Date      time.Time
	UnitsSold float64
}

// DailySeries is an ordered-by-date sequence of daily sales totals for one
// key (a product, a product within a store, or the whole dataset). There is
// at most one point per calendar day.
type DailySeries []SeriesPoint

// Mean returns the arithmetic mean of units sold, 0 for an empty series.
func (s DailySeries) Mean() float64 {
	if len(s) == 0 {
		return 0
	}
	return s.Sum() / float64(len(s))
}

// Sum returns the total units sold over the series.
func (s DailySeries) Sum() float64 {
	var total float64
	for _, p := range s {
		total += p.UnitsSold
	}
	return total
}

// TailMean returns the mean of the trailing n points, or of the whole series
// when it is shorter than n. A non-positive n means the whole series.
func (s DailySeries) TailMean(n int) float64 {
	if n <= 0 || n >= len(s) {
		return s.Mean()
	}
	return s[len(s)-n:].Mean()
}

// StdDev returns the sample standard deviation of units sold. Series with
// fewer than two points have no spread and report 0.
func (s DailySeries) StdDev() float64 {
	if len(s) < 2 {
		return 0
	}
	mean := s.Mean()
	var ss float64
	for _, p := range s {
		d := p.UnitsSold - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(s)-1))
}

// LastDate returns the date of the final point and whether the series is
// non-empty.
func (s DailySeries) LastDate() (time.Time, bool) {
	if len(s) == 0 {
		return time.Time{}, false
	}
	return s[len(s)-1].Date, true
}

// Tail returns the trailing n points without copying.
func (s DailySeries) Tail(n int) DailySeries {
	if n <= 0 || n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}
