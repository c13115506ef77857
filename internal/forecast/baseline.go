package forecast

import (
	"time"

	"github.com/demandcast/backend-go/internal/domain"
)

// Baseline emits a flat-mean forecast. It is the universal fallback and
// never fails: an empty series forecasts zeros dated from the current
// processing day.
type Baseline struct {
	// Window limits the mean to the trailing Window observations so the
	// forecast tracks recent demand. Zero means the whole history.
	Window int

	now func() time.Time
}

// NewBaseline returns a whole-history flat-mean forecaster.
func NewBaseline() *Baseline {
	return &Baseline{now: time.Now}
}

// NewRecentBaseline returns a flat-mean forecaster over the trailing window
// observations. The dashboard ranks fast and slow movers with window 7 so
// the score reflects current behavior, not the historical average.
func NewRecentBaseline(window int) *Baseline {
	return &Baseline{Window: window, now: time.Now}
}

func (b *Baseline) Forecast(series domain.DailySeries, horizon int) ([]domain.ForecastPoint, error) {
	if horizon <= 0 {
		return nil, nil
	}

	mean := series.TailMean(b.Window)

	start, ok := series.LastDate()
	if !ok {
		now := b.now()
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	}

	points := make([]domain.ForecastPoint, 0, horizon)
	for d := 1; d <= horizon; d++ {
		points = append(points, domain.ForecastPoint{
			Date: start.AddDate(0, 0, d),
			YHat: mean,
		})
	}
	return points, nil
}
