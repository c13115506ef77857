package forecast

import (
	"github.com/demandcast/backend-go/internal/domain"
	"github.com/rs/zerolog/log"
)

// Forecaster extrapolates a daily series a fixed number of days past its
// last observation.
type Forecaster interface {
	Forecast(series domain.DailySeries, horizon int) ([]domain.ForecastPoint, error)
}

type fallbackForecaster struct {
	primary  Forecaster
	fallback Forecaster
}

// WithFallback composes two strategies: the primary's result is used when it
// fits, otherwise the fallback's result is substituted. The fallback is
// expected to never fail (the baseline), so the composed forecaster only
// errors when both do.
func WithFallback(primary, fallback Forecaster) Forecaster {
	return &fallbackForecaster{primary: primary, fallback: fallback}
}

func (f *fallbackForecaster) Forecast(series domain.DailySeries, horizon int) ([]domain.ForecastPoint, error) {
	points, err := f.primary.Forecast(series, horizon)
	if err == nil {
		return points, nil
	}

	log.Debug().Err(err).Int("observations", len(series)).Msg("primary forecaster declined, using fallback")
	return f.fallback.Forecast(series, horizon)
}
