package features

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/demandcast/backend-go/internal/domain"
)

const (
	// LagCount is the number of shifted target columns (lag_1..lag_7).
	LagCount = 7

	// RollingWindow is the trailing window of the rolling mean column.
	RollingWindow = 7

	// MinTrainingRows is the shortest (store, product) series a demand
	// model may be trained on.
	MinTrainingRows = 14
)

// Capability sets: the optional covariates the builder understands, in
// schema order. A column enters the feature matrix only when the source
// series carries it; presence is decided once per build, not probed row by
// row.
var (
	numericCovariates     = []string{domain.ColPrice, domain.ColDiscount, domain.ColCompetitorPrice, domain.ColInventoryLevel}
	categoricalCovariates = []string{domain.ColCategory, domain.ColRegion, domain.ColWeather, domain.ColSeason}
)

// Calendar column names.
const (
	colDay       = "day"
	colMonth     = "month"
	colWeekday   = "weekday"
	colIsWeekend = "is_weekend"
	colRolling   = "rolling_7"
)

// Matrix is a supervised-learning view of one (store, product) series:
// one row per record, ordered by date, with the target alongside.
type Matrix struct {
	Columns []string
	Rows    [][]float64
	Target  []float64
	Dates   []time.Time
}

// StepState carries exactly the fields the recursive multi-step predictor
// threads forward: the date being predicted, the lag window, the incremental
// rolling mean and the static covariate values of the last observed row.
type StepState struct {
	Date    time.Time
	Lags    [LagCount]float64 // Lags[0] holds lag_1
	Rolling float64
	Static  map[string]float64
}

// Builder turns a per-(store, product) record series into a feature matrix.
// The transform is pure: the same input always yields the same matrix.
type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

// Build derives calendar fields, coerces present numeric covariates,
// one-hot-encodes present categorical covariates (dropping one reference
// level per category), then computes lag and rolling-mean columns over the
// date-sorted series. Lag cells before enough history exist are 0; the
// rolling mean uses however many rows are available early on.
func (b *Builder) Build(records []domain.SalesRecord) (*Matrix, error) {
	rows := make([]domain.SalesRecord, len(records))
	copy(rows, records)

	// Lag computation is undefined on unsorted input.
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })

	presentNumeric := negotiateNumeric(rows)
	oneHots := negotiateCategorical(rows)

	columns := []string{colDay, colMonth, colWeekday, colIsWeekend}
	columns = append(columns, presentNumeric...)
	for _, oh := range oneHots {
		columns = append(columns, oh.column)
	}
	for lag := 1; lag <= LagCount; lag++ {
		columns = append(columns, lagColumn(lag))
	}
	columns = append(columns, colRolling)

	m := &Matrix{
		Columns: columns,
		Rows:    make([][]float64, 0, len(rows)),
		Target:  make([]float64, 0, len(rows)),
		Dates:   make([]time.Time, 0, len(rows)),
	}

	target := make([]float64, len(rows))
	for i, rec := range rows {
		target[i] = rec.UnitsSold
	}

	for i, rec := range rows {
		row := make([]float64, 0, len(columns))

		day, month, weekday, weekend := calendarFeatures(rec.Date)
		row = append(row, day, month, weekday, weekend)

		for _, col := range presentNumeric {
			row = append(row, rec.Numeric[col])
		}
		for _, oh := range oneHots {
			if rec.Categorical[oh.covariate] == oh.level {
				row = append(row, 1)
			} else {
				row = append(row, 0)
			}
		}

		for lag := 1; lag <= LagCount; lag++ {
			if i-lag >= 0 {
				row = append(row, target[i-lag])
			} else {
				row = append(row, 0)
			}
		}

		row = append(row, trailingMean(target, i, RollingWindow))

		m.Rows = append(m.Rows, row)
		m.Target = append(m.Target, target[i])
		m.Dates = append(m.Dates, rec.Date)
	}

	return m, nil
}

// LastState extracts the step state from the final row of the matrix,
// seeding recursive prediction.
func (m *Matrix) LastState() (StepState, error) {
	if len(m.Rows) == 0 {
		return StepState{}, fmt.Errorf("feature matrix is empty")
	}

	last := m.Rows[len(m.Rows)-1]
	state := StepState{
		Date:   m.Dates[len(m.Dates)-1],
		Static: make(map[string]float64),
	}

	for i, col := range m.Columns {
		switch {
		case col == colDay || col == colMonth || col == colWeekday || col == colIsWeekend:
			// Recomputed from the date at every step.
		case col == colRolling:
			state.Rolling = last[i]
		case isLagColumn(col):
			lag, _ := lagIndex(col)
			state.Lags[lag-1] = last[i]
		default:
			state.Static[col] = last[i]
		}
	}

	return state, nil
}

// AssembleRow reindexes a step state onto a model's training-time column
// schema. Columns the state cannot supply are filled with 0; state fields
// absent from the schema are dropped.
func AssembleRow(state StepState, columns []string) []float64 {
	day, month, weekday, weekend := calendarFeatures(state.Date)

	row := make([]float64, len(columns))
	for i, col := range columns {
		switch {
		case col == colDay:
			row[i] = day
		case col == colMonth:
			row[i] = month
		case col == colWeekday:
			row[i] = weekday
		case col == colIsWeekend:
			row[i] = weekend
		case col == colRolling:
			row[i] = state.Rolling
		case isLagColumn(col):
			if lag, ok := lagIndex(col); ok && lag >= 1 && lag <= LagCount {
				row[i] = state.Lags[lag-1]
			}
		default:
			row[i] = state.Static[col]
		}
	}
	return row
}

type oneHot struct {
	covariate string
	level     string
	column    string
}

func negotiateNumeric(records []domain.SalesRecord) []string {
	var present []string
	for _, col := range numericCovariates {
		for _, rec := range records {
			if _, ok := rec.Numeric[col]; ok {
				present = append(present, col)
				break
			}
		}
	}
	return present
}

// negotiateCategorical collects the distinct levels of each present
// categorical covariate and drops the first (sorted) level per category as
// the reference, avoiding the dummy-variable trap.
func negotiateCategorical(records []domain.SalesRecord) []oneHot {
	var encodings []oneHot
	for _, col := range categoricalCovariates {
		seen := make(map[string]struct{})
		for _, rec := range records {
			if v, ok := rec.Categorical[col]; ok {
				seen[v] = struct{}{}
			}
		}
		if len(seen) == 0 {
			continue
		}

		levels := make([]string, 0, len(seen))
		for level := range seen {
			levels = append(levels, level)
		}
		sort.Strings(levels)

		for _, level := range levels[1:] {
			encodings = append(encodings, oneHot{
				covariate: col,
				level:     level,
				column:    col + "_" + level,
			})
		}
	}
	return encodings
}

// calendarFeatures uses the pandas weekday convention (Monday=0) so weekend
// detection matches the trained models' semantics.
func calendarFeatures(date time.Time) (day, month, weekday, weekend float64) {
	day = float64(date.Day())
	month = float64(int(date.Month()))
	wd := (int(date.Weekday()) + 6) % 7
	weekday = float64(wd)
	if wd >= 5 {
		weekend = 1
	}
	return day, month, weekday, weekend
}

func trailingMean(values []float64, idx, window int) float64 {
	start := idx - window + 1
	if start < 0 {
		start = 0
	}
	var sum float64
	for i := start; i <= idx; i++ {
		sum += values[i]
	}
	return sum / float64(idx-start+1)
}

func lagColumn(lag int) string {
	return "lag_" + strconv.Itoa(lag)
}

func isLagColumn(col string) bool {
	return strings.HasPrefix(col, "lag_")
}

func lagIndex(col string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimPrefix(col, "lag_"))
	if err != nil {
		return 0, false
	}
	return n, true
}
