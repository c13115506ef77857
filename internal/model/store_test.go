package model

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demandcast/backend-go/internal/domain"
	"github.com/demandcast/backend-go/internal/features"
	"github.com/demandcast/backend-go/internal/storage"
)

func history(n int) []domain.SalesRecord {
	records := make([]domain.SalesRecord, 0, n)
	for d := 0; d < n; d++ {
		units := 20.0
		if d%7 >= 5 {
			units = 35
		}
		records = append(records, domain.SalesRecord{
			Date:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d),
			StoreID:   domain.DefaultStoreID,
			ProductID: "A",
			UnitsSold: units,
		})
	}
	return records
}

// countingStorage tracks artifact writes; reads always miss.
type countingStorage struct {
	mu   sync.Mutex
	puts int
}

func (c *countingStorage) GetObject(ctx context.Context, key string) ([]byte, error) {
	return nil, storage.ErrObjectNotFound
}

func (c *countingStorage) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	c.mu.Lock()
	c.puts++
	c.mu.Unlock()
	return nil
}

func (c *countingStorage) ListObjects(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	return nil, nil
}

func newTestStore(artifacts storage.ObjectStorage) *Store {
	return NewStore(features.NewBuilder(), Options{Artifacts: artifacts})
}

func TestTrainRejectsShortHistory(t *testing.T) {
	s := newTestStore(nil)

	_, err := s.Train(context.Background(), domain.DefaultStoreID, "A", history(13))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientHistory)

	_, ok := s.Get(domain.DefaultStoreID, "A")
	assert.False(t, ok)
}

func TestTrainMinimumHistory(t *testing.T) {
	s := newTestStore(nil)

	m, err := s.Train(context.Background(), domain.DefaultStoreID, "A", history(14))
	require.NoError(t, err)
	assert.Equal(t, "SINGLE_STORE__A", m.Key.String())
	assert.Greater(t, m.TrainRows, 0)
	assert.Less(t, m.TrainRows, 14)

	cached, ok := s.Get(domain.DefaultStoreID, "A")
	require.True(t, ok)
	assert.Same(t, m, cached)
}

func TestTrainHoldsOutTrailingFraction(t *testing.T) {
	s := newTestStore(nil)

	m, err := s.Train(context.Background(), domain.DefaultStoreID, "A", history(50))
	require.NoError(t, err)
	// ceil(50 * 0.2) = 10 rows held out.
	assert.Equal(t, 40, m.TrainRows)
}

func TestPredictHorizonAndClamp(t *testing.T) {
	s := newTestStore(nil)
	records := history(60)

	points, err := s.Predict(context.Background(), domain.DefaultStoreID, "A", records, 30)
	require.NoError(t, err)
	require.Len(t, points, 30)

	last := records[len(records)-1].Date
	for i, p := range points {
		assert.Equal(t, last.AddDate(0, 0, i+1), p.Date)
		assert.GreaterOrEqual(t, p.YHat, 0.0)
	}
}

func TestPredictTracksStableDemand(t *testing.T) {
	s := newTestStore(nil)

	flat := make([]domain.SalesRecord, 0, 60)
	for d := 0; d < 60; d++ {
		flat = append(flat, domain.SalesRecord{
			Date:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d),
			StoreID:   domain.DefaultStoreID,
			ProductID: "B",
			UnitsSold: 25,
		})
	}

	points, err := s.Predict(context.Background(), domain.DefaultStoreID, "B", flat, 14)
	require.NoError(t, err)
	for _, p := range points {
		assert.InDelta(t, 25, p.YHat, 3)
	}
}

func TestPredictTrainsLazilyOnce(t *testing.T) {
	artifacts := &countingStorage{}
	s := newTestStore(artifacts)
	records := history(40)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Predict(context.Background(), domain.DefaultStoreID, "A", records, 7)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	// Every successful artifact write corresponds to one training run.
	artifacts.mu.Lock()
	defer artifacts.mu.Unlock()
	assert.Equal(t, 1, artifacts.puts)
}

func TestTrainRetrainsExplicitly(t *testing.T) {
	artifacts := &countingStorage{}
	s := newTestStore(artifacts)
	records := history(40)

	first, err := s.Train(context.Background(), domain.DefaultStoreID, "A", records)
	require.NoError(t, err)
	second, err := s.Train(context.Background(), domain.DefaultStoreID, "A", records)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, artifacts.puts)
}

func TestPredictCancelledContext(t *testing.T) {
	s := newTestStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Predict(ctx, domain.DefaultStoreID, "A", history(40), 7)
	assert.Error(t, err)
}

func TestStepFeedsRawPredictionForward(t *testing.T) {
	m := &TrainedModel{
		Columns: []string{"lag_1", "rolling_7"},
		// yhat = lag_1, so the step output equals the truncated rolling
		// mean and the raw value becomes the next lag_1.
		Coef: Coefficients{Weights: []float64{1, 0}},
	}

	state := features.StepState{
		Date:    time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Rolling: 10.9,
	}

	next, yhat := m.step(state)
	assert.InDelta(t, 10, yhat, 1e-9)
	assert.InDelta(t, 10, next.Lags[0], 1e-9)
	assert.InDelta(t, (10.9*6+10)/7, next.Rolling, 1e-9)
	assert.Equal(t, state.Date.AddDate(0, 0, 1), next.Date)
}

func TestFitRidgeRecoversLinearRelation(t *testing.T) {
	rows := [][]float64{{1}, {2}, {3}, {4}, {5}, {6}}
	target := []float64{3, 5, 7, 9, 11, 13} // y = 2x + 1

	coef, err := fitRidge(rows, target, 0.001)
	require.NoError(t, err)
	assert.InDelta(t, 2, coef.Weights[0], 0.05)
	assert.InDelta(t, 1, coef.Intercept, 0.2)
	assert.InDelta(t, 15, coef.Predict([]float64{7}), 0.3)
}

func TestFitRidgeEmptyInput(t *testing.T) {
	_, err := fitRidge(nil, nil, 1)
	assert.ErrorIs(t, err, domain.ErrModelFitting)
}
