package model

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/demandcast/backend-go/internal/domain"
	"github.com/demandcast/backend-go/internal/features"
	"github.com/demandcast/backend-go/internal/storage"
)

// Key identifies a trained demand model.
type Key struct {
	StoreID   string
	ProductID string
}

func (k Key) String() string {
	return k.StoreID + "__" + k.ProductID
}

// TrainedModel holds a fitted regression and the exact training-time feature
// column order. It is never auto-invalidated: callers retrain explicitly to
// refresh it.
type TrainedModel struct {
	Key           Key
	Columns       []string
	Coef          Coefficients
	TrainRows     int
	ValidationMAE float64
	TrainedAt     time.Time
}

// Options tunes the store. Zero values fall back to defaults.
type Options struct {
	// Lambda is the ridge penalty (default 1.0).
	Lambda float64

	// HoldoutFraction is the trailing share of the series kept out of
	// fitting for validation (default 0.2).
	HoldoutFraction float64

	// Artifacts, when set, persists trained models as JSON blobs and
	// warm-starts lazy predictions from them.
	Artifacts storage.ObjectStorage
}

// Store trains, caches and serves one regression model per (store, product)
// key. Per-key training is deduplicated through a singleflight group, so
// concurrent callers for the same untrained key share one training run.
type Store struct {
	builder *features.Builder
	lambda  float64
	holdout float64

	artifacts storage.ObjectStorage

	mu     sync.RWMutex
	models map[Key]*TrainedModel
	group  singleflight.Group
}

func NewStore(builder *features.Builder, opts Options) *Store {
	if opts.Lambda <= 0 {
		opts.Lambda = 1.0
	}
	if opts.HoldoutFraction <= 0 || opts.HoldoutFraction >= 1 {
		opts.HoldoutFraction = 0.2
	}
	return &Store{
		builder:   builder,
		lambda:    opts.Lambda,
		holdout:   opts.HoldoutFraction,
		artifacts: opts.Artifacts,
		models:    make(map[Key]*TrainedModel),
	}
}

// Get returns the cached model for a key, if one is ready.
func (s *Store) Get(storeID, productID string) (*TrainedModel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[Key{StoreID: storeID, ProductID: productID}]
	return m, ok
}

// Train fits a fresh model for the key from the given records, replacing any
// cached one. Concurrent Train calls for the same key share a single fit.
func (s *Store) Train(ctx context.Context, storeID, productID string, records []domain.SalesRecord) (*TrainedModel, error) {
	key := Key{StoreID: storeID, ProductID: productID}
	v, err, _ := s.group.Do(key.String(), func() (interface{}, error) {
		return s.train(ctx, key, records)
	})
	if err != nil {
		return nil, err
	}
	return v.(*TrainedModel), nil
}

// Predict forecasts the next horizon days for the key with recursive
// multi-step prediction. A missing model is materialized lazily: first from
// a persisted artifact, otherwise by training on the given records.
func (s *Store) Predict(ctx context.Context, storeID, productID string, records []domain.SalesRecord, horizon int) ([]domain.ForecastPoint, error) {
	key := Key{StoreID: storeID, ProductID: productID}

	m, ok := s.Get(storeID, productID)
	if !ok {
		v, err, _ := s.group.Do(key.String(), func() (interface{}, error) {
			// A flight that finished while we were queued may already
			// have populated the cache.
			if cached, ok := s.Get(storeID, productID); ok {
				return cached, nil
			}
			if loaded, err := s.loadArtifact(ctx, key); err == nil {
				s.put(loaded)
				return loaded, nil
			}
			return s.train(ctx, key, records)
		})
		if err != nil {
			return nil, err
		}
		m = v.(*TrainedModel)
	}

	matrix, err := s.builder.Build(records)
	if err != nil {
		return nil, err
	}
	state, err := matrix.LastState()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoData, err)
	}

	points := make([]domain.ForecastPoint, 0, horizon)
	for i := 0; i < horizon; i++ {
		var yhat float64
		state, yhat = m.step(state)
		points = append(points, domain.ForecastPoint{
			Date: state.Date,
			YHat: math.Max(0, yhat),
		})
	}
	return points, nil
}

// step is the immutable transition of recursive prediction: given the
// carried state it returns the advanced state and the raw prediction. The
// raw value (not the clamped output) feeds the next step's lag window, and
// the rolling mean advances incrementally as (rolling*6 + yhat)/7 — an
// accepted approximation, since the true last six actuals are unknown past
// the first predicted day.
func (m *TrainedModel) step(state features.StepState) (features.StepState, float64) {
	next := state
	next.Date = state.Date.AddDate(0, 0, 1)

	for k := features.LagCount - 1; k >= 1; k-- {
		next.Lags[k] = state.Lags[k-1]
	}
	next.Lags[0] = math.Trunc(state.Rolling)

	row := features.AssembleRow(next, m.Columns)
	yhat := m.Coef.Predict(row)

	next.Lags[0] = yhat
	next.Rolling = (state.Rolling*6 + yhat) / 7
	return next, yhat
}

func (s *Store) train(ctx context.Context, key Key, records []domain.SalesRecord) (*TrainedModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matrix, err := s.builder.Build(records)
	if err != nil {
		return nil, err
	}
	if len(matrix.Rows) < features.MinTrainingRows {
		return nil, fmt.Errorf("%w: key %s has %d rows, need at least %d",
			domain.ErrInsufficientHistory, key, len(matrix.Rows), features.MinTrainingRows)
	}

	// Chronological split: the trailing window is held out. Shuffling
	// would leak future observations into the fitting window.
	holdoutRows := int(math.Ceil(float64(len(matrix.Rows)) * s.holdout))
	split := len(matrix.Rows) - holdoutRows
	if split < 1 {
		split = 1
	}

	coef, err := fitRidge(matrix.Rows[:split], matrix.Target[:split], s.lambda)
	if err != nil {
		return nil, err
	}

	m := &TrainedModel{
		Key:           key,
		Columns:       matrix.Columns,
		Coef:          *coef,
		TrainRows:     split,
		ValidationMAE: meanAbsError(coef, matrix.Rows[split:], matrix.Target[split:]),
		TrainedAt:     time.Now().UTC(),
	}

	s.put(m)
	s.saveArtifact(ctx, m)

	log.Info().
		Str("store", key.StoreID).
		Str("product", key.ProductID).
		Int("train_rows", m.TrainRows).
		Float64("validation_mae", m.ValidationMAE).
		Msg("demand model trained")

	return m, nil
}

func (s *Store) put(m *TrainedModel) {
	s.mu.Lock()
	s.models[m.Key] = m
	s.mu.Unlock()
}
