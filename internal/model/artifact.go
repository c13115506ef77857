package model

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/demandcast/backend-go/internal/storage"
)

// ArtifactPrefix is where model blobs live inside the artifact bucket.
const ArtifactPrefix = "models/"

// artifact is the persisted JSON form of a trained model. The external
// layer treats it as an opaque handle; the column order inside is what makes
// the blob usable at prediction time.
type artifact struct {
	StoreID       string    `json:"store_id"`
	ProductID     string    `json:"product_id"`
	Columns       []string  `json:"columns"`
	Intercept     float64   `json:"intercept"`
	Weights       []float64 `json:"weights"`
	TrainRows     int       `json:"train_rows"`
	ValidationMAE float64   `json:"validation_mae"`
	TrainedAt     time.Time `json:"trained_at"`
}

func artifactKey(key Key) string {
	return ArtifactPrefix + key.String() + ".json"
}

// saveArtifact persists the model blob. Persistence is best-effort: the
// in-memory cache stays authoritative and a storage failure only logs.
func (s *Store) saveArtifact(ctx context.Context, m *TrainedModel) {
	if s.artifacts == nil {
		return
	}

	payload, err := json.Marshal(artifact{
		StoreID:       m.Key.StoreID,
		ProductID:     m.Key.ProductID,
		Columns:       m.Columns,
		Intercept:     m.Coef.Intercept,
		Weights:       m.Coef.Weights,
		TrainRows:     m.TrainRows,
		ValidationMAE: m.ValidationMAE,
		TrainedAt:     m.TrainedAt,
	})
	if err != nil {
		log.Warn().Err(err).Str("key", m.Key.String()).Msg("encode model artifact failed")
		return
	}

	if err := s.artifacts.PutObject(ctx, artifactKey(m.Key), payload, "application/json"); err != nil {
		log.Warn().Err(err).Str("key", m.Key.String()).Msg("persist model artifact failed")
	}
}

func (s *Store) loadArtifact(ctx context.Context, key Key) (*TrainedModel, error) {
	if s.artifacts == nil {
		return nil, storage.ErrObjectNotFound
	}

	payload, err := s.artifacts.GetObject(ctx, artifactKey(key))
	if err != nil {
		return nil, err
	}

	var a artifact
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, fmt.Errorf("decode model artifact %s: %w", key, err)
	}

	return &TrainedModel{
		Key:           key,
		Columns:       a.Columns,
		Coef:          Coefficients{Intercept: a.Intercept, Weights: a.Weights},
		TrainRows:     a.TrainRows,
		ValidationMAE: a.ValidationMAE,
		TrainedAt:     a.TrainedAt,
	}, nil
}
