package domain

import "errors"

var (
	// ErrMissingRequiredField indicates the dataset lacks a date, product
	// or units column. Surfaced before any computation runs.
	ErrMissingRequiredField = errors.New("dataset is missing a required column")

	// ErrInsufficientHistory indicates a (store, product) series is too
	// short to train a demand model. Fatal for that key only.
	ErrInsufficientHistory = errors.New("not enough history to train")

	// ErrModelFitting indicates a forecaster could not fit its model.
	// Callers recover by substituting the baseline forecast.
	ErrModelFitting = errors.New("model fitting failed")

	// ErrNoData indicates no rows matched the requested filters.
	ErrNoData = errors.New("no data found for given filters")
)
