package model

import (
	"context"

	"motorisk/internal/feature"
)

// Predictor is a trained price model. Predict returns one price per row, in row order.
// Implementations must be deterministic and safe for concurrent read-only use.
type Predictor interface {
	Predict(ctx context.Context, rows []feature.Row) ([]float64, error)
}

// PredictorFunc adapts a function to the Predictor interface.
type PredictorFunc func(ctx context.Context, rows []feature.Row) ([]float64, error)

func (f PredictorFunc) Predict(ctx context.Context, rows []feature.Row) ([]float64, error) {
	return f(ctx, rows)
}
