package model

import (
	"errors"
	"fmt"
)

// PredictionError is returned when the model cannot produce a price for a row:
// a missing column, an unknown categorical level, a failed remote call.
type PredictionError struct {
	Reason string
	Err    error
}

// Error returns the text description of the error.
func (pe *PredictionError) Error() string {
	if pe.Err != nil {
		return fmt.Sprintf("prediction failed: %s: %v", pe.Reason, pe.Err)
	}
	return "prediction failed: " + pe.Reason
}

func (pe *PredictionError) Unwrap() error {
	return pe.Err
}

// NewPredictionError creates a PredictionError with an optional cause.
func NewPredictionError(reason string, err error) *PredictionError {
	return &PredictionError{Reason: reason, Err: err}
}

// AsPredictionError wraps err into a PredictionError unless it already is one.
func AsPredictionError(reason string, err error) *PredictionError {
	var pe *PredictionError
	if errors.As(err, &pe) {
		return pe
	}
	return NewPredictionError(reason, err)
}
