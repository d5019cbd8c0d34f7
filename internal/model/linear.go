package model

import (
	"context"
	"fmt"
	"sort"

	"motorisk/internal/feature"

	"github.com/spf13/cast"
)

// LinearModel is a price model exported from training as an intercept, one coefficient
// per numeric column and one weight per level of each categorical column (one-hot encoding).
// It is immutable after construction and safe for concurrent use.
type LinearModel struct {
	intercept   float64
	numeric     map[string]float64
	categorical map[string]map[string]float64

	// column names sorted once so that summation order, and therefore the result, is stable
	numericCols     []string
	categoricalCols []string
}

// Predict returns intercept + Σ coef·value + Σ weight(level) for every row.
// A missing column, a non-numeric value in a numeric column or a categorical level
// not seen during training fails the whole call with a PredictionError.
func (lm *LinearModel) Predict(ctx context.Context, rows []feature.Row) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewPredictionError("context done", err)
	}

	prices := make([]float64, len(rows))
	for i, row := range rows {
		price, err := lm.predictRow(row)
		if err != nil {
			return nil, err
		}
		prices[i] = price
	}

	return prices, nil
}

func (lm *LinearModel) predictRow(row feature.Row) (float64, error) {
	price := lm.intercept

	for _, col := range lm.numericCols {
		raw, found := row[col]
		if !found {
			return 0, NewPredictionError(fmt.Sprintf("missing numeric column %q", col), nil)
		}
		value, ok := feature.ToNumber(raw)
		if !ok {
			return 0, NewPredictionError(fmt.Sprintf("column %q is not numeric: %v", col, raw), nil)
		}
		price += lm.numeric[col] * value
	}

	for _, col := range lm.categoricalCols {
		raw, found := row[col]
		if !found {
			return 0, NewPredictionError(fmt.Sprintf("missing categorical column %q", col), nil)
		}
		level, err := cast.ToStringE(raw)
		if err != nil {
			return 0, NewPredictionError(fmt.Sprintf("column %q is not categorical", col), err)
		}
		weight, known := lm.categorical[col][level]
		if !known {
			return 0, NewPredictionError(fmt.Sprintf("unknown level %q in column %q", level, col), nil)
		}
		price += weight
	}

	return price, nil
}

// Columns returns the numeric and categorical columns the model reads, sorted.
func (lm *LinearModel) Columns() (numeric, categorical []string) {
	return append([]string(nil), lm.numericCols...), append([]string(nil), lm.categoricalCols...)
}

// NewLinearModel creates a linear model. The maps are copied.
func NewLinearModel(intercept float64, numeric map[string]float64, categorical map[string]map[string]float64) *LinearModel {
	lm := LinearModel{
		intercept:   intercept,
		numeric:     make(map[string]float64, len(numeric)),
		categorical: make(map[string]map[string]float64, len(categorical)),
	}

	for col, coef := range numeric {
		lm.numeric[col] = coef
		lm.numericCols = append(lm.numericCols, col)
	}

	for col, levels := range categorical {
		copied := make(map[string]float64, len(levels))
		for level, weight := range levels {
			copied[level] = weight
		}
		lm.categorical[col] = copied
		lm.categoricalCols = append(lm.categoricalCols, col)
	}

	sort.Strings(lm.numericCols)
	sort.Strings(lm.categoricalCols)

	return &lm
}
