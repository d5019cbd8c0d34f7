package metadata

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Epsilon is added to the residual standard deviation before dividing by it.
const Epsilon = 1e-9

var (
	defaultNumericCols     = []string{"year", "km", "engine_cc"}
	defaultCategoricalCols = []string{"brand", "model", "transmission", "fuel"}
)

// ResidualStatistics is the distribution of (claimed - predicted) observed at training time.
type ResidualStatistics struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Metadata describes a trained model: its residual distribution and the roles of its columns.
// A nil *Metadata is valid and behaves as Default().
type Metadata struct {
	ResidualMean    *float64 `yaml:"residual_mean" json:"residual_mean,omitempty"`
	ResidualStd     *float64 `yaml:"residual_std" json:"residual_std,omitempty"`
	NumericCols     []string `yaml:"numeric_cols" json:"numeric_cols,omitempty"`
	CategoricalCols []string `yaml:"categorical_cols" json:"categorical_cols,omitempty"`
}

// Default returns metadata with no residual statistics and the stock motorcycle columns.
func Default() *Metadata {
	return &Metadata{
		NumericCols:     slices.Clone(defaultNumericCols),
		CategoricalCols: slices.Clone(defaultCategoricalCols),
	}
}

// Residuals returns the residual statistics, substituting mean 0 and std 1
// for absent values. A zero std is also replaced by 1.
func (m *Metadata) Residuals() ResidualStatistics {
	stats := ResidualStatistics{Mean: 0.0, Std: 1.0}
	if m == nil {
		return stats
	}
	if m.ResidualMean != nil {
		stats.Mean = *m.ResidualMean
	}
	if m.ResidualStd != nil && *m.ResidualStd != 0 {
		stats.Std = *m.ResidualStd
	}
	return stats
}

// Numeric returns a copy of the numeric feature columns, falling back to the
// defaults when the metadata is absent or lists none.
func (m *Metadata) Numeric() []string {
	if m == nil || len(m.NumericCols) == 0 {
		return slices.Clone(defaultNumericCols)
	}
	return slices.Clone(m.NumericCols)
}

// Categorical returns a copy of the categorical feature columns with the same fallback as Numeric.
func (m *Metadata) Categorical() []string {
	if m == nil || len(m.CategoricalCols) == 0 {
		return slices.Clone(defaultCategoricalCols)
	}
	return slices.Clone(m.CategoricalCols)
}

// Parse decodes YAML (or JSON) metadata.
func Parse(content []byte) (*Metadata, error) {
	var m Metadata
	if err := yaml.Unmarshal(content, &m); err != nil {
		return nil, fmt.Errorf("error unmarshaling metadata: %w", err)
	}
	return &m, nil
}

// LoadFile reads metadata from a file.
func LoadFile(path string) (*Metadata, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading metadata file: %w", err)
	}
	return Parse(content)
}
