package model

import (
	"errors"
	"fmt"
	"os"

	"motorisk/internal/metadata"

	"gopkg.in/yaml.v3"
)

const TypeLinear = "linear"

// Bundle is the on-disk form of a trained model: the model parameters and,
// optionally, the metadata recorded at training time.
type Bundle struct {
	Model    LinearSpec         `yaml:"model"`
	Metadata *metadata.Metadata `yaml:"metadata"`
}

// LinearSpec holds the parameters of a LinearModel.
type LinearSpec struct {
	Type        string                        `yaml:"type"`
	Intercept   float64                       `yaml:"intercept"`
	Numeric     map[string]float64            `yaml:"numeric"`
	Categorical map[string]map[string]float64 `yaml:"categorical"`
}

// Validate checks that the bundle describes a model that can be built.
func (b *Bundle) Validate() error {
	if b.Model.Type != "" && b.Model.Type != TypeLinear {
		return fmt.Errorf("model.type: unsupported type '%s'", b.Model.Type)
	}
	if len(b.Model.Numeric) == 0 && len(b.Model.Categorical) == 0 {
		return errors.New("model: no coefficients")
	}
	for col, levels := range b.Model.Categorical {
		if len(levels) == 0 {
			return fmt.Errorf("model.categorical.%s: no levels", col)
		}
	}
	return nil
}

// ParseBundle decodes a YAML (or JSON) model bundle.
// The returned metadata is nil when the bundle carries none.
func ParseBundle(content []byte) (*LinearModel, *metadata.Metadata, error) {
	var bundle Bundle
	if err := yaml.Unmarshal(content, &bundle); err != nil {
		return nil, nil, fmt.Errorf("error unmarshaling model bundle: %w", err)
	}

	if err := bundle.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid model bundle: %w", err)
	}

	lm := NewLinearModel(bundle.Model.Intercept, bundle.Model.Numeric, bundle.Model.Categorical)
	return lm, bundle.Metadata, nil
}

// LoadBundle reads a model bundle file.
func LoadBundle(path string) (*LinearModel, *metadata.Metadata, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("error reading model bundle: %w", err)
	}
	return ParseBundle(content)
}
