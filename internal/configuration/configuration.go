package configuration

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ModelTypeLinear = "linear"
	ModelTypeRemote = "remote"
)

// AppConfig represents the complete application configuration.
type AppConfig struct {
	// Logger — logger component configuration
	Logger LoggerConfig `mapstructure:"logger"`
	// Server — HTTP server configuration
	Server ServerConfig `mapstructure:"server"`
	// Model — price model configuration
	Model ModelConfig `mapstructure:"model"`
	// Analysis — risk analysis configuration
	Analysis AnalysisConfig `mapstructure:"analysis"`
	// Dataset — scored listings dataset configuration
	Dataset DatasetConfig `mapstructure:"dataset"`
}

// LoggerConfig defines logging settings.
type LoggerConfig struct {
	// Level — log level: debug, info, warn, warning, error.
	// Value is case-insensitive but checked in lowercase.
	Level string `mapstructure:"level"`
}

// ServerConfig contains HTTP server parameters.
type ServerConfig struct {
	// Address — address and port where the server will listen (e.g., ":8080").
	Address string `mapstructure:"address"`
	// Static — path to directory with static files served by the server.
	// Can be empty if static serving is not required.
	Static string `mapstructure:"static"`
}

// ModelConfig selects where predictions come from.
type ModelConfig struct {
	// Type — "linear" for a bundle file, "remote" for an inference service.
	Type string `mapstructure:"type"`
	// Bundle — path to the model bundle file (linear).
	Bundle string `mapstructure:"bundle"`
	// Url — base URL of the inference service (remote).
	Url string `mapstructure:"url"`
	// Timeout — timeout of one remote prediction (default 3s).
	Timeout time.Duration `mapstructure:"timeout"`
	// Metadata — optional metadata file; overrides the metadata stored in the bundle.
	Metadata string `mapstructure:"metadata"`
}

// AnalysisConfig defines risk analysis parameters.
type AnalysisConfig struct {
	// Token — bearer token required by administrative endpoints (model reload).
	// Must be set, otherwise the configuration will be invalid.
	Token string `mapstructure:"token"`
	// Rules — optional path to a YAML file with additional listing rules.
	Rules string `mapstructure:"rules"`
	// HistoryLength — number of assessments kept per listing (default 10).
	HistoryLength int `mapstructure:"history_length"`
	// HistoryTtl — lifetime of a listing history without new assessments (default 24h).
	HistoryTtl time.Duration `mapstructure:"history_ttl"`
	// Workers — concurrent predictions for batch scoring (default 4).
	Workers int `mapstructure:"workers"`
}

// DatasetConfig defines scored listings dataset parameters
type DatasetConfig struct {
	// Dataset file path (optional)
	File string `mapstructure:"file"`
	// Maximal dataset file size in MB (default 100)
	Size int `mapstructure:"size"`
	// Number of dataset files (default 20)
	Amount int `mapstructure:"amount"`
}

// Validate checks the correctness of the entire application configuration.
// Calls validation for each nested structure and returns the first detected error.
func (c *AppConfig) Validate() error {
	if err := c.Logger.Validate(); err != nil {
		return err
	}

	if err := c.Server.Validate(); err != nil {
		return err
	}

	if err := c.Model.Validate(); err != nil {
		return err
	}

	if err := c.Analysis.Validate(); err != nil {
		return err
	}

	if err := c.Dataset.Validate(); err != nil {
		return err
	}

	return nil
}

// ValidateBatch checks only what offline CSV scoring uses: the logger, the model
// and the analysis tuning. Server address and the admin token are not required.
func (c *AppConfig) ValidateBatch() error {
	if err := c.Logger.Validate(); err != nil {
		return err
	}

	if err := c.Model.Validate(); err != nil {
		return err
	}

	return c.Analysis.validateTuning()
}

// Validate checks the correctness of the logger configuration.
// Supported values: debug, info, warn, warning, error (case-insensitive).
func (l *LoggerConfig) Validate() error {
	if l.Level == "" {
		return errors.New("logger.level: must be specified")
	}

	valid := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !valid[strings.ToLower(l.Level)] {
		return fmt.Errorf("logger.level: unsupported level '%s'", l.Level)
	}

	return nil
}

// Validate checks that the server address is set.
func (n *ServerConfig) Validate() error {
	if n.Address == "" {
		return errors.New("server.address: must be specified")
	}

	return nil
}

// Validate checks the model source. Type defaults to linear.
func (m *ModelConfig) Validate() error {
	if m.Type == "" {
		m.Type = ModelTypeLinear
	}

	switch m.Type {
	case ModelTypeLinear:
		if m.Bundle == "" {
			return errors.New("model.bundle: must be specified")
		}
	case ModelTypeRemote:
		if m.Url == "" {
			return errors.New("model.url: must be specified")
		}
		u, err := url.Parse(m.Url)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("model.url: incorrect URL '%s'", m.Url)
		}
		if m.Timeout == 0 {
			m.Timeout = 3 * time.Second
		}
	default:
		return fmt.Errorf("model.type: unsupported type '%s'", m.Type)
	}

	return nil
}

// Validate checks the analysis configuration and fills in defaults.
func (a *AnalysisConfig) Validate() error {
	if a.Token == "" {
		return errors.New("analysis.token: must be specified")
	}

	return a.validateTuning()
}

func (a *AnalysisConfig) validateTuning() error {
	if a.HistoryLength == 0 {
		a.HistoryLength = 10
	}
	if a.HistoryLength < 0 {
		return errors.New("analysis.history_length: must be positive")
	}

	if a.HistoryTtl == 0 {
		a.HistoryTtl = 24 * time.Hour
	}

	if a.Workers == 0 {
		a.Workers = 4
	}
	if a.Workers < 0 {
		return errors.New("analysis.workers: must be positive")
	}

	return nil
}

// Validate dataset parameters
func (d *DatasetConfig) Validate() error {
	if d.Amount == 0 {
		d.Amount = 20
	}

	if d.Size == 0 {
		d.Size = 100
	}

	return nil
}

// LoadConfig loads configuration from the specified file using Viper.
// Supports YAML format. Environment variables (AutomaticEnv) can override
// values from the file, e.g. ANALYSIS_TOKEN for analysis.token.
//
// Returns a pointer to AppConfig or an error if:
// - the file is not found or inaccessible
// - the configuration has invalid format
// - one of the sections fails validation
func LoadConfig(configPath string) (*AppConfig, error) {
	return load(configPath, (*AppConfig).Validate)
}

// LoadBatchConfig is LoadConfig with the batch validation rules of ValidateBatch.
func LoadBatchConfig(configPath string) (*AppConfig, error) {
	return load(configPath, (*AppConfig).ValidateBatch)
}

func load(configPath string, validate func(*AppConfig) error) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config AppConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}
