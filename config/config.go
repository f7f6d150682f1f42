// Package config loads application settings from a YAML file, a .env file and CDS_* environment
// variables, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/meenmo/cdslib/calendar"
	"github.com/meenmo/cdslib/calibration"
	"github.com/meenmo/cdslib/discount"
	"github.com/meenmo/cdslib/hazard"
	"github.com/meenmo/cdslib/marketdata"
)

// EnvPrefix prefixes every environment override, e.g. CDS_MODEL_RECOVERY_RATE or
// CDS_LOG_LEVEL.
const EnvPrefix = "CDS"

// DefaultPath is read when no path is given and CDS_CONFIG is unset.
const DefaultPath = "cds.yaml"

type Config struct {
	Logging LoggingConfig `yaml:"logging" envconfig:"LOG"`
	Model   ModelConfig   `yaml:"model" envconfig:"MODEL"`
	Cache   CacheConfig   `yaml:"cache" envconfig:"CACHE"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" split_words:"true" validate:"oneof=trace debug info warn warning error fatal panic"`
	Format string `yaml:"format" split_words:"true" validate:"oneof=json text"`
	Output string `yaml:"output" split_words:"true" validate:"required"`
	MaxAge int    `yaml:"max_age" split_words:"true" validate:"gte=0"`
}

// ModelConfig carries the discount curve and solver parameters.
type ModelConfig struct {
	Beta0           float64 `yaml:"beta0" split_words:"true"`
	Beta1           float64 `yaml:"beta1" split_words:"true"`
	Beta2           float64 `yaml:"beta2" split_words:"true"`
	Tau             float64 `yaml:"tau" split_words:"true" validate:"gt=0"`
	RecoveryRate    float64 `yaml:"recovery_rate" split_words:"true" validate:"gte=0,lt=1"`
	Tolerance       float64 `yaml:"tolerance" split_words:"true" validate:"gt=0"`
	InitialGuess    float64 `yaml:"initial_guess" split_words:"true"`
	DerivativeFloor float64 `yaml:"derivative_floor" split_words:"true" validate:"gte=0"`
	MaxIterations   int     `yaml:"max_iterations" split_words:"true" validate:"gte=0"`
	Cycle           string  `yaml:"cycle" split_words:"true" validate:"oneof=standard nonstandard"`
	Extrapolation   string  `yaml:"extrapolation" split_words:"true" validate:"oneof=flat none"`
}

// CacheConfig locates the hazard curve snapshot. An empty path disables caching.
type CacheConfig struct {
	Path string `yaml:"path" split_words:"true"`
}

// Default returns the built-in settings.
func Default() Config {
	ns := marketdata.DefaultNelsonSiegel
	cal := calibration.DefaultConfig()
	return Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Model: ModelConfig{
			Beta0:         ns.Beta0,
			Beta1:         ns.Beta1,
			Beta2:         ns.Beta2,
			Tau:           ns.Tau,
			RecoveryRate:  cal.RecoveryRate,
			Tolerance:     cal.Tolerance,
			InitialGuess:  cal.InitialGuess,
			MaxIterations: cal.MaxIterations,
			Cycle:         "standard",
			Extrapolation: string(cal.Extrapolation),
		},
	}
}

// Load builds the configuration. Missing config and .env files are not errors.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg.Model.Cycle = strings.ToLower(strings.TrimSpace(cfg.Model.Cycle))
	cfg.Model.Extrapolation = strings.ToLower(strings.TrimSpace(cfg.Model.Extrapolation))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	return validate.Struct(c)
}

// NelsonSiegel returns the discount curve parameters.
func (m ModelConfig) NelsonSiegel() discount.NelsonSiegel {
	return discount.NelsonSiegel{Beta0: m.Beta0, Beta1: m.Beta1, Beta2: m.Beta2, Tau: m.Tau}
}

// PaymentCycle resolves the configured cycle name.
func (m ModelConfig) PaymentCycle() (calendar.PaymentCycle, error) {
	return ParseCycle(m.Cycle)
}

// ParseCycle maps "standard" / "nonstandard" to a payment cycle. Empty means standard.
func ParseCycle(name string) (calendar.PaymentCycle, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "standard":
		return calendar.StandardCycle, nil
	case "nonstandard", "non-standard":
		return calendar.NonStandardCycle, nil
	default:
		return calendar.PaymentCycle{}, fmt.Errorf("unknown payment cycle %q", name)
	}
}

// Calibration converts the model section into a calibration config.
func (m ModelConfig) Calibration() (calibration.Config, error) {
	cycle, err := m.PaymentCycle()
	if err != nil {
		return calibration.Config{}, err
	}
	ext, err := hazard.ParseExtrapolation(m.Extrapolation)
	if err != nil {
		return calibration.Config{}, err
	}
	cfg := calibration.Config{
		NelsonSiegel:    m.NelsonSiegel(),
		RecoveryRate:    m.RecoveryRate,
		Tolerance:       m.Tolerance,
		InitialGuess:    m.InitialGuess,
		DerivativeFloor: m.DerivativeFloor,
		MaxIterations:   m.MaxIterations,
		Cycle:           cycle,
		Extrapolation:   ext,
	}
	if err := cfg.Validate(); err != nil {
		return calibration.Config{}, err
	}
	return cfg, nil
}
