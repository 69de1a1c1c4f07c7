package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"welldecline/domain/decline"
	"welldecline/domain/production"
	"welldecline/internal/errors"
	"welldecline/internal/fitting"
	"welldecline/internal/preprocess"
)

// DateLayout is the layout of the data cut-off date
const DateLayout = "2006-01-02"

// Config represents the complete application configuration
type Config struct {
	Data       DataConfig       `yaml:"data"`
	Preprocess PreprocessConfig `yaml:"preprocess"`
	Fit        FitConfig        `yaml:"fit"`
	Forecast   ForecastConfig   `yaml:"forecast"`
	Runtime    RuntimeConfig    `yaml:"runtime"`
}

// DataConfig selects the workbook, well and channel
type DataConfig struct {
	File    string `yaml:"file"`
	Sheet   string `yaml:"sheet"` // empty reads the first sheet
	Well    string `yaml:"well"`
	Channel string `yaml:"channel"`
	Until   string `yaml:"until"` // YYYY-MM-DD, empty keeps the whole history

	WellColumn string `yaml:"well_column"`
	DateColumn string `yaml:"date_column"`
	OilColumn  string `yaml:"oil_column"`
	GasColumn  string `yaml:"gas_column"`
}

// PreprocessConfig holds smoothing and outlier settings
type PreprocessConfig struct {
	Window         int     `yaml:"window"`
	RejectOutliers bool    `yaml:"reject_outliers"`
	OutlierSigma   float64 `yaml:"outlier_sigma"`
}

// FitConfig holds model and solver settings
type FitConfig struct {
	Model             string        `yaml:"model"`
	Method            string        `yaml:"method"`
	MaxIterations     int           `yaml:"max_iterations"`
	MaxEvaluations    int           `yaml:"max_evaluations"`
	Tolerance         float64       `yaml:"tolerance"`
	ResidualTolerance float64       `yaml:"residual_tolerance"`
	Timeout           time.Duration `yaml:"timeout"`
}

// ForecastConfig holds the forecast query
type ForecastConfig struct {
	TargetRate  float64 `yaml:"target_rate"`
	HorizonDays int     `yaml:"horizon_days"`
}

// RuntimeConfig holds process-level settings
type RuntimeConfig struct {
	Workers     int    `yaml:"workers"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"` // console or json
	MetricsFile string `yaml:"metrics_file"`
}

// Default returns the built-in configuration
func Default() *Config {
	opts := preprocess.DefaultOptions()
	fit := fitting.DefaultSettings()
	return &Config{
		Data: DataConfig{
			Channel:    string(production.ChannelOil),
			WellColumn: "NPD_WELL_BORE_NAME",
			DateColumn: "DATEPRD",
			OilColumn:  "BORE_OIL_VOL",
			GasColumn:  "BORE_GAS_VOL",
		},
		Preprocess: PreprocessConfig{
			Window:       opts.Window,
			OutlierSigma: opts.OutlierSigma,
		},
		Fit: FitConfig{
			Model:             strings.ToLower(decline.Hyperbolic.String()),
			Method:            string(fit.Method),
			MaxIterations:     fit.MaxIterations,
			MaxEvaluations:    fit.MaxEvaluations,
			Tolerance:         fit.Tolerance,
			ResidualTolerance: fit.ResidualTolerance,
		},
		Forecast: ForecastConfig{
			HorizonDays: 365,
		},
		Runtime: RuntimeConfig{
			Workers:   3,
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Load reads the YAML file named by DCA_CONFIG, if any, applies environment
// overrides and validates the result.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("DCA_CONFIG"))
}

// LoadFile is Load with an explicit YAML path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	config := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
		if err := yaml.Unmarshal(raw, config); err != nil {
			return nil, errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("parse %s: %w", path, err))
		}
	}

	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

// applyEnv overrides file values with any variables that are set
func applyEnv(c *Config) {
	c.Data.File = getEnvOrDefault("DCA_FILE", c.Data.File)
	c.Data.Sheet = getEnvOrDefault("DCA_SHEET", c.Data.Sheet)
	c.Data.Well = getEnvOrDefault("DCA_WELL", c.Data.Well)
	c.Data.Channel = getEnvOrDefault("DCA_CHANNEL", c.Data.Channel)
	c.Data.Until = getEnvOrDefault("DCA_UNTIL", c.Data.Until)
	c.Data.WellColumn = getEnvOrDefault("DCA_WELL_COLUMN", c.Data.WellColumn)
	c.Data.DateColumn = getEnvOrDefault("DCA_DATE_COLUMN", c.Data.DateColumn)
	c.Data.OilColumn = getEnvOrDefault("DCA_OIL_COLUMN", c.Data.OilColumn)
	c.Data.GasColumn = getEnvOrDefault("DCA_GAS_COLUMN", c.Data.GasColumn)

	c.Preprocess.Window = getEnvIntOrDefault("DCA_WINDOW", c.Preprocess.Window)
	c.Preprocess.RejectOutliers = getEnvBoolOrDefault("DCA_REJECT_OUTLIERS", c.Preprocess.RejectOutliers)
	c.Preprocess.OutlierSigma = getEnvFloatOrDefault("DCA_OUTLIER_SIGMA", c.Preprocess.OutlierSigma)

	c.Fit.Model = getEnvOrDefault("DCA_MODEL", c.Fit.Model)
	c.Fit.Method = getEnvOrDefault("DCA_METHOD", c.Fit.Method)
	c.Fit.MaxIterations = getEnvIntOrDefault("DCA_MAX_ITERATIONS", c.Fit.MaxIterations)
	c.Fit.MaxEvaluations = getEnvIntOrDefault("DCA_MAX_EVALUATIONS", c.Fit.MaxEvaluations)
	c.Fit.Tolerance = getEnvFloatOrDefault("DCA_TOLERANCE", c.Fit.Tolerance)
	c.Fit.ResidualTolerance = getEnvFloatOrDefault("DCA_RESIDUAL_TOLERANCE", c.Fit.ResidualTolerance)
	c.Fit.Timeout = getEnvDurationOrDefault("DCA_TIMEOUT", c.Fit.Timeout)

	c.Forecast.TargetRate = getEnvFloatOrDefault("DCA_TARGET_RATE", c.Forecast.TargetRate)
	c.Forecast.HorizonDays = getEnvIntOrDefault("DCA_HORIZON_DAYS", c.Forecast.HorizonDays)

	c.Runtime.Workers = getEnvIntOrDefault("DCA_WORKERS", c.Runtime.Workers)
	c.Runtime.LogLevel = getEnvOrDefault("LOG_LEVEL", c.Runtime.LogLevel)
	c.Runtime.LogFormat = getEnvOrDefault("LOG_FORMAT", c.Runtime.LogFormat)
	c.Runtime.MetricsFile = getEnvOrDefault("DCA_METRICS_FILE", c.Runtime.MetricsFile)
}

// Validate checks every section
func (c *Config) Validate() error {
	if _, err := production.ParseChannel(c.Data.Channel); err != nil {
		return errors.ConfigInvalid(fmt.Sprintf("channel: %v", err))
	}
	if _, err := c.UntilDate(); err != nil {
		return err
	}
	if c.Data.DateColumn == "" || c.Data.OilColumn == "" || c.Data.GasColumn == "" {
		return errors.ConfigInvalid("date, oil and gas column names are required")
	}

	if c.Preprocess.Window < 1 {
		return errors.ConfigInvalid(fmt.Sprintf("window must be at least 1, got %d", c.Preprocess.Window))
	}
	if c.Preprocess.OutlierSigma <= 0 {
		return errors.ConfigInvalid("outlier sigma must be positive")
	}

	if _, err := decline.ParseKind(c.Fit.Model); err != nil {
		return errors.ConfigInvalid(fmt.Sprintf("model: %v", err))
	}
	if _, err := fitting.ParseMethod(c.Fit.Method); err != nil {
		return errors.ConfigInvalid(fmt.Sprintf("method: %v", err))
	}
	if c.Fit.MaxIterations <= 0 || c.Fit.MaxEvaluations <= 0 {
		return errors.ConfigInvalid("solver budgets must be positive")
	}
	if c.Fit.Tolerance <= 0 || c.Fit.ResidualTolerance <= 0 {
		return errors.ConfigInvalid("solver tolerances must be positive")
	}
	if c.Fit.Timeout < 0 {
		return errors.ConfigInvalid("timeout must not be negative")
	}

	if c.Forecast.TargetRate < 0 || c.Forecast.HorizonDays < 0 {
		return errors.ConfigInvalid("forecast target rate and horizon must not be negative")
	}

	if c.Runtime.Workers < 1 {
		return errors.ConfigInvalid("workers must be at least 1")
	}
	if _, err := zerolog.ParseLevel(c.Runtime.LogLevel); err != nil {
		return errors.ConfigInvalid(fmt.Sprintf("log level %q is not recognised", c.Runtime.LogLevel))
	}
	switch c.Runtime.LogFormat {
	case "console", "json":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("log format must be console or json, got %q", c.Runtime.LogFormat))
	}
	return nil
}

// UntilDate parses the data cut-off; the zero time means no cut-off
func (c *Config) UntilDate() (time.Time, error) {
	if c.Data.Until == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, c.Data.Until)
	if err != nil {
		return time.Time{}, errors.ConfigInvalid(fmt.Sprintf("until date %q must be YYYY-MM-DD", c.Data.Until))
	}
	return t, nil
}

// PreprocessOptions converts the data and preprocess sections
func (c *Config) PreprocessOptions() (preprocess.Options, error) {
	channel, err := production.ParseChannel(c.Data.Channel)
	if err != nil {
		return preprocess.Options{}, errors.ConfigInvalid(fmt.Sprintf("channel: %v", err))
	}
	until, err := c.UntilDate()
	if err != nil {
		return preprocess.Options{}, err
	}
	return preprocess.Options{
		Well:           c.Data.Well,
		Channel:        channel,
		Window:         c.Preprocess.Window,
		RejectOutliers: c.Preprocess.RejectOutliers,
		OutlierSigma:   c.Preprocess.OutlierSigma,
		Until:          until,
	}, nil
}

// FitSettings converts the fit section
func (c *Config) FitSettings() (fitting.Settings, error) {
	method, err := fitting.ParseMethod(c.Fit.Method)
	if err != nil {
		return fitting.Settings{}, errors.ConfigInvalid(fmt.Sprintf("method: %v", err))
	}
	return fitting.Settings{
		Method:            method,
		MaxIterations:     c.Fit.MaxIterations,
		MaxEvaluations:    c.Fit.MaxEvaluations,
		Tolerance:         c.Fit.Tolerance,
		ResidualTolerance: c.Fit.ResidualTolerance,
		Timeout:           c.Fit.Timeout,
	}, nil
}

// Model parses the configured decline model
func (c *Config) Model() (decline.Kind, error) {
	kind, err := decline.ParseKind(c.Fit.Model)
	if err != nil {
		return 0, errors.ConfigInvalid(fmt.Sprintf("model: %v", err))
	}
	return kind, nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
