// Package config loads the CLI configuration from TASKFORMS_* environment
// variables.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/goliatone/go-taskforms/pkg/orchestrator"
)

// Config is the runtime configuration of the taskforms CLI.
type Config struct {
	DBPath         string  `env:"TASKFORMS_DB_PATH" envDefault:"taskforms.db"`
	DefinitionsDir string  `env:"TASKFORMS_DEFINITIONS_DIR" envDefault:"definitions"`
	DefaultEngine  string  `env:"TASKFORMS_DEFAULT_ENGINE" envDefault:"vanilla"`
	SaveValidation string  `env:"TASKFORMS_SAVE_VALIDATION" envDefault:"types"`
	LogLevel       string  `env:"TASKFORMS_LOG_LEVEL" envDefault:"warn"`
	LogFormat      string  `env:"TASKFORMS_LOG_FORMAT" envDefault:"console"`
	OTLPEndpoint   string  `env:"TASKFORMS_OTLP_ENDPOINT"`
	TraceSample    float64 `env:"TASKFORMS_TRACE_SAMPLE_RATIO" envDefault:"1"`
	Locale         string  `env:"TASKFORMS_LOCALE"`
	Translations   string  `env:"TASKFORMS_TRANSLATIONS"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates the configuration.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("config: TASKFORMS_DB_PATH is required")
	}
	if _, err := c.SaveValidationMode(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: log level: %w", err)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	if strings.TrimSpace(c.Translations) != "" && strings.TrimSpace(c.Locale) == "" {
		return fmt.Errorf("config: TASKFORMS_TRANSLATIONS requires TASKFORMS_LOCALE")
	}
	if c.TraceSample < 0 || c.TraceSample > 1 {
		return fmt.Errorf("config: trace sample ratio %v out of range", c.TraceSample)
	}
	return nil
}

// SaveValidationMode returns the orchestrator save validation mode.
func (c Config) SaveValidationMode() (orchestrator.SaveValidation, error) {
	return orchestrator.ParseSaveValidation(c.SaveValidation)
}

// NewLogger builds the process logger. Logs go to stderr so rendered forms on
// stdout stay machine readable.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("config: log level: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	if c.LogFormat == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("config: build logger: %w", err)
	}
	return logger.Named("taskforms"), nil
}
