// Package config provides configuration file and environment support for
// sealcheck.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/qube-forensics/sealcheck/pkg/digest"
	"github.com/qube-forensics/sealcheck/pkg/errclass"
	"github.com/qube-forensics/sealcheck/pkg/fsutil"
	"github.com/qube-forensics/sealcheck/pkg/model"
)

// EnvPrefix prefixes every environment override, e.g. SEALCHECK_VERIFY_WORKERS.
const EnvPrefix = "SEALCHECK_"

// DefaultFileName is looked up in the working directory when no path is given.
const DefaultFileName = "sealcheck.yaml"

// Config represents the sealcheck configuration.
type Config struct {
	Verify  VerifyConfig  `yaml:"verify" envPrefix:"VERIFY_"`
	Logging LoggingConfig `yaml:"logging" envPrefix:"LOG_"`
	Audit   AuditConfig   `yaml:"audit" envPrefix:"AUDIT_"`
	Metrics MetricsConfig `yaml:"metrics" envPrefix:"METRICS_"`
}

// VerifyConfig configures the record verifier.
type VerifyConfig struct {
	HashField   string `yaml:"hash_field" env:"HASH_FIELD"`
	Algorithm   string `yaml:"algorithm" env:"ALGORITHM"`
	Workers     int    `yaml:"workers" env:"WORKERS"`
	PayloadType string `yaml:"payload_type" env:"PAYLOAD_TYPE"` // empty: all records
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"` // json, text
}

// AuditConfig configures the verdict audit log.
type AuditConfig struct {
	Path string `yaml:"path" env:"PATH"` // empty: disabled
}

// MetricsConfig configures metrics export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" env:"TEXTFILE"` // empty: disabled
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Verify: VerifyConfig{
			HashField: model.DefaultHashField,
			Algorithm: string(digest.Default),
			Workers:   4,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load reads configuration from path, then applies SEALCHECK_* environment
// overrides. An empty path means DefaultFileName in the working directory;
// a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultFileName
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// No config file is OK, use defaults
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errclass.ErrConfigInvalid.WithMessagef("parse %s: %v", path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, errclass.ErrConfigInvalid.WithMessagef("environment: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the verifier cannot use.
func (c *Config) Validate() error {
	if c.Verify.HashField == "" {
		return errclass.ErrConfigInvalid.WithMessage("verify.hash_field must not be empty")
	}
	if _, err := digest.ParseAlgorithm(c.Verify.Algorithm); err != nil {
		return errclass.ErrConfigInvalid.WithMessagef("verify.algorithm: %v", err)
	}
	if c.Verify.Workers < 1 {
		return errclass.ErrConfigInvalid.WithMessagef("verify.workers must be at least 1, got %d", c.Verify.Workers)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errclass.ErrConfigInvalid.WithMessagef("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return errclass.ErrConfigInvalid.WithMessagef("logging.format %q is not one of json, text", c.Logging.Format)
	}
	return nil
}

// Save writes configuration as YAML to path.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := fsutil.AtomicWrite(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}
