// Package config loads custodyd configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the full custodyd configuration. YAML supplies the base values;
// CUSTODY_* environment variables override them.
type Config struct {
	// Listen is the HTTP bind address.
	Listen string `yaml:"listen" env:"CUSTODY_LISTEN"`

	// ProgramID is the hex program identity namespacing all derived custody
	// addresses. Deployment metadata: changing it orphans existing records.
	ProgramID string `yaml:"program_id" env:"CUSTODY_PROGRAM_ID"`

	// StorePath is the SQLite database file for custody records. Empty keeps
	// records in memory (demos only).
	StorePath string `yaml:"store_path" env:"CUSTODY_STORE_PATH"`

	// RegistryPath is the JSONL audit file. Empty logs registry events to
	// the structured logger instead.
	RegistryPath string `yaml:"registry_path" env:"CUSTODY_REGISTRY_PATH"`

	// ReserveFloor is the per-account reservation floor in base units.
	ReserveFloor uint64 `yaml:"reserve_floor" env:"CUSTODY_RESERVE_FLOOR"`

	Unit struct {
		Ticker   string `yaml:"ticker" env:"CUSTODY_UNIT_TICKER"`
		Name     string `yaml:"name" env:"CUSTODY_UNIT_NAME"`
		Decimals int32  `yaml:"decimals" env:"CUSTODY_UNIT_DECIMALS"`
	} `yaml:"unit"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Listen = ":8090"
	cfg.ProgramID = "c0de000000000000000000000000000000000000000000000000000000000001"
	cfg.StorePath = ""
	cfg.RegistryPath = ""
	cfg.ReserveFloor = 1_000_000
	cfg.Unit.Ticker = "VAL"
	cfg.Unit.Name = "Value Unit"
	cfg.Unit.Decimals = 9
	return cfg
}

// Load reads the YAML file at path (missing file keeps defaults) and applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("env overrides: %w", err)
	}
	return cfg, nil
}

// Write renders the configuration back to a YAML file.
func Write(path string, cfg Config) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
