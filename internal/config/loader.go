package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"hpcbench/pkg/logging"
)

// Load reads a configuration file and fills missing fields with defaults.
// A missing file is not an error: the defaults are returned so that
// script-rendering and local inspection commands keep working.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Warn("Config", "Config file %s not found, using defaults", path)
			return Default(), nil
		}
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	applyDefaults(&cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	logging.Info("Config", "Loaded configuration from %s", path)
	return cfg, nil
}

// Validate checks constraints that would otherwise surface much later as
// confusing remote failures.
func Validate(cfg Config) error {
	switch cfg.Slurm.VanishedJobPolicy {
	case VanishedCompleted, VanishedKeep, "":
	default:
		return fmt.Errorf("invalid slurm.vanished_job_policy %q (want %q or %q)",
			cfg.Slurm.VanishedJobPolicy, VanishedCompleted, VanishedKeep)
	}
	if cfg.Discovery.MaxAttempts < 0 {
		return fmt.Errorf("discovery.max_attempts must not be negative")
	}
	if cfg.SSH.Port < 0 || cfg.SSH.Port > 65535 {
		return fmt.Errorf("ssh.port %d out of range", cfg.SSH.Port)
	}
	return nil
}
