package bootstrap

import (
	"fmt"
	"os"

	"leverage_planner/internal/config"
)

// Config is an alias for the project's main configuration struct
type Config = config.Config

// LoadConfig delegates to the project's config loader and runs pre-flight
// checks on the file itself
func LoadConfig(path string) (*Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if err := checkPreFlight(path, cfg); err != nil {
		return nil, fmt.Errorf("pre-flight checks failed: %w", err)
	}

	return cfg, nil
}

// checkPreFlight performs environment checks beyond schema validation
func checkPreFlight(path string, cfg *Config) error {
	if cfg.Quote.Provider != "aggregator" || cfg.Quote.Aggregator.APIKey == "" {
		return nil
	}

	// An inline API key must not be readable by group or others
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	mode := info.Mode().Perm()
	if mode&0077 != 0 {
		return fmt.Errorf("insecure permissions on config file %s with an api key: %04o (should be 0600)", path, mode)
	}
	return nil
}
