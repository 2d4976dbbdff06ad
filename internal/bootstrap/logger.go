package bootstrap

import (
	"leverage_planner/pkg/logging"
)

// InitLogger creates the process logger from configuration and installs it
// as the global logger.
func InitLogger(cfg *Config) (*logging.ZapLogger, error) {
	logger, err := logging.New(logging.Options{
		Level:  cfg.System.LogLevel,
		Scope:  cfg.Telemetry.ServiceName,
		Bridge: true,
	})
	if err != nil {
		return nil, err
	}

	logging.SetGlobalLogger(logger)
	return logger, nil
}
