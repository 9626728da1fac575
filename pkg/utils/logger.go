package utils

import "go.uber.org/zap"

// NewLogger returns a zap logger. When debug is true, uses development config
// (human-readable, debug level); otherwise uses production config (JSON, info level)
// without sampling.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("app", "apuntes")), nil
}

// QuietLogger returns the logger handed to storage and pipeline components by one-shot
// commands: logger itself in debug mode, otherwise a copy that drops anything below warn.
func QuietLogger(logger *zap.Logger, debug bool) *zap.Logger {
	if debug {
		return logger
	}
	return logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel))
}
