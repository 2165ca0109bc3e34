package utils

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds a console logger for development and a JSON logger for
// every other environment.
func NewLogger(environment, level string) (*zap.Logger, error) {
	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if environment == "development" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = atomicLevel

	return cfg.Build()
}
