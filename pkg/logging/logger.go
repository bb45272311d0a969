// Package logging builds the process-wide zap.Logger, grounded on
// yungbote-neurobridge-backend's internal/platform/logger (mode-selected
// zap.Config) but returning a plain *zap.Logger rather than a sugared
// wrapper, matching how the rest of the engine (pkg/queue.Distributor,
// the worker pool) already calls zap with structured fields.
package logging

import (
	"strings"

	"go.uber.org/zap"
)

// New builds a *zap.Logger for mode ("production"/"prod" for JSON output
// at info level, anything else for human-readable development output at
// debug level).
func New(mode string) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	return cfg.Build()
}
