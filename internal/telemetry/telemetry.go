// Package telemetry constructs the structured logger threaded through every
// store subsystem. It fills the role the top-level package expected from a
// sibling logger package: one constructor, one logger per component.
package telemetry

import (
	"testing"

	"go.uber.org/zap"
)

// New builds a *zap.SugaredLogger for the named component. Under go test it
// uses zap's development config (console-encoded, human-readable); outside
// tests it uses the production config (structured JSON, info level and
// above), matching whichever binary actually runs.
func New(component string) *zap.SugaredLogger {
	var (
		logger *zap.Logger
		err    error
	)
	if testing.Testing() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		logger = zap.NewNop()
	}
	return logger.Named(component).Sugar()
}
