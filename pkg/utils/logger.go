// Package utils provides small helpers shared across the engine: logging
// construction, vector math, and text formatting.
package utils

import "go.uber.org/zap"

// NewLogger returns a zap logger for the engine. Debug selects the
// development config (console encoding, debug level); otherwise the
// production config (JSON, info level) is used.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
