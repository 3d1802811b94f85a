// Package kvlog builds the store's logger. Everything that logs takes a
// *zap.Logger; this package only decides which one.
package kvlog

import "go.uber.org/zap"

// New returns a production logger, or a development (human-readable,
// debug-level) one when debug is set.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
