// Package logging builds the slog loggers used throughout trainloop.
//
// It provides a compact console handler for interactive use, a JSON
// handler for machine consumption, typed attribute helpers, and a no-op
// logger for tests. Components never log through a package singleton;
// they receive a *slog.Logger (usually via NewComponentLogger) so tests
// can substitute a capturing or silent sink.
package logging
