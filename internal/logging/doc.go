// Package logging assembles the structured slog loggers used across the
// radarpipe daemons.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes attribute helpers so daemon code tags log lines
// uniformly (component, instrument, volume key). A no-op logger is provided
// for tests and wiring code that cannot fail.
package logging
