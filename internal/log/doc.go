// Package log builds the slog loggers used by torkeeper.
//
// RedactingHandler wraps any slog.Handler and masks values that must never
// reach a log file: Tor control passwords and cookies, wallet seeds and keys.
// Both attribute keys and string values are inspected, including values
// nested in groups.
//
//	logger := log.NewLogger(os.Stderr, verbose, false)
//	slog.SetDefault(logger)
package log
