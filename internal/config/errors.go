package config

import "errors"

// Configuration validation errors returned by Config.Validate().
// Callers match them with errors.Is().
var (
	// ErrEmptyTorHost is returned when no SOCKS host is configured.
	ErrEmptyTorHost = errors.New("invalid tor host: must not be empty")

	// ErrInvalidPort is returned when a SOCKS port is zero.
	ErrInvalidPort = errors.New("invalid port: must be between 1 and 65535")

	// ErrPortCollision is returned when the embedded port equals the system
	// daemon port. The embedded instance would then fight a system Tor
	// for the same listener.
	ErrPortCollision = errors.New("embedded port must differ from the default SOCKS port")

	// ErrEmptyDataDir is returned when no data directory is configured.
	ErrEmptyDataDir = errors.New("invalid data directory: must not be empty")

	// ErrInvalidCheckInterval is returned when the polling interval is not positive.
	ErrInvalidCheckInterval = errors.New("invalid check interval: must be positive")

	// ErrInvalidRestartDelay is returned when the restart delay is negative.
	ErrInvalidRestartDelay = errors.New("invalid restart delay: must be non-negative")

	// ErrInvalidMaxRestarts is returned when the restart ceiling is below one.
	ErrInvalidMaxRestarts = errors.New("invalid max restarts: must be at least 1")

	// ErrInvalidLogCapacity is returned when the log capacity is negative.
	// Use 0 to select DefaultLogCapacity.
	ErrInvalidLogCapacity = errors.New("invalid log capacity: must be non-negative")

	// ErrInvalidTimeout is returned when a helper, version or probe timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")
)
