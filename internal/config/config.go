package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultTorHost is the loopback address every SOCKS endpoint is bound to.
	// We use 127.0.0.1 instead of localhost to avoid DNS resolution and
	// IPv6 surprises on some systems.
	DefaultTorHost = "127.0.0.1"

	// DefaultSocksPort is the standard Tor SOCKS port used by a system daemon.
	DefaultSocksPort uint16 = 9050

	// DefaultEmbeddedPort is the SOCKS port for the Tor process we spawn
	// ourselves. It differs from DefaultSocksPort so an embedded instance
	// never collides with a system daemon.
	DefaultEmbeddedPort uint16 = 19450

	// DefaultCheckInterval is how often an externally managed Tor is polled.
	DefaultCheckInterval = 5 * time.Second

	// DefaultRestartDelay is the pause between a crash and the next start.
	DefaultRestartDelay = 1 * time.Second

	// DefaultMaxRestarts is the number of start attempts allowed per
	// supervisor. The attempt that reaches this number is rejected.
	DefaultMaxRestarts = 5

	// DefaultLogCapacity bounds the in-memory Tor log buffer (1 MiB).
	DefaultLogCapacity = 1 << 20

	// DefaultHelperTimeout bounds the Tails status helper command.
	DefaultHelperTimeout = 10 * time.Second

	// DefaultVersionTimeout bounds the "tor --version" query.
	DefaultVersionTimeout = 10 * time.Second

	// DefaultProbeTimeout bounds a single TCP port probe.
	DefaultProbeTimeout = 1 * time.Second

	// AppName is the application name used for XDG directory paths.
	AppName = "torkeeper"
)

// Config holds all configuration options for torkeeper.
// It is built once from defaults, an optional YAML file and CLI flags,
// and then passed to every component. Nothing in this module keeps
// configuration in package-level variables.
type Config struct {
	// TorHost is the host the SOCKS endpoint is expected on.
	TorHost string

	// SocksPort is the SOCKS port of a system Tor daemon.
	SocksPort uint16

	// EmbeddedPort is the SOCKS port for the spawned Tor process.
	EmbeddedPort uint16

	// ForcedPort, when non-zero, forces externally managed mode on
	// TorHost:ForcedPort (the --tor-port flag).
	ForcedPort uint16

	// UseLocalTor forces externally managed mode on the system daemon
	// (the --use-local-tor flag).
	UseLocalTor bool

	// TorrcPath optionally points at the torrc of a running Tor instance.
	// With UseLocalTor its SocksPort directive decides the endpoint.
	TorrcPath string

	// DataDir is the per-install directory holding the staged binary and
	// the Tor data directory.
	DataDir string

	// CheckInterval is the polling period in externally managed mode.
	CheckInterval time.Duration

	// RestartDelay is the delay before restarting a crashed process.
	RestartDelay time.Duration

	// MaxRestarts is the start-attempt ceiling.
	MaxRestarts int

	// LogCapacity is the maximum number of bytes kept in the log buffer.
	LogCapacity int

	// HelperTimeout bounds external status helper commands.
	HelperTimeout time.Duration

	// VersionTimeout bounds the version query.
	VersionTimeout time.Duration

	// ProbeTimeout bounds a single TCP port probe.
	ProbeTimeout time.Duration

	// Verbose enables debug logging.
	Verbose bool

	// JSONLogs switches the logger to JSON output.
	JSONLogs bool

	// ConfigFilePath is the YAML configuration file, if any.
	ConfigFilePath string

	// Environment describes the hardened OS profile we are running under.
	Environment Environment
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		TorHost:        DefaultTorHost,
		SocksPort:      DefaultSocksPort,
		EmbeddedPort:   DefaultEmbeddedPort,
		DataDir:        XDGDataDir(),
		CheckInterval:  DefaultCheckInterval,
		RestartDelay:   DefaultRestartDelay,
		MaxRestarts:    DefaultMaxRestarts,
		LogCapacity:    DefaultLogCapacity,
		HelperTimeout:  DefaultHelperTimeout,
		VersionTimeout: DefaultVersionTimeout,
		ProbeTimeout:   DefaultProbeTimeout,
	}
}

// TorDir returns the directory the Tor binary is staged into.
func (c *Config) TorDir() string {
	return filepath.Join(c.DataDir, "tor")
}

// TorDataDir returns the directory passed to Tor as --DataDirectory.
func (c *Config) TorDataDir() string {
	return filepath.Join(c.TorDir(), "data")
}

// JournalDir returns the directory holding the event journal database.
func (c *Config) JournalDir() string {
	return c.DataDir
}

// XDGDataDir returns the XDG data directory for torkeeper.
// On Linux: ~/.local/share/torkeeper
// On macOS: ~/Library/Application Support/torkeeper
// On Windows: %LOCALAPPDATA%\torkeeper
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for torkeeper.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if c.TorHost == "" {
		return ErrEmptyTorHost
	}
	if c.SocksPort == 0 || c.EmbeddedPort == 0 {
		return ErrInvalidPort
	}
	if c.SocksPort == c.EmbeddedPort {
		return ErrPortCollision
	}
	if c.DataDir == "" {
		return ErrEmptyDataDir
	}
	if c.CheckInterval <= 0 {
		return ErrInvalidCheckInterval
	}
	if c.RestartDelay < 0 {
		return ErrInvalidRestartDelay
	}
	if c.MaxRestarts < 1 {
		return ErrInvalidMaxRestarts
	}
	if c.LogCapacity < 0 {
		return ErrInvalidLogCapacity
	}
	if c.HelperTimeout <= 0 || c.VersionTimeout <= 0 || c.ProbeTimeout <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}
