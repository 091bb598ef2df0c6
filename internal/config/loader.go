package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = "torkeeper.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of torkeeper.yaml.
// Every field is optional; unset fields keep the value already in Config.
type File struct {
	TorHost        string        `yaml:"torHost,omitempty"`
	SocksPort      uint16        `yaml:"socksPort,omitempty"`
	EmbeddedPort   uint16        `yaml:"embeddedPort,omitempty"`
	ForcedPort     uint16        `yaml:"torPort,omitempty"`
	UseLocalTor    bool          `yaml:"useLocalTor,omitempty"`
	Torrc          string        `yaml:"torrc,omitempty"`
	DataDir        string        `yaml:"dataDir,omitempty"`
	CheckInterval  time.Duration `yaml:"checkInterval,omitempty"`
	RestartDelay   time.Duration `yaml:"restartDelay,omitempty"`
	MaxRestarts    int           `yaml:"maxRestarts,omitempty"`
	LogCapacity    int           `yaml:"logCapacity,omitempty"`
	HelperTimeout  time.Duration `yaml:"helperTimeout,omitempty"`
	VersionTimeout time.Duration `yaml:"versionTimeout,omitempty"`
}

// LoadConfigFile loads a configuration file from path.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Apply copies every field set in the file onto cfg.
func (f *File) Apply(cfg *Config) {
	if f.TorHost != "" {
		cfg.TorHost = f.TorHost
	}
	if f.SocksPort != 0 {
		cfg.SocksPort = f.SocksPort
	}
	if f.EmbeddedPort != 0 {
		cfg.EmbeddedPort = f.EmbeddedPort
	}
	if f.ForcedPort != 0 {
		cfg.ForcedPort = f.ForcedPort
	}
	if f.UseLocalTor {
		cfg.UseLocalTor = true
	}
	if f.Torrc != "" {
		cfg.TorrcPath = f.Torrc
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	if f.CheckInterval != 0 {
		cfg.CheckInterval = f.CheckInterval
	}
	if f.RestartDelay != 0 {
		cfg.RestartDelay = f.RestartDelay
	}
	if f.MaxRestarts != 0 {
		cfg.MaxRestarts = f.MaxRestarts
	}
	if f.LogCapacity != 0 {
		cfg.LogCapacity = f.LogCapacity
	}
	if f.HelperTimeout != 0 {
		cfg.HelperTimeout = f.HelperTimeout
	}
	if f.VersionTimeout != 0 {
		cfg.VersionTimeout = f.VersionTimeout
	}
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for torkeeper.yaml in the current directory
// 3. Look for torkeeper.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	xdgConfig := filepath.Join(XDGConfigDir(), DefaultConfigFile)
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig
	}

	return ""
}
