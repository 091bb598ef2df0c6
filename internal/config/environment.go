package config

import (
	"os"
	"runtime"
	"strings"
)

// Environment describes hardened OS profiles that route all traffic through
// Tor at the system level. Under these profiles a direct probe of the local
// SOCKS port is unnecessary or inaccurate.
type Environment struct {
	// Torsocks is true when the process runs under the torsocks wrapper.
	Torsocks bool

	// Tails is true on the Tails live system.
	Tails bool

	// Whonix is true on a Whonix workstation.
	Whonix bool
}

// Hardened reports whether any profile that implies a system Tor is active.
func (e Environment) Hardened() bool {
	return e.Torsocks || e.Tails || e.Whonix
}

// String returns a short human-readable profile name.
func (e Environment) String() string {
	switch {
	case e.Torsocks:
		return "torsocks"
	case e.Tails:
		return "tails"
	case e.Whonix:
		return "whonix"
	default:
		return "default"
	}
}

const (
	osReleasePath    = "/etc/os-release"
	whonixMarkerPath = "/usr/share/anon-ws-base-files/workstation"
)

// Probe holds the OS accessors used by DetectEnvironment.
// Tests replace them; DefaultProbe uses the real system.
type Probe struct {
	GOOS     string
	Getenv   func(string) string
	ReadFile func(string) ([]byte, error)
	Exists   func(string) bool
}

// DefaultProbe returns a Probe backed by the running system.
func DefaultProbe() Probe {
	return Probe{
		GOOS:     runtime.GOOS,
		Getenv:   os.Getenv,
		ReadFile: os.ReadFile,
		Exists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
	}
}

// DetectEnvironment inspects the system for torsocks, Tails and Whonix.
func DetectEnvironment() Environment {
	return DefaultProbe().Detect()
}

// Detect inspects the system described by p.
func (p Probe) Detect() Environment {
	if p.GOOS != "linux" {
		return Environment{}
	}
	return Environment{
		Torsocks: strings.Contains(p.Getenv("LD_PRELOAD"), "libtorsocks"),
		Tails:    p.isTails(),
		Whonix:   p.Exists(whonixMarkerPath),
	}
}

func (p Probe) isTails() bool {
	data, err := p.ReadFile(osReleasePath)
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == `NAME="Tails"` {
			return true
		}
	}
	return false
}
