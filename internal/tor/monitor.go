package tor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/torkeeper/internal/config"
)

// BootstrapMarker is the Tor notice that signals a usable circuit.
const BootstrapMarker = "Bootstrapped 100%"

// Tails exposes bootstrap status through a systemd target.
const (
	systemctlPath        = "/bin/systemctl"
	tailsBootstrapTarget = "tails-tor-has-bootstrapped.target"
)

// Monitor decides whether the Tor SOCKS endpoint is usable.
type Monitor struct {
	env           config.Environment
	host          string
	port          uint16
	probe         PortProber
	runner        CommandRunner
	helperTimeout time.Duration
	logger        *slog.Logger
}

// NewMonitor creates a Monitor for host:port under env.
func NewMonitor(env config.Environment, host string, port uint16, probe PortProber, runner CommandRunner, helperTimeout time.Duration, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		env:           env,
		host:          host,
		port:          port,
		probe:         probe,
		runner:        runner,
		helperTimeout: helperTimeout,
		logger:        logger,
	}
}

// Check reports connectivity. The first applicable rule wins:
// torsocks and Whonix are always connected, Tails asks systemd whether
// Tor has bootstrapped, everything else probes the SOCKS port.
func (m *Monitor) Check(ctx context.Context) bool {
	switch {
	case m.env.Torsocks:
		// A torsocks-wrapped process may not reach localhost at all.
		return true
	case m.env.Whonix:
		return true
	case m.env.Tails:
		return m.tailsBootstrapped(ctx)
	default:
		return m.probe(m.host, m.port)
	}
}

func (m *Monitor) tailsBootstrapped(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.helperTimeout)
	defer cancel()

	_, err := m.runner.Run(ctx, systemctlPath, "--quiet", "is-active", tailsBootstrapTarget)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			m.logger.Warn("tails bootstrap check", "error", ErrTimeout, "timeout", m.helperTimeout)
		}
		return false
	}
	return true
}

// Run calls check every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context, interval time.Duration, check func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check(ctx)
		}
	}
}

// containsBootstrapMarker reports whether a chunk of Tor output announces
// a completed bootstrap.
func containsBootstrapMarker(chunk []byte) bool {
	return bytes.Contains(chunk, []byte(BootstrapMarker))
}
