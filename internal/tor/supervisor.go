package tor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/nao1215/torkeeper/internal/assets"
	"github.com/nao1215/torkeeper/internal/config"
)

// lockFileName guards a data directory against a second supervisor.
const lockFileName = "torkeeper.lock"

// outputReadSize is the read size of the output pump.
const outputReadSize = 32 * 1024

// LaunchPlan is everything needed to spawn the embedded Tor process.
// It is computed once at construction.
type LaunchPlan struct {
	BinaryPath string
	DataDir    string
	Host       string
	Port       uint16
	PIDFile    string
}

// Args returns the Tor command line in its fixed order.
func (p LaunchPlan) Args() []string {
	return []string{
		"--ignore-missing-torrc",
		"--SocksPort", JoinHostPort(p.Host, p.Port),
		"--TruncateLogFile", "1",
		"--DataDirectory", p.DataDir,
		"--Log", "notice",
		"--pidfile", p.PIDFile,
	}
}

// Supervisor owns the Tor SOCKS endpoint used by the wallet.
//
// Depending on the environment it either monitors a Tor instance someone
// else runs, or stages, spawns and restarts a bundled Tor binary. Its
// Connected value and the events delivered to observers are the single
// source of truth for "the anonymizing transport is usable".
type Supervisor struct {
	cfg       *config.Config
	logger    *slog.Logger
	launcher  Launcher
	runner    CommandRunner
	probe     PortProber
	bundle    fs.FS
	observers []Observer

	logs    *LogBuffer
	monitor *Monitor

	// Fixed after New.
	mode Mode
	host string
	port uint16
	plan LaunchPlan

	// notifyMu serializes transitions and their event dispatch so observers
	// see events in transition order.
	notifyMu sync.Mutex

	mu            sync.Mutex
	state         State
	connected     bool
	restartCount  int
	stopRetries   bool
	failure       error
	lastError     string
	proc          Process
	stopping      bool
	restartTimer  *time.Timer
	restartGen    uint64
	monitorCtx    context.Context
	monitorCancel context.CancelFunc
	dirLock       *flock.Flock
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// WithLauncher replaces the process launcher.
func WithLauncher(l Launcher) Option {
	return func(s *Supervisor) {
		s.launcher = l
	}
}

// WithCommandRunner replaces the runner used for helper commands.
func WithCommandRunner(r CommandRunner) Option {
	return func(s *Supervisor) {
		s.runner = r
	}
}

// WithPortProber replaces the TCP port probe.
func WithPortProber(p PortProber) Option {
	return func(s *Supervisor) {
		s.probe = p
	}
}

// WithBundle replaces the embedded Tor bundle.
func WithBundle(bundle fs.FS) Option {
	return func(s *Supervisor) {
		s.bundle = bundle
	}
}

// WithObserver registers an observer for supervisor events.
func WithObserver(o Observer) Option {
	return func(s *Supervisor) {
		s.observers = append(s.observers, o)
	}
}

// New selects the supervisor mode and prepares it. The first rule that
// applies wins:
//
//  1. ForcedPort: external on that port; an error is recorded if it is closed.
//  2. UseLocalTor: external on the system port (or the torrc endpoint);
//     an error is recorded if it is closed.
//  3. torsocks, Tails, Whonix, or an open system port: external.
//  4. No bundled binary: unavailable, with a warning.
//  5. Embedded port already open: external on that port.
//  6. Otherwise: embedded.
//
// Configuration problems found here are recorded in LastError, not returned.
// New only fails on an invalid Config.
func New(cfg *config.Config, opts ...Option) (*Supervisor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &Supervisor{
		cfg:      cfg,
		launcher: ExecLauncher{},
		runner:   ExecRunner{},
		bundle:   assets.Bundle(),
		state:    StateUnstarted,
		host:     cfg.TorHost,
		port:     cfg.SocksPort,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.probe == nil {
		s.probe = NewDialProber(cfg.ProbeTimeout)
	}

	capacity := cfg.LogCapacity
	if capacity == 0 {
		capacity = config.DefaultLogCapacity
	}
	s.logs = NewLogBuffer(capacity)

	s.selectMode()
	s.monitor = NewMonitor(cfg.Environment, s.host, s.port, s.probe, s.runner, cfg.HelperTimeout, s.logger)

	s.logger.Info("tor supervisor ready",
		"mode", s.mode,
		"socksAddr", JoinHostPort(s.host, s.port),
		"environment", cfg.Environment,
	)
	return s, nil
}

func (s *Supervisor) selectMode() {
	cfg := s.cfg
	s.mode = ModeExternal

	if cfg.ForcedPort != 0 {
		s.port = cfg.ForcedPort
		if !s.probe(s.host, s.port) {
			s.recordConfigError(fmt.Errorf("--tor-port was specified but no running Tor instance was found on port %d", s.port))
		}
		return
	}

	if cfg.UseLocalTor {
		if cfg.TorrcPath != "" {
			peer := ParseConfig(cfg.TorrcPath, s.probe)
			s.host, s.port = peer.Host, peer.Port
		}
		if !s.probe(s.host, s.port) {
			s.recordConfigError(errors.New("--use-local-tor was specified but no running Tor instance found"))
		}
		return
	}

	if cfg.Environment.Hardened() || s.probe(s.host, s.port) {
		return
	}

	binPath, err := NewStager(s.bundle, cfg.TorDir()).Stage()
	if err != nil {
		s.logger.Warn("built without embedded Tor, assuming a local Tor instance", "error", err)
		s.mode = ModeUnavailable
		return
	}

	s.port = cfg.EmbeddedPort
	if s.probe(s.host, s.port) {
		s.logger.Info("embedded tor port already served, using it", "port", s.port)
		return
	}

	s.mode = ModeEmbedded
	s.plan = LaunchPlan{
		BinaryPath: binPath,
		DataDir:    cfg.TorDataDir(),
		Host:       s.host,
		Port:       s.port,
		PIDFile:    filepath.Join(cfg.TorDataDir(), "tor.pid"),
	}
	s.logger.Debug("using embedded tor instance", "path", binPath)
}

func (s *Supervisor) recordConfigError(err error) {
	s.update(func(evs *[]Event) {
		s.recordErrorLocked(err, evs)
	})
}

// update runs fn under the state lock and then dispatches the events it
// produced. Event dispatch happens outside mu so observers may read state.
func (s *Supervisor) update(fn func(evs *[]Event)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	var evs []Event
	s.mu.Lock()
	fn(&evs)
	s.mu.Unlock()

	for _, e := range evs {
		for _, o := range s.observers {
			o.OnEvent(e)
		}
	}
}

func (s *Supervisor) setStateLocked(st State, evs *[]Event) {
	if s.state == st {
		return
	}
	s.state = st
	*evs = append(*evs, Event{Kind: EventStateChanged, At: time.Now(), State: st, Connected: s.connected})
}

// setConnectedLocked is the only place connected changes.
// Repeating the current value emits nothing.
func (s *Supervisor) setConnectedLocked(connected bool, evs *[]Event) {
	if s.connected == connected {
		return
	}
	s.connected = connected
	*evs = append(*evs, Event{Kind: EventConnectivityChanged, At: time.Now(), State: s.state, Connected: connected})
}

func (s *Supervisor) recordErrorLocked(err error, evs *[]Event) {
	s.lastError = err.Error()
	*evs = append(*evs, Event{Kind: EventError, At: time.Now(), State: s.state, Connected: s.connected, Err: err})
}

// failLocked latches the supervisor into StateFailed.
func (s *Supervisor) failLocked(err error, evs *[]Event) {
	s.logger.Error("tor supervisor failed permanently", "error", err)
	s.stopRetries = true
	s.failure = err
	s.setConnectedLocked(false, evs)
	s.setStateLocked(StateFailed, evs)
	s.recordErrorLocked(err, evs)
	s.releaseDirLockLocked()
}

// Start brings the transport up.
//
// In external and unavailable mode it checks connectivity immediately and
// then every CheckInterval until Stop or until ctx is done. In embedded
// mode it spawns Tor; the returned error is also recorded in LastError.
func (s *Supervisor) Start(ctx context.Context) error {
	if s.mode != ModeEmbedded {
		s.startMonitor(ctx)
		return nil
	}

	// The port probe may take ProbeTimeout and runs before taking the
	// state lock.
	busy := s.probe(s.plan.Host, s.plan.Port)
	var err error
	s.update(func(evs *[]Event) {
		err = s.startLocked(busy, evs)
	})
	return err
}

// startLocked spawns Tor unless the supervisor is active, failed, or busy
// reports the SOCKS port as taken.
func (s *Supervisor) startLocked(busy bool, evs *[]Event) error {
	switch s.state {
	case StateStarting, StateRunning:
		s.recordErrorLocked(ErrAlreadyRunning, evs)
		return ErrAlreadyRunning
	case StateFailed:
		return s.failure
	}

	if busy {
		err := fmt.Errorf("unable to start tor on %s: %w", JoinHostPort(s.plan.Host, s.plan.Port), ErrPortConflict)
		s.recordErrorLocked(err, evs)
		return err
	}

	if err := s.acquireDirLockLocked(); err != nil {
		s.recordErrorLocked(err, evs)
		return err
	}

	s.restartCount++
	if s.restartCount > s.cfg.MaxRestarts-1 {
		s.failLocked(ErrRestartLimitExceeded, evs)
		return ErrRestartLimitExceeded
	}

	s.setStateLocked(StateStarting, evs)
	s.logger.Debug("starting tor", "path", s.plan.BinaryPath, "args", strings.Join(s.plan.Args(), " "), "attempt", s.restartCount)

	if err := os.MkdirAll(s.plan.DataDir, 0o700); err != nil {
		werr := fmt.Errorf("%w: %s: %w", ErrLaunchFailure, s.plan.BinaryPath, err)
		s.failLocked(werr, evs)
		return werr
	}

	proc, err := s.launcher.Launch(s.plan.BinaryPath, s.plan.Args())
	if err != nil {
		werr := fmt.Errorf("%w: %s: %w", ErrLaunchFailure, s.plan.BinaryPath, err)
		s.failLocked(werr, evs)
		return werr
	}

	s.proc = proc
	s.stopping = false
	s.setStateLocked(StateRunning, evs)
	s.logger.Info("tor started, awaiting bootstrap", "pid", proc.Pid())

	go s.pump(proc)
	return nil
}

// pump forwards the process output as read and reports its exit. The
// bootstrap marker is also found when it straddles two reads.
func (s *Supervisor) pump(proc Process) {
	out := proc.Output()
	buf := make([]byte, outputReadSize)
	var tail []byte
	for {
		n, err := out.Read(buf)
		if n > 0 {
			chunk := bytes.Clone(buf[:n])
			window := append(tail, chunk...)
			s.handleOutput(chunk, containsBootstrapMarker(window))
			tail = bytes.Clone(window[max(0, len(window)-len(BootstrapMarker)+1):])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Warn("tor output reader stopped", "error", err)
				_, _ = io.Copy(io.Discard, out)
			}
			break
		}
	}

	s.handleExit(proc, proc.Wait())
}

// handleOutput appends a chunk of Tor output to the log buffer and marks the
// transport connected once the bootstrap marker shows up.
func (s *Supervisor) handleOutput(chunk []byte, bootstrapped bool) {
	s.logger.Debug("tor", "output", strings.TrimRight(string(chunk), "\n"))

	s.update(func(evs *[]Event) {
		s.logs.Append(chunk)
		*evs = append(*evs, Event{Kind: EventLogsUpdated, At: time.Now(), State: s.state, Connected: s.connected})

		if bootstrapped {
			if !s.connected {
				s.logger.Info("tor bootstrapped")
			}
			s.setConnectedLocked(true, evs)
		}
	})
}

// handleExit reacts to the end of a Tor process. An exit requested by Stop
// ends in StateStopped; anything else is a crash that schedules one restart
// unless retries are disabled.
func (s *Supervisor) handleExit(proc Process, waitErr error) {
	s.update(func(evs *[]Event) {
		if s.proc != proc {
			return
		}
		s.proc = nil
		s.setConnectedLocked(false, evs)

		if s.stopping {
			s.stopping = false
			s.setStateLocked(StateStopped, evs)
			s.releaseDirLockLocked()
			return
		}

		s.logger.Warn("tor crashed or exited", "error", waitErr)
		s.setStateLocked(StateCrashed, evs)
		if s.stopRetries {
			return
		}
		s.scheduleRestartLocked(evs)
	})
}

func (s *Supervisor) scheduleRestartLocked(evs *[]Event) {
	s.setStateLocked(StateRestarting, evs)
	s.restartGen++
	gen := s.restartGen
	s.restartTimer = time.AfterFunc(s.cfg.RestartDelay, func() {
		s.restart(gen)
	})
}

// restart is the delayed restart scheduled after a crash. A port that is
// still busy counts as an attempt and is retried after another delay.
func (s *Supervisor) restart(gen uint64) {
	busy := s.probe(s.plan.Host, s.plan.Port)
	s.update(func(evs *[]Event) {
		if gen != s.restartGen || s.state != StateRestarting {
			return
		}
		s.restartTimer = nil

		err := s.startLocked(busy, evs)
		if !errors.Is(err, ErrPortConflict) {
			return
		}
		s.restartCount++
		if s.restartCount > s.cfg.MaxRestarts-1 {
			s.failLocked(ErrRestartLimitExceeded, evs)
			return
		}
		s.scheduleRestartLocked(evs)
	})
}

// Stop kills the Tor process immediately and cancels a pending restart.
// In external mode it stops the connectivity polling.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	cancel := s.monitorCancel
	s.monitorCtx, s.monitorCancel = nil, nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	var err error
	s.update(func(evs *[]Event) {
		s.restartGen++
		if s.restartTimer != nil {
			s.restartTimer.Stop()
			s.restartTimer = nil
		}

		if s.proc != nil {
			s.stopping = true
			if kerr := s.proc.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
				err = fmt.Errorf("failed to kill tor: %w", kerr)
			}
		} else {
			if s.state == StateCrashed || s.state == StateRestarting {
				s.setStateLocked(StateStopped, evs)
			}
			s.releaseDirLockLocked()
		}
		s.setConnectedLocked(false, evs)
	})
	return err
}

// startMonitor polls connectivity until Stop or until ctx is done. A monitor
// whose context has ended is replaced.
func (s *Supervisor) startMonitor(ctx context.Context) {
	s.mu.Lock()
	if s.monitorCtx != nil && s.monitorCtx.Err() == nil {
		s.mu.Unlock()
		return
	}
	if s.monitorCancel != nil {
		s.monitorCancel()
	}
	mctx, cancel := context.WithCancel(ctx)
	s.monitorCtx, s.monitorCancel = mctx, cancel
	s.mu.Unlock()

	s.CheckConnection(mctx)
	go s.monitor.Run(mctx, s.cfg.CheckInterval, s.CheckConnection)
}

// CheckConnection runs the connection monitor once and records the result.
func (s *Supervisor) CheckConnection(ctx context.Context) {
	connected := s.monitor.Check(ctx)
	s.update(func(evs *[]Event) {
		// A check that raced with Stop must not resurrect the connection.
		if ctx.Err() != nil {
			return
		}
		s.setConnectedLocked(connected, evs)
	})
}

func (s *Supervisor) acquireDirLockLocked() error {
	if s.dirLock != nil && s.dirLock.Locked() {
		return nil
	}
	if err := os.MkdirAll(s.cfg.TorDir(), 0o700); err != nil {
		return fmt.Errorf("failed to create tor directory: %w", err)
	}
	if s.dirLock == nil {
		s.dirLock = flock.New(filepath.Join(s.cfg.TorDir(), lockFileName))
	}
	locked, err := s.dirLock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring data directory lock: %w", err)
	}
	if !locked {
		return ErrDataDirLocked
	}
	return nil
}

func (s *Supervisor) releaseDirLockLocked() {
	if s.dirLock == nil || !s.dirLock.Locked() {
		return
	}
	if err := s.dirLock.Unlock(); err != nil {
		s.logger.Warn("failed to release data directory lock", "error", err)
	}
}

// Mode returns the mode chosen at construction.
func (s *Supervisor) Mode() Mode {
	return s.mode
}

// LocalTor reports whether Tor is managed by someone else.
func (s *Supervisor) LocalTor() bool {
	return s.mode != ModeEmbedded
}

// Plan returns the launch plan. ok is false outside embedded mode.
func (s *Supervisor) Plan() (plan LaunchPlan, ok bool) {
	return s.plan, s.mode == ModeEmbedded
}

// Connected reports whether the transport is usable.
func (s *Supervisor) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// State returns the process state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RestartCount returns the number of start attempts made so far.
func (s *Supervisor) RestartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restartCount
}

// LastError returns the most recent recorded error message, or "".
func (s *Supervisor) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// Logs returns the accumulated Tor output.
func (s *Supervisor) Logs() string {
	return s.logs.String()
}

// LogsDropped returns how many bytes of Tor output were evicted from the
// bounded log buffer.
func (s *Supervisor) LogsDropped() int64 {
	return s.logs.Dropped()
}

// Peer returns the SOCKS endpoint in use. Active mirrors Connected.
func (s *Supervisor) Peer() Peer {
	return Peer{Host: s.host, Port: s.port, Active: s.Connected()}
}

// Client returns a SOCKS5 client for the supervised endpoint.
func (s *Supervisor) Client(timeout time.Duration) (*Client, error) {
	return NewClient(s.Peer().Addr(), timeout)
}
