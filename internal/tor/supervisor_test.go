package tor

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/nao1215/torkeeper/internal/config"
)

type configT = config.Config

// fakeProcess stands in for a Tor process. Its output is an in-memory pipe
// and it exits when killed or when the test calls exit.
type fakeProcess struct {
	pid    int
	pr     *io.PipeReader
	pw     *io.PipeWriter
	done   chan struct{}
	once   sync.Once
	killed atomic.Bool
}

func newFakeProcess(pid int) *fakeProcess {
	pr, pw := io.Pipe()
	return &fakeProcess{pid: pid, pr: pr, pw: pw, done: make(chan struct{})}
}

func (p *fakeProcess) Output() io.Reader { return p.pr }

func (p *fakeProcess) Wait() error {
	<-p.done
	if p.killed.Load() {
		return errors.New("signal: killed")
	}
	return errors.New("exit status 1")
}

func (p *fakeProcess) Kill() error {
	p.killed.Store(true)
	p.exit()
	return nil
}

func (p *fakeProcess) Pid() int { return p.pid }

// exit simulates the process terminating on its own.
func (p *fakeProcess) exit() {
	p.once.Do(func() {
		_ = p.pw.Close()
		close(p.done)
	})
}

func (p *fakeProcess) emit(line string) {
	p.write(line + "\n")
}

func (p *fakeProcess) write(raw string) {
	_, _ = p.pw.Write([]byte(raw))
}

type fakeLauncher struct {
	mu    sync.Mutex
	err   error
	procs []*fakeProcess
	args  [][]string
}

func (l *fakeLauncher) Launch(_ string, args []string) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	p := newFakeProcess(1000 + len(l.procs))
	l.procs = append(l.procs, p)
	l.args = append(l.args, args)
	return p, nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.procs)
}

func (l *fakeLauncher) last() *fakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.procs[len(l.procs)-1]
}

// eventRecorder is an Observer that keeps every event.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) OnEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) ofKind(kind EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (r *eventRecorder) states() []State {
	var out []State
	for _, e := range r.ofKind(EventStateChanged) {
		out = append(out, e.State)
	}
	return out
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.DataDir = t.TempDir()
	cfg.RestartDelay = 10 * time.Millisecond
	cfg.CheckInterval = 10 * time.Millisecond
	return cfg
}

// newEmbeddedSupervisor builds a supervisor that selects embedded mode:
// every port is closed and the bundle carries a binary.
func newEmbeddedSupervisor(t *testing.T, mutate func(*configT), opts ...Option) (*Supervisor, *fakeLauncher, *probeRecorder) {
	t.Helper()
	cfg := testConfig(t)
	if mutate != nil {
		mutate(cfg)
	}
	launcher := &fakeLauncher{}
	probe := newProbeRecorder()

	all := append([]Option{
		WithLauncher(launcher),
		WithPortProber(probe.probe),
		WithBundle(testBundle()),
		WithLogger(discardLogger()),
	}, opts...)
	s, err := New(cfg, all...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if s.Mode() != ModeEmbedded {
		t.Fatalf("Mode() = %v, expected embedded", s.Mode())
	}
	t.Cleanup(func() { _ = s.Stop() })
	return s, launcher, probe
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestLaunchPlanArgs(t *testing.T) {
	t.Parallel()

	plan := LaunchPlan{
		BinaryPath: "/opt/tor/tor",
		DataDir:    "/data/tor/data",
		Host:       "127.0.0.1",
		Port:       19450,
		PIDFile:    "/data/tor/data/tor.pid",
	}
	want := []string{
		"--ignore-missing-torrc",
		"--SocksPort", "127.0.0.1:19450",
		"--TruncateLogFile", "1",
		"--DataDirectory", "/data/tor/data",
		"--Log", "notice",
		"--pidfile", "/data/tor/data/tor.pid",
	}
	if got := plan.Args(); !slices.Equal(got, want) {
		t.Errorf("Args() = %v\nexpected %v", got, want)
	}
}

func TestNewModeSelection(t *testing.T) {
	t.Parallel()

	t.Run("system port open selects external", func(t *testing.T) {
		t.Parallel()

		probe := newProbeRecorder("127.0.0.1:9050")
		s, err := New(testConfig(t), WithPortProber(probe.probe), WithBundle(testBundle()), WithLogger(discardLogger()))
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}
		if s.Mode() != ModeExternal || !s.LocalTor() {
			t.Errorf("Mode() = %v, expected external", s.Mode())
		}
		if s.Peer().Addr() != "127.0.0.1:9050" {
			t.Errorf("Peer() = %s", s.Peer().Addr())
		}
		if _, ok := s.Plan(); ok {
			t.Error("external mode must not have a launch plan")
		}
	})

	t.Run("hardened environment selects external", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		cfg.Environment = config.Environment{Whonix: true}
		launcher := &fakeLauncher{}
		s, err := New(cfg, WithLauncher(launcher), WithPortProber(newProbeRecorder().probe), WithBundle(testBundle()), WithLogger(discardLogger()))
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}
		if s.Mode() != ModeExternal {
			t.Errorf("Mode() = %v, expected external", s.Mode())
		}
		if _, err := os.Stat(cfg.TorDir()); !os.IsNotExist(err) {
			t.Error("nothing should be staged in a hardened environment")
		}
	})

	t.Run("missing bundle selects unavailable", func(t *testing.T) {
		t.Parallel()

		s, err := New(testConfig(t), WithPortProber(newProbeRecorder().probe), WithBundle(fstest.MapFS{}), WithLogger(discardLogger()))
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}
		if s.Mode() != ModeUnavailable || !s.LocalTor() {
			t.Errorf("Mode() = %v, expected unavailable", s.Mode())
		}
		if s.LastError() != "" {
			t.Errorf("LastError() = %q, expected empty", s.LastError())
		}
	})

	t.Run("embedded port already served selects external", func(t *testing.T) {
		t.Parallel()

		probe := newProbeRecorder("127.0.0.1:19450")
		s, err := New(testConfig(t), WithPortProber(probe.probe), WithBundle(testBundle()), WithLogger(discardLogger()))
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}
		if s.Mode() != ModeExternal {
			t.Errorf("Mode() = %v, expected external", s.Mode())
		}
		if s.Peer().Port != 19450 {
			t.Errorf("Peer().Port = %d, expected 19450", s.Peer().Port)
		}
	})

	t.Run("embedded plan", func(t *testing.T) {
		t.Parallel()

		s, _, _ := newEmbeddedSupervisor(t, nil)
		plan, ok := s.Plan()
		if !ok {
			t.Fatal("expected a launch plan")
		}
		if plan.Port != 19450 || plan.Host != "127.0.0.1" {
			t.Errorf("plan endpoint = %s", JoinHostPort(plan.Host, plan.Port))
		}
		if filepath.Base(plan.PIDFile) != "tor.pid" || filepath.Dir(plan.PIDFile) != plan.DataDir {
			t.Errorf("PIDFile = %q, DataDir = %q", plan.PIDFile, plan.DataDir)
		}
		if _, err := os.Stat(plan.BinaryPath); err != nil {
			t.Errorf("binary not staged: %v", err)
		}
		if s.LocalTor() {
			t.Error("LocalTor() = true in embedded mode")
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		cfg.MaxRestarts = 0
		if _, err := New(cfg); !errors.Is(err, config.ErrInvalidMaxRestarts) {
			t.Errorf("New() error = %v, expected ErrInvalidMaxRestarts", err)
		}
	})
}

func TestForcedPortWithoutTor(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.ForcedPort = 9999
	launcher := &fakeLauncher{}
	s, err := New(cfg, WithLauncher(launcher), WithPortProber(newProbeRecorder().probe), WithBundle(testBundle()), WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if !s.LocalTor() {
		t.Error("LocalTor() = false, expected true")
	}
	if !strings.Contains(s.LastError(), "--tor-port") || !strings.Contains(s.LastError(), "9999") {
		t.Errorf("LastError() = %q", s.LastError())
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer s.Stop() //nolint:errcheck // test cleanup
	if launcher.count() != 0 {
		t.Errorf("launches = %d, expected 0", launcher.count())
	}
	if s.Connected() {
		t.Error("Connected() = true with nothing listening")
	}
}

func TestUseLocalTor(t *testing.T) {
	t.Parallel()

	t.Run("torrc endpoint", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		cfg.UseLocalTor = true
		cfg.TorrcPath = writeTorrc(t, "SocksPort 127.0.0.1:9150\n")
		probe := newProbeRecorder("127.0.0.1:9150")

		s, err := New(cfg, WithPortProber(probe.probe), WithBundle(testBundle()), WithLogger(discardLogger()))
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}
		if s.Peer().Addr() != "127.0.0.1:9150" {
			t.Errorf("Peer() = %s, expected 127.0.0.1:9150", s.Peer().Addr())
		}
		if s.LastError() != "" {
			t.Errorf("LastError() = %q, expected empty", s.LastError())
		}
	})

	t.Run("nothing listening", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		cfg.UseLocalTor = true
		s, err := New(cfg, WithPortProber(newProbeRecorder().probe), WithBundle(testBundle()), WithLogger(discardLogger()))
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}
		if s.Mode() != ModeExternal {
			t.Errorf("Mode() = %v, expected external", s.Mode())
		}
		if !strings.Contains(s.LastError(), "--use-local-tor") {
			t.Errorf("LastError() = %q", s.LastError())
		}
	})
}

func TestExternalMonitoring(t *testing.T) {
	t.Parallel()

	probe := newProbeRecorder("127.0.0.1:9050")
	rec := &eventRecorder{}
	s, err := New(testConfig(t), WithPortProber(probe.probe), WithBundle(testBundle()), WithLogger(discardLogger()), WithObserver(rec))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if !s.Connected() {
		t.Fatal("expected an immediate check to report connected")
	}

	probe.set("127.0.0.1:9050", false)
	waitFor(t, "disconnect", func() bool { return !s.Connected() })

	probe.set("127.0.0.1:9050", true)
	waitFor(t, "reconnect", func() bool { return s.Connected() })

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if s.Connected() {
		t.Error("Connected() = true after Stop")
	}

	changes := rec.ofKind(EventConnectivityChanged)
	for i := 1; i < len(changes); i++ {
		if changes[i].Connected == changes[i-1].Connected {
			t.Errorf("duplicate connectivity event at %d", i)
		}
	}
	if s.State() != StateUnstarted {
		t.Errorf("State() = %v, external mode must not change state", s.State())
	}
}

func TestMonitoringResumesAfterContextEnds(t *testing.T) {
	t.Parallel()

	probe := newProbeRecorder()
	s, err := New(testConfig(t), WithPortProber(probe.probe), WithBundle(fstest.MapFS{}), WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("first Start() error: %v", err)
	}
	cancel()

	probe.set("127.0.0.1:9050", true)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("second Start() error: %v", err)
	}
	waitFor(t, "connected after restarting the monitor", s.Connected)

	probe.set("127.0.0.1:9050", false)
	waitFor(t, "polling to notice the closed port", func() bool { return !s.Connected() })
}

func TestStartPortCheckDoesNotBlockReaders(t *testing.T) {
	t.Parallel()

	var gated atomic.Bool
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }

	slowProbe := func(string, uint16) bool {
		if gated.Load() {
			entered <- struct{}{}
			<-release
		}
		return false
	}
	s, launcher, _ := newEmbeddedSupervisor(t, nil, WithPortProber(slowProbe))
	t.Cleanup(unblock)
	gated.Store(true)

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()
	<-entered

	read := make(chan State, 1)
	go func() { read <- s.State() }()
	select {
	case st := <-read:
		if st != StateUnstarted {
			t.Errorf("State() = %v during the port check, expected unstarted", st)
		}
	case <-time.After(time.Second):
		t.Fatal("State() blocked while the port check was running")
	}

	unblock()
	if err := <-done; err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if launcher.count() != 1 {
		t.Errorf("launched %d processes, expected 1", launcher.count())
	}
}

func TestStartTwice(t *testing.T) {
	t.Parallel()

	s, launcher, _ := newEmbeddedSupervisor(t, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("first Start() error: %v", err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, expected ErrAlreadyRunning", err)
	}
	if launcher.count() != 1 {
		t.Errorf("launches = %d, expected 1", launcher.count())
	}
	if s.LastError() == "" {
		t.Error("expected the rejected start to be recorded")
	}
}

func TestStartSpawnsWithPlan(t *testing.T) {
	t.Parallel()

	rec := &eventRecorder{}
	s, launcher, _ := newEmbeddedSupervisor(t, nil, WithObserver(rec))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	plan, _ := s.Plan()
	if !slices.Equal(launcher.args[0], plan.Args()) {
		t.Errorf("launched with %v, expected %v", launcher.args[0], plan.Args())
	}
	if _, err := os.Stat(plan.DataDir); err != nil {
		t.Errorf("data directory not created: %v", err)
	}
	if got := rec.states(); !slices.Equal(got, []State{StateStarting, StateRunning}) {
		t.Errorf("states = %v", got)
	}
	if s.RestartCount() != 1 {
		t.Errorf("RestartCount() = %d, expected 1", s.RestartCount())
	}
}

func TestStartPortConflict(t *testing.T) {
	t.Parallel()

	s, launcher, probe := newEmbeddedSupervisor(t, nil)
	probe.set("127.0.0.1:19450", true)

	if err := s.Start(context.Background()); !errors.Is(err, ErrPortConflict) {
		t.Errorf("Start() error = %v, expected ErrPortConflict", err)
	}
	if launcher.count() != 0 {
		t.Errorf("launches = %d, expected 0", launcher.count())
	}
	if s.State() != StateUnstarted {
		t.Errorf("State() = %v, expected unstarted", s.State())
	}
	if s.RestartCount() != 0 {
		t.Errorf("RestartCount() = %d, a manual conflict is not an attempt", s.RestartCount())
	}
}

func TestBootstrapMarker(t *testing.T) {
	t.Parallel()

	rec := &eventRecorder{}
	s, launcher, _ := newEmbeddedSupervisor(t, nil, WithObserver(rec))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	proc := launcher.last()

	proc.emit("Nov 01 12:00:00.000 [notice] Bootstrapped 50% (loading_descriptors)")
	waitFor(t, "first log line", func() bool { return strings.Contains(s.Logs(), "Bootstrapped 50%") })
	if s.Connected() {
		t.Fatal("connected before the bootstrap marker")
	}

	proc.emit("Nov 01 12:00:01.000 [notice] Bootstrapped 100% (done): Done")
	waitFor(t, "bootstrap", s.Connected)
	proc.emit("Nov 01 12:00:02.000 [notice] Bootstrapped 100% (done): Done")
	waitFor(t, "third log event", func() bool { return len(rec.ofKind(EventLogsUpdated)) == 3 })

	ups := rec.ofKind(EventConnectivityChanged)
	if len(ups) != 1 || !ups[0].Connected {
		t.Errorf("connectivity events = %+v, expected one true", ups)
	}
	if got := strings.Count(s.Logs(), "Bootstrapped"); got != 3 {
		t.Errorf("log buffer holds %d lines, expected 3", got)
	}
	if !s.Peer().Active {
		t.Error("Peer().Active should mirror Connected")
	}
}

func TestLogsKeepRawOutput(t *testing.T) {
	t.Parallel()

	s, launcher, _ := newEmbeddedSupervisor(t, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	proc := launcher.last()

	proc.write("[notice] Bootstr")
	waitFor(t, "first chunk", func() bool { return s.Logs() == "[notice] Bootstr" })
	if s.Connected() {
		t.Fatal("connected on half of the bootstrap marker")
	}

	proc.write("apped 100% (done): Done\r\n[warn] partial")
	waitFor(t, "split bootstrap marker", s.Connected)

	want := "[notice] Bootstrapped 100% (done): Done\r\n[warn] partial"
	if got := s.Logs(); got != want {
		t.Errorf("Logs() = %q, expected %q", got, want)
	}
}

func TestRestartLimit(t *testing.T) {
	t.Parallel()

	t.Run("manual restarts", func(t *testing.T) {
		t.Parallel()

		s, launcher, _ := newEmbeddedSupervisor(t, nil)
		for i := 1; i <= 4; i++ {
			if err := s.Start(context.Background()); err != nil {
				t.Fatalf("Start() #%d error: %v", i, err)
			}
			if err := s.Stop(); err != nil {
				t.Fatalf("Stop() #%d error: %v", i, err)
			}
			waitFor(t, "stopped", func() bool { return s.State() == StateStopped })
		}

		if err := s.Start(context.Background()); !errors.Is(err, ErrRestartLimitExceeded) {
			t.Fatalf("fifth Start() error = %v, expected ErrRestartLimitExceeded", err)
		}
		if launcher.count() != 4 {
			t.Errorf("launches = %d, expected 4", launcher.count())
		}
		if s.State() != StateFailed {
			t.Errorf("State() = %v, expected failed", s.State())
		}
		if s.LastError() != "tor failed to start: maximum retries exceeded" {
			t.Errorf("LastError() = %q", s.LastError())
		}
	})

	t.Run("crash loop", func(t *testing.T) {
		t.Parallel()

		s, launcher, _ := newEmbeddedSupervisor(t, nil)
		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("Start() error: %v", err)
		}

		for i := 1; i <= 4; i++ {
			waitFor(t, "launch", func() bool { return launcher.count() == i })
			waitFor(t, "running", func() bool { return s.State() == StateRunning })
			launcher.last().exit()
		}

		waitFor(t, "failed", func() bool { return s.State() == StateFailed })
		if launcher.count() != 4 {
			t.Errorf("launches = %d, expected 4", launcher.count())
		}
		if !errors.Is(s.Start(context.Background()), ErrRestartLimitExceeded) {
			t.Error("Start() after failure should return the latched error")
		}
	})
}

func TestLaunchFailureLatches(t *testing.T) {
	t.Parallel()

	s, launcher, _ := newEmbeddedSupervisor(t, nil)
	launcher.err = errors.New("exec format error")

	err := s.Start(context.Background())
	if !errors.Is(err, ErrLaunchFailure) {
		t.Fatalf("Start() error = %v, expected ErrLaunchFailure", err)
	}
	if s.State() != StateFailed {
		t.Errorf("State() = %v, expected failed", s.State())
	}

	launcher.mu.Lock()
	launcher.err = nil
	launcher.mu.Unlock()

	time.Sleep(5 * s.cfg.RestartDelay)
	if launcher.count() != 0 {
		t.Errorf("launches = %d, no restart expected", launcher.count())
	}
	if err2 := s.Start(context.Background()); !errors.Is(err2, ErrLaunchFailure) {
		t.Errorf("Start() after failure = %v, expected the latched error", err2)
	}
	if !strings.Contains(s.LastError(), "exec format error") {
		t.Errorf("LastError() = %q", s.LastError())
	}
}

func TestCrashRestarts(t *testing.T) {
	t.Parallel()

	rec := &eventRecorder{}
	s, launcher, _ := newEmbeddedSupervisor(t, nil, WithObserver(rec))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	launcher.last().emit("[notice] Bootstrapped 100% (done): Done")
	waitFor(t, "bootstrap", s.Connected)

	launcher.last().exit()
	waitFor(t, "relaunch", func() bool { return launcher.count() == 2 })
	waitFor(t, "running events", func() bool { return len(rec.states()) == 6 })

	if s.Connected() {
		t.Error("a fresh process must bootstrap again before Connected")
	}
	want := []State{StateStarting, StateRunning, StateCrashed, StateRestarting, StateStarting, StateRunning}
	if got := rec.states(); !slices.Equal(got, want) {
		t.Errorf("states = %v\nexpected %v", got, want)
	}
}

func TestStopCancelsPendingRestart(t *testing.T) {
	t.Parallel()

	s, launcher, _ := newEmbeddedSupervisor(t, func(c *configT) { c.RestartDelay = 100 * time.Millisecond })
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	launcher.last().exit()
	waitFor(t, "restarting", func() bool { return s.State() == StateRestarting })

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if s.State() != StateStopped {
		t.Errorf("State() = %v, expected stopped", s.State())
	}

	time.Sleep(250 * time.Millisecond)
	if launcher.count() != 1 {
		t.Errorf("launches = %d, the pending restart should be cancelled", launcher.count())
	}
}

func TestStopKillsProcess(t *testing.T) {
	t.Parallel()

	s, launcher, _ := newEmbeddedSupervisor(t, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	if !launcher.last().killed.Load() {
		t.Error("process was not killed")
	}
	waitFor(t, "stopped", func() bool { return s.State() == StateStopped })
	time.Sleep(5 * s.cfg.RestartDelay)
	if launcher.count() != 1 {
		t.Errorf("launches = %d, a requested stop must not restart", launcher.count())
	}
}

func TestDataDirLock(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	s1, _, _ := newEmbeddedSupervisor(t, func(c *configT) { c.DataDir = dataDir })
	s2, launcher2, _ := newEmbeddedSupervisor(t, func(c *configT) { c.DataDir = dataDir })

	if err := s1.Start(context.Background()); err != nil {
		t.Fatalf("s1.Start() error: %v", err)
	}
	if err := s2.Start(context.Background()); !errors.Is(err, ErrDataDirLocked) {
		t.Fatalf("s2.Start() error = %v, expected ErrDataDirLocked", err)
	}
	if launcher2.count() != 0 {
		t.Error("second supervisor must not launch")
	}

	if err := s1.Stop(); err != nil {
		t.Fatalf("s1.Stop() error: %v", err)
	}
	waitFor(t, "s1 stopped", func() bool { return s1.State() == StateStopped })

	if err := s2.Start(context.Background()); err != nil {
		t.Errorf("s2.Start() after release error: %v", err)
	}
}

func TestSupervisorClient(t *testing.T) {
	t.Parallel()

	s, _, _ := newEmbeddedSupervisor(t, nil)
	client, err := s.Client(time.Second)
	if err != nil {
		t.Fatalf("Client() error: %v", err)
	}
	if client.ProxyAddress() != "127.0.0.1:19450" {
		t.Errorf("ProxyAddress() = %q", client.ProxyAddress())
	}
}
