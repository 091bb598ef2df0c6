package tor

import (
	"context"
	"io"
	"os"
	"os/exec"
)

// Process is a launched Tor process.
type Process interface {
	// Output returns the merged stdout/stderr stream. It reaches EOF when
	// the process exits.
	Output() io.Reader

	// Wait blocks until the process exits. It must be called after Output
	// has been drained.
	Wait() error

	// Kill terminates the process immediately.
	Kill() error

	// Pid returns the OS process id.
	Pid() int
}

// Launcher starts processes.
type Launcher interface {
	Launch(path string, args []string) (Process, error)
}

// ExecLauncher launches real OS processes with os/exec.
type ExecLauncher struct{}

// Launch starts path with args, stdout and stderr sharing one pipe.
func (ExecLauncher) Launch(path string, args []string) (Process, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(path, args...) //nolint:gosec // path is the staged tor binary
	cmd.Stdout = pw
	cmd.Stderr = pw
	setProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, err
	}
	// The child holds its own copy of the write end.
	_ = pw.Close()

	return &execProcess{cmd: cmd, out: pr}, nil
}

type execProcess struct {
	cmd *exec.Cmd
	out *os.File
}

func (p *execProcess) Output() io.Reader { return p.out }

func (p *execProcess) Wait() error {
	err := p.cmd.Wait()
	_ = p.out.Close()
	return err
}

func (p *execProcess) Kill() error {
	return p.cmd.Process.Kill()
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

// CommandRunner runs short-lived helper commands and returns their merged
// output. A non-nil error includes non-zero exit status.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs helper commands with os/exec.
type ExecRunner struct{}

// Run executes name with args and waits for it, honoring ctx.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput() //nolint:gosec // fixed helper commands
}
