//go:build linux

package tor

import (
	"os/exec"
	"syscall"
)

// setProcAttr makes the kernel kill Tor when torkeeper dies, so a crashed
// supervisor never leaves an orphaned daemon holding the SOCKS port.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: syscall.SIGKILL}
}
