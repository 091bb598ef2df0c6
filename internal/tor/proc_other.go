//go:build !linux

package tor

import "os/exec"

func setProcAttr(_ *exec.Cmd) {}
