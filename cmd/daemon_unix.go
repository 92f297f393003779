//go:build unix

package main

import (
	"os/exec"
	"syscall"
)

// detach starts the child in its own session so it outlives the terminal.
func detach(c *exec.Cmd) error {
	c.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	return nil
}
