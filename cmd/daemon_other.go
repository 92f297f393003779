//go:build !unix

package main

import (
	"fmt"
	"os/exec"

	"github.com/desertthunder/plsd/internal/shared"
)

func detach(*exec.Cmd) error {
	return fmt.Errorf("%w: background start on this platform; use \"daemon run\"", shared.ErrNotImplemented)
}
