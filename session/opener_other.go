//go:build !windows

package session

import (
	"os/exec"
	"runtime"
)

// Desktop shows folders with the desktop file manager.
type Desktop struct{}

// Reuse is unsupported, desktop file managers cannot be navigated from outside.
func (Desktop) Reuse(dir string) bool {
	return false
}

// Open shows dir with xdg-open, or open on macOS.
func (Desktop) Open(dir string) error {
	prog := "xdg-open"
	if runtime.GOOS == "darwin" {
		prog = "open"
	}
	path, err := exec.LookPath(prog)
	if err != nil {
		return err
	}
	cmd := exec.Command(path, dir)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// System returns the folder opener of the operating system.
func System() Opener {
	return Desktop{}
}
