package extractnow

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sys/windows"
)

// TimeoutKill is the maximum time allowed for taskkill to end the archiver process tree.
const TimeoutKill = 5 * time.Second

// prepare stops the console archiver from opening a console window.
func prepare(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NO_WINDOW,
	}
}

// killTree uses taskkill to end the archiver and its child processes,
// then falls back to killing the archiver process alone.
func killTree(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), TimeoutKill)
	defer cancel()
	pid := strconv.Itoa(cmd.Process.Pid)
	kill := exec.CommandContext(ctx, "taskkill", "/T", "/F", "/PID", pid)
	kill.SysProcAttr = &syscall.SysProcAttr{HideWindow: true, CreationFlags: windows.CREATE_NO_WINDOW}
	if err := kill.Run(); err == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
