package assoc

import (
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// OpenChooser shows the Windows application chooser for the extension, so the user can
// confirm the default handler when the UserChoice hash is not accepted.
// The placeholder file is created in dir and left for reuse.
func OpenChooser(dir, ext string) error {
	name, err := DummyFile(dir, ext)
	if err != nil {
		return fmt.Errorf("open chooser %w", err)
	}
	cmd := exec.Command("rundll32.exe", "shell32.dll,OpenAs_RunDLL", name)
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true, CreationFlags: windows.CREATE_NO_WINDOW}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open chooser %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
