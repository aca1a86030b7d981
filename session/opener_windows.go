package session

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Defacto2/extractnow/command"
	"golang.org/x/sys/windows"
)

// TimeoutReuse is the maximum time allowed to find and navigate an Explorer window.
const TimeoutReuse = 5 * time.Second

// navigate finds the Explorer window showing the parent folder and points it at the
// target folder, the script exits with 1 when no such window is open.
// The folders are passed in the environment as -Command joins its arguments into the script.
const navigate = `$shell = New-Object -ComObject Shell.Application
foreach ($win in $shell.Windows()) {
  if ($win.FullName -notlike '*\explorer.exe') { continue }
  try { $path = $win.Document.Folder.Self.Path } catch { continue }
  if ([string]::Equals($path, $env:EXTRACTNOW_PARENT, [StringComparison]::OrdinalIgnoreCase)) {
    $win.Navigate2($env:EXTRACTNOW_TARGET)
    exit 0
  }
}
exit 1`

// Explorer shows folders with the Windows File Explorer.
type Explorer struct{}

// Reuse navigates the open Explorer window that shows the parent of dir, the folder
// of the archive, to dir using the Shell.Application COM object.
func (Explorer) Reuse(dir string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), TimeoutReuse)
	defer cancel()
	cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", navigate)
	cmd.Env = append(os.Environ(), "EXTRACTNOW_TARGET="+dir, "EXTRACTNOW_PARENT="+filepath.Dir(dir))
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true, CreationFlags: windows.CREATE_NO_WINDOW}
	out, err := cmd.CombinedOutput()
	return err == nil && strings.TrimSpace(string(out)) == ""
}

// Open starts a new Explorer window showing dir.
func (Explorer) Open(dir string) error {
	cmd := exec.Command(command.Explorer, dir)
	if err := cmd.Start(); err != nil {
		return err
	}
	// explorer.exe exits with 1 even on success
	go func() { _ = cmd.Wait() }()
	return nil
}

// System returns the folder opener of the operating system.
func System() Opener {
	return Explorer{}
}
