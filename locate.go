package extractnow

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Defacto2/extractnow/command"
)

// Package file locate.go contains the archiver program lookup.

// Folder returns the archiver folder to use, the user override when it
// is configured, otherwise the bundled default folder.
func (x *Extractor) Folder() string {
	if x.Folders != nil {
		if dir := strings.TrimSpace(x.Folders.ArchiverFolder()); dir != "" {
			return dir
		}
	}
	if x.Default != "" {
		return x.Default
	}
	return DefaultFolder()
}

// DefaultFolder returns the bundled archiver folder located next to the executable.
// If the executable path cannot be determined the working directory is used.
func DefaultFolder() string {
	exe, err := os.Executable()
	if err != nil {
		return command.Folder
	}
	return filepath.Join(filepath.Dir(exe), command.Folder)
}

// Locate returns the absolute path of the archiver program.
//
// The primary program is preferred and the fallback is accepted when the primary is missing.
// An ErrNoArchiver error is returned when neither program exists and an ErrNoLibrary error
// is returned when the program exists but the shared library is missing from the same folder.
func (x *Extractor) Locate() (string, error) {
	layout := x.layout()
	dir := x.Folder()
	prog := filepath.Join(dir, layout.Primary)
	if !isFile(prog) {
		prog = filepath.Join(dir, layout.Fallback)
		if layout.Fallback == "" || !isFile(prog) {
			return "", fmt.Errorf("%w: %s", ErrNoArchiver, filepath.Join(dir, layout.Primary))
		}
	}
	if layout.Library != "" {
		lib := filepath.Join(filepath.Dir(prog), layout.Library)
		if !isFile(lib) {
			return "", fmt.Errorf("%w: %s", ErrNoLibrary, lib)
		}
	}
	abs, err := filepath.Abs(prog)
	if err != nil {
		return "", fmt.Errorf("locate archiver %w", err)
	}
	return abs, nil
}

func (x *Extractor) layout() command.Layout {
	if x.Layout == (command.Layout{}) {
		return command.Zip7()
	}
	return x.Layout
}

// isFile returns true if the named path exists and is not a directory.
func isFile(name string) bool {
	st, err := os.Stat(name)
	if errors.Is(err, fs.ErrNotExist) || err != nil {
		return false
	}
	return !st.IsDir()
}
