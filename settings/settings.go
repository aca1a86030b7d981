// Package settings persists the user preferences to a portable JSON file
// kept next to the executable.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Defacto2/helper"
	"github.com/spf13/afero"
)

// Filename is the name of the settings file.
const Filename = "settings.json"

// Default window size used when the window geometry is not restored.
const (
	DefaultWidth  = 720
	DefaultHeight = 580
)

// Settings are the user preferences. The zero value of a field is its default.
type Settings struct {
	ShowWindowOnAssociationLaunch     bool   `json:"ShowWindowOnAssociationLaunch"`
	ShowWindowThresholdMB             int    `json:"ShowWindowThresholdMB"` // 0 disables the threshold
	ShowTrayIconDuringExtraction      bool   `json:"ShowTrayIconDuringExtraction"`
	ShowNotification                  bool   `json:"ShowNotification"`
	OpenOutputFolderOnComplete        bool   `json:"OpenOutputFolderOnComplete"`
	ReuseExplorerWindow               bool   `json:"ReuseExplorerWindow"`
	CloseAppAfterExtraction           bool   `json:"CloseAppAfterExtraction"`
	RestoreDefaultWindowSizeOnRestart bool   `json:"RestoreDefaultWindowSizeOnRestart"`
	WindowWidth                       int    `json:"WindowWidth"`
	WindowHeight                      int    `json:"WindowHeight"`
	WindowMaximized                   bool   `json:"WindowMaximized"`
	SevenZipPath                      string `json:"SevenZipPath,omitempty"` // empty uses the bundled 7-Zip folder
}

// normalize enforces the field constraints.
func (s *Settings) normalize() {
	s.ShowWindowThresholdMB = max(0, s.ShowWindowThresholdMB)
	s.WindowWidth = max(0, s.WindowWidth)
	s.WindowHeight = max(0, s.WindowHeight)
	s.SevenZipPath = strings.TrimSpace(s.SevenZipPath)
}

// Store loads and saves the settings file.
// It is safe for concurrent use.
type Store struct {
	fs   afero.Fs
	path string

	mu sync.RWMutex
	s  Settings
}

// Path returns the portable settings file path, next to the executable.
func Path() string {
	exe, err := os.Executable()
	if err != nil {
		return Filename
	}
	return filepath.Join(filepath.Dir(exe), Filename)
}

// Open returns a Store for the named settings file on the operating system.
func Open(name string) *Store {
	return OpenFs(afero.NewOsFs(), name)
}

// OpenFs returns a Store for the named settings file on fsys.
// A missing or unreadable settings file loads the defaults.
func OpenFs(fsys afero.Fs, name string) *Store {
	st := &Store{fs: fsys, path: name}
	s, _ := st.load()
	st.s = s
	return st
}

// Load reads the settings file, the returned error is advisory
// as the defaults are used whenever the file cannot be read.
func (st *Store) Load() error {
	s, err := st.load()
	st.mu.Lock()
	st.s = s
	st.mu.Unlock()
	return err
}

func (st *Store) load() (Settings, error) {
	var s Settings
	b, err := afero.ReadFile(st.fs, st.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Settings{}, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("settings load %w", err)
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return Settings{}, fmt.Errorf("settings load %s: %w", st.path, err)
	}
	s.normalize()
	return s, nil
}

// Get returns a copy of the current settings.
func (st *Store) Get() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s
}

// Update applies fn to the settings and saves them.
// The settings are changed in memory even if the file cannot be written.
func (st *Store) Update(fn func(s *Settings)) error {
	st.mu.Lock()
	s := st.s
	fn(&s)
	s.normalize()
	st.s = s
	st.mu.Unlock()
	return st.save(s)
}

func (st *Store) save(s Settings) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("settings save %w", err)
	}
	if err := afero.WriteFile(st.fs, st.path, b, helper.WriteWriteRead); err != nil {
		return fmt.Errorf("settings save %w", err)
	}
	return nil
}

// ArchiverFolder returns the user configured 7-Zip folder or an empty string.
func (st *Store) ArchiverFolder() string {
	return st.Get().SevenZipPath
}

// ExceedsThreshold reports whether an archive of size bytes meets the window
// threshold. It is always false when the threshold is disabled.
func (st *Store) ExceedsThreshold(size int64) bool {
	mb := st.Get().ShowWindowThresholdMB
	if mb <= 0 {
		return false
	}
	const mib = 1024 * 1024
	return size >= int64(mb)*mib
}
