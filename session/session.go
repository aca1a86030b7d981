// Package session drives one extraction after another for a front-end,
// deriving the output folder, running the archiver and opening the result.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Defacto2/extractnow"
	"github.com/Defacto2/extractnow/settings"
	"github.com/Defacto2/helper"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// dirMode is the mode of a created output folder.
const dirMode = 0o755

var (
	ErrDir     = errors.New("source is a directory")
	ErrMissing = errors.New("source archive does not exist")
)

// Extracter runs a single extraction, it is satisfied by [extractnow.Extractor].
type Extracter interface {
	Extract(ctx context.Context, job extractnow.Job, progress extractnow.ProgressFunc, logf extractnow.LogFunc) (extractnow.Result, error)
}

// Preferences are the user settings read by the controller, it is satisfied by [settings.Store].
type Preferences interface {
	Get() settings.Settings
	ExceedsThreshold(size int64) bool
}

// Opener shows a folder to the user.
type Opener interface {
	// Reuse navigates an open file manager window to dir and reports whether it succeeded.
	Reuse(dir string) bool
	// Open shows dir in a new file manager window.
	Open(dir string) error
}

// Outcome is the summary of a run.
type Outcome struct {
	ID          uuid.UUID         // ID tags the log entries of the run.
	Source      string            // Source is the absolute path of the archive.
	Destination string            // Destination is the output folder.
	Result      extractnow.Result // Result is the archiver outcome.
	Files       int               // Files is the number of extracted files, zero when it could not be counted.
	Opened      bool              // Opened is true when the output folder was shown.
	Close       bool              // Close is true when the front-end should exit.
}

// Controller is a long-lived extraction session.
// A front-end calls Run for every archive it is asked to extract.
type Controller struct {
	X        Extracter               // X runs the archiver.
	Prefs    Preferences             // Prefs are the user settings.
	Opener   Opener                  // Opener shows the output folder, it may be nil.
	Log      *zap.Logger             // Log is optional.
	Now      func() time.Time        // Now returns the current time, the default is time.Now.
	Progress extractnow.ProgressFunc // Progress is optional.
	Output   extractnow.LogFunc      // Output receives the archiver output lines, it is optional.

	mu         sync.Mutex
	lastOpened string
}

func (c *Controller) logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

func (c *Controller) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// LastOpened returns the output folder that was last shown, it is never cleared.
func (c *Controller) LastOpened() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastOpened
}

// ExceedsThreshold reports whether the src archive meets the size threshold
// that a front-end uses to show its window on an association launch.
func (c *Controller) ExceedsThreshold(src string) bool {
	st, err := os.Stat(src)
	if err != nil {
		return false
	}
	return c.Prefs.ExceedsThreshold(st.Size())
}

// Run extracts the src archive into a new folder next to it.
//
// The returned error is only for a source that cannot be extracted, a destination
// that cannot be created, or the cancellation and busy errors of the extractor.
// A failed extraction is reported by the Outcome Result.
func (c *Controller) Run(ctx context.Context, src string) (Outcome, error) {
	abs, err := filepath.Abs(src)
	if err != nil {
		return Outcome{}, fmt.Errorf("session run %w", err)
	}
	st, err := os.Stat(abs)
	if errors.Is(err, os.ErrNotExist) {
		return Outcome{}, fmt.Errorf("session run %w: %s", ErrMissing, abs)
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("session run %w", err)
	}
	if st.IsDir() {
		return Outcome{}, fmt.Errorf("session run %w: %s", ErrDir, abs)
	}

	out := Outcome{
		ID:          uuid.New(),
		Source:      abs,
		Destination: extractnow.Destination(abs, c.now()),
	}
	log := c.logger().With(zap.String("run", out.ID.String()))
	if err := os.MkdirAll(out.Destination, dirMode); err != nil {
		return out, fmt.Errorf("session run destination %w", err)
	}
	log.Info("output folder", zap.String("source", abs), zap.String("destination", out.Destination))
	c.advise(log, "identify", func() error {
		sign, err := extractnow.Identify(abs)
		log.Debug("archive signature", zap.Stringer("signature", sign))
		return err
	})

	res, err := c.X.Extract(ctx, extractnow.Job{Source: abs, Destination: out.Destination}, c.Progress, c.Output)
	out.Result = res
	if err != nil || !res.Success {
		c.advise(log, "remove empty destination", func() error {
			return removeEmpty(out.Destination)
		})
	}
	if err != nil {
		log.Info("extraction stopped", zap.Error(err))
		return out, err
	}
	if !res.Success {
		log.Warn("extraction failed", zap.String("message", res.Message), zap.Error(res.Err))
		return out, nil
	}
	log.Info("extraction completed")
	c.advise(log, "count files", func() error {
		n, err := helper.Count(out.Destination)
		out.Files = n
		return err
	})

	prefs := c.Prefs.Get()
	if prefs.OpenOutputFolderOnComplete {
		out.Opened = c.openOnce(log, out.Destination, prefs.ReuseExplorerWindow)
	}
	out.Close = prefs.CloseAppAfterExtraction
	return out, nil
}

// openOnce shows the dir unless it was the last folder shown.
func (c *Controller) openOnce(log *zap.Logger, dir string, reuse bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if strings.EqualFold(c.lastOpened, dir) {
		log.Debug("output folder already opened", zap.String("dir", dir))
		return false
	}
	if err := c.open(log, dir, reuse); err != nil {
		log.Warn("failed to open output folder", zap.String("dir", dir), zap.Error(err))
		return false
	}
	c.lastOpened = dir
	return true
}

// OpenFolder shows the dir on request of the user, even when it was shown before.
// It does not change LastOpened, which only tracks the automatic opens.
func (c *Controller) OpenFolder(dir string) error {
	reuse := c.Prefs.Get().ReuseExplorerWindow
	if err := c.open(c.logger(), dir, reuse); err != nil {
		return fmt.Errorf("open folder %w", err)
	}
	return nil
}

func (c *Controller) open(log *zap.Logger, dir string, reuse bool) error {
	if c.Opener == nil {
		return ErrNoOpener
	}
	if reuse && c.Opener.Reuse(dir) {
		log.Info("reused file manager window", zap.String("dir", dir))
		return nil
	}
	if err := c.Opener.Open(dir); err != nil {
		return err
	}
	log.Info("opened output folder", zap.String("dir", dir))
	return nil
}

// ErrNoOpener is returned when a folder is to be shown without an Opener.
var ErrNoOpener = errors.New("no folder opener")

// advise runs a step that must not affect the outcome of the run,
// its error is logged and dropped.
func (c *Controller) advise(log *zap.Logger, name string, fn func() error) {
	if err := fn(); err != nil {
		log.Debug("advisory step", zap.String("step", name), zap.Error(err))
	}
}

// removeEmpty removes the dir when it holds no entries.
func removeEmpty(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return nil
	}
	return os.Remove(dir)
}
