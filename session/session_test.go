package session_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Defacto2/extractnow"
	"github.com/Defacto2/extractnow/session"
	"github.com/Defacto2/extractnow/settings"
	"github.com/Defacto2/helper"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var now = time.Date(2025, time.March, 9, 14, 5, 7, 0, time.UTC)

// fake writes the named files into the destination and returns res and err.
type fake struct {
	files []string
	res   extractnow.Result
	err   error
	jobs  []extractnow.Job
}

func (f *fake) Extract(_ context.Context, job extractnow.Job, progress extractnow.ProgressFunc, logf extractnow.LogFunc) (extractnow.Result, error) {
	f.jobs = append(f.jobs, job)
	for _, name := range f.files {
		if err := helper.Touch(filepath.Join(job.Destination, name)); err != nil {
			return extractnow.Result{}, err
		}
	}
	if progress != nil && f.res.Success {
		progress(100)
	}
	if logf != nil {
		logf("Everything is Ok")
	}
	return f.res, f.err
}

// opener records the folders it was asked to show.
type opener struct {
	mu     sync.Mutex
	reuse  bool
	fail   error
	reused []string
	opened []string
}

func (o *opener) Reuse(dir string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reused = append(o.reused, dir)
	return o.reuse
}

func (o *opener) Open(dir string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail != nil {
		return o.fail
	}
	o.opened = append(o.opened, dir)
	return nil
}

func prefs(t *testing.T, fn func(s *settings.Settings)) *settings.Store {
	t.Helper()
	st := settings.OpenFs(afero.NewMemMapFs(), settings.Filename)
	if fn != nil {
		require.NoError(t, st.Update(fn))
	}
	return st
}

func archive(t *testing.T) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "release.zip")
	require.NoError(t, helper.Touch(src))
	return src
}

func controller(t *testing.T, x session.Extracter, p session.Preferences, o session.Opener) *session.Controller {
	t.Helper()
	return &session.Controller{
		X:      x,
		Prefs:  p,
		Opener: o,
		Log:    zaptest.NewLogger(t),
		Now:    func() time.Time { return now },
	}
}

func TestRun(t *testing.T) {
	t.Parallel()
	src := archive(t)
	x := &fake{files: []string{"readme.txt", "file_id.diz"}, res: extractnow.Result{Success: true}}
	o := &opener{}
	c := controller(t, x, prefs(t, func(s *settings.Settings) {
		s.OpenOutputFolderOnComplete = true
	}), o)
	var lines []string
	c.Output = func(line string) { lines = append(lines, line) }

	out, err := c.Run(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, out.Result.Success)
	assert.NotEmpty(t, out.ID.String())
	assert.Equal(t, filepath.Join(filepath.Dir(src), "release"), out.Destination)
	assert.DirExists(t, out.Destination)
	assert.Equal(t, 2, out.Files)
	assert.True(t, out.Opened)
	assert.False(t, out.Close)
	assert.Equal(t, []string{out.Destination}, o.opened)
	assert.Empty(t, o.reused)
	assert.Equal(t, out.Destination, c.LastOpened())
	assert.Equal(t, []string{"Everything is Ok"}, lines)
	require.Len(t, x.jobs, 1)
	assert.Equal(t, src, x.jobs[0].Source)

	// the next run of the same archive must not merge into the first output
	again, err := c.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, out.Destination+"_20250309-140507", again.Destination)
	assert.True(t, again.Opened)
	assert.Equal(t, again.Destination, c.LastOpened())
}

func TestRun_LastOpened(t *testing.T) {
	t.Parallel()
	src := archive(t)
	o := &opener{}
	c := controller(t, &fake{res: extractnow.Result{Success: true}}, prefs(t, func(s *settings.Settings) {
		s.OpenOutputFolderOnComplete = true
	}), o)
	out, err := c.Run(context.Background(), src)
	require.NoError(t, err)
	require.True(t, out.Opened)

	// the output was removed, so the next run reuses the same folder name
	require.NoError(t, os.RemoveAll(out.Destination))
	again, err := c.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, out.Destination, again.Destination)
	assert.False(t, again.Opened)
	assert.Len(t, o.opened, 1)

	require.NoError(t, c.OpenFolder(again.Destination))
	assert.Len(t, o.opened, 2)
}

func TestOpenFolder_KeepsLastOpened(t *testing.T) {
	t.Parallel()
	src := archive(t)
	o := &opener{}
	c := controller(t, &fake{res: extractnow.Result{Success: true}}, prefs(t, func(s *settings.Settings) {
		s.OpenOutputFolderOnComplete = true
	}), o)
	out, err := c.Run(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, out.Destination, c.LastOpened())

	other := t.TempDir()
	require.NoError(t, c.OpenFolder(other))
	assert.Equal(t, out.Destination, c.LastOpened())
	assert.Equal(t, []string{out.Destination, other}, o.opened)

	// the automatic open still skips the folder it opened last
	require.NoError(t, os.RemoveAll(out.Destination))
	again, err := c.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, out.Destination, again.Destination)
	assert.False(t, again.Opened)
	assert.Len(t, o.opened, 2)
}

func TestRun_ReuseWindow(t *testing.T) {
	t.Parallel()
	p := prefs(t, func(s *settings.Settings) {
		s.OpenOutputFolderOnComplete = true
		s.ReuseExplorerWindow = true
		s.CloseAppAfterExtraction = true
	})

	o := &opener{reuse: true}
	c := controller(t, &fake{res: extractnow.Result{Success: true}}, p, o)
	out, err := c.Run(context.Background(), archive(t))
	require.NoError(t, err)
	assert.True(t, out.Opened)
	assert.True(t, out.Close)
	assert.Equal(t, []string{out.Destination}, o.reused)
	assert.Empty(t, o.opened)

	o = &opener{reuse: false}
	c = controller(t, &fake{res: extractnow.Result{Success: true}}, p, o)
	out, err = c.Run(context.Background(), archive(t))
	require.NoError(t, err)
	assert.True(t, out.Opened)
	assert.Equal(t, []string{out.Destination}, o.reused)
	assert.Equal(t, []string{out.Destination}, o.opened)
}

func TestRun_OpenFails(t *testing.T) {
	t.Parallel()
	o := &opener{fail: errors.New("no file manager")}
	c := controller(t, &fake{res: extractnow.Result{Success: true}}, prefs(t, func(s *settings.Settings) {
		s.OpenOutputFolderOnComplete = true
	}), o)
	out, err := c.Run(context.Background(), archive(t))
	require.NoError(t, err)
	assert.True(t, out.Result.Success)
	assert.False(t, out.Opened)
	assert.Empty(t, c.LastOpened())

	c.Opener = nil
	require.ErrorIs(t, c.OpenFolder(out.Destination), session.ErrNoOpener)
}

func TestRun_Failed(t *testing.T) {
	t.Parallel()
	o := &opener{}
	res := extractnow.Result{Message: "7-Zip exited with code 2.", Err: extractnow.ErrExit}
	c := controller(t, &fake{res: res}, prefs(t, func(s *settings.Settings) {
		s.OpenOutputFolderOnComplete = true
	}), o)
	out, err := c.Run(context.Background(), archive(t))
	require.NoError(t, err)
	assert.False(t, out.Result.Success)
	require.ErrorIs(t, out.Result.Err, extractnow.ErrExit)
	assert.NoDirExists(t, out.Destination)
	assert.False(t, out.Opened)
	assert.Empty(t, o.opened)
}

func TestRun_FailedKeepsPartialOutput(t *testing.T) {
	t.Parallel()
	x := &fake{files: []string{"partial.bin"}, res: extractnow.Result{Err: extractnow.ErrExit}}
	c := controller(t, x, prefs(t, nil), nil)
	out, err := c.Run(context.Background(), archive(t))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out.Destination, "partial.bin"))
}

func TestRun_Canceled(t *testing.T) {
	t.Parallel()
	x := &fake{err: extractnow.ErrCanceled}
	c := controller(t, x, prefs(t, nil), &opener{})
	out, err := c.Run(context.Background(), archive(t))
	require.ErrorIs(t, err, extractnow.ErrCanceled)
	assert.NoDirExists(t, out.Destination)
}

func TestRun_Source(t *testing.T) {
	t.Parallel()
	x := &fake{}
	c := controller(t, x, prefs(t, nil), nil)
	_, err := c.Run(context.Background(), filepath.Join(t.TempDir(), "missing.7z"))
	require.ErrorIs(t, err, session.ErrMissing)
	_, err = c.Run(context.Background(), t.TempDir())
	require.ErrorIs(t, err, session.ErrDir)
	assert.Empty(t, x.jobs)
}

func TestRun_MissingArchiver(t *testing.T) {
	t.Parallel()
	p := prefs(t, func(s *settings.Settings) {
		s.SevenZipPath = t.TempDir()
	})
	c := controller(t, extractnow.New(p, zaptest.NewLogger(t)), p, &opener{})
	out, err := c.Run(context.Background(), archive(t))
	require.NoError(t, err)
	assert.False(t, out.Result.Success)
	require.ErrorIs(t, out.Result.Err, extractnow.ErrNoArchiver)
	assert.NoDirExists(t, out.Destination)
}

func TestExceedsThreshold(t *testing.T) {
	t.Parallel()
	src := filepath.Join(t.TempDir(), "large.7z")
	require.NoError(t, os.WriteFile(src, make([]byte, 2*1024*1024), 0o644))
	c := controller(t, &fake{}, prefs(t, func(s *settings.Settings) {
		s.ShowWindowThresholdMB = 2
	}), nil)
	assert.True(t, c.ExceedsThreshold(src))
	assert.False(t, c.ExceedsThreshold(filepath.Join(t.TempDir(), "missing.7z")))

	c.Prefs = prefs(t, nil)
	assert.False(t, c.ExceedsThreshold(src))
}
