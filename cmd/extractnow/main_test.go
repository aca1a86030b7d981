package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/Defacto2/extractnow/assoc"
	"github.com/Defacto2/extractnow/command"
	"github.com/Defacto2/extractnow/settings"
	"github.com/Defacto2/helper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const sid = "S-1-5-21-463486358-3398762107-1964875780-1001"

var minute = time.Date(2024, time.January, 15, 10, 30, 15, 0, time.UTC)

type nopener struct{ opened []string }

func (n *nopener) Reuse(string) bool { return false }

func (n *nopener) Open(dir string) error {
	n.opened = append(n.opened, dir)
	return nil
}

func testApp(t *testing.T, args ...string) (*app, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	args = append([]string{"-settings", filepath.Join(t.TempDir(), settings.Filename)}, args...)
	opts, err := parse(args, &stderr)
	require.NoError(t, err)
	mem := assoc.NewMemory()
	return &app{
		opts:   opts,
		log:    zaptest.NewLogger(t),
		store:  settings.Open(opts.settings),
		stdout: &stdout,
		stderr: &stderr,
		now:    func() time.Time { return minute },
		keys:   func() (assoc.Keys, error) { return mem, nil },
		opener: &nopener{},
	}, &stdout, &stderr
}

func TestParse(t *testing.T) {
	t.Parallel()
	var stderr bytes.Buffer
	_, err := parse(nil, &stderr)
	require.ErrorIs(t, err, errUsage)
	_, err = parse([]string{"a.zip", "b.zip"}, &stderr)
	require.ErrorIs(t, err, errUsage)

	o, err := parse([]string{"-7zip", "/opt/7zip", "-open", "a.zip"}, &stderr)
	require.NoError(t, err)
	assert.Equal(t, "/opt/7zip", o.folder)
	assert.True(t, o.open)
	assert.Equal(t, "a.zip", o.archive)

	o, err = parse([]string{"-cleanup"}, &stderr)
	require.NoError(t, err)
	assert.True(t, o.tasks())
}

func TestRun_Usage(t *testing.T) {
	t.Parallel()
	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitUsage, run(context.Background(), []string{"-nope"}, &stdout, &stderr))
	assert.Equal(t, exitOK, run(context.Background(), []string{"-h"}, &stdout, &stderr))
}

func TestHash(t *testing.T) {
	t.Parallel()
	a, stdout, _ := testApp(t, "-hash", "zip", "-sid", sid)
	assert.Equal(t, exitOK, a.exec(context.Background()))
	assert.Equal(t, "Wqreo2P1tE4=\n", stdout.String())
}

func TestAssociations(t *testing.T) {
	t.Parallel()
	a, stdout, stderr := testApp(t, "-register", ".7z", "-default", "zip", "-sid", sid)
	require.Equal(t, exitOK, a.exec(context.Background()), stderr.String())
	assert.Equal(t, ".7z: Success\n.zip: Success\n", stdout.String())

	keys, err := a.keys()
	require.NoError(t, err)
	hash, err := keys.String(`Software\Microsoft\Windows\CurrentVersion\Explorer\FileExts\.zip\UserChoice`, "Hash")
	require.NoError(t, err)
	assert.Equal(t, "Wqreo2P1tE4=", hash)

	stdout.Reset()
	a.opts = options{register: "7z"}
	require.Equal(t, exitOK, a.exec(context.Background()))
	assert.Equal(t, ".7z: AlreadyAssociated\n", stdout.String())

	stdout.Reset()
	a.opts = options{ensure: true, cleanup: true}
	require.Equal(t, exitOK, a.exec(context.Background()))
	assert.Contains(t, stdout.String(), "Removed")
}

func TestAssociations_Unsupported(t *testing.T) {
	t.Parallel()
	a, _, stderr := testApp(t, "-cleanup")
	a.keys = func() (assoc.Keys, error) { return nil, assoc.ErrUnsupported }
	assert.Equal(t, exitFailure, a.exec(context.Background()))
	assert.Contains(t, stderr.String(), assoc.ErrUnsupported.Error())
}

// archiver creates a fake 7-Zip folder that writes a file into the output folder.
func archiver(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("the fake archiver is a POSIX shell script")
	}
	dir := t.TempDir()
	layout := command.Zip7()
	script := "#!/bin/sh\nout=\"${3#-o}\"\necho '  50%'\necho hi > \"$out/readme.txt\"\nexit 0\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, layout.Primary), []byte(script), 0o755))
	require.NoError(t, helper.Touch(filepath.Join(dir, layout.Library)))
	return dir
}

func TestExtract(t *testing.T) {
	dir := archiver(t)
	src := filepath.Join(t.TempDir(), "release.7z")
	require.NoError(t, helper.Touch(src))
	a, stdout, stderr := testApp(t, "-7zip", dir, "-open", src)
	require.Equal(t, exitOK, a.exec(context.Background()), stderr.String())

	dst := filepath.Join(filepath.Dir(src), "release")
	assert.FileExists(t, filepath.Join(dst, "readme.txt"))
	assert.Contains(t, stdout.String(), " 50%")
	assert.Contains(t, stdout.String(), "100%")
	assert.Contains(t, stdout.String(), "Extracted 1 files to "+dst)
	assert.Equal(t, []string{dst}, a.opener.(*nopener).opened)
}

func TestExtract_NoArchiver(t *testing.T) {
	src := filepath.Join(t.TempDir(), "release.7z")
	require.NoError(t, helper.Touch(src))
	a, _, stderr := testApp(t, "-7zip", t.TempDir(), src)
	assert.Equal(t, exitFailure, a.exec(context.Background()))
	assert.Contains(t, stderr.String(), "7-Zip binaries not found")
}

func TestFolders(t *testing.T) {
	st := settings.Open(filepath.Join(t.TempDir(), settings.Filename))
	require.NoError(t, st.Update(func(s *settings.Settings) { s.SevenZipPath = "/from/settings" }))

	t.Setenv(EnvFolder, "")
	assert.Equal(t, "/from/settings", folders{store: st}.ArchiverFolder())
	t.Setenv(EnvFolder, "/from/env")
	assert.Equal(t, "/from/env", folders{store: st}.ArchiverFolder())
	assert.Equal(t, "/from/flag", folders{flag: "/from/flag", store: st}.ArchiverFolder())
}
