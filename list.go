package extractnow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Package file list.go contains the archive content listing.

// TimeoutList is the maximum time allowed for the archiver to list the archive content.
const TimeoutList = 30 * time.Second

var ErrList = errors.New("archiver could not list the archive")

// List returns the names of the files within the src archive, using the archiver
// list command. Directories are included as the archiver reports them.
// It does not take the single-flight guard, so it may run during an extraction.
func (x *Extractor) List(ctx context.Context, src string) ([]string, error) {
	prog, err := x.Locate()
	if err != nil {
		return nil, fmt.Errorf("list %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, TimeoutList)
	defer cancel()
	const (
		list = "l"         // l list contents of archive
		yes  = "-y"        // -y assume yes to all queries
		utf  = "-sccUTF-8" // -scc console charset
	)
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, prog, list, yes, utf, src)
	cmd.Dir = filepath.Dir(src)
	cmd.Stderr = &stderr
	cmd.WaitDelay = WaitDelay
	prepare(cmd)
	cmd.Cancel = func() error { return killTree(cmd) }
	out, err := cmd.Output()
	if ctx.Err() != nil {
		return nil, canceled(ctx)
	}
	if err != nil {
		if s := strings.TrimSpace(stderr.String()); s != "" {
			return nil, fmt.Errorf("list %w: %s: %q", ErrList, prog, s)
		}
		return nil, fmt.Errorf("list %w: %w", ErrList, err)
	}
	return listing(out), nil
}

// listing parses the table printed by the archiver list command and returns the names.
func listing(out []byte) []string {
	//    Date      Time    Attr         Size   Compressed  Name
	// ------------------- ----- ------------ ------------  ------------------------
	// 2025-02-15 00:21:10 ....A         2009        20465  TESTDAT1.TXT
	// 2025-02-15 00:17:34 ....A          469               TESTDAT2.TXT
	// 2025-02-15 00:21:02 D....            0            0  docs
	// ------------------- ----- ------------ ------------  ------------------------
	// 2025-02-15 00:21:10              83888        20465  2 files, 1 folders
	const padd = len("------------------- ----- ------------ ------------  ")
	rule := []byte("-------------------")
	files := []string{}
	rules := 0
	for _, line := range bytes.Split(out, []byte("\n")) {
		line = bytes.TrimRight(line, "\r")
		if bytes.HasPrefix(line, rule) {
			rules++
			if rules == 2 {
				return files
			}
			continue
		}
		if rules == 0 || len(line) <= padd {
			continue
		}
		if name := strings.TrimSpace(string(line[padd:])); name != "" {
			files = append(files, name)
		}
	}
	return files
}
