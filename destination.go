package extractnow

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Package file destination.go contains the extraction directory naming.

// StampLayout is the time layout of the suffix appended to an existing destination.
const StampLayout = "20060102-150405"

// Destination returns the extraction directory for the src archive.
// The directory is named after the archive without its extension and is
// placed next to the archive, such as archive.7z to archive.
//
// When a file or directory with that name already exists, a timestamp suffix
// based on now is appended so the output of unrelated runs is never merged.
// If the stamped name also exists a counter is added.
func Destination(src string, now time.Time) string {
	dir := filepath.Dir(src)
	base := filepath.Base(src)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" {
		name = base
	}
	dst := filepath.Join(dir, name)
	if !exists(dst) {
		return dst
	}
	stamped := fmt.Sprintf("%s_%s", dst, now.Format(StampLayout))
	if !exists(stamped) {
		return stamped
	}
	for i := 2; ; i++ {
		s := fmt.Sprintf("%s-%d", stamped, i)
		if !exists(s) {
			return s
		}
	}
}

func exists(name string) bool {
	_, err := os.Lstat(name)
	return !errors.Is(err, fs.ErrNotExist)
}
