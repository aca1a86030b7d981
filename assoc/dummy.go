package assoc

import (
	"archive/zip"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Defacto2/helper"
)

const createUnique = os.O_RDWR | os.O_CREATE | os.O_EXCL

// DummyFile creates a placeholder file with the extension in dir and returns its path.
// The placeholder is opened with the Windows "openas" verb to show the application chooser.
//
// A .zip placeholder is a valid empty zip archive, other extensions are zero bytes.
// An existing placeholder is reused.
func DummyFile(dir, ext string) (string, error) {
	ext = Normalize(ext)
	name := filepath.Join(dir, AppName+"_AssocDummy"+ext)
	f, err := os.OpenFile(name, createUnique, helper.WriteWriteRead)
	if errors.Is(err, fs.ErrExist) {
		return name, nil
	}
	if err != nil {
		return "", fmt.Errorf("dummy file failed to open file: %w", err)
	}
	defer f.Close()
	if !strings.EqualFold(ext, ".zip") {
		return name, nil
	}
	w := zip.NewWriter(f)
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("dummy file failed to write zip: %w", err)
	}
	return name, nil
}
