//go:build !windows

package assoc

// OpenChooser returns ErrUnsupported, the application chooser only exists on Windows.
func OpenChooser(dir, ext string) error {
	return ErrUnsupported
}
