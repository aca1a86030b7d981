//go:build !windows

package assoc

// System returns ErrUnsupported, the registry only exists on Windows.
func System() (Keys, error) {
	return nil, ErrUnsupported
}
