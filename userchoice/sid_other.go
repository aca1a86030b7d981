//go:build !windows

package userchoice

// CurrentUserSID returns an empty string, security identifiers only exist on Windows.
func CurrentUserSID() string {
	return ""
}
