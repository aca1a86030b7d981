package userchoice

import (
	"strings"

	"golang.org/x/sys/windows"
)

// CurrentUserSID returns the lowercase security identifier of the user running the process.
// An empty string is returned if the identifier cannot be read.
func CurrentUserSID() string {
	token := windows.GetCurrentProcessToken()
	user, err := token.GetTokenUser()
	if err != nil || user == nil || user.User.Sid == nil {
		return ""
	}
	return strings.ToLower(user.User.Sid.String())
}
