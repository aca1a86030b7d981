// Package command lists the archiver program names and the folder layout
// of a bundled 7-Zip installation.
package command

// A note about the archiver folder: 7-Zip loads its codecs from a shared
// library that must sit next to the console program. A folder holding only
// the executable is not a usable installation.

const (
	Folder   = "7zip" // Folder is the default archiver folder name, relative to the executable.
	Explorer = "explorer.exe"
)

// Layout names the files expected inside an archiver folder.
type Layout struct {
	Primary  string // Primary is the console archiver, preferred for its output.
	Fallback string // Fallback is the GUI variant used when the console program is missing.
	Library  string // Library is the shared library that must sit next to the executable.
}

// Zip7 returns the 7-Zip layout for the running platform.
func Zip7() Layout {
	return Layout{
		Primary:  Zip7Console,
		Fallback: Zip7GUI,
		Library:  Zip7Library,
	}
}
