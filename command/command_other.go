//go:build !windows

package command

// The p7zip packages install the programs and the codec library
// into a single folder, such as /usr/lib/p7zip.

const (
	Zip7Console = "7z"    // Zip7Console is the 7-Zip console program.
	Zip7GUI     = "7zG"   // Zip7GUI is the 7-Zip GUI program.
	Zip7Library = "7z.so" // Zip7Library is the 7-Zip codec library.
)
