package command

const (
	Zip7Console = "7z.exe"  // Zip7Console is the 7-Zip console program.
	Zip7GUI     = "7zG.exe" // Zip7GUI is the 7-Zip GUI program.
	Zip7Library = "7z.dll"  // Zip7Library is the 7-Zip codec library.
)
