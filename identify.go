package extractnow

import (
	"errors"
	"fmt"
	"os"

	"github.com/Defacto2/magicnumber"
)

// Package file identify.go contains the advisory archive identification.

var ErrNotArchive = errors.New("file is not a known archive")

// Identify reads the magic number of the src file and returns its archive signature.
// An ErrNotArchive error is returned with the signature when it is not a known archive.
//
// The result is advisory, the archiver supports more formats than the magic numbers
// recognize, so an unknown signature never prevents an extraction.
func Identify(src string) (magicnumber.Signature, error) {
	r, err := os.Open(src)
	if err != nil {
		return magicnumber.Unknown, fmt.Errorf("identify open %w", err)
	}
	defer r.Close()
	sign, err := magicnumber.Archive(r)
	if err != nil {
		return magicnumber.Unknown, fmt.Errorf("identify magic %w", err)
	}
	if sign == magicnumber.Unknown {
		return sign, fmt.Errorf("%w, %s", ErrNotArchive, sign)
	}
	return sign, nil
}
