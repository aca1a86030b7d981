// Package userchoice generates the UserChoice hash that Windows uses to
// authenticate the default application of a file extension.
//
// Windows 8 and later ignore a UserChoice registry key that was not written
// by the shell unless its Hash value matches a digest of the extension, the
// user SID, the ProgID and the minute the key was written. This package
// reproduces that digest bit for bit so a default handler can be set without
// the interactive confirmation dialog.
package userchoice

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
)

// Experience is the fixed string that ends every hashed value.
const Experience = "User Choice set via Windows User Experience {D18B6DD5-6124-4341-9318-804003BAFA0B}"

// epochDelta is the number of 100-nanosecond intervals between
// the FILETIME epoch of 1601-01-01 and the Unix epoch.
const epochDelta = 116444736000000000

// Generate returns the base64 encoded UserChoice hash of the extension, program
// identifier, user security identifier and timestamp.
//
// The timestamp is truncated to the whole minute, as Windows validates the hash
// against the minute the registry key was last written.
// An empty string is returned for input too short to hash, which cannot happen
// with a real extension as the hashed value always ends with [Experience].
func Generate(extension, progID, userSID string, timestamp time.Time) string {
	return digest(Base(extension, progID, userSID, timestamp))
}

// Base returns the lowercase string that is hashed by [Generate].
func Base(extension, progID, userSID string, timestamp time.Time) string {
	ft := Filetime(timestamp.Truncate(time.Minute))
	hi, lo := uint32(ft>>32), uint32(ft&0xFFFFFFFF)
	stamp := strings.ToLower(fmt.Sprintf("%08X%08X", hi, lo))
	return strings.ToLower(extension) +
		strings.ToLower(userSID) +
		strings.ToLower(progID) +
		stamp +
		strings.ToLower(Experience)
}

// Filetime returns t as a Windows FILETIME value,
// the number of 100-nanosecond intervals since 1601-01-01 UTC.
func Filetime(t time.Time) uint64 {
	ticks := t.Unix()*1e7 + int64(t.Nanosecond())/100
	return uint64(ticks + epochDelta)
}

// digest hashes the base string.
func digest(base string) string {
	enc, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().String(base)
	if err != nil {
		return ""
	}
	// the value is hashed with its two byte null terminator
	data := append([]byte(enc), 0, 0)
	sum := md5.Sum(data)

	chars := len(enc) / 2
	size := chars*2 + 2
	length := (size >> 2) - 1
	if (size & 4) > 1 {
		length++
	}
	if length <= 1 {
		return ""
	}
	rounds := (length >> 1) + 1
	if need := rounds * 8; len(data) < need {
		data = append(data, make([]byte, need-len(data))...)
	}

	key0 := word(sum[:], 0)
	key1 := word(sum[:], 4)
	h1, c1 := first(data, rounds, key0, key1)
	h2, c2 := second(data, rounds, key0, key1)

	out := make([]byte, 8)
	binary.LittleEndian.PutUint32(out[0:], uint32(h2^h1))
	binary.LittleEndian.PutUint32(out[4:], uint32(c2^c1))
	return base64.StdEncoding.EncodeToString(out)
}

// first is the first mixing loop, it returns the hash and cache accumulators.
func first(data []byte, rounds int, key0, key1 int32) (int32, int32) {
	md51 := (key0 | 1) + 0x69FB0000
	md52 := (key1 | 1) + 0x13DB0000
	var hash, cache int32
	for p := 0; rounds > 0; rounds-- {
		if p+4 > len(data) {
			break
		}
		r0 := word(data, p) + hash
		var next int32
		if p+4 < len(data) {
			next = word(data, p+4)
		}
		p += 8

		r1 := int32(int64(r0) * int64(md51))
		r2 := int32(0x79F8A395*int64(r1) + 0x689B6B9F*int64(shr(r1, 16)))
		r3 := int32(0xEA970001*int64(r2) - 0x3C101569*int64(shr(r2, 16)))
		r4 := r3 + next
		r5 := cache + r3
		r6 := int32(int64(r4) * int64(md52))
		r7 := int32(0x59C3AF2D*int64(r6) - 0x2232E0F1*int64(shr(r6, 16)))
		hash = int32(0x1EC90001*int64(r7) + 0x35BD1EC9*int64(shr(r7, 16)))
		cache = r5 + hash
	}
	return hash, cache
}

// second is the second mixing loop, it returns the hash and cache accumulators.
func second(data []byte, rounds int, key0, key1 int32) (int32, int32) {
	md51 := key0 | 1
	md52 := key1 | 1
	var hash, cache int32
	for p := 0; rounds > 0; rounds-- {
		if p+4 > len(data) {
			break
		}
		r0 := word(data, p) + hash
		var next int32
		if p+4 < len(data) {
			next = word(data, p+4)
		}
		p += 8

		r1 := int32(int64(r0) * int64(md51))
		r2 := int32(0xB1110000*int64(r1) - 0x30674EEF*int64(shr(r1, 16)))
		r3 := int32(0x5B9F0000*int64(r2) - 0x78F7A461*int64(shr(r2, 16)))
		r4 := int32(0x12CEB96D*int64(shr(r3, 16)) - 0x46930000*int64(r3))
		r5 := int32(0x1D830000*int64(r4) + 0x257E1D83*int64(shr(r4, 16)))
		r6 := int32(int64(md52) * (int64(r5) + int64(next)))
		r7 := int32(0x16F50000*int64(r6) - 0x5D8BE90B*int64(shr(r6, 16)))
		r8 := int32(0x96FF0000*int64(r7) - 0x2C7C6901*int64(shr(r7, 16)))
		r9 := int32(0x2B890000*int64(r8) + 0x7C932B89*int64(shr(r8, 16)))
		hash = int32(0x9F690000*int64(r9) - 0x405B6097*int64(shr(r9, 16)))
		cache = hash + cache + r5
	}
	return hash, cache
}

// word reads a little-endian signed 32-bit integer at offset p.
func word(b []byte, p int) int32 {
	return int32(binary.LittleEndian.Uint32(b[p:]))
}

// shr is the right shift used by the Windows shell. A negative value is
// shifted arithmetically and then has its upper 16 bits flipped.
func shr(v int32, n uint) int32 {
	const mask = ^int32(0xFFFF) // 0xFFFF0000
	if v < 0 {
		return (v >> n) ^ mask
	}
	return v >> n
}
