package userchoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigestDegenerate(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"", "a", "ab", "abc", "abcd"} {
		assert.Empty(t, digest(s), "digest(%q)", s)
	}
	assert.Equal(t, "jO+BMtNonc8=", digest("abcde"))
}

func TestShr(t *testing.T) {
	t.Parallel()
	assert.Equal(t, int32(0x1234), shr(0x12345678, 16))
	// negative values lose the sign extension of the upper half
	assert.Equal(t, int32(0x8000), shr(-0x80000000, 16))
	assert.Equal(t, int32(0xFFFF), shr(-1, 16))
}
