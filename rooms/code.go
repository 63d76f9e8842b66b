package rooms

import (
	"math/rand"
	"regexp"
	"strings"
)

// codeAlphabet leaves out 0/O, 1/I and similar glyphs so codes survive
// being read out loud.
const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
)

var codeFormat = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// NewCode returns a random 6-character room code.
func NewCode() string {
	var b strings.Builder
	b.Grow(codeLength)
	for i := 0; i < codeLength; i++ {
		b.WriteByte(codeAlphabet[rand.Intn(len(codeAlphabet))])
	}
	return b.String()
}

// IsValidCode reports whether a client-supplied code has the right shape.
func IsValidCode(code string) bool {
	return codeFormat.MatchString(code)
}
