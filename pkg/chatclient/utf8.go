package chatclient

import (
	"strings"
	"unicode/utf8"
)

// utf8Carry decodes a byte stream chunk by chunk. A multi-byte sequence cut
// by a chunk boundary is held back until the next chunk completes it.
type utf8Carry struct {
	pending []byte
}

func (u *utf8Carry) decode(p []byte) string {
	data := append(u.pending, p...)
	cut := len(data) - incompleteSuffix(data)
	u.pending = append([]byte(nil), data[cut:]...)
	return strings.ToValidUTF8(string(data[:cut]), string(utf8.RuneError))
}

// flush returns whatever is still held back. At end of stream an incomplete
// sequence can no longer be completed and decodes to U+FFFD.
func (u *utf8Carry) flush() string {
	if len(u.pending) == 0 {
		return ""
	}
	s := strings.ToValidUTF8(string(u.pending), string(utf8.RuneError))
	u.pending = nil
	return s
}

// incompleteSuffix returns the length of a trailing sequence that starts a
// rune but does not finish it.
func incompleteSuffix(b []byte) int {
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		if !utf8.RuneStart(b[len(b)-i]) {
			continue
		}
		if utf8.FullRune(b[len(b)-i:]) {
			return 0
		}
		return i
	}
	return 0
}
