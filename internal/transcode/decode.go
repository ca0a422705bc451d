package transcode

import (
	"strings"
	"unicode/utf8"
)

// decode converts the next raw chunk to text, holding back any trailing
// bytes that form an incomplete rune so a multi-byte character is never
// split across two emitted fragments.
func (s *Session) decode(chunk []byte) string {
	data := chunk
	if len(s.carry) > 0 {
		data = append(s.carry, chunk...)
		s.carry = nil
	}

	cut := len(data)
	for i := len(data) - 1; i >= 0 && len(data)-i < utf8.UTFMax; i-- {
		if !utf8.RuneStart(data[i]) {
			continue
		}
		if !utf8.FullRune(data[i:]) {
			cut = i
		}
		break
	}
	if cut < len(data) {
		s.carry = append([]byte(nil), data[cut:]...)
		data = data[:cut]
	}
	return string(data)
}

// flushCarry decodes whatever is still held back at end of input. The bytes
// can no longer complete a rune, so they decode with replacement characters
// rather than being dropped.
func (s *Session) flushCarry() string {
	if len(s.carry) == 0 {
		return ""
	}
	out := strings.ToValidUTF8(string(s.carry), string(utf8.RuneError))
	s.carry = nil
	return out
}
