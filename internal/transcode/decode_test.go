package transcode

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestDecodeCarriesSplitRune(t *testing.T) {
	s := NewSession(Config{})
	emoji := []byte("🌍") // 4 bytes

	require.Equal(t, "", s.decode(emoji[:2]))
	require.Equal(t, emoji[:2], s.carry)
	require.Equal(t, "🌍", s.decode(emoji[2:]))
	require.Empty(t, s.carry)
}

func TestDecodeAsciiPassesThrough(t *testing.T) {
	s := NewSession(Config{})
	require.Equal(t, "abc", s.decode([]byte("abc")))
	require.Empty(t, s.carry)
}

func TestDecodeMixedTailHeldBack(t *testing.T) {
	s := NewSession(Config{})
	in := append([]byte("ok é"), []byte("中")[:1]...)
	require.Equal(t, "ok é", s.decode(in))
	require.Len(t, s.carry, 1)
}

func TestFlushCarrySubstitutes(t *testing.T) {
	s := NewSession(Config{})
	_ = s.decode([]byte("🌍")[:2])

	out := s.flushCarry()
	require.NotEmpty(t, out)
	require.True(t, strings.ContainsRune(out, utf8.RuneError))
	require.Empty(t, s.carry)
}

func TestFlushCarryEmpty(t *testing.T) {
	s := NewSession(Config{})
	require.Equal(t, "", s.flushCarry())
}
