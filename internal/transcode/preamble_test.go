package transcode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTagOverlap(t *testing.T) {
	cases := []struct {
		s    string
		want int
	}{
		{"", 0},
		{"no tag here", 0},
		{"text<", 1},
		{"text</th", 4},
		{"text</think", 7},
		{"</", 2},
		{"<</", 2},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, tagOverlap(tc.s, reasoningCloseTag), "input %q", tc.s)
	}
}

func TestFilterPreambleOneWayTransition(t *testing.T) {
	s := NewSession(Config{})

	require.Equal(t, "", s.filterPreamble("thinking..."))
	require.False(t, s.preambleClosed)

	require.Equal(t, "after", s.filterPreamble("</think>after"))
	require.True(t, s.preambleClosed)

	// Once closed, everything passes through, including tag-like text.
	require.Equal(t, "</think>more", s.filterPreamble("</think>more"))
}

func TestFilterPreambleWindowStaysBounded(t *testing.T) {
	s := NewSession(Config{})
	for range 1000 {
		s.filterPreamble("reasoning noise without any marker ")
	}
	require.Less(t, len(s.window), len(reasoningCloseTag))
}

func TestFilterPreambleMarkerSplitBytewise(t *testing.T) {
	s := NewSession(Config{})
	var got string
	for _, r := range "deep thoughts</think>payload" {
		got += s.filterPreamble(string(r))
	}
	require.Equal(t, "payload", got)
	require.True(t, s.preambleClosed)
}
