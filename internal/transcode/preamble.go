package transcode

import "strings"

// reasoningCloseTag ends the engine's in-band thinking preamble. Nothing at
// or before the tag may reach the client.
const reasoningCloseTag = "</think>"

// filterPreamble suppresses text until the close tag has been seen. The tag
// may arrive split across any number of chunks, so the filter keeps a scan
// window of the trailing bytes that could still complete it.
func (s *Session) filterPreamble(text string) string {
	if s.preambleClosed {
		return text
	}
	if text == "" {
		return ""
	}
	s.window += text
	if idx := strings.Index(s.window, reasoningCloseTag); idx >= 0 {
		out := s.window[idx+len(reasoningCloseTag):]
		s.window = ""
		s.preambleClosed = true
		return out
	}
	if keep := tagOverlap(s.window, reasoningCloseTag); keep < len(s.window) {
		s.window = s.window[len(s.window)-keep:]
	}
	return ""
}

// tagOverlap returns the length of the longest suffix of s that is a proper
// prefix of tag.
func tagOverlap(s, tag string) int {
	longest := len(tag) - 1
	if len(s) < longest {
		longest = len(s)
	}
	for i := longest; i > 0; i-- {
		if strings.HasSuffix(s, tag[:i]) {
			return i
		}
	}
	return 0
}
