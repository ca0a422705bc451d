package transcode

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	eventPrefix  = "data: "
	doneSentinel = "[DONE]"
)

// handleLine interprets one complete, newline-terminated line. Lines that
// are not well-formed events are logged and skipped; headers are already on
// the wire, so nothing here may abort the stream.
func (s *Session) handleLine(line string) error {
	trimmed := strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(trimmed, eventPrefix) {
		if trimmed != "" {
			s.skipped++
			s.log.Debugw("skipping non-event line", "line", trimmed)
		}
		return nil
	}

	payload := strings.TrimSpace(trimmed[len(eventPrefix):])
	if payload == doneSentinel {
		s.sentinelSeen = true
		return s.finalize()
	}

	var event map[string]any
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		s.skipped++
		s.log.Debugw("skipping malformed event line", "error", err)
		return nil
	}
	return s.emitFragment(s.extractFragment(event["response"]))
}

// extractFragment pulls the incremental text out of the event payload. Chat
// mode applies a best-effort compatibility chain for engines that nest the
// text inside an object; completion mode takes the value as-is.
func (s *Session) extractFragment(v any) string {
	if v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	if s.mode == ModeCompletion {
		return fmt.Sprint(v)
	}
	if obj, ok := v.(map[string]any); ok {
		if str, ok := obj["text"].(string); ok {
			return str
		}
		if str, ok := obj["content"].(string); ok {
			return str
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}
