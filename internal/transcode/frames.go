package transcode

import "encoding/json"

const stopReason = "stop"

type chatDelta struct {
	Role    string  `json:"role,omitempty"`
	Content *string `json:"content,omitempty"`
}

type chatChoice struct {
	Index        int       `json:"index"`
	FinishReason *string   `json:"finish_reason"`
	Delta        chatDelta `json:"delta"`
}

type chatChunk struct {
	ID      string       `json:"id"`
	Created int64        `json:"created"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

type completionChoice struct {
	Index        int     `json:"index"`
	Logprobs     any     `json:"logprobs"`
	FinishReason *string `json:"finish_reason"`
	Text         string  `json:"text"`
}

type completionChunk struct {
	ID      string             `json:"id"`
	Created int64              `json:"created"`
	Object  string             `json:"object"`
	Model   string             `json:"model"`
	Choices []completionChoice `json:"choices"`
}

// emitFragment encodes one extracted fragment as an output event and writes
// it immediately.
func (s *Session) emitFragment(fragment string) error {
	if s.onFragment != nil {
		s.onFragment(fragment)
	}

	var body []byte
	var err error
	switch s.mode {
	case ModeCompletion:
		body, err = json.Marshal(completionChunk{
			ID:      s.id,
			Created: s.created,
			Object:  "text_completion",
			Model:   s.model,
			Choices: []completionChoice{{Text: fragment}},
		})
	default:
		body, err = json.Marshal(chatChunk{
			ID:      s.id,
			Created: s.created,
			Object:  "chat.completion.chunk",
			Model:   s.model,
			Choices: []chatChoice{{Delta: chatDelta{Role: "assistant", Content: &fragment}}},
		})
	}
	if err != nil {
		s.skipped++
		s.log.Warnw("failed to encode frame", "error", err)
		return nil
	}
	return s.writeFrame(body)
}

// finalize emits the terminating frame and the sentinel event, exactly once
// per session. Both modes terminate identically whether the engine sent its
// sentinel or the input simply ended.
func (s *Session) finalize() error {
	if s.finished {
		return nil
	}
	s.finished = true

	reason := stopReason
	var body []byte
	switch s.mode {
	case ModeCompletion:
		body, _ = json.Marshal(completionChunk{
			ID:      s.id,
			Created: s.created,
			Object:  "text_completion",
			Model:   s.model,
			Choices: []completionChoice{{FinishReason: &reason}},
		})
	default:
		body, _ = json.Marshal(chatChunk{
			ID:      s.id,
			Created: s.created,
			Object:  "chat.completion.chunk",
			Model:   s.model,
			Choices: []chatChoice{{FinishReason: &reason}},
		})
	}
	if err := s.writeFrame(body); err != nil {
		return err
	}
	return s.emit([]byte(eventPrefix + doneSentinel + "\n\n"))
}

func (s *Session) writeFrame(body []byte) error {
	s.frames++
	frame := make([]byte, 0, len(eventPrefix)+len(body)+2)
	frame = append(frame, eventPrefix...)
	frame = append(frame, body...)
	frame = append(frame, '\n', '\n')
	return s.emit(frame)
}
