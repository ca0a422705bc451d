package inference

import (
	"encoding/json"

	"relay-api/internal/shared"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatCompletion struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []chatCompletionChoice `json:"choices"`
}

type textCompletionChoice struct {
	Index        int    `json:"index"`
	Text         string `json:"text"`
	Logprobs     any    `json:"logprobs"`
	FinishReason string `json:"finish_reason"`
}

type textCompletion struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []textCompletionChoice `json:"choices"`
}

// encodeFinalResponse assembles the single-document response for
// non-streaming requests from the aggregated fragments.
func encodeFinalResponse(req *RequestInfo, text string) ([]byte, error) {
	if req.Endpoint == shared.ENDPOINTS.COMPLETION {
		return json.Marshal(textCompletion{
			ID:      req.ResponseID,
			Object:  "text_completion",
			Created: req.StartTime.Unix(),
			Model:   req.Model,
			Choices: []textCompletionChoice{{
				Text:         text,
				FinishReason: "stop",
			}},
		})
	}
	return json.Marshal(chatCompletion{
		ID:      req.ResponseID,
		Object:  "chat.completion",
		Created: req.StartTime.Unix(),
		Model:   req.Model,
		Choices: []chatCompletionChoice{{
			Message:      chatMessage{Role: "assistant", Content: text},
			FinishReason: "stop",
		}},
	})
}
