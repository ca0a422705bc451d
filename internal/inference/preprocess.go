package inference

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"relay-api/internal/cache"
	"relay-api/internal/models"
	"relay-api/internal/shared"

	"github.com/aidarkhanov/nanoid"
)

type PreprocessInput struct {
	Body      []byte
	User      shared.UserMetadata
	Endpoint  string
	RequestID string
}

type RequestInfo struct {
	Body        []byte
	UserID      uint64
	ID          string
	ResponseID  string
	StartTime   time.Time
	Endpoint    string
	Model       string
	Stream      bool
	Fingerprint string
	Engine      *models.Engine
}

// Preprocess validates the request body, applies defaults, resolves the
// model and computes the cache fingerprint. Everything that can be rejected
// before contacting the engine is rejected here, while an error response is
// still possible.
func (im *InferenceHandler) Preprocess(ctx context.Context, input PreprocessInput) (*RequestInfo, error) {
	startTime := time.Now()

	// Unmarshal to generic map to set defaults
	var payload map[string]any
	err := json.Unmarshal(input.Body, &payload)
	if err != nil {
		return nil, errors.Join(shared.ErrBadRequest, err)
	}

	model, ok := payload["model"].(string)
	if !ok || model == "" {
		return nil, &shared.RequestError{StatusCode: 400, Err: errors.New("model is required")}
	}

	switch input.Endpoint {
	case shared.ENDPOINTS.CHAT:
		messages, ok := payload["messages"].([]any)
		if !ok || len(messages) == 0 {
			return nil, &shared.RequestError{
				StatusCode: 400,
				Err:        errors.New("messages are required for chat completions"),
			}
		}
	case shared.ENDPOINTS.COMPLETION:
		prompt, ok := payload["prompt"]
		if !ok {
			return nil, &shared.RequestError{
				StatusCode: 400,
				Err:        errors.New("prompt is required for completions"),
			}
		}
		if str, isStr := prompt.(string); isStr && str == "" {
			return nil, &shared.RequestError{
				StatusCode: 400,
				Err:        errors.New("prompt cannot be empty"),
			}
		}
	}

	// Set stream default if not specified
	if val, ok := payload["stream"]; !ok || val == nil {
		payload["stream"] = shared.DefaultStreamOption
	}
	stream, ok := payload["stream"].(bool)
	if !ok {
		return nil, &shared.RequestError{StatusCode: 400, Err: errors.New("stream must be a boolean")}
	}
	if _, ok := payload["max_tokens"]; !ok {
		payload["max_tokens"] = shared.DefaultMaxTokens
	}

	engine, err := im.Resolver.Resolve(ctx, model)
	if err != nil {
		return nil, err
	}
	if input.Endpoint == shared.ENDPOINTS.CHAT && !engine.Chat {
		return nil, &shared.RequestError{StatusCode: 400, Err: errors.New("model does not support chat completions")}
	}
	if input.Endpoint == shared.ENDPOINTS.COMPLETION && !engine.Completion {
		return nil, &shared.RequestError{StatusCode: 400, Err: errors.New("model does not support completions")}
	}

	// repackage body
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Join(shared.ErrInternalServerError, err)
	}

	responseID, _ := nanoid.Generate("0123456789abcdefghijklmnopqrstuvwxyz", 28)
	prefix := "chatcmpl-"
	if input.Endpoint == shared.ENDPOINTS.COMPLETION {
		prefix = "cmpl-"
	}

	return &RequestInfo{
		Body:        body,
		UserID:      input.User.UserID,
		ID:          input.RequestID,
		ResponseID:  prefix + responseID,
		StartTime:   startTime,
		Endpoint:    input.Endpoint,
		Model:       model,
		Stream:      stream,
		Fingerprint: cache.Fingerprint(model, payload),
		Engine:      engine,
	}, nil
}
