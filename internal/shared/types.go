package shared

import "time"

type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
	Name    string `json:"name,omitempty"`
}

type OpenAIError struct {
	Message string `json:"message"`
	Object  string `json:"object"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

type UserMetadata struct {
	Email  string `json:"email,omitempty"`
	UserID uint64 `json:"user_id,omitempty"`
	RPM    int    `json:"rpm,omitempty"`
	Role   string `json:"role,omitempty"`
	APIKey string `json:"-"`
}

// ProcessedQueryInfo is the per-request record handed to the request log and
// metrics once a generation finishes.
type ProcessedQueryInfo struct {
	UserID           uint64
	Model            string
	ModelID          uint64
	Endpoint         string
	Frames           uint64
	Completed        bool
	Canceled         bool
	TimeToFirstToken time.Duration
	TotalTime        time.Duration
	CreatedAt        time.Time
}
