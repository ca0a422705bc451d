package shared

import "time"

// HTTP Client Configuration
const (
	DefaultStreamRequestTimeout = 120 * time.Second
	DefaultShutdownTimeout      = 10 * time.Minute
)

// Cache Configuration
const (
	ModelServiceCacheTTL = 30 * time.Minute
	UserInfoCacheTTL     = 1 * time.Minute
	ResponseCacheTTL     = 15 * time.Minute
)

// API Configuration
const (
	DefaultMaxTokens    = 512
	DefaultStreamOption = true
	DefaultRPM          = 60
	APIKeyLength        = 32
)

// Endpoints the gateway exposes. The engine speaks one line-oriented
// generation protocol; the endpoint only selects the output frame shape.
var ENDPOINTS = struct {
	CHAT       string
	COMPLETION string
}{
	CHAT:       "chat",
	COMPLETION: "completion",
}

// ROUTES maps gateway endpoints to engine routes.
var ROUTES = map[string]string{
	ENDPOINTS.CHAT:       "/generate",
	ENDPOINTS.COMPLETION: "/generate",
}
