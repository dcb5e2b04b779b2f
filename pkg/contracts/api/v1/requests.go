// Package api holds the request bodies accepted by the v1 HTTP API.
// Validation rules are expressed as go-playground/validator tags.
package api

// AskRequest is the body of POST /api/assistant/sessions/{id}/messages.
type AskRequest struct {
	Text string `json:"text" validate:"required"`
}

// ClientLogRequest is a front-end log entry posted to /api/client-logs.
// Unknown levels are logged at info.
type ClientLogRequest struct {
	Level   string                 `json:"level"`
	Message string                 `json:"message" validate:"required,max=2000"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Source  string                 `json:"source,omitempty" validate:"max=200"`
}

// SuccessResponse acknowledges a request that returns no data.
type SuccessResponse struct {
	Success bool `json:"success"`
}
