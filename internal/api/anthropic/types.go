// Package anthropic provides the wire types and HTTP client for the Anthropic
// Messages API used to generate explanations.
package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MessagesRequest represents an Anthropic Messages API request.
type MessagesRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Temperature *float32  `json:"temperature,omitempty"`
}

// Message represents a message in the conversation.
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart represents a single content part in a message.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// TextMessage builds a single-part text message.
func TextMessage(role, text string) Message {
	return Message{
		Role:    role,
		Content: []ContentPart{{Type: "text", Text: text}},
	}
}

// MessagesResponse represents an Anthropic Messages API response.
type MessagesResponse struct {
	ID           string            `json:"id"`
	Type         string            `json:"type"`
	Role         string            `json:"role"`
	Content      []ResponseContent `json:"content"`
	Model        string            `json:"model"`
	StopReason   string            `json:"stop_reason"`
	StopSequence *string           `json:"stop_sequence,omitempty"`
	Usage        MessagesUsage     `json:"usage"`
}

// ResponseContent represents content in a response.
type ResponseContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// FirstText returns the text of the first content block, or "" when the
// response carries none.
func (r *MessagesResponse) FirstText() string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	return r.Content[0].Text
}

// MessagesUsage represents token usage in the response.
type MessagesUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ErrorResponse represents an Anthropic API error.
type ErrorResponse struct {
	Type  string    `json:"type"`
	Error *APIError `json:"error"`
}

// APIError contains error details.
type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// IsModelNotFound reports whether the provider rejected the requested model
// identifier.
func (e *APIError) IsModelNotFound() bool {
	return e != nil && e.Type == "not_found_error" &&
		strings.Contains(strings.ToLower(e.Message), "model")
}

// ParseErrorResponse attempts to parse an error response from JSON.
func ParseErrorResponse(data []byte) (*APIError, error) {
	var errResp ErrorResponse
	if err := json.Unmarshal(data, &errResp); err != nil {
		return nil, err
	}
	if errResp.Error == nil {
		return nil, nil
	}
	return errResp.Error, nil
}

// StatusError is returned when the provider answers with a non-200 status.
// Body holds the raw response for diagnostics.
type StatusError struct {
	StatusCode int
	Body       []byte
	// API is the parsed provider error, nil when the body was not an
	// Anthropic error envelope.
	API *APIError
}

func (e *StatusError) Error() string {
	if e.API != nil {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.API.Error())
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, string(e.Body))
}

// Unwrap exposes the parsed provider error.
func (e *StatusError) Unwrap() error {
	if e.API == nil {
		return nil
	}
	return e.API
}
