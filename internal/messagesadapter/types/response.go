package types

import (
	"github.com/anthropics/anthropic-sdk-go"
)

// StopReason classifies why generation ended. Values share the SDK's vocabulary.
type StopReason = anthropic.StopReason

const (
	StopReasonEndTurn      = anthropic.StopReasonEndTurn
	StopReasonMaxTokens    = anthropic.StopReasonMaxTokens
	StopReasonStopSequence = anthropic.StopReasonStopSequence
	StopReasonToolUse      = anthropic.StopReasonToolUse

	// StopReasonError has no SDK constant; it marks a generation the backend reported as
	// failed.
	StopReasonError StopReason = "error"
)

// Message is a complete assistant message: the non-streaming response body and the payload
// of message_start.
type Message struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	Role         string        `json:"role"`
	Model        string        `json:"model"`
	Content      ContentBlocks `json:"content"`
	StopReason   *StopReason   `json:"stop_reason"`
	StopSequence *string       `json:"stop_sequence"`
	Usage        Usage         `json:"usage"`
}

// NewMessage returns an empty assistant message with non-nil content.
func NewMessage(id, model string) Message {
	return Message{
		ID:      id,
		Type:    "message",
		Role:    RoleAssistant,
		Model:   model,
		Content: ContentBlocks{},
	}
}

// Usage reports token consumption.
type Usage struct {
	InputTokens          int  `json:"input_tokens"`
	OutputTokens         int  `json:"output_tokens"`
	CacheReadInputTokens *int `json:"cache_read_input_tokens,omitempty"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
