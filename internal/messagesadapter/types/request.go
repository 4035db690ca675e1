package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Message roles accepted in the messages array. System prompts and tool results are
// expressed structurally, never as roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MessagesRequest is the body of POST /v1/messages.
type MessagesRequest struct {
	Model         string          `json:"model" validate:"required"`
	MaxTokens     int             `json:"max_tokens" validate:"gt=0"`
	Messages      []MessageParam  `json:"messages" validate:"required,min=1,dive"`
	System        *SystemPrompt   `json:"system,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
	Temperature   *float64        `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	TopP          *float64        `json:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`
	TopK          *int            `json:"top_k,omitempty"`
	Metadata      *Metadata       `json:"metadata,omitempty"`
	Tools         []Tool          `json:"tools,omitempty"`
	ToolChoice    *ToolChoice     `json:"tool_choice,omitempty"`
	Thinking      *ThinkingConfig `json:"thinking,omitempty"`
}

// CountTokensRequest is the body of POST /v1/messages/count_tokens.
type CountTokensRequest struct {
	Model      string          `json:"model" validate:"required"`
	Messages   []MessageParam  `json:"messages" validate:"required,min=1,dive"`
	System     *SystemPrompt   `json:"system,omitempty"`
	Tools      []Tool          `json:"tools,omitempty"`
	ToolChoice *ToolChoice     `json:"tool_choice,omitempty"`
	Thinking   *ThinkingConfig `json:"thinking,omitempty"`
}

// AsMessagesRequest returns the request shape used for translation. MaxTokens is set to 1
// because token counting never generates output.
func (r CountTokensRequest) AsMessagesRequest() MessagesRequest {
	return MessagesRequest{
		Model:      r.Model,
		MaxTokens:  1,
		Messages:   r.Messages,
		System:     r.System,
		Tools:      r.Tools,
		ToolChoice: r.ToolChoice,
		Thinking:   r.Thinking,
	}
}

// CountTokensResponse is the body returned by POST /v1/messages/count_tokens.
type CountTokensResponse struct {
	InputTokens int `json:"input_tokens"`
}

// MessageParam is one conversation turn of a request.
type MessageParam struct {
	Role    string         `json:"role" validate:"oneof=user assistant"`
	Content MessageContent `json:"content"`
}

// Metadata is the optional request metadata object.
type Metadata struct {
	UserID string `json:"user_id,omitempty"`
}

// Tool declares a client tool the model may call.
type Tool struct {
	Name        string         `json:"name"`
	Description *string        `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// Tool choice discriminators.
const (
	ToolChoiceAuto = "auto"
	ToolChoiceAny  = "any"
	ToolChoiceTool = "tool"
	ToolChoiceNone = "none"
)

// ToolChoice constrains how the model uses tools.
type ToolChoice struct {
	Type                   string `json:"type"`
	Name                   string `json:"name,omitempty"`
	DisableParallelToolUse *bool  `json:"disable_parallel_tool_use,omitempty"`
}

// ThinkingConfig enables extended reasoning with an optional token budget.
type ThinkingConfig struct {
	Type         string `json:"type,omitempty"`
	BudgetTokens *int   `json:"budget_tokens,omitempty"`
}

// SystemBlock is one element of a list-form system prompt. Non-text elements are kept so
// they can be skipped deliberately during flattening.
type SystemBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// SystemPrompt is either a bare string or a list of system blocks.
type SystemPrompt struct {
	text   string
	blocks []SystemBlock
	isList bool
}

// SystemText returns a string-form system prompt.
func SystemText(text string) *SystemPrompt {
	return &SystemPrompt{text: text}
}

// SystemBlocks returns a list-form system prompt.
func SystemBlocks(blocks ...SystemBlock) *SystemPrompt {
	return &SystemPrompt{blocks: blocks, isList: true}
}

// IsList reports whether the prompt was given as a block list.
func (s SystemPrompt) IsList() bool { return s.isList }

// Text returns the string form.
func (s SystemPrompt) Text() string { return s.text }

// Blocks returns the list form.
func (s SystemPrompt) Blocks() []SystemBlock { return s.blocks }

// MarshalJSON writes the prompt in the shape it was constructed with.
func (s SystemPrompt) MarshalJSON() ([]byte, error) {
	if s.isList {
		if s.blocks == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(s.blocks)
	}
	return json.Marshal(s.text)
}

// UnmarshalJSON accepts a string or an array of blocks.
func (s *SystemPrompt) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*s = SystemPrompt{text: text}
		return nil
	}

	var blocks []SystemBlock
	if err := json.Unmarshal(trimmed, &blocks); err != nil {
		return fmt.Errorf("system must be a string or array of text blocks: %w", err)
	}
	*s = SystemPrompt{blocks: blocks, isList: true}
	return nil
}
