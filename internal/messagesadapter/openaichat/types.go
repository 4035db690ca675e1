package openaichat

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Finish reasons reported by the backend.
const (
	FinishReasonStop         = "stop"
	FinishReasonLength       = "length"
	FinishReasonToolCalls    = "tool_calls"
	FinishReasonFunctionCall = "function_call"
	FinishReasonError        = "error"
)

// ChatCompletionRequest is the body of POST /chat/completions.
type ChatCompletionRequest struct {
	Model         string         `json:"model"`
	Messages      []ChatMessage  `json:"messages"`
	MaxTokens     int            `json:"max_tokens"`
	Temperature   *float64       `json:"temperature,omitempty"`
	TopP          *float64       `json:"top_p,omitempty"`
	Stop          []string       `json:"stop,omitempty"`
	Stream        bool           `json:"stream"`
	StreamOptions *StreamOptions `json:"stream_options,omitempty"`
	Tools         []Tool         `json:"tools,omitempty"`
	ToolChoice    *ToolChoice    `json:"tool_choice,omitempty"`
	Thinking      *Thinking      `json:"thinking,omitempty"`
	User          string         `json:"user,omitempty"`
}

// StreamOptions configures streamed responses.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// ChatMessage is one message of a chat completion request.
type ChatMessage struct {
	Role       string      `json:"role"`
	Content    ChatContent `json:"content"`
	Name       string      `json:"name,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
}

// ChatContent is the content of a chat message: a string, null, or a list of parts.
// Parts takes precedence when non-nil; a nil Text and nil Parts encode as null.
type ChatContent struct {
	Text  *string
	Parts []ContentPart
}

// TextChatContent returns string content.
func TextChatContent(text string) ChatContent {
	return ChatContent{Text: &text}
}

// PartsChatContent returns part-list content. An empty list stays an empty list.
func PartsChatContent(parts ...ContentPart) ChatContent {
	if parts == nil {
		parts = []ContentPart{}
	}
	return ChatContent{Parts: parts}
}

// IsNull reports whether the content encodes as null.
func (c ChatContent) IsNull() bool {
	return c.Text == nil && c.Parts == nil
}

// MarshalJSON writes a string, a part list, or null.
func (c ChatContent) MarshalJSON() ([]byte, error) {
	switch {
	case c.Parts != nil:
		return json.Marshal(c.Parts)
	case c.Text != nil:
		return json.Marshal(*c.Text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a string, a part list, or null.
func (c *ChatContent) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*c = ChatContent{}
	case trimmed[0] == '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*c = TextChatContent(text)
	default:
		var parts []ContentPart
		if err := json.Unmarshal(trimmed, &parts); err != nil {
			return fmt.Errorf("content must be a string, null or array of parts: %w", err)
		}
		*c = PartsChatContent(parts...)
	}
	return nil
}

// Content part discriminators.
const (
	PartTypeText     = "text"
	PartTypeImageURL = "image_url"
)

// ContentPart is one element of list-form message content.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL references an image by URL or data URI.
type ImageURL struct {
	URL string `json:"url"`
}

// MarshalJSON writes only the fields belonging to the part's type.
func (p ContentPart) MarshalJSON() ([]byte, error) {
	switch p.Type {
	case PartTypeImageURL:
		return json.Marshal(struct {
			Type     string    `json:"type"`
			ImageURL *ImageURL `json:"image_url"`
		}{p.Type, p.ImageURL})
	default:
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{p.Type, p.Text})
	}
}

// ToolCall is a function invocation requested by the assistant.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the function and carries its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool declares a function the model may call.
type Tool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes a callable function.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolChoice is either a mode string ("auto", "none", "required") or a pinned function.
type ToolChoice struct {
	Mode     string
	Function string
}

// MarshalJSON writes {"type":"function","function":{"name":...}} for pinned choices and the
// bare mode string otherwise.
func (c ToolChoice) MarshalJSON() ([]byte, error) {
	if c.Function != "" {
		return json.Marshal(map[string]any{
			"type":     "function",
			"function": map[string]string{"name": c.Function},
		})
	}
	return json.Marshal(c.Mode)
}

// UnmarshalJSON accepts a mode string or a pinned function object.
func (c *ToolChoice) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var mode string
		if err := json.Unmarshal(trimmed, &mode); err != nil {
			return err
		}
		*c = ToolChoice{Mode: mode}
		return nil
	}

	var pinned struct {
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}
	if err := json.Unmarshal(trimmed, &pinned); err != nil {
		return err
	}
	*c = ToolChoice{Function: pinned.Function.Name}
	return nil
}

// Thinking is the reasoning-budget extension understood by some compatible backends.
type Thinking struct {
	Type         string `json:"type,omitempty"`
	BudgetTokens *int   `json:"budget_tokens,omitempty"`
}

// ChatCompletion is a complete (non-streaming) chat completion response.
type ChatCompletion struct {
	ID      string           `json:"id"`
	Object  string           `json:"object,omitempty"`
	Model   string           `json:"model"`
	Choices []Choice         `json:"choices"`
	Usage   *CompletionUsage `json:"usage,omitempty"`
}

// Choice is one completion alternative. Only the first is translated.
type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// ResponseMessage is the assistant message of a choice.
type ResponseMessage struct {
	Role      string     `json:"role"`
	Content   *string    `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// CompletionUsage reports token consumption.
type CompletionUsage struct {
	PromptTokens        int                  `json:"prompt_tokens"`
	CompletionTokens    int                  `json:"completion_tokens"`
	TotalTokens         int                  `json:"total_tokens"`
	PromptTokensDetails *PromptTokensDetails `json:"prompt_tokens_details,omitempty"`
}

// PromptTokensDetails breaks down prompt tokens.
type PromptTokensDetails struct {
	CachedTokens int `json:"cached_tokens"`
}

// Fragment is one incremental unit decoded from a streamed response. The set of
// implementations is closed.
type Fragment interface {
	fragment()
}

// RoleFragment announces the assistant role, usually in the first chunk.
type RoleFragment struct {
	Role string
}

// TextFragment carries a piece of assistant text.
type TextFragment struct {
	Text string
}

// ToolCallFragment carries part of a tool call. Index is stable for one call across
// fragments; ID and Name are usually only present on its first fragment.
type ToolCallFragment struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// FinishFragment is the finish marker. Usage is set when the backend reported it.
type FinishFragment struct {
	Reason string
	Usage  *CompletionUsage
}

// UsageFragment reports usage that arrived without a pending finish marker.
type UsageFragment struct {
	Usage CompletionUsage
}

// KeepAliveFragment is an SSE comment line sent to keep the connection open.
type KeepAliveFragment struct{}

func (RoleFragment) fragment()      {}
func (TextFragment) fragment()      {}
func (ToolCallFragment) fragment()  {}
func (FinishFragment) fragment()    {}
func (UsageFragment) fragment()     {}
func (KeepAliveFragment) fragment() {}
