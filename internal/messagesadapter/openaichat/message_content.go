package openaichat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/florianilch/claudebridge/internal/messagesadapter/types"
)

// noToolResultContent replaces absent or null tool result content.
const noToolResultContent = "No content provided"

// toUserMessage converts a user message to the backend format.
//
// Bare strings pass through. Block content keeps text and base64 images; every other block
// (tool_use, tool_result, documents, ...) is dropped. A single text part collapses to a bare
// string because most compatible backends handle that form best.
func toUserMessage(content types.MessageContent) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: toUserContent(content)}
}

func toUserContent(content types.MessageContent) ChatContent {
	if !content.IsBlocks() {
		return TextChatContent(content.Text())
	}

	parts := toUserContentParts(content.Blocks())
	if len(parts) == 1 && parts[0].Type == PartTypeText {
		return TextChatContent(parts[0].Text)
	}
	return PartsChatContent(parts...)
}

// toUserContentParts converts the text and image blocks of a user message, in order.
func toUserContentParts(blocks []types.ContentBlock) []ContentPart {
	parts := make([]ContentPart, 0, len(blocks))
	for _, block := range blocks {
		switch b := block.(type) {
		case types.TextBlock:
			parts = append(parts, ContentPart{Type: PartTypeText, Text: b.Text})
		case types.ImageBlock:
			if part, ok := toImagePart(b); ok {
				parts = append(parts, part)
			}
		}
	}
	return parts
}

// toImagePart converts a base64 image to a data URI part. Images referenced by URL or
// missing media type or data are not translated.
func toImagePart(block types.ImageBlock) (ContentPart, bool) {
	src := block.Source
	if src.Type != "base64" || src.MediaType == "" || src.Data == "" {
		return ContentPart{}, false
	}
	return ContentPart{
		Type:     PartTypeImageURL,
		ImageURL: &ImageURL{URL: "data:" + src.MediaType + ";base64," + src.Data},
	}, true
}

// toAssistantMessage converts an assistant message to the backend format.
//
// All text blocks are concatenated into one string, or null when there is none, and every
// tool_use block becomes a function tool call with JSON-encoded arguments. A null content
// with tool calls is the normal shape of a tool-calling turn. Null input content stays null.
func toAssistantMessage(content types.MessageContent) ChatMessage {
	msg := ChatMessage{Role: RoleAssistant}

	if content.IsNull() {
		return msg
	}
	if !content.IsBlocks() {
		msg.Content = TextChatContent(content.Text())
		return msg
	}

	var text strings.Builder
	hasText := false
	for _, block := range content.Blocks() {
		switch b := block.(type) {
		case types.TextBlock:
			text.WriteString(b.Text)
			hasText = true
		case types.ToolUseBlock:
			msg.ToolCalls = append(msg.ToolCalls, toToolCall(b))
		}
	}

	if hasText {
		msg.Content = TextChatContent(text.String())
	}
	return msg
}

// toToolCall converts a tool_use block. A nil input is sent as "{}".
func toToolCall(block types.ToolUseBlock) ToolCall {
	arguments := "{}"
	if block.Input != nil {
		arguments = serializeOrStringify(block.Input)
	}
	return ToolCall{
		ID:   block.ID,
		Type: "function",
		Function: FunctionCall{
			Name:      block.Name,
			Arguments: arguments,
		},
	}
}

// toToolMessages converts a user message that carries tool results into one tool message per
// result, in order. Text and images sharing the message are returned as a trailing user
// message so they are not lost; the backend requires tool messages to directly follow the
// assistant's tool calls.
func toToolMessages(content types.MessageContent) []ChatMessage {
	blocks := content.Blocks()
	messages := make([]ChatMessage, 0, len(blocks))
	for _, block := range blocks {
		if result, ok := block.(types.ToolResultBlock); ok {
			messages = append(messages, ChatMessage{
				Role:       RoleTool,
				ToolCallID: result.ToolUseID,
				Content:    TextChatContent(toolResultText(result.Content)),
			})
		}
	}

	if parts := toUserContentParts(blocks); len(parts) > 0 {
		userContent := PartsChatContent(parts...)
		if len(parts) == 1 && parts[0].Type == PartTypeText {
			userContent = TextChatContent(parts[0].Text)
		}
		messages = append(messages, ChatMessage{Role: RoleUser, Content: userContent})
	}
	return messages
}

// toolResultText flattens tool result content to text. The fallback chain is:
//
//	absent/null  → "No content provided"
//	string       → unchanged
//	object       → its "text" field, else JSON, else fmt representation
//	list         → each item rendered as above, joined by newlines and trimmed
func toolResultText(content types.ToolResultContent) string {
	switch content.Kind() {
	case types.ToolResultString:
		return content.String()
	case types.ToolResultObject:
		return toolResultObjectText(content.Object())
	case types.ToolResultList:
		return toolResultItemsText(content.Items())
	default:
		return noToolResultContent
	}
}

// toolResultObjectText returns the object's text field when it has a string one, and a
// serialization of the whole object otherwise.
func toolResultObjectText(object map[string]any) string {
	if text, ok := object["text"].(string); ok {
		return text
	}
	return serializeOrStringify(object)
}

// toolResultItemsText renders list-form content. Strings pass through, objects go through
// toolResultObjectText, and any other scalar uses its fmt representation.
func toolResultItemsText(items []any) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			parts = append(parts, v)
		case map[string]any:
			parts = append(parts, toolResultObjectText(v))
		case nil:
		default:
			parts = append(parts, fmt.Sprint(v))
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// serializeOrStringify encodes v as compact JSON without HTML escaping. Values that cannot be
// encoded (NaN, channels, cyclic data) fall back to their fmt representation.
func serializeOrStringify(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
