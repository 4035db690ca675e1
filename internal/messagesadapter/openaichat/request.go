package openaichat

import (
	"strings"

	"github.com/florianilch/claudebridge/internal/messagesadapter/types"
)

// Config holds the translation settings shared by all requests. It is read-only after
// construction and safe for concurrent use.
type Config struct {
	Models ModelMapper

	// MinTokens and MaxTokens bound max_tokens. A zero bound is not enforced.
	MinTokens int
	MaxTokens int
}

// TranslateRequest builds a chat completion request from a Messages request.
//
// Translation never fails. Optional fields that cannot be represented degrade to a defined
// fallback: unknown tool choices become "auto", unnamed tools are dropped, unsupported
// content blocks are skipped.
func TranslateRequest(req types.MessagesRequest, cfg Config) ChatCompletionRequest {
	out := ChatCompletionRequest{
		Model:       cfg.Models.Map(req.Model),
		Messages:    toChatMessages(req.System, req.Messages),
		MaxTokens:   clampMaxTokens(req.MaxTokens, cfg.MinTokens, cfg.MaxTokens),
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      req.Stream,
	}

	if len(req.StopSequences) > 0 {
		out.Stop = req.StopSequences
	}

	if req.Stream {
		// Usage only arrives in a trailing chunk when explicitly requested.
		out.StreamOptions = &StreamOptions{IncludeUsage: true}
	}

	out.Tools = toChatTools(req.Tools)
	if len(out.Tools) > 0 {
		// tool_choice without tools is rejected by the backend.
		out.ToolChoice = toChatToolChoice(req.ToolChoice)
	}

	out.Thinking = toThinking(req.Thinking)

	if req.Metadata != nil && req.Metadata.UserID != "" {
		out.User = req.Metadata.UserID
	}

	// TopK transformation: Chat Completions has no top_k parameter. It is accepted and dropped.

	return out
}

// toChatMessages builds the message list: an optional system message, then the conversation
// with tool results placed directly after the assistant turn that requested them.
func toChatMessages(system *types.SystemPrompt, messages []types.MessageParam) []ChatMessage {
	out := make([]ChatMessage, 0, len(messages)+1)

	if text := systemText(system); text != "" {
		out = append(out, ChatMessage{Role: RoleSystem, Content: TextChatContent(text)})
	}

	for i := 0; i < len(messages); i++ {
		msg := messages[i]
		switch msg.Role {
		case types.RoleAssistant:
			out = append(out, toAssistantMessage(msg.Content))

			if i+1 < len(messages) {
				next := messages[i+1]
				if next.Role == types.RoleUser && next.Content.HasToolResults() {
					out = append(out, toToolMessages(next.Content)...)
					i++
				}
			}
		default:
			out = append(out, toUserMessage(msg.Content))
		}
	}
	return out
}

// systemText flattens the system prompt. List-form prompts join their text blocks with a
// blank line and skip everything else. The result is trimmed.
func systemText(system *types.SystemPrompt) string {
	if system == nil {
		return ""
	}
	if !system.IsList() {
		return strings.TrimSpace(system.Text())
	}

	texts := make([]string, 0, len(system.Blocks()))
	for _, block := range system.Blocks() {
		if block.Type == types.BlockTypeText {
			texts = append(texts, block.Text)
		}
	}
	return strings.TrimSpace(strings.Join(texts, "\n\n"))
}

// clampMaxTokens moves n into [minTokens, maxTokens]. Out-of-range values are clamped, never
// rejected.
func clampMaxTokens(n, minTokens, maxTokens int) int {
	if maxTokens > 0 && n > maxTokens {
		n = maxTokens
	}
	if minTokens > 0 && n < minTokens {
		n = minTokens
	}
	return n
}
