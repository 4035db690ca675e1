package openaichat

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"github.com/florianilch/claudebridge/internal/messagesadapter"
	"github.com/florianilch/claudebridge/internal/messagesadapter/types"
)

var (
	_ messagesadapter.CreateMessageAdapter = (*CreateMessageAdapter)(nil)
	_ messagesadapter.TokenCounter         = (*CreateMessageAdapter)(nil)
	_ messagesadapter.ConnectionTester     = (*CreateMessageAdapter)(nil)
)

// connectionTestMaxTokens keeps the connection test cheap. It bypasses max_tokens clamping.
const connectionTestMaxTokens = 5

// CreateMessageAdapter serves Anthropic CreateMessage requests from a Chat Completions backend.
// It holds no per-request state and is safe for concurrent use.
type CreateMessageAdapter struct {
	client  *Client
	config  Config
	counter *TokenCounter
}

// NewCreateMessageAdapter creates an adapter sending translated requests through client.
func NewCreateMessageAdapter(client *Client, cfg Config) *CreateMessageAdapter {
	return &CreateMessageAdapter{
		client:  client,
		config:  cfg,
		counter: NewTokenCounter(),
	}
}

// ProcessRequest translates the request, calls the backend and translates the completion.
// Failures are returned as *types.ErrorResponse.
func (a *CreateMessageAdapter) ProcessRequest(ctx context.Context, req types.MessagesRequest) (*types.Message, error) {
	chatReq := TranslateRequest(req, a.config)
	logTranslation(ctx, req, chatReq)

	completion, err := a.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, toErrorResponse(err)
	}

	msg := TranslateResponse(*completion, req.Model)
	return &msg, nil
}

// ProcessStreamingRequest translates the request, opens a backend stream and returns the
// reassembled Anthropic events.
//
// A backend failure after the stream opened abandons the reassembler and yields one
// *types.ErrorResponse as the final element; message_stop is never synthesized for an
// incomplete response. A stream that ends without a finish marker is closed with end_turn.
func (a *CreateMessageAdapter) ProcessStreamingRequest(ctx context.Context, req types.MessagesRequest) (iter.Seq2[types.StreamEvent, error], error) {
	chatReq := TranslateRequest(req, a.config)
	logTranslation(ctx, req, chatReq)

	fragments, err := a.client.StreamChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, toErrorResponse(err)
	}

	return func(yield func(types.StreamEvent, error) bool) {
		reassembler := NewReassembler(newMessageID(), req.Model)

		emit := func(events []types.StreamEvent) bool {
			for _, event := range events {
				if !yield(event, nil) {
					return false
				}
			}
			return true
		}

		for fragment, err := range fragments {
			if err != nil {
				reassembler.Abandon()
				yield(nil, toErrorResponse(err))
				return
			}

			events, err := reassembler.Feed(fragment)
			if errors.Is(err, ErrReassemblerClosed) {
				// Backends occasionally send chunks after the finish marker.
				slog.WarnContext(ctx, "dropping stream fragment after finish", "fragment", fragmentName(fragment))
				continue
			}
			if err != nil {
				reassembler.Abandon()
				yield(nil, toErrorResponse(err))
				return
			}
			if !emit(events) {
				reassembler.Abandon()
				return
			}
		}

		events, err := reassembler.Finish()
		if err != nil {
			yield(nil, toErrorResponse(err))
			return
		}
		emit(events)
	}, nil
}

// CountTokens estimates the prompt tokens the backend would bill for req.
func (a *CreateMessageAdapter) CountTokens(ctx context.Context, req types.CountTokensRequest) (*types.CountTokensResponse, error) {
	chatReq := TranslateRequest(req.AsMessagesRequest(), a.config)

	n, err := a.counter.Count(chatReq)
	if err != nil {
		return nil, toErrorResponse(err)
	}
	slog.DebugContext(ctx, "counted tokens", "model", req.Model, "upstream_model", chatReq.Model, "input_tokens", n)
	return &types.CountTokensResponse{InputTokens: n}, nil
}

// TestConnection sends a minimal request to the small model.
func (a *CreateMessageAdapter) TestConnection(ctx context.Context) (*messagesadapter.ConnectionTestResult, error) {
	model := a.config.Models.Small
	completion, err := a.client.CreateChatCompletion(ctx, ChatCompletionRequest{
		Model:     model,
		Messages:  []ChatMessage{{Role: RoleUser, Content: TextChatContent("Hello")}},
		MaxTokens: connectionTestMaxTokens,
	})
	if err != nil {
		return nil, toErrorResponse(err)
	}
	return &messagesadapter.ConnectionTestResult{Model: model, ResponseID: completion.ID}, nil
}

func logTranslation(ctx context.Context, req types.MessagesRequest, chatReq ChatCompletionRequest) {
	slog.DebugContext(ctx, "translated request",
		"model", req.Model,
		"upstream_model", chatReq.Model,
		"stream", req.Stream,
		"messages", len(chatReq.Messages),
		"tools", len(chatReq.Tools),
		"max_tokens", chatReq.MaxTokens,
	)
}

func fragmentName(f Fragment) string {
	switch f.(type) {
	case RoleFragment:
		return "role"
	case TextFragment:
		return "text"
	case ToolCallFragment:
		return "tool_call"
	case FinishFragment:
		return "finish"
	case UsageFragment:
		return "usage"
	case KeepAliveFragment:
		return "keep_alive"
	default:
		return "unknown"
	}
}
