package messagesadapter

import (
	"context"
	"iter"

	"github.com/florianilch/claudebridge/internal/messagesadapter/types"
)

// Adapter defines the contract for serving Messages API requests from a provider API.
//
// Type parameters allow the interface to express transformation contracts for different
// request/response shapes while maintaining compile-time type safety.
//
// Type parameters:
//   - TRequest:  Client-specific request structure
//   - TResponse: Client-specific response structure
//   - TEvent:    Client-specific streaming event protocol
type Adapter[TRequest, TResponse, TEvent any] interface {
	// ProcessRequest transforms the client request, calls the provider API, and returns
	// the transformed response. Implementations should remain stateless.
	ProcessRequest(ctx context.Context, clientReq TRequest) (*TResponse, error)

	// ProcessStreamingRequest transforms the client request, calls the provider streaming API,
	// and returns an iterator of transformed events. Errors returned directly happen before
	// any event exists; errors yielded by the iterator happen mid-stream.
	ProcessStreamingRequest(ctx context.Context, clientReq TRequest) (iter.Seq2[TEvent, error], error)
}

// Type aliases for Messages API operations.
// CreateMessageAdapter is the concrete adapter interface for this operation.
type (
	CreateMessageRequest  = types.MessagesRequest
	CreateMessageResponse = types.Message
	CreateMessageEvent    = types.StreamEvent

	CreateMessageAdapter = Adapter[
		CreateMessageRequest,
		CreateMessageResponse,
		CreateMessageEvent,
	]
)

// TokenCounter estimates the input tokens of a request without calling the provider.
type TokenCounter interface {
	CountTokens(ctx context.Context, req types.CountTokensRequest) (*types.CountTokensResponse, error)
}

// ConnectionTester performs a minimal round trip to the provider.
type ConnectionTester interface {
	TestConnection(ctx context.Context) (*ConnectionTestResult, error)
}

// ConnectionTestResult describes a successful provider round trip.
type ConnectionTestResult struct {
	Model      string `json:"model_used"`
	ResponseID string `json:"response_id"`
}

// Type aliases for Messages API error responses.
type (
	ErrorResponse = types.ErrorResponse
	ErrorDetail   = types.ErrorDetail
	ErrorEvent    = types.ErrorEvent
)
