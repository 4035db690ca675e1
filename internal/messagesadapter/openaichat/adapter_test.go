package openaichat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/florianilch/claudebridge/internal/messagesadapter/types"
	"github.com/florianilch/claudebridge/internal/resilience"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *CreateMessageAdapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL, func(o *ClientOptions) {
		o.Retry = resilience.RetryConfig{}
	})
	return NewCreateMessageAdapter(client, testConfig)
}

func sseHandler(chunks ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range chunks {
			_, _ = fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
	}
}

func TestAdapterProcessRequest(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		var req ChatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "gpt-4o-mini" {
			t.Errorf("upstream model = %q", req.Model)
		}
		writeCompletion(w, "chatcmpl-9")
	})

	msg, err := adapter.ProcessRequest(context.Background(), types.MessagesRequest{
		Model:     "claude-3-5-haiku-latest",
		MaxTokens: 100,
		Messages:  []types.MessageParam{userText("hi")},
	})
	if err != nil {
		t.Fatalf("ProcessRequest: %v", err)
	}
	if msg.ID != "chatcmpl-9" || msg.Model != "claude-3-5-haiku-latest" {
		t.Errorf("message = %+v", msg)
	}
	if msg.Usage.InputTokens != 3 || msg.Usage.OutputTokens != 1 {
		t.Errorf("usage = %+v", msg.Usage)
	}
}

func TestAdapterProcessRequestError(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	})

	_, err := adapter.ProcessRequest(context.Background(), types.MessagesRequest{
		Model: "m", MaxTokens: 1, Messages: []types.MessageParam{userText("hi")},
	})

	var errResp *types.ErrorResponse
	if !errors.As(err, &errResp) {
		t.Fatalf("err = %v, want *types.ErrorResponse", err)
	}
	if errResp.Err.Type != types.ErrorTypeAuthentication || errResp.StatusCode != http.StatusUnauthorized {
		t.Errorf("error = %+v", errResp)
	}
}

func TestAdapterProcessStreamingRequest(t *testing.T) {
	adapter := newTestAdapter(t, sseHandler(
		`{"choices":[{"delta":{"role":"assistant"}}]}`,
		`{"choices":[{"delta":{"content":"Hi"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
		`{"choices":[],"usage":{"prompt_tokens":4,"completion_tokens":1,"total_tokens":5}}`,
		// Some backends keep sending after the finish marker.
		`{"choices":[{"delta":{"content":"late"}}]}`,
		`[DONE]`,
	))

	stream, err := adapter.ProcessStreamingRequest(context.Background(), types.MessagesRequest{
		Model: "claude-3-opus", MaxTokens: 100, Stream: true, Messages: []types.MessageParam{userText("hi")},
	})
	if err != nil {
		t.Fatalf("ProcessStreamingRequest: %v", err)
	}

	var events []types.StreamEvent
	for event, err := range stream {
		if err != nil {
			t.Fatalf("stream error: %v", err)
		}
		events = append(events, event)
	}

	checkStreamInvariants(t, events)
	want := []string{
		"message_start", "content_block_start", "content_block_delta", "content_block_stop",
		"message_delta", "message_stop",
	}
	if got := eventNames(events); !slices.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
	if usage := events[4].(types.MessageDeltaEvent).Usage; usage.OutputTokens != 1 || *usage.InputTokens != 4 {
		t.Errorf("usage = %+v", usage)
	}
}

func TestAdapterProcessStreamingRequestMidStreamError(t *testing.T) {
	adapter := newTestAdapter(t, sseHandler(
		`{"choices":[{"delta":{"content":"Hi"}}]}`,
		`{"error":{"message":"upstream exploded","type":"server_error"}}`,
	))

	stream, err := adapter.ProcessStreamingRequest(context.Background(), types.MessagesRequest{
		Model: "m", MaxTokens: 100, Stream: true, Messages: []types.MessageParam{userText("hi")},
	})
	if err != nil {
		t.Fatalf("ProcessStreamingRequest: %v", err)
	}

	var names []string
	var streamErr error
	for event, err := range stream {
		if err != nil {
			streamErr = err
			break
		}
		names = append(names, event.EventName())
	}

	var errResp *types.ErrorResponse
	if !errors.As(streamErr, &errResp) || errResp.Err.Message != "upstream exploded" {
		t.Fatalf("stream error = %v", streamErr)
	}
	if slices.Contains(names, types.EventMessageStop) {
		t.Errorf("events = %v, message_stop must not follow a failure", names)
	}
}

func TestAdapterProcessStreamingRequestOpenError(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	})

	_, err := adapter.ProcessStreamingRequest(context.Background(), types.MessagesRequest{
		Model: "m", MaxTokens: 100, Stream: true, Messages: []types.MessageParam{userText("hi")},
	})
	var errResp *types.ErrorResponse
	if !errors.As(err, &errResp) || errResp.Err.Type != types.ErrorTypeRateLimit {
		t.Fatalf("err = %v, want rate_limit_error", err)
	}
}

func TestAdapterCountTokens(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("count_tokens must not call the backend")
	})

	resp, err := adapter.CountTokens(context.Background(), types.CountTokensRequest{
		Model:    "claude-3-5-sonnet",
		System:   types.SystemText("You are terse."),
		Messages: []types.MessageParam{userText("How many tokens is this?")},
	})
	if err != nil {
		t.Fatalf("CountTokens: %v", err)
	}
	if resp.InputTokens <= 0 {
		t.Errorf("input_tokens = %d", resp.InputTokens)
	}
}

func TestAdapterTestConnection(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		var req ChatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "gpt-4o-mini" || req.MaxTokens != connectionTestMaxTokens {
			t.Errorf("request model=%q max_tokens=%d", req.Model, req.MaxTokens)
		}
		writeCompletion(w, "chatcmpl-ping")
	})

	result, err := adapter.TestConnection(context.Background())
	if err != nil {
		t.Fatalf("TestConnection: %v", err)
	}
	if result.Model != "gpt-4o-mini" || result.ResponseID != "chatcmpl-ping" {
		t.Errorf("result = %+v", result)
	}
}
