package openaichat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/florianilch/claudebridge/internal/resilience"
)

// fastRetry retries without waiting so tests stay quick.
var fastRetry = resilience.RetryConfig{MaxRetries: 2}

func newTestClient(t *testing.T, baseURL string, mutate func(*ClientOptions)) *Client {
	t.Helper()
	opts := ClientOptions{
		BaseURL:     baseURL,
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "sk-test"}),
		Retry:       fastRetry,
	}
	if mutate != nil {
		mutate(&opts)
	}
	client, err := NewClient(opts)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func writeCompletion(w http.ResponseWriter, id string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"id":%q,"object":"chat.completion","model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`, id)
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(ClientOptions{TokenSource: oauth2.StaticTokenSource(&oauth2.Token{})}); err == nil {
		t.Error("missing base URL: want error")
	}
	if _, err := NewClient(ClientOptions{BaseURL: "http://localhost"}); err == nil {
		t.Error("missing token source: want error")
	}
}

func TestClientCreateChatCompletion(t *testing.T) {
	var gotBody ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" || r.Method != http.MethodPost {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-Trace"); got != "abc" {
			t.Errorf("custom header = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		writeCompletion(w, "chatcmpl-1")
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/v1/", func(o *ClientOptions) {
		o.Headers = map[string]string{"X-Trace": "abc"}
	})

	completion, err := client.CreateChatCompletion(context.Background(), ChatCompletionRequest{
		Model:         "gpt-4o",
		Messages:      []ChatMessage{{Role: RoleUser, Content: TextChatContent("hello")}},
		MaxTokens:     10,
		Stream:        true,
		StreamOptions: &StreamOptions{IncludeUsage: true},
	})
	if err != nil {
		t.Fatalf("CreateChatCompletion: %v", err)
	}
	if completion.ID != "chatcmpl-1" || *completion.Choices[0].Message.Content != "hi" {
		t.Errorf("completion = %+v", completion)
	}
	if gotBody.Stream || gotBody.StreamOptions != nil {
		t.Errorf("non-streaming request sent stream=%v stream_options=%v", gotBody.Stream, gotBody.StreamOptions)
	}
}

func TestClientAzure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("api-key"); got != "sk-test" {
			t.Errorf("api-key = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("Authorization = %q, want none", got)
		}
		if got := r.URL.Query().Get("api-version"); got != "2024-06-01" {
			t.Errorf("api-version = %q", got)
		}
		writeCompletion(w, "az-1")
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, func(o *ClientOptions) {
		o.AzureAPIVersion = "2024-06-01"
	})
	if _, err := client.CreateChatCompletion(context.Background(), ChatCompletionRequest{Model: "gpt-4o"}); err != nil {
		t.Fatalf("CreateChatCompletion: %v", err)
	}
}

func TestClientRetries(t *testing.T) {
	t.Run("retries server errors", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				http.Error(w, `{"error":{"message":"try again"}}`, http.StatusInternalServerError)
				return
			}
			writeCompletion(w, "ok")
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, nil)
		if _, err := client.CreateChatCompletion(context.Background(), ChatCompletionRequest{Model: "m"}); err != nil {
			t.Fatalf("CreateChatCompletion: %v", err)
		}
		if calls.Load() != 3 {
			t.Errorf("calls = %d, want 3", calls.Load())
		}
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"message":"bad model","type":"invalid_request_error"}}`)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, nil)
		_, err := client.CreateChatCompletion(context.Background(), ChatCompletionRequest{Model: "m"})

		var upstreamErr *UpstreamError
		if !errors.As(err, &upstreamErr) {
			t.Fatalf("err = %v, want *UpstreamError", err)
		}
		if upstreamErr.StatusCode != http.StatusBadRequest || upstreamErr.Message() != "bad model" {
			t.Errorf("upstream error = %d %q", upstreamErr.StatusCode, upstreamErr.Message())
		}
		if calls.Load() != 1 {
			t.Errorf("calls = %d, want 1", calls.Load())
		}
	})
}

func TestClientStreamChatCompletion(t *testing.T) {
	var gotBody ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("Accept = %q", got)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, chunk := range []string{
			`{"choices":[{"delta":{"role":"assistant"}}]}`,
			`{"choices":[{"delta":{"content":"Hi"}}]}`,
			`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
			`{"choices":[],"usage":{"prompt_tokens":2,"completion_tokens":1,"total_tokens":3}}`,
			`[DONE]`,
		} {
			_, _ = fmt.Fprintf(w, "data: %s\n\n", chunk)
			flusher.Flush()
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, func(o *ClientOptions) {
		o.RequestTimeout = 5 * time.Second
	})
	fragments, err := client.StreamChatCompletion(context.Background(), ChatCompletionRequest{Model: "m"})
	if err != nil {
		t.Fatalf("StreamChatCompletion: %v", err)
	}

	var got []Fragment
	for f, err := range fragments {
		if err != nil {
			t.Fatalf("stream error: %v", err)
		}
		got = append(got, f)
	}

	if !gotBody.Stream || gotBody.StreamOptions == nil || !gotBody.StreamOptions.IncludeUsage {
		t.Errorf("request stream=%v stream_options=%+v", gotBody.Stream, gotBody.StreamOptions)
	}
	if len(got) != 3 {
		t.Fatalf("fragments = %#v", got)
	}
	finish, ok := got[2].(FinishFragment)
	if !ok || finish.Usage == nil || finish.Usage.PromptTokens != 2 {
		t.Errorf("finish = %#v", got[2])
	}
}

func TestClientStreamHeaderTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(t, server.URL, func(o *ClientOptions) {
		o.RequestTimeout = 50 * time.Millisecond
		o.Retry = resilience.RetryConfig{}
	})

	_, err := client.StreamChatCompletion(context.Background(), ChatCompletionRequest{Model: "m"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if resp := toErrorResponse(err); resp.StatusCode != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", resp.StatusCode)
	}
}

func TestIsBreakerSuccess(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"canceled", context.Canceled, true},
		{"bad request", &UpstreamError{StatusCode: 400}, true},
		{"rate limited", &UpstreamError{StatusCode: 429}, false},
		{"server error", &UpstreamError{StatusCode: 502}, false},
		{"network", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBreakerSuccess(tt.err); got != tt.want {
				t.Errorf("IsBreakerSuccess(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
