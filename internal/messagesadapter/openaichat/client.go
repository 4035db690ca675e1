package openaichat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/florianilch/claudebridge/internal/resilience"
)

// maxErrorBodySize bounds how much of a failed response is kept for the error message.
const maxErrorBodySize = 64 << 10

// ClientOptions configures the upstream Chat Completions client.
type ClientOptions struct {
	// BaseURL is the API root, e.g. https://api.openai.com/v1. The client posts to
	// {BaseURL}/chat/completions.
	BaseURL string

	// TokenSource supplies the API key. For standard backends it is sent as a bearer token.
	TokenSource oauth2.TokenSource

	// Transport is the base round tripper. Nil uses http.DefaultTransport.
	Transport http.RoundTripper

	// AzureAPIVersion switches to Azure OpenAI conventions: the key goes in the api-key header
	// and api-version is added to the query.
	AzureAPIVersion string

	// Headers are added to every upstream request.
	Headers map[string]string

	// RequestTimeout bounds a non-streaming request and the time until a streaming response
	// starts. Zero disables it.
	RequestTimeout time.Duration

	Retry   resilience.RetryConfig
	Breaker *resilience.CircuitBreaker
}

// Client sends chat completion requests to an OpenAI-compatible backend.
type Client struct {
	httpClient      *http.Client
	endpoint        string
	azureAPIVersion string
	headers         map[string]string
	requestTimeout  time.Duration
	executor        *resilience.Executor[*http.Response]
}

// NewClient creates a client. The transport chain handles authentication: a bearer token via
// oauth2.Transport, or the api-key header for Azure.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if opts.TokenSource == nil {
		return nil, fmt.Errorf("token source cannot be nil")
	}

	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	var transport http.RoundTripper
	if opts.AzureAPIVersion != "" {
		transport = &apiKeyTransport{source: opts.TokenSource, base: base}
	} else {
		transport = &oauth2.Transport{Source: opts.TokenSource, Base: base}
	}

	if opts.Retry.ShouldRetry == nil {
		opts.Retry.ShouldRetry = isRetryable
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			// Client.Timeout = 0 allows long-running SSE streams; RequestTimeout bounds the
			// response headers instead.
		},
		endpoint:        strings.TrimRight(opts.BaseURL, "/") + "/chat/completions",
		azureAPIVersion: opts.AzureAPIVersion,
		headers:         opts.Headers,
		requestTimeout:  opts.RequestTimeout,
		executor:        resilience.NewExecutor[*http.Response](opts.Retry, opts.Breaker),
	}, nil
}

// CreateChatCompletion sends a non-streaming request and decodes the completion.
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletion, error) {
	req.Stream = false
	req.StreamOptions = nil

	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var completion ChatCompletion
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("decode chat completion: %w", err)
	}
	return &completion, nil
}

// StreamChatCompletion sends a streaming request and returns its fragments. Errors returned
// directly happen before any byte of the stream was read and may have been retried; errors
// yielded by the iterator happen mid-stream and are never retried. Stopping the iteration
// closes the response body.
func (c *Client) StreamChatCompletion(ctx context.Context, req ChatCompletionRequest) (iter.Seq2[Fragment, error], error) {
	req.Stream = true
	if req.StreamOptions == nil {
		req.StreamOptions = &StreamOptions{IncludeUsage: true}
	}

	// The request timeout only covers the wait for response headers: a context deadline
	// would also cut off a healthy long stream.
	streamCtx, cancel := context.WithCancel(ctx)
	var timer *time.Timer
	if c.requestTimeout > 0 {
		timer = time.AfterFunc(c.requestTimeout, cancel)
	}

	resp, err := c.send(streamCtx, req)
	if timer != nil && !timer.Stop() {
		if err == nil {
			_ = resp.Body.Close()
		}
		cancel()
		return nil, fmt.Errorf("wait for upstream response: %w", context.DeadlineExceeded)
	}
	if err != nil {
		cancel()
		return nil, err
	}

	return func(yield func(Fragment, error) bool) {
		defer cancel()
		defer func() { _ = resp.Body.Close() }()

		for fragment, err := range decodeStream(resp.Body) {
			if err != nil && ctx.Err() != nil {
				err = fmt.Errorf("%w: %w", ctx.Err(), err)
			}
			if !yield(fragment, err) || err != nil {
				return
			}
		}
	}, nil
}

// send marshals req and posts it, retrying transient failures. Non-2xx responses are returned
// as *UpstreamError with the body consumed and closed.
func (c *Client) send(ctx context.Context, req ChatCompletionRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat completion request: %w", err)
	}

	attempt := 0
	return c.executor.Execute(ctx, func() (*http.Response, error) {
		attempt++
		if attempt > 1 {
			slog.DebugContext(ctx, "retrying upstream request", "attempt", attempt, "model", req.Model)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create upstream request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if req.Stream {
			httpReq.Header.Set("Accept", "text/event-stream")
		} else {
			httpReq.Header.Set("Accept", "application/json")
		}
		for name, value := range c.headers {
			httpReq.Header.Set(name, value)
		}
		if c.azureAPIVersion != "" {
			q := httpReq.URL.Query()
			q.Set("api-version", c.azureAPIVersion)
			httpReq.URL.RawQuery = q.Encode()
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("upstream request: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
			_ = resp.Body.Close()
			return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: errBody}
		}
		return resp, nil
	})
}

// isRetryable retries network failures and upstream 429/5xx responses.
func isRetryable(err error) bool {
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.Retryable()
	}
	return !errors.Is(err, context.DeadlineExceeded)
}

// IsBreakerSuccess reports whether an upstream outcome should count as healthy for the
// circuit breaker. Client mistakes (4xx other than 429) and cancellations say nothing about
// upstream health.
func IsBreakerSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return !upstreamErr.Retryable()
	}
	return false
}

// apiKeyTransport authenticates Azure OpenAI requests with the api-key header.
type apiKeyTransport struct {
	source oauth2.TokenSource
	base   http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.source.Token()
	if err != nil {
		return nil, fmt.Errorf("get API key: %w", err)
	}

	// RoundTrippers must not modify the original request.
	req = req.Clone(req.Context())
	req.Header.Set("api-key", token.AccessToken)
	return t.base.RoundTrip(req)
}
