package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/florianilch/claudebridge/internal/messagesadapter"
	"github.com/florianilch/claudebridge/internal/observability/middleware"
)

// defaultMaxRequestBytes bounds request bodies. Image-heavy conversations are large.
const defaultMaxRequestBytes = 32 << 20

// ReadinessChecker reports whether the application can serve traffic.
type ReadinessChecker interface {
	IsReady() bool
}

// Backend serves every Messages API operation the proxy exposes.
type Backend interface {
	messagesadapter.CreateMessageAdapter
	messagesadapter.TokenCounter
	messagesadapter.ConnectionTester
}

// ServiceInfo describes the running service for the informational endpoints.
type ServiceInfo struct {
	Name            string
	Version         string
	UpstreamBaseURL string
	BigModel        string
	MiddleModel     string
	SmallModel      string
	MaxTokensLimit  int

	// UpstreamKeyConfigured reports whether an upstream API key was loaded.
	UpstreamKeyConfigured bool
}

type options struct {
	clientAPIKey    string
	maxRequestBytes int64
	info            ServiceInfo
	logger          *slog.Logger
}

// Option configures a Proxy.
type Option func(*options)

// WithClientAPIKey requires clients to present key as x-api-key or bearer token.
func WithClientAPIKey(key string) Option {
	return func(o *options) { o.clientAPIKey = key }
}

// WithMaxRequestBytes overrides the request body limit.
func WithMaxRequestBytes(n int64) Option {
	return func(o *options) { o.maxRequestBytes = n }
}

// WithServiceInfo sets what / and /health report.
func WithServiceInfo(info ServiceInfo) Option {
	return func(o *options) { o.info = info }
}

// WithLogger sets the request logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Proxy is the front-facing HTTP server.
type Proxy struct {
	handler http.Handler
	server  *http.Server
}

// Compile-time check to ensure Proxy implements http.Handler
var _ http.Handler = (*Proxy)(nil)

// New creates a proxy serving backend.
func New(backend Backend, health ReadinessChecker, opts ...Option) (*Proxy, error) {
	if backend == nil {
		return nil, errors.New("backend cannot be nil")
	}
	if health == nil {
		return nil, errors.New("readiness checker cannot be nil")
	}

	o := options{maxRequestBytes: defaultMaxRequestBytes}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestIDGeneration,
		middleware.TraceContextExtraction,
		middleware.Logging(o.logger),
		Recovery,
	)

	r.Get("/", rootHandler(o.info, o.clientAPIKey != ""))
	r.Get("/health", healthHandler(o.info, o.clientAPIKey != ""))
	r.Get("/ready", readinessHandler(health))

	r.Group(func(r chi.Router) {
		r.Use(ClientAuth(o.clientAPIKey), RequestSizeLimit(o.maxRequestBytes))

		r.Method(http.MethodPost, "/v1/messages", &MessagesHandler{Backend: backend})
		r.Method(http.MethodPost, "/v1/messages/count_tokens", &CountTokensHandler{Counter: backend})
		r.Get("/test-connection", testConnectionHandler(backend))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(r.Context(), w, messagesadapter.NewNotFound(r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		errResp := messagesadapter.NewInvalidRequest(fmt.Sprintf("method %s not allowed for %s", r.Method, r.URL.Path))
		errResp.StatusCode = http.StatusMethodNotAllowed
		writeJSONError(r.Context(), w, errResp)
	})

	return &Proxy{handler: r}, nil
}

// ServeHTTP implements http.Handler.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.handler.ServeHTTP(w, r)
}

// Start binds addr and serves in the background. Bind errors are returned directly; errors
// after startup are delivered on the returned channel.
func (p *Proxy) Start(ctx context.Context, addr string) (<-chan error, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	p.server = &http.Server{
		Handler:           p.handler,
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: streamed responses can run for minutes.
		IdleTimeout: 120 * time.Second,
		BaseContext: func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	slog.InfoContext(ctx, "proxy listening", "addr", listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := p.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh, nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests until ctx expires.
func (p *Proxy) Shutdown(ctx context.Context) error {
	if p.server == nil {
		return nil
	}
	if err := p.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("proxy shutdown: %w", err)
	}
	return nil
}
