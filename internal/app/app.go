package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/florianilch/claudebridge/internal/messagesadapter/openaichat"
	"github.com/florianilch/claudebridge/internal/observability/middleware"
	"github.com/florianilch/claudebridge/internal/proxy"
	"github.com/florianilch/claudebridge/internal/resilience"
	"github.com/florianilch/claudebridge/internal/tokensource"
)

// Name identifies the service in logs and the root endpoint.
const Name = "claudebridge"

// App orchestrates the lifecycle of the proxy server and related services.
type App struct {
	cfg    *Config
	proxy  *proxy.Proxy
	health *Health
}

// New wires the upstream client, adapter and proxy from cfg. The upstream API key is read
// once here; a missing key fails startup.
func New(ctx context.Context, cfg *Config, version string) (*App, error) {
	store, err := cfg.Auth.NewTokenStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}
	tokenSource, err := tokensource.New(ctx, store)
	if err != nil {
		return nil, err
	}

	client, err := openaichat.NewClient(openaichat.ClientOptions{
		BaseURL:         cfg.Upstream.BaseURL,
		TokenSource:     tokenSource,
		Transport:       middleware.TraceContextInjection(http.DefaultTransport),
		AzureAPIVersion: cfg.Upstream.AzureAPIVersion,
		Headers:         cfg.Upstream.Headers,
		RequestTimeout:  cfg.Upstream.RequestTimeout,
		Retry:           retryConfig(cfg.Upstream),
		Breaker:         newBreaker(cfg.Upstream.Breaker),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream client: %w", err)
	}

	adapter := openaichat.NewCreateMessageAdapter(client, openaichat.Config{
		Models: openaichat.ModelMapper{
			Big:    cfg.Models.Big,
			Middle: cfg.Models.Middle,
			Small:  cfg.Models.Small,
		},
		MinTokens: cfg.Tokens.Min,
		MaxTokens: cfg.Tokens.Max,
	})

	health := NewHealth()

	proxyServer, err := proxy.New(adapter, health,
		proxy.WithClientAPIKey(cfg.Server.ClientAPIKey),
		proxy.WithMaxRequestBytes(cfg.Server.MaxRequestBytes),
		proxy.WithServiceInfo(proxy.ServiceInfo{
			Name:                  Name,
			Version:               version,
			UpstreamBaseURL:       cfg.Upstream.BaseURL,
			BigModel:              cfg.Models.Big,
			MiddleModel:           cmp.Or(cfg.Models.Middle, cfg.Models.Big),
			SmallModel:            cfg.Models.Small,
			MaxTokensLimit:        cfg.Tokens.Max,
			UpstreamKeyConfigured: true,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy: %w", err)
	}

	return &App{
		cfg:    cfg,
		proxy:  proxyServer,
		health: health,
	}, nil
}

func retryConfig(cfg UpstreamConfig) resilience.RetryConfig {
	retry := resilience.DefaultRetryConfig
	retry.MaxRetries = cfg.MaxRetries
	return retry
}

// newBreaker returns nil when the breaker is disabled.
func newBreaker(cfg BreakerConfig) *resilience.CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		return nil
	}

	bc := resilience.DefaultBreakerConfig("upstream")
	bc.FailureThreshold = cfg.FailureThreshold
	if cfg.Timeout > 0 {
		bc.Timeout = cfg.Timeout
	}
	bc.IsSuccessful = openaichat.IsBreakerSuccess
	bc.OnStateChange = func(name string, from, to gobreaker.State) {
		slog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
	}
	return resilience.NewCircuitBreaker(bc)
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting proxy server",
		"upstream", a.cfg.Upstream.BaseURL,
		"big_model", a.cfg.Models.Big,
		"small_model", a.cfg.Models.Small,
		"client_auth", a.cfg.Server.ClientAPIKey != "",
	)
	proxyErrCh, err := a.proxy.Start(gCtx, a.cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("proxy startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.proxy.Shutdown)

	a.health.SetReady(true)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-proxyErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "proxy runtime error", "error", err)
				return fmt.Errorf("proxy: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	runtimeErr := g.Wait()

	a.health.SetReady(false)
	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
