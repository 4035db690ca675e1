package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// OTLP log export protocols.
const (
	ExportHTTP   = "http"
	ExportGRPC   = "grpc"
	ExportStdout = "stdout"
)

// Options configures process-wide logging.
type Options struct {
	Level  slog.Level
	Format string // text or json

	// File, when set, receives local logs instead of stdout. The file is rotated by size.
	File string

	// Export selects an OpenTelemetry log exporter: http, grpc or stdout. Empty disables
	// export. Endpoints and headers come from the standard OTEL_EXPORTER_OTLP_* variables.
	Export string

	ServiceName    string
	ServiceVersion string

	// Output overrides the local log destination. Used by tests.
	Output io.Writer
}

// Instrument installs the default slog logger and the W3C trace context propagator. The
// returned function flushes exporters and closes the log file.
func Instrument(ctx context.Context, opts Options) (shutdown func(context.Context) error, err error) {
	var closers []func(context.Context) error
	shutdown = func(ctx context.Context) error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i](ctx))
		}
		return errors.Join(errs...)
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		closers = append(closers, func(context.Context) error { return rotator.Close() })
		out = rotator
	}

	local, err := newLocalHandler(out, opts.Level, opts.Format)
	if err != nil {
		return shutdown, err
	}
	handler := slog.Handler(newCorrelationHandler(local))

	if opts.Export != "" {
		provider, err := newLoggerProvider(ctx, opts.Export, opts.Level)
		if err != nil {
			return shutdown, err
		}
		closers = append(closers, provider.Shutdown)
		global.SetLoggerProvider(provider)

		exported := otelslog.NewHandler(opts.ServiceName,
			otelslog.WithLoggerProvider(provider),
			otelslog.WithVersion(opts.ServiceVersion),
		)
		handler = fanoutHandler{handler, exported}
	}

	slog.SetDefault(slog.New(handler))
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return shutdown, nil
}

// newLocalHandler creates a handler for human-readable logs.
func newLocalHandler(w io.Writer, level slog.Level, format string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	switch strings.ToLower(format) {
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	case "text", "":
		return slog.NewTextHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unsupported log format %q (expected: json, text)", format)
	}
}

// newLoggerProvider builds a batching log provider for the chosen exporter. Records below
// level are dropped before export.
func newLoggerProvider(ctx context.Context, export string, level slog.Level) (*sdklog.LoggerProvider, error) {
	var (
		exporter sdklog.Exporter
		err      error
	)
	switch export {
	case ExportHTTP:
		exporter, err = otlploghttp.New(ctx)
	case ExportGRPC:
		exporter, err = otlploggrpc.New(ctx)
	case ExportStdout:
		exporter, err = stdoutlog.New()
	default:
		return nil, fmt.Errorf("unsupported log export %q (expected: http, grpc, stdout)", export)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s log exporter: %w", export, err)
	}

	processor := minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), severity(level))
	return sdklog.NewLoggerProvider(sdklog.WithProcessor(processor)), nil
}

func severity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
