// Package observability wires structured logging for msgbridge: log/slog
// routed through the OpenTelemetry Logs SDK, with a severity-filtering
// processor and a pluggable exporter (stdout for local/dev, OTLP when an
// endpoint is configured), matching SPEC_FULL.md §A.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log"
)

// loggerName identifies this service's logs to whatever backend receives
// them (OTLP resource attribute / stdout record scope).
const loggerName = "msgbridge"

// otlpEndpointEnv, when set, switches the exporter from stdout to OTLP;
// otlpProtocolEnv picks the wire protocol ("grpc", the default, or
// "http/protobuf").
const (
	otlpEndpointEnv = "OTEL_EXPORTER_OTLP_ENDPOINT"
	otlpProtocolEnv = "OTEL_EXPORTER_OTLP_PROTOCOL"
)

// Instrument installs a slog handler backed by the OpenTelemetry Logs SDK
// as the process-wide default logger (via slog.SetDefault), and redacts
// every record's message and attributes before it leaves the process
// (§4.8), regardless of which exporter below ends up receiving it.
//
// logFormat only affects the stdout exporter's encoding ("json" or
// "text"); it has no effect once OTEL_EXPORTER_OTLP_ENDPOINT is set, since
// OTLP always carries structured records.
func Instrument(logLevel slog.Level, logFormat string) error {
	exporter, err := newExporter(logFormat)
	if err != nil {
		return fmt.Errorf("observability: build exporter: %w", err)
	}

	processor := minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), severityFromSlog(logLevel))
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(processor))

	handler := otelslog.NewHandler(loggerName, otelslog.WithLoggerProvider(provider))
	slog.SetDefault(slog.New(&redactingHandler{next: handler}))
	currentProvider = provider
	return nil
}

func newExporter(logFormat string) (sdklog.Exporter, error) {
	ctx := context.Background()

	if endpoint, ok := os.LookupEnv(otlpEndpointEnv); ok && endpoint != "" {
		if os.Getenv(otlpProtocolEnv) == "http/protobuf" {
			return otlploghttp.New(ctx)
		}
		return otlploggrpc.New(ctx)
	}

	opts := []stdoutlog.Option{stdoutlog.WithoutTimestamps()}
	if logFormat != "json" {
		opts = append(opts, stdoutlog.WithPrettyPrint())
	}
	return stdoutlog.New(opts...)
}

// severityFromSlog maps slog's levels onto the OTel log data model's
// severity numbers, which use a finer-grained scale (TRACE1..FATAL4).
func severityFromSlog(level slog.Level) log.Severity {
	switch {
	case level <= slog.LevelDebug:
		return log.SeverityDebug
	case level <= slog.LevelInfo:
		return log.SeverityInfo
	case level <= slog.LevelWarn:
		return log.SeverityWarn
	default:
		return log.SeverityError
	}
}

// Shutdown should be deferred by the caller after Instrument to flush any
// buffered log records before process exit. It is a no-op if Instrument
// was never called successfully in this process.
func Shutdown(ctx context.Context) error {
	if currentProvider == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return currentProvider.Shutdown(shutdownCtx)
}

var currentProvider *sdklog.LoggerProvider
