// Package telemetry installs the global OpenTelemetry tracer and meter
// providers.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gitlab.com/yelinaung/ledger-bot/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Exporter names accepted by Setup.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPGRPC = "otlp-grpc"
	ExporterOTLPHTTP = "otlp-http"
)

// DefaultServiceName is reported when no service name is configured.
const DefaultServiceName = "ledger-bot"

// defaultMetricInterval is how often metrics are pushed.
const defaultMetricInterval = 30 * time.Second

// Config selects the exporter and identifies the service.
type Config struct {
	Exporter       string
	ServiceName    string
	ServiceVersion string
	// Writer receives stdout exporter output. Defaults to os.Stdout.
	Writer         io.Writer
	MetricInterval time.Duration
}

// ShutdownFunc flushes and stops the providers.
type ShutdownFunc func(context.Context) error

// IsValidExporter reports whether name is a known exporter.
func IsValidExporter(name string) bool {
	switch strings.ToLower(name) {
	case "", ExporterNone, ExporterStdout, ExporterOTLPGRPC, ExporterOTLPHTTP:
		return true
	default:
		return false
	}
}

// Setup installs tracer and meter providers for the configured exporter.
// With ExporterNone the global no-op providers are left in place.
// OTLP endpoints are read from the standard OTEL_EXPORTER_OTLP_* variables.
func Setup(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	exporter := strings.ToLower(cfg.Exporter)
	if exporter == "" || exporter == ExporterNone {
		logger.Log.Debug().Msg("Telemetry disabled")
		return func(context.Context) error { return nil }, nil
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = DefaultServiceName
	}
	attrs := []attribute.KeyValue{attribute.String("service.name", serviceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", cfg.ServiceVersion))
	}
	res := resource.NewSchemaless(attrs...)

	spanExporter, metricExporter, err := newExporters(ctx, exporter, cfg.Writer)
	if err != nil {
		return nil, err
	}

	interval := cfg.MetricInterval
	if interval <= 0 {
		interval = defaultMetricInterval
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Log.Info().Str("exporter", exporter).Str("service", serviceName).Msg("Telemetry started")

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func newExporters(ctx context.Context, exporter string, w io.Writer) (sdktrace.SpanExporter, sdkmetric.Exporter, error) {
	switch exporter {
	case ExporterStdout:
		if w == nil {
			w = os.Stdout
		}
		se, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		me, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
		}
		return se, me, nil

	case ExporterOTLPGRPC:
		se, err := otlptracegrpc.New(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP gRPC trace exporter: %w", err)
		}
		me, err := otlpmetricgrpc.New(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP gRPC metric exporter: %w", err)
		}
		return se, me, nil

	case ExporterOTLPHTTP:
		se, err := otlptracehttp.New(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP HTTP trace exporter: %w", err)
		}
		me, err := otlpmetrichttp.New(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP HTTP metric exporter: %w", err)
		}
		return se, me, nil

	default:
		return nil, nil, fmt.Errorf("unknown telemetry exporter %q", exporter)
	}
}
