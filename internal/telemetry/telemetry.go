// Package telemetry configures OpenTelemetry tracing for wsbuild.
//
// Three exporters are supported: "none" installs a no-op provider, "stdout"
// pretty-prints finished spans, and "file" appends them as JSON lines to a
// file. Spans cover each task run and, through NewHTTPClient, every request
// the fetcher makes.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Exporter names accepted by NewProvider.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterFile   = "file"
)

const defaultServiceName = "wsbuild"

// Config selects the span exporter.
type Config struct {
	Exporter string
	// File receives spans for the file exporter
	File string
	// Writer replaces os.Stdout for the stdout exporter
	Writer         io.Writer
	ServiceName    string
	ServiceVersion string
}

// Provider owns the tracer provider and whatever its exporter opened.
type Provider struct {
	tp      trace.TracerProvider
	sdk     *sdktrace.TracerProvider
	closer  io.Closer
	enabled bool
}

// NewProvider builds a tracer provider for cfg. The caller must call Shutdown
// to flush spans.
func NewProvider(cfg Config) (*Provider, error) {
	var (
		exporter sdktrace.SpanExporter
		closer   io.Closer
		err      error
	)

	switch cfg.Exporter {
	case ExporterNone, "":
		return &Provider{tp: noop.NewTracerProvider()}, nil
	case ExporterStdout:
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	case ExporterFile:
		if cfg.File == "" {
			return nil, fmt.Errorf("file exporter needs a trace file")
		}
		var f *os.File
		f, err = openTraceFile(cfg.File)
		if err != nil {
			return nil, err
		}
		closer = f
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(f))
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.Exporter)
	}
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, fmt.Errorf("create %s exporter: %w", cfg.Exporter, err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	attrs := []attribute.KeyValue{attribute.String("service.name", serviceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", cfg.ServiceVersion))
	}

	// NewSchemaless avoids schema URL conflicts with resource.Default()
	sdk := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewSchemaless(attrs...)),
		sdktrace.WithBatcher(exporter),
	)

	return &Provider{tp: sdk, sdk: sdk, closer: closer, enabled: true}, nil
}

func openTraceFile(path string) (*os.File, error) {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	return f, nil
}

// TracerProvider returns the provider spans should be started from.
func (p *Provider) TracerProvider() trace.TracerProvider { return p.tp }

// Tracer returns a named tracer. It is a no-op tracer when tracing is off.
func (p *Provider) Tracer(name string) trace.Tracer { return p.tp.Tracer(name) }

func (p *Provider) Enabled() bool { return p.enabled }

// Shutdown flushes pending spans and closes the trace file.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	err := p.sdk.Shutdown(ctx)
	if p.closer != nil {
		if cerr := p.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// NewHTTPClient returns a client whose transport records a client span per
// request and propagates the W3C trace context. A zero timeout leaves the
// client unbounded; Fetcher applies its own per-call bound.
func NewHTTPClient(tp trace.TracerProvider, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(tp),
			otelhttp.WithPropagators(propagation.TraceContext{}),
		),
	}
}
