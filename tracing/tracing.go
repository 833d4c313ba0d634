// Package tracing configures OpenTelemetry tracing for the gateway.
package tracing

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const defaultServiceName = "objectgate"

// Options controls tracing initialization.
type Options struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`         // OTLP/HTTP collector, host:port or URL
	SampleRatio float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"` // 0.0 - 1.0
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
}

// Init installs the global tracer provider and propagator. The returned
// function flushes and stops the provider; call it during shutdown.
func Init(ctx context.Context, opt Options) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	if !opt.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	svc := strings.TrimSpace(opt.ServiceName)
	if svc == "" {
		svc = defaultServiceName
	}
	res, err := resource.New(ctx,
		resource.WithProcess(),
		resource.WithHost(),
		resource.WithAttributes(attribute.String("service.name", svc)),
	)
	if err != nil {
		slog.Warn("tracing: resource init failed", "error", err)
		res = resource.Empty()
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(opt.SampleRatio)),
	}

	if endpoint := strings.TrimSpace(opt.Endpoint); endpoint != "" {
		httpOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(stripScheme(endpoint))}
		if isInsecure(endpoint) {
			httpOpts = append(httpOpts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, httpOpts...)
		if err != nil {
			return nil, fmt.Errorf("tracing: otlp http exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(5*time.Second)))
	} else {
		slog.Info("tracing: enabled without endpoint; spans will not be exported")
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1.0:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

var skipped = map[string]struct{}{
	"/healthz": {},
	"/metrics": {},
}

// Middleware starts a server span per request. Health and metrics
// scrapes are not traced.
func Middleware(next http.Handler) http.Handler {
	return otelhttp.NewHandler(next, "objectgate.http",
		otelhttp.WithFilter(func(r *http.Request) bool {
			_, skip := skipped[r.URL.Path]
			return !skip
		}),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.EscapedPath()
		}),
	)
}

func isInsecure(endpoint string) bool {
	ep := strings.ToLower(endpoint)
	return strings.HasPrefix(ep, "http://") ||
		strings.Contains(ep, "localhost") ||
		strings.Contains(ep, "127.0.0.1")
}

func stripScheme(endpoint string) string {
	for _, scheme := range []string{"http://", "https://"} {
		if strings.HasPrefix(strings.ToLower(endpoint), scheme) {
			return endpoint[len(scheme):]
		}
	}
	return endpoint
}
