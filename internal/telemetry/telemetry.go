// =============================================================================
// agentwatch OpenTelemetry SDK initialization
// =============================================================================
// Builds tracer, meter and logger providers from config.TelemetryConfig.
// Exporters: console (stdout), otlp (gRPC or HTTP), langfuse (OTLP/HTTP with
// Basic auth), prometheus (pull, metrics only).
// =============================================================================

package telemetry

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"github.com/BaSui01/agentwatch/config"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// langfuseTracesPath is appended to the Langfuse base URL.
const langfuseTracesPath = "/api/public/otel/v1/traces"

// Option customizes Init.
type Option func(*options)

type options struct {
	writer  io.Writer
	version string
}

// WithWriter sets where console exporters write. Defaults to stdout.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.writer = w }
}

// WithVersion overrides the service.version resource attribute.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// Providers holds the SDK providers. Nil fields mean that signal is off and
// the matching accessor returns a noop.
type Providers struct {
	tp       *sdktrace.TracerProvider
	mp       *sdkmetric.MeterProvider
	lp       *sdklog.LoggerProvider
	registry *prometheus.Registry
	name     string
}

// Init builds the providers described by cfg. When cfg.Enabled is false it
// returns noop Providers without touching the network.
func Init(ctx context.Context, cfg config.TelemetryConfig, logger *zap.Logger, opts ...Option) (*Providers, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "telemetry"))

	if !cfg.Enabled {
		logger.Info("telemetry disabled, using noop providers")
		return &Providers{}, nil
	}

	o := options{writer: os.Stdout, version: buildVersion()}
	for _, opt := range opts {
		opt(&o)
	}

	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(o.version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create otel resource: %w", err)
	}

	p := &Providers{name: cfg.ServiceName}
	// Partially built providers are shut down if a later step fails.
	fail := func(err error) (*Providers, error) {
		_ = p.Shutdown(ctx)
		return nil, err
	}

	spanExporter, syncExport, err := newSpanExporter(ctx, cfg, o.writer)
	if err != nil {
		return fail(fmt.Errorf("create trace exporter: %w", err))
	}
	if spanExporter != nil {
		export := sdktrace.WithBatcher(spanExporter)
		if syncExport {
			export = sdktrace.WithSyncer(spanExporter)
		}
		p.tp = sdktrace.NewTracerProvider(
			export,
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
		)
	}

	reader, registry, err := newMetricReader(ctx, cfg, o.writer)
	if err != nil {
		return fail(fmt.Errorf("create metric exporter: %w", err))
	}
	if reader != nil {
		p.registry = registry
		p.mp = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(reader),
			sdkmetric.WithResource(res),
		)
	}

	if cfg.ExportLogs && cfg.Exporter == config.ExporterOTLP {
		logExporter, err := newLogExporter(ctx, cfg)
		if err != nil {
			return fail(fmt.Errorf("create log exporter: %w", err))
		}
		p.lp = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
			sdklog.WithResource(res),
		)
	}

	logger.Info("telemetry initialized",
		zap.String("exporter", cfg.Exporter),
		zap.String("metrics_exporter", cfg.ResolvedMetricsExporter()),
		zap.String("service_name", cfg.ServiceName),
		zap.Float64("sample_rate", cfg.SampleRate),
		zap.Bool("logs", p.lp != nil),
	)
	return p, nil
}

// newSpanExporter returns nil for the none exporter. sync reports whether
// spans should be exported as they end rather than batched.
func newSpanExporter(ctx context.Context, cfg config.TelemetryConfig, w io.Writer) (exp sdktrace.SpanExporter, sync bool, err error) {
	switch cfg.Exporter {
	case config.ExporterNone:
		return nil, false, nil
	case config.ExporterConsole:
		exp, err = stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		return exp, true, err
	case config.ExporterOTLP:
		if cfg.OTLPProtocol == config.ProtocolHTTP {
			opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
			if cfg.Insecure {
				opts = append(opts, otlptracehttp.WithInsecure())
			}
			exp, err = otlptracehttp.New(ctx, opts...)
			return exp, false, err
		}
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exp, err = otlptracegrpc.New(ctx, opts...)
		return exp, false, err
	case config.ExporterLangfuse:
		lf := cfg.Langfuse
		exp, err = otlptracehttp.New(ctx,
			otlptracehttp.WithEndpointURL(strings.TrimRight(lf.Endpoint, "/")+langfuseTracesPath),
			otlptracehttp.WithHeaders(map[string]string{
				"Authorization": BasicAuth(lf.PublicKey, lf.SecretKey),
			}),
		)
		return exp, true, err
	default:
		return nil, false, fmt.Errorf("unknown exporter %q", cfg.Exporter)
	}
}

// newMetricReader returns a nil reader for the none exporter. The registry
// is only set for the prometheus exporter.
func newMetricReader(ctx context.Context, cfg config.TelemetryConfig, w io.Writer) (sdkmetric.Reader, *prometheus.Registry, error) {
	switch cfg.ResolvedMetricsExporter() {
	case config.ExporterNone:
		return nil, nil, nil
	case config.ExporterConsole:
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return nil, nil, err
		}
		return sdkmetric.NewPeriodicReader(exp), nil, nil
	case config.ExporterOTLP:
		var (
			exp sdkmetric.Exporter
			err error
		)
		if cfg.OTLPProtocol == config.ProtocolHTTP {
			opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint)}
			if cfg.Insecure {
				opts = append(opts, otlpmetrichttp.WithInsecure())
			}
			exp, err = otlpmetrichttp.New(ctx, opts...)
		} else {
			opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
			if cfg.Insecure {
				opts = append(opts, otlpmetricgrpc.WithInsecure())
			}
			exp, err = otlpmetricgrpc.New(ctx, opts...)
		}
		if err != nil {
			return nil, nil, err
		}
		return sdkmetric.NewPeriodicReader(exp), nil, nil
	case config.ExporterPrometheus:
		registry := prometheus.NewRegistry()
		exp, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return nil, nil, err
		}
		return exp, registry, nil
	default:
		return nil, nil, fmt.Errorf("unknown metrics exporter %q", cfg.MetricsExporter)
	}
}

func newLogExporter(ctx context.Context, cfg config.TelemetryConfig) (sdklog.Exporter, error) {
	if cfg.OTLPProtocol == config.ProtocolHTTP {
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.Insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		}
		return otlploghttp.New(ctx, opts...)
	}
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	return otlploggrpc.New(ctx, opts...)
}

// BasicAuth builds the Authorization header value Langfuse expects.
func BasicAuth(publicKey, secretKey string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(publicKey+":"+secretKey))
}

// TracerProvider returns the SDK provider, or a noop one.
func (p *Providers) TracerProvider() trace.TracerProvider {
	if p == nil || p.tp == nil {
		return tracenoop.NewTracerProvider()
	}
	return p.tp
}

// Tracer is shorthand for TracerProvider().Tracer(name).
func (p *Providers) Tracer(name string) trace.Tracer {
	return p.TracerProvider().Tracer(name)
}

// MeterProvider returns the SDK provider, or a noop one.
func (p *Providers) MeterProvider() metric.MeterProvider {
	if p == nil || p.mp == nil {
		return metricnoop.NewMeterProvider()
	}
	return p.mp
}

func (p *Providers) Meter(name string) metric.Meter {
	return p.MeterProvider().Meter(name)
}

// PrometheusRegistry returns the registry backing the prometheus exporter,
// or nil when another metrics exporter is configured.
func (p *Providers) PrometheusRegistry() *prometheus.Registry {
	if p == nil {
		return nil
	}
	return p.registry
}

// LogsEnabled reports whether zap records are exported.
func (p *Providers) LogsEnabled() bool { return p != nil && p.lp != nil }

// AttachLogger tees logger into the OTel log bridge. Without a logger
// provider the logger is returned unchanged.
func (p *Providers) AttachLogger(logger *zap.Logger) *zap.Logger {
	if !p.LogsEnabled() {
		return logger
	}
	bridge := otelzap.NewCore(p.name, otelzap.WithLoggerProvider(p.lp))
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, bridge)
	}))
}

// ForceFlush exports everything buffered so far.
func (p *Providers) ForceFlush(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.tp != nil {
		if err := p.tp.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush tracer provider: %w", err))
		}
	}
	if p.mp != nil {
		if err := p.mp.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush meter provider: %w", err))
		}
	}
	if p.lp != nil {
		if err := p.lp.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush logger provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown flushes pending data and closes exporters.
// Safe to call on noop Providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
	}
	if p.mp != nil {
		if err := p.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
		}
	}
	if p.lp != nil {
		if err := p.lp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown logger provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// buildVersion extracts the module version from Go build info.
// Falls back to "dev" if unavailable.
func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
