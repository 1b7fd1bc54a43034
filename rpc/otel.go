package rpc

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/Cogwheel-Validator/spectra-entry-point/config"
)

// OTelConfig configures OpenTelemetry exporters
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	EnableTracing bool
	UseOTLPTraces bool
	OTLPTracesURL string

	EnableMetrics  bool
	UsePrometheus  bool // registers with the default prometheus registry served on /metrics
	UseOTLPMetrics bool
	OTLPMetricsURL string

	EnableLogs  bool
	UseOTLPLogs bool
	OTLPLogsURL string

	// InsecureOTLP sends OTLP over plain HTTP. Local development only.
	InsecureOTLP bool

	// Client TLS material for OTLP backends, all optional
	OTLPClientCertFile string
	OTLPClientKeyFile  string
	OTLPCACertFile     string

	// DevelopmentMode swaps every exporter for its stdout variant
	DevelopmentMode bool
}

func (c *OTelConfig) enabled() bool {
	return c != nil && (c.EnableTracing || c.EnableMetrics || c.EnableLogs)
}

// OTelConfigFrom takes the telemetry keys of the node configuration.
func OTelConfigFrom(cfg *config.Config) *OTelConfig {
	return &OTelConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Environment:    cfg.Environment,
		EnableTracing:  cfg.EnableTracing,
		UseOTLPTraces:  cfg.UseOTLPTraces,
		OTLPTracesURL:  cfg.OTLPTracesURL,
		EnableMetrics:  cfg.EnableMetrics,
		UsePrometheus:  cfg.UsePrometheus,
		UseOTLPMetrics: cfg.UseOTLPMetrics,
		OTLPMetricsURL: cfg.OTLPMetricsURL,
		EnableLogs:     cfg.EnableLogs,
		UseOTLPLogs:    cfg.UseOTLPLogs,
		OTLPLogsURL:    cfg.OTLPLogsURL,
		InsecureOTLP:   cfg.InsecureOTLP,

		DevelopmentMode: cfg.DevelopmentMode,
	}
}

// NewOTelSDK installs the global tracer, meter and logger providers the
// configuration asks for. The returned shutdown flushes and stops them.
func NewOTelSDK(ctx context.Context, cfg *OTelConfig) (func(context.Context) error, error) {
	var shutdownFuncs []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}
	fail := func(err error) (func(context.Context) error, error) {
		return shutdown, errors.Join(err, shutdown(ctx))
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentName(cfg.Environment),
		),
	)
	if err != nil {
		return shutdown, fmt.Errorf("failed to create resource: %w", err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tlsConfig, err := otlpTLSConfig(cfg)
	if err != nil {
		return fail(err)
	}

	if cfg.EnableTracing {
		tp, err := newTracerProvider(ctx, res, cfg, tlsConfig)
		if err != nil {
			return fail(err)
		}
		shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
		otel.SetTracerProvider(tp)
	}
	if cfg.EnableMetrics {
		mp, err := newMeterProvider(ctx, res, cfg, tlsConfig)
		if err != nil {
			return fail(err)
		}
		shutdownFuncs = append(shutdownFuncs, mp.Shutdown)
		otel.SetMeterProvider(mp)
	}
	if cfg.EnableLogs {
		lp, err := newLoggerProvider(ctx, res, cfg, tlsConfig)
		if err != nil {
			return fail(err)
		}
		shutdownFuncs = append(shutdownFuncs, lp.Shutdown)
		global.SetLoggerProvider(lp)
	}
	return shutdown, nil
}

// otlpTLSConfig is nil for insecure OTLP or when no TLS material is set.
func otlpTLSConfig(cfg *OTelConfig) (*tls.Config, error) {
	if cfg.InsecureOTLP || (cfg.OTLPCACertFile == "" && cfg.OTLPClientCertFile == "") {
		return nil, nil
	}
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.OTLPCACertFile != "" {
		pem, err := os.ReadFile(cfg.OTLPCACertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("failed to append CA certificate")
		}
		tlsConfig.RootCAs = pool
	}
	if cfg.OTLPClientCertFile != "" && cfg.OTLPClientKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.OTLPClientCertFile, cfg.OTLPClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

func newTracerProvider(ctx context.Context, res *resource.Resource, cfg *OTelConfig, tlsConfig *tls.Config) (*sdktrace.TracerProvider, error) {
	var exporter sdktrace.SpanExporter
	var err error
	switch {
	case cfg.DevelopmentMode:
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case cfg.UseOTLPTraces:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(cfg.OTLPTracesURL)}
		if cfg.InsecureOTLP {
			opts = append(opts, otlptracehttp.WithInsecure())
		} else if tlsConfig != nil {
			opts = append(opts, otlptracehttp.WithTLSClientConfig(tlsConfig))
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	default:
		return sdktrace.NewTracerProvider(sdktrace.WithResource(res)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	), nil
}

func newMeterProvider(ctx context.Context, res *resource.Resource, cfg *OTelConfig, tlsConfig *tls.Config) (*sdkmetric.MeterProvider, error) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if cfg.UsePrometheus {
		exporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(exporter))
	}

	if cfg.UseOTLPMetrics {
		var exporter sdkmetric.Exporter
		var err error
		interval := 60 * time.Second
		if cfg.DevelopmentMode {
			exporter, err = stdoutmetric.New()
			interval = 10 * time.Second
		} else {
			mopts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpointURL(cfg.OTLPMetricsURL)}
			if cfg.InsecureOTLP {
				mopts = append(mopts, otlpmetrichttp.WithInsecure())
			} else if tlsConfig != nil {
				mopts = append(mopts, otlpmetrichttp.WithTLSClientConfig(tlsConfig))
			}
			exporter, err = otlpmetrichttp.New(ctx, mopts...)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))))
	}

	return sdkmetric.NewMeterProvider(opts...), nil
}

func newLoggerProvider(ctx context.Context, res *resource.Resource, cfg *OTelConfig, tlsConfig *tls.Config) (*sdklog.LoggerProvider, error) {
	var exporter sdklog.Exporter
	var err error
	switch {
	case cfg.DevelopmentMode:
		exporter, err = stdoutlog.New()
	case cfg.UseOTLPLogs:
		opts := []otlploghttp.Option{otlploghttp.WithEndpointURL(cfg.OTLPLogsURL)}
		if cfg.InsecureOTLP {
			opts = append(opts, otlploghttp.WithInsecure())
		} else if tlsConfig != nil {
			opts = append(opts, otlploghttp.WithTLSClientConfig(tlsConfig))
		}
		exporter, err = otlploghttp.New(ctx, opts...)
	default:
		return sdklog.NewLoggerProvider(sdklog.WithResource(res)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create log exporter: %w", err)
	}
	return sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(res),
	), nil
}
