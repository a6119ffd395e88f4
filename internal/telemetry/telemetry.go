package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/theblitlabs/sandbox-provisioner/internal/core/config"
	"github.com/theblitlabs/sandbox-provisioner/pkg/logger"
)

const instrumentationName = "github.com/theblitlabs/sandbox-provisioner"

var (
	Meter metric.Meter = otel.Meter(instrumentationName)

	otelMu         sync.Mutex
	otelProvisions metric.Int64Counter
)

// Tracer returns the tracer used for provisioning spans. It is a noop until
// InitTelemetry installs a provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

func noopShutdown(context.Context) error { return nil }

// InitTelemetry initializes OpenTelemetry with the OTLP exporter. Collector
// problems are logged and telemetry stays disabled.
func InitTelemetry(ctx context.Context, cfg config.TelemetryConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return noopShutdown, nil
	}
	log := logger.WithComponent("telemetry")

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	collectorAddr := fmt.Sprintf("%s:%d", cfg.OTELCollector.Host, cfg.OTELCollector.Port)
	conn, err := grpc.DialContext(dialCtx, collectorAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		log.Warn().Err(err).Str("collector", collectorAddr).Msg("Failed to connect to OpenTelemetry collector, continuing without telemetry")
		return noopShutdown, nil
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create trace exporter, continuing without telemetry")
		_ = conn.Close()
		return noopShutdown, nil
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	metricExporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create metric exporter, continuing without metrics export")
		_ = tracerProvider.Shutdown(ctx)
		_ = conn.Close()
		return noopShutdown, nil
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(
			metricExporter,
			sdkmetric.WithInterval(cfg.Metrics.Interval),
		)),
	)
	otel.SetMeterProvider(meterProvider)

	otelMu.Lock()
	Meter = meterProvider.Meter(cfg.ServiceName)
	otelProvisions = nil
	otelMu.Unlock()

	log.Info().Str("collector", collectorAddr).Msg("OpenTelemetry export enabled")

	return func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()

		var errs []error
		if err := tracerProvider.Shutdown(cctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
		}
		if err := meterProvider.Shutdown(cctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close gRPC connection: %w", err))
		}

		if len(errs) > 0 {
			return fmt.Errorf("shutdown errors: %v", errs)
		}
		return nil
	}, nil
}

func recordProvisionOTel(outcome string) {
	otelMu.Lock()
	defer otelMu.Unlock()

	if otelProvisions == nil {
		counter, err := Meter.Int64Counter("sandbox.provisions",
			metric.WithDescription("Provisioning runs by outcome"))
		if err != nil {
			return
		}
		otelProvisions = counter
	}
	otelProvisions.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
