package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	webhookEvents   metric.Int64Counter
	reconcileErrors metric.Int64Counter
	gatewayCommands metric.Int64Counter
	rateLimitDenied metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "lemonsync"
	}
	meter := provider.Meter(name)

	webhookEvents, err := meter.Int64Counter("lemonsync_webhook_events_total")
	if err != nil {
		return nil, err
	}
	reconcileErrors, err := meter.Int64Counter("lemonsync_reconcile_errors_total")
	if err != nil {
		return nil, err
	}
	gatewayCommands, err := meter.Int64Counter("lemonsync_gateway_commands_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("lemonsync_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		webhookEvents:   webhookEvents,
		reconcileErrors: reconcileErrors,
		gatewayCommands: gatewayCommands,
		rateLimitDenied: rateLimitDenied,
	}, nil
}

// RecordWebhookEvent increments stored webhook event counts.
func (m *Metrics) RecordWebhookEvent(ctx context.Context, eventKind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("event_kind", strings.TrimSpace(eventKind)))
	m.webhookEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReconcileError increments reconciliation failure counts.
func (m *Metrics) RecordReconcileError(ctx context.Context, eventKind, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("event_kind", strings.TrimSpace(eventKind)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.reconcileErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordGatewayCommand increments outbound provider command counts.
func (m *Metrics) RecordGatewayCommand(ctx context.Context, command, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("command", strings.TrimSpace(command)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.gatewayCommands.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"endpoint":    {},
	"status_code": {},
	"event_kind":  {},
	"command":     {},
	"outcome":     {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
