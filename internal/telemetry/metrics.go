package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	GraphAPICalls       metric.Int64Counter
	PublishCounter      metric.Int64Counter
	PublishDuration     metric.Float64Histogram
	WebhookEvents       metric.Int64Counter
	SyncDuration        metric.Float64Histogram
	CircuitBreakerState metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("social-integration-backend")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	graphAPICalls, err := meter.Int64Counter(
		"graph_api.calls.total",
		metric.WithDescription("Total Graph API calls"),
	)
	if err != nil {
		return nil, err
	}

	publishCounter, err := meter.Int64Counter(
		"publish.total",
		metric.WithDescription("Total content publish attempts"),
	)
	if err != nil {
		return nil, err
	}

	publishDuration, err := meter.Float64Histogram(
		"publish.duration",
		metric.WithDescription("Content publish duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	webhookEvents, err := meter.Int64Counter(
		"webhook.events.total",
		metric.WithDescription("Total webhook changes processed"),
	)
	if err != nil {
		return nil, err
	}

	syncDuration, err := meter.Float64Histogram(
		"sync.duration",
		metric.WithDescription("Account sync duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		GraphAPICalls:       graphAPICalls,
		PublishCounter:      publishCounter,
		PublishDuration:     publishDuration,
		WebhookEvents:       webhookEvents,
		SyncDuration:        syncDuration,
		CircuitBreakerState: circuitBreakerState,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordGraphAPICall records one upstream platform call
func (m *Metrics) RecordGraphAPICall(endpoint string, status int) {
	attrs := []attribute.KeyValue{
		attribute.String("graph_api.endpoint", endpoint),
		attribute.Int("graph_api.status", status),
	}

	m.GraphAPICalls.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordPublish records a content publish attempt
func (m *Metrics) RecordPublish(mediaType string, success bool, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("publish.media_type", mediaType),
		attribute.Bool("publish.success", success),
	}

	m.PublishCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.PublishDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordWebhookEvent records one processed webhook change
func (m *Metrics) RecordWebhookEvent(object, field string) {
	attrs := []attribute.KeyValue{
		attribute.String("webhook.object", object),
		attribute.String("webhook.field", field),
	}

	m.WebhookEvents.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordSync records one account sync pass
func (m *Metrics) RecordSync(apiType string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("sync.api_type", apiType),
	}

	m.SyncDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	attrs := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("state", state),
	}

	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
