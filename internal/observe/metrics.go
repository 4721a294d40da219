// Package observe holds the recorder's OpenTelemetry instruments and the
// Prometheus bridge that exposes them on /metrics.
//
// Tests should build Metrics with NewMetrics over their own
// [metric.MeterProvider] so readings do not leak between tests.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all voicememo metrics.
const meterName = "github.com/large-farva/voicememo"

// Metrics holds every instrument the daemon records into. All fields are
// safe for concurrent use.
type Metrics struct {
	// RecordingsSaved counts recordings written to storage.
	RecordingsSaved metric.Int64Counter

	// RecordingBytes counts WAV bytes written to storage.
	RecordingBytes metric.Int64Counter

	// DiscardedSamples counts unrecorded tail samples trimmed away.
	DiscardedSamples metric.Int64Counter

	// AudioDuration tracks the length of saved and loaded clips. Use with
	// attribute.String("kind", "record"|"load").
	AudioDuration metric.Float64Histogram

	// EncodeDuration tracks WAV encode latency.
	EncodeDuration metric.Float64Histogram

	// Loads counts successful loads.
	Loads metric.Int64Counter

	// Failures counts failed session operations. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("op", ...)
	Failures metric.Int64Counter

	// ActiveCaptures is 1 while the device is capturing.
	ActiveCaptures metric.Int64UpDownCounter

	// HTTPRequestDuration tracks API latency. Use with attributes:
	//   attribute.String("method", ...), attribute.String("route", ...)
	HTTPRequestDuration metric.Float64Histogram
}

var (
	audioBuckets   = []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120}
	latencyBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1}
)

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.RecordingsSaved, err = m.Int64Counter("voicememo.recordings.saved",
		metric.WithDescription("Recordings written to storage."),
	); err != nil {
		return nil, err
	}
	if met.RecordingBytes, err = m.Int64Counter("voicememo.recordings.bytes",
		metric.WithDescription("WAV bytes written to storage."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.DiscardedSamples, err = m.Int64Counter("voicememo.trim.discarded_samples",
		metric.WithDescription("Unrecorded tail samples dropped by the trimmer."),
	); err != nil {
		return nil, err
	}
	if met.AudioDuration, err = m.Float64Histogram("voicememo.audio.duration",
		metric.WithDescription("Length of saved and loaded clips."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(audioBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EncodeDuration, err = m.Float64Histogram("voicememo.encode.duration",
		metric.WithDescription("Latency of WAV encoding."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Loads, err = m.Int64Counter("voicememo.loads",
		metric.WithDescription("Recordings loaded and decoded."),
	); err != nil {
		return nil, err
	}
	if met.Failures, err = m.Int64Counter("voicememo.session.failures",
		metric.WithDescription("Failed session operations by kind and op."),
	); err != nil {
		return nil, err
	}
	if met.ActiveCaptures, err = m.Int64UpDownCounter("voicememo.captures.active",
		metric.WithDescription("Captures currently running."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("voicememo.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// CaptureSaved records a successful save.
func (m *Metrics) CaptureSaved(ctx context.Context, audio time.Duration, discarded, bytes int, encode time.Duration) {
	m.RecordingsSaved.Add(ctx, 1)
	m.RecordingBytes.Add(ctx, int64(bytes))
	m.DiscardedSamples.Add(ctx, int64(discarded))
	m.AudioDuration.Record(ctx, audio.Seconds(), metric.WithAttributes(attribute.String("kind", "record")))
	m.EncodeDuration.Record(ctx, encode.Seconds())
}

// LoadDone records a successful load.
func (m *Metrics) LoadDone(ctx context.Context, audio time.Duration) {
	m.Loads.Add(ctx, 1)
	m.AudioDuration.Record(ctx, audio.Seconds(), metric.WithAttributes(attribute.String("kind", "load")))
}

// OpFailed counts a failed operation.
func (m *Metrics) OpFailed(ctx context.Context, kind, op string) {
	m.Failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("op", op),
	))
}
