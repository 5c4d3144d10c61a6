// Package metrics wires the core's own health signals — playback fill,
// dropped chunks, session-start emissions, bridge error exits — through
// OpenTelemetry with a Prometheus exporter. This is ambient observability
// infrastructure: spec.md's Non-goals rule out a general pub/sub bus or
// scheduler, not instrumentation of the core's own components.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Registry holds the instruments every component publishes to. The zero
// value is not usable; construct with New.
type Registry struct {
	provider *sdkmetric.MeterProvider
	meter    metric.Meter

	BufferFillPercent   metric.Float64Gauge
	DroppedAudioChunks  metric.Int64Counter
	DroppedLogEntries   metric.Int64Counter
	SessionStartEmitted metric.Int64Counter
	BridgeRestarts      metric.Int64Counter
}

// New creates a Registry backed by an in-process Prometheus exporter. The
// caller is responsible for serving the exporter's registry (e.g. via
// promhttp) and for calling Shutdown on exit.
func New() (*Registry, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("mofa-core")

	r := &Registry{provider: provider, meter: meter}

	r.BufferFillPercent, err = meter.Float64Gauge(
		"mofa_playback_buffer_fill_percent",
		metric.WithDescription("Fill percentage of the playback circular buffer"),
	)
	if err != nil {
		return nil, err
	}
	r.DroppedAudioChunks, err = meter.Int64Counter(
		"mofa_audio_chunks_dropped_total",
		metric.WithDescription("Audio chunks dropped due to stale question id or full queue"),
	)
	if err != nil {
		return nil, err
	}
	r.DroppedLogEntries, err = meter.Int64Counter(
		"mofa_log_entries_dropped_total",
		metric.WithDescription("Log entries evicted from the bounded log ring"),
	)
	if err != nil {
		return nil, err
	}
	r.SessionStartEmitted, err = meter.Int64Counter(
		"mofa_session_start_emitted_total",
		metric.WithDescription("session_start signals emitted by the audio player bridge"),
	)
	if err != nil {
		return nil, err
	}
	r.BridgeRestarts, err = meter.Int64Counter(
		"mofa_bridge_restarts_total",
		metric.WithDescription("Per-node worker bridges that exited with an error; bridges are not restarted"),
	)
	if err != nil {
		return nil, err
	}

	return r, nil
}

// SetBufferFillPercent records the playback buffer's current fill. Cheap
// enough to call from the real-time output callback — the OTel SDK's gauge
// recording is a lock-free store, not an export.
func (r *Registry) SetBufferFillPercent(percent float64) {
	if r == nil {
		return
	}
	r.BufferFillPercent.Record(context.Background(), percent)
}

// IncDroppedAudioChunks records a dropped audio chunk: a stale question id
// rejected by the audio player bridge (spec.md §4.5.1), or a mic bridge event
// dropped on a full output queue. Playback buffer overwrites are not counted.
func (r *Registry) IncDroppedAudioChunks(n int64) {
	if r == nil {
		return
	}
	r.DroppedAudioChunks.Add(context.Background(), n)
}

// IncDroppedLogEntries records log entries evicted from the bounded ring.
func (r *Registry) IncDroppedLogEntries(n int64) {
	if r == nil {
		return
	}
	r.DroppedLogEntries.Add(context.Background(), n)
}

// IncSessionStartEmitted records a session_start signal emission.
func (r *Registry) IncSessionStartEmitted() {
	if r == nil {
		return
	}
	r.SessionStartEmitted.Add(context.Background(), 1)
}

// IncBridgeRestarts records a per-node worker bridge whose Run returned an
// error before shutdown. The dispatcher does not restart such a bridge.
func (r *Registry) IncBridgeRestarts() {
	if r == nil {
		return
	}
	r.BridgeRestarts.Add(context.Background(), 1)
}

// Shutdown flushes and releases the underlying meter provider.
func (r *Registry) Shutdown(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Shutdown(ctx)
}

// Noop returns a Registry whose instruments are wired to a provider that
// never exports anything — useful for tests and for callers that don't want
// to stand up a Prometheus endpoint.
func Noop() *Registry {
	provider := sdkmetric.NewMeterProvider()
	meter := provider.Meter("mofa-core-noop")
	r := &Registry{provider: provider, meter: meter}
	r.BufferFillPercent, _ = meter.Float64Gauge("mofa_playback_buffer_fill_percent")
	r.DroppedAudioChunks, _ = meter.Int64Counter("mofa_audio_chunks_dropped_total")
	r.DroppedLogEntries, _ = meter.Int64Counter("mofa_log_entries_dropped_total")
	r.SessionStartEmitted, _ = meter.Int64Counter("mofa_session_start_emitted_total")
	r.BridgeRestarts, _ = meter.Int64Counter("mofa_bridge_restarts_total")
	return r
}
