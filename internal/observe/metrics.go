// Package observe exposes stream and server counters through the
// OpenTelemetry Metrics API, with a Prometheus bridge for scraping.
//
// Client counters are observable: they are read from a [Source] (normally a
// stream.Controller) at collection time, so the hot send and receive paths
// never touch OTel. Tests should pass their own [metric.MeterProvider] backed
// by a ManualReader.
package observe

import (
	"context"

	"github.com/Resonate-Protocol/micstream/pkg/stream"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/Resonate-Protocol/micstream"

// Source is what client metrics are read from.
type Source interface {
	ID() string
	Stats() stream.Stats
	State() stream.ConnectionState
}

// ClientMetrics holds the observable instruments of one streaming client.
type ClientMetrics struct {
	FramesCaptured   metric.Int64ObservableCounter
	FramesSent       metric.Int64ObservableCounter
	BytesSent        metric.Int64ObservableCounter
	DrainBytes       metric.Int64ObservableCounter
	BytesReceived    metric.Int64ObservableCounter
	PayloadsReceived metric.Int64ObservableCounter

	// Connection reports 0 unconnected, 1 connected, 2 closed.
	Connection metric.Int64ObservableGauge

	registration metric.Registration
}

// NewClientMetrics registers instruments that report src on every collection.
func NewClientMetrics(mp metric.MeterProvider, src Source) (*ClientMetrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &ClientMetrics{}

	if met.FramesCaptured, err = m.Int64ObservableCounter("micstream.frames.captured",
		metric.WithDescription("Capture reads completed."),
	); err != nil {
		return nil, err
	}
	if met.FramesSent, err = m.Int64ObservableCounter("micstream.frames.sent",
		metric.WithDescription("Frames written to the transport."),
	); err != nil {
		return nil, err
	}
	if met.BytesSent, err = m.Int64ObservableCounter("micstream.bytes.sent",
		metric.WithDescription("PCM bytes written to the transport, including the final flush."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.DrainBytes, err = m.Int64ObservableCounter("micstream.drain.bytes",
		metric.WithDescription("Bytes written by the final flush on shutdown."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.BytesReceived, err = m.Int64ObservableCounter("micstream.bytes.received",
		metric.WithDescription("Bytes received from the server."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.PayloadsReceived, err = m.Int64ObservableCounter("micstream.payloads.received",
		metric.WithDescription("Receive completions forwarded to the consumer."),
	); err != nil {
		return nil, err
	}
	if met.Connection, err = m.Int64ObservableGauge("micstream.connection.state",
		metric.WithDescription("Connection state: 0 unconnected, 1 connected, 2 closed."),
	); err != nil {
		return nil, err
	}

	session := metric.WithAttributes(attribute.String("session", src.ID()))
	met.registration, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := src.Stats()
		o.ObserveInt64(met.FramesCaptured, s.FramesCaptured, session)
		o.ObserveInt64(met.FramesSent, s.FramesSent, session)
		o.ObserveInt64(met.BytesSent, s.BytesSent, session)
		o.ObserveInt64(met.DrainBytes, s.DrainBytes, session)
		o.ObserveInt64(met.BytesReceived, s.BytesReceived, session)
		o.ObserveInt64(met.PayloadsReceived, s.PayloadsReceived, session)
		o.ObserveInt64(met.Connection, int64(src.State()), session)
		return nil
	},
		met.FramesCaptured, met.FramesSent, met.BytesSent, met.DrainBytes,
		met.BytesReceived, met.PayloadsReceived, met.Connection,
	)
	if err != nil {
		return nil, err
	}
	return met, nil
}

// Unregister stops reporting the source.
func (m *ClientMetrics) Unregister() error {
	return m.registration.Unregister()
}

// ServerMetrics holds the companion server's instruments.
type ServerMetrics struct {
	// ActiveSessions counts connected streams. Use with attribute
	// attribute.String("transport", ...).
	ActiveSessions metric.Int64UpDownCounter

	// Sessions counts accepted streams.
	Sessions metric.Int64Counter

	// BytesReceived counts PCM bytes received across sessions.
	BytesReceived metric.Int64Counter

	// RepliesSent counts simulated recognition replies.
	RepliesSent metric.Int64Counter
}

// NewServerMetrics creates the server instruments on mp.
func NewServerMetrics(mp metric.MeterProvider) (*ServerMetrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &ServerMetrics{}

	if met.ActiveSessions, err = m.Int64UpDownCounter("micstream.server.active_sessions",
		metric.WithDescription("Number of connected streams."),
	); err != nil {
		return nil, err
	}
	if met.Sessions, err = m.Int64Counter("micstream.server.sessions",
		metric.WithDescription("Total accepted streams by transport."),
	); err != nil {
		return nil, err
	}
	if met.BytesReceived, err = m.Int64Counter("micstream.server.bytes.received",
		metric.WithDescription("PCM bytes received across all sessions."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.RepliesSent, err = m.Int64Counter("micstream.server.replies",
		metric.WithDescription("Simulated recognition replies sent."),
	); err != nil {
		return nil, err
	}
	return met, nil
}
