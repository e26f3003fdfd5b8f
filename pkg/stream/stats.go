// ABOUTME: Pipeline counters shared by the pumps
// ABOUTME: Lock-free, read as a Stats snapshot
package stream

import "sync/atomic"

// Stats is a point-in-time copy of the pipeline counters.
type Stats struct {
	FramesCaptured   int64 `json:"frames_captured"`
	FramesSent       int64 `json:"frames_sent"`
	BytesSent        int64 `json:"bytes_sent"`
	DrainBytes       int64 `json:"drain_bytes"`
	BytesReceived    int64 `json:"bytes_received"`
	PayloadsReceived int64 `json:"payloads_received"`
}

type counters struct {
	framesCaptured   atomic.Int64
	framesSent       atomic.Int64
	bytesSent        atomic.Int64
	drainBytes       atomic.Int64
	bytesReceived    atomic.Int64
	payloadsReceived atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		FramesCaptured:   c.framesCaptured.Load(),
		FramesSent:       c.framesSent.Load(),
		BytesSent:        c.bytesSent.Load(),
		DrainBytes:       c.drainBytes.Load(),
		BytesReceived:    c.bytesReceived.Load(),
		PayloadsReceived: c.payloadsReceived.Load(),
	}
}
