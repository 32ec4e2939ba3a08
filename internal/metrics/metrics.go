// Package metrics provides lightweight, lock-free counters for the
// API and the line console.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for one piapi process.
type Collector struct {
	requestsTotal    atomic.Int64
	requestsInFlight atomic.Int64
	mutations        atomic.Int64
	badRequests      atomic.Int64
	noContent        atomic.Int64

	framesIn  atomic.Int64
	framesOut atomic.Int64
	bytesIn   atomic.Int64
	bytesOut  atomic.Int64

	watchers    atomic.Int64
	errorsTotal atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Request metrics ──────────────────────────────────────────────────

// RequestStarted increments the in-flight and total request counters.
func (c *Collector) RequestStarted() {
	if c == nil {
		return
	}
	c.requestsInFlight.Add(1)
	c.requestsTotal.Add(1)
}

// RequestFinished decrements the in-flight counter.
func (c *Collector) RequestFinished() {
	if c == nil {
		return
	}
	c.requestsInFlight.Add(-1)
}

// Mutation records a successful change to the message.
func (c *Collector) Mutation() {
	if c == nil {
		return
	}
	c.mutations.Add(1)
}

// BadRequest records a request rejected with 400.
func (c *Collector) BadRequest() {
	if c == nil {
		return
	}
	c.badRequests.Add(1)
}

// NoContent records a request answered with 204 (missing field).
func (c *Collector) NoContent() {
	if c == nil {
		return
	}
	c.noContent.Add(1)
}

// TotalRequests returns the lifetime request count.
func (c *Collector) TotalRequests() int64 {
	if c == nil {
		return 0
	}
	return c.requestsTotal.Load()
}

// InFlight returns the number of requests being served.
func (c *Collector) InFlight() int64 {
	if c == nil {
		return 0
	}
	return c.requestsInFlight.Load()
}

// Mutations returns the number of successful mutations.
func (c *Collector) Mutations() int64 {
	if c == nil {
		return 0
	}
	return c.mutations.Load()
}

// ── Watch metrics ────────────────────────────────────────────────────

// WatcherJoined increments the live websocket watcher gauge.
func (c *Collector) WatcherJoined() {
	if c == nil {
		return
	}
	c.watchers.Add(1)
}

// WatcherLeft decrements the live websocket watcher gauge.
func (c *Collector) WatcherLeft() {
	if c == nil {
		return
	}
	c.watchers.Add(-1)
}

// Watchers returns the number of connected watchers.
func (c *Collector) Watchers() int64 {
	if c == nil {
		return 0
	}
	return c.watchers.Load()
}

// ── Line metrics ─────────────────────────────────────────────────────

// FrameReceived records one inbound line of n raw bytes.
func (c *Collector) FrameReceived(n int) {
	if c == nil {
		return
	}
	c.framesIn.Add(1)
	c.bytesIn.Add(int64(n))
}

// FrameSent records one outbound line of n raw bytes.
func (c *Collector) FrameSent(n int) {
	if c == nil {
		return
	}
	c.framesOut.Add(1)
	c.bytesOut.Add(int64(n))
}

// FramesIn returns the number of inbound lines.
func (c *Collector) FramesIn() int64 {
	if c == nil {
		return 0
	}
	return c.framesIn.Load()
}

// FramesOut returns the number of outbound lines.
func (c *Collector) FramesOut() int64 {
	if c == nil {
		return 0
	}
	return c.framesOut.Load()
}

// TotalBytesIn returns total bytes received on the channel.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes written to the channel.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	RequestsTotal    int64  `json:"requests_total"`
	RequestsInFlight int64  `json:"requests_in_flight"`
	Mutations        int64  `json:"mutations"`
	BadRequests      int64  `json:"bad_requests"`
	NoContent        int64  `json:"no_content"`
	Watchers         int64  `json:"watchers"`
	FramesIn         int64  `json:"frames_in"`
	FramesOut        int64  `json:"frames_out"`
	BytesIn          int64  `json:"bytes_in"`
	BytesOut         int64  `json:"bytes_out"`
	ErrorsTotal      int64  `json:"errors_total"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:           time.Since(c.startTime).Truncate(time.Second).String(),
		RequestsTotal:    c.requestsTotal.Load(),
		RequestsInFlight: c.requestsInFlight.Load(),
		Mutations:        c.mutations.Load(),
		BadRequests:      c.badRequests.Load(),
		NoContent:        c.noContent.Load(),
		Watchers:         c.watchers.Load(),
		FramesIn:         c.framesIn.Load(),
		FramesOut:        c.framesOut.Load(),
		BytesIn:          c.bytesIn.Load(),
		BytesOut:         c.bytesOut.Load(),
		ErrorsTotal:      c.errorsTotal.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
