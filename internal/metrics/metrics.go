// Package metrics provides lightweight, lock-free counters and gauges
// for tracking runtime statistics of a chat server.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/olekukonko/tablewriter"
)

// Collector tracks runtime metrics for a chat server.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	connectionsActive atomic.Int64
	connectionsTotal  atomic.Int64
	sessionsActive    atomic.Int64
	sessionsTotal     atomic.Int64
	broadcasts        atomic.Int64
	deliveries        atomic.Int64
	deliveriesFailed  atomic.Int64
	bytesIn           atomic.Int64
	bytesOut          atomic.Int64
	errorsTotal       atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Connection metrics ───────────────────────────────────────────────

// ConnectionOpened increments both the active and total counters.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(1)
	c.connectionsTotal.Add(1)
}

// ConnectionClosed decrements the active connection counter.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(-1)
}

// ActiveConnections returns the current number of open connections,
// including those still in the name handshake.
func (c *Collector) ActiveConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsActive.Load()
}

// TotalConnections returns the lifetime connection count.
func (c *Collector) TotalConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsTotal.Load()
}

// ── Session metrics ──────────────────────────────────────────────────

// SessionJoined records a session that completed the name handshake.
func (c *Collector) SessionJoined() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(1)
	c.sessionsTotal.Add(1)
}

// SessionLeft records a session leaving the registry.
func (c *Collector) SessionLeft() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(-1)
}

// ActiveSessions returns the number of sessions past the handshake.
func (c *Collector) ActiveSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsActive.Load()
}

// TotalSessions returns the lifetime count of completed handshakes.
func (c *Collector) TotalSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsTotal.Load()
}

// ── Broadcast metrics ────────────────────────────────────────────────

// Broadcast records one broadcast fan-out with its delivery outcome.
func (c *Collector) Broadcast(delivered, failed int) {
	if c == nil {
		return
	}
	c.broadcasts.Add(1)
	c.deliveries.Add(int64(delivered))
	c.deliveriesFailed.Add(int64(failed))
}

// Broadcasts returns the number of broadcast calls.
func (c *Collector) Broadcasts() int64 {
	if c == nil {
		return 0
	}
	return c.broadcasts.Load()
}

// Deliveries returns the number of lines successfully written to peers.
func (c *Collector) Deliveries() int64 {
	if c == nil {
		return 0
	}
	return c.deliveries.Load()
}

// FailedDeliveries returns the number of lines that could not be written.
func (c *Collector) FailedDeliveries() int64 {
	if c == nil {
		return 0
	}
	return c.deliveriesFailed.Load()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// BytesReceived records n bytes read from the network.
func (c *Collector) BytesReceived(n int64) {
	if c == nil {
		return
	}
	c.bytesIn.Add(n)
}

// BytesSent records n bytes written to the network.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent.
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
	Uptime            string `json:"uptime"`
	ConnectionsActive int64  `json:"connections_active"`
	ConnectionsTotal  int64  `json:"connections_total"`
	SessionsActive    int64  `json:"sessions_active"`
	SessionsTotal     int64  `json:"sessions_total"`
	Broadcasts        int64  `json:"broadcasts"`
	Deliveries        int64  `json:"deliveries"`
	DeliveriesFailed  int64  `json:"deliveries_failed"`
	BytesIn           int64  `json:"bytes_in"`
	BytesOut          int64  `json:"bytes_out"`
	ErrorsTotal       int64  `json:"errors_total"`
	LastError         string `json:"last_error,omitempty"`
	LastErrorMessage  string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:            time.Since(c.startTime).Truncate(time.Second).String(),
		ConnectionsActive: c.connectionsActive.Load(),
		ConnectionsTotal:  c.connectionsTotal.Load(),
		SessionsActive:    c.sessionsActive.Load(),
		SessionsTotal:     c.sessionsTotal.Load(),
		Broadcasts:        c.broadcasts.Load(),
		Deliveries:        c.deliveries.Load(),
		DeliveriesFailed:  c.deliveriesFailed.Load(),
		BytesIn:           c.bytesIn.Load(),
		BytesOut:          c.bytesOut.Load(),
		ErrorsTotal:       c.errorsTotal.Load(),
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

// WriteTable renders the snapshot as a two-column table on w.
func (c *Collector) WriteTable(w io.Writer) {
	s := c.Snapshot()

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("\t")

	rows := [][]string{
		{"uptime", s.Uptime},
		{"connections_active", fmt.Sprint(s.ConnectionsActive)},
		{"connections_total", fmt.Sprint(s.ConnectionsTotal)},
		{"sessions_active", fmt.Sprint(s.SessionsActive)},
		{"sessions_total", fmt.Sprint(s.SessionsTotal)},
		{"broadcasts", fmt.Sprint(s.Broadcasts)},
		{"deliveries", fmt.Sprint(s.Deliveries)},
		{"deliveries_failed", fmt.Sprint(s.DeliveriesFailed)},
		{"bytes_in", fmt.Sprint(s.BytesIn)},
		{"bytes_out", fmt.Sprint(s.BytesOut)},
		{"errors_total", fmt.Sprint(s.ErrorsTotal)},
	}
	if s.LastErrorMessage != "" {
		rows = append(rows, []string{"last_error", s.LastErrorMessage})
	}
	table.AppendBulk(rows)
	table.Render()
}
