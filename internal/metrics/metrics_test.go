package metrics

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestCollector_Connections(t *testing.T) {
	c := New()

	c.ConnectionOpened()
	c.ConnectionOpened()
	if c.ActiveConnections() != 2 {
		t.Errorf("active = %d, want 2", c.ActiveConnections())
	}

	c.ConnectionClosed()
	if c.ActiveConnections() != 1 {
		t.Errorf("active = %d, want 1", c.ActiveConnections())
	}
	if c.TotalConnections() != 2 {
		t.Errorf("total should remain 2, got %d", c.TotalConnections())
	}
}

func TestCollector_Sessions(t *testing.T) {
	c := New()

	c.SessionJoined()
	c.SessionJoined()
	c.SessionJoined()
	c.SessionLeft()

	if c.ActiveSessions() != 2 {
		t.Errorf("active sessions = %d, want 2", c.ActiveSessions())
	}
	if c.TotalSessions() != 3 {
		t.Errorf("total sessions = %d, want 3", c.TotalSessions())
	}
}

func TestCollector_Broadcasts(t *testing.T) {
	c := New()

	c.Broadcast(3, 0)
	c.Broadcast(2, 1)
	c.Broadcast(0, 0) // lone session: nobody to deliver to

	if c.Broadcasts() != 3 {
		t.Errorf("broadcasts = %d, want 3", c.Broadcasts())
	}
	if c.Deliveries() != 5 {
		t.Errorf("deliveries = %d, want 5", c.Deliveries())
	}
	if c.FailedDeliveries() != 1 {
		t.Errorf("failed = %d, want 1", c.FailedDeliveries())
	}
}

func TestCollector_Bytes(t *testing.T) {
	c := New()

	c.BytesReceived(17)
	c.BytesSent(30)
	c.BytesReceived(6)

	if c.TotalBytesIn() != 23 {
		t.Errorf("bytes in = %d, want 23", c.TotalBytesIn())
	}
	if c.TotalBytesOut() != 30 {
		t.Errorf("bytes out = %d, want 30", c.TotalBytesOut())
	}
}

func TestCollector_Errors(t *testing.T) {
	c := New()

	c.RecordError("first error")
	c.RecordError("second error")

	if c.ErrorCount() != 2 {
		t.Errorf("errors = %d, want 2", c.ErrorCount())
	}
	if got := c.Snapshot().LastErrorMessage; got != "second error" {
		t.Errorf("last error = %q", got)
	}
}

func TestCollector_JSON(t *testing.T) {
	c := New()
	c.SessionJoined()
	c.Broadcast(4, 0)

	raw := c.JSON()
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("JSON parse error: %v", err)
	}
	if snap.SessionsActive != 1 {
		t.Errorf("JSON sessions active = %d", snap.SessionsActive)
	}
	if snap.Deliveries != 4 {
		t.Errorf("JSON deliveries = %d", snap.Deliveries)
	}
	if strings.Contains(raw, "last_error") {
		t.Error("last_error should be omitted when no error was recorded")
	}
}

func TestCollector_WriteTable(t *testing.T) {
	c := New()
	c.SessionJoined()
	c.Broadcast(2, 1)
	c.RecordError("write: broken pipe")

	var buf bytes.Buffer
	c.WriteTable(&buf)
	out := buf.String()

	for _, want := range []string{"Metric", "sessions_active", "deliveries_failed", "broken pipe"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestNilCollector_NoOps(t *testing.T) {
	var c *Collector

	// None of these should panic.
	c.ConnectionOpened()
	c.ConnectionClosed()
	c.SessionJoined()
	c.SessionLeft()
	c.Broadcast(1, 1)
	c.BytesReceived(100)
	c.BytesSent(100)
	c.RecordError("test")

	if c.ActiveSessions() != 0 || c.Deliveries() != 0 || c.ErrorCount() != 0 {
		t.Error("nil collector should return 0")
	}
	if snap := c.Snapshot(); snap.SessionsActive != 0 {
		t.Error("nil snapshot should be zero")
	}
	if c.JSON() == "" {
		t.Error("nil JSON should return valid JSON")
	}

	var buf bytes.Buffer
	c.WriteTable(&buf)
	if buf.Len() == 0 {
		t.Error("nil collector should still render a table")
	}
}
