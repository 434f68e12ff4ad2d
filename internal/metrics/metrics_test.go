package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRelayCounters(t *testing.T) {
	m := NewRelay(prometheus.NewRegistry())

	m.SessionStarted()
	m.SessionStarted()
	m.SessionEnded()
	m.Frame(FrameDropped)
	m.Frame(FrameDropped)
	m.Frame(FrameForwarded)
	m.UpstreamEvent("session.updated")
	m.UpstreamError()
	m.MalformedMessage()

	if got := testutil.ToFloat64(m.SessionsActive); got != 1 {
		t.Errorf("sessions active = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SessionsTotal); got != 2 {
		t.Errorf("sessions total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.AudioFrames.WithLabelValues(FrameDropped)); got != 2 {
		t.Errorf("dropped frames = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.AudioFrames.WithLabelValues(FrameForwarded)); got != 1 {
		t.Errorf("forwarded frames = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.UpstreamEvents.WithLabelValues("session.updated")); got != 1 {
		t.Errorf("session.updated events = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.UpstreamErrors); got != 1 {
		t.Errorf("upstream errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Malformed); got != 1 {
		t.Errorf("malformed = %v, want 1", got)
	}
}

func TestNilRelayIsNoop(t *testing.T) {
	var m *Relay
	m.SessionStarted()
	m.SessionEnded()
	m.Frame(FrameForwarded)
	m.UpstreamEvent("x")
	m.UpstreamError()
	m.MalformedMessage()
}
