package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Frame results.
const (
	FrameForwarded = "forwarded"
	FrameDropped   = "dropped"
)

// Relay holds the relay's collectors. A nil *Relay is a no-op.
type Relay struct {
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter
	AudioFrames    *prometheus.CounterVec
	UpstreamEvents *prometheus.CounterVec
	UpstreamErrors prometheus.Counter
	Malformed      prometheus.Counter
}

// NewRelay creates the collectors and registers them with reg.
func NewRelay(reg prometheus.Registerer) *Relay {
	m := &Relay{
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_sessions_active",
			Help: "Client sessions currently connected.",
		}),
		SessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_sessions_total",
			Help: "Client sessions accepted since start.",
		}),
		AudioFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_audio_frames_total",
			Help: "Client audio frames by outcome.",
		}, []string{"result"}),
		UpstreamEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_upstream_events_total",
			Help: "Upstream events received, by type.",
		}, []string{"type"}),
		UpstreamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_upstream_errors_total",
			Help: "Upstream error events received.",
		}),
		Malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_upstream_malformed_total",
			Help: "Upstream messages dropped because they could not be parsed.",
		}),
	}
	reg.MustRegister(
		m.SessionsActive,
		m.SessionsTotal,
		m.AudioFrames,
		m.UpstreamEvents,
		m.UpstreamErrors,
		m.Malformed,
	)
	return m
}

func (m *Relay) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
	m.SessionsTotal.Inc()
}

func (m *Relay) SessionEnded() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
}

func (m *Relay) Frame(result string) {
	if m == nil {
		return
	}
	m.AudioFrames.WithLabelValues(result).Inc()
}

func (m *Relay) UpstreamEvent(eventType string) {
	if m == nil {
		return
	}
	m.UpstreamEvents.WithLabelValues(eventType).Inc()
}

func (m *Relay) UpstreamError() {
	if m == nil {
		return
	}
	m.UpstreamErrors.Inc()
}

func (m *Relay) MalformedMessage() {
	if m == nil {
		return
	}
	m.Malformed.Inc()
}
