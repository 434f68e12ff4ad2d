// Package relay bridges one client event stream to one upstream realtime session.
//
// A Session is owned by a single goroutine; none of its methods are safe for
// concurrent use.
package relay

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lukasbauer/livetranslate/internal/audio"
	"github.com/lukasbauer/livetranslate/internal/eventlog"
	"github.com/lukasbauer/livetranslate/internal/metrics"
	"github.com/lukasbauer/livetranslate/internal/realtime"
	"github.com/lukasbauer/livetranslate/internal/wire"
)

// State is the readiness of a session.
type State int

const (
	StateConfiguring State = iota
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConfiguring:
		return "configuring"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrSessionClosed is returned when an upstream is attached to a closed session.
	ErrSessionClosed = errors.New("relay: session closed")

	// ErrUpstreamAttached is returned by Open when an upstream is already attached.
	ErrUpstreamAttached = errors.New("relay: upstream already attached")
)

// Upstream is the part of a realtime session the relay writes to.
type Upstream interface {
	UpdateSession(cfg realtime.SessionConfig) error
	AppendAudio(audioBase64 string) error
	Close() error
}

// Client receives events destined for the capture client.
type Client interface {
	Send(env wire.Envelope) error
}

// Options configures a Session.
type Options struct {
	ID      string
	Config  realtime.SessionConfig
	Logger  logrus.FieldLogger
	Metrics *metrics.Relay
	Events  *eventlog.Logger
}

// Stats summarizes the audio a session has seen.
type Stats struct {
	FramesForwarded int
	FramesDropped   int
	AudioForwarded  time.Duration
}

// Session is the per-client relay state machine: Configuring -> Ready -> Closed.
type Session struct {
	id      string
	cfg     realtime.SessionConfig
	logger  logrus.FieldLogger
	metrics *metrics.Relay
	events  *eventlog.Logger

	client Client
	up     Upstream
	state  State
	stats  Stats
}

// NewSession creates a session in the Configuring state.
func NewSession(client Client, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Session{
		id:      opts.ID,
		cfg:     opts.Config,
		logger:  logger.WithField("session_id", opts.ID),
		metrics: opts.Metrics,
		events:  opts.Events,
		client:  client,
		state:   StateConfiguring,
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State { return s.state }

// Stats returns frame counters.
func (s *Session) Stats() Stats { return s.stats }

// Open attaches a freshly connected upstream and sends the session
// configuration exactly once. Attaching to a closed session closes up.
func (s *Session) Open(up Upstream) error {
	if s.state == StateClosed {
		_ = up.Close()
		return ErrSessionClosed
	}
	if s.up != nil {
		return ErrUpstreamAttached
	}
	s.up = up

	if err := up.UpdateSession(s.cfg); err != nil {
		return fmt.Errorf("relay: send session config: %w", err)
	}
	s.events.Log(s.id, eventlog.EventSessionConfigured, map[string]any{
		"input_audio_format": s.cfg.InputAudioFormat,
	})
	return nil
}

// HandleUpstreamMessage interprets one raw provider message. Malformed and
// unknown messages are dropped. The returned error is a client write failure.
func (s *Session) HandleUpstreamMessage(raw []byte) error {
	if s.state == StateClosed {
		return nil
	}

	ev, err := realtime.ParseEvent(raw)
	if err != nil {
		s.metrics.MalformedMessage()
		s.logger.WithError(err).Warn("relay: dropping malformed upstream message")
		s.events.Log(s.id, eventlog.EventMalformedMessage, map[string]any{
			"error": err.Error(),
			"size":  len(raw),
		})
		return nil
	}
	s.metrics.UpstreamEvent(ev.Type)

	switch ev.Type {
	case realtime.EventTypeSessionUpdated:
		if s.state != StateConfiguring {
			return nil
		}
		s.state = StateReady
		s.logger.Info("relay: upstream session ready")
		s.events.Log(s.id, eventlog.EventSessionReady, nil)
		return s.client.Send(wire.Ready())

	case realtime.EventTypeResponseTextDelta:
		if ev.Delta == "" {
			return nil
		}
		return s.client.Send(wire.Delta(ev.Delta))

	case realtime.EventTypeResponseTextDone:
		s.events.Log(s.id, eventlog.EventTextDone, map[string]any{
			"response_id": ev.ResponseID,
			"length":      len(ev.Text),
		})
		return s.client.Send(wire.Done(ev.Text))

	case realtime.EventTypeError:
		s.metrics.UpstreamError()
		data := map[string]any{}
		logger := s.logger
		if ev.Error != nil {
			data["type"] = ev.Error.Type
			data["code"] = ev.Error.Code
			data["message"] = ev.Error.Message
			logger = logger.WithError(ev.Error)
		}
		logger.Error("relay: upstream error event")
		s.events.Log(s.id, eventlog.EventUpstreamError, data)
		return nil

	default:
		s.logger.WithField("type", ev.Type).Debug("relay: ignoring upstream event")
		return nil
	}
}

// HandleAudio forwards a client audio frame when the session is Ready and
// drops it otherwise. It reports whether the frame was forwarded.
func (s *Session) HandleAudio(payload string) (bool, error) {
	if s.state != StateReady || s.up == nil {
		s.stats.FramesDropped++
		s.metrics.Frame(metrics.FrameDropped)
		s.events.Log(s.id, eventlog.EventAudioDropped, map[string]any{
			"state": s.state.String(),
		})
		return false, nil
	}

	if err := s.up.AppendAudio(payload); err != nil {
		return false, fmt.Errorf("relay: append audio: %w", err)
	}
	s.stats.FramesForwarded++
	s.stats.AudioForwarded += audio.Base64Duration(payload, audio.SampleRate)
	s.metrics.Frame(metrics.FrameForwarded)
	return true, nil
}

// Close moves the session to Closed and closes the upstream if attached.
// Safe to call more than once.
func (s *Session) Close() error {
	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	if s.up == nil {
		return nil
	}
	err := s.up.Close()
	s.up = nil
	return err
}
