package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/lukasbauer/livetranslate/internal/eventlog"
	"github.com/lukasbauer/livetranslate/internal/metrics"
	"github.com/lukasbauer/livetranslate/internal/realtime"
	"github.com/lukasbauer/livetranslate/internal/relay"
	"github.com/lukasbauer/livetranslate/internal/wire"
)

const (
	defaultPingInterval = 25 * time.Second
	defaultPongWait     = 60 * time.Second
	clientWriteTimeout  = 10 * time.Second
	maxClientMessage    = 1 << 20
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientConn serializes writes to the capture client socket.
type clientConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *clientConn) Send(env wire.Envelope) error {
	data, err := wire.Encode(env)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(clientWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *clientConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(clientWriteTimeout))
}

type dialResult struct {
	up  realtime.Session
	err error
}

// clientSession runs one capture client connection. All relay state is owned
// by the run goroutine.
type clientSession struct {
	id       string
	client   *clientConn
	session  *relay.Session
	dialer   realtime.Dialer
	logger   logrus.FieldLogger
	metrics  *metrics.Relay
	eventLog *eventlog.Logger

	pingInterval time.Duration
	pongWait     time.Duration
	started      time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func (r *Router) handleRelayWS(w http.ResponseWriter, req *http.Request) {
	if r.cfg.Dialer == nil {
		r.logger.Error("relay_ws: upstream provider not configured")
		captureError(req, errors.New("relay not configured: missing upstream dialer"), "relay_ws: configuration error")
		http.Error(w, "relay not configured", http.StatusServiceUnavailable)
		return
	}

	if !r.sessions.Add() {
		r.logger.Info("relay_ws: rejecting client, draining")
		http.Error(w, "draining", http.StatusServiceUnavailable)
		return
	}
	defer r.sessions.Done()

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.WithError(err).Warn("relay_ws: upgrade failed")
		return
	}

	id := uuid.NewString()
	logger := r.logger.WithField("session_id", id)
	client := &clientConn{conn: conn}

	ctx, cancel := context.WithCancel(r.cfg.BaseContext)

	cs := &clientSession{
		id:     id,
		client: client,
		session: relay.NewSession(client, relay.Options{
			ID:      id,
			Config:  r.cfg.Session,
			Logger:  r.logger,
			Metrics: r.metrics,
			Events:  r.eventLog,
		}),
		dialer:       r.cfg.Dialer,
		logger:       logger,
		metrics:      r.metrics,
		eventLog:     r.eventLog,
		pingInterval: r.cfg.PingInterval,
		pongWait:     r.cfg.PongWait,
		started:      time.Now(),
		ctx:          ctx,
		cancel:       cancel,
	}

	r.metrics.SessionStarted()
	r.eventLog.Log(id, eventlog.EventSessionStarted, map[string]any{
		"remote_addr": req.RemoteAddr,
	})
	logger.Info("relay_ws: client connected")

	cs.run()
}

func (s *clientSession) run() {
	defer s.cleanup()

	dialed := make(chan dialResult)
	go s.dialUpstream(dialed)

	inbound := make(chan wire.Envelope)
	readErr := make(chan error, 1)
	go s.readClient(inbound, readErr)

	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	var (
		upMessages <-chan []byte
		upErrors   <-chan error
	)

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info("relay_ws: session cancelled")
			return

		case res := <-dialed:
			dialed = nil
			if res.err != nil {
				s.logger.WithError(res.err).Error("relay_ws: upstream dial failed")
				s.eventLog.Log(s.id, eventlog.EventUpstreamDialFailed, map[string]any{
					"error": res.err.Error(),
				})
				return
			}
			s.eventLog.Log(s.id, eventlog.EventUpstreamConnected, nil)
			if err := s.session.Open(res.up); err != nil {
				s.logger.WithError(err).Error("relay_ws: failed to configure upstream")
				return
			}
			upMessages = res.up.Messages()
			upErrors = res.up.Errors()

		case msg, ok := <-upMessages:
			if !ok {
				s.logger.Info("relay_ws: upstream closed")
				s.eventLog.Log(s.id, eventlog.EventUpstreamClosed, nil)
				return
			}
			if err := s.session.HandleUpstreamMessage(msg); err != nil {
				s.logger.WithError(err).Warn("relay_ws: client write failed")
				return
			}

		case err, ok := <-upErrors:
			if !ok {
				upErrors = nil
				continue
			}
			// Deliver what the provider sent before the failure.
			if !s.flushUpstream(upMessages) {
				return
			}
			s.logger.WithError(err).Info("relay_ws: upstream connection ended")
			s.eventLog.Log(s.id, eventlog.EventUpstreamClosed, map[string]any{
				"error": err.Error(),
			})
			return

		case env := <-inbound:
			s.handleClientEvent(env)

		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.logger.Info("relay_ws: client disconnected")
			} else {
				s.logger.WithError(err).Info("relay_ws: client read error")
			}
			return

		case <-ticker.C:
			if err := s.client.ping(); err != nil {
				s.logger.WithError(err).Info("relay_ws: ping failed")
				return
			}
		}
	}
}

func (s *clientSession) handleClientEvent(env wire.Envelope) {
	switch env.Event {
	case wire.EventAudio:
		if _, err := s.session.HandleAudio(env.Text()); err != nil {
			s.logger.WithError(err).Warn("relay_ws: failed to forward audio")
		}
	default:
		s.logger.WithField("event", env.Event).Debug("relay_ws: ignoring client event")
	}
}

// flushUpstream handles messages already buffered by the upstream reader.
// It returns false if the client can no longer be written to.
func (s *clientSession) flushUpstream(messages <-chan []byte) bool {
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return true
			}
			if err := s.session.HandleUpstreamMessage(msg); err != nil {
				return false
			}
		default:
			return true
		}
	}
}

// dialUpstream connects to the provider. If the session ends first, a
// connection that completes late is closed here.
func (s *clientSession) dialUpstream(dialed chan<- dialResult) {
	up, err := s.dialer.Dial(s.ctx)
	select {
	case dialed <- dialResult{up: up, err: err}:
	case <-s.ctx.Done():
		if up != nil {
			_ = up.Close()
			s.logger.Info("relay_ws: closed upstream that connected after client left")
		}
	}
}

func (s *clientSession) readClient(inbound chan<- wire.Envelope, readErr chan<- error) {
	conn := s.client.conn
	conn.SetReadLimit(maxClientMessage)
	_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			readErr <- err
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))

		env, err := wire.Decode(msg)
		if err != nil {
			s.logger.WithError(err).Warn("relay_ws: dropping invalid client message")
			continue
		}

		select {
		case inbound <- env:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *clientSession) cleanup() {
	s.cancel()

	if err := s.session.Close(); err != nil {
		s.logger.WithError(err).Debug("relay_ws: upstream close error")
	}

	s.client.mu.Lock()
	_ = s.client.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.client.mu.Unlock()
	_ = s.client.conn.Close()

	stats := s.session.Stats()
	s.metrics.SessionEnded()
	s.eventLog.Log(s.id, eventlog.EventSessionEnded, map[string]any{
		"frames_forwarded": stats.FramesForwarded,
		"frames_dropped":   stats.FramesDropped,
		"audio_forwarded":  stats.AudioForwarded.String(),
		"duration":         time.Since(s.started).Round(time.Millisecond).String(),
	})
	s.logger.WithField("frames_forwarded", stats.FramesForwarded).Infof(
		"relay_ws: session ended after %s", time.Since(s.started).Round(time.Second))
}
