package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/lukasbauer/livetranslate/internal/wire"
)

const transportWriteTimeout = 10 * time.Second

// ErrTransportClosed is returned when sending on a closed transport.
var ErrTransportClosed = errors.New("capture: transport closed")

// Handlers receive relay events on the transport's read goroutine.
type Handlers struct {
	OnReady func()
	OnDelta func(text string)
	OnDone  func(text string)

	// OnClose is called once when the connection ends. err is nil when the
	// transport was closed locally.
	OnClose func(err error)
}

// Transport is the client side of the relay event stream.
type Transport struct {
	conn     *websocket.Conn
	handlers Handlers
	logger   logrus.FieldLogger

	mu        sync.Mutex // serializes writes
	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to the relay at url and starts dispatching events.
func Dial(ctx context.Context, url string, h Handlers, logger logrus.FieldLogger) (*Transport, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("capture: failed to connect to relay (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("capture: failed to connect to relay: %w", err)
	}

	t := &Transport{
		conn:     conn,
		handlers: h,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

// SendAudio emits one base64 pcm16 frame.
func (t *Transport) SendAudio(frame string) error {
	select {
	case <-t.done:
		return ErrTransportClosed
	default:
	}

	data, err := wire.Encode(wire.Audio(frame))
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(transportWriteTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// Close disconnects from the relay. Safe to call more than once and from
// handlers.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)

		t.mu.Lock()
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		t.mu.Unlock()

		err = t.conn.Close()
	})
	return err
}

func (t *Transport) readLoop() {
	for {
		_, msg, err := t.conn.ReadMessage()
		if err != nil {
			select {
			case <-t.done:
				err = nil
			default:
			}
			if t.handlers.OnClose != nil {
				t.handlers.OnClose(err)
			}
			return
		}

		env, err := wire.Decode(msg)
		if err != nil {
			t.logger.WithError(err).Warn("capture: dropping invalid relay message")
			continue
		}
		t.dispatch(env)
	}
}

func (t *Transport) dispatch(env wire.Envelope) {
	switch env.Event {
	case wire.EventReady:
		if t.handlers.OnReady != nil {
			t.handlers.OnReady()
		}
	case wire.EventDelta:
		if t.handlers.OnDelta != nil {
			t.handlers.OnDelta(env.Text())
		}
	case wire.EventDone:
		if t.handlers.OnDone != nil {
			t.handlers.OnDone(env.Text())
		}
	default:
		t.logger.WithField("event", env.Event).Debug("capture: ignoring relay event")
	}
}
