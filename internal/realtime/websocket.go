package realtime

import (
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const writeTimeout = 10 * time.Second

// WebSocketSession is a Session over a gorilla websocket connection.
type WebSocketSession struct {
	conn      *websocket.Conn
	logger    logrus.FieldLogger
	messages  chan []byte
	errors    chan error
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex // serializes writes
	wg        sync.WaitGroup
}

func newWebSocketSession(conn *websocket.Conn, logger logrus.FieldLogger) *WebSocketSession {
	s := &WebSocketSession{
		conn:     conn,
		logger:   logger,
		messages: make(chan []byte, 100),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.readLoop()
	return s
}

func generateEventID() string {
	return "evt_" + uuid.New().String()[:12]
}

// UpdateSession sends the session configuration.
func (s *WebSocketSession) UpdateSession(cfg SessionConfig) error {
	return s.send(map[string]any{
		"event_id": generateEventID(),
		"type":     EventTypeSessionUpdate,
		"session":  cfg,
	})
}

// AppendAudio forwards base64 audio unchanged.
func (s *WebSocketSession) AppendAudio(audioBase64 string) error {
	return s.send(map[string]any{
		"event_id": generateEventID(),
		"type":     EventTypeInputAudioBufferAppend,
		"audio":    audioBase64,
	})
}

// Messages returns the raw message channel.
func (s *WebSocketSession) Messages() <-chan []byte {
	return s.messages
}

// Errors returns the transport error channel.
func (s *WebSocketSession) Errors() <-chan error {
	return s.errors
}

// Close closes the provider connection and waits for the reader to exit.
func (s *WebSocketSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.mu.Unlock()

		err = s.conn.Close()

		s.wg.Wait()
		close(s.messages)
		close(s.errors)
	})
	return err
}

func (s *WebSocketSession) send(event map[string]any) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("realtime: encode %v: %w", event["type"], err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.logger != nil {
		s.logger.WithField("type", event["type"]).Debug("realtime: sending event")
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop pushes raw provider messages until the connection fails or is closed.
func (s *WebSocketSession) readLoop() {
	defer s.wg.Done()

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			case s.errors <- fmt.Errorf("realtime: read error: %w", err):
			default:
			}
			return
		}

		select {
		case <-s.done:
			return
		case s.messages <- msg:
		}
	}
}

var _ Session = (*WebSocketSession)(nil)
