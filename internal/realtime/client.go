package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultWebSocketURL is the provider's realtime endpoint.
	DefaultWebSocketURL = "wss://api.openai.com/v1/realtime"

	// DefaultModel is the model requested when Config.Model is empty.
	DefaultModel = "gpt-4o-mini-realtime-preview"

	// BetaHeaderValue is the protocol-version header sent on every connection.
	BetaHeaderValue = "realtime=v1"
)

// Session is one upstream realtime connection.
type Session interface {
	// UpdateSession sends a session.update event.
	UpdateSession(cfg SessionConfig) error

	// AppendAudio sends base64 PCM16 audio as an input_audio_buffer.append event.
	AppendAudio(audioBase64 string) error

	// Messages returns raw provider messages in arrival order.
	// The channel is closed when the session is closed.
	Messages() <-chan []byte

	// Errors returns transport errors. A transport error ends the session.
	Errors() <-chan error

	// Close closes the connection. Safe to call more than once.
	Close() error
}

// Dialer opens upstream sessions.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// Config holds configuration for the realtime client.
type Config struct {
	APIKey           string
	URL              string // defaults to DefaultWebSocketURL
	Model            string // defaults to DefaultModel
	HandshakeTimeout time.Duration
	Logger           logrus.FieldLogger
}

// Client dials realtime sessions with a static bearer credential.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer
}

// NewClient creates a realtime client. Missing fields fall back to defaults.
func NewClient(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultWebSocketURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
}

// Endpoint returns the dial URL including the model query parameter.
func (c *Client) Endpoint() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("realtime: invalid url %q: %w", c.cfg.URL, err)
	}
	q := u.Query()
	q.Set("model", c.cfg.Model)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Dial connects to the provider. The returned session is already reading.
func (c *Client) Dial(ctx context.Context) (Session, error) {
	endpoint, err := c.Endpoint()
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.cfg.APIKey)
	headers.Set("OpenAI-Beta", BetaHeaderValue)

	conn, resp, err := c.dialer.DialContext(ctx, endpoint, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("realtime: failed to connect (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("realtime: failed to connect: %w", err)
	}

	return newWebSocketSession(conn, c.cfg.Logger), nil
}

var _ Dialer = (*Client)(nil)
