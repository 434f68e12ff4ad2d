package realtime

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// Client event types (sent from the relay to the provider).
const (
	EventTypeSessionUpdate          = "session.update"
	EventTypeInputAudioBufferAppend = "input_audio_buffer.append"
)

// Server event types (sent from the provider to the relay).
const (
	EventTypeError             = "error"
	EventTypeSessionCreated    = "session.created"
	EventTypeSessionUpdated    = "session.updated"
	EventTypeResponseCreated   = "response.created"
	EventTypeResponseDone      = "response.done"
	EventTypeResponseTextDelta = "response.text.delta"
	EventTypeResponseTextDone  = "response.text.done"
	EventTypeRateLimitsUpdated = "rate_limits.updated"
)

var (
	// ErrMalformedEvent is returned by ParseEvent for payloads that are not a JSON event object.
	ErrMalformedEvent = errors.New("realtime: malformed event")

	// ErrClosed is returned when sending on a closed session.
	ErrClosed = errors.New("realtime: session closed")
)

// ServerEvent is a provider event. Only the fields the relay reads are decoded;
// Raw keeps the original message.
type ServerEvent struct {
	Type    string `json:"type"`
	EventID string `json:"event_id,omitempty"`

	// Session is set on session.created / session.updated.
	Session *SessionResource `json:"session,omitempty"`

	ResponseID   string `json:"response_id,omitempty"`
	ItemID       string `json:"item_id,omitempty"`
	OutputIndex  int    `json:"output_index,omitempty"`
	ContentIndex int    `json:"content_index,omitempty"`

	// Delta is the incremental text of response.text.delta.
	Delta string `json:"delta,omitempty"`

	// Text is the complete text of response.text.done.
	Text string `json:"text,omitempty"`

	// Error is set on error events.
	Error *EventError `json:"error,omitempty"`

	Raw []byte `json:"-"`
}

// SessionResource is the session object echoed by the provider.
type SessionResource struct {
	ID     string `json:"id,omitempty"`
	Object string `json:"object,omitempty"`
	Model  string `json:"model,omitempty"`
}

// EventError is the payload of an error event.
type EventError struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Param   string `json:"param,omitempty"`
	EventID string `json:"event_id,omitempty"`
}

func (e *EventError) Error() string {
	switch {
	case e.Code != "":
		return fmt.Sprintf("realtime: %s: %s", e.Code, e.Message)
	case e.Type != "":
		return fmt.Sprintf("realtime: %s: %s", e.Type, e.Message)
	default:
		return "realtime: " + e.Message
	}
}

// ParseEvent decodes a raw provider message.
func ParseEvent(message []byte) (*ServerEvent, error) {
	var event ServerEvent
	if err := json.Unmarshal(message, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	}
	event.Raw = message
	return &event, nil
}
