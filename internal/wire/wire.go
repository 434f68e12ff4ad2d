// Package wire defines the event envelope exchanged between capture clients and the relay.
//
// Every websocket text frame carries one envelope:
//
//	{"event": "audio", "data": "<base64 pcm16>"}
//	{"event": "ready"}
//	{"event": "delta", "data": "Hola"}
//	{"event": "done",  "data": ""}
package wire

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// Event names.
const (
	EventAudio = "audio" // client -> relay
	EventReady = "ready" // relay -> client
	EventDelta = "delta" // relay -> client
	EventDone  = "done"  // relay -> client
)

// ErrInvalidEnvelope is returned by Decode for frames without an event name.
var ErrInvalidEnvelope = errors.New("wire: invalid envelope")

// Envelope is a named event with an optional string payload.
// A nil Data means "no payload"; a pointer to "" is an explicit empty payload.
type Envelope struct {
	Event string  `json:"event"`
	Data  *string `json:"data,omitempty"`
}

// Text returns the payload, or "" when absent.
func (e Envelope) Text() string {
	if e.Data == nil {
		return ""
	}
	return *e.Data
}

func withData(event, data string) Envelope {
	return Envelope{Event: event, Data: &data}
}

// Audio wraps a base64 PCM16 frame.
func Audio(base64PCM string) Envelope { return withData(EventAudio, base64PCM) }

// Ready signals that the upstream session accepted its configuration.
func Ready() Envelope { return Envelope{Event: EventReady} }

// Delta carries an incremental text fragment.
func Delta(text string) Envelope { return withData(EventDelta, text) }

// Done carries the final text of an utterance.
func Done(text string) Envelope { return withData(EventDone, text) }

// Encode marshals an envelope.
func Encode(e Envelope) ([]byte, error) {
	if e.Event == "" {
		return nil, ErrInvalidEnvelope
	}
	return json.Marshal(e)
}

// Decode unmarshals an envelope.
func Decode(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if e.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event", ErrInvalidEnvelope)
	}
	return e, nil
}
