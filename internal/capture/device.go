// Package capture is the client half of the relay: it reads audio from a
// capture device, converts it to the relay's frame format and renders the
// translation that comes back.
package capture

import (
	"context"
	"errors"
)

// ErrStreamClosed is returned by Stream.Read after Close.
var ErrStreamClosed = errors.New("capture: stream closed")

// Constraints describe the audio requested from a device.
type Constraints struct {
	ChannelCount     int
	SampleRate       int
	EchoCancellation bool
	NoiseSuppression bool
}

// DefaultConstraints requests 24 kHz mono with echo cancellation and noise
// suppression.
func DefaultConstraints() Constraints {
	return Constraints{
		ChannelCount:     1,
		SampleRate:       24000,
		EchoCancellation: true,
		NoiseSuppression: true,
	}
}

// Format is the layout of samples a stream actually delivers.
type Format struct {
	SampleRate int
	Channels   int
}

// Device opens capture streams. Devices honor constraints where they can;
// the pipeline converts whatever Format the stream reports.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream delivers interleaved float samples in [-1, 1].
type Stream interface {
	Format() Format
	Read(p []float32) (int, error)
	Close() error
}
