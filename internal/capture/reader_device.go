package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lukasbauer/livetranslate/internal/audio"
)

// ReaderDevice captures raw signed 16-bit little-endian PCM from a byte
// source, such as a file or a recorder piped into stdin.
type ReaderDevice struct {
	// Source opens the byte stream. It is called once per Open.
	Source func() (io.ReadCloser, error)

	// Native is the layout of the raw stream.
	Native Format

	// Realtime paces reads to the wall clock, as a live microphone would.
	Realtime bool

	Logger logrus.FieldLogger
}

// FileDevice reads raw PCM from path.
func FileDevice(path string, native Format, realtime bool) *ReaderDevice {
	return &ReaderDevice{
		Source: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
		Native:   native,
		Realtime: realtime,
	}
}

// StdinDevice reads raw PCM from standard input. Closing the stream does not
// close stdin.
func StdinDevice(native Format) *ReaderDevice {
	return &ReaderDevice{
		Source: func() (io.ReadCloser, error) {
			return io.NopCloser(os.Stdin), nil
		},
		Native: native,
	}
}

// Open starts a stream. Echo cancellation and noise suppression cannot be
// applied to a raw stream and are ignored.
func (d *ReaderDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if d.Source == nil {
		return nil, errors.New("capture: reader device has no source")
	}
	if d.Native.SampleRate <= 0 || d.Native.Channels <= 0 {
		return nil, fmt.Errorf("capture: invalid input format %d Hz x %d", d.Native.SampleRate, d.Native.Channels)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rc, err := d.Source()
	if err != nil {
		return nil, fmt.Errorf("capture: open input: %w", err)
	}

	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"requested_rate":     c.SampleRate,
			"requested_channels": c.ChannelCount,
			"rate":               d.Native.SampleRate,
			"channels":           d.Native.Channels,
		}).Debug("capture: opened raw pcm input")
	}

	return &readerStream{
		rc:       rc,
		format:   d.Native,
		realtime: d.Realtime,
		closed:   make(chan struct{}),
	}, nil
}

type readerStream struct {
	rc       io.ReadCloser
	format   Format
	realtime bool
	buf      []byte

	started time.Time
	frames  int64

	closeOnce sync.Once
	closed    chan struct{}
}

func (s *readerStream) Format() Format { return s.format }

// Read fills p with whole frames. A short final read returns the samples
// available; the next call returns io.EOF.
func (s *readerStream) Read(p []float32) (int, error) {
	select {
	case <-s.closed:
		return 0, ErrStreamClosed
	default:
	}

	frameSamples := s.format.Channels
	want := len(p) / frameSamples * frameSamples
	if want == 0 {
		return 0, nil
	}
	if cap(s.buf) < want*2 {
		s.buf = make([]byte, want*2)
	}
	buf := s.buf[:want*2]

	n, err := io.ReadFull(s.rc, buf)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}
	if n == 0 && err == nil {
		err = io.EOF
	}

	samples := audio.DecodePCM16(buf[:n/(2*frameSamples)*2*frameSamples])
	copy(p, samples)

	if s.realtime && len(samples) > 0 {
		if !s.pace(len(samples) / frameSamples) {
			return len(samples), ErrStreamClosed
		}
	}
	return len(samples), err
}

// pace sleeps until the wall clock catches up with the audio read so far.
// It returns false if the stream was closed while waiting.
func (s *readerStream) pace(frames int) bool {
	if s.started.IsZero() {
		s.started = time.Now()
	}
	s.frames += int64(frames)
	due := s.started.Add(time.Duration(s.frames) * time.Second / time.Duration(s.format.SampleRate))

	wait := time.Until(due)
	if wait <= 0 {
		return true
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.closed:
		return false
	}
}

func (s *readerStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.rc.Close()
	})
	return err
}
