package capture

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/lukasbauer/livetranslate/internal/audio"
)

// readFrames is how many device frames are read per iteration.
const readFrames = 1024

// pipeline turns device samples into relay frames:
// downmix, resample to 24 kHz, 4096-sample blocks, pcm16, base64.
type pipeline struct {
	stream    Stream
	resampler *audio.Resampler
	blocker   *audio.Blocker
	send      func(frame string) error

	frames int
}

func newPipeline(stream Stream, resampler *audio.Resampler, blockSize int, send func(string) error) *pipeline {
	return &pipeline{
		stream:    stream,
		resampler: resampler,
		blocker:   audio.NewBlocker(blockSize),
		send:      send,
	}
}

// run processes the stream until it ends or ctx is cancelled. It returns
// io.EOF when the input is exhausted and nil when cancelled. A trailing
// partial block is discarded.
func (p *pipeline) run(ctx context.Context) error {
	channels := max(p.stream.Format().Channels, 1)
	buf := make([]float32, readFrames*channels)

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := p.stream.Read(buf)
		if n > 0 {
			if perr := p.process(buf[:n], channels); perr != nil {
				if ctx.Err() != nil {
					return nil
				}
				return perr
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return io.EOF
			}
			return fmt.Errorf("capture: read device: %w", err)
		}
	}
}

func (p *pipeline) process(samples []float32, channels int) error {
	mono := audio.Downmix(samples, channels)
	resampled, err := p.resampler.Process(mono)
	if err != nil {
		return err
	}
	for _, block := range p.blocker.Write(resampled) {
		if err := p.send(audio.EncodeFrame(block)); err != nil {
			return fmt.Errorf("capture: send frame: %w", err)
		}
		p.frames++
	}
	return nil
}
