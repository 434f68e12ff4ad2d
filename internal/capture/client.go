package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lukasbauer/livetranslate/internal/audio"
	"github.com/lukasbauer/livetranslate/internal/transcript"
)

var (
	// ErrAlreadyRecording is returned by Start unless the client is idle.
	ErrAlreadyRecording = errors.New("capture: already recording")

	// ErrRelayClosed is returned by Start when the relay disconnects before
	// signalling ready.
	ErrRelayClosed = errors.New("capture: relay closed before ready")

	// ErrStopped is returned by Start when Stop is called while it is in flight.
	ErrStopped = errors.New("capture: stopped")
)

// pipelineStopTimeout bounds how long Stop waits for a blocked device read.
const pipelineStopTimeout = 2 * time.Second

type state int

const (
	stateIdle state = iota
	stateStarting
	stateRecording
)

// Config configures a Client.
type Config struct {
	RelayURL string
	Device   Device

	// BlockSize is the number of samples per frame (default 4096).
	BlockSize int

	Logger logrus.FieldLogger

	// OnChange is called after every transcript or recording state change.
	OnChange func()

	// OnEnd is called when recording ends without Stop: input exhausted
	// (io.EOF), device failure or relay disconnect.
	OnEnd func(err error)
}

// Client records from a device and streams frames to the relay:
// Idle -> Starting -> Recording -> Idle.
type Client struct {
	cfg        Config
	logger     logrus.FieldLogger
	transcript *transcript.Transcript

	mu          sync.Mutex
	state       state
	gen         uint64
	cancelStart context.CancelFunc
	res         resources
}

// resources are everything a recording holds. Each release is guarded on
// its own so a partially started recording can be torn down.
type resources struct {
	transport      *Transport
	stream         Stream
	resampler      *audio.Resampler // owned by the pipeline once it runs
	cancelPipeline context.CancelFunc
	pipelineDone   chan struct{}
}

func (r *resources) release(logger logrus.FieldLogger) {
	if r.cancelPipeline != nil {
		r.cancelPipeline()
	}
	if r.stream != nil {
		if err := r.stream.Close(); err != nil {
			logger.WithError(err).Debug("capture: stream close error")
		}
	}
	if r.pipelineDone != nil {
		select {
		case <-r.pipelineDone:
		case <-time.After(pipelineStopTimeout):
			logger.Warn("capture: pipeline did not stop in time")
		}
	}
	if r.resampler != nil {
		r.resampler.Close()
	}
	if r.transport != nil {
		_ = r.transport.Close()
	}
	*r = resources{}
}

// NewClient creates an idle client.
func NewClient(cfg Config) *Client {
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = audio.BlockSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		cfg:        cfg,
		logger:     logger,
		transcript: transcript.New(),
	}
}

// Transcript returns the client's transcript.
func (c *Client) Transcript() *transcript.Transcript { return c.transcript }

// Recording reports whether audio is being streamed.
func (c *Client) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateRecording
}

// Start connects to the relay, waits for it to signal ready, opens the
// device and starts streaming. On failure everything acquired is released
// and the client stays idle.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != stateIdle {
		c.mu.Unlock()
		return ErrAlreadyRecording
	}
	c.state = stateStarting
	c.gen++
	gen := c.gen
	startCtx, cancel := context.WithCancel(ctx)
	c.cancelStart = cancel
	c.mu.Unlock()

	defer cancel()

	err := c.start(startCtx, gen)
	if err != nil {
		c.mu.Lock()
		if c.gen == gen && c.state == stateStarting {
			c.state = stateIdle
			c.cancelStart = nil
		}
		c.mu.Unlock()
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			err = ErrStopped
		}
		c.logger.WithError(err).Warn("capture: start failed")
		return err
	}

	c.notify()
	return nil
}

func (c *Client) start(ctx context.Context, gen uint64) (err error) {
	var res resources
	defer func() {
		if err != nil {
			res.release(c.logger)
		}
	}()

	ready := make(chan struct{})
	var readyOnce sync.Once
	closed := make(chan error, 1)

	transport, err := Dial(ctx, c.cfg.RelayURL, Handlers{
		OnReady: func() {
			readyOnce.Do(func() { close(ready) })
		},
		OnDelta: func(text string) {
			c.transcript.AppendDelta(text)
			c.notify()
		},
		OnDone: func(text string) {
			c.transcript.Finalize(text)
			c.notify()
		},
		OnClose: func(err error) {
			closed <- err
		},
	}, c.logger)
	if err != nil {
		return err
	}
	res.transport = transport

	c.transcript.Begin()
	c.notify()

	select {
	case <-ready:
	case err := <-closed:
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRelayClosed, err)
		}
		return ErrRelayClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	c.logger.Info("capture: relay ready")

	stream, err := c.cfg.Device.Open(ctx, DefaultConstraints())
	if err != nil {
		return fmt.Errorf("capture: open device: %w", err)
	}
	res.stream = stream

	resampler, err := audio.NewResampler(stream.Format().SampleRate, audio.SampleRate)
	if err != nil {
		return err
	}
	res.resampler = resampler

	pipe := newPipeline(stream, resampler, c.cfg.BlockSize, transport.SendAudio)
	pipeCtx, cancelPipeline := context.WithCancel(context.Background())
	res.cancelPipeline = cancelPipeline

	c.mu.Lock()
	if c.gen != gen || ctx.Err() != nil {
		c.mu.Unlock()
		return ErrStopped
	}
	// The pipeline releases the resampler when it exits.
	res.resampler = nil
	res.pipelineDone = make(chan struct{})
	c.res = res
	c.state = stateRecording
	c.cancelStart = nil
	c.mu.Unlock()

	go c.runPipeline(pipeCtx, pipe, resampler, res.pipelineDone)
	return nil
}

func (c *Client) runPipeline(ctx context.Context, p *pipeline, resampler *audio.Resampler, done chan struct{}) {
	err := p.run(ctx)
	resampler.Close()
	close(done)

	logger := c.logger.WithField("frames", p.frames)
	if ctx.Err() != nil {
		logger.Debug("capture: pipeline stopped")
		return
	}
	if errors.Is(err, io.EOF) {
		logger.Info("capture: input ended")
	} else {
		logger.WithError(err).Warn("capture: pipeline failed")
	}
	if c.cfg.OnEnd != nil {
		c.cfg.OnEnd(err)
	}
}

// Stop tears down the recording or cancels a Start in flight. Safe to call
// when never started and more than once.
func (c *Client) Stop() {
	c.mu.Lock()
	wasIdle := c.state == stateIdle
	c.gen++
	if c.cancelStart != nil {
		c.cancelStart()
		c.cancelStart = nil
	}
	res := c.res
	c.res = resources{}
	c.state = stateIdle
	c.mu.Unlock()

	res.release(c.logger)
	if !wasIdle {
		c.logger.Info("capture: stopped")
		c.notify()
	}
}

func (c *Client) notify() {
	if c.cfg.OnChange != nil {
		c.cfg.OnChange()
	}
}
