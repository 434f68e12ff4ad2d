package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lukasbauer/livetranslate/internal/capture"
	"github.com/lukasbauer/livetranslate/internal/logging"
	"github.com/lukasbauer/livetranslate/internal/transcript"
)

var opts struct {
	relay     string
	input     string
	rate      int
	channels  int
	realtime  bool
	linger    time.Duration
	logLevel  string
	logFormat string
}

var rootCmd = &cobra.Command{
	Use:   "capture",
	Short: "Stream speech to the translation relay",
	Long: `Stream speech to the translation relay and show the translation.

Input is raw signed 16-bit little-endian PCM, read from a file or from
stdin ("-"). Any rate and channel count is accepted; audio is converted
to 24 kHz mono before it is sent.

Examples:
  arecord -f S16_LE -r 48000 -c 2 -t raw | capture --rate 48000 --channels 2
  capture --input speech.pcm --relay ws://localhost:3001/ws`,
	SilenceUsage: true,
	RunE:         runCapture,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&opts.relay, "relay", "ws://localhost:3001/ws", "Relay websocket URL")
	f.StringVarP(&opts.input, "input", "i", "-", "Raw PCM input file, - for stdin")
	f.IntVar(&opts.rate, "rate", 24000, "Input sample rate in Hz")
	f.IntVar(&opts.channels, "channels", 1, "Input channel count")
	f.BoolVar(&opts.realtime, "realtime", true, "Pace file input to the wall clock")
	f.DurationVar(&opts.linger, "linger", 3*time.Second, "How long to wait for the last translation after input ends")
	f.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	f.StringVar(&opts.logFormat, "log-format", logging.FormatText, "Log format (text, json)")
}

func runCapture(cmd *cobra.Command, args []string) error {
	if opts.rate <= 0 || opts.channels <= 0 {
		return fmt.Errorf("invalid input format: %d Hz x %d channels", opts.rate, opts.channels)
	}

	logger := logging.NewLogger(opts.logLevel, opts.logFormat)
	logger.SetOutput(cmd.ErrOrStderr())

	native := capture.Format{SampleRate: opts.rate, Channels: opts.channels}
	var device *capture.ReaderDevice
	if opts.input == "-" {
		device = capture.StdinDevice(native)
	} else {
		device = capture.FileDevice(opts.input, native, opts.realtime)
	}
	device.Logger = logger

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v := &view{out: cmd.OutOrStdout(), styles: transcript.DefaultStyles()}
	ended := make(chan error, 1)

	var client *capture.Client
	client = capture.NewClient(capture.Config{
		RelayURL: opts.relay,
		Device:   device,
		Logger:   logger,
		OnChange: func() { v.draw(client) },
		OnEnd: func(err error) {
			select {
			case ended <- err:
			default:
			}
		},
	})
	v.draw(client)

	if err := client.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case err := <-ended:
		if !errors.Is(err, io.EOF) {
			client.Stop()
			return err
		}
		// Give the relay time to return the last utterance.
		select {
		case <-time.After(opts.linger):
		case <-ctx.Done():
		}
	}

	client.Stop()
	return nil
}

// view redraws the transcript in place.
type view struct {
	mu     sync.Mutex
	out    io.Writer
	styles transcript.Styles
}

func (v *view) draw(c *capture.Client) {
	if c == nil {
		return
	}
	frame := transcript.Render(c.Transcript().Snapshot(), c.Recording(), v.styles)

	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprint(v.out, "\033[H\033[2J"+frame+"\n")
}
