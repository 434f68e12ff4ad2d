package relay

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/lukasbauer/livetranslate/internal/metrics"
	"github.com/lukasbauer/livetranslate/internal/realtime"
	"github.com/lukasbauer/livetranslate/internal/wire"
)

type fakeUpstream struct {
	configs   []realtime.SessionConfig
	audio     []string
	closed    int
	updateErr error
}

func (f *fakeUpstream) UpdateSession(cfg realtime.SessionConfig) error {
	f.configs = append(f.configs, cfg)
	return f.updateErr
}

func (f *fakeUpstream) AppendAudio(audioBase64 string) error {
	f.audio = append(f.audio, audioBase64)
	return nil
}

func (f *fakeUpstream) Close() error {
	f.closed++
	return nil
}

type fakeClient struct {
	sent []wire.Envelope
	err  error
}

func (f *fakeClient) Send(env wire.Envelope) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, env)
	return nil
}

func newTestSession(t *testing.T) (*Session, *fakeUpstream, *fakeClient, *metrics.Relay) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	m := metrics.NewRelay(prometheus.NewRegistry())
	client := &fakeClient{}
	s := NewSession(client, Options{
		ID:      "sess-1",
		Config:  realtime.TranslationSession("", 0.5, 500),
		Logger:  logger,
		Metrics: m,
	})
	up := &fakeUpstream{}
	if err := s.Open(up); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, up, client, m
}

func TestOpenSendsConfigOnce(t *testing.T) {
	s, up, _, _ := newTestSession(t)

	if len(up.configs) != 1 {
		t.Fatalf("configs sent = %d, want 1", len(up.configs))
	}
	cfg := up.configs[0]
	if cfg.InputAudioFormat != realtime.AudioFormatPCM16 {
		t.Errorf("InputAudioFormat = %q", cfg.InputAudioFormat)
	}
	if len(cfg.Modalities) != 1 || cfg.Modalities[0] != realtime.ModalityText {
		t.Errorf("Modalities = %v", cfg.Modalities)
	}

	if err := s.Open(&fakeUpstream{}); !errors.Is(err, ErrUpstreamAttached) {
		t.Errorf("second Open err = %v, want ErrUpstreamAttached", err)
	}
	if len(up.configs) != 1 {
		t.Errorf("configs sent = %d after second Open, want 1", len(up.configs))
	}
	if s.State() != StateConfiguring {
		t.Errorf("State = %v, want configuring", s.State())
	}
}

func TestOpenConfigFailure(t *testing.T) {
	s := NewSession(&fakeClient{}, Options{ID: "sess-1"})
	up := &fakeUpstream{updateErr: realtime.ErrClosed}

	if err := s.Open(up); !errors.Is(err, realtime.ErrClosed) {
		t.Fatalf("Open err = %v, want ErrClosed", err)
	}

	// The session still owns the upstream and closes it.
	_ = s.Close()
	if up.closed != 1 {
		t.Errorf("closed = %d, want 1", up.closed)
	}
}

func TestDropsAudioBeforeReady(t *testing.T) {
	s, up, client, m := newTestSession(t)

	for _, frame := range []string{"A", "B"} {
		forwarded, err := s.HandleAudio(frame)
		if err != nil {
			t.Fatalf("HandleAudio(%s): %v", frame, err)
		}
		if forwarded {
			t.Errorf("frame %s forwarded before ready", frame)
		}
	}

	if err := s.HandleUpstreamMessage([]byte(`{"type":"session.updated","session":{"id":"sess_abc"}}`)); err != nil {
		t.Fatalf("HandleUpstreamMessage: %v", err)
	}
	if s.State() != StateReady {
		t.Fatalf("State = %v, want ready", s.State())
	}

	forwarded, err := s.HandleAudio("C")
	if err != nil {
		t.Fatalf("HandleAudio(C): %v", err)
	}
	if !forwarded {
		t.Error("frame C not forwarded after ready")
	}

	if len(up.audio) != 1 || up.audio[0] != "C" {
		t.Errorf("upstream audio = %v, want [C]", up.audio)
	}
	if len(client.sent) != 1 || client.sent[0].Event != wire.EventReady {
		t.Errorf("client events = %v, want [ready]", client.sent)
	}

	stats := s.Stats()
	if stats.FramesDropped != 2 || stats.FramesForwarded != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if got := testutil.ToFloat64(m.AudioFrames.WithLabelValues(metrics.FrameDropped)); got != 2 {
		t.Errorf("dropped metric = %v, want 2", got)
	}
}

func TestReadyEmittedOnce(t *testing.T) {
	s, _, client, _ := newTestSession(t)

	msg := []byte(`{"type":"session.updated"}`)
	_ = s.HandleUpstreamMessage(msg)
	_ = s.HandleUpstreamMessage(msg)

	if len(client.sent) != 1 {
		t.Errorf("ready sent %d times, want 1", len(client.sent))
	}
}

func TestForwardsTextEvents(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want []wire.Envelope
	}{
		{
			name: "delta forwards the delta field",
			msg:  `{"type":"response.text.delta","response_id":"r1","delta":"Hola"}`,
			want: []wire.Envelope{wire.Delta("Hola")},
		},
		{
			name: "empty delta is not forwarded",
			msg:  `{"type":"response.text.delta","delta":""}`,
			want: nil,
		},
		{
			name: "done forwards text",
			msg:  `{"type":"response.text.done","text":"Hello world"}`,
			want: []wire.Envelope{wire.Done("Hello world")},
		},
		{
			name: "done without text forwards empty string",
			msg:  `{"type":"response.text.done"}`,
			want: []wire.Envelope{wire.Done("")},
		},
		{
			name: "error is not forwarded",
			msg:  `{"type":"error","error":{"type":"invalid_request_error","code":"bad","message":"nope"}}`,
			want: nil,
		},
		{
			name: "error without body is not forwarded",
			msg:  `{"type":"error"}`,
			want: nil,
		},
		{
			name: "unknown type is ignored",
			msg:  `{"type":"rate_limits.updated"}`,
			want: nil,
		},
		{
			name: "malformed json is dropped",
			msg:  `{"type":`,
			want: nil,
		},
		{
			name: "missing type is dropped",
			msg:  `{"delta":"x"}`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, client, _ := newTestSession(t)

			if err := s.HandleUpstreamMessage([]byte(tt.msg)); err != nil {
				t.Fatalf("HandleUpstreamMessage: %v", err)
			}
			if len(client.sent) != len(tt.want) {
				t.Fatalf("sent %d events, want %d: %v", len(client.sent), len(tt.want), client.sent)
			}
			for i := range tt.want {
				if client.sent[i].Event != tt.want[i].Event || client.sent[i].Text() != tt.want[i].Text() {
					t.Errorf("event %d = %s %q, want %s %q", i,
						client.sent[i].Event, client.sent[i].Text(), tt.want[i].Event, tt.want[i].Text())
				}
				if client.sent[i].Data == nil {
					t.Errorf("event %d has no data", i)
				}
			}
			if s.State() != StateConfiguring {
				t.Errorf("State = %v, want configuring", s.State())
			}
		})
	}
}

func TestPreservesUpstreamOrder(t *testing.T) {
	s, _, client, _ := newTestSession(t)

	msgs := []string{
		`{"type":"session.updated"}`,
		`{"type":"response.text.delta","delta":"Hola"}`,
		`not json`,
		`{"type":"response.text.delta","delta":" mundo"}`,
		`{"type":"response.text.done","text":""}`,
	}
	for _, m := range msgs {
		if err := s.HandleUpstreamMessage([]byte(m)); err != nil {
			t.Fatalf("HandleUpstreamMessage(%s): %v", m, err)
		}
	}

	want := []string{"ready", "delta:Hola", "delta: mundo", "done:"}
	if len(client.sent) != len(want) {
		t.Fatalf("sent = %v", client.sent)
	}
	for i, env := range client.sent {
		got := env.Event
		if env.Data != nil {
			got += ":" + env.Text()
		}
		if got != want[i] {
			t.Errorf("event %d = %q, want %q", i, got, want[i])
		}
	}
}

func TestMalformedCounted(t *testing.T) {
	s, _, _, m := newTestSession(t)

	_ = s.HandleUpstreamMessage([]byte(`garbage`))
	_ = s.HandleUpstreamMessage([]byte(`{"type":"error"}`))

	if got := testutil.ToFloat64(m.Malformed); got != 1 {
		t.Errorf("malformed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.UpstreamErrors); got != 1 {
		t.Errorf("upstream errors = %v, want 1", got)
	}
}

func TestClientSendFailureReturned(t *testing.T) {
	s, _, client, _ := newTestSession(t)
	client.err = errors.New("broken pipe")

	if err := s.HandleUpstreamMessage([]byte(`{"type":"session.updated"}`)); err == nil {
		t.Error("expected client write error")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s, up, client, _ := newTestSession(t)
	_ = s.HandleUpstreamMessage([]byte(`{"type":"session.updated"}`))

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if up.closed != 1 {
		t.Errorf("upstream closed %d times, want 1", up.closed)
	}
	if s.State() != StateClosed {
		t.Errorf("State = %v, want closed", s.State())
	}

	// No further events are processed.
	sent := len(client.sent)
	_ = s.HandleUpstreamMessage([]byte(`{"type":"response.text.done","text":"late"}`))
	if len(client.sent) != sent {
		t.Error("event forwarded after close")
	}
	if forwarded, _ := s.HandleAudio("late"); forwarded {
		t.Error("audio forwarded after close")
	}
	if len(up.audio) != 0 {
		t.Errorf("upstream audio = %v", up.audio)
	}
}

func TestOpenAfterCloseClosesUpstream(t *testing.T) {
	s := NewSession(&fakeClient{}, Options{ID: "sess-1"})
	_ = s.Close()

	up := &fakeUpstream{}
	if err := s.Open(up); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("Open err = %v, want ErrSessionClosed", err)
	}
	if up.closed != 1 {
		t.Errorf("upstream closed %d times, want 1", up.closed)
	}
	if len(up.configs) != 0 {
		t.Error("config sent to a closed session's upstream")
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateConfiguring: "configuring",
		StateReady:       "ready",
		StateClosed:      "closed",
		State(7):         "state(7)",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("String() = %q, want %q", s.String(), want)
		}
	}
}
