package eventlog

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestEventTypeConstants(t *testing.T) {
	// Verify all event types are defined as expected
	expectedEvents := map[EventType]string{
		EventSessionStarted:     "session_started",
		EventUpstreamConnected:  "upstream_connected",
		EventUpstreamDialFailed: "upstream_dial_failed",
		EventSessionConfigured:  "session_configured",
		EventSessionReady:       "session_ready",
		EventAudioDropped:       "audio_dropped",
		EventTextDone:           "text_done",
		EventUpstreamError:      "upstream_error",
		EventMalformedMessage:   "malformed_upstream_message",
		EventUpstreamClosed:     "upstream_closed",
		EventSessionEnded:       "session_ended",
	}

	for eventType, expectedValue := range expectedEvents {
		if string(eventType) != expectedValue {
			t.Errorf("EventType %q = %q, want %q", expectedValue, string(eventType), expectedValue)
		}
	}
}

func TestLoggerWithNilLogger(t *testing.T) {
	// Should not panic
	New(nil).Log("sess-1", EventSessionStarted, map[string]any{"k": "v"})

	var l *Logger
	l.Log("sess-1", EventSessionStarted, nil)
}

func TestLoggerSkipsEmptySessionID(t *testing.T) {
	logger, hook := test.NewNullLogger()
	New(logger).Log("", EventSessionStarted, nil)

	if len(hook.AllEntries()) != 0 {
		t.Errorf("got %d entries, want 0", len(hook.AllEntries()))
	}
}

func TestLoggerWritesFields(t *testing.T) {
	logger, hook := test.NewNullLogger()
	New(logger).Log("sess-1", EventSessionEnded, map[string]any{
		"frames_forwarded": 3,
	})

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("no entry logged")
	}
	if entry.Message != "eventlog: session_ended" {
		t.Errorf("Message = %q", entry.Message)
	}
	if entry.Data["session_id"] != "sess-1" {
		t.Errorf("session_id = %v", entry.Data["session_id"])
	}
	if entry.Data["event"] != "session_ended" {
		t.Errorf("event = %v", entry.Data["event"])
	}
	if entry.Data["frames_forwarded"] != 3 {
		t.Errorf("frames_forwarded = %v", entry.Data["frames_forwarded"])
	}
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		eventType EventType
		want      logrus.Level
	}{
		{EventUpstreamError, logrus.ErrorLevel},
		{EventUpstreamDialFailed, logrus.ErrorLevel},
		{EventMalformedMessage, logrus.WarnLevel},
		{EventAudioDropped, logrus.DebugLevel},
		{EventSessionReady, logrus.InfoLevel},
	}

	for _, tt := range tests {
		logger, hook := test.NewNullLogger()
		logger.SetLevel(logrus.DebugLevel)
		New(logger).Log("sess-1", tt.eventType, nil)

		entry := hook.LastEntry()
		if entry == nil {
			t.Fatalf("%s: no entry logged", tt.eventType)
		}
		if entry.Level != tt.want {
			t.Errorf("%s: level = %v, want %v", tt.eventType, entry.Level, tt.want)
		}
	}
}
