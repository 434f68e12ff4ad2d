package eventlog

import (
	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// EventType represents the type of session event
type EventType string

const (
	EventSessionStarted     EventType = "session_started"
	EventUpstreamConnected  EventType = "upstream_connected"
	EventUpstreamDialFailed EventType = "upstream_dial_failed"
	EventSessionConfigured  EventType = "session_configured"
	EventSessionReady       EventType = "session_ready"
	EventAudioDropped       EventType = "audio_dropped"
	EventTextDone           EventType = "text_done"
	EventUpstreamError      EventType = "upstream_error"
	EventMalformedMessage   EventType = "malformed_upstream_message"
	EventUpstreamClosed     EventType = "upstream_closed"
	EventSessionEnded       EventType = "session_ended"
)

// Logger records session events as structured log entries and Sentry breadcrumbs.
type Logger struct {
	logger logrus.FieldLogger
}

// New creates a new event logger. A nil logger discards entries.
func New(logger logrus.FieldLogger) *Logger {
	return &Logger{logger: logger}
}

// Log writes an event for a session.
func (l *Logger) Log(sessionID string, eventType EventType, data map[string]any) {
	if l == nil || l.logger == nil || sessionID == "" {
		return // Silently skip if no logger or session ID
	}

	entry := l.logger.WithFields(logrus.Fields(data)).WithFields(logrus.Fields{
		"session_id": sessionID,
		"event":      string(eventType),
	})

	level := levelFor(eventType)
	entry.Log(level, "eventlog: "+string(eventType))

	if level <= logrus.InfoLevel {
		sentry.AddBreadcrumb(&sentry.Breadcrumb{
			Category: "session",
			Message:  string(eventType),
			Data:     data,
			Level:    sentryLevel(level),
		})
	}

	if eventType == EventUpstreamError {
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("session_id", sessionID)
			scope.SetExtras(data)
			sentry.CaptureMessage("upstream error event")
		})
	}
}

func levelFor(eventType EventType) logrus.Level {
	switch eventType {
	case EventUpstreamError, EventUpstreamDialFailed:
		return logrus.ErrorLevel
	case EventMalformedMessage:
		return logrus.WarnLevel
	case EventAudioDropped:
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

func sentryLevel(level logrus.Level) sentry.Level {
	switch level {
	case logrus.ErrorLevel:
		return sentry.LevelError
	case logrus.WarnLevel:
		return sentry.LevelWarning
	default:
		return sentry.LevelInfo
	}
}
