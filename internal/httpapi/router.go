package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/lukasbauer/livetranslate/internal/eventlog"
	"github.com/lukasbauer/livetranslate/internal/metrics"
	"github.com/lukasbauer/livetranslate/internal/realtime"
)

type RouterConfig struct {
	// Upstream realtime provider
	Dialer  realtime.Dialer
	Session realtime.SessionConfig

	// Client keepalive (defaults 25s / 60s)
	PingInterval time.Duration
	PongWait     time.Duration

	// BaseContext is the parent of every session context. Cancelling it
	// ends all live sessions. Defaults to context.Background().
	BaseContext context.Context
}

type Router struct {
	cfg      RouterConfig
	logger   logrus.FieldLogger
	sessions *SessionRegistry
	metrics  *metrics.Relay
	eventLog *eventlog.Logger
	gatherer prometheus.Gatherer
	mux      *http.ServeMux
}

func NewRouter(cfg RouterConfig, logger logrus.FieldLogger, eventLog *eventlog.Logger, m *metrics.Relay, gatherer prometheus.Gatherer, sessions *SessionRegistry) http.Handler {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaultPongWait
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if sessions == nil {
		sessions = NewSessionRegistry()
	}

	r := &Router{
		cfg:      cfg,
		logger:   logger,
		sessions: sessions,
		metrics:  m,
		eventLog: eventLog,
		gatherer: gatherer,
		mux:      http.NewServeMux(),
	}

	r.routes()
	return withSentryRecovery(withCORS(r.mux))
}

func (r *Router) routes() {
	// Health checks
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)
	r.mux.HandleFunc("GET /readyz", r.handleReadyz)

	// Capture client event stream
	r.mux.HandleFunc("GET /ws", r.handleRelayWS)

	r.mux.Handle("GET /metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz reports 503 while draining so load balancers stop routing
// new clients to this instance.
func (r *Router) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if r.sessions.IsDraining() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("draining"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}
