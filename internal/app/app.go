package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/lukasbauer/livetranslate/internal/eventlog"
	"github.com/lukasbauer/livetranslate/internal/httpapi"
	"github.com/lukasbauer/livetranslate/internal/metrics"
	"github.com/lukasbauer/livetranslate/internal/realtime"
)

type App struct {
	cfg      Config
	logger   *logrus.Logger
	registry *prometheus.Registry
	metrics  *metrics.Relay
	eventLog *eventlog.Logger
	dialer   realtime.Dialer
	sessions *httpapi.SessionRegistry

	// ctx parents every relay session; cancelled when draining times out.
	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg Config, logger *logrus.Logger) (*App, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, errors.New("OPENAI_API_KEY is required")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	dialer := realtime.NewClient(realtime.Config{
		APIKey: cfg.OpenAIAPIKey,
		URL:    cfg.RealtimeURL,
		Model:  cfg.RealtimeModel,
		Logger: logger,
	})

	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics.NewRelay(registry),
		eventLog: eventlog.New(logger),
		dialer:   dialer,
		sessions: httpapi.NewSessionRegistry(),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

func (a *App) Router() http.Handler {
	routerCfg := httpapi.RouterConfig{
		Dialer:      a.dialer,
		Session:     realtime.TranslationSession(a.cfg.TranslateInstructions, a.cfg.VADThreshold, a.cfg.VADSilenceMs),
		BaseContext: a.ctx,
	}
	return httpapi.NewRouter(routerCfg, a.logger, a.eventLog, a.metrics, a.registry, a.sessions)
}

// Drain rejects new sessions and waits for live ones to finish. When ctx
// expires first, the remaining sessions are cancelled.
func (a *App) Drain(ctx context.Context) error {
	a.sessions.StartDraining()
	a.logger.WithField("active_sessions", a.sessions.ActiveCount()).Info("app: draining")

	done := make(chan struct{})
	go func() {
		a.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		a.logger.WithField("active_sessions", a.sessions.ActiveCount()).Warn("app: drain timeout, cancelling sessions")
		a.cancel()
		<-done
		return ctx.Err()
	}
}

func (a *App) Close() error {
	a.cancel()
	return nil
}
