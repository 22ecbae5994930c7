// Package app wires all PinkSync subsystems into a running server.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context is cancelled, and Shutdown
// tears everything down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithMetrics, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/pinkycollie/pinksync/internal/config"
	"github.com/pinkycollie/pinksync/internal/health"
	"github.com/pinkycollie/pinksync/internal/observe"
	"github.com/pinkycollie/pinksync/internal/pipeline/feature"
	"github.com/pinkycollie/pinksync/internal/pipeline/synthesis"
	"github.com/pinkycollie/pinksync/internal/pipeline/translate"
	"github.com/pinkycollie/pinksync/internal/pipeline/window"
	"github.com/pinkycollie/pinksync/internal/stream"
	"github.com/pinkycollie/pinksync/internal/transport/ws"
	"github.com/pinkycollie/pinksync/pkg/provider/detector"
	"github.com/pinkycollie/pinksync/pkg/provider/gesture"
	"github.com/pinkycollie/pinksync/pkg/provider/signmodel"
	"github.com/pinkycollie/pinksync/pkg/provider/videodec"
	"github.com/pinkycollie/pinksync/pkg/store"
	"github.com/pinkycollie/pinksync/pkg/store/postgres"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured; the operations needing it degrade or return
// errors. Populated by main.go via the config registry.
type Providers struct {
	Pose         detector.Provider
	Hands        detector.Provider
	Face         detector.Provider
	SignToText   signmodel.Provider
	TextToSign   gesture.Provider
	VideoDecoder videodec.Provider
}

// App owns all subsystem lifetimes and serves the PinkSync translation API.
type App struct {
	cfg       *config.Config
	providers *Providers
	logger    *slog.Logger
	metrics   *observe.Metrics

	// Subsystems — initialised in New, torn down in Shutdown.
	store        store.RecordStore
	extractor    *feature.Extractor
	orchestrator *translate.Orchestrator
	engine       *stream.Engine
	server       *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a record store instead of connecting to PostgreSQL.
func WithStore(s store.RecordStore) Option {
	return func(a *App) { a.store = s }
}

// WithLogger injects a logger instead of using slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithMetrics injects a metrics bundle instead of DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option
// functions to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}
	a.registerProviderClosers()
	a.initPipeline()
	a.initServer()

	return a, nil
}

// registerProviderClosers ties the configured model capabilities to the app
// lifecycle: loaded once before any session is admitted, released once in
// Shutdown after all sessions are closed.
func (a *App) registerProviderClosers() {
	p := a.providers
	for _, c := range []interface{ Close() error }{
		p.Pose, p.Hands, p.Face, p.SignToText, p.TextToSign,
	} {
		if c != nil {
			a.closers = append(a.closers, c.Close)
		}
	}
}

// initStore connects the PostgreSQL record store, unless one was injected or
// no DSN is configured. Running without a store is supported: translations
// still work, they just aren't persisted.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	dsn := a.cfg.Store.PostgresDSN
	if dsn == "" {
		a.logger.Warn("no store configured, translations will not be persisted")
		return nil
	}

	st, err := postgres.NewStore(ctx, dsn, a.cfg.Store.EmbeddingDimensions)
	if err != nil {
		return err
	}
	a.store = st
	a.closers = append(a.closers, func() error {
		st.Close()
		return nil
	})
	return nil
}

// initPipeline builds the extractor, both translation paths, and the
// streaming engine from the configured providers.
func (a *App) initPipeline() {
	p := a.providers
	a.extractor = feature.New(p.Pose, p.Hands, p.Face, a.logger, a.metrics)

	dispatcher := synthesis.New(a.store, a.logger, a.metrics)
	a.orchestrator = translate.New(
		translate.Config{
			SourceLanguage:  a.cfg.Pipeline.SourceLanguage,
			TargetLanguage:  a.cfg.Pipeline.TargetLanguage,
			MemoryThreshold: a.cfg.Pipeline.MemoryThreshold,
		},
		p.VideoDecoder,
		a.extractor,
		p.SignToText,
		p.TextToSign,
		dispatcher,
		a.store,
		a.logger,
		a.metrics,
	)

	a.engine = stream.NewEngine(
		stream.Config{
			Window: window.Config{
				MinLength:        a.cfg.Pipeline.WindowMinFrames,
				MaxLength:        a.cfg.Pipeline.WindowMaxFrames,
				MaxSpan:          time.Duration(a.cfg.Pipeline.WindowMaxSpan),
				SilenceThreshold: a.cfg.Pipeline.SilenceFrames,
			},
			SourceLanguage: a.cfg.Pipeline.SourceLanguage,
			TargetLanguage: a.cfg.Pipeline.TargetLanguage,
		},
		a.extractor,
		p.SignToText,
		a.store,
		a.logger,
		a.metrics,
	)
}

// initServer assembles the HTTP mux and server.
func (a *App) initServer() {
	var checkers []health.Checker
	if p, ok := a.store.(health.Pinger); ok {
		checkers = append(checkers, health.PingChecker("store", p))
	}

	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	api := newAPI(a.orchestrator, a.store, a.logger)
	api.register(mux)

	// The WebSocket route bypasses the observability middleware: the upgrade
	// needs http.Hijacker, which the middleware's response wrapper hides.
	// Stream activity is covered by the engine's own metrics instead.
	root := http.NewServeMux()
	root.Handle("GET /api/ws/{client_id}", ws.NewHandler(a.engine, a.logger))
	root.Handle("/", observe.Middleware(a.metrics)(mux))

	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Handler exposes the assembled HTTP handler. Used by tests to drive the API
// without binding a port.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("server listening",
			"addr", a.cfg.Server.ListenAddr,
			"tls", a.cfg.Server.TLS != nil,
		)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.server.Shutdown(drainCtx); err != nil {
			return a.server.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	return ctx.Err()
}

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.logger.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.logger.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.logger.Warn("closer failed", "error", err)
			}
		}
	})
	return shutdownErr
}
