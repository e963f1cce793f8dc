package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"statusgen/internal/config"
	"statusgen/internal/export"
	"statusgen/internal/handlers"
	"statusgen/internal/logx"
	"statusgen/internal/metrics"
	"statusgen/internal/session"
	"statusgen/internal/status"
	"statusgen/internal/viewmodel"
	"statusgen/views"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the generator web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, ctx, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return serve(ctx, cfg)
		},
	}
}

func openStates(ctx context.Context, cfg *config.Config, log *zerolog.Logger) (session.StateStore, func(), error) {
	if cfg.Session.Store != "redis" {
		return session.NewMemoryStates(), func() {}, nil
	}
	states, err := session.NewRedisStates(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("session states in redis")
	return states, func() { _ = states.Close() }, nil
}

// newPipeline builds the export pipeline: headless Chrome for PNG captures and
// the embedded stylesheets, followed by any configured ones.
func newPipeline(cfg *config.Config) (*export.Pipeline, error) {
	styles, err := views.Stylesheets()
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 10 * time.Second}
	for _, u := range cfg.Export.Stylesheets {
		styles = append(styles, export.URLStyle(u, client))
	}
	browser := export.NewChromeBrowser(export.ChromeConfig{
		ExecPath: cfg.Export.ChromePath,
		Width:    cfg.Export.WindowWidth,
		Height:   cfg.Export.WindowHeight,
	})
	return export.NewPipeline(browser, styles), nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logx.Ctx(ctx)
	logger := *log

	states, closeStates, err := openStates(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStates()

	m := metrics.New()
	store := session.NewStore(states, session.Options{
		TTL:        cfg.Session.TTL,
		ResetDelay: cfg.Export.ResetDelay,
		Counter:    m,
	})
	gen := status.NewRandomGenerator()

	pipeline, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	pipeline.Observer = m

	limiter := handlers.NewRateLimiter(m, handlers.RateLimiterOptions{
		Limit: rate.Limit(cfg.RateLimit.RPS),
		Burst: cfg.RateLimit.Burst,
	})
	router := handlers.NewRouter(handlers.Deps{
		Logger: logger,
		Session: handlers.NewSessionHandler(store, gen, pipeline, m, handlers.SessionOptions{
			Counts:    viewmodel.NewCountFormatter(cfg.Locale),
			Capture:   export.CaptureOptions{Scale: cfg.Export.Scale, Quality: cfg.Export.Quality},
			MaxUpload: cfg.Upload.MaxBytes,
			Version:   version,
		}),
		API:     handlers.NewAPIHandler(gen, m),
		Health:  handlers.NewHealthHandler(store, version),
		Limiter: limiter,
		Metrics: m,
	})

	// Exports and the event stream outlive any fixed write deadline, so only
	// header and idle timeouts are set here; the short routes get chi's Timeout.
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Minute,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Str("version", version).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return store.RunSweeper(gctx, cfg.Session.SweepInterval)
	})
	g.Go(func() error {
		return limiter.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down")
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
