package handlers

import (
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"statusgen/internal/logx"
	"statusgen/internal/metrics"
	"statusgen/views"
)

// Deps wires the router.
type Deps struct {
	Logger  zerolog.Logger
	Session *SessionHandler
	API     *APIHandler
	Health  *HealthHandler
	Limiter *RateLimiter
	Metrics *metrics.Metrics
	Timeout time.Duration
}

// NewRouter builds the HTTP surface of the generator.
func NewRouter(d Deps) http.Handler {
	_ = mime.AddExtensionType(".js", "application/javascript")
	_ = mime.AddExtensionType(".css", "text/css")
	if d.Timeout <= 0 {
		d.Timeout = 15 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.HTTPMiddleware(d.Logger))
	r.Use(middleware.Recoverer)

	r.Mount("/static", http.StripPrefix("/static", http.FileServer(http.FS(views.StaticFS()))))
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(d.Timeout))
		d.Health.RegisterRoutes(r)
		r.Group(func(r chi.Router) {
			if d.Limiter != nil {
				r.Use(d.Limiter.Middleware)
			}
			d.API.RegisterRoutes(r)
		})
		d.Session.RegisterRoutes(r)
	})
	d.Session.RegisterLongRoutes(r)
	return r
}
