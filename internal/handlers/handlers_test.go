package handlers

import (
	"bytes"
	"context"
	"image/color"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"statusgen/internal/export"
	"statusgen/internal/metrics"
	"statusgen/internal/session"
	"statusgen/internal/status"
	"statusgen/internal/viewmodel"
	"statusgen/views"
)

type stubTab struct{ png []byte }

func (t *stubTab) Load(context.Context, []byte) error          { return nil }
func (t *stubTab) Exists(context.Context, string) (bool, error) { return true, nil }
func (t *stubTab) Screenshot(_ context.Context, _ string, _ float64, rendered func()) ([]byte, error) {
	rendered()
	return t.png, nil
}
func (t *stubTab) Close() error { return nil }

type stubBrowser struct{ png []byte }

func (b *stubBrowser) Open(context.Context) (export.Tab, error) {
	return &stubTab{png: b.png}, nil
}

func samplePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(4, 4, color.White), imaging.PNG))
	return buf.Bytes()
}

type testEnv struct {
	handler http.Handler
	store   *session.Store
	metrics *metrics.Metrics
}

type envOption func(*Deps, *export.Pipeline)

func withLimiter(l *RateLimiter) envOption {
	return func(d *Deps, _ *export.Pipeline) { d.Limiter = l }
}

func withoutBrowser() envOption {
	return func(_ *Deps, p *export.Pipeline) { p.Browser = nil }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	m := metrics.New()
	store := session.NewStore(session.NewMemoryStates(), session.Options{ResetDelay: 20 * time.Millisecond, Counter: m})
	gen := status.NewGenerator(7)
	styles, err := views.Stylesheets()
	require.NoError(t, err)
	pipeline := export.NewPipeline(&stubBrowser{png: samplePNG(t)}, styles)
	pipeline.Observer = m

	deps := Deps{
		Logger:  zerolog.Nop(),
		API:     NewAPIHandler(gen, m),
		Health:  NewHealthHandler(store, "test"),
		Metrics: m,
	}
	for _, opt := range opts {
		opt(&deps, pipeline)
	}
	deps.Session = NewSessionHandler(store, gen, pipeline, m, SessionOptions{
		Counts:  viewmodel.NewCountFormatter("en"),
		Version: "test",
	})
	return &testEnv{handler: NewRouter(deps), store: store, metrics: m}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// newSession loads the home page and returns the session cookie it sets.
func (e *testEnv) newSession(t *testing.T) *http.Cookie {
	t.Helper()
	rec := e.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func (e *testEnv) session(t *testing.T, c *http.Cookie) *session.Session {
	t.Helper()
	sess, err := e.store.Get(context.Background(), c.Value)
	require.NoError(t, err)
	return sess
}

func formRequest(path string, form url.Values, cookie *http.Cookie, htmxTarget string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	if htmxTarget != "" {
		req.Header.Set("HX-Request", "true")
		req.Header.Set("HX-Target", htmxTarget)
	}
	return req
}

func unlimited() *RateLimiter {
	return NewRateLimiter(nil, RateLimiterOptions{Limit: rate.Inf, Burst: 1})
}
