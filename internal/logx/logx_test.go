package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" warning "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
}

func TestCtx_FallsBackToGlobal(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info"}, &buf)
	ctx := WithLogger(context.Background(), l)
	Ctx(ctx).Info().Msg("hello")
	assert.Contains(t, buf.String(), `"message":"hello"`)

	// No logger stored: must not panic.
	Ctx(context.Background()).Debug().Msg("ignored")
}

func TestHTTPMiddleware_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", ServiceName: "statusgen"}, &buf)

	h := middleware.RequestID(HTTPMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Ctx(r.Context()).Info().Msg("inside")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})))

	req := httptest.NewRequest(http.MethodGet, "/brew", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var inside, done map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &inside))
	require.NoError(t, json.Unmarshal(lines[1], &done))
	assert.Equal(t, "/brew", inside[FieldPath])
	assert.NotEmpty(t, inside[FieldRequestID])
	assert.Equal(t, "request completed", done["message"])
	assert.EqualValues(t, http.StatusTeapot, done[FieldStatus])
	assert.EqualValues(t, len("short and stout"), done[FieldBytes])
	assert.Equal(t, "203.0.113.9", done[FieldClientIP])
	assert.Equal(t, "statusgen", done[FieldService])
}
