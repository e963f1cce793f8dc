package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statusgen/internal/session"
	"statusgen/internal/status"
)

func TestHomeCreatesSession(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `data-testid="whatsapp-simulator"`)
	assert.Contains(t, rec.Body.String(), "Générateur Statut WhatsApp")
	cookie := rec.Result().Cookies()
	require.NotEmpty(t, cookie)
	assert.Equal(t, session.CookieName, cookie[0].Name)
	assert.Equal(t, 1, env.store.Len())

	again := httptest.NewRequest(http.MethodGet, "/", nil)
	again.AddCookie(cookie[0])
	rec = env.do(again)
	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, 1, env.store.Len())
}

func TestUpdateConfigSimulatorFragment(t *testing.T) {
	env := newTestEnv(t)
	c := env.newSession(t)

	form := url.Values{"statusText": {"Bonjour\r\nà tous"}}
	rec := env.do(formRequest("/session/config", form, c, "simulator-slot"))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `data-testid="status-text-display">Bonjour</div>`)
	assert.Contains(t, body, "à tous")
	assert.NotContains(t, body, "Type de statut")

	state := env.session(t, c).State()
	assert.Equal(t, "Bonjour\nà tous", state.Config.StatusText)
	assert.Equal(t, 1247, state.Config.ViewCount)
}

func TestUpdateConfigWorkspace(t *testing.T) {
	env := newTestEnv(t)
	c := env.newSession(t)

	rec := env.do(formRequest("/session/config", url.Values{"backgroundType": {"gradient-4"}}, c, "workspace"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="workspace"`)
	assert.Contains(t, rec.Body.String(), "status-gradient-4 swatch-selected")
	assert.Equal(t, "gradient-4", env.session(t, c).State().Config.BackgroundType)
}

func TestUpdateConfigViewCount(t *testing.T) {
	env := newTestEnv(t)
	c := env.newSession(t)

	rec := env.do(formRequest("/session/config", url.Values{"viewCount": {"abc"}}, c, "simulator-slot"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, env.session(t, c).State().Config.ViewCount)

	rec = env.do(formRequest("/session/config", url.Values{"viewCount": {"-5"}}, c, "simulator-slot"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("HX-Trigger"), `"variant":"destructive"`)
	assert.Equal(t, 0, env.session(t, c).State().Config.ViewCount)
}

func TestUpdateConfigRejectsLongText(t *testing.T) {
	env := newTestEnv(t)
	c := env.newSession(t)
	long := strings.Repeat("a", status.MaxTextLength+1)
	rec := env.do(formRequest("/session/config", url.Values{"statusText": {long}}, c, "simulator-slot"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlainFormPostRedirects(t *testing.T) {
	env := newTestEnv(t)
	c := env.newSession(t)
	rec := env.do(formRequest("/session/config", url.Values{"statusType": {"image"}}, c, ""))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, status.TypeImage, env.session(t, c).State().Config.StatusType)
}

func TestGenerateViewers(t *testing.T) {
	env := newTestEnv(t)
	c := env.newSession(t)

	rec := env.do(formRequest("/session/viewers/generate", url.Values{"type": {"international"}}, c, "workspace"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("HX-Trigger"), "15 noms ont été générés")

	sess := env.session(t, c)
	viewers := sess.State().Viewers
	require.Len(t, viewers, 15)
	for _, v := range viewers {
		assert.Contains(t, status.Names("international"), v.Name)
	}
	assert.Equal(t, status.PoolInternational, sess.Pool())
	assert.Contains(t, rec.Body.String(), `<option value="international" selected>`)
}

func TestGenerateViewersUsesViewCount(t *testing.T) {
	env := newTestEnv(t)
	c := env.newSession(t)
	env.do(formRequest("/session/config", url.Values{"viewCount": {"4"}}, c, "simulator-slot"))

	rec := env.do(formRequest("/session/viewers/generate", url.Values{"type": {"mixed"}}, c, "workspace"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, env.session(t, c).State().Viewers, 4)
}

func TestViewerEdits(t *testing.T) {
	env := newTestEnv(t)
	c := env.newSession(t)

	rec := env.do(formRequest("/session/viewers/1/rename", url.Values{"name": {"Ti Jak"}}, c, "simulator-slot"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ti Jak")
	viewers := env.session(t, c).State().Viewers
	assert.Equal(t, "Ti Jak", viewers[1].Name)
	assert.Equal(t, "👍", viewers[1].Reaction)

	rec = env.do(formRequest("/session/viewers/0/delete", nil, c, "workspace"))
	require.Equal(t, http.StatusOK, rec.Code)
	viewers = env.session(t, c).State().Viewers
	require.Len(t, viewers, 2)
	assert.Equal(t, "Ti Jak", viewers[0].Name)

	assert.Equal(t, http.StatusNotFound, env.do(formRequest("/session/viewers/9/delete", nil, c, "workspace")).Code)
	assert.Equal(t, http.StatusNotFound, env.do(formRequest("/session/viewers/x/rename", url.Values{"name": {"a"}}, c, "workspace")).Code)

	rec = env.do(formRequest("/session/viewers/clear", nil, c, "workspace"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.session(t, c).State().Viewers)
	assert.Contains(t, rec.Body.String(), "Aucun spectateur")
}

func multipartImage(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestImageUploadAndRemove(t *testing.T) {
	env := newTestEnv(t)
	c := env.newSession(t)

	body, contentType := multipartImage(t, "plage.png", samplePNG(t))
	req := httptest.NewRequest(http.MethodPost, "/session/image", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("HX-Request", "true")
	req.AddCookie(c)
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("HX-Trigger"), "Image uploadée")

	cfg := env.session(t, c).State().Config
	assert.Equal(t, status.TypeImage, cfg.StatusType)
	assert.Equal(t, "plage.png", cfg.ImageName)
	assert.True(t, strings.HasPrefix(cfg.StatusImage, "data:image/jpeg;base64,"))
	assert.Contains(t, rec.Body.String(), `data-testid="status-uploaded-image"`)

	rec = env.do(formRequest("/session/image/delete", nil, c, "workspace"))
	require.Equal(t, http.StatusOK, rec.Code)
	cfg = env.session(t, c).State().Config
	assert.Equal(t, status.TypeText, cfg.StatusType)
	assert.Empty(t, cfg.StatusImage)
	assert.Empty(t, cfg.ImageName)
}

func TestImageUploadRejectsGarbage(t *testing.T) {
	env := newTestEnv(t)
	c := env.newSession(t)

	body, contentType := multipartImage(t, "notes.txt", []byte("pas une image"))
	req := httptest.NewRequest(http.MethodPost, "/session/image", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("HX-Request", "true")
	req.AddCookie(c)
	rec := env.do(req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, status.TypeText, env.session(t, c).State().Config.StatusType)
}

func TestPreviewPage(t *testing.T) {
	env := newTestEnv(t)
	c := env.newSession(t)
	req := httptest.NewRequest(http.MethodGet, "/session/preview", nil)
	req.AddCookie(c)
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `data-testid="whatsapp-simulator"`)
	assert.NotContains(t, rec.Body.String(), "control_panel")
	assert.NotContains(t, rec.Body.String(), "Générateur de noms")
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","version":"test","sessions":0}`, rec.Body.String())
}

func TestStaticAssetsServed(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/css")
}
