package handlers

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"statusgen/internal/export"
	"statusgen/internal/logx"
	"statusgen/internal/session"
	"statusgen/views"
)

// download buffers one export for the response.
type download struct {
	name        string
	contentType string
	data        []byte
}

func (d *download) Save(_ context.Context, name, contentType string, data []byte) error {
	d.name, d.contentType, d.data = name, contentType, data
	return nil
}

func (h *SessionHandler) exportPNG(w http.ResponseWriter, r *http.Request) {
	h.runExport(w, r, export.KindPNG)
}

func (h *SessionHandler) exportHTML(w http.ResponseWriter, r *http.Request) {
	h.runExport(w, r, export.KindHTML)
}

// runExport captures the session's simulator and streams the file back. Only
// one export per session runs at a time; a second request gets 409. Once
// started an export finishes even if the client goes away.
func (h *SessionHandler) runExport(w http.ResponseWriter, r *http.Request, kind export.Kind) {
	sess := sessionFrom(r.Context())
	st, err := sess.Exports.Begin(kind)
	if errors.Is(err, export.ErrBusy) {
		http.Error(w, "an export is already in progress", http.StatusConflict)
		return
	}
	h.store.PublishExport(sess.ID, st)

	ctx := context.WithoutCancel(r.Context())
	log := logx.Ctx(ctx).With().Str(logx.FieldExport, string(kind)).Logger()

	out := &download{}
	name, err := h.export(ctx, sess, kind, out)
	final := sess.Exports.Finish(kind, name, err, time.Now().UTC())
	h.store.PublishExport(sess.ID, final)
	h.store.EnsureResetLoop(sess.ID)

	if err != nil {
		log.Error().Err(err).Msg("export failed")
		code := http.StatusInternalServerError
		if errors.Is(err, export.ErrCaptureUnavailable) {
			code = http.StatusServiceUnavailable
		}
		http.Error(w, "export failed", code)
		return
	}
	log.Info().Str("filename", name).Int(logx.FieldBytes, len(out.data)).Msg("export complete")

	w.Header().Set("Content-Type", out.contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": out.name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(out.data)))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(out.data)
}

func (h *SessionHandler) export(ctx context.Context, sess *session.Session, kind export.Kind, out export.Saver) (string, error) {
	page, err := renderToBytes(ctx, views.PreviewPage(h.previewPage(sess.State())))
	if err != nil {
		return "", err
	}
	if kind == export.KindHTML {
		return h.pipeline.ExportHTML(ctx, page, out)
	}
	opts := h.capture
	opts.Progress = func(p int) {
		h.store.PublishExport(sess.ID, sess.Exports.Progress(kind, p))
	}
	return h.pipeline.Capture(ctx, page, out, opts)
}

// stream pushes export status changes of the session as server-sent events.
func (h *SessionHandler) stream(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	sub, unsubscribe, ok := h.store.Subscribe(sess.ID)
	if !ok {
		http.NotFound(w, r)
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for _, st := range sess.Exports.Snapshot() {
		ev := st.Event()
		writeSSE(w, ev.Name, ev.Data)
	}
	flusher.Flush()

	keepAlive := time.NewTicker(25 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub:
			if !ok {
				return
			}
			writeSSE(w, event.Name, event.Data)
			flusher.Flush()
		case <-keepAlive.C:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		}
	}
}
