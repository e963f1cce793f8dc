package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"statusgen/internal/export"
	"statusgen/internal/logx"
	"statusgen/internal/metrics"
	"statusgen/internal/session"
	"statusgen/internal/status"
	"statusgen/internal/viewmodel"
	"statusgen/views"
)

const (
	pageTitle      = "Générateur Statut WhatsApp"
	simulatorSlot  = "simulator-slot"
	maxViewerName  = 64
	uploadOverhead = 1 << 20
)

// SessionHandler serves the editor page and every per-session route.
type SessionHandler struct {
	store     *session.Store
	gen       *status.Generator
	pipeline  *export.Pipeline
	metrics   *metrics.Metrics
	counts    viewmodel.CountFormatter
	capture   export.CaptureOptions
	maxUpload int64
	version   string
}

// SessionOptions configures a SessionHandler.
type SessionOptions struct {
	Counts    viewmodel.CountFormatter
	Capture   export.CaptureOptions
	MaxUpload int64
	Version   string
}

func NewSessionHandler(store *session.Store, gen *status.Generator, pipeline *export.Pipeline, m *metrics.Metrics, opts SessionOptions) *SessionHandler {
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = status.MaxImageBytes
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	return &SessionHandler{
		store:     store,
		gen:       gen,
		pipeline:  pipeline,
		metrics:   m,
		counts:    opts.Counts,
		capture:   opts.Capture,
		maxUpload: opts.MaxUpload,
		version:   opts.Version,
	}
}

// RegisterRoutes mounts the page and the short-lived session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.withSession)
		r.Get("/", h.home)
		r.Get("/session/preview", h.preview)
		r.Post("/session/config", h.updateConfig)
		r.Post("/session/viewers/generate", h.generateViewers)
		r.Post("/session/viewers/clear", h.clearViewers)
		r.Post("/session/viewers/{index}/rename", h.renameViewer)
		r.Post("/session/viewers/{index}/delete", h.deleteViewer)
		r.Post("/session/image", h.uploadImage)
		r.Post("/session/image/delete", h.deleteImage)
	})
}

// RegisterLongRoutes mounts exports and the event stream, which outlive the
// usual request timeout.
func (h *SessionHandler) RegisterLongRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.withSession)
		r.Post("/session/export/png", h.exportPNG)
		r.Post("/session/export/html", h.exportHTML)
		r.Get("/session/events", h.stream)
	})
}

type sessionKey struct{}

func sessionFrom(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionKey{}).(*session.Session)
	return sess
}

func (h *SessionHandler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if cookie, err := r.Cookie(session.CookieName); err == nil {
			id = cookie.Value
		}
		sess, created, err := h.store.Resolve(r.Context(), id)
		if err != nil {
			log := logx.Ctx(r.Context())
			log.Error().Err(err).Msg("resolve session")
			http.Error(w, "session unavailable", http.StatusServiceUnavailable)
			return
		}
		if created {
			setSessionCookie(w, sess.ID)
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		ctx = logx.WithLogger(ctx, logx.Ctx(ctx).With().Str(logx.FieldSession, sess.ID).Logger())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *SessionHandler) workspace(sess *session.Session, state status.State) viewmodel.Workspace {
	return viewmodel.BuildWorkspace(state, string(sess.Pool()), sess.Exports.Snapshot(), h.counts)
}

func (h *SessionHandler) home(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	render(w, r, views.GeneratorPage(viewmodel.GeneratorPage{
		Title:     pageTitle,
		Version:   h.version,
		Workspace: h.workspace(sess, sess.State()),
	}))
}

func (h *SessionHandler) previewPage(state status.State) viewmodel.PreviewPage {
	return viewmodel.PreviewPage{
		Title:     "WhatsApp Status",
		Simulator: viewmodel.BuildSimulator(state, h.counts),
	}
}

func (h *SessionHandler) preview(w http.ResponseWriter, r *http.Request) {
	render(w, r, views.PreviewPage(h.previewPage(sessionFrom(r.Context()).State())))
}

// respond renders the part of the page the request targets: the simulator
// alone for live inputs, the whole workspace otherwise. Plain form posts are
// redirected home.
func (h *SessionHandler) respond(w http.ResponseWriter, r *http.Request, state status.State) {
	sess := sessionFrom(r.Context())
	switch {
	case !isHTMX(r):
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case r.Header.Get("HX-Target") == simulatorSlot:
		render(w, r, views.Simulator(viewmodel.BuildSimulator(state, h.counts)))
	default:
		render(w, r, views.Workspace(h.workspace(sess, state)))
	}
}

func (h *SessionHandler) fail(w http.ResponseWriter, r *http.Request, code int, n notice, err error) {
	log := logx.Ctx(r.Context())
	log.Debug().Err(err).Int(logx.FieldStatus, code).Msg("session update rejected")
	n.Variant = "destructive"
	setNotice(w, n)
	http.Error(w, n.Description, code)
}

// configPatch reads the config fields present in the form.
func configPatch(r *http.Request) status.Patch {
	var p status.Patch
	form := r.PostForm
	if form.Has("viewCount") {
		n, err := strconv.Atoi(strings.TrimSpace(form.Get("viewCount")))
		if err != nil {
			n = 0
		}
		p.ViewCount = &n
	}
	if form.Has("statusType") {
		t := status.Type(form.Get("statusType"))
		p.StatusType = &t
	}
	if form.Has("statusText") {
		text := strings.ReplaceAll(form.Get("statusText"), "\r\n", "\n")
		p.StatusText = &text
	}
	if form.Has("backgroundType") {
		bg := form.Get("backgroundType")
		p.BackgroundType = &bg
	}
	if form.Has("viewFormat") {
		f := form.Get("viewFormat")
		p.ViewFormat = &f
	}
	return p
}

func (h *SessionHandler) updateConfig(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	sess := sessionFrom(r.Context())
	patch := configPatch(r)
	state, err := h.store.Update(r.Context(), sess, func(s status.State) (status.State, error) {
		cfg, err := s.Config.Apply(patch)
		if err != nil {
			return s, err
		}
		return s.WithConfig(cfg), nil
	})
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, notice{Title: "Erreur", Description: "Valeur invalide."}, err)
		return
	}
	h.respond(w, r, state)
}

func (h *SessionHandler) generateViewers(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	sess := sessionFrom(r.Context())
	pool := r.PostForm.Get("type")
	if !status.ValidPool(pool) {
		pool = string(status.PoolFrench)
	}
	sess.SetPool(pool)

	var generated int
	state, err := h.store.Update(r.Context(), sess, func(s status.State) (status.State, error) {
		viewers := h.gen.Generate(status.GenerateCount(s.Config.ViewCount), pool)
		generated = len(viewers)
		return s.ReplaceViewers(viewers), nil
	})
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, notice{Title: "Erreur", Description: "Impossible de générer les noms. Veuillez réessayer."}, err)
		return
	}
	h.metrics.ViewersGenerated(pool, generated)
	setNotice(w, notice{Title: "Noms générés", Description: fmt.Sprintf("%d noms ont été générés avec succès.", generated)})
	h.respond(w, r, state)
}

func (h *SessionHandler) clearViewers(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	state, err := h.store.Update(r.Context(), sess, func(s status.State) (status.State, error) {
		return s.ClearViewers(), nil
	})
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, notice{Title: "Erreur", Description: "Impossible de vider la liste."}, err)
		return
	}
	h.respond(w, r, state)
}

func viewerIndex(r *http.Request) (int, error) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", status.ErrViewerIndex, chi.URLParam(r, "index"))
	}
	return i, nil
}

func (h *SessionHandler) renameViewer(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	i, err := viewerIndex(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	name := r.PostForm.Get("name")
	if runes := []rune(name); len(runes) > maxViewerName {
		name = string(runes[:maxViewerName])
	}
	sess := sessionFrom(r.Context())
	state, err := h.store.Update(r.Context(), sess, func(s status.State) (status.State, error) {
		return s.RenameViewer(i, name)
	})
	if errors.Is(err, status.ErrViewerIndex) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, notice{Title: "Erreur", Description: "Impossible de renommer."}, err)
		return
	}
	h.respond(w, r, state)
}

func (h *SessionHandler) deleteViewer(w http.ResponseWriter, r *http.Request) {
	i, err := viewerIndex(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	sess := sessionFrom(r.Context())
	state, err := h.store.Update(r.Context(), sess, func(s status.State) (status.State, error) {
		return s.RemoveViewer(i)
	})
	if errors.Is(err, status.ErrViewerIndex) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, notice{Title: "Erreur", Description: "Impossible de retirer ce spectateur."}, err)
		return
	}
	h.respond(w, r, state)
}

func (h *SessionHandler) uploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+uploadOverhead)
	tooLarge := notice{Title: "Fichier trop volumineux", Description: "L'image ne doit pas dépasser 5 MB."}
	if err := r.ParseMultipartForm(h.maxUpload + uploadOverhead); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.fail(w, r, http.StatusRequestEntityTooLarge, tooLarge, err)
			return
		}
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "image required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	upload, err := status.ProcessImage(file, header.Filename, h.maxUpload)
	switch {
	case errors.Is(err, status.ErrImageTooLarge):
		h.fail(w, r, http.StatusRequestEntityTooLarge, tooLarge, err)
		return
	case err != nil:
		h.fail(w, r, http.StatusUnprocessableEntity, notice{Title: "Image illisible", Description: "Ce fichier n'est pas une image valide."}, err)
		return
	}

	sess := sessionFrom(r.Context())
	state, err := h.store.Update(r.Context(), sess, func(s status.State) (status.State, error) {
		cfg, err := s.Config.Apply(upload.Patch())
		if err != nil {
			return s, err
		}
		return s.WithConfig(cfg), nil
	})
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, notice{Title: "Erreur", Description: "Impossible d'ajouter l'image."}, err)
		return
	}
	setNotice(w, notice{Title: "Image uploadée", Description: "L'image a été ajoutée au statut."})
	h.respond(w, r, state)
}

func (h *SessionHandler) deleteImage(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	state, err := h.store.Update(r.Context(), sess, func(s status.State) (status.State, error) {
		cfg, err := s.Config.Apply(status.Patch{ClearImage: true})
		if err != nil {
			return s, err
		}
		return s.WithConfig(cfg), nil
	})
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, notice{Title: "Erreur", Description: "Impossible de retirer l'image."}, err)
		return
	}
	setNotice(w, notice{Title: "Image supprimée", Description: "L'image a été retirée du statut."})
	h.respond(w, r, state)
}
