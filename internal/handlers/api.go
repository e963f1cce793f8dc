package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"statusgen/internal/logx"
	"statusgen/internal/metrics"
	"statusgen/internal/status"
)

const maxAPIBody = 1 << 20

// GenerateNamesRequest is the body of POST /api/generate-names.
type GenerateNamesRequest struct {
	Count int    `json:"count" validate:"required,min=1,max=50"`
	Type  string `json:"type" validate:"required,oneof=french creole international mixed"`
}

var errNotWhole = errors.New("count must be a whole number")

// wholeNumber accepts any JSON number with an integral value, so 3 and 3.0
// both decode to 3.
type wholeNumber int

func (n *wholeNumber) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return errNotWhole
	}
	*n = wholeNumber(f)
	return nil
}

func (r *GenerateNamesRequest) UnmarshalJSON(b []byte) error {
	var raw struct {
		Count wholeNumber `json:"count"`
		Type  string      `json:"type"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.Count, r.Type = int(raw.Count), raw.Type
	return nil
}

// GenerateNamesResponse is the success body of POST /api/generate-names.
type GenerateNamesResponse struct {
	Names []status.Viewer `json:"names"`
}

type errorResponse struct {
	Error string `json:"error"`
}

var errInvalidRequest = errorResponse{Error: "Invalid request parameters"}

type APIHandler struct {
	gen      *status.Generator
	metrics  *metrics.Metrics
	validate *validator.Validate
}

func NewAPIHandler(gen *status.Generator, m *metrics.Metrics) *APIHandler {
	return &APIHandler{
		gen:      gen,
		metrics:  m,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *APIHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/generate-names", h.generateNames)
}

func (h *APIHandler) generateNames(w http.ResponseWriter, r *http.Request) {
	var req GenerateNamesRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAPIBody))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errInvalidRequest)
		return
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errInvalidRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log := logx.Ctx(r.Context())
		log.Debug().Err(err).Msg("generate-names rejected")
		writeJSON(w, http.StatusBadRequest, errInvalidRequest)
		return
	}

	viewers := h.gen.Generate(req.Count, req.Type)
	h.metrics.ViewersGenerated(req.Type, len(viewers))
	writeJSON(w, http.StatusOK, GenerateNamesResponse{Names: viewers})
}
