package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/drfirst/go-rxhl7/internal/domain/conversion"
)

// ConversionHandler serves the conversion read model.
type ConversionHandler struct {
	service ConversionService
	logger  *zap.Logger
}

// NewConversionHandler creates a new handler
func NewConversionHandler(service ConversionService, logger *zap.Logger) *ConversionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversionHandler{service: service, logger: logger}
}

// Routes returns the handler routes
func (h *ConversionHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{id}", h.Get)
	r.Get("/{id}/events", h.GetEvents)
	return r
}

// Get handles GET /conversions/{id}
func (h *ConversionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.lookupError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, rec.Snapshot())
}

// GetEvents handles GET /conversions/{id}/events
func (h *ConversionHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	events, err := h.service.Events(r.Context(), id)
	if err != nil {
		h.lookupError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"conversion_id": id,
		"events":        events,
	})
}

func (h *ConversionHandler) lookupError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, conversion.ErrNotFound) {
		jsonError(w, "conversion not found", http.StatusNotFound)
		return
	}
	h.logger.Error("failed to load conversion", zap.String("conversion_id", id), zap.Error(err))
	jsonError(w, "failed to load conversion", http.StatusInternalServerError)
}
