// Package handlers provides HTTP handlers for the conversion API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/drfirst/go-rxhl7/internal/api/middleware"
	"github.com/drfirst/go-rxhl7/internal/domain/conversion"
	"github.com/drfirst/go-rxhl7/internal/hl7/convert"
	"github.com/drfirst/go-rxhl7/internal/hl7/message"
	"github.com/drfirst/go-rxhl7/internal/hl7/segment"
	"github.com/drfirst/go-rxhl7/internal/observability/metrics"
	"github.com/drfirst/go-rxhl7/pkg/idempotency"
)

// ConversionService is the part of conversion.Service the API uses.
type ConversionService interface {
	Convert(ctx context.Context, req conversion.Request) (*conversion.Result, error)
	Get(ctx context.Context, id string) (*conversion.Record, error)
	Events(ctx context.Context, id string) ([]*conversion.Event, error)
}

// MessageHandler serves the stateless codec endpoints and conversion.
type MessageHandler struct {
	service ConversionService
	replay  *ReplayCache
	metrics *metrics.Metrics
	logger  *zap.Logger
	tracer  trace.Tracer
}

// NewMessageHandler creates a new handler. replay may be nil to disable
// replay detection.
func NewMessageHandler(service ConversionService, replay *ReplayCache, m *metrics.Metrics, logger *zap.Logger) *MessageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageHandler{
		service: service,
		replay:  replay,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("message-handler"),
	}
}

// Routes returns the handler routes
func (h *MessageHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentType(middleware.HL7MediaTypes...))
		r.Post("/parse", h.Parse)
		r.Post("/convert", h.Convert)
		r.Post("/instructions", h.Instructions)
	})
	r.With(middleware.ContentType("application/json")).Post("/encode", h.Encode)
	return r
}

// ParseResponse describes a decoded message.
type ParseResponse struct {
	ControlID   string           `json:"control_id"`
	MessageType string           `json:"message_type"`
	Segments    []string         `json:"segments"`
	Schedules   int              `json:"schedules"`
	Message     *message.Message `json:"message"`
}

// Parse handles POST /messages/parse
func (h *MessageHandler) Parse(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.readBody(w, r)
	if !ok {
		return
	}

	msg, err := message.Decode(raw)
	if err != nil {
		h.writeConversionError(w, r, "", err)
		return
	}

	resp := ParseResponse{Message: msg, Schedules: len(msg.TQ1)}
	if msg.MSH != nil {
		resp.ControlID = msg.MSH.MessageControlID
		resp.MessageType = msg.MSH.MessageType
	}
	for _, seg := range msg.Segments() {
		resp.Segments = append(resp.Segments, seg.Tag())
	}
	writeJSON(w, http.StatusOK, resp)
}

// Encode handles POST /messages/encode. The body is a JSON message and the
// response is its canonical HL7 text.
func (h *MessageHandler) Encode(w http.ResponseWriter, r *http.Request) {
	var msg message.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(msg.Segments()) == 0 {
		jsonError(w, message.ErrEmptyMessage.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/hl7-v2")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, msg.Encode())
}

// InstructionsResponse carries the schedule instruction text of a message.
type InstructionsResponse struct {
	MultiSchedule bool   `json:"multi_schedule"`
	Instructions  string `json:"instructions"`
}

// Instructions handles POST /messages/instructions?delimiter=. Multi-schedule
// messages join every schedule's text with delimiter (default "; ").
func (h *MessageHandler) Instructions(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.readBody(w, r)
	if !ok {
		return
	}

	msg, err := message.Decode(raw)
	if err != nil {
		h.writeConversionError(w, r, "", err)
		return
	}

	multi, err := msg.IsMultiSchedule()
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	var text string
	if multi {
		delimiter := "; "
		if q := r.URL.Query(); q.Has("delimiter") {
			delimiter = q.Get("delimiter")
		}
		text, err = msg.JoinScheduleInstructions(delimiter)
	} else {
		text, err = msg.SingleScheduleInstructions()
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	writeJSON(w, http.StatusOK, InstructionsResponse{MultiSchedule: multi, Instructions: text})
}

// Convert handles POST /messages/convert?event=
func (h *MessageHandler) Convert(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "convert_message")
	defer span.End()

	raw, ok := h.readBody(w, r)
	if !ok {
		return
	}

	event := convert.ParseEvent(r.URL.Query().Get("event"))
	if !event.Defined() {
		jsonError(w, "event must be one of the ORDER_* values", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("hl7.event", event.String()))

	key := idempotency.GenerateKey(message.PeekControlID(raw), event.String(), []byte(raw))
	if res, hit := h.replay.Get(key); hit {
		if h.metrics != nil {
			h.metrics.ReplayCacheHits.Inc()
		}
		span.SetAttributes(attribute.Bool("replay", true))
		w.Header().Set("X-Replay", "true")
		writeJSON(w, http.StatusOK, res)
		return
	}

	res, err := h.service.Convert(ctx, conversion.Request{
		Raw:           raw,
		Event:         event,
		CorrelationID: middleware.GetRequestID(ctx),
	})
	if err != nil {
		id := ""
		if res != nil {
			id = res.ConversionID
		}
		span.RecordError(err)
		h.writeConversionError(w, r, id, err)
		return
	}

	h.replay.Put(key, res)
	writeJSON(w, http.StatusCreated, res)
}

func (h *MessageHandler) readBody(w http.ResponseWriter, r *http.Request) (string, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return "", false
		}
		jsonError(w, "failed to read request body", http.StatusBadRequest)
		return "", false
	}
	return string(body), true
}

func (h *MessageHandler) writeConversionError(w http.ResponseWriter, r *http.Request, conversionID string, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("conversion failed",
			zap.String("conversion_id", conversionID),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		writeJSON(w, status, ErrorResponse{Error: "internal server error", ConversionID: conversionID})
		return
	}
	writeJSON(w, status, ErrorResponse{
		Error:        err.Error(),
		Reason:       conversion.Reason(err),
		ConversionID: conversionID,
	})
}

// StatusFor maps a decode or conversion error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, message.ErrEmptyMessage),
		errors.Is(err, segment.ErrUnsupportedSegment),
		errors.Is(err, segment.ErrSegmentTagMismatch),
		errors.Is(err, convert.ErrUnknownEvent):
		return http.StatusBadRequest
	case errors.Is(err, segment.ErrMissingRequiredField),
		errors.Is(err, convert.ErrMissingSourceSegment):
		return http.StatusUnprocessableEntity
	case errors.Is(err, convert.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, conversion.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
