package conversion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/drfirst/go-rxhl7/internal/hl7/convert"
	"github.com/drfirst/go-rxhl7/internal/hl7/message"
	"github.com/drfirst/go-rxhl7/internal/hl7/segment"
	"github.com/drfirst/go-rxhl7/internal/infrastructure/postgres"
	"github.com/drfirst/go-rxhl7/internal/observability/metrics"
)

// Record headers carried with every converted message.
const (
	HeaderEvent        = "hl7-event"
	HeaderConversionID = "conversion-id"
)

// Request is a message submitted for conversion.
type Request struct {
	// ID is the conversion id. A random UUID is used when empty.
	ID            string
	Raw           string
	Event         convert.Event
	CorrelationID string
}

// Result is the outcome of a conversion.
type Result struct {
	ConversionID        string           `json:"conversion_id"`
	ControlID           string           `json:"control_id"`
	Event               convert.Event    `json:"event"`
	Message             *message.Message `json:"-"`
	Output              string           `json:"message"`
	SynthesizedDispense bool             `json:"synthesized_dispense,omitempty"`
}

// OutboundPayload is the JSON value published for each converted message.
type OutboundPayload struct {
	ConversionID string        `json:"conversion_id"`
	Event        convert.Event `json:"event"`
	ControlID    string        `json:"control_id"`
	Message      string        `json:"message"`
}

// Service decodes, converts and persists messages. It is shared by the HTTP
// API and the streaming worker.
type Service struct {
	store     Store
	converter *convert.Converter
	metrics   *metrics.Metrics
	topic     string
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewService creates a conversion service publishing to outboundTopic.
func NewService(store Store, converter *convert.Converter, m *metrics.Metrics, outboundTopic string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if converter == nil {
		converter = convert.NewConverter(nil, logger)
	}
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}
	return &Service{
		store:     store,
		converter: converter,
		metrics:   m,
		topic:     outboundTopic,
		logger:    logger,
		tracer:    otel.Tracer("conversion"),
	}
}

// Convert runs a conversion and records its outcome. When the message is
// rejected the failure is persisted and the returned Result still carries the
// conversion id alongside the error.
func (s *Service) Convert(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	ctx, span := s.tracer.Start(ctx, "conversion_convert",
		trace.WithAttributes(
			attribute.String("conversion_id", req.ID),
			attribute.String("hl7.event", req.Event.String()),
		))
	defer span.End()
	defer func() {
		s.metrics.ConversionDuration.Observe(time.Since(start).Seconds())
	}()

	label := eventLabel(req.Event)
	res := &Result{ConversionID: req.ID, Event: req.Event}
	rec := NewRecord(req.ID)

	msg, decodeErr := message.Decode(req.Raw)
	received := &ReceivedData{
		OrderEvent: req.Event.String(),
		SourceHash: HashBody(req.Raw),
	}
	if decodeErr == nil {
		s.metrics.MessagesDecoded.Inc()
		received.SegmentCount = len(msg.Segments())
		received.Schedules = len(msg.TQ1)
		if msg.MSH != nil {
			received.ControlID = msg.MSH.MessageControlID
			received.MessageType = msg.MSH.MessageType
		}
	} else {
		s.metrics.DecodeFailures.WithLabelValues(Reason(decodeErr)).Inc()
	}
	res.ControlID = received.ControlID
	span.SetAttributes(attribute.String("hl7.control_id", received.ControlID))

	if err := rec.Receive(received, req.CorrelationID); err != nil {
		return nil, err
	}

	convErr := decodeErr
	var out *message.Message
	if convErr == nil {
		out, convErr = s.converter.Convert(msg, req.Event)
	}

	if convErr != nil {
		reason := Reason(convErr)
		s.metrics.Conversions.WithLabelValues(label, reason).Inc()
		span.RecordError(convErr)
		span.SetStatus(codes.Error, reason)

		if err := rec.Fail(reason, convErr.Error()); err != nil {
			return nil, err
		}
		if err := s.store.Save(ctx, rec); err != nil {
			return nil, fmt.Errorf("save failed conversion: %w", err)
		}
		s.logger.Info("conversion rejected",
			zap.String("conversion_id", req.ID),
			zap.String("control_id", received.ControlID),
			zap.String("event", req.Event.String()),
			zap.String("reason", reason),
			zap.Error(convErr))
		return res, convErr
	}

	res.Message = out
	res.Output = out.Encode()
	res.SynthesizedDispense = msg.RXD == nil && out.RXD != nil

	if err := rec.Complete(&ConvertedData{
		MessageType:         out.MSH.MessageType,
		OrderControl:        out.ORC.OrderControl,
		Output:              res.Output,
		SynthesizedDispense: res.SynthesizedDispense,
	}); err != nil {
		return nil, err
	}

	entry, err := s.outboxEntry(ctx, res)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, rec, entry); err != nil {
		s.metrics.Conversions.WithLabelValues(label, "internal").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("save conversion: %w", err)
	}

	s.metrics.Conversions.WithLabelValues(label, "converted").Inc()
	s.logger.Info("message converted",
		zap.String("conversion_id", req.ID),
		zap.String("control_id", res.ControlID),
		zap.String("event", req.Event.String()),
		zap.String("message_type", out.MSH.MessageType),
		zap.Bool("synthesized_dispense", res.SynthesizedDispense))
	return res, nil
}

func (s *Service) outboxEntry(ctx context.Context, res *Result) (*postgres.OutboxEntry, error) {
	payload, err := json.Marshal(OutboundPayload{
		ConversionID: res.ConversionID,
		Event:        res.Event,
		ControlID:    res.ControlID,
		Message:      res.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal outbound payload: %w", err)
	}

	headers := map[string]string{
		HeaderEvent:        res.Event.String(),
		HeaderConversionID: res.ConversionID,
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(headers))

	return &postgres.OutboxEntry{
		AggregateID:   res.ConversionID,
		AggregateType: AggregateType,
		EventType:     string(EventMessageConverted),
		Payload:       payload,
		KafkaTopic:    s.topic,
		KafkaKey:      res.ControlID,
		Headers:       headers,
	}, nil
}

// MarkPublished records that the converted message for id reached topic.
func (s *Service) MarkPublished(ctx context.Context, id, topic string) error {
	rec, err := s.store.Load(ctx, id)
	if err != nil {
		return err
	}
	if rec.Status() == StatusPublished {
		return nil
	}
	if err := rec.MarkPublished(topic); err != nil {
		return err
	}
	return s.store.Save(ctx, rec)
}

// Get returns the current state of a conversion.
func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	return s.store.Load(ctx, id)
}

// Events returns the event history of a conversion.
func (s *Service) Events(ctx context.Context, id string) ([]*Event, error) {
	events, err := s.store.GetEvents(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return events, nil
}

func eventLabel(e convert.Event) string {
	if e.Defined() {
		return e.String()
	}
	return convert.EventUndefined.String()
}

// HashBody returns the hex SHA-256 of a raw message.
func HashBody(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Reason classifies a conversion error for metrics and failure events.
func Reason(err error) string {
	switch {
	case err == nil:
		return "converted"
	case errors.Is(err, message.ErrEmptyMessage):
		return "empty_message"
	case errors.Is(err, segment.ErrUnsupportedSegment):
		return "unsupported_segment"
	case errors.Is(err, segment.ErrSegmentTagMismatch):
		return "tag_mismatch"
	case errors.Is(err, segment.ErrMissingRequiredField):
		return "missing_required_field"
	case errors.Is(err, convert.ErrMissingSourceSegment):
		return "missing_source_segment"
	case errors.Is(err, convert.ErrNotImplemented):
		return "not_implemented"
	case errors.Is(err, convert.ErrUnknownEvent):
		return "unknown_event"
	default:
		return "internal"
	}
}

// IsRejection reports whether err was caused by the submitted message or
// event rather than by infrastructure. Rejections must not be retried.
func IsRejection(err error) bool {
	return err != nil && Reason(err) != "internal"
}
