// Package conversion implements the conversion record aggregate, its domain
// events and the service that decodes, converts and persists HL7 orders.
package conversion

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of domain event
type EventType string

const (
	EventConversionReceived  EventType = "ConversionReceived"
	EventMessageConverted    EventType = "MessageConverted"
	EventConversionFailed    EventType = "ConversionFailed"
	EventConversionPublished EventType = "ConversionPublished"
)

// AggregateType is stored with every event of a conversion record.
const AggregateType = "Conversion"

var timeNow = time.Now

// Event represents a domain event
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     EventType       `json:"event_type"`
	EventData     json.RawMessage `json:"event_data"`
	Version       int             `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	ControlID     string          `json:"control_id,omitempty"`
	OrderEvent    string          `json:"order_event,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// NewEvent creates a new event
func NewEvent(aggregateID string, eventType EventType, data interface{}) (*Event, error) {
	eventData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: AggregateType,
		EventType:     eventType,
		EventData:     eventData,
		Timestamp:     timeNow().UTC(),
	}, nil
}

// ReceivedData describes an inbound message accepted for conversion.
type ReceivedData struct {
	ConversionID string `json:"conversion_id"`
	ControlID    string `json:"control_id"`
	MessageType  string `json:"message_type"`
	OrderEvent   string `json:"order_event"`
	SourceHash   string `json:"source_hash"`
	SegmentCount int    `json:"segment_count"`
	Schedules    int    `json:"schedules"`
}

// ConvertedData describes a successful conversion.
type ConvertedData struct {
	ConversionID        string `json:"conversion_id"`
	MessageType         string `json:"message_type"`
	OrderControl        string `json:"order_control"`
	Output              string `json:"output"`
	SynthesizedDispense bool   `json:"synthesized_dispense,omitempty"`
}

// FailedData describes a rejected conversion.
type FailedData struct {
	ConversionID string `json:"conversion_id"`
	Reason       string `json:"reason"`
	Detail       string `json:"detail"`
}

// PublishedData records delivery of the converted message.
type PublishedData struct {
	ConversionID string    `json:"conversion_id"`
	Topic        string    `json:"topic"`
	PublishedAt  time.Time `json:"published_at"`
}

// WithCorrelation sets the correlation id and order context.
func (e *Event) WithCorrelation(correlationID, controlID, orderEvent string) *Event {
	e.CorrelationID = correlationID
	e.ControlID = controlID
	e.OrderEvent = orderEvent
	return e
}
