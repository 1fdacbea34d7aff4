package conversion

import (
	"encoding/json"
	"errors"
	"time"
)

// Status represents where a conversion stands.
type Status string

const (
	StatusNew       Status = "new"
	StatusReceived  Status = "received"
	StatusConverted Status = "converted"
	StatusFailed    Status = "failed"
	StatusPublished Status = "published"
)

// Record is the conversion aggregate root. It tracks one inbound message from
// receipt to publication of the converted message.
type Record struct {
	id           string
	version      int
	status       Status
	controlID    string
	orderEvent   string
	messageType  string
	sourceHash   string
	orderControl string
	output       string
	failReason   string
	topic        string
	createdAt    time.Time
	updatedAt    time.Time
	changes      []*Event
}

// NewRecord creates an empty record with the given id.
func NewRecord(id string) *Record {
	now := timeNow().UTC()
	return &Record{
		id:        id,
		status:    StatusNew,
		createdAt: now,
		updatedAt: now,
	}
}

func (r *Record) ID() string           { return r.id }
func (r *Record) Version() int         { return r.version }
func (r *Record) Status() Status       { return r.status }
func (r *Record) ControlID() string    { return r.controlID }
func (r *Record) OrderEvent() string   { return r.orderEvent }
func (r *Record) Output() string       { return r.output }
func (r *Record) FailReason() string   { return r.failReason }
func (r *Record) Topic() string        { return r.topic }
func (r *Record) UpdatedAt() time.Time { return r.updatedAt }

// Changes returns uncommitted events
func (r *Record) Changes() []*Event { return r.changes }

// ClearChanges clears uncommitted events
func (r *Record) ClearChanges() { r.changes = nil }

// Receive records acceptance of an inbound message.
func (r *Record) Receive(data *ReceivedData, correlationID string) error {
	if r.status != StatusNew {
		return errors.New("conversion already received")
	}
	data.ConversionID = r.id
	return r.raise(EventConversionReceived, data, correlationID)
}

// Complete records a successful conversion.
func (r *Record) Complete(data *ConvertedData) error {
	if r.status != StatusReceived {
		return errors.New("conversion not in received state")
	}
	data.ConversionID = r.id
	return r.raise(EventMessageConverted, data, "")
}

// Fail records a rejected conversion.
func (r *Record) Fail(reason, detail string) error {
	if r.status != StatusReceived {
		return errors.New("conversion not in received state")
	}
	return r.raise(EventConversionFailed, &FailedData{ConversionID: r.id, Reason: reason, Detail: detail}, "")
}

// MarkPublished records delivery of the converted message to topic.
func (r *Record) MarkPublished(topic string) error {
	if r.status != StatusConverted {
		return errors.New("conversion not converted")
	}
	return r.raise(EventConversionPublished, &PublishedData{
		ConversionID: r.id,
		Topic:        topic,
		PublishedAt:  timeNow().UTC(),
	}, "")
}

func (r *Record) raise(eventType EventType, data interface{}, correlationID string) error {
	event, err := NewEvent(r.id, eventType, data)
	if err != nil {
		return err
	}
	event.WithCorrelation(correlationID, r.controlID, r.orderEvent)
	if err := r.apply(event); err != nil {
		return err
	}
	r.changes = append(r.changes, event)
	return nil
}

func (r *Record) apply(event *Event) error {
	r.version++
	r.updatedAt = event.Timestamp

	switch event.EventType {
	case EventConversionReceived:
		var data ReceivedData
		if err := json.Unmarshal(event.EventData, &data); err != nil {
			return err
		}
		r.status = StatusReceived
		r.controlID = data.ControlID
		r.orderEvent = data.OrderEvent
		r.messageType = data.MessageType
		r.sourceHash = data.SourceHash
		event.ControlID = data.ControlID
		event.OrderEvent = data.OrderEvent
	case EventMessageConverted:
		var data ConvertedData
		if err := json.Unmarshal(event.EventData, &data); err != nil {
			return err
		}
		r.status = StatusConverted
		r.messageType = data.MessageType
		r.orderControl = data.OrderControl
		r.output = data.Output
	case EventConversionFailed:
		var data FailedData
		if err := json.Unmarshal(event.EventData, &data); err != nil {
			return err
		}
		r.status = StatusFailed
		r.failReason = data.Reason
	case EventConversionPublished:
		var data PublishedData
		if err := json.Unmarshal(event.EventData, &data); err != nil {
			return err
		}
		r.status = StatusPublished
		r.topic = data.Topic
	}
	return nil
}

// LoadFromHistory rebuilds state from stored events.
func (r *Record) LoadFromHistory(events []*Event) error {
	for _, event := range events {
		if err := r.apply(event); err != nil {
			return err
		}
	}
	if len(events) > 0 {
		r.createdAt = events[0].Timestamp
	}
	return nil
}

// Snapshot is the read model returned by the API.
type Snapshot struct {
	ID           string    `json:"id"`
	Status       Status    `json:"status"`
	Version      int       `json:"version"`
	ControlID    string    `json:"control_id"`
	OrderEvent   string    `json:"order_event"`
	MessageType  string    `json:"message_type,omitempty"`
	OrderControl string    `json:"order_control,omitempty"`
	SourceHash   string    `json:"source_hash,omitempty"`
	Output       string    `json:"output,omitempty"`
	FailReason   string    `json:"fail_reason,omitempty"`
	Topic        string    `json:"topic,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Snapshot returns the current state as a read model.
func (r *Record) Snapshot() Snapshot {
	return Snapshot{
		ID:           r.id,
		Status:       r.status,
		Version:      r.version,
		ControlID:    r.controlID,
		OrderEvent:   r.orderEvent,
		MessageType:  r.messageType,
		OrderControl: r.orderControl,
		SourceHash:   r.sourceHash,
		Output:       r.output,
		FailReason:   r.failReason,
		Topic:        r.topic,
		CreatedAt:    r.createdAt,
		UpdatedAt:    r.updatedAt,
	}
}
