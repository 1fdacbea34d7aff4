// Package convert turns a decoded pharmacy order message into the message
// that reports an order event (dispense, discontinue, change) downstream.
package convert

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/drfirst/go-rxhl7/internal/hl7/codec"
	"github.com/drfirst/go-rxhl7/internal/hl7/message"
	"github.com/drfirst/go-rxhl7/internal/hl7/provider"
	"github.com/drfirst/go-rxhl7/internal/hl7/segment"
)

var (
	// ErrMissingSourceSegment is returned when a segment the conversion
	// must read or synthesise from is absent.
	ErrMissingSourceSegment = errors.New("missing source segment")
	// ErrNotImplemented is returned for recognised events with no conversion.
	ErrNotImplemented = errors.New("event conversion not implemented")
	// ErrUnknownEvent is returned for events outside the defined set.
	ErrUnknownEvent = errors.New("unknown order event")
)

// Message types written to MSH-9.
const (
	MessageTypeDispense     = "RDS^O13^RDS_O13"
	MessageTypeEncodedOrder = "RDE^O11^RDE_O11"
)

// Order control codes written to ORC-1.
const (
	OrderControlNew         = "NW"
	OrderControlRecord      = "RE"
	OrderControlDiscontinue = "DC"
	OrderControlChange      = "XO"
)

type transition struct {
	messageType  string
	orderControl string
	dispense     bool
}

var transitions = map[Event]transition{
	EventDispense:    {messageType: MessageTypeDispense, orderControl: OrderControlRecord, dispense: true},
	EventDiscontinue: {messageType: MessageTypeEncodedOrder, orderControl: OrderControlDiscontinue},
	EventUpdate:      {messageType: MessageTypeEncodedOrder, orderControl: OrderControlChange},
}

// Converter applies order event transitions to messages.
type Converter struct {
	source provider.Source
	copier message.Copier
	logger *zap.Logger
}

// Option configures a Converter.
type Option func(*Converter)

// WithCopier replaces the strategy used to copy the source message.
func WithCopier(c message.Copier) Option {
	return func(cv *Converter) { cv.copier = c }
}

// NewConverter creates a converter. A nil source uses the system clock.
func NewConverter(source provider.Source, logger *zap.Logger, opts ...Option) *Converter {
	if source == nil {
		source = provider.System()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Converter{source: source, copier: message.CloneCopier{}, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert returns a new message for event. msg is never modified.
func (c *Converter) Convert(msg *message.Message, event Event) (*message.Message, error) {
	t, ok := transitions[event]
	if !ok {
		if event.Defined() {
			return nil, fmt.Errorf("%w: %s", ErrNotImplemented, event)
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, string(event))
	}
	if msg == nil {
		return nil, fmt.Errorf("%w: no message", ErrMissingSourceSegment)
	}
	if msg.MSH == nil {
		return nil, fmt.Errorf("%w: MSH", ErrMissingSourceSegment)
	}
	if msg.ORC == nil {
		return nil, fmt.Errorf("%w: ORC", ErrMissingSourceSegment)
	}

	out, err := c.copier.Copy(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to copy message: %w", err)
	}

	out.MSH.MessageType = t.messageType
	out.MSH.DateTimeOfMessage = codec.FormatDateTime(c.source.Now())
	out.ORC.OrderControl = t.orderControl

	if t.dispense && out.RXD == nil {
		rxd, err := c.synthesizeDispense(out)
		if err != nil {
			return nil, err
		}
		out.RXD = rxd
	}
	return out, nil
}

func (c *Converter) synthesizeDispense(msg *message.Message) (*segment.RXD, error) {
	if msg.RXE == nil {
		return nil, fmt.Errorf("%w: RXD cannot be built without RXE", ErrMissingSourceSegment)
	}

	c.logger.Warn("RXD segment not present, building one from RXE",
		zap.String("message_control_id", msg.MSH.MessageControlID),
		zap.String("give_code", msg.RXE.GiveCode.Identifier),
	)

	code := segment.CodedElement{Identifier: msg.RXE.GiveCode.Identifier, Text: msg.RXE.GiveCode.Text}
	return segment.BuildRXD(c.source, segment.Values{
		"DispenseSubIDCounter": "1",
		"DispenseGiveCode":     code.Encode(),
	})
}
