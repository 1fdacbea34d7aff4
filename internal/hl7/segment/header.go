package segment

import "github.com/drfirst/go-rxhl7/internal/hl7/codec"

// MSH is the message header.
type MSH struct {
	SendingApplication   string `json:"sendingApplication,omitempty"`
	SendingFacility      string `json:"sendingFacility,omitempty"`
	ReceivingApplication string `json:"receivingApplication,omitempty"`
	ReceivingFacility    string `json:"receivingFacility,omitempty"`
	DateTimeOfMessage    string `json:"dateTimeOfMessage,omitempty"`
	MessageType          string `json:"messageType,omitempty"`
	MessageControlID     string `json:"messageControlId,omitempty"`
	VersionID            string `json:"versionId,omitempty"`
}

var mshSchema = &Schema[MSH]{
	Tag:   TagMSH,
	Width: 21,
	Fields: []Field[MSH]{
		Literal[MSH](1, codec.EncodingCharacters),
		Text(2, "SendingApplication", func(m *MSH) *string { return &m.SendingApplication }).Require(),
		Text(3, "SendingFacility", func(m *MSH) *string { return &m.SendingFacility }),
		Text(4, "ReceivingApplication", func(m *MSH) *string { return &m.ReceivingApplication }),
		Text(5, "ReceivingFacility", func(m *MSH) *string { return &m.ReceivingFacility }).Require(),
		Text(6, "DateTimeOfMessage", func(m *MSH) *string { return &m.DateTimeOfMessage }).WithDefault(now),
		Text(8, "MessageType", func(m *MSH) *string { return &m.MessageType }).Require(),
		Text(9, "MessageControlID", func(m *MSH) *string { return &m.MessageControlID }).WithDefault(digits(7)),
		Literal[MSH](10, "P"),
		Text(11, "VersionID", func(m *MSH) *string { return &m.VersionID }).WithDefault(constant("2.5")),
		Literal[MSH](17, "ASCII"),
	},
}

func (*MSH) Tag() string      { return TagMSH }
func (m *MSH) Encode() string { return mshSchema.Encode(m) }
