package segment

import "github.com/drfirst/go-rxhl7/internal/hl7/codec"

// Composite is implemented by the composite data types carried in a field.
type Composite interface {
	Components() []string
	SetComponents(components []string)
}

// CodedElement is the CE data type (identifier^text^coding system).
type CodedElement struct {
	Identifier   string `json:"identifier,omitempty"`
	Text         string `json:"text,omitempty"`
	CodingSystem string `json:"codingSystem,omitempty"`
}

// Components returns the components in wire order.
func (c *CodedElement) Components() []string {
	return []string{c.Identifier, c.Text, c.CodingSystem}
}

// SetComponents assigns components in wire order; missing ones become blank.
func (c *CodedElement) SetComponents(v []string) {
	c.Identifier = codec.ComponentAt(v, 0)
	c.Text = codec.ComponentAt(v, 1)
	c.CodingSystem = codec.ComponentAt(v, 2)
}

// IsEmpty reports whether every component is blank.
func (c CodedElement) IsEmpty() bool {
	return codec.IsBlank(c.Identifier, c.Text, c.CodingSystem)
}

// PersonName is the XPN data type, limited to family and given name.
type PersonName struct {
	FamilyName string `json:"familyName,omitempty"`
	GivenName  string `json:"givenName,omitempty"`
}

// Components returns the components in wire order.
func (n *PersonName) Components() []string {
	return []string{n.FamilyName, n.GivenName}
}

// SetComponents assigns components in wire order; missing ones become blank.
func (n *PersonName) SetComponents(v []string) {
	n.FamilyName = codec.ComponentAt(v, 0)
	n.GivenName = codec.ComponentAt(v, 1)
}

// IsEmpty reports whether every component is blank.
func (n PersonName) IsEmpty() bool {
	return codec.IsBlank(n.FamilyName, n.GivenName)
}

// ProviderName is the XCN data type (id^family^given).
type ProviderName struct {
	IDNumber   string `json:"idNumber,omitempty"`
	FamilyName string `json:"familyName,omitempty"`
	GivenName  string `json:"givenName,omitempty"`
}

// Components returns the components in wire order.
func (p *ProviderName) Components() []string {
	return []string{p.IDNumber, p.FamilyName, p.GivenName}
}

// SetComponents assigns components in wire order; missing ones become blank.
func (p *ProviderName) SetComponents(v []string) {
	p.IDNumber = codec.ComponentAt(v, 0)
	p.FamilyName = codec.ComponentAt(v, 1)
	p.GivenName = codec.ComponentAt(v, 2)
}

// IsEmpty reports whether every component is blank.
func (p ProviderName) IsEmpty() bool {
	return codec.IsBlank(p.IDNumber, p.FamilyName, p.GivenName)
}

// TimingQuantity is the TQ data type carried in ORC-7.
type TimingQuantity struct {
	Quantity      string `json:"quantity,omitempty"`
	Interval      string `json:"interval,omitempty"`
	Duration      string `json:"duration,omitempty"`
	StartDateTime string `json:"startDateTime,omitempty"`
	EndDateTime   string `json:"endDateTime,omitempty"`
	Priority      string `json:"priority,omitempty"`
}

// Components returns the components in wire order.
func (q *TimingQuantity) Components() []string {
	return []string{q.Quantity, q.Interval, q.Duration, q.StartDateTime, q.EndDateTime, q.Priority}
}

// SetComponents assigns components in wire order; missing ones become blank.
func (q *TimingQuantity) SetComponents(v []string) {
	q.Quantity = codec.ComponentAt(v, 0)
	q.Interval = codec.ComponentAt(v, 1)
	q.Duration = codec.ComponentAt(v, 2)
	q.StartDateTime = codec.ComponentAt(v, 3)
	q.EndDateTime = codec.ComponentAt(v, 4)
	q.Priority = codec.ComponentAt(v, 5)
}

// IsEmpty reports whether every component is blank.
func (q TimingQuantity) IsEmpty() bool {
	return codec.IsBlank(q.Components()...)
}

// Location is the PL data type (point of care^room^bed^facility).
type Location struct {
	PointOfCare string `json:"pointOfCare,omitempty"`
	Room        string `json:"room,omitempty"`
	Bed         string `json:"bed,omitempty"`
	Facility    string `json:"facility,omitempty"`
}

// Components returns the components in wire order.
func (l *Location) Components() []string {
	return []string{l.PointOfCare, l.Room, l.Bed, l.Facility}
}

// SetComponents assigns components in wire order; missing ones become blank.
func (l *Location) SetComponents(v []string) {
	l.PointOfCare = codec.ComponentAt(v, 0)
	l.Room = codec.ComponentAt(v, 1)
	l.Bed = codec.ComponentAt(v, 2)
	l.Facility = codec.ComponentAt(v, 3)
}

// IsEmpty reports whether every component is blank.
func (l Location) IsEmpty() bool {
	return codec.IsBlank(l.Components()...)
}

// Encode renders the element with trailing blank components trimmed.
func (c CodedElement) Encode() string {
	return codec.EncodeComposite(c.Identifier, c.Text, c.CodingSystem)
}
