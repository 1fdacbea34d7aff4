package convert

import "strings"

// Event is an order event that drives a conversion.
type Event string

// Order events. EventUndefined stands in for any unrecognised value.
const (
	EventNew         Event = "ORDER_NEW"
	EventDiscontinue Event = "ORDER_DC"
	EventDispense    Event = "ORDER_DISPENSE"
	EventUpdate      Event = "ORDER_UPDATE"
	EventIgnore      Event = "ORDER_IGNORE"
	EventRefill      Event = "ORDER_REFILL"
	EventHold        Event = "ORDER_HOLD"
	EventResume      Event = "ORDER_RESUME"
	EventUndefined   Event = "UNDEFINED"
)

var aliases = map[string]Event{
	"NEW":         EventNew,
	"DC":          EventDiscontinue,
	"DISCONTINUE": EventDiscontinue,
	"DISPENSE":    EventDispense,
	"UPDATE":      EventUpdate,
	"IGNORE":      EventIgnore,
	"REFILL":      EventRefill,
	"HOLD":        EventHold,
	"RESUME":      EventResume,
}

// Events lists the defined events in declaration order.
func Events() []Event {
	return []Event{EventNew, EventDiscontinue, EventDispense, EventUpdate, EventIgnore, EventRefill, EventHold, EventResume}
}

// ParseEvent maps s to an Event, case-insensitively. Both the ORDER_ names
// and their short forms are accepted. Anything else is EventUndefined.
func ParseEvent(s string) Event {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, e := range Events() {
		if string(e) == s {
			return e
		}
	}
	if e, ok := aliases[s]; ok {
		return e
	}
	return EventUndefined
}

// Defined reports whether e belongs to the closed set of order events.
func (e Event) Defined() bool {
	return ParseEvent(string(e)) == e && e != EventUndefined
}

func (e Event) String() string {
	return string(e)
}

// UnmarshalText never fails; unknown values decode to EventUndefined.
func (e *Event) UnmarshalText(text []byte) error {
	*e = ParseEvent(string(text))
	return nil
}

func (e Event) MarshalText() ([]byte, error) {
	return []byte(e), nil
}
