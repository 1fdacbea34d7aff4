package message

import (
	"encoding/json"
	"fmt"
)

// Copier produces an independent copy of a message.
type Copier interface {
	Copy(m *Message) (*Message, error)
}

// CloneCopier copies with Message.Clone.
type CloneCopier struct{}

func (CloneCopier) Copy(m *Message) (*Message, error) {
	return m.Clone(), nil
}

// JSONCopier copies by marshalling to JSON and back.
type JSONCopier struct{}

func (JSONCopier) Copy(m *Message) (*Message, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	var out Message
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return &out, nil
}
