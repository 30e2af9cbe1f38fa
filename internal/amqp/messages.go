package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// LedgerEvent announces one persisted ledger mutation. It carries no entry
// data; consumers read the store for the current state.
type LedgerEvent struct {
	Type      string    `json:"type"`
	EntryID   string    `json:"entryId"`
	Timestamp time.Time `json:"timestamp"`
}

var errEmptyEventType = errors.New("ledger event without type")

// NewLedgerEvent creates an event stamped with the current time.
func NewLedgerEvent(eventType, entryID string) *LedgerEvent {
	return &LedgerEvent{
		Type:      eventType,
		EntryID:   entryID,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes an event, rejecting ones without a type.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, errEmptyEventType
	}
	return &msg, nil
}
