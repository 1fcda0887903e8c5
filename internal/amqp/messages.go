package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"ledger/internal/ledger"
)

// EventMessage is the wire form of a ledger event. It carries ids only; the
// consumer reads the records it needs from the database.
type EventMessage struct {
	MessageID  string           `json:"message_id"`
	Type       ledger.EventType `json:"type"`
	ID         int64            `json:"id"`
	PeriodID   int64            `json:"period_id,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

func NewEventMessage(ev ledger.Event) *EventMessage {
	return &EventMessage{
		MessageID:  uuid.NewString(),
		Type:       ev.Type,
		ID:         ev.ID,
		PeriodID:   ev.PeriodID,
		OccurredAt: ev.At,
	}
}

func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON decodes and sanity-checks a message body.
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" || msg.ID <= 0 {
		return nil, errors.New("event message missing type or id")
	}
	return &msg, nil
}

// Event converts the message back to a ledger event.
func (m *EventMessage) Event() ledger.Event {
	return ledger.Event{Type: m.Type, ID: m.ID, PeriodID: m.PeriodID, At: m.OccurredAt}
}
