package ledger

import (
	"context"
	"time"
)

type EventType string

const (
	EventExpenseAdded   EventType = "expense.added"
	EventExpenseDeleted EventType = "expense.deleted"
	EventPeriodSettled  EventType = "period.settled"
)

// Event describes a completed write. For period.settled, ID and PeriodID are
// both the new period.
type Event struct {
	Type     EventType `json:"type"`
	ID       int64     `json:"id"`
	PeriodID int64     `json:"period_id,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher forwards events out of process. Publishing failures are logged by
// the engine and never fail the write.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Recorder receives engine instrumentation.
type Recorder interface {
	WriteCompleted(op string, err error)
	ViewEmitted(view string)
	QueueDepth(n int)
}

type nopRecorder struct{}

func (nopRecorder) WriteCompleted(string, error) {}
func (nopRecorder) ViewEmitted(string)           {}
func (nopRecorder) QueueDepth(int)               {}
