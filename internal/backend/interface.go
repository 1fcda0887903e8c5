package backend

import (
	"context"

	"ledger/internal/ledger"
	"ledger/internal/worker"
)

// Store is a record store usable by both the engine and the export worker.
type Store interface {
	ledger.Store
	worker.Store
}

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// Result contains the store, the optional event publisher and the cleanup
// function for both.
type Result struct {
	Store     Store
	Publisher ledger.Publisher // nil when AMQP is not configured or unreachable
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

type Config struct {
	Type         Type
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// Type represents the kind of record store.
type Type string

const (
	SQLiteBackend Type = "sqlite"
	MemoryBackend Type = "memory"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
