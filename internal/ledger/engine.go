// Package ledger implements the settlement-period lifecycle and the live
// category views of the current period.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

const defaultQueueSize = 64

// ErrStopped is returned for writes submitted after the engine stopped.
var ErrStopped = errors.New("ledger engine stopped")

type write struct {
	op  string
	ctx context.Context
	run func(ctx context.Context) (int64, *Event, error)
	p   *Pending
}

// Engine applies writes on a single background goroutine and derives the
// current-period views from the store. It keeps no state between calls
// besides the write queue.
type Engine struct {
	store Store
	pub   Publisher
	rec   Recorder
	now   func() time.Time

	writes chan write
	done   chan struct{}

	mu       sync.RWMutex
	started  bool
	stopped  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

type Option func(*Engine)

// WithPublisher sets the event publisher. Without one, events are not sent.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.pub = p }
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.rec = r }
}

// WithClock replaces time.Now for period and expense timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithQueueSize sets how many writes may wait for the writer goroutine.
func WithQueueSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.writes = make(chan write, n)
		}
	}
}

func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		rec:    nopRecorder{},
		now:    time.Now,
		writes: make(chan write, defaultQueueSize),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the writer goroutine. It runs until ctx is cancelled or Stop
// is called. Writes may be submitted before Start; they wait in the queue.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started || e.stopped {
		return
	}
	e.started = true

	ctx, e.cancel = context.WithCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(ctx)
	}()
	slog.InfoContext(ctx, "Ledger engine started", "queue_size", cap(e.writes))
}

// Stop halts the writer and waits for it. Queued writes that were not applied
// fail with ErrStopped.
func (e *Engine) Stop() {
	e.mu.RLock()
	cancel, started := e.cancel, e.started
	e.mu.RUnlock()

	if started {
		cancel()
		e.wg.Wait()
		return
	}
	e.shutdown()
}

func (e *Engine) run(ctx context.Context) {
	defer e.shutdown()
	for {
		select {
		case w := <-e.writes:
			e.rec.QueueDepth(len(e.writes))
			e.apply(w)
		case <-ctx.Done():
			return
		}
	}
}

// shutdown rejects new writes and fails whatever is still queued.
func (e *Engine) shutdown() {
	e.stopOnce.Do(func() {
		// Unblock enqueuers waiting on a full queue before taking the lock.
		close(e.done)
		e.mu.Lock()
		e.stopped = true
		e.mu.Unlock()

		for {
			select {
			case w := <-e.writes:
				w.p.resolve(0, ErrStopped)
				e.rec.WriteCompleted(w.op, ErrStopped)
			default:
				e.rec.QueueDepth(0)
				slog.Info("Ledger engine stopped")
				return
			}
		}
	})
}

func (e *Engine) apply(w write) {
	// The write outlives a caller that stops waiting for it.
	ctx := context.WithoutCancel(w.ctx)

	id, ev, err := w.run(ctx)
	e.rec.WriteCompleted(w.op, err)
	if err != nil {
		slog.ErrorContext(ctx, "Ledger write failed", "op", w.op, "error", err)
		w.p.resolve(0, err)
		return
	}
	w.p.resolve(id, nil)

	if ev != nil {
		e.publish(ctx, *ev)
	}
}

func (e *Engine) publish(ctx context.Context, ev Event) {
	if e.pub == nil {
		return
	}
	if err := e.pub.Publish(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", ev.Type, "id", ev.ID, "error", err)
	}
}

func (e *Engine) enqueue(ctx context.Context, op string, run func(context.Context) (int64, *Event, error)) (*Pending, error) {
	w := write{op: op, ctx: ctx, run: run, p: newPending()}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.stopped {
		return nil, ErrStopped
	}
	select {
	case e.writes <- w:
		e.rec.QueueDepth(len(e.writes))
		return w.p, nil
	case <-e.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CanAddExpense reports whether at least one period exists.
func (e *Engine) CanAddExpense(ctx context.Context) (bool, error) {
	n, err := e.store.PeriodCount(ctx)
	if err != nil {
		return false, fmt.Errorf("count periods: %w", err)
	}
	return n > 0, nil
}

// AddExpense validates in and enqueues its insertion into the period that is
// current when the write is applied. Validation errors are returned directly;
// ErrNoOpenPeriod and store errors arrive through the Pending handle.
func (e *Engine) AddExpense(ctx context.Context, in core.NewExpense) (*Pending, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	in.Description = strings.TrimSpace(in.Description)

	return e.enqueue(ctx, "add_expense", func(ctx context.Context) (int64, *Event, error) {
		current, ok, err := e.store.LatestPeriod(ctx)
		if err != nil {
			return 0, nil, fmt.Errorf("resolve current period: %w", err)
		}
		if !ok {
			return 0, nil, core.ErrNoOpenPeriod
		}

		now := e.now()
		id, err := e.store.InsertExpense(ctx, core.Expense{
			PeriodID:    current.ID,
			Amount:      in.Amount,
			Description: in.Description,
			Category:    in.Category,
			CreatedAt:   now,
		})
		if err != nil {
			return 0, nil, fmt.Errorf("insert expense: %w", err)
		}
		slog.InfoContext(ctx, "Expense added",
			"id", id, "period_id", current.ID, "category", in.Category, "amount", in.Amount.String())
		return id, &Event{Type: EventExpenseAdded, ID: id, PeriodID: current.ID, At: now}, nil
	})
}

// Settle enqueues the creation of a new period, which becomes current.
// Existing expenses stay attached to the periods they were created in.
func (e *Engine) Settle(ctx context.Context, amount decimal.Decimal) (*Pending, error) {
	if err := core.ValidateSettlement(amount); err != nil {
		return nil, err
	}

	return e.enqueue(ctx, "settle", func(ctx context.Context) (int64, *Event, error) {
		now := e.now()
		id, err := e.store.InsertPeriod(ctx, core.Period{SettledAmount: amount, CreatedAt: now})
		if err != nil {
			return 0, nil, fmt.Errorf("insert period: %w", err)
		}
		slog.InfoContext(ctx, "Period settled", "period_id", id, "amount", amount.String())
		return id, &Event{Type: EventPeriodSettled, ID: id, PeriodID: id, At: now}, nil
	})
}

// DeleteExpense enqueues the removal of an expense. Deleting an absent id
// succeeds.
func (e *Engine) DeleteExpense(ctx context.Context, id int64) (*Pending, error) {
	return e.enqueue(ctx, "delete_expense", func(ctx context.Context) (int64, *Event, error) {
		err := e.store.DeleteExpense(ctx, id)
		if errors.Is(err, core.ErrNotFound) {
			return id, nil, nil
		}
		if err != nil {
			return 0, nil, fmt.Errorf("delete expense %d: %w", id, err)
		}
		return id, &Event{Type: EventExpenseDeleted, ID: id, At: e.now()}, nil
	})
}
