package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/storage/memory"
)

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []EventType
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *memory.Store) {
	t.Helper()
	store := memory.New()
	clock := &stepClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	e := New(store, append([]Option{WithClock(clock.Now)}, opts...)...)
	e.Start(context.Background())
	t.Cleanup(e.Stop)
	return e, store
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func mustWait(t *testing.T, p *Pending, err error) int64 {
	t.Helper()
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	id, err := p.Wait(ctx)
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	return id
}

func settle(t *testing.T, e *Engine, amount string) int64 {
	t.Helper()
	p, err := e.Settle(context.Background(), dec(amount))
	return mustWait(t, p, err)
}

func add(t *testing.T, e *Engine, amount, desc string, c core.Category) int64 {
	t.Helper()
	p, err := e.AddExpense(context.Background(), core.NewExpense{Amount: dec(amount), Description: desc, Category: c})
	return mustWait(t, p, err)
}

func del(t *testing.T, e *Engine, id int64) {
	t.Helper()
	p, err := e.DeleteExpense(context.Background(), id)
	mustWait(t, p, err)
}

func TestAddExpenseWithoutPeriod(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	ok, err := e.CanAddExpense(ctx)
	if err != nil || ok {
		t.Fatalf("CanAddExpense = %v, %v; want false", ok, err)
	}

	p, err := e.AddExpense(ctx, core.NewExpense{Amount: dec("5"), Description: "coffee", Category: core.Food})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := p.Wait(ctx); !errors.Is(err, core.ErrNoOpenPeriod) {
		t.Fatalf("Wait err = %v, want ErrNoOpenPeriod", err)
	}
	if n, _ := store.PeriodCount(ctx); n != 0 {
		t.Fatalf("failed add must not create a period, count=%d", n)
	}
}

func TestAddExpenseRejectsInvalidInput(t *testing.T) {
	e, _ := newTestEngine(t)
	settle(t, e, "0")

	tests := []struct {
		name string
		in   core.NewExpense
		want error
	}{
		{"zero amount", core.NewExpense{Amount: decimal.Zero, Category: core.Food}, core.ErrInvalidAmount},
		{"negative amount", core.NewExpense{Amount: dec("-1"), Category: core.Food}, core.ErrInvalidAmount},
		{"unknown category", core.NewExpense{Amount: dec("1"), Category: 42}, core.ErrInvalidCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := e.AddExpense(context.Background(), tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if p != nil {
				t.Fatalf("rejected input must not enqueue a write")
			}
		})
	}
}

func TestSettleRejectsNegativeAmount(t *testing.T) {
	e, _ := newTestEngine(t)
	if _, err := e.Settle(context.Background(), dec("-10")); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
}

func TestGuardFollowsPeriodCount(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		ok, _ := e.CanAddExpense(ctx)
		n, _ := store.PeriodCount(ctx)
		if ok != (n > 0) {
			t.Fatalf("CanAddExpense=%v with %d periods", ok, n)
		}
		settle(t, e, "1")
	}
}

func TestExpensesStayAttachedAcrossSettlements(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	p1 := settle(t, e, "0")
	a := add(t, e, "50", "food", core.Food)
	p2 := settle(t, e, "100")
	b := add(t, e, "10", "car", core.Car)
	settle(t, e, "20")

	first, _ := store.ExpensesForPeriod(ctx, p1)
	if len(first) != 1 || first[0].ID != a {
		t.Fatalf("period %d expenses = %+v", p1, first)
	}
	second, _ := store.ExpensesForPeriod(ctx, p2)
	if len(second) != 1 || second[0].ID != b {
		t.Fatalf("period %d expenses = %+v", p2, second)
	}
}

func TestSettleMovesCurrentPeriod(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		id := settle(t, e, "10")
		latest, ok, err := store.LatestPeriod(ctx)
		if err != nil || !ok || latest.ID != id {
			t.Fatalf("after settle %d current = %+v (ok=%v err=%v), want %d", i, latest, ok, err, id)
		}
	}
}

func TestSettleWithIdenticalTimestamps(t *testing.T) {
	store := memory.New()
	fixed := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	e := New(store, WithClock(func() time.Time { return fixed }))
	e.Start(context.Background())
	defer e.Stop()

	settle(t, e, "1")
	last := settle(t, e, "2")
	if latest, _, _ := store.LatestPeriod(context.Background()); latest.ID != last {
		t.Fatalf("current = %d, want %d", latest.ID, last)
	}
}

func TestDeleteExpenseIsIdempotent(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	pid := settle(t, e, "0")
	id := add(t, e, "7", "", core.Others)
	add(t, e, "3", "", core.Others)

	del(t, e, id)
	once, _ := store.ExpensesForPeriod(ctx, pid)
	del(t, e, id)
	twice, _ := store.ExpensesForPeriod(ctx, pid)

	if len(once) != 1 || len(twice) != 1 || once[0].ID != twice[0].ID {
		t.Fatalf("store differs after second delete: %+v vs %+v", once, twice)
	}
	if n, _ := store.PeriodCount(ctx); n != 1 {
		t.Fatalf("delete changed period count to %d", n)
	}
}

func TestListPeriodsNewestFirst(t *testing.T) {
	e, _ := newTestEngine(t)
	p1 := settle(t, e, "0")
	add(t, e, "50", "a", core.Food)
	add(t, e, "30", "b", core.Food)
	add(t, e, "20", "c", core.Car)
	p2 := settle(t, e, "100")
	add(t, e, "10", "d", core.Car)

	got, err := e.ListPeriods(context.Background())
	if err != nil {
		t.Fatalf("ListPeriods: %v", err)
	}
	if len(got) != 2 || got[0].Period.ID != p2 || got[1].Period.ID != p1 {
		t.Fatalf("order = %+v", got)
	}
	if got[1].ExpenseCount != 3 || !got[1].ActualSpend.Equal(dec("100")) {
		t.Fatalf("p1 summary = count %d spend %s", got[1].ExpenseCount, got[1].ActualSpend)
	}
	if got[0].ExpenseCount != 1 || !got[0].ActualSpend.Equal(dec("10")) {
		t.Fatalf("p2 summary = count %d spend %s", got[0].ExpenseCount, got[0].ActualSpend)
	}
	if !got[0].Period.SettledAmount.Equal(dec("100")) {
		t.Fatalf("settled amount = %s", got[0].Period.SettledAmount)
	}
}

func TestWritesPublishEvents(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	e, _ := newTestEngine(t, WithPublisher(pub))

	settle(t, e, "0")
	id := add(t, e, "1", "x", core.Food)
	del(t, e, id)

	got := pub.types()
	want := []EventType{EventPeriodSettled, EventExpenseAdded, EventExpenseDeleted}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestWritesAfterStopFail(t *testing.T) {
	e := New(memory.New())
	e.Start(context.Background())
	e.Stop()

	if _, err := e.Settle(context.Background(), dec("1")); !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
}

func TestQueuedWritesFailOnStop(t *testing.T) {
	e := New(memory.New())
	p, err := e.Settle(context.Background(), dec("1"))
	if err != nil {
		t.Fatalf("enqueue before start: %v", err)
	}
	e.Stop()
	if _, err := p.Wait(context.Background()); !errors.Is(err, ErrStopped) {
		t.Fatalf("queued write err = %v, want ErrStopped", err)
	}
}
