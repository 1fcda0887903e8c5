package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/ledger"
	sheetmem "ledger/internal/sheets/memory"
	"ledger/internal/storage/memory"
)

type countingRecorder struct{ ok, failed int }

func (r *countingRecorder) PeriodExported(err error) {
	if err != nil {
		r.failed++
		return
	}
	r.ok++
}

var start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// seed creates n periods one hour apart, each with one expense.
func seed(t *testing.T, store *memory.Store, n int) []int64 {
	t.Helper()
	ctx := context.Background()
	var ids []int64
	for i := 0; i < n; i++ {
		at := start.Add(time.Duration(i) * time.Hour)
		id, err := store.InsertPeriod(ctx, core.Period{SettledAmount: decimal.NewFromInt(int64(i)), CreatedAt: at})
		if err != nil {
			t.Fatalf("insert period: %v", err)
		}
		if _, err := store.InsertExpense(ctx, core.Expense{PeriodID: id, Amount: decimal.NewFromInt(5), Category: core.Food, CreatedAt: at}); err != nil {
			t.Fatalf("insert expense: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestExportPendingExportsArchivedOnly(t *testing.T) {
	store := memory.New()
	ids := seed(t, store, 4)
	exporter := sheetmem.New()
	rec := &countingRecorder{}
	w := NewExportWorker(store, exporter, 2, rec)

	n, err := w.ExportPending(context.Background())
	if err != nil {
		t.Fatalf("ExportPending: %v", err)
	}
	if n != 3 || rec.ok != 3 {
		t.Fatalf("exported %d (recorded %d), want 3", n, rec.ok)
	}
	rows := exporter.Rows()
	for i, row := range rows {
		if row[0] != ids[i] {
			t.Errorf("row %d is period %v, want %d", i, row[0], ids[i])
		}
	}
	if _, ok := store.ExportRef(ids[3]); ok {
		t.Errorf("current period must not be exported")
	}
	if ref, ok := store.ExportRef(ids[0]); !ok || ref != "mem:1" {
		t.Errorf("period %d ref = %q, %v", ids[0], ref, ok)
	}

	n, err = w.ExportPending(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("second run exported %d, err %v", n, err)
	}
}

func TestExportPendingStopsOnFailure(t *testing.T) {
	store := memory.New()
	ids := seed(t, store, 3)
	exporter := sheetmem.New()
	exporter.SetFailure(errors.New("quota exceeded"))
	rec := &countingRecorder{}
	w := NewExportWorker(store, exporter, 10, rec)

	if _, err := w.ExportPending(context.Background()); err == nil {
		t.Fatal("expected export error")
	}
	if rec.failed != 1 {
		t.Errorf("failed exports recorded = %d, want 1", rec.failed)
	}
	if _, ok := store.ExportRef(ids[0]); ok {
		t.Fatal("failed period must stay pending")
	}

	exporter.SetFailure(nil)
	if n, err := w.ExportPending(context.Background()); err != nil || n != 2 {
		t.Fatalf("retry exported %d, err %v", n, err)
	}
}

func TestHandleEvent(t *testing.T) {
	store := memory.New()
	seed(t, store, 2)
	exporter := sheetmem.New()
	w := NewExportWorker(store, exporter, 5, nil)
	ctx := context.Background()

	if err := w.HandleEvent(ctx, &amqp.EventMessage{Type: ledger.EventExpenseAdded, ID: 1}); err != nil {
		t.Fatalf("HandleEvent(expense.added): %v", err)
	}
	if len(exporter.Rows()) != 0 {
		t.Fatal("expense events must not export")
	}

	if err := w.HandleEvent(ctx, &amqp.EventMessage{Type: ledger.EventPeriodSettled, ID: 2}); err != nil {
		t.Fatalf("HandleEvent(period.settled): %v", err)
	}
	if len(exporter.Rows()) != 1 {
		t.Fatalf("rows = %d, want 1", len(exporter.Rows()))
	}

	exporter.SetFailure(errors.New("down"))
	seed(t, store, 1)
	if err := w.HandleEvent(ctx, &amqp.EventMessage{Type: ledger.EventPeriodSettled, ID: 3}); err == nil {
		t.Fatal("export failure must be returned so the message is requeued")
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	w := NewExportWorker(memory.New(), sheetmem.New(), 1, nil)
	if err := w.Start(context.Background(), "not a schedule"); err == nil {
		t.Fatal("expected schedule error")
	}
	w.Stop()
}

func TestStartAndStop(t *testing.T) {
	w := NewExportWorker(memory.New(), sheetmem.New(), 1, nil)
	if err := w.Start(context.Background(), "@every 1h"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	w.Stop()
}
