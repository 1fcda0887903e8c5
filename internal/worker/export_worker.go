// Package worker exports archived settlement periods to a spreadsheet.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/sheets"
)

// Store is what the worker reads and marks.
type Store interface {
	ExpensesForPeriod(ctx context.Context, periodID int64) ([]core.Expense, error)
	ArchivedPeriodsPendingExport(ctx context.Context, limit int) ([]core.Period, error)
	MarkPeriodExported(ctx context.Context, periodID int64, ref string) error
}

// Recorder counts export attempts.
type Recorder interface {
	PeriodExported(err error)
}

type nopRecorder struct{}

func (nopRecorder) PeriodExported(error) {}

// ExportWorker appends every archived, not yet exported period to the
// exporter. A period becomes archived when its successor is settled, so the
// worker reacts to period.settled events and also runs on a schedule to pick
// up anything a lost message left behind.
type ExportWorker struct {
	store     Store
	exporter  sheets.PeriodExporter
	batchSize int
	rec       Recorder

	// Serialises event and scheduled runs so a period is exported once.
	mu   sync.Mutex
	cron *cron.Cron
}

func NewExportWorker(store Store, exporter sheets.PeriodExporter, batchSize int, rec Recorder) *ExportWorker {
	if batchSize < 1 {
		batchSize = 1
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &ExportWorker{
		store:     store,
		exporter:  exporter,
		batchSize: batchSize,
		rec:       rec,
	}
}

// HandleEvent processes one ledger event from AMQP. Only period.settled
// triggers an export; other events are acknowledged and ignored.
func (w *ExportWorker) HandleEvent(ctx context.Context, msg *amqp.EventMessage) error {
	if msg.Type != ledger.EventPeriodSettled {
		slog.DebugContext(ctx, "Ignoring ledger event", "type", msg.Type, "id", msg.ID)
		return nil
	}

	slog.InfoContext(ctx, "Processing settled period", "period_id", msg.ID)
	if _, err := w.ExportPending(ctx); err != nil {
		return fmt.Errorf("export after settlement of period %d: %w", msg.ID, err)
	}
	return nil
}

// ExportPending exports archived periods in batches, oldest first, and
// returns how many were exported. It stops at the first failure, leaving
// that period for the next run.
func (w *ExportWorker) ExportPending(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	exported := 0
	for {
		periods, err := w.store.ArchivedPeriodsPendingExport(ctx, w.batchSize)
		if err != nil {
			return exported, fmt.Errorf("get pending periods: %w", err)
		}
		if len(periods) == 0 {
			break
		}

		for _, p := range periods {
			err := w.exportPeriod(ctx, p)
			w.rec.PeriodExported(err)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to export period", "period_id", p.ID, "error", err)
				return exported, err
			}
			exported++
		}

		if len(periods) < w.batchSize {
			break
		}
	}

	if exported > 0 {
		slog.InfoContext(ctx, "Exported archived periods", "count", exported)
	}
	return exported, nil
}

func (w *ExportWorker) exportPeriod(ctx context.Context, p core.Period) error {
	expenses, err := w.store.ExpensesForPeriod(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("expenses for period %d: %w", p.ID, err)
	}

	ref, err := w.exporter.ExportPeriod(ctx, core.Summarize(p, expenses))
	if err != nil {
		return fmt.Errorf("export period %d: %w", p.ID, err)
	}

	if err := w.store.MarkPeriodExported(ctx, p.ID, ref); err != nil {
		return fmt.Errorf("mark period %d exported: %w", p.ID, err)
	}

	slog.InfoContext(ctx, "Period exported", "period_id", p.ID, "ref", ref)
	return nil
}

// Start schedules ExportPending with a standard cron spec or descriptor
// such as "@every 15m".
func (w *ExportWorker) Start(ctx context.Context, schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := w.ExportPending(ctx); err != nil {
			slog.ErrorContext(ctx, "Scheduled export failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule export %q: %w", schedule, err)
	}
	c.Start()
	w.cron = c
	slog.InfoContext(ctx, "Scheduled export started", "schedule", schedule)
	return nil
}

// Stop halts the schedule and waits for a running export to finish.
func (w *ExportWorker) Stop() {
	if w.cron == nil {
		return
	}
	<-w.cron.Stop().Done()
}
