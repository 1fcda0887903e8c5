// Package memory is an in-process PeriodExporter used for dry runs and
// tests.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"ledger/internal/core"
	"ledger/internal/sheets"
)

type Exporter struct {
	mu   sync.Mutex
	rows [][]any
	fail error
}

var _ sheets.PeriodExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

// ExportPeriod records the row and returns a synthetic row reference.
func (x *Exporter) ExportPeriod(ctx context.Context, s core.PeriodSummary) (string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.fail != nil {
		return "", x.fail
	}
	x.rows = append(x.rows, sheets.Row(s))
	ref := fmt.Sprintf("mem:%d", len(x.rows))
	slog.InfoContext(ctx, "Period exported to memory", "period_id", s.Period.ID, "ref", ref)
	return ref, nil
}

// Rows returns a copy of the exported rows.
func (x *Exporter) Rows() [][]any {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([][]any(nil), x.rows...)
}

// SetFailure makes later exports fail with err, or succeed again if err is
// nil.
func (x *Exporter) SetFailure(err error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.fail = err
}
