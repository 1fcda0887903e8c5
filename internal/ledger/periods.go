package ledger

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"ledger/internal/core"
)

const listConcurrency = 4

// ListPeriods returns every period with its expenses and totals, newest
// first.
func (e *Engine) ListPeriods(ctx context.Context) ([]core.PeriodSummary, error) {
	periods, err := e.store.AllPeriods(ctx)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Newer(periods[j]) })

	out := make([]core.PeriodSummary, len(periods))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)
	for i, p := range periods {
		g.Go(func() error {
			expenses, err := e.store.ExpensesForPeriod(gctx, p.ID)
			if err != nil {
				return fmt.Errorf("expenses for period %d: %w", p.ID, err)
			}
			out[i] = core.Summarize(p, expenses)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
