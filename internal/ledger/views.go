package ledger

import (
	"context"

	"ledger/internal/core"
	"ledger/internal/live"
	"ledger/internal/storage"
)

const noPeriod int64 = 0

// currentPeriodID emits the id of the current period, or noPeriod, whenever
// the period table changes.
func (e *Engine) currentPeriodID(ctx context.Context) <-chan int64 {
	return live.Query(ctx, e.store.Tracker(), func(ctx context.Context) (int64, error) {
		p, ok, err := e.store.LatestPeriod(ctx)
		if err != nil || !ok {
			return noPeriod, err
		}
		return p.ID, nil
	}, storage.TablePeriod)
}

// currentView follows the current period and re-runs fetch against it on
// every expense change. When the current period moves, the subscription to
// the old one is dropped before the new one emits. With no period the view
// emits an empty list.
func currentView[T any](ctx context.Context, e *Engine, view string, fetch func(ctx context.Context, periodID int64) ([]T, error)) <-chan []T {
	inner := func(ctx context.Context, periodID int64) <-chan []T {
		if periodID == noPeriod {
			return live.Just(ctx, []T{})
		}
		return live.Query(ctx, e.store.Tracker(), func(ctx context.Context) ([]T, error) {
			return fetch(ctx, periodID)
		}, storage.TableExpense)
	}

	values := live.Switch(ctx, e.currentPeriodID(ctx), inner)
	return live.Map(ctx, values, func(v []T) []T {
		e.rec.ViewEmitted(view)
		return v
	})
}

// CurrentCategoryBreakdown emits the per-category sums of the current period
// on every relevant change until ctx is cancelled.
func (e *Engine) CurrentCategoryBreakdown(ctx context.Context) <-chan []core.CategoryBreakdown {
	return currentView(ctx, e, "breakdown", func(ctx context.Context, periodID int64) ([]core.CategoryBreakdown, error) {
		expenses, err := e.store.ExpensesForPeriod(ctx, periodID)
		if err != nil {
			return nil, err
		}
		return Breakdown(expenses), nil
	})
}

// CurrentCategoryPercentages emits the per-category share of the current
// period's spend on every relevant change until ctx is cancelled.
func (e *Engine) CurrentCategoryPercentages(ctx context.Context) <-chan []core.CategoryPercentage {
	return currentView(ctx, e, "percentages", func(ctx context.Context, periodID int64) ([]core.CategoryPercentage, error) {
		expenses, err := e.store.ExpensesForPeriod(ctx, periodID)
		if err != nil {
			return nil, err
		}
		return Percentages(expenses), nil
	})
}

// CurrentExpenses emits the current period's expenses of one category.
func (e *Engine) CurrentExpenses(ctx context.Context, c core.Category) <-chan []core.Expense {
	return currentView(ctx, e, "expenses", func(ctx context.Context, periodID int64) ([]core.Expense, error) {
		expenses, err := e.store.ExpensesForPeriodByCategory(ctx, periodID, c)
		if err != nil {
			return nil, err
		}
		if expenses == nil {
			expenses = []core.Expense{}
		}
		return expenses, nil
	})
}
