package ledger

import (
	"context"

	"ledger/internal/core"
	"ledger/internal/live"
)

// Store is the record store the engine reads and writes. Implementations
// must notify Tracker with the table they touched after every mutation.
type Store interface {
	InsertExpense(ctx context.Context, e core.Expense) (int64, error)
	// DeleteExpense removes the expense with id. Deleting an absent id is not
	// an error.
	DeleteExpense(ctx context.Context, id int64) error
	ExpensesForPeriod(ctx context.Context, periodID int64) ([]core.Expense, error)
	ExpensesForPeriodByCategory(ctx context.Context, periodID int64, c core.Category) ([]core.Expense, error)

	InsertPeriod(ctx context.Context, p core.Period) (int64, error)
	AllPeriods(ctx context.Context) ([]core.Period, error)
	// LatestPeriod returns the current period: maximum CreatedAt, ties broken
	// by maximum id. ok is false when no period exists.
	LatestPeriod(ctx context.Context) (p core.Period, ok bool, err error)
	PeriodCount(ctx context.Context) (int, error)

	Tracker() *live.Tracker
}
