// Package sheets defines the spreadsheet row layout of an archived period
// and the port its exporters implement.
package sheets

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// PeriodExporter writes one archived period somewhere outside the ledger.
type PeriodExporter interface {
	// ExportPeriod appends the summary row and returns a reference to it.
	ExportPeriod(ctx context.Context, s core.PeriodSummary) (ref string, err error)
}

// Header returns the column titles of a period row.
func Header() []string {
	h := []string{"Period", "Opened", "Settled", "Spent", "Expenses"}
	for _, c := range core.Categories() {
		h = append(h, c.String())
	}
	return h
}

// Row renders a period summary in Header order. Amounts are plain decimal
// strings so the sheet parses them as numbers.
func Row(s core.PeriodSummary) []any {
	sums := make(map[core.Category]decimal.Decimal)
	for _, e := range s.Expenses {
		sums[e.Category] = sums[e.Category].Add(e.Amount)
	}

	row := []any{
		s.Period.ID,
		s.Period.CreatedAt.UTC().Format(time.DateTime),
		s.Period.SettledAmount.String(),
		s.ActualSpend.String(),
		s.ExpenseCount,
	}
	for _, c := range core.Categories() {
		row = append(row, sums[c].String())
	}
	return row
}
