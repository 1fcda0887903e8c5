package sheets

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

func TestRowMatchesHeader(t *testing.T) {
	p := core.Period{ID: 3, SettledAmount: decimal.RequireFromString("120"), CreatedAt: time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)}
	expenses := []core.Expense{
		{Amount: decimal.RequireFromString("40.5"), Category: core.Food},
		{Amount: decimal.RequireFromString("9.5"), Category: core.Food},
		{Amount: decimal.RequireFromString("30"), Category: core.Car},
	}
	row := Row(core.Summarize(p, expenses))
	header := Header()

	if len(row) != len(header) {
		t.Fatalf("row has %d cells, header %d", len(row), len(header))
	}
	want := map[string]any{
		"Period":   int64(3),
		"Opened":   "2025-04-02 09:30:00",
		"Settled":  "120",
		"Spent":    "80",
		"Expenses": 3,
		"Food":     "50",
		"Car":      "30",
		"Grocery":  "0",
	}
	for i, h := range header {
		if w, ok := want[h]; ok && row[i] != w {
			t.Errorf("%s = %#v, want %#v", h, row[i], w)
		}
	}
}
