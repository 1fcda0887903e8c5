package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"ledger/internal/core"
)

func TestBuildPeriodsXLSX(t *testing.T) {
	at := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	p2 := core.Period{ID: 2, SettledAmount: decimal.NewFromInt(100), CreatedAt: at.Add(48 * time.Hour)}
	p1 := core.Period{ID: 1, SettledAmount: decimal.Zero, CreatedAt: at}
	periods := []core.PeriodSummary{
		core.Summarize(p2, []core.Expense{
			{ID: 4, PeriodID: 2, Amount: decimal.RequireFromString("10.25"), Category: core.Car, Description: "fuel", CreatedAt: at.Add(49 * time.Hour)},
		}),
		core.Summarize(p1, []core.Expense{
			{ID: 1, PeriodID: 1, Amount: decimal.NewFromInt(50), Category: core.Food, CreatedAt: at},
			{ID: 2, PeriodID: 1, Amount: decimal.NewFromInt(30), Category: core.Food, CreatedAt: at},
		}),
	}

	data, err := BuildPeriodsXLSX(periods)
	if err != nil {
		t.Fatalf("BuildPeriodsXLSX: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(periodsSheet)
	if err != nil {
		t.Fatalf("read periods: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("periods sheet has %d rows, want 3", len(rows))
	}
	if rows[0][0] != "Period" || rows[1][0] != "2" || rows[2][0] != "1" {
		t.Errorf("unexpected period column: %v", rows)
	}
	if rows[1][3] != "10.25" || rows[2][3] != "80" {
		t.Errorf("spent cells = %q, %q", rows[1][3], rows[2][3])
	}

	expenses, err := f.GetRows(expensesSheet)
	if err != nil {
		t.Fatalf("read expenses: %v", err)
	}
	if len(expenses) != 4 {
		t.Fatalf("expenses sheet has %d rows, want 4", len(expenses))
	}
	if expenses[1][3] != "Car" || expenses[1][4] != "fuel" {
		t.Errorf("first expense row = %v", expenses[1])
	}
}

func TestBuildPeriodsXLSXEmpty(t *testing.T) {
	data, err := BuildPeriodsXLSX(nil)
	if err != nil {
		t.Fatalf("BuildPeriodsXLSX: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows(periodsSheet)
	if len(rows) != 1 {
		t.Fatalf("want header only, got %v", rows)
	}
}
