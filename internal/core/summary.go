package core

import "github.com/shopspring/decimal"

// CategoryBreakdown is the sum and count of one category's expenses.
type CategoryBreakdown struct {
	Category Category        `json:"category"`
	Sum      decimal.Decimal `json:"sum"`
	Count    int             `json:"count"`
}

// CategoryPercentage is one category's share of a period's total spend.
type CategoryPercentage struct {
	Category Category `json:"category"`
	Percent  float64  `json:"percent"`
}

// PeriodSummary is a period with its attached expenses and derived totals.
type PeriodSummary struct {
	Period       Period
	Expenses     []Expense
	ActualSpend  decimal.Decimal
	ExpenseCount int
}

// Summarize derives the spend totals for a period.
func Summarize(p Period, expenses []Expense) PeriodSummary {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return PeriodSummary{
		Period:       p,
		Expenses:     expenses,
		ActualSpend:  total,
		ExpenseCount: len(expenses),
	}
}
