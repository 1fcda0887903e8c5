package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

var hundred = decimal.NewFromInt(100)

// Breakdown groups expenses by category and sorts the groups by descending
// sum. Categories without expenses are omitted. Equal sums keep the order in
// which their categories first appear.
func Breakdown(expenses []core.Expense) []core.CategoryBreakdown {
	out := []core.CategoryBreakdown{}
	index := make(map[core.Category]int)
	for _, e := range expenses {
		i, ok := index[e.Category]
		if !ok {
			i = len(out)
			index[e.Category] = i
			out = append(out, core.CategoryBreakdown{Category: e.Category, Sum: decimal.Zero})
		}
		out[i].Sum = out[i].Sum.Add(e.Amount)
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sum.GreaterThan(out[j].Sum) })
	return out
}

// Percentages returns each category's share of the total spend, sorted by
// descending percent. It is empty when the total is zero.
func Percentages(expenses []core.Expense) []core.CategoryPercentage {
	groups := Breakdown(expenses)
	total := decimal.Zero
	for _, g := range groups {
		total = total.Add(g.Sum)
	}
	out := []core.CategoryPercentage{}
	if !total.IsPositive() {
		return out
	}
	for _, g := range groups {
		out = append(out, core.CategoryPercentage{
			Category: g.Category,
			Percent:  g.Sum.Div(total).Mul(hundred).InexactFloat64(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Percent > out[j].Percent })
	return out
}
