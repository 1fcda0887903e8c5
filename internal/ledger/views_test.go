package ledger

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// waitFor reads from ch until match accepts a value.
func waitFor[T any](t *testing.T, ch <-chan T, match func(T) bool) T {
	t.Helper()
	timeout := time.After(2 * time.Second)
	var last T
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				t.Fatalf("view closed, last value %+v", last)
			}
			if match(v) {
				return v
			}
			last = v
		case <-timeout:
			t.Fatalf("timed out waiting for view, last value %+v", last)
		}
	}
}

func breakdownEquals(want []core.CategoryBreakdown) func([]core.CategoryBreakdown) bool {
	return func(got []core.CategoryBreakdown) bool {
		if len(got) != len(want) {
			return false
		}
		for i := range want {
			if got[i].Category != want[i].Category || !got[i].Sum.Equal(want[i].Sum) || got[i].Count != want[i].Count {
				return false
			}
		}
		return true
	}
}

func TestBreakdownScenario(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	breakdown := e.CurrentCategoryBreakdown(ctx)
	percentages := e.CurrentCategoryPercentages(ctx)

	waitFor(t, breakdown, func(v []core.CategoryBreakdown) bool { return len(v) == 0 })
	waitFor(t, percentages, func(v []core.CategoryPercentage) bool { return len(v) == 0 })

	p1 := settle(t, e, "0")
	add(t, e, "50", "food", core.Food)
	add(t, e, "30", "food", core.Food)
	add(t, e, "20", "car", core.Car)

	waitFor(t, breakdown, breakdownEquals([]core.CategoryBreakdown{
		{Category: core.Food, Sum: dec("80"), Count: 2},
		{Category: core.Car, Sum: dec("20"), Count: 1},
	}))
	waitFor(t, percentages, func(v []core.CategoryPercentage) bool {
		return len(v) == 2 &&
			v[0].Category == core.Food && v[0].Percent == 80 &&
			v[1].Category == core.Car && v[1].Percent == 20
	})

	settle(t, e, "100")
	add(t, e, "10", "car", core.Car)

	waitFor(t, breakdown, breakdownEquals([]core.CategoryBreakdown{
		{Category: core.Car, Sum: dec("10"), Count: 1},
	}))

	periods, err := e.ListPeriods(context.Background())
	if err != nil {
		t.Fatalf("ListPeriods: %v", err)
	}
	old := periods[len(periods)-1]
	if old.Period.ID != p1 || old.ExpenseCount != 3 || !old.ActualSpend.Equal(dec("100")) {
		t.Fatalf("archived period changed: %+v", old)
	}
}

func TestViewsRecomputeOnDelete(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settle(t, e, "0")
	id := add(t, e, "12.5", "", core.House)
	breakdown := e.CurrentCategoryBreakdown(ctx)
	waitFor(t, breakdown, breakdownEquals([]core.CategoryBreakdown{{Category: core.House, Sum: dec("12.5"), Count: 1}}))

	del(t, e, id)
	waitFor(t, breakdown, func(v []core.CategoryBreakdown) bool { return len(v) == 0 })
}

func TestCurrentExpensesFiltersByCategory(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settle(t, e, "0")
	add(t, e, "4", "bread", core.Grocery)
	add(t, e, "9", "fuel", core.Car)
	add(t, e, "2", "milk", core.Grocery)

	got := waitFor(t, e.CurrentExpenses(ctx, core.Grocery), func(v []core.Expense) bool { return len(v) == 2 })
	for _, x := range got {
		if x.Category != core.Grocery {
			t.Fatalf("unexpected category in drill-down: %+v", x)
		}
	}

	settle(t, e, "15")
	waitFor(t, e.CurrentExpenses(ctx, core.Grocery), func(v []core.Expense) bool { return len(v) == 0 })
}

func TestViewStopsOnCancel(t *testing.T) {
	e, store := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	view := e.CurrentCategoryBreakdown(ctx)
	waitFor(t, view, func([]core.CategoryBreakdown) bool { return true })
	cancel()

	deadline := time.After(2 * time.Second)
drain:
	for {
		select {
		case _, ok := <-view:
			if !ok {
				break drain
			}
		case <-deadline:
			t.Fatalf("view not closed after cancel")
		}
	}

	deadline = time.After(2 * time.Second)
	for store.Tracker().Subscribers() != 0 {
		select {
		case <-deadline:
			t.Fatalf("%d subscriptions leaked", store.Tracker().Subscribers())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestAggregationLaws(t *testing.T) {
	expenses := []core.Expense{
		{Amount: dec("10.10"), Category: core.Food},
		{Amount: dec("3.33"), Category: core.Car},
		{Amount: dec("3.33"), Category: core.School},
		{Amount: dec("0.01"), Category: core.Food},
		{Amount: dec("7"), Category: core.Clothes},
	}
	total := decimal.Zero
	for _, x := range expenses {
		total = total.Add(x.Amount)
	}

	groups := Breakdown(expenses)
	sum := decimal.Zero
	count := 0
	for i, g := range groups {
		sum = sum.Add(g.Sum)
		count += g.Count
		if i > 0 && g.Sum.GreaterThan(groups[i-1].Sum) {
			t.Fatalf("breakdown not descending: %+v", groups)
		}
	}
	if !sum.Equal(total) || count != len(expenses) {
		t.Fatalf("breakdown sum %s count %d, want %s %d", sum, count, total, len(expenses))
	}
	if len(groups) != 4 {
		t.Fatalf("want 4 categories, got %d", len(groups))
	}
	// equal sums keep first-appearance order
	if groups[2].Category != core.Car || groups[3].Category != core.School {
		t.Fatalf("tie order = %v, %v", groups[2].Category, groups[3].Category)
	}

	pct := Percentages(expenses)
	var p float64
	for i, c := range pct {
		p += c.Percent
		if i > 0 && c.Percent > pct[i-1].Percent {
			t.Fatalf("percentages not descending: %+v", pct)
		}
	}
	if math.Abs(p-100) > 1e-9 {
		t.Fatalf("percentages sum to %v", p)
	}

	if got := Percentages(nil); got == nil || len(got) != 0 {
		t.Fatalf("Percentages(nil) = %#v, want empty", got)
	}
	if got := Breakdown(nil); got == nil || len(got) != 0 {
		t.Fatalf("Breakdown(nil) = %#v, want empty", got)
	}
}
