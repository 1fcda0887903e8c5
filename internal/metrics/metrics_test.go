package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestWriteCompletedLabelsResult(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.WriteCompleted("settle", nil)
	m.WriteCompleted("settle", nil)
	m.WriteCompleted("add_expense", errors.New("no period"))

	if got := testutil.ToFloat64(m.WritesTotal.WithLabelValues("settle", "ok")); got != 2 {
		t.Fatalf("settle ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.WritesTotal.WithLabelValues("add_expense", "error")); got != 1 {
		t.Fatalf("add_expense error = %v, want 1", got)
	}
}

func TestQueueDepthAndViews(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.QueueDepth(3)
	m.ViewEmitted("breakdown")
	m.PeriodExported(nil)

	if got := testutil.ToFloat64(m.WriteQueueDepth); got != 3 {
		t.Fatalf("queue depth = %v", got)
	}
	if got := testutil.ToFloat64(m.ViewEmissions.WithLabelValues("breakdown")); got != 1 {
		t.Fatalf("breakdown emissions = %v", got)
	}
	if got := testutil.ToFloat64(m.ExportsTotal.WithLabelValues("ok")); got != 1 {
		t.Fatalf("exports = %v", got)
	}
}
