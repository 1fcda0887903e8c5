package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ledger/internal/core"
)

type fakeSheet struct {
	mu       sync.Mutex
	rows     int
	updates  []string
	lastBody gsheet.ValueRange
}

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodGet:
		values := make([][]any, f.rows)
		for i := range values {
			values[i] = []any{i}
		}
		json.NewEncoder(w).Encode(map[string]any{"values": values})
	case http.MethodPut:
		if got := r.URL.Query().Get("valueInputOption"); got != "USER_ENTERED" {
			http.Error(w, "bad valueInputOption "+got, http.StatusBadRequest)
			return
		}
		json.NewDecoder(r.Body).Decode(&f.lastBody)
		f.updates = append(f.updates, r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:])
		f.rows += len(f.lastBody.Values)
		json.NewEncoder(w).Encode(map[string]any{})
	default:
		http.Error(w, "unexpected", http.StatusMethodNotAllowed)
	}
}

func newTestClient(t *testing.T, sheet *fakeSheet) *Client {
	t.Helper()
	srv := httptest.NewServer(sheet)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("sheets service: %v", err)
	}
	return NewWithService(svc, "sheet-id", "Periods")
}

func summary(id int64) core.PeriodSummary {
	p := core.Period{ID: id, SettledAmount: decimal.NewFromInt(100), CreatedAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)}
	return core.Summarize(p, []core.Expense{{Amount: decimal.NewFromInt(25), Category: core.House}})
}

func TestExportPeriodWritesHeaderOnEmptySheet(t *testing.T) {
	sheet := &fakeSheet{}
	c := newTestClient(t, sheet)

	ref, err := c.ExportPeriod(context.Background(), summary(1))
	if err != nil {
		t.Fatalf("ExportPeriod: %v", err)
	}
	if ref != "Periods!A2:M2" {
		t.Errorf("ref = %q, want Periods!A2:M2", ref)
	}
	if len(sheet.updates) != 1 || sheet.updates[0] != "Periods!A1:M2" {
		t.Fatalf("updates = %v", sheet.updates)
	}
	if len(sheet.lastBody.Values) != 2 || sheet.lastBody.Values[0][0] != "Period" {
		t.Errorf("header not written: %v", sheet.lastBody.Values)
	}
}

func TestExportPeriodAppendsAfterLastRow(t *testing.T) {
	sheet := &fakeSheet{rows: 4}
	c := newTestClient(t, sheet)

	ref, err := c.ExportPeriod(context.Background(), summary(7))
	if err != nil {
		t.Fatalf("ExportPeriod: %v", err)
	}
	if ref != "Periods!A5:M5" {
		t.Errorf("ref = %q, want Periods!A5:M5", ref)
	}
	if len(sheet.lastBody.Values) != 1 {
		t.Fatalf("want a single row, got %v", sheet.lastBody.Values)
	}
	if got := sheet.lastBody.Values[0][3]; got != "25" {
		t.Errorf("spent cell = %#v, want \"25\"", got)
	}
}

func TestExportPeriodWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if _, err := c.ExportPeriod(context.Background(), summary(1)); err == nil {
		t.Fatal("expected error with nil service")
	}
}

func TestNewRequiresSpreadsheetAndCredentials(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Error("expected error for missing spreadsheet id")
	}
	if _, err := New(context.Background(), Config{SpreadsheetID: "x"}); err == nil {
		t.Error("expected error for missing credentials")
	}
}

func TestColumnName(t *testing.T) {
	tests := map[int]string{1: "A", 13: "M", 26: "Z", 27: "AA", 52: "AZ", 53: "BA"}
	for n, want := range tests {
		if got := columnName(n); got != want {
			t.Errorf("columnName(%d) = %s, want %s", n, got, want)
		}
	}
}
