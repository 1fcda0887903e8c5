package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 16

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps ledger errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidCategory),
		errors.Is(err, core.ErrDescriptionTooLong):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNoOpenPeriod):
		return http.StatusConflict
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrStopped):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// scalarText returns a JSON string or number as plain text.
func scalarText(m json.RawMessage) string {
	var s string
	if err := json.Unmarshal(m, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(m))
}

// sanitizeInput drops control characters other than tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

type expenseJSON struct {
	ID          int64           `json:"id"`
	PeriodID    int64           `json:"period_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    core.Category   `json:"category"`
	Color       string          `json:"color"`
	CreatedAt   time.Time       `json:"created_at"`
}

func toExpenseJSON(e core.Expense) expenseJSON {
	return expenseJSON{
		ID:          e.ID,
		PeriodID:    e.PeriodID,
		Amount:      e.Amount,
		Description: e.Description,
		Category:    e.Category,
		Color:       e.Category.Color(),
		CreatedAt:   e.CreatedAt,
	}
}

func toExpensesJSON(in []core.Expense) []expenseJSON {
	out := make([]expenseJSON, 0, len(in))
	for _, e := range in {
		out = append(out, toExpenseJSON(e))
	}
	return out
}

type periodJSON struct {
	ID            int64           `json:"id"`
	SettledAmount decimal.Decimal `json:"settled_amount"`
	CreatedAt     time.Time       `json:"created_at"`
	ActualSpend   decimal.Decimal `json:"actual_spend"`
	ExpenseCount  int             `json:"expense_count"`
	Expenses      []expenseJSON   `json:"expenses"`
}

func toPeriodJSON(s core.PeriodSummary) periodJSON {
	return periodJSON{
		ID:            s.Period.ID,
		SettledAmount: s.Period.SettledAmount,
		CreatedAt:     s.Period.CreatedAt,
		ActualSpend:   s.ActualSpend,
		ExpenseCount:  s.ExpenseCount,
		Expenses:      toExpensesJSON(s.Expenses),
	}
}

type categoryJSON struct {
	Code  int           `json:"code"`
	Name  core.Category `json:"name"`
	Color string        `json:"color"`
}
