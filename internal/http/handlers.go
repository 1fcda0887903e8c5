package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"ledger/internal/core"
	"ledger/internal/export"
	"ledger/internal/ledger"
	ledgerlog "ledger/internal/log"
	"ledger/internal/ui"
)

func handleCategories(w http.ResponseWriter, _ *http.Request) {
	cats := core.Categories()
	out := make([]categoryJSON, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryJSON{Code: int(c), Name: c, Color: c.Color()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.State())
}

// handleEvent feeds a UI intent to the controller and returns the new state.
// A rejected submit still answers with the state so the client can show
// LastError.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read body")
		return
	}
	ev, err := ui.DecodeEvent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	state, err := s.controller.Handle(r.Context(), ev)
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		ledgerlog.FromContext(r.Context()).WarnContext(r.Context(), "UI event rejected",
			"event", ev, "error", err)
	}
	writeJSON(w, status, state)
}

type createExpenseRequest struct {
	Amount      json.RawMessage `json:"amount"`
	Description string          `json:"description"`
	Category    json.RawMessage `json:"category"`
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := core.ParseAmount(scalarText(req.Amount))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	category, err := core.ParseCategory(scalarText(req.Category))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	in := core.NewExpense{Amount: amount, Description: sanitizeInput(req.Description), Category: category}

	id, err := wait(r, func() (*ledger.Pending, error) { return s.ledger.AddExpense(r.Context(), in) })
	if err != nil {
		s.writeWriteError(w, r, ledgerlog.OpAddExpense, err)
		return
	}
	ledgerlog.FromContext(r.Context()).InfoContext(r.Context(), "Expense added",
		ledgerlog.FieldOperation, ledgerlog.OpAddExpense,
		ledgerlog.FieldExpenseID, id,
		ledgerlog.FieldCategory, category.String(),
		ledgerlog.FieldAmount, amount.String())
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid expense id")
		return
	}
	if _, err := wait(r, func() (*ledger.Pending, error) { return s.ledger.DeleteExpense(r.Context(), id) }); err != nil {
		s.writeWriteError(w, r, ledgerlog.OpDeleteExpense, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type settleRequest struct {
	Amount json.RawMessage `json:"amount"`
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := core.ParseSettlement(scalarText(req.Amount))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	id, err := wait(r, func() (*ledger.Pending, error) { return s.ledger.Settle(r.Context(), amount) })
	if err != nil {
		s.writeWriteError(w, r, ledgerlog.OpSettle, err)
		return
	}
	ledgerlog.FromContext(r.Context()).InfoContext(r.Context(), "Period settled",
		ledgerlog.NewFields().WithOperation(ledgerlog.OpSettle).WithPeriod(id).ToSlice()...)
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := s.ledger.ListPeriods(r.Context())
	if err != nil {
		ledgerlog.FromContext(r.Context()).ErrorContext(r.Context(), "List periods failed", "error", err)
		writeError(w, http.StatusInternalServerError, "cannot list periods")
		return
	}
	out := make([]periodJSON, 0, len(periods))
	for _, p := range periods {
		out = append(out, toPeriodJSON(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleExportPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := s.ledger.ListPeriods(r.Context())
	if err != nil {
		ledgerlog.FromContext(r.Context()).ErrorContext(r.Context(), "List periods failed", "error", err)
		writeError(w, http.StatusInternalServerError, "cannot list periods")
		return
	}
	data, err := export.BuildPeriodsXLSX(periods)
	if err != nil {
		ledgerlog.FromContext(r.Context()).ErrorContext(r.Context(), "Build workbook failed", "error", err)
		writeError(w, http.StatusInternalServerError, "cannot build workbook")
		return
	}
	name := "periods-" + time.Now().Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// wait submits a write and blocks until it is applied or the request ends.
func wait(r *http.Request, submit func() (*ledger.Pending, error)) (int64, error) {
	p, err := submit()
	if err != nil {
		return 0, err
	}
	return p.Wait(r.Context())
}

func (s *Server) writeWriteError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	logger := ledgerlog.FromContext(r.Context())
	fields := ledgerlog.NewFields().WithOperation(op).WithError(err).ToSlice()
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Write failed", fields...)
	} else {
		logger.WarnContext(r.Context(), "Write rejected", fields...)
	}
	if errors.Is(err, r.Context().Err()) {
		// Client went away; nobody reads the response.
		return
	}
	writeError(w, status, err.Error())
}
