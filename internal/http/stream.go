package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ledger/internal/core"
	"ledger/internal/live"
	ledgerlog "ledger/internal/log"
)

// keepAliveInterval is how often an idle stream sends a comment line so
// proxies do not drop it.
const keepAliveInterval = 30 * time.Second

func (s *Server) handleBreakdownStream(w http.ResponseWriter, r *http.Request) {
	stream(w, r, "breakdown", s.ledger.CurrentCategoryBreakdown(r.Context()))
}

func (s *Server) handlePercentagesStream(w http.ResponseWriter, r *http.Request) {
	stream(w, r, "percentages", s.ledger.CurrentCategoryPercentages(r.Context()))
}

func (s *Server) handleExpensesStream(w http.ResponseWriter, r *http.Request) {
	c, err := core.ParseCategory(r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	updates := s.ledger.CurrentExpenses(r.Context(), c)
	stream(w, r, "expenses", live.Map(r.Context(), updates, toExpensesJSON))
}

// stream writes every value from updates as an "update" event until the
// client disconnects or the channel closes. The view behind updates is
// bound to the request context.
func stream[T any](w http.ResponseWriter, r *http.Request, view string, updates <-chan T) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger := ledgerlog.FromContext(r.Context())
	logger.DebugContext(r.Context(), "Stream opened", ledgerlog.FieldOperation, ledgerlog.OpStream, "view", view)

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.DebugContext(r.Context(), "Stream closed", "view", view)
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case v, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(v)
			if err != nil {
				logger.ErrorContext(r.Context(), "Failed to encode view", "view", view, "error", err)
				return
			}
			if _, err := fmt.Fprintf(w, "event: update\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
