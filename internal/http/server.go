// Package http exposes the ledger over JSON endpoints and Server-Sent Event
// streams of the live views.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/ui"
)

// Ledger is the engine surface the handlers need.
type Ledger interface {
	AddExpense(ctx context.Context, in core.NewExpense) (*ledger.Pending, error)
	Settle(ctx context.Context, amount decimal.Decimal) (*ledger.Pending, error)
	DeleteExpense(ctx context.Context, id int64) (*ledger.Pending, error)
	ListPeriods(ctx context.Context) ([]core.PeriodSummary, error)
	CurrentCategoryBreakdown(ctx context.Context) <-chan []core.CategoryBreakdown
	CurrentCategoryPercentages(ctx context.Context) <-chan []core.CategoryPercentage
	CurrentExpenses(ctx context.Context, c core.Category) <-chan []core.Expense
}

// Options carries the optional pieces of the server.
type Options struct {
	// Metrics serves /metrics. Defaults to the global Prometheus registry.
	Metrics http.Handler
	// Ready reports readiness for /readyz. Nil means always ready.
	Ready func(ctx context.Context) error
	// WritesPerMinute limits mutating requests per client. Zero uses 60.
	WritesPerMinute int
}

type Server struct {
	http.Server
	ledger      Ledger
	controller  *ui.Controller
	ready       func(ctx context.Context) error
	rateLimiter *rateLimiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, l Ledger, c *ui.Controller, opts Options) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			// Streams stay open for as long as the client listens.
			WriteTimeout:   0,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 16,
		},
		ledger:      l,
		controller:  c,
		ready:       opts.Ready,
		rateLimiter: newRateLimiter(opts.WritesPerMinute),
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", metrics)

	mux.HandleFunc("GET /api/categories", handleCategories)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/events", s.handleEvent)

	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	mux.HandleFunc("POST /api/periods", s.handleSettle)
	mux.HandleFunc("GET /api/periods", s.handleListPeriods)
	mux.HandleFunc("GET /api/periods/export.xlsx", s.handleExportPeriods)

	mux.HandleFunc("GET /api/breakdown", s.handleBreakdownStream)
	mux.HandleFunc("GET /api/percentages", s.handlePercentagesStream)
	mux.HandleFunc("GET /api/expenses", s.handleExpensesStream)

	s.Handler = s.withMiddleware(mux)
	return s
}

// Shutdown stops the rate limiter cleanup and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			slog.WarnContext(r.Context(), "Readiness check failed", "error", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
