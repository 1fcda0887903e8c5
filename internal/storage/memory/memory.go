// Package memory is an in-process period/expense store with the same
// semantics as the SQLite repository. Data is lost when the process exits.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ledger/internal/core"
	"ledger/internal/live"
	"ledger/internal/storage"
)

type Store struct {
	mu       sync.Mutex
	expenses map[int64]core.Expense
	periods  map[int64]core.Period
	exported map[int64]string
	nextExp  int64
	nextPer  int64
	tracker  *live.Tracker
}

func New() *Store {
	return &Store{
		expenses: make(map[int64]core.Expense),
		periods:  make(map[int64]core.Period),
		exported: make(map[int64]string),
		tracker:  live.NewTracker(),
	}
}

func (s *Store) Tracker() *live.Tracker {
	return s.tracker
}

func (s *Store) InsertExpense(_ context.Context, e core.Expense) (int64, error) {
	s.mu.Lock()
	if _, ok := s.periods[e.PeriodID]; !ok {
		s.mu.Unlock()
		return 0, fmt.Errorf("insert expense: period %d: %w", e.PeriodID, core.ErrNotFound)
	}
	s.nextExp++
	e.ID = s.nextExp
	e.CreatedAt = truncate(e.CreatedAt)
	s.expenses[e.ID] = e
	s.mu.Unlock()

	s.tracker.Notify(storage.TableExpense)
	return e.ID, nil
}

func (s *Store) DeleteExpense(_ context.Context, id int64) error {
	s.mu.Lock()
	_, ok := s.expenses[id]
	delete(s.expenses, id)
	s.mu.Unlock()

	if ok {
		s.tracker.Notify(storage.TableExpense)
	}
	return nil
}

func (s *Store) ExpensesForPeriod(_ context.Context, periodID int64) ([]core.Expense, error) {
	return s.filterExpenses(func(e core.Expense) bool { return e.PeriodID == periodID }), nil
}

func (s *Store) ExpensesForPeriodByCategory(_ context.Context, periodID int64, c core.Category) ([]core.Expense, error) {
	return s.filterExpenses(func(e core.Expense) bool {
		return e.PeriodID == periodID && e.Category == c
	}), nil
}

func (s *Store) InsertPeriod(_ context.Context, p core.Period) (int64, error) {
	s.mu.Lock()
	s.nextPer++
	p.ID = s.nextPer
	p.CreatedAt = truncate(p.CreatedAt)
	s.periods[p.ID] = p
	s.mu.Unlock()

	s.tracker.Notify(storage.TablePeriod)
	return p.ID, nil
}

func (s *Store) AllPeriods(_ context.Context) ([]core.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Period, 0, len(s.periods))
	for _, p := range s.periods {
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) LatestPeriod(_ context.Context) (core.Period, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.latestLocked()
	return p, ok, nil
}

func (s *Store) PeriodCount(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.periods), nil
}

func (s *Store) Period(_ context.Context, id int64) (core.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.periods[id]
	if !ok {
		return core.Period{}, fmt.Errorf("period %d: %w", id, core.ErrNotFound)
	}
	return p, nil
}

func (s *Store) ArchivedPeriodsPendingExport(_ context.Context, limit int) ([]core.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	latest, ok := s.latestLocked()
	if !ok {
		return nil, nil
	}
	var out []core.Period
	for id, p := range s.periods {
		if id == latest.ID {
			continue
		}
		if _, done := s.exported[id]; done {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[j].Newer(out[i]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkPeriodExported(_ context.Context, periodID int64, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.periods[periodID]; !ok {
		return fmt.Errorf("mark period exported: period %d: %w", periodID, core.ErrNotFound)
	}
	s.exported[periodID] = ref
	return nil
}

// ExportRef returns the reference recorded for an exported period.
func (s *Store) ExportRef(periodID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.exported[periodID]
	return ref, ok
}

func (s *Store) latestLocked() (core.Period, bool) {
	var (
		latest core.Period
		found  bool
	)
	for _, p := range s.periods {
		if !found || p.Newer(latest) {
			latest, found = p, true
		}
	}
	return latest, found
}

func (s *Store) filterExpenses(keep func(core.Expense) bool) []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.expenses {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// truncate matches the millisecond precision of the SQLite schema.
func truncate(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli()).UTC()
}
