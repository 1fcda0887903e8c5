// Package ui holds the interaction controller: an explicit state record for
// dialog visibility, changed only by Handle.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

// State is what the presentation layer renders.
type State struct {
	AddDialog        bool          `json:"add_dialog"`
	NoPeriodNotice   bool          `json:"no_period_notice"`
	SettleDialog     bool          `json:"settle_dialog"`
	CategoryDetail   bool          `json:"category_detail"`
	DetailCategory   core.Category `json:"detail_category,omitempty"`
	StatisticsLoaded bool          `json:"statistics_loaded"`
	LastError        string        `json:"last_error,omitempty"`
}

// Engine is the part of ledger.Engine the controller drives.
type Engine interface {
	CanAddExpense(ctx context.Context) (bool, error)
	AddExpense(ctx context.Context, in core.NewExpense) (*ledger.Pending, error)
	Settle(ctx context.Context, amount decimal.Decimal) (*ledger.Pending, error)
	DeleteExpense(ctx context.Context, id int64) (*ledger.Pending, error)
}

type Controller struct {
	engine Engine

	mu    sync.Mutex
	state State
}

func NewController(engine Engine) *Controller {
	return &Controller{engine: engine}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) update(f func(*State)) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	f(&c.state)
	return c.state
}

// fail records err as the visible error and returns it.
func (c *Controller) fail(err error) (State, error) {
	return c.update(func(s *State) { s.LastError = err.Error() }), err
}

// Handle applies ev and returns the new state. Submit events wait for the
// write to complete; on failure the dialog stays open and LastError is set.
func (c *Controller) Handle(ctx context.Context, ev Event) (State, error) {
	switch ev := ev.(type) {
	case AddClicked:
		ok, err := c.engine.CanAddExpense(ctx)
		if err != nil {
			return c.fail(err)
		}
		return c.update(func(s *State) {
			s.LastError = ""
			s.AddDialog = ok
			s.NoPeriodNotice = !ok
		}), nil

	case SettleClicked:
		return c.update(func(s *State) { s.SettleDialog, s.LastError = true, "" }), nil

	case CloseAddDialog:
		return c.update(func(s *State) { s.AddDialog, s.LastError = false, "" }), nil

	case CloseSettleDialog:
		return c.update(func(s *State) { s.SettleDialog, s.LastError = false, "" }), nil

	case CloseNoPeriodNotice:
		return c.update(func(s *State) { s.NoPeriodNotice = false }), nil

	case OpenCategoryDetail:
		if !ev.Category.Valid() {
			return c.fail(core.ErrInvalidCategory)
		}
		return c.update(func(s *State) {
			s.CategoryDetail = true
			s.DetailCategory = ev.Category
		}), nil

	case CloseCategoryDetail:
		return c.update(func(s *State) {
			s.CategoryDetail = false
			s.DetailCategory = 0
		}), nil

	case StatisticsLoaded:
		return c.update(func(s *State) { s.StatisticsLoaded = true }), nil

	case SubmitExpense:
		return c.submitExpense(ctx, ev)

	case SubmitSettlement:
		return c.submitSettlement(ctx, ev)

	case DeleteExpense:
		if err := await(ctx, func() (*ledger.Pending, error) { return c.engine.DeleteExpense(ctx, ev.ID) }); err != nil {
			return c.fail(err)
		}
		return c.update(func(s *State) { s.LastError = "" }), nil
	}
	return c.State(), fmt.Errorf("unhandled event %T", ev)
}

func (c *Controller) submitExpense(ctx context.Context, ev SubmitExpense) (State, error) {
	amount, err := core.ParseAmount(ev.Amount)
	if err != nil {
		return c.fail(err)
	}
	category, err := core.ParseCategory(ev.Category)
	if err != nil {
		return c.fail(err)
	}
	in := core.NewExpense{Amount: amount, Description: ev.Description, Category: category}

	err = await(ctx, func() (*ledger.Pending, error) { return c.engine.AddExpense(ctx, in) })
	if errors.Is(err, core.ErrNoOpenPeriod) {
		// The last period check was stale; show the notice instead.
		return c.update(func(s *State) {
			s.AddDialog = false
			s.NoPeriodNotice = true
			s.LastError = err.Error()
		}), err
	}
	if err != nil {
		return c.fail(err)
	}
	return c.update(func(s *State) { s.AddDialog, s.LastError = false, "" }), nil
}

func (c *Controller) submitSettlement(ctx context.Context, ev SubmitSettlement) (State, error) {
	amount, err := core.ParseSettlement(ev.Amount)
	if err != nil {
		return c.fail(err)
	}
	if err := await(ctx, func() (*ledger.Pending, error) { return c.engine.Settle(ctx, amount) }); err != nil {
		return c.fail(err)
	}
	return c.update(func(s *State) { s.SettleDialog, s.LastError = false, "" }), nil
}

func await(ctx context.Context, submit func() (*ledger.Pending, error)) error {
	p, err := submit()
	if err != nil {
		return err
	}
	if _, err := p.Wait(ctx); err != nil {
		slog.WarnContext(ctx, "Write failed", "error", err)
		return err
	}
	return nil
}
