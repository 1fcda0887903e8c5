package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const maxDescriptionLen = 200

type (
	// Expense is a single logged expense. It is attached to the period that
	// was current when it was created and is never reassigned.
	Expense struct {
		ID          int64 // assigned by the store, 0 before creation
		PeriodID    int64
		Amount      decimal.Decimal
		Description string
		Category    Category
		CreatedAt   time.Time
	}

	// Period is a settlement period. SettledAmount is what the user declared
	// as paid and is independent of the attached expenses.
	Period struct {
		ID            int64
		SettledAmount decimal.Decimal
		CreatedAt     time.Time
	}

	// NewExpense is the user input for an expense before it is attached.
	NewExpense struct {
		Amount      decimal.Decimal
		Description string
		Category    Category
	}
)

var (
	ErrNoOpenPeriod       = errors.New("no open payment period")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrDescriptionTooLong = fmt.Errorf("description too long (max %d characters)", maxDescriptionLen)
	ErrNotFound           = errors.New("not found")
)

func (n NewExpense) Validate() error {
	if !n.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if len(strings.TrimSpace(n.Description)) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if !n.Category.Valid() {
		return ErrInvalidCategory
	}
	return nil
}

// ValidateSettlement checks a declared settlement amount. Zero is allowed:
// the first period is commonly opened with nothing paid yet.
func ValidateSettlement(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// Newer reports whether p is more recent than other: later CreatedAt, ties
// broken by the larger id.
func (p Period) Newer(other Period) bool {
	if !p.CreatedAt.Equal(other.CreatedAt) {
		return p.CreatedAt.After(other.CreatedAt)
	}
	return p.ID > other.ID
}
