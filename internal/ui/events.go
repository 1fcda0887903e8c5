package ui

import (
	"encoding/json"
	"fmt"

	"ledger/internal/core"
)

// Event is a user intent forwarded by the presentation layer.
type Event interface {
	isEvent()
}

type (
	AddClicked          struct{}
	SettleClicked       struct{}
	CloseAddDialog      struct{}
	CloseSettleDialog   struct{}
	CloseNoPeriodNotice struct{}
	CloseCategoryDetail struct{}
	StatisticsLoaded    struct{}

	OpenCategoryDetail struct {
		Category core.Category
	}

	// SubmitExpense carries raw form input; it is validated by the controller.
	SubmitExpense struct {
		Amount      string
		Description string
		Category    string
	}

	SubmitSettlement struct {
		Amount string
	}

	DeleteExpense struct {
		ID int64
	}
)

func (AddClicked) isEvent()          {}
func (SettleClicked) isEvent()       {}
func (CloseAddDialog) isEvent()      {}
func (CloseSettleDialog) isEvent()   {}
func (CloseNoPeriodNotice) isEvent() {}
func (CloseCategoryDetail) isEvent() {}
func (StatisticsLoaded) isEvent()    {}
func (OpenCategoryDetail) isEvent()  {}
func (SubmitExpense) isEvent()       {}
func (SubmitSettlement) isEvent()    {}
func (DeleteExpense) isEvent()       {}

// DecodeEvent parses {"type": "...", ...} into an Event.
func DecodeEvent(data []byte) (Event, error) {
	var raw struct {
		Type        string          `json:"type"`
		Amount      json.RawMessage `json:"amount"`
		Description string          `json:"description"`
		Category    json.RawMessage `json:"category"`
		ID          int64           `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	switch raw.Type {
	case "add_clicked":
		return AddClicked{}, nil
	case "settle_clicked":
		return SettleClicked{}, nil
	case "close_add_dialog":
		return CloseAddDialog{}, nil
	case "close_settle_dialog":
		return CloseSettleDialog{}, nil
	case "close_no_period_notice":
		return CloseNoPeriodNotice{}, nil
	case "close_category_detail":
		return CloseCategoryDetail{}, nil
	case "statistics_loaded":
		return StatisticsLoaded{}, nil
	case "open_category_detail":
		var c core.Category
		if err := json.Unmarshal(raw.Category, &c); err != nil {
			return nil, err
		}
		return OpenCategoryDetail{Category: c}, nil
	case "submit_expense":
		return SubmitExpense{
			Amount:      scalar(raw.Amount),
			Description: raw.Description,
			Category:    scalar(raw.Category),
		}, nil
	case "submit_settlement":
		return SubmitSettlement{Amount: scalar(raw.Amount)}, nil
	case "delete_expense":
		return DeleteExpense{ID: raw.ID}, nil
	}
	return nil, fmt.Errorf("unknown event type %q", raw.Type)
}

// scalar returns a JSON string or number as the text the user typed.
func scalar(m json.RawMessage) string {
	var s string
	if err := json.Unmarshal(m, &s); err == nil {
		return s
	}
	return string(m)
}
