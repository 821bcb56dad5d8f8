package expense

import (
	"time"

	"github.com/KeviinDCV/NotionK4S/core"
)

const (
	Family = "expense"

	// ScopeBoard keys the realtime feed: every member shares one board.
	ScopeBoard = "board"
)

// Expense categories.
const (
	CategoryFood      = "food"
	CategoryTransport = "transport"
	CategoryUtilities = "utilities"
	CategoryLeisure   = "leisure"
	CategoryOther     = "other"
)

func AllCategories() []string {
	return []string{CategoryFood, CategoryTransport, CategoryUtilities, CategoryLeisure, CategoryOther}
}

type (
	// Expense records a shared cost. AmountCents avoids floating point on
	// money throughout the stack.
	Expense struct {
		ID          string    `json:"id"`
		Description string    `json:"description"`
		AmountCents int64     `json:"amount_cents"`
		Currency    string    `json:"currency"`
		Category    string    `json:"category"`
		PaidBy      string    `json:"paid_by,omitempty"`
		CreatedBy   string    `json:"created_by"`
		SpentOn     time.Time `json:"spent_on"`
		CreatedAt   time.Time `json:"created_at"`
		UpdatedAt   time.Time `json:"updated_at"`
	}

	NewExpense struct {
		CreatedBy   string    `json:"-"`
		Description string    `json:"description" validate:"required,max=200"`
		AmountCents int64     `json:"amount_cents" validate:"required,gt=0"`
		Currency    string    `json:"currency" validate:"omitempty,len=3,alpha"`
		Category    string    `json:"category" validate:"omitempty,oneof=food transport utilities leisure other"`
		PaidBy      string    `json:"paid_by"`
		SpentOn     time.Time `json:"spent_on"`
	}

	// UpdateExpense carries partial changes; nil means unchanged.
	UpdateExpense struct {
		Description *string    `json:"description" validate:"omitempty,max=200"`
		AmountCents *int64     `json:"amount_cents" validate:"omitempty,gt=0"`
		Currency    *string    `json:"currency" validate:"omitempty,len=3,alpha"`
		Category    *string    `json:"category" validate:"omitempty,oneof=food transport utilities leisure other"`
		PaidBy      *string    `json:"paid_by"`
		SpentOn     *time.Time `json:"spent_on"`
	}
)

func (e Expense) RecordID() string { return e.ID }

func (ne *NewExpense) Validate() error {
	ne.Description = core.CleanString(ne.Description)
	return core.Validate.Struct(ne)
}

func (ue *UpdateExpense) Validate() error { return core.Validate.Struct(ue) }
