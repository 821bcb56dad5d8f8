package task

import (
	"strings"
	"time"

	"github.com/KeviinDCV/NotionK4S/core"
)

// Family is the entity family name on the realtime feed.
const Family = "task"

// ScopeBoard is the single shared scope: every team member sees one board.
const ScopeBoard = "board"

// Statuses
const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

// Priorities
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

var (
	AllStatuses   = []string{StatusTodo, StatusInProgress, StatusDone}
	AllPriorities = []string{PriorityLow, PriorityMedium, PriorityHigh}
)

type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	AssigneeID  string    `json:"assignee_id"` // empty = unassigned
	CreatedBy   string    `json:"created_by"`
	DueDate     time.Time `json:"due_date"` // zero = none
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

func (t Task) RecordID() string { return t.ID }

type NewTask struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=5000"`
	Status      string    `json:"status" validate:"omitempty,oneof=todo in_progress done"`
	Priority    string    `json:"priority" validate:"omitempty,oneof=low medium high"`
	AssigneeID  string    `json:"assignee_id"`
	DueDate     time.Time `json:"due_date"`
	CreatedBy   string    `json:"-"`
}

// UpdateTask is a partial update; nil fields are left untouched.
// A pointer to the empty string clears an optional field.
type UpdateTask struct {
	Title       *string    `json:"title" validate:"omitempty,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	Status      *string    `json:"status" validate:"omitempty,oneof=todo in_progress done"`
	Priority    *string    `json:"priority" validate:"omitempty,oneof=low medium high"`
	AssigneeID  *string    `json:"assignee_id"`
	DueDate     *time.Time `json:"due_date"`
}

func (nt *NewTask) Validate() error {
	nt.Title = core.CleanString(nt.Title)
	return core.Validate.Struct(nt)
}

func (ut *UpdateTask) Validate() error { return core.Validate.Struct(ut) }

// QueryFilter holds the store's filter state. All predicates are optional
// and combined with AND.
type QueryFilter struct {
	Search      string    `json:"search"` // case-insensitive match on title or description
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	AssigneeID  string    `json:"assignee_id"`
	CreatedFrom time.Time `json:"created_from"`
	CreatedTo   time.Time `json:"created_to"`
}

// FilterPatch is a partial filter change; nil fields are left untouched and
// a pointer to the zero value clears the predicate.
type FilterPatch struct {
	Search      *string    `json:"search"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
	AssigneeID  *string    `json:"assignee_id"`
	CreatedFrom *time.Time `json:"created_from"`
	CreatedTo   *time.Time `json:"created_to"`
}

func (f QueryFilter) merge(p FilterPatch) QueryFilter {
	if p.Search != nil {
		f.Search = *p.Search
	}
	if p.Status != nil {
		f.Status = *p.Status
	}
	if p.Priority != nil {
		f.Priority = *p.Priority
	}
	if p.AssigneeID != nil {
		f.AssigneeID = *p.AssigneeID
	}
	if p.CreatedFrom != nil {
		f.CreatedFrom = *p.CreatedFrom
	}
	if p.CreatedTo != nil {
		f.CreatedTo = *p.CreatedTo
	}
	return f
}

// Match evaluates the filter against one task. It is a pure function: the
// demo gateway and the connected gateway's WHERE clause share its semantics.
func (f QueryFilter) Match(t Task) bool {
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.Description), needle) {
			return false
		}
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.AssigneeID != "" && t.AssigneeID != f.AssigneeID {
		return false
	}
	if !f.CreatedFrom.IsZero() && t.CreatedAt.Before(f.CreatedFrom.UTC()) {
		return false
	}
	if !f.CreatedTo.IsZero() && t.CreatedAt.After(f.CreatedTo.UTC()) {
		return false
	}
	return true
}
