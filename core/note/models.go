package note

import (
	"time"

	"github.com/KeviinDCV/NotionK4S/core"
)

const (
	Family = "note"

	// ScopeOwner keys the realtime feed: notes are private, each user
	// subscribes to their own scope.
	ScopeOwner = "owner"
)

type (
	Note struct {
		ID        string    `json:"id"`
		OwnerID   string    `json:"owner_id"`
		Title     string    `json:"title"`
		Body      string    `json:"body"`
		Color     string    `json:"color,omitempty"`
		Pinned    bool      `json:"pinned"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	NewNote struct {
		OwnerID string `json:"-"`
		Title   string `json:"title" validate:"required,max=200"`
		Body    string `json:"body" validate:"max=20000"`
		Color   string `json:"color" validate:"omitempty,max=20"`
	}

	// UpdateNote carries partial changes; nil means unchanged.
	UpdateNote struct {
		Title  *string `json:"title" validate:"omitempty,max=200"`
		Body   *string `json:"body" validate:"omitempty,max=20000"`
		Color  *string `json:"color" validate:"omitempty,max=20"`
		Pinned *bool   `json:"pinned"`
	}
)

func (n Note) RecordID() string { return n.ID }

func (nn *NewNote) Validate() error {
	nn.Title = core.CleanString(nn.Title)
	return core.Validate.Struct(nn)
}

func (un *UpdateNote) Validate() error { return core.Validate.Struct(un) }
