package chat

import (
	"time"

	"github.com/KeviinDCV/NotionK4S/core"
)

// Family is the entity family name on the realtime feed; the scope is the
// channel identifier.
const Family = "chat"

// DefaultChannel is the channel every team lands in.
const DefaultChannel = "general"

// FetchLimit bounds how many of a channel's newest messages a fetch loads.
const FetchLimit = 50

// Author is the posting user's profile, denormalized onto the message by
// the gateway's joined reads.
type Author struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

type Message struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC

	Author Author `json:"author"`
}

func (m Message) RecordID() string { return m.ID }

type NewMessage struct {
	ChannelID string `json:"-"`
	UserID    string `json:"-"`
	Body      string `json:"body" validate:"required,max=4000"`
}

func (nm *NewMessage) Validate() error { return core.Validate.Struct(nm) }
