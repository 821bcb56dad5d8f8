package meeting

import (
	"time"

	"github.com/KeviinDCV/NotionK4S/core"
)

const (
	Family = "meeting"

	// ScopeBoard keys the realtime feed: every member shares one board.
	ScopeBoard = "board"
)

type (
	// Meeting is a scheduled session with an invitee list. Participants
	// carries user ids; the organizer is always among them.
	Meeting struct {
		ID           string    `json:"id"`
		Title        string    `json:"title"`
		Agenda       string    `json:"agenda,omitempty"`
		Location     string    `json:"location,omitempty"`
		OrganizerID  string    `json:"organizer_id"`
		Participants []string  `json:"participants"`
		ScheduledAt  time.Time `json:"scheduled_at"`
		DurationMins int       `json:"duration_mins"`
		CreatedAt    time.Time `json:"created_at"`
		UpdatedAt    time.Time `json:"updated_at"`
	}

	NewMeeting struct {
		OrganizerID  string    `json:"-"`
		Title        string    `json:"title" validate:"required,max=200"`
		Agenda       string    `json:"agenda" validate:"max=5000"`
		Location     string    `json:"location" validate:"max=200"`
		Participants []string  `json:"participants"`
		ScheduledAt  time.Time `json:"scheduled_at" validate:"required"`
		DurationMins int       `json:"duration_mins" validate:"omitempty,gt=0,lte=1440"`
	}

	// UpdateMeeting carries partial changes; nil means unchanged. The
	// participant list changes through AddParticipant and
	// RemoveParticipant, not here.
	UpdateMeeting struct {
		Title        *string    `json:"title" validate:"omitempty,max=200"`
		Agenda       *string    `json:"agenda" validate:"omitempty,max=5000"`
		Location     *string    `json:"location" validate:"omitempty,max=200"`
		ScheduledAt  *time.Time `json:"scheduled_at"`
		DurationMins *int       `json:"duration_mins" validate:"omitempty,gt=0,lte=1440"`
	}
)

func (m Meeting) RecordID() string { return m.ID }

func (nm *NewMeeting) Validate() error {
	nm.Title = core.CleanString(nm.Title)
	return core.Validate.Struct(nm)
}

func (um *UpdateMeeting) Validate() error { return core.Validate.Struct(um) }

// HasParticipant reports whether uid is on the invitee list.
func (m Meeting) HasParticipant(uid string) bool {
	for _, p := range m.Participants {
		if p == uid {
			return true
		}
	}
	return false
}
