package core

import "time"

// Notification kinds.
const (
	NotifKindTaskAssigned  = "task_assigned"
	NotifKindMeetingInvite = "meeting_invite"
)

// Notification is a durable in-app notification addressed to one user.
type Notification struct {
	ID         string    `json:"id"`
	Recipient  string    `json:"recipient"`
	Kind       string    `json:"kind"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	SubjectRef string    `json:"subject_ref"` // id of the record the notification is about
	ActorRef   string    `json:"actor_ref"`   // id of the user whose action triggered it
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

func (n Notification) RecordID() string { return n.ID }

// Notifier durably records notifications for their recipients.
// Delivery is best-effort and fire-and-forget: a store calls Notify at most
// once per qualifying mutation and never fails its own operation when the
// notifier errors.
type Notifier interface {
	Notify(notifs ...*Notification)
}
