package notifsvc

import (
	"sync"

	"github.com/KeviinDCV/NotionK4S/core"
)

// RecordingNotifier captures notifications synchronously for assertions.
type RecordingNotifier struct {
	mu   sync.Mutex
	Sent []core.Notification
}

var _ core.Notifier = (*RecordingNotifier)(nil)

func NewRecordingNotifier() *RecordingNotifier { return &RecordingNotifier{} }

func (n *RecordingNotifier) Notify(notifs ...*core.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, notif := range notifs {
		if notif != nil {
			n.Sent = append(n.Sent, *notif)
		}
	}
}

func (n *RecordingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Sent)
}

func (n *RecordingNotifier) Last() (core.Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.Sent) == 0 {
		return core.Notification{}, false
	}
	return n.Sent[len(n.Sent)-1], true
}
