package notif

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/KeviinDCV/NotionK4S/core"
	"github.com/KeviinDCV/NotionK4S/realtime"
)

var ErrNotFound = errors.New("notification not found")

const (
	Family = "notif"

	mirrorName = "notifications"

	// FetchLimit bounds the inbox: only the newest notifications are kept
	// client-side.
	FetchLimit = 100
)

type (
	Repository interface {
		CreateNotifications(ctx context.Context, notifs ...core.Notification) ([]core.Notification, error)
		GetNotificationByID(ctx context.Context, id string) (core.Notification, error)
		// ListForRecipient returns up to `limit` of the recipient's newest
		// notifications in descending creation order.
		ListForRecipient(ctx context.Context, recipient string, limit int) ([]core.Notification, error)
		MarkRead(ctx context.Context, id string) (core.Notification, error)
		DeleteNotificationsByID(ctx context.Context, ids ...string) error
	}

	// Store caches one recipient's inbox, newest first.
	Store struct {
		mu     sync.RWMutex
		repo   Repository
		feed   realtime.Feed
		mirror core.Mirror
		logger core.Logger

		cache     *core.Cache[core.Notification]
		recipient string
		fetchSeq  uint64
		unsub     func()
	}
)

func NewStore(repo Repository, feed realtime.Feed, mirror core.Mirror, logger core.Logger) *Store {
	s := &Store{
		repo:   repo,
		feed:   feed,
		mirror: mirror,
		logger: logger,
		cache:  core.NewCache[core.Notification](),
	}
	s.restore()
	return s
}

func (s *Store) Notifications() []core.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.List()
}

// UnreadCount counts the cached unread notifications.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, notif := range s.cache.List() {
		if !notif.Read {
			n++
		}
	}
	return n
}

// Fetch loads the recipient's inbox. Switching recipients replaces the
// cache wholesale and moves the feed subscription to the new recipient's
// scope; stale results of superseded fetches are discarded.
func (s *Store) Fetch(ctx context.Context, recipient string) {
	s.mu.Lock()
	switched := s.recipient != recipient || s.unsub == nil
	s.recipient = recipient
	s.fetchSeq++
	seq := s.fetchSeq
	s.mu.Unlock()

	if switched {
		if err := s.Subscribe(recipient); err != nil {
			s.logger.Error(fmt.Sprintf("subscribing notifications for %s: %v", recipient, err), err)
		}
	}

	notifs, err := s.repo.ListForRecipient(ctx, recipient, FetchLimit)
	if err != nil {
		s.logger.Error(fmt.Sprintf("fetching notifications: %v", err), err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.fetchSeq {
		return
	}
	s.cache.Replace(notifs)
	s.saveMirror()
}

// MarkRead flags a notification as read remotely then in the cache.
func (s *Store) MarkRead(ctx context.Context, id string) (core.Notification, error) {
	updated, err := s.repo.MarkRead(ctx, id)
	if err != nil {
		return core.Notification{}, errors.Wrap(err, "marking notification read")
	}

	s.mu.Lock()
	s.cache.Set(updated)
	s.saveMirror()
	s.mu.Unlock()
	return updated, nil
}

// Delete dismisses a notification. Absent ids succeed.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteNotificationsByID(ctx, id); err != nil {
		return errors.Wrap(err, "deleting notification")
	}

	s.mu.Lock()
	if s.cache.Remove(id) {
		s.saveMirror()
	}
	s.mu.Unlock()
	return nil
}

// Subscribe opens the recipient's feed, replacing any prior recipient's
// subscription.
func (s *Store) Subscribe(recipient string) error {
	s.Unsubscribe()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.feed == nil {
		return nil
	}
	unsub, err := s.feed.Subscribe(Family, recipient, realtime.Handlers{
		OnInsert: s.onRemoteInsert,
		OnDelete: s.onRemoteDelete,
	})
	if err != nil {
		unsub() // teardown is unconditional, even on a failed handshake
		return errors.Wrap(err, "subscribing to notifications feed")
	}
	s.unsub = unsub
	return nil
}

func (s *Store) Unsubscribe() {
	s.mu.Lock()
	unsub := s.unsub
	s.unsub = nil
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (s *Store) onRemoteInsert(ev realtime.Event) {
	s.mu.RLock()
	_, exists := s.cache.Get(ev.RowID)
	s.mu.RUnlock()
	if exists {
		return
	}

	n, err := s.repo.GetNotificationByID(context.Background(), ev.RowID)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			s.logger.Error(fmt.Sprintf("reading notification %s for feed event: %v", ev.RowID, err), err)
		}
		return
	}

	s.mu.Lock()
	if s.cache.MergeNew(n, false) {
		s.saveMirror()
	}
	s.mu.Unlock()
}

func (s *Store) onRemoteDelete(ev realtime.Event) {
	s.mu.Lock()
	if s.cache.Remove(ev.RowID) {
		s.saveMirror()
	}
	s.mu.Unlock()
}

func (s *Store) saveMirror() {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Save(mirrorName, s.cache.List()); err != nil {
		s.logger.Error(fmt.Sprintf("mirroring notifications: %v", err), err)
	}
}

func (s *Store) restore() {
	if s.mirror == nil {
		return
	}
	var notifs []core.Notification
	ok, err := s.mirror.Load(mirrorName, &notifs)
	if err != nil {
		s.logger.Error(fmt.Sprintf("restoring notification mirror: %v", err), err)
		return
	}
	if ok {
		s.cache.Replace(notifs)
	}
}
