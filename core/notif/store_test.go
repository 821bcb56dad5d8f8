package notif

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/KeviinDCV/NotionK4S/core"
	"github.com/KeviinDCV/NotionK4S/realtime"
)

type fakeRepo struct {
	mu   sync.Mutex
	rows map[string]core.Notification
	seq  int
}

var _ Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[string]core.Notification)}
}

func (r *fakeRepo) CreateNotifications(ctx context.Context, notifs ...core.Notification) ([]core.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	created := make([]core.Notification, 0, len(notifs))
	for _, n := range notifs {
		r.seq++
		n.ID = fmt.Sprintf("ntf-%d", r.seq)
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now().UTC().Add(time.Duration(r.seq) * time.Millisecond)
		}
		r.rows[n.ID] = n
		created = append(created, n)
	}
	return created, nil
}

func (r *fakeRepo) GetNotificationByID(ctx context.Context, id string) (core.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return core.Notification{}, ErrNotFound
	}
	return n, nil
}

func (r *fakeRepo) ListForRecipient(ctx context.Context, recipient string, limit int) ([]core.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var notifs []core.Notification
	for _, n := range r.rows {
		if n.Recipient == recipient {
			notifs = append(notifs, n)
		}
	}
	sort.Slice(notifs, func(i, j int) bool {
		return notifs[i].CreatedAt.After(notifs[j].CreatedAt)
	})
	if len(notifs) > limit {
		notifs = notifs[:limit]
	}
	return notifs, nil
}

func (r *fakeRepo) MarkRead(ctx context.Context, id string) (core.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return core.Notification{}, ErrNotFound
	}
	n.Read = true
	r.rows[id] = n
	return n, nil
}

func (r *fakeRepo) DeleteNotificationsByID(ctx context.Context, ids ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.rows, id)
	}
	return nil
}

func (r *fakeRepo) add(t *testing.T, recipient, kind string) core.Notification {
	t.Helper()
	created, err := r.CreateNotifications(context.Background(), core.Notification{
		Recipient: recipient,
		Kind:      kind,
		Title:     "heads up",
	})
	if err != nil {
		t.Fatalf("CreateNotifications(): %v", err)
	}
	return created[0]
}

func newTestStore(repo Repository) *Store {
	return NewStore(repo, nil, nil, core.NopLogger{})
}

func TestStore_Fetch(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	store := newTestStore(repo)

	older := repo.add(t, "u1", core.NotifKindTaskAssigned)
	newer := repo.add(t, "u1", core.NotifKindMeetingInvite)
	repo.add(t, "u2", core.NotifKindTaskAssigned)

	store.Fetch(ctx, "u1")
	notifs := store.Notifications()
	if len(notifs) != 2 {
		t.Fatalf("Notifications() = %v, want 2 rows", notifs)
	}
	if notifs[0].ID != newer.ID || notifs[1].ID != older.ID {
		t.Errorf("Notifications() = %v, want newest first", notifs)
	}

	// switching recipients replaces the inbox wholesale
	store.Fetch(ctx, "u2")
	notifs = store.Notifications()
	if len(notifs) != 1 || notifs[0].Recipient != "u2" {
		t.Errorf("Notifications() = %v, want only the new recipient's rows", notifs)
	}
}

func TestStore_UnreadCount(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	store := newTestStore(repo)

	first := repo.add(t, "u1", core.NotifKindTaskAssigned)
	repo.add(t, "u1", core.NotifKindMeetingInvite)

	store.Fetch(ctx, "u1")
	if got := store.UnreadCount(); got != 2 {
		t.Fatalf("UnreadCount() = %d, want 2", got)
	}

	updated, err := store.MarkRead(ctx, first.ID)
	if err != nil {
		t.Fatalf("MarkRead(): %v", err)
	}
	if !updated.Read {
		t.Error("MarkRead() returned an unread row")
	}
	if got := store.UnreadCount(); got != 1 {
		t.Errorf("UnreadCount() = %d, want 1", got)
	}
}

func TestStore_MarkRead_notFound(t *testing.T) {
	store := newTestStore(newFakeRepo())
	if _, err := store.MarkRead(context.Background(), "missing"); err == nil {
		t.Error("MarkRead() of a missing notification succeeded")
	}
}

func TestStore_Delete_idempotent(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	store := newTestStore(repo)

	n := repo.add(t, "u1", core.NotifKindTaskAssigned)
	store.Fetch(ctx, "u1")

	if err := store.Delete(ctx, n.ID); err != nil {
		t.Fatalf("Delete(): %v", err)
	}
	if err := store.Delete(ctx, n.ID); err != nil {
		t.Errorf("Delete() again: %v", err)
	}
	if len(store.Notifications()) != 0 {
		t.Errorf("Notifications() = %v, want empty", store.Notifications())
	}
}

func TestStore_onRemoteInsert(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	store := newTestStore(repo)

	existing := repo.add(t, "u1", core.NotifKindTaskAssigned)
	store.Fetch(ctx, "u1")

	// a redelivery for a cached row changes nothing
	store.onRemoteInsert(realtime.Event{Op: realtime.OpInsert, Family: Family, Scope: "u1", RowID: existing.ID})
	if len(store.Notifications()) != 1 {
		t.Fatalf("Notifications() = %v, want 1 row", store.Notifications())
	}

	// a fresh event is point-read and lands at the head
	fresh := repo.add(t, "u1", core.NotifKindMeetingInvite)
	store.onRemoteInsert(realtime.Event{Op: realtime.OpInsert, Family: Family, Scope: "u1", RowID: fresh.ID})
	notifs := store.Notifications()
	if len(notifs) != 2 || notifs[0].ID != fresh.ID {
		t.Errorf("Notifications() = %v, want the new row at the head", notifs)
	}

	// an event whose row has vanished is dropped
	store.onRemoteInsert(realtime.Event{Op: realtime.OpInsert, Family: Family, Scope: "u1", RowID: "gone"})
	if len(store.Notifications()) != 2 {
		t.Errorf("Notifications() = %v, want unchanged", store.Notifications())
	}
}

type fakeFeed struct {
	mu       sync.Mutex
	scopes   []string
	torndown []string
	handlers map[string]realtime.Handlers
}

var _ realtime.Feed = (*fakeFeed)(nil)

func newFakeFeed() *fakeFeed {
	return &fakeFeed{handlers: make(map[string]realtime.Handlers)}
}

func (f *fakeFeed) Publish(ev realtime.Event) error { return nil }

func (f *fakeFeed) Subscribe(family, scope string, h realtime.Handlers) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scopes = append(f.scopes, scope)
	f.handlers[scope] = h
	return func() {
		f.mu.Lock()
		f.torndown = append(f.torndown, scope)
		f.mu.Unlock()
	}, nil
}

func TestStore_Fetch_opensRecipientFeed(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	feed := newFakeFeed()
	store := NewStore(repo, feed, nil, core.NopLogger{})

	store.Fetch(ctx, "u1")
	store.Fetch(ctx, "u1")
	if len(feed.scopes) != 1 || feed.scopes[0] != "u1" {
		t.Fatalf("subscribed scopes = %v, want one subscription to u1", feed.scopes)
	}

	store.Fetch(ctx, "u2")
	if len(feed.scopes) != 2 || feed.scopes[1] != "u2" {
		t.Fatalf("subscribed scopes = %v, want a second subscription to u2", feed.scopes)
	}
	if len(feed.torndown) != 1 || feed.torndown[0] != "u1" {
		t.Errorf("torn down scopes = %v, want u1 closed on the switch", feed.torndown)
	}

	// an insert delivered on the active scope is point-read into the inbox
	fresh := repo.add(t, "u2", core.NotifKindTaskAssigned)
	feed.handlers["u2"].OnInsert(realtime.Event{Op: realtime.OpInsert, Family: Family, Scope: "u2", RowID: fresh.ID})
	notifs := store.Notifications()
	if len(notifs) != 1 || notifs[0].ID != fresh.ID {
		t.Errorf("Notifications() = %v, want the delivered row merged", notifs)
	}
}
