package dummydb

import (
	"context"
	"sort"

	"github.com/KeviinDCV/NotionK4S/core"
	"github.com/KeviinDCV/NotionK4S/core/notif"
)

type notifRepository struct {
	db *notifTable
}

var _ notif.Repository = (*notifRepository)(nil) // interface compliance check

func NewNotifRepository(db *DB) notif.Repository {
	return &notifRepository{db: db.notif}
}

func (repo *notifRepository) CreateNotifications(ctx context.Context, notifs ...core.Notification) ([]core.Notification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	created := make([]core.Notification, 0, len(notifs))
	for _, n := range notifs {
		n.ID = NewID()
		stored := n
		repo.db.table[n.ID] = &stored
		created = append(created, n)
	}
	return created, nil
}

func (repo *notifRepository) GetNotificationByID(ctx context.Context, id string) (core.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if n, ok := repo.db.table[id]; ok {
		return *n, nil
	}
	return core.Notification{}, notif.ErrNotFound
}

func (repo *notifRepository) ListForRecipient(ctx context.Context, recipient string, limit int) ([]core.Notification, error) {
	repo.db.RLock()
	notifs := make([]core.Notification, 0, len(repo.db.table))
	for _, n := range repo.db.table {
		if n.Recipient == recipient {
			notifs = append(notifs, *n)
		}
	}
	repo.db.RUnlock()

	sort.SliceStable(notifs, func(i, j int) bool { return notifs[i].CreatedAt.After(notifs[j].CreatedAt) })
	if limit > 0 && len(notifs) > limit {
		notifs = notifs[:limit]
	}
	return notifs, nil
}

func (repo *notifRepository) MarkRead(ctx context.Context, id string) (core.Notification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	n, ok := repo.db.table[id]
	if !ok {
		return core.Notification{}, notif.ErrNotFound
	}
	n.Read = true
	return *n, nil
}

func (repo *notifRepository) DeleteNotificationsByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
