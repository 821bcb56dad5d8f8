package dummydb

import (
	"context"
	"sort"

	"github.com/KeviinDCV/NotionK4S/core/chat"
)

type chatRepository struct {
	db    *chatTable
	users *userTable
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db *DB) chat.Repository {
	return &chatRepository{db: db.chat, users: db.user}
}

// withAuthor joins the author profile the way the connected gateway does.
func (repo *chatRepository) withAuthor(m chat.Message) chat.Message {
	repo.users.RLock()
	defer repo.users.RUnlock()

	if usr, ok := repo.users.table[m.UserID]; ok {
		m.Author = chat.Author{Name: usr.Name, Username: usr.Username}
	}
	return m
}

func (repo *chatRepository) CreateMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	repo.db.Lock()
	m.ID = NewID()
	stored := m
	repo.db.table[m.ID] = &stored
	repo.db.Unlock()

	return repo.withAuthor(m), nil
}

func (repo *chatRepository) GetMessageByID(ctx context.Context, id string) (chat.Message, error) {
	repo.db.RLock()
	m, ok := repo.db.table[id]
	repo.db.RUnlock()

	if !ok {
		return chat.Message{}, chat.ErrNotFound
	}
	return repo.withAuthor(*m), nil
}

func (repo *chatRepository) ListChannelMessages(ctx context.Context, channelID string, limit int) ([]chat.Message, error) {
	repo.db.RLock()
	msgs := make([]chat.Message, 0, len(repo.db.table))
	for _, m := range repo.db.table {
		if m.ChannelID == channelID {
			msgs = append(msgs, *m)
		}
	}
	repo.db.RUnlock()

	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:] // keep the newest
	}
	for i := range msgs {
		msgs[i] = repo.withAuthor(msgs[i])
	}
	return msgs, nil
}

func (repo *chatRepository) UpdateMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	repo.db.Lock()
	prev, ok := repo.db.table[m.ID]
	if !ok {
		repo.db.Unlock()
		return chat.Message{}, chat.ErrNotFound
	}
	next := *prev
	next.Body = m.Body
	next.UpdatedAt = m.UpdatedAt
	repo.db.table[next.ID] = &next
	repo.db.Unlock()

	return repo.withAuthor(next), nil
}

func (repo *chatRepository) DeleteMessagesByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
