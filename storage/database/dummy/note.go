package dummydb

import (
	"context"
	"sort"

	"github.com/KeviinDCV/NotionK4S/core"
	"github.com/KeviinDCV/NotionK4S/core/note"
)

type noteRepository struct {
	db *noteTable
}

var _ note.Repository = (*noteRepository)(nil) // interface compliance check

func NewNoteRepository(db *DB) note.Repository {
	return &noteRepository{db: db.note}
}

func (repo *noteRepository) CreateNote(ctx context.Context, n note.Note) (note.Note, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	n.ID = NewID()
	repo.db.table[n.ID] = &n
	return n, nil
}

func (repo *noteRepository) GetNoteByID(ctx context.Context, id string) (note.Note, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if n, ok := repo.db.table[id]; ok {
		return *n, nil
	}
	return note.Note{}, note.ErrNotFound
}

func (repo *noteRepository) ListOwnerNotes(ctx context.Context, ownerID string, ordering []core.DBOrdering) ([]note.Note, error) {
	repo.db.RLock()
	notes := make([]note.Note, 0, len(repo.db.table))
	for _, n := range repo.db.table {
		if n.OwnerID == ownerID {
			notes = append(notes, *n)
		}
	}
	repo.db.RUnlock()

	asc := len(ordering) > 0 && ordering[0].Ascending
	sort.SliceStable(notes, func(i, j int) bool {
		if asc {
			return notes[i].UpdatedAt.Before(notes[j].UpdatedAt)
		}
		return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
	})
	return notes, nil
}

func (repo *noteRepository) UpdateNote(ctx context.Context, n note.Note) (note.Note, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[n.ID]; !ok {
		return note.Note{}, note.ErrNotFound
	}
	repo.db.table[n.ID] = &n
	return n, nil
}

func (repo *noteRepository) DeleteNotesByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
