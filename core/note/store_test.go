package note

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/KeviinDCV/NotionK4S/core"
	"github.com/KeviinDCV/NotionK4S/realtime"
)

type fakeRepo struct {
	mu   sync.Mutex
	rows map[string]Note
	seq  int
}

var _ Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[string]Note)}
}

func (r *fakeRepo) CreateNote(ctx context.Context, n Note) (Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	n.ID = fmt.Sprintf("note-%d", r.seq)
	r.rows[n.ID] = n
	return n, nil
}

func (r *fakeRepo) GetNoteByID(ctx context.Context, id string) (Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return Note{}, ErrNotFound
	}
	return n, nil
}

func (r *fakeRepo) ListOwnerNotes(ctx context.Context, ownerID string, ordering []core.DBOrdering) ([]Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var notes []Note
	for _, n := range r.rows {
		if n.OwnerID == ownerID {
			notes = append(notes, n)
		}
	}
	return notes, nil
}

func (r *fakeRepo) UpdateNote(ctx context.Context, n Note) (Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[n.ID]; !ok {
		return Note{}, ErrNotFound
	}
	r.rows[n.ID] = n
	return n, nil
}

func (r *fakeRepo) DeleteNotesByID(ctx context.Context, ids ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.rows, id)
	}
	return nil
}

func newTestStore(repo Repository) *Store {
	return NewStore(repo, nil, nil, core.NopLogger{})
}

func TestStore_Create(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(newFakeRepo())

	first, err := store.Create(ctx, NewNote{OwnerID: "u1", Title: " groceries ", Body: "milk"})
	if err != nil {
		t.Fatalf("Create(): %v", err)
	}
	if first.Title != "groceries" {
		t.Errorf("Title = %q, want trimmed", first.Title)
	}

	second, err := store.Create(ctx, NewNote{OwnerID: "u1", Title: "ideas"})
	if err != nil {
		t.Fatalf("Create(): %v", err)
	}

	notes := store.Notes()
	if len(notes) != 2 || notes[0].ID != second.ID || notes[1].ID != first.ID {
		t.Errorf("Notes() = %v, want newest first", notes)
	}
}

func TestStore_Create_invalid(t *testing.T) {
	store := newTestStore(newFakeRepo())
	if _, err := store.Create(context.Background(), NewNote{OwnerID: "u1", Title: "   "}); err == nil {
		t.Error("Create() accepted a blank title")
	}
}

func TestStore_Update_movesToHead(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(newFakeRepo())

	older, err := store.Create(ctx, NewNote{OwnerID: "u1", Title: "older"})
	if err != nil {
		t.Fatalf("Create(): %v", err)
	}
	if _, err = store.Create(ctx, NewNote{OwnerID: "u1", Title: "newer"}); err != nil {
		t.Fatalf("Create(): %v", err)
	}

	pinned := true
	updated, err := store.Update(ctx, older.ID, UpdateNote{Pinned: &pinned})
	if err != nil {
		t.Fatalf("Update(): %v", err)
	}
	if !updated.Pinned {
		t.Error("Pinned not applied")
	}
	if updated.Title != "older" {
		t.Errorf("Title = %q, unset fields must survive", updated.Title)
	}

	notes := store.Notes()
	if len(notes) != 2 || notes[0].ID != older.ID {
		t.Errorf("Notes() = %v, want the edited note at the head", notes)
	}
}

func TestStore_Update_notFound(t *testing.T) {
	store := newTestStore(newFakeRepo())
	body := "text"
	if _, err := store.Update(context.Background(), "missing", UpdateNote{Body: &body}); err == nil {
		t.Error("Update() of a missing note succeeded")
	}
}

func TestStore_Fetch_switchesOwner(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	store := newTestStore(repo)

	if _, err := store.Create(ctx, NewNote{OwnerID: "u1", Title: "mine"}); err != nil {
		t.Fatalf("Create(): %v", err)
	}
	other := Note{OwnerID: "u2", Title: "theirs"}
	if _, err := repo.CreateNote(ctx, other); err != nil {
		t.Fatalf("CreateNote(): %v", err)
	}

	store.Fetch(ctx, "u2")
	notes := store.Notes()
	if len(notes) != 1 || notes[0].OwnerID != "u2" {
		t.Errorf("Notes() = %v, want only the new owner's notes", notes)
	}
}

func TestStore_Delete_idempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(newFakeRepo())

	n, err := store.Create(ctx, NewNote{OwnerID: "u1", Title: "scrap"})
	if err != nil {
		t.Fatalf("Create(): %v", err)
	}
	if err = store.Delete(ctx, "u1", n.ID); err != nil {
		t.Fatalf("Delete(): %v", err)
	}
	if err = store.Delete(ctx, "u1", n.ID); err != nil {
		t.Errorf("Delete() again: %v", err)
	}
	if len(store.Notes()) != 0 {
		t.Errorf("Notes() = %v, want empty", store.Notes())
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

func TestStore_Fetch_opensOwnerFeed(t *testing.T) {
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

	// a peer insert on the active scope lands in the cache via the point read
	peer, err := repo.CreateNote(ctx, Note{OwnerID: "u2", Title: "from peer"})
	if err != nil {
		t.Fatalf("CreateNote(): %v", err)
	}
	feed.handlers["u2"].OnInsert(realtime.Event{Op: realtime.OpInsert, Family: Family, Scope: "u2", RowID: peer.ID})
	notes := store.Notes()
	if len(notes) != 1 || notes[0].ID != peer.ID {
		t.Errorf("Notes() = %v, want the peer note merged", notes)
	}
}
