package note

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/KeviinDCV/NotionK4S/core"
	"github.com/KeviinDCV/NotionK4S/realtime"
)

var ErrNotFound = errors.New("note not found")

const mirrorName = "notes"

type (
	Repository interface {
		CreateNote(ctx context.Context, n Note) (Note, error)
		GetNoteByID(ctx context.Context, id string) (Note, error)
		ListOwnerNotes(ctx context.Context, ownerID string, ordering []core.DBOrdering) ([]Note, error)
		UpdateNote(ctx context.Context, n Note) (Note, error)
		DeleteNotesByID(ctx context.Context, ids ...string) error
	}

	// Store caches one owner's notes, most recently updated first.
	Store struct {
		mu     sync.RWMutex
		repo   Repository
		feed   realtime.Feed
		mirror core.Mirror
		logger core.Logger

		cache    *core.Cache[Note]
		owner    string
		fetchSeq uint64
		unsub    func()
	}
)

func NewStore(repo Repository, feed realtime.Feed, mirror core.Mirror, logger core.Logger) *Store {
	s := &Store{
		repo:   repo,
		feed:   feed,
		mirror: mirror,
		logger: logger,
		cache:  core.NewCache[Note](),
	}
	s.restore()
	return s
}

func defaultOrdering() []core.DBOrdering {
	return []core.DBOrdering{{Field: "updated_at"}}
}

func (s *Store) Notes() []Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.List()
}

// Fetch loads the owner's notes, newest update first. Switching owners
// replaces the cache wholesale and moves the feed subscription to the new
// owner's scope; a stale result of a superseded fetch is discarded.
func (s *Store) Fetch(ctx context.Context, ownerID string) {
	s.mu.Lock()
	switched := s.owner != ownerID || s.unsub == nil
	s.owner = ownerID
	s.fetchSeq++
	seq := s.fetchSeq
	s.mu.Unlock()

	if switched {
		if err := s.Subscribe(ownerID); err != nil {
			s.logger.Error(fmt.Sprintf("subscribing notes for %s: %v", ownerID, err), err)
		}
	}

	notes, err := s.repo.ListOwnerNotes(ctx, ownerID, defaultOrdering())
	if err != nil {
		s.logger.Error(fmt.Sprintf("fetching notes: %v", err), err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.fetchSeq {
		return
	}
	s.cache.Replace(notes)
	s.saveMirror()
}

func (s *Store) Create(ctx context.Context, nn NewNote) (Note, error) {
	if err := nn.Validate(); err != nil {
		return Note{}, err
	}

	now := time.Now().UTC()
	n := Note{
		OwnerID:   nn.OwnerID,
		Title:     strings.TrimSpace(nn.Title),
		Body:      nn.Body,
		Color:     nn.Color,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := s.repo.CreateNote(ctx, n)
	if err != nil {
		return Note{}, errors.Wrap(err, "creating note")
	}

	s.mu.Lock()
	s.cache.Prepend(created)
	s.saveMirror()
	s.mu.Unlock()

	s.publish(realtime.OpInsert, created.OwnerID, created.ID)
	return created, nil
}

// Update applies the non-nil fields after re-reading the stored row, then
// moves the note to the head of the cache since it is now the most
// recently updated.
func (s *Store) Update(ctx context.Context, id string, un UpdateNote) (Note, error) {
	if err := un.Validate(); err != nil {
		return Note{}, err
	}

	prev, err := s.repo.GetNoteByID(ctx, id)
	if err != nil {
		return Note{}, errors.Wrap(err, "reading note before update")
	}

	next := prev
	if un.Title != nil {
		next.Title = strings.TrimSpace(*un.Title)
	}
	if un.Body != nil {
		next.Body = *un.Body
	}
	if un.Color != nil {
		next.Color = *un.Color
	}
	if un.Pinned != nil {
		next.Pinned = *un.Pinned
	}
	next.UpdatedAt = time.Now().UTC()

	updated, err := s.repo.UpdateNote(ctx, next)
	if err != nil {
		return Note{}, errors.Wrap(err, "updating note")
	}

	s.mu.Lock()
	s.cache.Remove(updated.ID)
	s.cache.Prepend(updated)
	s.saveMirror()
	s.mu.Unlock()
	return updated, nil
}

// Delete removes a note remotely then locally. Absent ids succeed.
func (s *Store) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.repo.DeleteNotesByID(ctx, id); err != nil {
		return errors.Wrap(err, "deleting note")
	}

	s.mu.Lock()
	if s.cache.Remove(id) {
		s.saveMirror()
	}
	s.mu.Unlock()

	s.publish(realtime.OpDelete, ownerID, id)
	return nil
}

// Subscribe opens the owner's feed, replacing any prior owner's
// subscription.
func (s *Store) Subscribe(ownerID string) error {
	s.Unsubscribe()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.feed == nil {
		return nil
	}
	unsub, err := s.feed.Subscribe(Family, ownerID, realtime.Handlers{
		OnInsert: s.onRemoteInsert,
		OnDelete: s.onRemoteDelete,
	})
	if err != nil {
		unsub() // teardown is unconditional, even on a failed handshake
		return errors.Wrap(err, "subscribing to notes feed")
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

	n, err := s.repo.GetNoteByID(context.Background(), ev.RowID)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			s.logger.Error(fmt.Sprintf("reading note %s for feed event: %v", ev.RowID, err), err)
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

func (s *Store) publish(op, ownerID, id string) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(realtime.Event{Op: op, Family: Family, Scope: ownerID, RowID: id}); err != nil {
		s.logger.Error(fmt.Sprintf("publishing note %s event: %v", op, err), err)
	}
}

func (s *Store) saveMirror() {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Save(mirrorName, s.cache.List()); err != nil {
		s.logger.Error(fmt.Sprintf("mirroring notes: %v", err), err)
	}
}

func (s *Store) restore() {
	if s.mirror == nil {
		return
	}
	var notes []Note
	ok, err := s.mirror.Load(mirrorName, &notes)
	if err != nil {
		s.logger.Error(fmt.Sprintf("restoring note mirror: %v", err), err)
		return
	}
	if ok {
		s.cache.Replace(notes)
	}
}
