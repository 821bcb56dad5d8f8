package task

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

var ErrNotFound = errors.New("task not found")

const mirrorName = "tasks"

type (
	// Repository is the task gateway. The connected implementation talks to
	// Postgres; the demo implementation is in-memory only. Both are chosen
	// once at process start.
	Repository interface {
		CreateTask(ctx context.Context, t Task) (Task, error)
		GetTaskByID(ctx context.Context, id string) (Task, error)
		// FilterTasks applies AND on the set QueryFilter fields, ordered
		// per `ordering`; limit <= 0 means unbounded.
		FilterTasks(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, limit int) ([]Task, error)
		UpdateTask(ctx context.Context, t Task) (Task, error)
		// DeleteTasksByID removes rows; absent ids are not an error.
		DeleteTasksByID(ctx context.Context, ids ...string) error
	}

	// Store owns the task board's local cache and mediates every mutation
	// and query against it.
	Store struct {
		mu       sync.RWMutex
		repo     Repository
		notifier core.Notifier
		feed     realtime.Feed
		mirror   core.Mirror
		logger   core.Logger

		cache    *core.Cache[Task]
		selected string
		filter   QueryFilter
		fetchSeq uint64
		unsub    map[string]func()
	}
)

func NewStore(repo Repository, notifier core.Notifier, feed realtime.Feed, mirror core.Mirror, logger core.Logger) *Store {
	s := &Store{
		repo:     repo,
		notifier: notifier,
		feed:     feed,
		mirror:   mirror,
		logger:   logger,
		cache:    core.NewCache[Task](),
		unsub:    make(map[string]func()),
	}
	s.restore()
	return s
}

func defaultOrdering() []core.DBOrdering {
	return []core.DBOrdering{{Field: "created_at"}} // newest first
}

// Tasks returns the cached board in display order.
func (s *Store) Tasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.List()
}

func (s *Store) Filter() QueryFilter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// Select marks one task as the currently selected entity; an empty id
// clears the selection.
func (s *Store) Select(id string) {
	s.mu.Lock()
	s.selected = id
	s.mu.Unlock()
}

func (s *Store) Selected() (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == "" {
		return Task{}, false
	}
	return s.cache.Get(s.selected)
}

// Fetch replaces the cache with the gateway's view of the current filter.
// A gateway error is logged and leaves the cache at its last known good
// state. Each fetch carries a sequence number; a result superseded by a
// newer fetch before it resolved is discarded.
func (s *Store) Fetch(ctx context.Context) {
	s.mu.Lock()
	s.fetchSeq++
	seq := s.fetchSeq
	filter := s.filter
	s.mu.Unlock()

	tasks, err := s.repo.FilterTasks(ctx, filter, defaultOrdering(), 0)
	if err != nil {
		s.logger.Error(fmt.Sprintf("fetching tasks: %v", err), err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.fetchSeq {
		return // a newer fetch owns the cache now
	}
	s.cache.Replace(tasks)
	s.saveMirror()
}

// SetFilter merges the patch into the filter state and re-fetches.
func (s *Store) SetFilter(ctx context.Context, patch FilterPatch) {
	s.mu.Lock()
	s.filter = s.filter.merge(patch)
	s.mu.Unlock()
	s.Fetch(ctx)
}

// Create builds a complete task from caller fields and generated defaults,
// inserts it through the gateway and prepends the stored row to the cache.
// When the new task assigns someone other than its creator, a notification
// is emitted best-effort.
func (s *Store) Create(ctx context.Context, nt NewTask) (Task, error) {
	if err := nt.Validate(); err != nil {
		return Task{}, err
	}

	now := time.Now().UTC()
	t := Task{
		Title:       core.CleanString(nt.Title),
		Description: strings.TrimSpace(nt.Description),
		Status:      nt.Status,
		Priority:    nt.Priority,
		AssigneeID:  nt.AssigneeID,
		CreatedBy:   nt.CreatedBy,
		DueDate:     nt.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}

	created, err := s.repo.CreateTask(ctx, t)
	if err != nil {
		return Task{}, errors.Wrap(err, "creating task")
	}

	s.mu.Lock()
	s.cache.Prepend(created)
	s.saveMirror()
	s.mu.Unlock()

	s.publish(realtime.OpInsert, created.ID)
	if created.AssigneeID != "" && created.AssigneeID != created.CreatedBy {
		s.notifyAssigned(created, created.CreatedBy)
	}
	return created, nil
}

// Update applies a partial update. The pre-update record is read first:
// assignment-change detection needs the previous value, so the
// read-before-write is mandatory, not an optimization.
func (s *Store) Update(ctx context.Context, id, actorID string, ut UpdateTask) (Task, error) {
	if err := ut.Validate(); err != nil {
		return Task{}, err
	}

	prev, err := s.repo.GetTaskByID(ctx, id)
	if err != nil {
		return Task{}, errors.Wrap(err, "reading task before update")
	}

	next := prev
	if ut.Title != nil {
		next.Title = core.CleanString(*ut.Title)
	}
	if ut.Description != nil {
		next.Description = strings.TrimSpace(*ut.Description)
	}
	if ut.Status != nil {
		next.Status = *ut.Status
	}
	if ut.Priority != nil {
		next.Priority = *ut.Priority
	}
	if ut.AssigneeID != nil {
		next.AssigneeID = *ut.AssigneeID
	}
	if ut.DueDate != nil {
		next.DueDate = *ut.DueDate
	}
	next.UpdatedAt = time.Now().UTC()

	updated, err := s.repo.UpdateTask(ctx, next)
	if err != nil {
		return Task{}, errors.Wrap(err, "updating task")
	}

	s.mu.Lock()
	s.cache.Set(updated)
	s.saveMirror()
	s.mu.Unlock()

	if updated.AssigneeID != "" && updated.AssigneeID != prev.AssigneeID && updated.AssigneeID != actorID {
		s.notifyAssigned(updated, actorID)
	}
	return updated, nil
}

// Delete removes the task remotely then locally. Deleting an id that is
// already gone is a success.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteTasksByID(ctx, id); err != nil {
		return errors.Wrap(err, "deleting task")
	}

	s.mu.Lock()
	s.cache.Remove(id)
	if s.selected == id {
		s.selected = ""
	}
	s.saveMirror()
	s.mu.Unlock()

	s.publish(realtime.OpDelete, id)
	return nil
}

// Subscribe opens the board's realtime feed; at most one subscription is
// held per scope.
func (s *Store) Subscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.feed == nil {
		return nil
	}
	if _, ok := s.unsub[ScopeBoard]; ok {
		return nil
	}
	unsub, err := s.feed.Subscribe(Family, ScopeBoard, realtime.Handlers{
		OnInsert: s.onRemoteInsert,
		OnDelete: s.onRemoteDelete,
	})
	if err != nil {
		unsub() // teardown is unconditional, even on a failed handshake
		return errors.Wrap(err, "subscribing to task feed")
	}
	s.unsub[ScopeBoard] = unsub
	return nil
}

// Unsubscribe tears the board subscription down; calling it without an
// active subscription is a no-op.
func (s *Store) Unsubscribe() {
	s.mu.Lock()
	unsub := s.unsub[ScopeBoard]
	delete(s.unsub, ScopeBoard)
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// onRemoteInsert folds an insertion event into the cache. The event payload
// is not trusted: a point read fetches the full row. First-writer-wins: a
// row whose id is already cached (the optimistic local insert) is dropped.
func (s *Store) onRemoteInsert(ev realtime.Event) {
	s.mu.RLock()
	_, exists := s.cache.Get(ev.RowID)
	s.mu.RUnlock()
	if exists {
		return
	}

	t, err := s.repo.GetTaskByID(context.Background(), ev.RowID)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			s.logger.Error(fmt.Sprintf("reading task %s for feed event: %v", ev.RowID, err), err)
		}
		return
	}

	s.mu.Lock()
	if s.cache.MergeNew(t, false) {
		s.saveMirror()
	}
	s.mu.Unlock()
}

func (s *Store) onRemoteDelete(ev realtime.Event) {
	s.mu.Lock()
	if s.cache.Remove(ev.RowID) {
		if s.selected == ev.RowID {
			s.selected = ""
		}
		s.saveMirror()
	}
	s.mu.Unlock()
}

func (s *Store) publish(op, id string) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(realtime.Event{Op: op, Family: Family, Scope: ScopeBoard, RowID: id}); err != nil {
		s.logger.Error(fmt.Sprintf("publishing task %s event: %v", op, err), err)
	}
}

func (s *Store) notifyAssigned(t Task, actorID string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(&core.Notification{
		Recipient:  t.AssigneeID,
		Kind:       core.NotifKindTaskAssigned,
		Title:      "Task assigned to you",
		Message:    t.Title,
		SubjectRef: t.ID,
		ActorRef:   actorID,
	})
}

// saveMirror snapshots the cache; callers hold s.mu.
func (s *Store) saveMirror() {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Save(mirrorName, s.cache.List()); err != nil {
		s.logger.Error(fmt.Sprintf("mirroring tasks: %v", err), err)
	}
}

func (s *Store) restore() {
	if s.mirror == nil {
		return
	}
	var tasks []Task
	ok, err := s.mirror.Load(mirrorName, &tasks)
	if err != nil {
		s.logger.Error(fmt.Sprintf("restoring task mirror: %v", err), err)
		return
	}
	if ok {
		s.cache.Replace(tasks)
	}
}
