package task

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/KeviinDCV/NotionK4S/core"
	"github.com/KeviinDCV/NotionK4S/realtime"
	notifsvc "github.com/KeviinDCV/NotionK4S/services/notifier"
	localstore "github.com/KeviinDCV/NotionK4S/storage/local"
)

type fakeRepo struct {
	mu   sync.Mutex
	rows map[string]Task
	seq  int

	// onFilter runs inside FilterTasks after the result snapshot is taken,
	// letting a test interleave a competing fetch.
	onFilter func()
}

var _ Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[string]Task)}
}

func (r *fakeRepo) CreateTask(ctx context.Context, t Task) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	t.ID = fmt.Sprintf("t-%d", r.seq)
	r.rows[t.ID] = t
	return t, nil
}

func (r *fakeRepo) GetTaskByID(ctx context.Context, id string) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (r *fakeRepo) FilterTasks(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, limit int) ([]Task, error) {
	r.mu.Lock()
	tasks := make([]Task, 0, len(r.rows))
	for _, t := range r.rows {
		if filter.Match(t) {
			tasks = append(tasks, t)
		}
	}
	hook := r.onFilter
	r.onFilter = nil
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
	return tasks, nil
}

func (r *fakeRepo) UpdateTask(ctx context.Context, t Task) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[t.ID]; !ok {
		return Task{}, ErrNotFound
	}
	r.rows[t.ID] = t
	return t, nil
}

func (r *fakeRepo) DeleteTasksByID(ctx context.Context, ids ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.rows, id)
	}
	return nil
}

func newTestStore(repo Repository, notifier core.Notifier) *Store {
	return NewStore(repo, notifier, nil, nil, core.NopLogger{})
}

func TestStore_Create(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	notifier := notifsvc.NewRecordingNotifier()
	store := newTestStore(repo, notifier)

	first, err := store.Create(ctx, NewTask{Title: "write minutes", CreatedBy: "u1"})
	if err != nil {
		t.Fatalf("Create(): %v", err)
	}
	if first.Status != StatusTodo {
		t.Errorf("Status = %q, want %q", first.Status, StatusTodo)
	}
	if first.Priority != PriorityMedium {
		t.Errorf("Priority = %q, want %q", first.Priority, PriorityMedium)
	}
	if notifier.Count() != 0 {
		t.Errorf("notifications = %d, want 0", notifier.Count())
	}

	second, err := store.Create(ctx, NewTask{Title: "book room", CreatedBy: "u1", AssigneeID: "u2"})
	if err != nil {
		t.Fatalf("Create(): %v", err)
	}

	// newest first
	tasks := store.Tasks()
	if len(tasks) != 2 || tasks[0].ID != second.ID || tasks[1].ID != first.ID {
		t.Errorf("Tasks() order = %v", tasks)
	}

	// assigning someone other than the creator notifies them
	if notifier.Count() != 1 {
		t.Fatalf("notifications = %d, want 1", notifier.Count())
	}
	notif, _ := notifier.Last()
	if notif.Recipient != "u2" || notif.Kind != core.NotifKindTaskAssigned || notif.SubjectRef != second.ID {
		t.Errorf("notification = %+v", notif)
	}

	// self-assignment stays silent
	if _, err = store.Create(ctx, NewTask{Title: "solo", CreatedBy: "u1", AssigneeID: "u1"}); err != nil {
		t.Fatalf("Create(): %v", err)
	}
	if notifier.Count() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.Count())
	}
}

func TestStore_Create_invalid(t *testing.T) {
	store := newTestStore(newFakeRepo(), nil)
	if _, err := store.Create(context.Background(), NewTask{CreatedBy: "u1"}); err == nil {
		t.Error("Create() accepted a task without a title")
	}
	if len(store.Tasks()) != 0 {
		t.Error("invalid create touched the cache")
	}
}

func TestStore_Update_notifications(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	notifier := notifsvc.NewRecordingNotifier()
	store := newTestStore(repo, notifier)

	created, err := store.Create(ctx, NewTask{Title: "triage", CreatedBy: "u1"})
	if err != nil {
		t.Fatalf("Create(): %v", err)
	}

	// reassigning notifies the new assignee exactly once
	assignee := "u2"
	if _, err = store.Update(ctx, created.ID, "u1", UpdateTask{AssigneeID: &assignee}); err != nil {
		t.Fatalf("Update(): %v", err)
	}
	if notifier.Count() != 1 {
		t.Fatalf("notifications = %d, want 1", notifier.Count())
	}
	notif, _ := notifier.Last()
	if notif.Recipient != "u2" || notif.ActorRef != "u1" {
		t.Errorf("notification = %+v", notif)
	}

	// an unrelated edit leaves the assignee alone
	status := StatusInProgress
	updated, err := store.Update(ctx, created.ID, "u1", UpdateTask{Status: &status})
	if err != nil {
		t.Fatalf("Update(): %v", err)
	}
	if updated.Status != StatusInProgress || updated.AssigneeID != "u2" {
		t.Errorf("updated = %+v", updated)
	}
	if notifier.Count() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.Count())
	}

	// picking a task up yourself stays silent
	self := "u3"
	if _, err = store.Update(ctx, created.ID, "u3", UpdateTask{AssigneeID: &self}); err != nil {
		t.Fatalf("Update(): %v", err)
	}
	if notifier.Count() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.Count())
	}
}

func TestStore_Update_notFound(t *testing.T) {
	store := newTestStore(newFakeRepo(), nil)
	title := "nope"
	if _, err := store.Update(context.Background(), "missing", "u1", UpdateTask{Title: &title}); err == nil {
		t.Error("Update() of a missing task succeeded")
	}
}

func TestStore_Delete_idempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(newFakeRepo(), nil)

	created, err := store.Create(ctx, NewTask{Title: "ephemeral", CreatedBy: "u1"})
	if err != nil {
		t.Fatalf("Create(): %v", err)
	}
	store.Select(created.ID)

	if err = store.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete(): %v", err)
	}
	if _, ok := store.Selected(); ok {
		t.Error("deleting the selected task kept the selection")
	}

	// a second delete of the same id is still a success
	if err = store.Delete(ctx, created.ID); err != nil {
		t.Errorf("Delete() again: %v", err)
	}
}

func TestStore_Fetch_discardsSupersededResult(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	store := newTestStore(repo, nil)

	stale, _ := repo.CreateTask(ctx, Task{Title: "stale"})

	// while the first fetch is in flight, a competing fetch resolves with a
	// fresher row set; the first result must then be discarded
	repo.onFilter = func() {
		repo.mu.Lock()
		delete(repo.rows, stale.ID)
		repo.mu.Unlock()
		repo.CreateTask(ctx, Task{Title: "fresh"})
		store.Fetch(ctx)
	}
	store.Fetch(ctx)

	tasks := store.Tasks()
	if len(tasks) != 1 || tasks[0].Title != "fresh" {
		t.Errorf("Tasks() = %v, want the fresh row only", tasks)
	}
}

func TestStore_SetFilter_refetches(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	store := newTestStore(repo, nil)

	done, _ := repo.CreateTask(ctx, Task{Title: "done", Status: StatusDone})
	repo.CreateTask(ctx, Task{Title: "open", Status: StatusTodo})

	status := StatusDone
	store.SetFilter(ctx, FilterPatch{Status: &status})

	tasks := store.Tasks()
	if len(tasks) != 1 || tasks[0].ID != done.ID {
		t.Errorf("Tasks() = %v, want only the done task", tasks)
	}

	// clearing the predicate widens the board again
	all := ""
	store.SetFilter(ctx, FilterPatch{Status: &all})
	if len(store.Tasks()) != 2 {
		t.Errorf("Tasks() = %v, want both tasks", store.Tasks())
	}
}

func TestStore_onRemoteInsert(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	store := newTestStore(repo, nil)

	local, err := store.Create(ctx, NewTask{Title: "local", CreatedBy: "u1"})
	if err != nil {
		t.Fatalf("Create(): %v", err)
	}

	// redelivery of our own insert is dropped: first writer wins
	store.onRemoteInsert(realtime.Event{Op: realtime.OpInsert, Family: Family, Scope: ScopeBoard, RowID: local.ID})
	if len(store.Tasks()) != 1 {
		t.Fatalf("Tasks() = %v, want 1 entry", store.Tasks())
	}

	// a row created elsewhere is point-read and folded in at the head
	remote, _ := repo.CreateTask(ctx, Task{Title: "remote"})
	store.onRemoteInsert(realtime.Event{Op: realtime.OpInsert, Family: Family, Scope: ScopeBoard, RowID: remote.ID})
	tasks := store.Tasks()
	if len(tasks) != 2 || tasks[0].ID != remote.ID {
		t.Errorf("Tasks() = %v, want the remote row first", tasks)
	}

	// an event whose row is already gone remotely is ignored
	store.onRemoteInsert(realtime.Event{Op: realtime.OpInsert, Family: Family, Scope: ScopeBoard, RowID: "vanished"})
	if len(store.Tasks()) != 2 {
		t.Errorf("Tasks() = %v, want 2 entries", store.Tasks())
	}
}

func TestStore_onRemoteDelete(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	store := newTestStore(repo, nil)

	created, _ := store.Create(ctx, NewTask{Title: "doomed", CreatedBy: "u1"})
	store.Select(created.ID)

	store.onRemoteDelete(realtime.Event{Op: realtime.OpDelete, Family: Family, Scope: ScopeBoard, RowID: created.ID})
	if len(store.Tasks()) != 0 {
		t.Errorf("Tasks() = %v, want empty", store.Tasks())
	}
	if _, ok := store.Selected(); ok {
		t.Error("remote delete of the selected task kept the selection")
	}
}

func TestStore_mirrorRestore(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	mirror := localstore.NewMemoryMirror()

	first := NewStore(repo, nil, nil, mirror, core.NopLogger{})
	created, err := first.Create(ctx, NewTask{Title: "persisted", CreatedBy: "u1"})
	if err != nil {
		t.Fatalf("Create(): %v", err)
	}

	// a fresh store over the same mirror starts from the snapshot
	second := NewStore(newFakeRepo(), nil, nil, mirror, core.NopLogger{})
	tasks := second.Tasks()
	if len(tasks) != 1 || tasks[0].ID != created.ID {
		t.Errorf("restored Tasks() = %v, want %v", tasks, created)
	}
}
