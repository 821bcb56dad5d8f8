package dummydb

import (
	"context"
	"sort"

	"github.com/KeviinDCV/NotionK4S/core"
	"github.com/KeviinDCV/NotionK4S/core/task"
)

type taskRepository struct {
	db *taskTable
}

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(db *DB) task.Repository {
	return &taskRepository{db: db.task}
}

func (repo *taskRepository) query() []task.Task {
	tasks := make([]task.Task, 0, len(repo.db.table))
	for _, t := range repo.db.table {
		tasks = append(tasks, *t)
	}
	return tasks
}

func (repo *taskRepository) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	t.ID = NewID()
	repo.db.table[t.ID] = &t
	return t, nil
}

func (repo *taskRepository) GetTaskByID(ctx context.Context, id string) (task.Task, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if t, ok := repo.db.table[id]; ok {
		return *t, nil
	}
	return task.Task{}, task.ErrNotFound
}

// FilterTasks evaluates the filter with task.QueryFilter.Match so demo
// mode and the connected gateway agree on semantics.
func (repo *taskRepository) FilterTasks(ctx context.Context, filter task.QueryFilter, ordering []core.DBOrdering, limit int) ([]task.Task, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	tasks := make([]task.Task, 0, len(repo.db.table))
	for _, t := range repo.query() {
		if filter.Match(t) {
			tasks = append(tasks, t)
		}
	}
	sortTasks(tasks, ordering)
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

func sortTasks(tasks []task.Task, ordering []core.DBOrdering) {
	sort.SliceStable(tasks, func(i, j int) bool {
		for _, ord := range ordering {
			a, b := tasks[i], tasks[j]
			var less, eq bool
			switch ord.Field {
			case "created_at":
				less, eq = a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
			case "updated_at":
				less, eq = a.UpdatedAt.Before(b.UpdatedAt), a.UpdatedAt.Equal(b.UpdatedAt)
			case "due_date":
				less, eq = a.DueDate.Before(b.DueDate), a.DueDate.Equal(b.DueDate)
			case "title":
				less, eq = a.Title < b.Title, a.Title == b.Title
			default:
				continue
			}
			if eq {
				continue
			}
			if ord.Ascending {
				return less
			}
			return !less
		}
		return false
	})
}

func (repo *taskRepository) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[t.ID]; !ok {
		return task.Task{}, task.ErrNotFound
	}
	repo.db.table[t.ID] = &t
	return t, nil
}

func (repo *taskRepository) DeleteTasksByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
