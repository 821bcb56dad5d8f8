package pgrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/KeviinDCV/NotionK4S/core"
	"github.com/KeviinDCV/NotionK4S/core/task"
)

const taskTable = "task"

var taskColumns = []string{
	"id", "title", "description", "status", "priority",
	"assignee_id", "created_by", "due_date", "created_at", "updated_at",
}

type taskRow struct {
	ID          string      `db:"id"`
	Title       string      `db:"title"`
	Description null.String `db:"description"`
	Status      string      `db:"status"`
	Priority    string      `db:"priority"`
	AssigneeID  null.String `db:"assignee_id"`
	CreatedBy   null.String `db:"created_by"`
	DueDate     null.Time   `db:"due_date"`
	CreatedAt   null.Time   `db:"created_at"`
	UpdatedAt   null.Time   `db:"updated_at"`
}

type taskRepository struct {
	db *sqlx.DB
}

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(db *sqlx.DB) *taskRepository {
	return &taskRepository{db: db}
}

// row maps a domain Task to its table row; an empty assignee or creator
// becomes NULL so the FK constraint holds.
func (repo taskRepository) row(t task.Task) taskRow {
	return taskRow{
		ID:          t.ID,
		Title:       t.Title,
		Description: null.NewString(t.Description, t.Description != ""),
		Status:      t.Status,
		Priority:    t.Priority,
		AssigneeID:  null.NewString(t.AssigneeID, t.AssigneeID != ""),
		CreatedBy:   null.NewString(t.CreatedBy, t.CreatedBy != ""),
		DueDate:     null.NewTime(t.DueDate.UTC(), !t.DueDate.IsZero()),
		CreatedAt:   null.NewTime(t.CreatedAt.UTC(), !t.CreatedAt.IsZero()),
		UpdatedAt:   null.NewTime(t.UpdatedAt.UTC(), !t.UpdatedAt.IsZero()),
	}
}

func (repo taskRepository) unrow(r taskRow) task.Task {
	return task.Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description.String,
		Status:      r.Status,
		Priority:    r.Priority,
		AssigneeID:  r.AssigneeID.String,
		CreatedBy:   r.CreatedBy.String,
		DueDate:     r.DueDate.Time,
		CreatedAt:   r.CreatedAt.Time,
		UpdatedAt:   r.UpdatedAt.Time,
	}
}

// trapNoRowsErr maps psql "no rows" err to task.ErrNotFound
func (repo taskRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return task.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo taskRepository) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	t.ID = uuid.New().String()
	r := repo.row(t)

	query, args, err := psql.Insert(taskTable).
		Columns(taskColumns...).
		Values(r.ID, r.Title, r.Description, r.Status, r.Priority, r.AssigneeID, r.CreatedBy, r.DueDate, r.CreatedAt, r.UpdatedAt).
		ToSql()
	if err != nil {
		return task.Task{}, errors.Wrap(err, "building task insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return task.Task{}, errors.Wrap(err, "inserting task")
	}
	return repo.unrow(r), nil
}

func (repo taskRepository) GetTaskByID(ctx context.Context, id string) (task.Task, error) {
	query, args, err := psql.Select(taskColumns...).
		From(taskTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return task.Task{}, errors.Wrap(err, "building task query")
	}

	var r taskRow
	if err = repo.db.GetContext(ctx, &r, query, args...); err != nil {
		return task.Task{}, repo.trapNoRowsErr(err, "getting task")
	}
	return repo.unrow(r), nil
}

// FilterTasks translates the filter into a WHERE clause matching
// task.QueryFilter.Match semantics.
func (repo taskRepository) FilterTasks(ctx context.Context, filter task.QueryFilter, ordering []core.DBOrdering, limit int) ([]task.Task, error) {
	b := psql.Select(taskColumns...).From(taskTable)

	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		b = b.Where(sq.Or{
			sq.Expr("title ILIKE ?", val),
			sq.Expr("description ILIKE ?", val),
		})
	}
	if filter.Status != "" {
		b = b.Where(sq.Eq{"status": filter.Status})
	}
	if filter.Priority != "" {
		b = b.Where(sq.Eq{"priority": filter.Priority})
	}
	if filter.AssigneeID != "" {
		b = b.Where(sq.Eq{"assignee_id": filter.AssigneeID})
	}
	if !filter.CreatedFrom.IsZero() {
		b = b.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
	}
	if !filter.CreatedTo.IsZero() {
		b = b.Where(sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
	}
	b = orderBy(b, ordering)
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building tasks query")
	}

	var rows []taskRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying tasks")
	}
	tasks := make([]task.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, repo.unrow(r))
	}
	return tasks, nil
}

func (repo taskRepository) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	r := repo.row(t)

	query, args, err := psql.Update(taskTable).
		Set("title", r.Title).
		Set("description", r.Description).
		Set("status", r.Status).
		Set("priority", r.Priority).
		Set("assignee_id", r.AssigneeID).
		Set("due_date", r.DueDate).
		Set("updated_at", r.UpdatedAt).
		Where(sq.Eq{"id": t.ID}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return task.Task{}, errors.Wrap(err, "building task update")
	}

	var id string
	if err = repo.db.GetContext(ctx, &id, query, args...); err != nil {
		return task.Task{}, repo.trapNoRowsErr(err, "updating task")
	}
	return repo.unrow(r), nil
}

// DeleteTasksByID removes tasks; absent ids are not an error.
func (repo taskRepository) DeleteTasksByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := psql.Delete(taskTable).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building tasks delete")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "deleting tasks")
	}
	return nil
}
