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
	"github.com/KeviinDCV/NotionK4S/core/note"
)

const noteTable = "note"

var noteColumns = []string{
	"id", "owner_id", "title", "body", "color", "pinned", "created_at", "updated_at",
}

type noteRow struct {
	ID        string      `db:"id"`
	OwnerID   string      `db:"owner_id"`
	Title     string      `db:"title"`
	Body      null.String `db:"body"`
	Color     null.String `db:"color"`
	Pinned    null.Bool   `db:"pinned"`
	CreatedAt null.Time   `db:"created_at"`
	UpdatedAt null.Time   `db:"updated_at"`
}

type noteRepository struct {
	db *sqlx.DB
}

var _ note.Repository = (*noteRepository)(nil) // interface compliance check

func NewNoteRepository(db *sqlx.DB) *noteRepository {
	return &noteRepository{db: db}
}

func (repo noteRepository) row(n note.Note) noteRow {
	return noteRow{
		ID:        n.ID,
		OwnerID:   n.OwnerID,
		Title:     n.Title,
		Body:      null.NewString(n.Body, n.Body != ""),
		Color:     null.NewString(n.Color, n.Color != ""),
		Pinned:    null.BoolFrom(n.Pinned),
		CreatedAt: null.NewTime(n.CreatedAt.UTC(), !n.CreatedAt.IsZero()),
		UpdatedAt: null.NewTime(n.UpdatedAt.UTC(), !n.UpdatedAt.IsZero()),
	}
}

func (repo noteRepository) unrow(r noteRow) note.Note {
	return note.Note{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Title:     r.Title,
		Body:      r.Body.String,
		Color:     r.Color.String,
		Pinned:    r.Pinned.Bool,
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
	}
}

// trapNoRowsErr maps psql "no rows" err to note.ErrNotFound
func (repo noteRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return note.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo noteRepository) CreateNote(ctx context.Context, n note.Note) (note.Note, error) {
	n.ID = uuid.New().String()
	r := repo.row(n)

	query, args, err := psql.Insert(noteTable).
		Columns(noteColumns...).
		Values(r.ID, r.OwnerID, r.Title, r.Body, r.Color, r.Pinned, r.CreatedAt, r.UpdatedAt).
		ToSql()
	if err != nil {
		return note.Note{}, errors.Wrap(err, "building note insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return note.Note{}, errors.Wrap(err, "inserting note")
	}
	return repo.unrow(r), nil
}

func (repo noteRepository) GetNoteByID(ctx context.Context, id string) (note.Note, error) {
	query, args, err := psql.Select(noteColumns...).
		From(noteTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return note.Note{}, errors.Wrap(err, "building note query")
	}

	var r noteRow
	if err = repo.db.GetContext(ctx, &r, query, args...); err != nil {
		return note.Note{}, repo.trapNoRowsErr(err, "getting note")
	}
	return repo.unrow(r), nil
}

func (repo noteRepository) ListOwnerNotes(ctx context.Context, ownerID string, ordering []core.DBOrdering) ([]note.Note, error) {
	b := psql.Select(noteColumns...).
		From(noteTable).
		Where(sq.Eq{"owner_id": ownerID})
	b = orderBy(b, ordering)

	query, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building notes query")
	}

	var rows []noteRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying notes")
	}
	notes := make([]note.Note, 0, len(rows))
	for _, r := range rows {
		notes = append(notes, repo.unrow(r))
	}
	return notes, nil
}

func (repo noteRepository) UpdateNote(ctx context.Context, n note.Note) (note.Note, error) {
	r := repo.row(n)

	query, args, err := psql.Update(noteTable).
		Set("title", r.Title).
		Set("body", r.Body).
		Set("color", r.Color).
		Set("pinned", r.Pinned).
		Set("updated_at", r.UpdatedAt).
		Where(sq.Eq{"id": n.ID}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return note.Note{}, errors.Wrap(err, "building note update")
	}

	var id string
	if err = repo.db.GetContext(ctx, &id, query, args...); err != nil {
		return note.Note{}, repo.trapNoRowsErr(err, "updating note")
	}
	return repo.unrow(r), nil
}

// DeleteNotesByID removes notes; absent ids are not an error.
func (repo noteRepository) DeleteNotesByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := psql.Delete(noteTable).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building notes delete")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "deleting notes")
	}
	return nil
}
