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
	"github.com/KeviinDCV/NotionK4S/core/notif"
)

const notifTable = "notification"

var notifColumns = []string{
	"id", "recipient", "kind", "title", "message",
	"subject_ref", "actor_ref", "read", "created_at",
}

type notifRow struct {
	ID         string      `db:"id"`
	Recipient  string      `db:"recipient"`
	Kind       string      `db:"kind"`
	Title      null.String `db:"title"`
	Message    null.String `db:"message"`
	SubjectRef null.String `db:"subject_ref"`
	ActorRef   null.String `db:"actor_ref"`
	Read       null.Bool   `db:"read"`
	CreatedAt  null.Time   `db:"created_at"`
}

type notifRepository struct {
	db *sqlx.DB
}

var _ notif.Repository = (*notifRepository)(nil) // interface compliance check

func NewNotifRepository(db *sqlx.DB) *notifRepository {
	return &notifRepository{db: db}
}

func (repo notifRepository) row(n core.Notification) notifRow {
	return notifRow{
		ID:         n.ID,
		Recipient:  n.Recipient,
		Kind:       n.Kind,
		Title:      null.NewString(n.Title, n.Title != ""),
		Message:    null.NewString(n.Message, n.Message != ""),
		SubjectRef: null.NewString(n.SubjectRef, n.SubjectRef != ""),
		ActorRef:   null.NewString(n.ActorRef, n.ActorRef != ""),
		Read:       null.BoolFrom(n.Read),
		CreatedAt:  null.NewTime(n.CreatedAt.UTC(), !n.CreatedAt.IsZero()),
	}
}

func (repo notifRepository) unrow(r notifRow) core.Notification {
	return core.Notification{
		ID:         r.ID,
		Recipient:  r.Recipient,
		Kind:       r.Kind,
		Title:      r.Title.String,
		Message:    r.Message.String,
		SubjectRef: r.SubjectRef.String,
		ActorRef:   r.ActorRef.String,
		Read:       r.Read.Bool,
		CreatedAt:  r.CreatedAt.Time,
	}
}

// trapNoRowsErr maps psql "no rows" err to notif.ErrNotFound
func (repo notifRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return notif.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo notifRepository) CreateNotifications(ctx context.Context, notifs ...core.Notification) ([]core.Notification, error) {
	if len(notifs) == 0 {
		return nil, nil
	}

	b := psql.Insert(notifTable).Columns(notifColumns...)
	created := make([]core.Notification, 0, len(notifs))
	for _, n := range notifs {
		n.ID = uuid.New().String()
		r := repo.row(n)
		b = b.Values(r.ID, r.Recipient, r.Kind, r.Title, r.Message, r.SubjectRef, r.ActorRef, r.Read, r.CreatedAt)
		created = append(created, repo.unrow(r))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building notifications insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return nil, errors.Wrap(err, "inserting notifications")
	}
	return created, nil
}

func (repo notifRepository) GetNotificationByID(ctx context.Context, id string) (core.Notification, error) {
	query, args, err := psql.Select(notifColumns...).
		From(notifTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return core.Notification{}, errors.Wrap(err, "building notification query")
	}

	var r notifRow
	if err = repo.db.GetContext(ctx, &r, query, args...); err != nil {
		return core.Notification{}, repo.trapNoRowsErr(err, "getting notification")
	}
	return repo.unrow(r), nil
}

func (repo notifRepository) ListForRecipient(ctx context.Context, recipient string, limit int) ([]core.Notification, error) {
	b := psql.Select(notifColumns...).
		From(notifTable).
		Where(sq.Eq{"recipient": recipient}).
		OrderBy("created_at DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building notifications query")
	}

	var rows []notifRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifs := make([]core.Notification, 0, len(rows))
	for _, r := range rows {
		notifs = append(notifs, repo.unrow(r))
	}
	return notifs, nil
}

func (repo notifRepository) MarkRead(ctx context.Context, id string) (core.Notification, error) {
	query, args, err := psql.Update(notifTable).
		Set("read", true).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return core.Notification{}, errors.Wrap(err, "building notification update")
	}

	var updatedID string
	if err = repo.db.GetContext(ctx, &updatedID, query, args...); err != nil {
		return core.Notification{}, repo.trapNoRowsErr(err, "marking notification read")
	}
	return repo.GetNotificationByID(ctx, updatedID)
}

// DeleteNotificationsByID removes notifications; absent ids are not an
// error.
func (repo notifRepository) DeleteNotificationsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := psql.Delete(notifTable).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building notifications delete")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "deleting notifications")
	}
	return nil
}
