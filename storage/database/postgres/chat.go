package pgrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/KeviinDCV/NotionK4S/core/chat"
)

const chatTable = "chat_message"

// chat reads join the author's profile so the UI never does a second
// lookup per message.
var chatSelectColumns = []string{
	"m.id", "m.channel_id", "m.user_id", "m.body", "m.created_at", "m.updated_at",
	`u.name AS "author.name"`, `u.username AS "author.username"`,
}

type chatAuthorRow struct {
	Name     null.String `db:"name"`
	Username null.String `db:"username"`
}

type chatRow struct {
	ID        string        `db:"id"`
	ChannelID string        `db:"channel_id"`
	UserID    null.String   `db:"user_id"`
	Body      string        `db:"body"`
	CreatedAt null.Time     `db:"created_at"`
	UpdatedAt null.Time     `db:"updated_at"`
	Author    chatAuthorRow `db:"author"`
}

type chatRepository struct {
	db *sqlx.DB
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db *sqlx.DB) *chatRepository {
	return &chatRepository{db: db}
}

func (repo chatRepository) unrow(r chatRow) chat.Message {
	return chat.Message{
		ID:        r.ID,
		ChannelID: r.ChannelID,
		UserID:    r.UserID.String,
		Body:      r.Body,
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
		Author: chat.Author{
			Name:     r.Author.Name.String,
			Username: r.Author.Username.String,
		},
	}
}

// trapNoRowsErr maps psql "no rows" err to chat.ErrNotFound
func (repo chatRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return chat.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo chatRepository) joined() sq.SelectBuilder {
	return psql.Select(chatSelectColumns...).
		From(chatTable + " m").
		LeftJoin(`"user" u ON u.id = m.user_id`)
}

func (repo chatRepository) CreateMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	m.ID = uuid.New().String()

	query, args, err := psql.Insert(chatTable).
		Columns("id", "channel_id", "user_id", "body", "created_at", "updated_at").
		Values(
			m.ID,
			m.ChannelID,
			null.NewString(m.UserID, m.UserID != ""),
			m.Body,
			null.NewTime(m.CreatedAt.UTC(), !m.CreatedAt.IsZero()),
			null.NewTime(m.UpdatedAt.UTC(), !m.UpdatedAt.IsZero()),
		).
		ToSql()
	if err != nil {
		return chat.Message{}, errors.Wrap(err, "building message insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return chat.Message{}, errors.Wrap(err, "inserting message")
	}

	// read back with the author joined
	return repo.GetMessageByID(ctx, m.ID)
}

func (repo chatRepository) GetMessageByID(ctx context.Context, id string) (chat.Message, error) {
	query, args, err := repo.joined().Where(sq.Eq{"m.id": id}).ToSql()
	if err != nil {
		return chat.Message{}, errors.Wrap(err, "building message query")
	}

	var r chatRow
	if err = repo.db.GetContext(ctx, &r, query, args...); err != nil {
		return chat.Message{}, repo.trapNoRowsErr(err, "getting message")
	}
	return repo.unrow(r), nil
}

// ListChannelMessages returns the channel's newest `limit` messages in
// ascending creation order: the query walks backwards then flips.
func (repo chatRepository) ListChannelMessages(ctx context.Context, channelID string, limit int) ([]chat.Message, error) {
	b := repo.joined().
		Where(sq.Eq{"m.channel_id": channelID}).
		OrderBy("m.created_at DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building messages query")
	}

	var rows []chatRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}

	msgs := make([]chat.Message, len(rows))
	for i, r := range rows {
		msgs[len(rows)-1-i] = repo.unrow(r)
	}
	return msgs, nil
}

func (repo chatRepository) UpdateMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	query, args, err := psql.Update(chatTable).
		Set("body", m.Body).
		Set("updated_at", null.NewTime(m.UpdatedAt.UTC(), !m.UpdatedAt.IsZero())).
		Where(sq.Eq{"id": m.ID}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return chat.Message{}, errors.Wrap(err, "building message update")
	}

	var id string
	if err = repo.db.GetContext(ctx, &id, query, args...); err != nil {
		return chat.Message{}, repo.trapNoRowsErr(err, "updating message")
	}
	return repo.GetMessageByID(ctx, id)
}

// DeleteMessagesByID removes messages; absent ids are not an error.
func (repo chatRepository) DeleteMessagesByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := psql.Delete(chatTable).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building messages delete")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "deleting messages")
	}
	return nil
}
