package pgrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/KeviinDCV/NotionK4S/core"
	"github.com/KeviinDCV/NotionK4S/core/meeting"
)

const (
	meetingTable     = "meeting"
	participantTable = "meeting_participant"
)

var meetingColumns = []string{
	"m.id", "m.title", "m.agenda", "m.location", "m.organizer_id",
	"m.scheduled_at", "m.duration_mins", "m.created_at", "m.updated_at",
}

type meetingRow struct {
	ID           string         `db:"id"`
	Title        string         `db:"title"`
	Agenda       null.String    `db:"agenda"`
	Location     null.String    `db:"location"`
	OrganizerID  null.String    `db:"organizer_id"`
	ScheduledAt  null.Time      `db:"scheduled_at"`
	DurationMins null.Int       `db:"duration_mins"`
	CreatedAt    null.Time      `db:"created_at"`
	UpdatedAt    null.Time      `db:"updated_at"`
	Participants pq.StringArray `db:"participants"`
}

type meetingRepository struct {
	db *sqlx.DB
}

var _ meeting.Repository = (*meetingRepository)(nil) // interface compliance check

func NewMeetingRepository(db *sqlx.DB) *meetingRepository {
	return &meetingRepository{db: db}
}

func (repo meetingRepository) unrow(r meetingRow) meeting.Meeting {
	return meeting.Meeting{
		ID:           r.ID,
		Title:        r.Title,
		Agenda:       r.Agenda.String,
		Location:     r.Location.String,
		OrganizerID:  r.OrganizerID.String,
		Participants: r.Participants,
		ScheduledAt:  r.ScheduledAt.Time,
		DurationMins: r.DurationMins.Int,
		CreatedAt:    r.CreatedAt.Time,
		UpdatedAt:    r.UpdatedAt.Time,
	}
}

// trapNoRowsErr maps psql "no rows" err to meeting.ErrNotFound
func (repo meetingRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return meeting.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// joined aggregates the participant rows into a text array per meeting.
func (repo meetingRepository) joined() sq.SelectBuilder {
	cols := append([]string{}, meetingColumns...)
	cols = append(cols, "COALESCE(ARRAY_AGG(p.user_id::text) FILTER (WHERE p.user_id IS NOT NULL), '{}') AS participants")
	return psql.Select(cols...).
		From(meetingTable + " m").
		LeftJoin(participantTable + " p ON p.meeting_id = m.id").
		GroupBy(meetingColumns...)
}

// CreateMeeting inserts the meeting and its participant rows in one
// transaction.
func (repo meetingRepository) CreateMeeting(ctx context.Context, m meeting.Meeting) (meeting.Meeting, error) {
	m.ID = uuid.New().String()

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return meeting.Meeting{}, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := psql.Insert(meetingTable).
		Columns("id", "title", "agenda", "location", "organizer_id", "scheduled_at", "duration_mins", "created_at", "updated_at").
		Values(
			m.ID,
			m.Title,
			null.NewString(m.Agenda, m.Agenda != ""),
			null.NewString(m.Location, m.Location != ""),
			null.NewString(m.OrganizerID, m.OrganizerID != ""),
			null.NewTime(m.ScheduledAt.UTC(), !m.ScheduledAt.IsZero()),
			m.DurationMins,
			null.NewTime(m.CreatedAt.UTC(), !m.CreatedAt.IsZero()),
			null.NewTime(m.UpdatedAt.UTC(), !m.UpdatedAt.IsZero()),
		).
		ToSql()
	if err != nil {
		return meeting.Meeting{}, errors.Wrap(err, "building meeting insert")
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return meeting.Meeting{}, errors.Wrap(err, "inserting meeting")
	}

	if len(m.Participants) > 0 {
		b := psql.Insert(participantTable).Columns("meeting_id", "user_id")
		for _, uid := range m.Participants {
			b = b.Values(m.ID, uid)
		}
		if query, args, err = b.ToSql(); err != nil {
			return meeting.Meeting{}, errors.Wrap(err, "building participants insert")
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return meeting.Meeting{}, errors.Wrap(err, "inserting participants")
		}
	}

	if err = tx.Commit(); err != nil {
		return meeting.Meeting{}, errors.Wrap(err, "committing meeting")
	}
	return repo.GetMeetingByID(ctx, m.ID)
}

func (repo meetingRepository) GetMeetingByID(ctx context.Context, id string) (meeting.Meeting, error) {
	query, args, err := repo.joined().Where(sq.Eq{"m.id": id}).ToSql()
	if err != nil {
		return meeting.Meeting{}, errors.Wrap(err, "building meeting query")
	}

	var r meetingRow
	if err = repo.db.GetContext(ctx, &r, query, args...); err != nil {
		return meeting.Meeting{}, repo.trapNoRowsErr(err, "getting meeting")
	}
	return repo.unrow(r), nil
}

func (repo meetingRepository) ListMeetings(ctx context.Context, ordering []core.DBOrdering) ([]meeting.Meeting, error) {
	b := repo.joined()
	for _, ord := range ordering {
		b = b.OrderBy("m." + ord.String())
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building meetings query")
	}

	var rows []meetingRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying meetings")
	}
	meetings := make([]meeting.Meeting, 0, len(rows))
	for _, r := range rows {
		meetings = append(meetings, repo.unrow(r))
	}
	return meetings, nil
}

func (repo meetingRepository) UpdateMeeting(ctx context.Context, m meeting.Meeting) (meeting.Meeting, error) {
	query, args, err := psql.Update(meetingTable).
		Set("title", m.Title).
		Set("agenda", null.NewString(m.Agenda, m.Agenda != "")).
		Set("location", null.NewString(m.Location, m.Location != "")).
		Set("scheduled_at", null.NewTime(m.ScheduledAt.UTC(), !m.ScheduledAt.IsZero())).
		Set("duration_mins", m.DurationMins).
		Set("updated_at", null.NewTime(m.UpdatedAt.UTC(), !m.UpdatedAt.IsZero())).
		Where(sq.Eq{"id": m.ID}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return meeting.Meeting{}, errors.Wrap(err, "building meeting update")
	}

	var id string
	if err = repo.db.GetContext(ctx, &id, query, args...); err != nil {
		return meeting.Meeting{}, repo.trapNoRowsErr(err, "updating meeting")
	}
	return repo.GetMeetingByID(ctx, id)
}

func (repo meetingRepository) AddParticipant(ctx context.Context, meetingID, userID string) (meeting.Meeting, error) {
	query, args, err := psql.Insert(participantTable).
		Columns("meeting_id", "user_id").
		Values(meetingID, userID).
		Suffix("ON CONFLICT DO NOTHING").
		ToSql()
	if err != nil {
		return meeting.Meeting{}, errors.Wrap(err, "building participant insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return meeting.Meeting{}, errors.Wrap(err, "inserting participant")
	}
	return repo.GetMeetingByID(ctx, meetingID)
}

func (repo meetingRepository) RemoveParticipant(ctx context.Context, meetingID, userID string) (meeting.Meeting, error) {
	query, args, err := psql.Delete(participantTable).
		Where(sq.Eq{"meeting_id": meetingID, "user_id": userID}).
		ToSql()
	if err != nil {
		return meeting.Meeting{}, errors.Wrap(err, "building participant delete")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return meeting.Meeting{}, errors.Wrap(err, "deleting participant")
	}
	return repo.GetMeetingByID(ctx, meetingID)
}

// DeleteMeetingsByID removes meetings; participant rows cascade. Absent
// ids are not an error.
func (repo meetingRepository) DeleteMeetingsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := psql.Delete(meetingTable).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building meetings delete")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "deleting meetings")
	}
	return nil
}
