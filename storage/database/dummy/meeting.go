package dummydb

import (
	"context"
	"sort"

	"github.com/KeviinDCV/NotionK4S/core"
	"github.com/KeviinDCV/NotionK4S/core/meeting"
)

type meetingRepository struct {
	db *meetingTable
}

var _ meeting.Repository = (*meetingRepository)(nil) // interface compliance check

func NewMeetingRepository(db *DB) meeting.Repository {
	return &meetingRepository{db: db.meeting}
}

func (repo *meetingRepository) CreateMeeting(ctx context.Context, m meeting.Meeting) (meeting.Meeting, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	m.ID = NewID()
	m.Participants = append([]string{}, m.Participants...)
	repo.db.table[m.ID] = &m
	return m, nil
}

func (repo *meetingRepository) GetMeetingByID(ctx context.Context, id string) (meeting.Meeting, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if m, ok := repo.db.table[id]; ok {
		return *m, nil
	}
	return meeting.Meeting{}, meeting.ErrNotFound
}

func (repo *meetingRepository) ListMeetings(ctx context.Context, ordering []core.DBOrdering) ([]meeting.Meeting, error) {
	repo.db.RLock()
	meetings := make([]meeting.Meeting, 0, len(repo.db.table))
	for _, m := range repo.db.table {
		meetings = append(meetings, *m)
	}
	repo.db.RUnlock()

	desc := len(ordering) > 0 && !ordering[0].Ascending
	sort.SliceStable(meetings, func(i, j int) bool {
		if desc {
			return meetings[i].ScheduledAt.After(meetings[j].ScheduledAt)
		}
		return meetings[i].ScheduledAt.Before(meetings[j].ScheduledAt)
	})
	return meetings, nil
}

func (repo *meetingRepository) UpdateMeeting(ctx context.Context, m meeting.Meeting) (meeting.Meeting, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	prev, ok := repo.db.table[m.ID]
	if !ok {
		return meeting.Meeting{}, meeting.ErrNotFound
	}
	// the participant list changes through AddParticipant/RemoveParticipant
	m.Participants = prev.Participants
	repo.db.table[m.ID] = &m
	return m, nil
}

func (repo *meetingRepository) AddParticipant(ctx context.Context, meetingID, userID string) (meeting.Meeting, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	m, ok := repo.db.table[meetingID]
	if !ok {
		return meeting.Meeting{}, meeting.ErrNotFound
	}
	if !m.HasParticipant(userID) {
		m.Participants = append(m.Participants, userID)
	}
	return *m, nil
}

func (repo *meetingRepository) RemoveParticipant(ctx context.Context, meetingID, userID string) (meeting.Meeting, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	m, ok := repo.db.table[meetingID]
	if !ok {
		return meeting.Meeting{}, meeting.ErrNotFound
	}
	kept := m.Participants[:0]
	for _, p := range m.Participants {
		if p != userID {
			kept = append(kept, p)
		}
	}
	m.Participants = kept
	return *m, nil
}

// DeleteMeetingsByID removes meetings with their participant lists, the
// in-memory equivalent of the cascade on the join table.
func (repo *meetingRepository) DeleteMeetingsByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
