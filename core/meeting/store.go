package meeting

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

var ErrNotFound = errors.New("meeting not found")

const (
	mirrorName          = "meetings"
	DefaultDurationMins = 30
)

type (
	// Repository is the meeting gateway. Participant rows cascade with
	// their meeting, so DeleteMeetingsByID needs no separate sweep here.
	Repository interface {
		CreateMeeting(ctx context.Context, m Meeting) (Meeting, error)
		GetMeetingByID(ctx context.Context, id string) (Meeting, error)
		ListMeetings(ctx context.Context, ordering []core.DBOrdering) ([]Meeting, error)
		UpdateMeeting(ctx context.Context, m Meeting) (Meeting, error)
		AddParticipant(ctx context.Context, meetingID, userID string) (Meeting, error)
		RemoveParticipant(ctx context.Context, meetingID, userID string) (Meeting, error)
		DeleteMeetingsByID(ctx context.Context, ids ...string) error
	}

	// Store caches the board's meetings soonest first.
	Store struct {
		mu       sync.RWMutex
		repo     Repository
		notifier core.Notifier
		feed     realtime.Feed
		mirror   core.Mirror
		logger   core.Logger

		cache    *core.Cache[Meeting]
		fetchSeq uint64
		unsub    func()
	}
)

func NewStore(repo Repository, notifier core.Notifier, feed realtime.Feed, mirror core.Mirror, logger core.Logger) *Store {
	s := &Store{
		repo:     repo,
		notifier: notifier,
		feed:     feed,
		mirror:   mirror,
		logger:   logger,
		cache:    core.NewCache[Meeting](),
	}
	s.restore()
	return s
}

func defaultOrdering() []core.DBOrdering {
	return []core.DBOrdering{{Field: "scheduled_at", Ascending: true}}
}

func (s *Store) Meetings() []Meeting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.List()
}

// Fetch replaces the cache with the board's meetings in schedule order.
// Stale results of superseded fetches are discarded.
func (s *Store) Fetch(ctx context.Context) {
	s.mu.Lock()
	s.fetchSeq++
	seq := s.fetchSeq
	s.mu.Unlock()

	meetings, err := s.repo.ListMeetings(ctx, defaultOrdering())
	if err != nil {
		s.logger.Error(fmt.Sprintf("fetching meetings: %v", err), err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.fetchSeq {
		return
	}
	s.cache.Replace(meetings)
	s.saveMirror()
}

// Create schedules a meeting. The organizer joins the invitee list
// automatically; every other initial participant is notified.
func (s *Store) Create(ctx context.Context, nm NewMeeting) (Meeting, error) {
	if err := nm.Validate(); err != nil {
		return Meeting{}, err
	}

	now := time.Now().UTC()
	m := Meeting{
		Title:        core.CleanString(nm.Title),
		Agenda:       strings.TrimSpace(nm.Agenda),
		Location:     strings.TrimSpace(nm.Location),
		OrganizerID:  nm.OrganizerID,
		Participants: dedupe(append([]string{nm.OrganizerID}, nm.Participants...)),
		ScheduledAt:  nm.ScheduledAt.UTC(),
		DurationMins: nm.DurationMins,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if m.DurationMins == 0 {
		m.DurationMins = DefaultDurationMins
	}

	created, err := s.repo.CreateMeeting(ctx, m)
	if err != nil {
		return Meeting{}, errors.Wrap(err, "creating meeting")
	}

	s.mu.Lock()
	s.cache.Append(created)
	s.saveMirror()
	s.mu.Unlock()

	s.publish(realtime.OpInsert, created.ID)
	for _, uid := range created.Participants {
		if uid != created.OrganizerID {
			s.notifyInvited(created, uid, created.OrganizerID)
		}
	}
	return created, nil
}

func (s *Store) Update(ctx context.Context, id string, um UpdateMeeting) (Meeting, error) {
	if err := um.Validate(); err != nil {
		return Meeting{}, err
	}

	prev, err := s.repo.GetMeetingByID(ctx, id)
	if err != nil {
		return Meeting{}, errors.Wrap(err, "reading meeting before update")
	}

	next := prev
	if um.Title != nil {
		next.Title = core.CleanString(*um.Title)
	}
	if um.Agenda != nil {
		next.Agenda = strings.TrimSpace(*um.Agenda)
	}
	if um.Location != nil {
		next.Location = strings.TrimSpace(*um.Location)
	}
	if um.ScheduledAt != nil {
		next.ScheduledAt = um.ScheduledAt.UTC()
	}
	if um.DurationMins != nil {
		next.DurationMins = *um.DurationMins
	}
	next.UpdatedAt = time.Now().UTC()

	updated, err := s.repo.UpdateMeeting(ctx, next)
	if err != nil {
		return Meeting{}, errors.Wrap(err, "updating meeting")
	}

	s.mu.Lock()
	s.cache.Set(updated)
	s.saveMirror()
	s.mu.Unlock()
	return updated, nil
}

// Invite adds a participant and notifies them, unless they are already on
// the list or are the acting user.
func (s *Store) Invite(ctx context.Context, meetingID, userID, actorID string) (Meeting, error) {
	prev, err := s.repo.GetMeetingByID(ctx, meetingID)
	if err != nil {
		return Meeting{}, errors.Wrap(err, "reading meeting before invite")
	}
	if prev.HasParticipant(userID) {
		return prev, nil
	}

	updated, err := s.repo.AddParticipant(ctx, meetingID, userID)
	if err != nil {
		return Meeting{}, errors.Wrap(err, "inviting participant")
	}

	s.mu.Lock()
	s.cache.Set(updated)
	s.saveMirror()
	s.mu.Unlock()

	if userID != actorID {
		s.notifyInvited(updated, userID, actorID)
	}
	return updated, nil
}

// Uninvite drops a participant. Removing someone not on the list succeeds.
func (s *Store) Uninvite(ctx context.Context, meetingID, userID string) (Meeting, error) {
	updated, err := s.repo.RemoveParticipant(ctx, meetingID, userID)
	if err != nil {
		return Meeting{}, errors.Wrap(err, "removing participant")
	}

	s.mu.Lock()
	s.cache.Set(updated)
	s.saveMirror()
	s.mu.Unlock()
	return updated, nil
}

// Delete removes the meeting remotely then locally. Absent ids succeed.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteMeetingsByID(ctx, id); err != nil {
		return errors.Wrap(err, "deleting meeting")
	}

	s.mu.Lock()
	if s.cache.Remove(id) {
		s.saveMirror()
	}
	s.mu.Unlock()

	s.publish(realtime.OpDelete, id)
	return nil
}

func (s *Store) Subscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.feed == nil || s.unsub != nil {
		return nil
	}
	unsub, err := s.feed.Subscribe(Family, ScopeBoard, realtime.Handlers{
		OnInsert: s.onRemoteInsert,
		OnDelete: s.onRemoteDelete,
	})
	if err != nil {
		unsub() // teardown is unconditional, even on a failed handshake
		return errors.Wrap(err, "subscribing to meetings feed")
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

// onRemoteInsert merges an incoming meeting after a point read; the keeper
// of a meeting already cached wins and new arrivals land in schedule
// order at the tail.
func (s *Store) onRemoteInsert(ev realtime.Event) {
	s.mu.RLock()
	_, exists := s.cache.Get(ev.RowID)
	s.mu.RUnlock()
	if exists {
		return
	}

	m, err := s.repo.GetMeetingByID(context.Background(), ev.RowID)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			s.logger.Error(fmt.Sprintf("reading meeting %s for feed event: %v", ev.RowID, err), err)
		}
		return
	}

	s.mu.Lock()
	if s.cache.MergeNew(m, true) {
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

func (s *Store) publish(op, id string) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(realtime.Event{Op: op, Family: Family, Scope: ScopeBoard, RowID: id}); err != nil {
		s.logger.Error(fmt.Sprintf("publishing meeting %s event: %v", op, err), err)
	}
}

func (s *Store) notifyInvited(m Meeting, recipient, actorID string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(&core.Notification{
		Recipient:  recipient,
		Kind:       core.NotifKindMeetingInvite,
		Title:      "You are invited to a meeting",
		Message:    m.Title,
		SubjectRef: m.ID,
		ActorRef:   actorID,
	})
}

func (s *Store) saveMirror() {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Save(mirrorName, s.cache.List()); err != nil {
		s.logger.Error(fmt.Sprintf("mirroring meetings: %v", err), err)
	}
}

func (s *Store) restore() {
	if s.mirror == nil {
		return
	}
	var meetings []Meeting
	ok, err := s.mirror.Load(mirrorName, &meetings)
	if err != nil {
		s.logger.Error(fmt.Sprintf("restoring meeting mirror: %v", err), err)
		return
	}
	if ok {
		s.cache.Replace(meetings)
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
