package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/KeviinDCV/NotionK4S/core"
	"github.com/KeviinDCV/NotionK4S/realtime"
)

var ErrNotFound = errors.New("message not found")

// Each channel partition mirrors under its own name so one message only
// rewrites its channel's snapshot; the index lists the known channel ids.
const (
	mirrorIndexName  = "chat_channels"
	mirrorChannelPfx = "chat_messages."
)

type (
	// Repository is the chat gateway. Joined reads carry the author profile.
	Repository interface {
		CreateMessage(ctx context.Context, m Message) (Message, error)
		GetMessageByID(ctx context.Context, id string) (Message, error)
		// ListChannelMessages returns up to `limit` of the channel's newest
		// messages in ascending creation order.
		ListChannelMessages(ctx context.Context, channelID string, limit int) ([]Message, error)
		UpdateMessage(ctx context.Context, m Message) (Message, error)
		DeleteMessagesByID(ctx context.Context, ids ...string) error
	}

	// Store holds one cache partition per channel and one realtime
	// subscription per active channel.
	Store struct {
		mu     sync.RWMutex
		repo   Repository
		feed   realtime.Feed
		mirror core.Mirror
		logger core.Logger

		channels map[string]*core.Cache[Message]
		fetchSeq map[string]uint64
		unsub    map[string]func()
	}
)

func NewStore(repo Repository, feed realtime.Feed, mirror core.Mirror, logger core.Logger) *Store {
	s := &Store{
		repo:     repo,
		feed:     feed,
		mirror:   mirror,
		logger:   logger,
		channels: make(map[string]*core.Cache[Message]),
		fetchSeq: make(map[string]uint64),
		unsub:    make(map[string]func()),
	}
	s.restore()
	return s
}

// channelCache returns the channel's partition; callers hold s.mu.
func (s *Store) channelCache(channelID string) *core.Cache[Message] {
	c, ok := s.channels[channelID]
	if !ok {
		c = core.NewCache[Message]()
		s.channels[channelID] = c
	}
	return c
}

// Messages returns the channel's cached messages in display order
// (ascending creation).
func (s *Store) Messages(channelID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.channels[channelID]
	if !ok {
		return nil
	}
	return c.List()
}

// Fetch replaces the channel's partition with the gateway's newest
// FetchLimit messages. Errors leave the partition untouched; stale results
// of superseded fetches are discarded.
func (s *Store) Fetch(ctx context.Context, channelID string) {
	s.mu.Lock()
	s.fetchSeq[channelID]++
	seq := s.fetchSeq[channelID]
	s.mu.Unlock()

	msgs, err := s.repo.ListChannelMessages(ctx, channelID, FetchLimit)
	if err != nil {
		s.logger.Error(fmt.Sprintf("fetching channel %s: %v", channelID, err), err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.fetchSeq[channelID] {
		return
	}
	s.channelCache(channelID).Replace(msgs)
	s.saveMirror(channelID)
}

// Post appends a new message to the channel. The gateway's returned row
// (with the author joined) lands at the tail: chat displays oldest first.
func (s *Store) Post(ctx context.Context, nm NewMessage) (Message, error) {
	if err := nm.Validate(); err != nil {
		return Message{}, err
	}

	now := time.Now().UTC()
	m := Message{
		ChannelID: nm.ChannelID,
		UserID:    nm.UserID,
		Body:      strings.TrimSpace(nm.Body),
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := s.repo.CreateMessage(ctx, m)
	if err != nil {
		return Message{}, errors.Wrap(err, "posting message")
	}

	s.mu.Lock()
	s.channelCache(created.ChannelID).Append(created)
	s.saveMirror(created.ChannelID)
	s.mu.Unlock()

	s.publish(realtime.OpInsert, created.ChannelID, created.ID)
	return created, nil
}

// Edit replaces a message body, reading the stored row first to keep
// channel and author fields authoritative.
func (s *Store) Edit(ctx context.Context, id, body string) (Message, error) {
	prev, err := s.repo.GetMessageByID(ctx, id)
	if err != nil {
		return Message{}, errors.Wrap(err, "reading message before edit")
	}

	next := prev
	next.Body = strings.TrimSpace(body)
	next.UpdatedAt = time.Now().UTC()

	updated, err := s.repo.UpdateMessage(ctx, next)
	if err != nil {
		return Message{}, errors.Wrap(err, "editing message")
	}

	s.mu.Lock()
	s.channelCache(updated.ChannelID).Set(updated)
	s.saveMirror(updated.ChannelID)
	s.mu.Unlock()
	return updated, nil
}

// Delete removes a message remotely then from its channel partition.
// Deleting an absent id succeeds.
func (s *Store) Delete(ctx context.Context, channelID, id string) error {
	if err := s.repo.DeleteMessagesByID(ctx, id); err != nil {
		return errors.Wrap(err, "deleting message")
	}

	s.mu.Lock()
	if c, ok := s.channels[channelID]; ok && c.Remove(id) {
		s.saveMirror(channelID)
	}
	s.mu.Unlock()

	s.publish(realtime.OpDelete, channelID, id)
	return nil
}

// Subscribe opens the channel's realtime feed; at most one subscription per
// channel is held. The caller owns the scope's lifecycle and must call
// Unsubscribe when the channel deactivates.
func (s *Store) Subscribe(channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.feed == nil {
		return nil
	}
	if _, ok := s.unsub[channelID]; ok {
		return nil
	}
	unsub, err := s.feed.Subscribe(Family, channelID, realtime.Handlers{
		OnInsert: s.onRemoteInsert,
		OnDelete: s.onRemoteDelete,
	})
	if err != nil {
		unsub() // teardown is unconditional, even on a failed handshake
		return errors.Wrapf(err, "subscribing to channel %s", channelID)
	}
	s.unsub[channelID] = unsub
	return nil
}

func (s *Store) Unsubscribe(channelID string) {
	s.mu.Lock()
	unsub := s.unsub[channelID]
	delete(s.unsub, channelID)
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// onRemoteInsert merges an incoming message. The event's partial projection
// is not trusted: a point read loads the joined row (author included)
// before merging. A message already cached (the poster's own optimistic
// append) wins and the incoming copy is dropped.
func (s *Store) onRemoteInsert(ev realtime.Event) {
	s.mu.RLock()
	var exists bool
	if c, ok := s.channels[ev.Scope]; ok {
		_, exists = c.Get(ev.RowID)
	}
	s.mu.RUnlock()
	if exists {
		return
	}

	m, err := s.repo.GetMessageByID(context.Background(), ev.RowID)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			s.logger.Error(fmt.Sprintf("reading message %s for feed event: %v", ev.RowID, err), err)
		}
		return
	}

	s.mu.Lock()
	if s.channelCache(m.ChannelID).MergeNew(m, true) {
		s.saveMirror(m.ChannelID)
	}
	s.mu.Unlock()
}

func (s *Store) onRemoteDelete(ev realtime.Event) {
	s.mu.Lock()
	if c, ok := s.channels[ev.Scope]; ok && c.Remove(ev.RowID) {
		s.saveMirror(ev.Scope)
	}
	s.mu.Unlock()
}

func (s *Store) publish(op, channelID, id string) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(realtime.Event{Op: op, Family: Family, Scope: channelID, RowID: id}); err != nil {
		s.logger.Error(fmt.Sprintf("publishing chat %s event: %v", op, err), err)
	}
}

// saveMirror snapshots one channel's partition and refreshes the channel
// index; callers hold s.mu.
func (s *Store) saveMirror(channelID string) {
	if s.mirror == nil {
		return
	}
	c, ok := s.channels[channelID]
	if !ok {
		return
	}
	if err := s.mirror.Save(mirrorChannelPfx+channelID, c.List()); err != nil {
		s.logger.Error(fmt.Sprintf("mirroring channel %s: %v", channelID, err), err)
	}

	ids := make([]string, 0, len(s.channels))
	for id := range s.channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if err := s.mirror.Save(mirrorIndexName, ids); err != nil {
		s.logger.Error(fmt.Sprintf("mirroring channel index: %v", err), err)
	}
}

func (s *Store) restore() {
	if s.mirror == nil {
		return
	}
	var ids []string
	ok, err := s.mirror.Load(mirrorIndexName, &ids)
	if err != nil {
		s.logger.Error(fmt.Sprintf("restoring chat mirror: %v", err), err)
		return
	}
	if !ok {
		return
	}
	for _, id := range ids {
		var msgs []Message
		ok, err = s.mirror.Load(mirrorChannelPfx+id, &msgs)
		if err != nil {
			s.logger.Error(fmt.Sprintf("restoring channel %s mirror: %v", id, err), err)
			continue
		}
		if ok {
			s.channelCache(id).Replace(msgs)
		}
	}
}
