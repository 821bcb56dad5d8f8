package expense

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

var ErrNotFound = errors.New("expense not found")

const (
	mirrorName      = "expenses"
	DefaultCurrency = "USD"
)

type (
	Repository interface {
		CreateExpense(ctx context.Context, e Expense) (Expense, error)
		GetExpenseByID(ctx context.Context, id string) (Expense, error)
		ListExpenses(ctx context.Context, ordering []core.DBOrdering) ([]Expense, error)
		UpdateExpense(ctx context.Context, e Expense) (Expense, error)
		DeleteExpensesByID(ctx context.Context, ids ...string) error
	}

	Store struct {
		mu     sync.RWMutex
		repo   Repository
		feed   realtime.Feed
		mirror core.Mirror
		logger core.Logger

		cache    *core.Cache[Expense]
		fetchSeq uint64
		unsub    func()
	}
)

func NewStore(repo Repository, feed realtime.Feed, mirror core.Mirror, logger core.Logger) *Store {
	s := &Store{
		repo:   repo,
		feed:   feed,
		mirror: mirror,
		logger: logger,
		cache:  core.NewCache[Expense](),
	}
	s.restore()
	return s
}

func defaultOrdering() []core.DBOrdering {
	return []core.DBOrdering{{Field: "spent_on"}, {Field: "created_at"}}
}

func (s *Store) Expenses() []Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.List()
}

// TotalCents sums the cached expenses per currency.
func (s *Store) TotalCents() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	totals := make(map[string]int64)
	for _, e := range s.cache.List() {
		totals[e.Currency] += e.AmountCents
	}
	return totals
}

// Fetch replaces the cache with the board's expenses, most recent spend
// first. Stale results of superseded fetches are discarded.
func (s *Store) Fetch(ctx context.Context) {
	s.mu.Lock()
	s.fetchSeq++
	seq := s.fetchSeq
	s.mu.Unlock()

	expenses, err := s.repo.ListExpenses(ctx, defaultOrdering())
	if err != nil {
		s.logger.Error(fmt.Sprintf("fetching expenses: %v", err), err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.fetchSeq {
		return
	}
	s.cache.Replace(expenses)
	s.saveMirror()
}

func (s *Store) Create(ctx context.Context, ne NewExpense) (Expense, error) {
	if err := ne.Validate(); err != nil {
		return Expense{}, err
	}

	now := time.Now().UTC()
	e := Expense{
		Description: strings.TrimSpace(ne.Description),
		AmountCents: ne.AmountCents,
		Currency:    strings.ToUpper(ne.Currency),
		Category:    ne.Category,
		PaidBy:      ne.PaidBy,
		CreatedBy:   ne.CreatedBy,
		SpentOn:     ne.SpentOn,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if e.Currency == "" {
		e.Currency = DefaultCurrency
	}
	if e.Category == "" {
		e.Category = CategoryOther
	}
	if e.SpentOn.IsZero() {
		e.SpentOn = now
	}

	created, err := s.repo.CreateExpense(ctx, e)
	if err != nil {
		return Expense{}, errors.Wrap(err, "creating expense")
	}

	s.mu.Lock()
	s.cache.Prepend(created)
	s.saveMirror()
	s.mu.Unlock()

	s.publish(realtime.OpInsert, created.ID)
	return created, nil
}

func (s *Store) Update(ctx context.Context, id string, ue UpdateExpense) (Expense, error) {
	if err := ue.Validate(); err != nil {
		return Expense{}, err
	}

	prev, err := s.repo.GetExpenseByID(ctx, id)
	if err != nil {
		return Expense{}, errors.Wrap(err, "reading expense before update")
	}

	next := prev
	if ue.Description != nil {
		next.Description = strings.TrimSpace(*ue.Description)
	}
	if ue.AmountCents != nil {
		next.AmountCents = *ue.AmountCents
	}
	if ue.Currency != nil {
		next.Currency = strings.ToUpper(*ue.Currency)
	}
	if ue.Category != nil {
		next.Category = *ue.Category
	}
	if ue.PaidBy != nil {
		next.PaidBy = *ue.PaidBy
	}
	if ue.SpentOn != nil {
		next.SpentOn = *ue.SpentOn
	}
	next.UpdatedAt = time.Now().UTC()

	updated, err := s.repo.UpdateExpense(ctx, next)
	if err != nil {
		return Expense{}, errors.Wrap(err, "updating expense")
	}

	s.mu.Lock()
	s.cache.Set(updated)
	s.saveMirror()
	s.mu.Unlock()
	return updated, nil
}

// Delete removes an expense remotely then locally. Absent ids succeed.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteExpensesByID(ctx, id); err != nil {
		return errors.Wrap(err, "deleting expense")
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
		return errors.Wrap(err, "subscribing to expenses feed")
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

func (s *Store) onRemoteInsert(ev realtime.Event) {
	s.mu.RLock()
	_, exists := s.cache.Get(ev.RowID)
	s.mu.RUnlock()
	if exists {
		return
	}

	e, err := s.repo.GetExpenseByID(context.Background(), ev.RowID)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			s.logger.Error(fmt.Sprintf("reading expense %s for feed event: %v", ev.RowID, err), err)
		}
		return
	}

	s.mu.Lock()
	if s.cache.MergeNew(e, false) {
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
		s.logger.Error(fmt.Sprintf("publishing expense %s event: %v", op, err), err)
	}
}

func (s *Store) saveMirror() {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Save(mirrorName, s.cache.List()); err != nil {
		s.logger.Error(fmt.Sprintf("mirroring expenses: %v", err), err)
	}
}

func (s *Store) restore() {
	if s.mirror == nil {
		return
	}
	var expenses []Expense
	ok, err := s.mirror.Load(mirrorName, &expenses)
	if err != nil {
		s.logger.Error(fmt.Sprintf("restoring expense mirror: %v", err), err)
		return
	}
	if ok {
		s.cache.Replace(expenses)
	}
}
