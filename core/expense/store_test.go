package expense

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/KeviinDCV/NotionK4S/core"
	"github.com/KeviinDCV/NotionK4S/realtime"
)

type fakeRepo struct {
	mu   sync.Mutex
	rows map[string]Expense
	seq  int
}

var _ Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[string]Expense)}
}

func (r *fakeRepo) CreateExpense(ctx context.Context, e Expense) (Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	e.ID = fmt.Sprintf("exp-%d", r.seq)
	r.rows[e.ID] = e
	return e, nil
}

func (r *fakeRepo) GetExpenseByID(ctx context.Context, id string) (Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	if !ok {
		return Expense{}, ErrNotFound
	}
	return e, nil
}

func (r *fakeRepo) ListExpenses(ctx context.Context, ordering []core.DBOrdering) ([]Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	expenses := make([]Expense, 0, len(r.rows))
	for _, e := range r.rows {
		expenses = append(expenses, e)
	}
	sort.Slice(expenses, func(i, j int) bool {
		return expenses[i].SpentOn.After(expenses[j].SpentOn)
	})
	return expenses, nil
}

func (r *fakeRepo) UpdateExpense(ctx context.Context, e Expense) (Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[e.ID]; !ok {
		return Expense{}, ErrNotFound
	}
	r.rows[e.ID] = e
	return e, nil
}

func (r *fakeRepo) DeleteExpensesByID(ctx context.Context, ids ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.rows, id)
	}
	return nil
}

func newTestStore(repo Repository) *Store {
	return NewStore(repo, nil, nil, core.NopLogger{})
}

func TestStore_Create_defaults(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(newFakeRepo())

	created, err := store.Create(ctx, NewExpense{
		CreatedBy:   "u1",
		Description: "team lunch",
		AmountCents: 4250,
	})
	if err != nil {
		t.Fatalf("Create(): %v", err)
	}
	if created.Currency != DefaultCurrency {
		t.Errorf("Currency = %q, want %q", created.Currency, DefaultCurrency)
	}
	if created.Category != CategoryOther {
		t.Errorf("Category = %q, want %q", created.Category, CategoryOther)
	}
	if created.SpentOn.IsZero() {
		t.Error("SpentOn not defaulted")
	}

	lowered, err := store.Create(ctx, NewExpense{
		CreatedBy:   "u1",
		Description: "taxi",
		AmountCents: 1800,
		Currency:    "eur",
		Category:    CategoryTransport,
	})
	if err != nil {
		t.Fatalf("Create(): %v", err)
	}
	if lowered.Currency != "EUR" {
		t.Errorf("Currency = %q, want uppercased", lowered.Currency)
	}
}

func TestStore_Create_invalid(t *testing.T) {
	store := newTestStore(newFakeRepo())
	cases := []struct {
		name string
		ne   NewExpense
	}{
		{"zero amount", NewExpense{CreatedBy: "u1", Description: "free", AmountCents: 0}},
		{"negative amount", NewExpense{CreatedBy: "u1", Description: "refund", AmountCents: -100}},
		{"bad category", NewExpense{CreatedBy: "u1", Description: "x", AmountCents: 100, Category: "gadgets"}},
		{"bad currency", NewExpense{CreatedBy: "u1", Description: "x", AmountCents: 100, Currency: "EURO"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := store.Create(context.Background(), tc.ne); err == nil {
				t.Errorf("Create(%+v) succeeded", tc.ne)
			}
		})
	}
}

func TestStore_TotalCents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(newFakeRepo())

	for _, ne := range []NewExpense{
		{CreatedBy: "u1", Description: "lunch", AmountCents: 4250},
		{CreatedBy: "u2", Description: "snacks", AmountCents: 750},
		{CreatedBy: "u1", Description: "hotel", AmountCents: 12000, Currency: "EUR"},
	} {
		if _, err := store.Create(ctx, ne); err != nil {
			t.Fatalf("Create(): %v", err)
		}
	}

	totals := store.TotalCents()
	if totals["USD"] != 5000 {
		t.Errorf("totals[USD] = %d, want 5000", totals["USD"])
	}
	if totals["EUR"] != 12000 {
		t.Errorf("totals[EUR] = %d, want 12000", totals["EUR"])
	}
}

func TestStore_Update(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(newFakeRepo())

	created, err := store.Create(ctx, NewExpense{CreatedBy: "u1", Description: "dinner", AmountCents: 3000})
	if err != nil {
		t.Fatalf("Create(): %v", err)
	}

	amount := int64(3600)
	updated, err := store.Update(ctx, created.ID, UpdateExpense{AmountCents: &amount})
	if err != nil {
		t.Fatalf("Update(): %v", err)
	}
	if updated.AmountCents != amount {
		t.Errorf("AmountCents = %d, want %d", updated.AmountCents, amount)
	}
	if updated.Description != "dinner" {
		t.Errorf("Description = %q, unset fields must survive", updated.Description)
	}
	if store.TotalCents()["USD"] != amount {
		t.Errorf("totals[USD] = %d, want %d", store.TotalCents()["USD"], amount)
	}
}

func TestStore_Delete_idempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(newFakeRepo())

	created, err := store.Create(ctx, NewExpense{CreatedBy: "u1", Description: "misc", AmountCents: 99})
	if err != nil {
		t.Fatalf("Create(): %v", err)
	}
	if err = store.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete(): %v", err)
	}
	if err = store.Delete(ctx, created.ID); err != nil {
		t.Errorf("Delete() again: %v", err)
	}
	if len(store.Expenses()) != 0 {
		t.Errorf("Expenses() = %v, want empty", store.Expenses())
	}
}

func TestStore_onRemoteInsert(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	store := newTestStore(repo)

	mine, err := store.Create(ctx, NewExpense{CreatedBy: "u1", Description: "coffee", AmountCents: 350})
	if err != nil {
		t.Fatalf("Create(): %v", err)
	}

	// a redelivery of our own insert changes nothing
	store.onRemoteInsert(eventFor(mine.ID))
	if len(store.Expenses()) != 1 {
		t.Fatalf("Expenses() = %v, want 1 row", store.Expenses())
	}

	// a peer's insert is point-read and folded in
	theirs, err := repo.CreateExpense(ctx, Expense{Description: "paper", AmountCents: 500, Currency: "USD", CreatedBy: "u2"})
	if err != nil {
		t.Fatalf("CreateExpense(): %v", err)
	}
	store.onRemoteInsert(eventFor(theirs.ID))
	expenses := store.Expenses()
	if len(expenses) != 2 || expenses[0].ID != theirs.ID {
		t.Errorf("Expenses() = %v, want the remote row at the head", expenses)
	}
}

func eventFor(id string) realtime.Event {
	return realtime.Event{Op: realtime.OpInsert, Family: Family, Scope: ScopeBoard, RowID: id}
}
