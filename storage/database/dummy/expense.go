package dummydb

import (
	"context"
	"sort"

	"github.com/KeviinDCV/NotionK4S/core"
	"github.com/KeviinDCV/NotionK4S/core/expense"
)

type expenseRepository struct {
	db *expenseTable
}

var _ expense.Repository = (*expenseRepository)(nil) // interface compliance check

func NewExpenseRepository(db *DB) expense.Repository {
	return &expenseRepository{db: db.expense}
}

func (repo *expenseRepository) CreateExpense(ctx context.Context, e expense.Expense) (expense.Expense, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	e.ID = NewID()
	repo.db.table[e.ID] = &e
	return e, nil
}

func (repo *expenseRepository) GetExpenseByID(ctx context.Context, id string) (expense.Expense, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if e, ok := repo.db.table[id]; ok {
		return *e, nil
	}
	return expense.Expense{}, expense.ErrNotFound
}

func (repo *expenseRepository) ListExpenses(ctx context.Context, ordering []core.DBOrdering) ([]expense.Expense, error) {
	repo.db.RLock()
	expenses := make([]expense.Expense, 0, len(repo.db.table))
	for _, e := range repo.db.table {
		expenses = append(expenses, *e)
	}
	repo.db.RUnlock()

	sort.SliceStable(expenses, func(i, j int) bool {
		a, b := expenses[i], expenses[j]
		if !a.SpentOn.Equal(b.SpentOn) {
			return a.SpentOn.After(b.SpentOn)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return expenses, nil
}

func (repo *expenseRepository) UpdateExpense(ctx context.Context, e expense.Expense) (expense.Expense, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[e.ID]; !ok {
		return expense.Expense{}, expense.ErrNotFound
	}
	repo.db.table[e.ID] = &e
	return e, nil
}

func (repo *expenseRepository) DeleteExpensesByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
