package pgrepos

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/KeviinDCV/NotionK4S/core"
	"github.com/KeviinDCV/NotionK4S/core/expense"
)

const expenseTable = "expense"

var expenseColumns = []string{
	"id", "description", "amount_cents", "currency", "category",
	"paid_by", "created_by", "spent_on", "created_at", "updated_at",
}

type expenseRow struct {
	ID          string      `db:"id"`
	Description string      `db:"description"`
	AmountCents int64       `db:"amount_cents"`
	Currency    null.String `db:"currency"`
	Category    null.String `db:"category"`
	PaidBy      null.String `db:"paid_by"`
	CreatedBy   null.String `db:"created_by"`
	SpentOn     null.Time   `db:"spent_on"`
	CreatedAt   null.Time   `db:"created_at"`
	UpdatedAt   null.Time   `db:"updated_at"`
}

type expenseRepository struct {
	db *sqlx.DB
}

var _ expense.Repository = (*expenseRepository)(nil) // interface compliance check

func NewExpenseRepository(db *sqlx.DB) *expenseRepository {
	return &expenseRepository{db: db}
}

func (repo expenseRepository) row(e expense.Expense) expenseRow {
	return expenseRow{
		ID:          e.ID,
		Description: e.Description,
		AmountCents: e.AmountCents,
		Currency:    null.NewString(e.Currency, e.Currency != ""),
		Category:    null.NewString(e.Category, e.Category != ""),
		PaidBy:      null.NewString(e.PaidBy, e.PaidBy != ""),
		CreatedBy:   null.NewString(e.CreatedBy, e.CreatedBy != ""),
		SpentOn:     null.NewTime(e.SpentOn.UTC(), !e.SpentOn.IsZero()),
		CreatedAt:   null.NewTime(e.CreatedAt.UTC(), !e.CreatedAt.IsZero()),
		UpdatedAt:   null.NewTime(e.UpdatedAt.UTC(), !e.UpdatedAt.IsZero()),
	}
}

func (repo expenseRepository) unrow(r expenseRow) expense.Expense {
	return expense.Expense{
		ID:          r.ID,
		Description: r.Description,
		AmountCents: r.AmountCents,
		Currency:    strings.TrimSpace(r.Currency.String),
		Category:    r.Category.String,
		PaidBy:      r.PaidBy.String,
		CreatedBy:   r.CreatedBy.String,
		SpentOn:     r.SpentOn.Time,
		CreatedAt:   r.CreatedAt.Time,
		UpdatedAt:   r.UpdatedAt.Time,
	}
}

// trapNoRowsErr maps psql "no rows" err to expense.ErrNotFound
func (repo expenseRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return expense.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo expenseRepository) CreateExpense(ctx context.Context, e expense.Expense) (expense.Expense, error) {
	e.ID = uuid.New().String()
	r := repo.row(e)

	query, args, err := psql.Insert(expenseTable).
		Columns(expenseColumns...).
		Values(r.ID, r.Description, r.AmountCents, r.Currency, r.Category, r.PaidBy, r.CreatedBy, r.SpentOn, r.CreatedAt, r.UpdatedAt).
		ToSql()
	if err != nil {
		return expense.Expense{}, errors.Wrap(err, "building expense insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return expense.Expense{}, errors.Wrap(err, "inserting expense")
	}
	return repo.unrow(r), nil
}

func (repo expenseRepository) GetExpenseByID(ctx context.Context, id string) (expense.Expense, error) {
	query, args, err := psql.Select(expenseColumns...).
		From(expenseTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return expense.Expense{}, errors.Wrap(err, "building expense query")
	}

	var r expenseRow
	if err = repo.db.GetContext(ctx, &r, query, args...); err != nil {
		return expense.Expense{}, repo.trapNoRowsErr(err, "getting expense")
	}
	return repo.unrow(r), nil
}

func (repo expenseRepository) ListExpenses(ctx context.Context, ordering []core.DBOrdering) ([]expense.Expense, error) {
	b := orderBy(psql.Select(expenseColumns...).From(expenseTable), ordering)

	query, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building expenses query")
	}

	var rows []expenseRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying expenses")
	}
	expenses := make([]expense.Expense, 0, len(rows))
	for _, r := range rows {
		expenses = append(expenses, repo.unrow(r))
	}
	return expenses, nil
}

func (repo expenseRepository) UpdateExpense(ctx context.Context, e expense.Expense) (expense.Expense, error) {
	r := repo.row(e)

	query, args, err := psql.Update(expenseTable).
		Set("description", r.Description).
		Set("amount_cents", r.AmountCents).
		Set("currency", r.Currency).
		Set("category", r.Category).
		Set("paid_by", r.PaidBy).
		Set("spent_on", r.SpentOn).
		Set("updated_at", r.UpdatedAt).
		Where(sq.Eq{"id": e.ID}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return expense.Expense{}, errors.Wrap(err, "building expense update")
	}

	var id string
	if err = repo.db.GetContext(ctx, &id, query, args...); err != nil {
		return expense.Expense{}, repo.trapNoRowsErr(err, "updating expense")
	}
	return repo.unrow(r), nil
}

// DeleteExpensesByID removes expenses; absent ids are not an error.
func (repo expenseRepository) DeleteExpensesByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := psql.Delete(expenseTable).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building expenses delete")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "deleting expenses")
	}
	return nil
}
