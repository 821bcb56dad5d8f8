package pgrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/KeviinDCV/NotionK4S/core/user"
)

const userTable = `"user"`

var userColumns = []string{
	"id", "name", "username", "email", "is_active", "roles",
	"password_hash", "created_at", "updated_at", "last_login",
}

type userRow struct {
	ID           string         `db:"id"`
	Name         null.String    `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	IsActive     null.Bool      `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash null.Bytes     `db:"password_hash"`
	CreatedAt    null.Time      `db:"created_at"`
	UpdatedAt    null.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

// row maps a domain User to its table row; empty strings on identity-typed
// columns become NULL.
func (repo userRepository) row(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         null.NewString(usr.Name, usr.Name != ""),
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		IsActive:     null.BoolFrom(usr.IsActive),
		Roles:        usr.Roles,
		PasswordHash: null.BytesFrom(usr.PasswordHash),
		CreatedAt:    null.NewTime(usr.CreatedAt.UTC(), !usr.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(usr.UpdatedAt.UTC(), !usr.UpdatedAt.IsZero()),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) unrow(r userRow) user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name.String,
		Username:     r.Username.String,
		Email:        r.Email.String,
		IsActive:     r.IsActive.Bool,
		Roles:        r.Roles,
		PasswordHash: r.PasswordHash.Bytes,
		CreatedAt:    r.CreatedAt.Time,
		UpdatedAt:    r.UpdatedAt.Time,
		LastLogin:    r.LastLogin.Time,
	}
}

func (repo userRepository) unrowSlice(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, repo.unrow(r))
	}
	return users
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	b := psql.Select("username", "email").
		From(userTable).
		Where(sq.Or{sq.Eq{"username": username}, sq.Eq{"email": email}})
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		b = b.Where(sq.NotEq{"id": ids})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}

	var rows []userRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, r := range rows {
		if username != "" && r.Username.String == username {
			return user.ErrUsernameExists
		}
		if email != "" && r.Email.String == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	r := repo.row(usr)

	query, args, err := psql.Insert(userTable).
		Columns(userColumns...).
		Values(r.ID, r.Name, r.Username, r.Email, r.IsActive, r.Roles, r.PasswordHash, r.CreatedAt, r.UpdatedAt, r.LastLogin).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building user insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.unrow(r), nil
}

func (repo userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	return repo.FilterUsers(ctx, user.QueryFilter{})
}

func (repo userRepository) getBy(ctx context.Context, pred interface{}, args ...interface{}) (user.User, error) {
	query, qargs, err := psql.Select(userColumns...).
		From(userTable).
		Where(pred, args...).
		Limit(1).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building user query")
	}

	var r userRow
	if err = repo.db.GetContext(ctx, &r, query, qargs...); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "getting user")
	}
	return repo.unrow(r), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return repo.getBy(ctx, sq.Eq{"id": id})
}

func (repo userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return repo.getBy(ctx, sq.Eq{"username": username})
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getBy(ctx, sq.Eq{"email": email})
}

func (repo userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	return repo.getBy(ctx, sq.Or{sq.Eq{"username": username}, sq.Eq{"email": username}})
}

func (repo userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	b := psql.Select(userColumns...).From(userTable)

	// users with Name, Username or Email matching the search keyword
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		b = b.Where(sq.Or{
			sq.Expr("name ILIKE ?", val),
			sq.Expr("username ILIKE ?", val),
			sq.Expr("email ILIKE ?", val),
		})
	}
	// users with any role that starts with any of the provided roles
	if len(filter.Roles) > 0 {
		roleOr := make(sq.Or, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			roleOr = append(roleOr, sq.Expr("EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role ILIKE ?)", role+"%"))
		}
		b = b.Where(roleOr)
	}
	if filter.IsActive != nil {
		b = b.Where(sq.Eq{"is_active": *filter.IsActive})
	}
	if !filter.CreatedFrom.IsZero() {
		b = b.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
	}
	if !filter.CreatedTo.IsZero() {
		b = b.Where(sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
	}
	b = b.OrderBy("created_at DESC")

	query, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building users query")
	}

	var rows []userRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return repo.unrowSlice(rows), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	b := psql.Update(userTable).
		Set("updated_at", null.TimeFrom(usr.UpdatedAt.UTC())).
		Where(sq.Eq{"id": usr.ID})

	if usr.Name != "" {
		b = b.Set("name", usr.Name)
	}
	if usr.Username != "" {
		b = b.Set("username", usr.Username)
	}
	if usr.Email != "" {
		b = b.Set("email", usr.Email)
	}
	if usr.Roles != nil {
		b = b.Set("roles", pq.StringArray(usr.Roles))
	}
	if len(usr.PasswordHash) > 0 {
		b = b.Set("password_hash", usr.PasswordHash)
	}
	if isActive != nil {
		b = b.Set("is_active", *isActive)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building user update")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return repo.GetUserByID(ctx, usr.ID)
}

func (repo userRepository) SetLastLogin(ctx context.Context, usr user.User) (user.User, error) {
	now := time.Now().UTC()
	query, args, err := psql.Update(userTable).
		Set("last_login", now).
		Where(sq.Eq{"id": usr.ID}).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building last login update")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return user.User{}, errors.Wrap(err, "setting last login")
	}
	usr.LastLogin = now
	return usr, nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := psql.Delete(userTable).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building users delete")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
