package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"intelplatform/db"
	"intelplatform/models"
)

const userColumns = `id, username, password_hash, COALESCE(role, 'user'), COALESCE(avatar, ''), created_at`

type Users struct {
	db DBTX
}

func NewUsers(db DBTX) *Users {
	return &Users{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Avatar, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByUsername returns ErrNotFound when no row matches.
func (r *Users) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", username, err)
	}
	return u, nil
}

// Insert returns ErrDuplicate if the username is taken.
func (r *Users) Insert(ctx context.Context, username, passwordHash, role string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)`,
		username, passwordHash, role)
	if db.IsUniqueViolation(err) {
		return 0, ErrDuplicate
	}
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return res.LastInsertId()
}

// InsertIfMissing inserts the user unless the username exists and reports
// whether a row was written.
func (r *Users) InsertIfMissing(ctx context.Context, username, passwordHash, role string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (username, password_hash, role) VALUES (?, ?, ?)`,
		username, passwordHash, role)
	if err != nil {
		return false, fmt.Errorf("insert user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Users) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateAvatar sets the avatar path; an empty path clears it.
func (r *Users) UpdateAvatar(ctx context.Context, username, path string) error {
	var value any
	if path != "" {
		value = path
	}
	res, err := r.db.ExecContext(ctx, `UPDATE users SET avatar = ? WHERE username = ?`, value, username)
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	return expectOne(res, "update avatar")
}
