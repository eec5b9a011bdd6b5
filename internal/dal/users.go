// package dal is the data access layer. It contains functions that perform SQL queries and logic
// that cannot be decoupled from the queries. Files correspond to SQL tables
package dal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vibbin/vibbin/internal/schemas"
	"github.com/vibbin/vibbin/internal/schemas/public"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("username already taken")
)

const userColumns = "id, username, name, password, profile_picture, last_seen, created_at"

// CreateUser adds a user to the database and returns its id
func CreateUser(ctx context.Context, db *sql.DB, username, name, hashedPassword string) (uuid.UUID, error) {
	userId := uuid.New()

	result, err := db.ExecContext(ctx,
		"INSERT OR IGNORE INTO users (id, username, name, password, created_at) VALUES (?, ?, ?, ?, ?)",
		userId.String(), username, name, hashedPassword, time.Now().UTC(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("error inserting user: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return uuid.Nil, fmt.Errorf("driver does not support RowsAffected")
	}
	if rows == 0 {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrUserExists, username)
	}
	return userId, nil
}

func GetUserByUsername(ctx context.Context, db *sql.DB, username string) (*schemas.User, error) {
	row := db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, username)
	}
	return user, nil
}

func GetUserById(ctx context.Context, db *sql.DB, id string) (*schemas.User, error) {
	row := db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, id)
	}
	return user, nil
}

// TouchLastSeen records when a user was last connected
func TouchLastSeen(ctx context.Context, db *sql.DB, id string, at time.Time) error {
	if _, err := db.ExecContext(ctx, "UPDATE users SET last_seen = ? WHERE id = ?", at.UTC(), id); err != nil {
		return fmt.Errorf("error updating last seen: %w", err)
	}
	return nil
}

func scanUser(row *sql.Row) (*schemas.User, error) {
	var user schemas.User
	err := row.Scan(&user.Id, &user.Username, &user.Name, &user.Password,
		&user.ProfilePicture, &user.LastSeen, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error querying user: %w", err)
	}
	return &user, nil
}

// PublicUser strips private fields from a user record
func PublicUser(u *schemas.User) public.User {
	res := public.User{Id: u.Id.String(), Name: u.Name, Username: u.Username}
	if u.ProfilePicture.Valid {
		pic := u.ProfilePicture.String
		res.ProfilePicture = &pic
	}
	return res
}
