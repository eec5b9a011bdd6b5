package dal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vibbin/vibbin/internal/schemas"
)

// AddFriend links two users in both directions. Adding an existing friendship is not an error.
func AddFriend(ctx context.Context, db *sql.DB, userId, friendId string) error {
	if userId == friendId {
		return fmt.Errorf("cannot befriend yourself")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, pair := range [2][2]string{{userId, friendId}, {friendId, userId}} {
		_, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO friendships (user_id, friend_id, created_at) VALUES (?, ?, ?)",
			pair[0], pair[1], now,
		)
		if err != nil {
			return fmt.Errorf("error inserting friendship: %w", err)
		}
	}
	return tx.Commit()
}

// AreFriends reports whether a and b are linked in the friendship graph
func AreFriends(ctx context.Context, db *sql.DB, a, b string) (bool, error) {
	var exists int
	err := db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM friendships WHERE user_id = ? AND friend_id = ?)", a, b,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error querying friendship: %w", err)
	}
	return exists == 1, nil
}

// GetFriends returns the friends of a user ordered by name
func GetFriends(ctx context.Context, db *sql.DB, userId string) ([]schemas.User, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT u.id, u.username, u.name, u.password, u.profile_picture, u.last_seen, u.created_at
		FROM friendships f
		JOIN users u ON u.id = f.friend_id
		WHERE f.user_id = ?
		ORDER BY u.name`, userId)
	if err != nil {
		return nil, fmt.Errorf("error querying friends: %w", err)
	}
	defer rows.Close()

	var friends []schemas.User
	for rows.Next() {
		var u schemas.User
		if err := rows.Scan(&u.Id, &u.Username, &u.Name, &u.Password, &u.ProfilePicture, &u.LastSeen, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning friend: %w", err)
		}
		friends = append(friends, u)
	}
	return friends, rows.Err()
}

// GetFriendIds returns only the ids of a user's friends
func GetFriendIds(ctx context.Context, db *sql.DB, userId string) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT friend_id FROM friendships WHERE user_id = ?", userId)
	if err != nil {
		return nil, fmt.Errorf("error querying friends: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
