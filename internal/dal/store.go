package dal

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibbin/vibbin/internal/schemas/public"
)

// Store binds the package functions to one database so they can be handed to services that only
// know about friendship checks, profiles and the call log.
type Store struct {
	DB *sql.DB
}

func (s Store) AreFriends(ctx context.Context, a, b string) (bool, error) {
	return AreFriends(ctx, s.DB, a, b)
}

func (s Store) FriendIds(ctx context.Context, userId string) ([]string, error) {
	return GetFriendIds(ctx, s.DB, userId)
}

func (s Store) Profile(ctx context.Context, userId string) (public.User, error) {
	user, err := GetUserById(ctx, s.DB, userId)
	if err != nil {
		return public.User{}, err
	}
	return PublicUser(user), nil
}

func (s Store) Answered(ctx context.Context, callerId, receiverId string, startedAt time.Time) error {
	return LogAnswered(ctx, s.DB, callerId, receiverId, startedAt)
}

func (s Store) Rejected(ctx context.Context, callerId, receiverId string) error {
	return LogRejected(ctx, s.DB, callerId, receiverId)
}

func (s Store) Ended(ctx context.Context, callerId, receiverId string, endedAt time.Time, duration int) error {
	_, err := LogEnded(ctx, s.DB, callerId, receiverId, endedAt, duration)
	return err
}

func (s Store) TouchLastSeen(ctx context.Context, userId string, at time.Time) error {
	return TouchLastSeen(ctx, s.DB, userId, at)
}
