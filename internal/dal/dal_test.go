package dal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibbin/vibbin/internal/db"
	"github.com/vibbin/vibbin/internal/schemas"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "vibbin.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func mustCreateUser(t *testing.T, conn *sql.DB, username string) string {
	t.Helper()
	id, err := CreateUser(context.Background(), conn, username, "Name "+username, "hash")
	require.NoError(t, err)
	return id.String()
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)

	id := mustCreateUser(t, conn, "alice")

	_, err := CreateUser(ctx, conn, "alice", "Other", "hash")
	require.ErrorIs(t, err, ErrUserExists)

	user, err := GetUserByUsername(ctx, conn, "alice")
	require.NoError(t, err)
	assert.Equal(t, id, user.Id.String())
	assert.Equal(t, "Name alice", user.Name)
	assert.False(t, user.LastSeen.Valid)

	_, err = GetUserById(ctx, conn, "nope")
	require.ErrorIs(t, err, ErrUserNotFound)

	seen := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, TouchLastSeen(ctx, conn, id, seen))
	user, err = GetUserById(ctx, conn, id)
	require.NoError(t, err)
	require.True(t, user.LastSeen.Valid)
	assert.True(t, seen.Equal(user.LastSeen.Time))

	pub := PublicUser(user)
	assert.Equal(t, "alice", pub.Username)
	assert.Nil(t, pub.ProfilePicture)
}

func TestFriends(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	alice := mustCreateUser(t, conn, "alice")
	bob := mustCreateUser(t, conn, "bob")
	carol := mustCreateUser(t, conn, "carol")

	require.NoError(t, AddFriend(ctx, conn, alice, bob))
	require.NoError(t, AddFriend(ctx, conn, bob, alice), "re-adding is a no-op")
	require.Error(t, AddFriend(ctx, conn, alice, alice))

	ok, err := AreFriends(ctx, conn, bob, alice)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = AreFriends(ctx, conn, alice, carol)
	require.NoError(t, err)
	assert.False(t, ok)

	friends, err := GetFriends(ctx, conn, alice)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "bob", friends[0].Username)

	ids, err := GetFriendIds(ctx, conn, bob)
	require.NoError(t, err)
	assert.Equal(t, []string{alice}, ids)
}

func TestCallLogTransitions(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	alice := mustCreateUser(t, conn, "alice")
	bob := mustCreateUser(t, conn, "bob")

	// nothing answered yet
	updated, err := LogEnded(ctx, conn, alice, bob, time.Now(), 3)
	require.NoError(t, err)
	assert.False(t, updated)

	require.NoError(t, LogRejected(ctx, conn, alice, bob))
	start := time.Now().Add(-10 * time.Second)
	require.NoError(t, LogAnswered(ctx, conn, alice, bob, start))

	updated, err = LogEnded(ctx, conn, alice, bob, time.Now(), 10)
	require.NoError(t, err)
	assert.True(t, updated)

	// the ended entry is no longer ANSWERED, so a second end finds nothing
	updated, err = LogEnded(ctx, conn, alice, bob, time.Now(), 10)
	require.NoError(t, err)
	assert.False(t, updated)

	history, err := GetCallHistory(ctx, conn, bob, HistoryLimit)
	require.NoError(t, err)
	require.Len(t, history, 2)

	newest := history[0]
	assert.Equal(t, string(schemas.CallEnded), newest.Status)
	assert.Equal(t, "alice", newest.Caller.Username)
	assert.Equal(t, "bob", newest.Receiver.Username)
	require.NotNil(t, newest.Duration)
	assert.EqualValues(t, 10, *newest.Duration)
	assert.NotNil(t, newest.StartedAt)
	assert.NotNil(t, newest.EndedAt)

	assert.Equal(t, string(schemas.CallRejected), history[1].Status)
	assert.Nil(t, history[1].Duration)
}

func TestCallHistoryLimit(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	alice := mustCreateUser(t, conn, "alice")
	bob := mustCreateUser(t, conn, "bob")

	for range 5 {
		require.NoError(t, LogRejected(ctx, conn, alice, bob))
	}
	history, err := GetCallHistory(ctx, conn, alice, 3)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	history, err = GetCallHistory(ctx, conn, mustCreateUser(t, conn, "carol"), 3)
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}
