package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallMap_GetUpdateDelete(t *testing.T) {
	m := NewCallMap()

	_, err := m.Get("alice")
	require.ErrorIs(t, err, ErrCallNotFound)

	m.Update("alice", CallSession{CallerId: "alice", ReceiverId: "bob", Status: SessionCalling})
	call, err := m.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, "bob", call.ReceiverId)

	// Get returns a copy
	call.Status = SessionConnected
	again, _ := m.Get("alice")
	assert.Equal(t, SessionCalling, again.Status)

	m.Delete("alice")
	m.Delete("alice")
	assert.Equal(t, 0, m.Len())
}

func TestCallMap_Involving(t *testing.T) {
	m := NewCallMap()
	m.Update("alice", CallSession{CallerId: "alice", ReceiverId: "bob"})
	m.Update("carol", CallSession{CallerId: "carol", ReceiverId: "alice"})
	m.Update("dave", CallSession{CallerId: "dave", ReceiverId: "erin"})

	got := m.Involving("alice")
	assert.Len(t, got, 2)
	assert.Len(t, m.Involving("erin"), 1)
	assert.Empty(t, m.Involving("zed"))
}
