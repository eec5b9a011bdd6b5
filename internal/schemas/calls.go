package schemas

import (
	"errors"
	"sync"
	"time"
)

// ErrCallNotFound is returned by CallMap.Get when no session is keyed by the given caller.
var ErrCallNotFound = errors.New("call not found")

// SessionStatus is the lifecycle status of an in-progress call.
type SessionStatus string

const (
	SessionCalling   SessionStatus = "calling"
	SessionConnected SessionStatus = "connected"
)

// CallSession stores the relay's view of one in-progress call. It lives only in memory.
type CallSession struct {
	CallerId,
	ReceiverId string

	Status SessionStatus

	// zero until the receiver accepts
	StartTime time.Time
}

// Involves reports whether userId is either party of the call.
func (c CallSession) Involves(userId string) bool {
	return c.CallerId == userId || c.ReceiverId == userId
}

// CallMap stores in-progress calls, from initiation until they are ended, rejected or abandoned.
// Takes a caller's id as a key since a client can only make one call at a time
type CallMap struct {
	mu    sync.Mutex
	calls map[string]CallSession
}

// NewCallMap creates an empty registry
func NewCallMap() *CallMap {
	return &CallMap{calls: make(map[string]CallSession, 10)}
}

// Update inserts or updates a call for a given caller id
func (m *CallMap) Update(callerId string, call CallSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[callerId] = call
}

// Get returns a copy of the call keyed by callerId, returning ErrCallNotFound if absent.
// Updating a call should be done with CallMap.Update
func (m *CallMap) Get(callerId string) (CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if call, exists := m.calls[callerId]; exists {
		return call, nil
	}
	return CallSession{}, ErrCallNotFound
}

// Delete removes a call entry
func (m *CallMap) Delete(callerId string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.calls, callerId)
}

// Involving returns copies of every call where userId is the caller or the receiver.
// This is a linear scan; the map is only indexed by caller.
func (m *CallMap) Involving(userId string) []CallSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []CallSession
	for _, call := range m.calls {
		if call.Involves(userId) {
			out = append(out, call)
		}
	}
	return out
}

// Len returns the number of tracked calls
func (m *CallMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
