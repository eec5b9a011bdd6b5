// Package presence tracks which users currently hold live signaling connections.
package presence

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibbin/vibbin/internal/signaling"
)

// Sink is one live connection able to receive relay frames.
type Sink interface {
	Send(msg signaling.ServerMessage) error
}

type entry struct {
	conns    map[Sink]struct{}
	lastSeen time.Time
}

// Directory maps user ids to their live connections. A user is online while at least one
// connection is registered.
type Directory struct {
	mu    sync.RWMutex
	users map[string]*entry
	now   func() time.Time
}

func NewDirectory() *Directory {
	return &Directory{users: make(map[string]*entry), now: time.Now}
}

// Register adds conn to userId's set and reports whether it is the user's first live connection.
func (d *Directory) Register(userId string, conn Sink) (first bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.users[userId]
	if !ok {
		e = &entry{conns: make(map[Sink]struct{}, 1)}
		d.users[userId] = e
	}
	first = len(e.conns) == 0
	e.conns[conn] = struct{}{}
	e.lastSeen = d.now()
	return first
}

// Unregister removes conn and reports whether it was the user's last live connection.
// Removing an unknown connection reports false.
func (d *Directory) Unregister(userId string, conn Sink) (last bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.users[userId]
	if !ok {
		return false
	}
	if _, ok := e.conns[conn]; !ok {
		return false
	}
	delete(e.conns, conn)
	e.lastSeen = d.now()
	return len(e.conns) == 0
}

func (d *Directory) IsOnline(userId string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.users[userId]
	return ok && len(e.conns) > 0
}

// LastSeen returns the last time userId connected or disconnected during this process' lifetime.
func (d *Directory) LastSeen(userId string) (time.Time, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.users[userId]
	if !ok {
		return time.Time{}, false
	}
	return e.lastSeen, true
}

// Deliver sends msg to every live connection of userId and returns how many accepted it.
// Send errors are logged; the read loop of a broken connection unregisters it.
func (d *Directory) Deliver(userId string, msg signaling.ServerMessage) int {
	d.mu.RLock()
	e, ok := d.users[userId]
	var conns []Sink
	if ok {
		conns = make([]Sink, 0, len(e.conns))
		for c := range e.conns {
			conns = append(conns, c)
		}
	}
	d.mu.RUnlock()

	sent := 0
	for _, c := range conns {
		if err := c.Send(msg); err != nil {
			logrus.WithFields(logrus.Fields{
				"user":  userId,
				"event": msg.ServerEvent(),
			}).Warnf("error delivering frame: %v", err)
			continue
		}
		sent++
	}
	return sent
}
