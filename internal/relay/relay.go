// Package relay implements the server side of call signaling: call initiation gated on friendship
// and presence, accept/reject/end bookkeeping in the call registry, verbatim forwarding of
// negotiation payloads, and cleanup when a user's last connection drops.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibbin/vibbin/internal/presence"
	"github.com/vibbin/vibbin/internal/schemas"
	"github.com/vibbin/vibbin/internal/schemas/public"
	"github.com/vibbin/vibbin/internal/signaling"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotFriends       = errors.New("not friends with target")
	ErrTargetOffline    = errors.New("target is offline")
	ErrCallerBusy       = errors.New("caller already has an active call")
	ErrInitiateFailed   = errors.New("failed to initiate call")

	// ErrStaleAction is returned for accept/reject/end frames that reference no live session.
	// It is never reported to the client.
	ErrStaleAction = errors.New("stale call action")
)

const ReasonDisconnect = "disconnect"

// callErrorMessages are the texts clients show for each precondition failure.
var callErrorMessages = map[error]string{
	ErrNotAuthenticated: "Not authenticated",
	ErrNotFriends:       "You can only call friends",
	ErrTargetOffline:    "User is offline",
	ErrCallerBusy:       "You already have an active call",
	ErrInitiateFailed:   "Failed to initiate call",
}

// Store is the durable side of the relay: the friendship graph, public profiles and the call log.
type Store interface {
	AreFriends(ctx context.Context, a, b string) (bool, error)
	Profile(ctx context.Context, userId string) (public.User, error)

	Answered(ctx context.Context, callerId, receiverId string, startedAt time.Time) error
	Rejected(ctx context.Context, callerId, receiverId string) error
	Ended(ctx context.Context, callerId, receiverId string, endedAt time.Time, duration int) error
}

// Presence answers whether a user is online and delivers frames to all of their connections.
type Presence interface {
	IsOnline(userId string) bool
	Deliver(userId string, msg signaling.ServerMessage) int
}

// Peer is the authenticated sender of a frame. Conn is the connection the frame arrived on;
// replies meant only for the requester go there instead of to all of the user's connections.
type Peer struct {
	UserID string
	Conn   presence.Sink
}

// Relay owns the call registry. All registry reads and writes that must agree with each other
// happen under mu; store and presence lookups happen outside it.
type Relay struct {
	mu    sync.Mutex
	calls *schemas.CallMap

	store    Store
	presence Presence

	now func() time.Time
	log *logrus.Entry
}

type Option func(*Relay)

// WithClock replaces time.Now, used to compute call durations.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) { r.now = now }
}

func New(store Store, presence Presence, opts ...Option) *Relay {
	r := &Relay{
		calls:    schemas.NewCallMap(),
		store:    store,
		presence: presence,
		now:      time.Now,
		log:      logrus.WithField("component", "relay"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Calls exposes the registry for read-only use, such as marking friends who are in a call.
func (r *Relay) Calls() *schemas.CallMap {
	return r.calls
}

// Handle dispatches one decoded client frame.
func (r *Relay) Handle(ctx context.Context, from Peer, msg signaling.ClientMessage) error {
	switch m := msg.(type) {
	case signaling.CallUser:
		return r.Initiate(ctx, from, m.TargetUserID)
	case signaling.AcceptCall:
		return r.Accept(ctx, from, m.CallerID)
	case signaling.RejectCall:
		return r.Reject(ctx, from, m.CallerID)
	case signaling.EndCall:
		return r.Terminate(ctx, from, m.TargetUserID)
	case signaling.SendOffer:
		return r.Forward(from, m.TargetUserID, signaling.OfferRelay{CallerID: from.UserID, Offer: m.Offer})
	case signaling.SendAnswer:
		return r.Forward(from, m.TargetUserID, signaling.AnswerRelay{AnswererID: from.UserID, Answer: m.Answer})
	case signaling.SendCandidate:
		return r.Forward(from, m.TargetUserID, signaling.CandidateRelay{SenderID: from.UserID, Candidate: m.Candidate})
	default:
		return fmt.Errorf("%w %q", signaling.ErrUnknownEvent, msg.ClientEvent())
	}
}

// Initiate starts a call from the requester to targetId. Precondition failures are reported to
// the requesting connection as call-error and returned.
func (r *Relay) Initiate(ctx context.Context, from Peer, targetId string) error {
	log := r.log.WithFields(logrus.Fields{"caller": from.UserID, "target": targetId})

	if from.UserID == "" {
		return r.fail(from, ErrNotAuthenticated, ErrNotAuthenticated)
	}

	friends, err := r.store.AreFriends(ctx, from.UserID, targetId)
	if err != nil {
		log.Errorf("error checking friendship: %v", err)
		return r.fail(from, ErrInitiateFailed, err)
	}
	if !friends {
		return r.fail(from, ErrNotFriends, ErrNotFriends)
	}
	if !r.presence.IsOnline(targetId) {
		return r.fail(from, ErrTargetOffline, ErrTargetOffline)
	}

	caller, err := r.store.Profile(ctx, from.UserID)
	if err != nil {
		log.Errorf("error fetching caller profile: %v", err)
		return r.fail(from, ErrInitiateFailed, err)
	}

	r.mu.Lock()
	if active := r.calls.Involving(from.UserID); len(active) > 0 {
		r.mu.Unlock()
		return r.fail(from, ErrCallerBusy, ErrCallerBusy)
	}
	r.calls.Update(from.UserID, schemas.CallSession{
		CallerId:   from.UserID,
		ReceiverId: targetId,
		Status:     schemas.SessionCalling,
	})
	r.mu.Unlock()

	log.Info("call initiated")
	r.presence.Deliver(targetId, signaling.IncomingCall{
		CallerID: from.UserID,
		CallerInfo: signaling.UserInfo{
			ID:             caller.Id,
			Name:           caller.Name,
			Username:       caller.Username,
			ProfilePicture: caller.ProfilePicture,
		},
	})
	r.reply(from, signaling.CallRinging{TargetUserID: targetId})
	return nil
}

// Accept marks the session keyed by callerId as connected, provided the requester is its receiver.
func (r *Relay) Accept(ctx context.Context, from Peer, callerId string) error {
	log := r.log.WithFields(logrus.Fields{"caller": callerId, "receiver": from.UserID})

	r.mu.Lock()
	call, err := r.calls.Get(callerId)
	if err != nil || call.ReceiverId != from.UserID || call.Status != schemas.SessionCalling {
		r.mu.Unlock()
		log.Debug("ignoring stale accept")
		return ErrStaleAction
	}
	call.Status = schemas.SessionConnected
	call.StartTime = r.now()
	r.calls.Update(callerId, call)
	r.mu.Unlock()

	log.Info("call accepted")
	r.presence.Deliver(callerId, signaling.CallAccepted{AcceptedBy: from.UserID})

	if err := r.store.Answered(ctx, callerId, from.UserID, call.StartTime); err != nil {
		log.Errorf("error logging answered call: %v", err)
	}
	return nil
}

// Reject deletes the session keyed by callerId, provided the requester is its receiver.
func (r *Relay) Reject(ctx context.Context, from Peer, callerId string) error {
	log := r.log.WithFields(logrus.Fields{"caller": callerId, "receiver": from.UserID})

	r.mu.Lock()
	call, err := r.calls.Get(callerId)
	// another connection of the receiver may have answered already
	if err != nil || call.ReceiverId != from.UserID || call.Status != schemas.SessionCalling {
		r.mu.Unlock()
		log.Debug("ignoring stale reject")
		return ErrStaleAction
	}
	r.calls.Delete(callerId)
	r.mu.Unlock()

	log.Info("call rejected")
	r.presence.Deliver(callerId, signaling.CallRejected{RejectedBy: from.UserID})

	if err := r.store.Rejected(ctx, callerId, from.UserID); err != nil {
		log.Errorf("error logging rejected call: %v", err)
	}
	return nil
}

// Terminate ends the session between the requester and otherId, whichever of them is the caller.
// Every connection of both parties receives call-ended with the duration in whole seconds.
func (r *Relay) Terminate(ctx context.Context, from Peer, otherId string) error {
	r.mu.Lock()
	call, err := r.calls.Get(from.UserID)
	if err != nil {
		call, err = r.calls.Get(otherId)
		if err == nil && call.ReceiverId != from.UserID {
			err = schemas.ErrCallNotFound
		}
	}
	if err != nil {
		r.mu.Unlock()
		r.log.WithField("user", from.UserID).Debug("ignoring end for unknown call")
		return ErrStaleAction
	}
	r.calls.Delete(call.CallerId)
	r.mu.Unlock()

	now := r.now()
	duration := r.durationAt(call, now)
	other := call.CallerId
	if other == from.UserID {
		other = call.ReceiverId
	}

	r.log.WithFields(logrus.Fields{
		"caller":   call.CallerId,
		"receiver": call.ReceiverId,
		"duration": duration,
	}).Info("call ended")

	ended := signaling.CallEnded{EndedBy: from.UserID, Duration: &duration}
	r.presence.Deliver(other, ended)
	if r.presence.Deliver(from.UserID, ended) == 0 {
		r.reply(from, ended)
	}

	if call.Status == schemas.SessionConnected {
		if err := r.store.Ended(ctx, call.CallerId, call.ReceiverId, now, duration); err != nil {
			r.log.Errorf("error logging ended call: %v", err)
		}
	}
	return nil
}

// Forward relays a negotiation payload to every connection of targetId, untouched apart from the
// sender tag.
func (r *Relay) Forward(from Peer, targetId string, msg signaling.ServerMessage) error {
	if from.UserID == "" {
		return ErrNotAuthenticated
	}
	if n := r.presence.Deliver(targetId, msg); n == 0 {
		r.log.WithFields(logrus.Fields{
			"sender": from.UserID,
			"target": targetId,
			"event":  msg.ServerEvent(),
		}).Debug("no live connection for relayed frame")
	}
	return nil
}

// Disconnect removes every session involving userId and notifies the remaining parties. It is
// called once the user's last connection has closed and returns the number of sessions removed.
// A caller that vanishes before being answered is dropped silently.
func (r *Relay) Disconnect(ctx context.Context, userId string) int {
	r.mu.Lock()
	sessions := r.calls.Involving(userId)
	for _, call := range sessions {
		r.calls.Delete(call.CallerId)
	}
	r.mu.Unlock()

	now := r.now()
	for _, call := range sessions {
		log := r.log.WithFields(logrus.Fields{"caller": call.CallerId, "receiver": call.ReceiverId})
		if call.CallerId == userId && call.Status == schemas.SessionCalling {
			log.Info("unanswered call dropped by caller disconnect")
			continue
		}

		other := call.CallerId
		if other == userId {
			other = call.ReceiverId
		}
		ended := signaling.CallEnded{EndedBy: userId, Reason: ReasonDisconnect}
		if call.Status == schemas.SessionConnected {
			duration := r.durationAt(call, now)
			ended.Duration = &duration
			if err := r.store.Ended(ctx, call.CallerId, call.ReceiverId, now, duration); err != nil {
				log.Errorf("error logging ended call: %v", err)
			}
		}
		log.Info("call ended by disconnect")
		r.presence.Deliver(other, ended)
	}
	return len(sessions)
}

func (r *Relay) durationAt(call schemas.CallSession, now time.Time) int {
	if call.StartTime.IsZero() {
		return 0
	}
	d := int(now.Sub(call.StartTime) / time.Second)
	return max(d, 0)
}

// fail sends the call-error for reported to the requesting connection and returns it wrapped
// with cause.
func (r *Relay) fail(from Peer, reported, cause error) error {
	r.reply(from, signaling.CallError{Message: callErrorMessages[reported]})
	if errors.Is(cause, reported) {
		return reported
	}
	return fmt.Errorf("%w: %w", reported, cause)
}

func (r *Relay) reply(to Peer, msg signaling.ServerMessage) {
	if to.Conn == nil {
		return
	}
	if err := to.Conn.Send(msg); err != nil {
		r.log.WithFields(logrus.Fields{
			"user":  to.UserID,
			"event": msg.ServerEvent(),
		}).Warnf("error replying to requester: %v", err)
	}
}
