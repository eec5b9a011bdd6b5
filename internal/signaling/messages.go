// Package signaling defines the wire protocol spoken between vibbin clients and the relay.
//
// Every frame is a JSON envelope {"event": ..., "data": ...}. Messages are closed sets per
// direction: ClientMessage for frames a client sends, ServerMessage for frames the relay sends.
// Decoding is a single decode-then-switch, so an unknown event is an error rather than a silently
// ignored handler name.
package signaling

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Event string

const (
	EventCallUser     Event = "call-user"
	EventIncomingCall Event = "incoming-call"
	EventCallRinging  Event = "call-ringing"
	EventAcceptCall   Event = "accept-call"
	EventCallAccepted Event = "call-accepted"
	EventRejectCall   Event = "reject-call"
	EventCallRejected Event = "call-rejected"
	EventEndCall      Event = "end-call"
	EventCallEnded    Event = "call-ended"
	EventCallError    Event = "call-error"
	EventOffer        Event = "webrtc-offer"
	EventAnswer       Event = "webrtc-answer"
	EventCandidate    Event = "ice-candidate"
	EventUserStatus   Event = "user-status"
)

// ErrUnknownEvent is returned when a frame names an event outside the direction's message set.
var ErrUnknownEvent = errors.New("unknown event")

type envelope struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// UserInfo is the public profile of a user, as shown to the other party of a call.
type UserInfo struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Username       string  `json:"username"`
	ProfilePicture *string `json:"profilePicture"`
}

// ClientMessage is any frame a client may send to the relay.
type ClientMessage interface {
	ClientEvent() Event
}

type CallUser struct {
	TargetUserID string `json:"targetUserId"`
}

type AcceptCall struct {
	CallerID string `json:"callerId"`
}

type RejectCall struct {
	CallerID string `json:"callerId"`
}

type EndCall struct {
	TargetUserID string `json:"targetUserId"`
}

// SendOffer, SendAnswer and SendCandidate carry negotiation payloads the relay never looks into.
type SendOffer struct {
	TargetUserID string          `json:"targetUserId"`
	Offer        json.RawMessage `json:"offer"`
}

type SendAnswer struct {
	TargetUserID string          `json:"targetUserId"`
	Answer       json.RawMessage `json:"answer"`
}

type SendCandidate struct {
	TargetUserID string          `json:"targetUserId"`
	Candidate    json.RawMessage `json:"candidate"`
}

func (CallUser) ClientEvent() Event      { return EventCallUser }
func (AcceptCall) ClientEvent() Event    { return EventAcceptCall }
func (RejectCall) ClientEvent() Event    { return EventRejectCall }
func (EndCall) ClientEvent() Event       { return EventEndCall }
func (SendOffer) ClientEvent() Event     { return EventOffer }
func (SendAnswer) ClientEvent() Event    { return EventAnswer }
func (SendCandidate) ClientEvent() Event { return EventCandidate }

// ServerMessage is any frame the relay may send to a client.
type ServerMessage interface {
	ServerEvent() Event
}

type IncomingCall struct {
	CallerID   string   `json:"callerId"`
	CallerInfo UserInfo `json:"callerInfo"`
}

type CallRinging struct {
	TargetUserID string `json:"targetUserId"`
}

type CallAccepted struct {
	AcceptedBy string `json:"acceptedBy"`
}

type CallRejected struct {
	RejectedBy string `json:"rejectedBy"`
}

// CallEnded reports the end of a call. Duration is in whole seconds and only present when the
// relay computed one; Reason is set for ends not caused by an explicit hang-up.
type CallEnded struct {
	EndedBy  string `json:"endedBy"`
	Duration *int   `json:"duration,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type CallError struct {
	Message string `json:"message"`
}

type OfferRelay struct {
	CallerID string          `json:"callerId"`
	Offer    json.RawMessage `json:"offer"`
}

type AnswerRelay struct {
	AnswererID string          `json:"answererId"`
	Answer     json.RawMessage `json:"answer"`
}

type CandidateRelay struct {
	SenderID  string          `json:"senderId"`
	Candidate json.RawMessage `json:"candidate"`
}

type UserStatus struct {
	UserID   string     `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

func (IncomingCall) ServerEvent() Event   { return EventIncomingCall }
func (CallRinging) ServerEvent() Event    { return EventCallRinging }
func (CallAccepted) ServerEvent() Event   { return EventCallAccepted }
func (CallRejected) ServerEvent() Event   { return EventCallRejected }
func (CallEnded) ServerEvent() Event      { return EventCallEnded }
func (CallError) ServerEvent() Event      { return EventCallError }
func (OfferRelay) ServerEvent() Event     { return EventOffer }
func (AnswerRelay) ServerEvent() Event    { return EventAnswer }
func (CandidateRelay) ServerEvent() Event { return EventCandidate }
func (UserStatus) ServerEvent() Event     { return EventUserStatus }

// EncodeClient serializes a client frame.
func EncodeClient(msg ClientMessage) ([]byte, error) {
	return encode(msg.ClientEvent(), msg)
}

// EncodeServer serializes a relay frame.
func EncodeServer(msg ServerMessage) ([]byte, error) {
	return encode(msg.ServerEvent(), msg)
}

func encode(event Event, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", event, err)
	}
	return json.Marshal(envelope{Event: event, Data: data})
}

// DecodeClient parses a frame received by the relay.
func DecodeClient(raw []byte) (ClientMessage, error) {
	env, err := parseEnvelope(raw)
	if err != nil {
		return nil, err
	}

	var msg ClientMessage
	switch env.Event {
	case EventCallUser:
		var m CallUser
		err = unmarshalData(env, &m)
		if err == nil && m.TargetUserID == "" {
			err = errors.New("missing targetUserId")
		}
		msg = m
	case EventAcceptCall:
		var m AcceptCall
		err = unmarshalData(env, &m)
		if err == nil && m.CallerID == "" {
			err = errors.New("missing callerId")
		}
		msg = m
	case EventRejectCall:
		var m RejectCall
		err = unmarshalData(env, &m)
		if err == nil && m.CallerID == "" {
			err = errors.New("missing callerId")
		}
		msg = m
	case EventEndCall:
		var m EndCall
		err = unmarshalData(env, &m)
		if err == nil && m.TargetUserID == "" {
			err = errors.New("missing targetUserId")
		}
		msg = m
	case EventOffer:
		var m SendOffer
		err = unmarshalData(env, &m)
		if err == nil {
			err = requireRelay(m.TargetUserID, m.Offer, "offer")
		}
		msg = m
	case EventAnswer:
		var m SendAnswer
		err = unmarshalData(env, &m)
		if err == nil {
			err = requireRelay(m.TargetUserID, m.Answer, "answer")
		}
		msg = m
	case EventCandidate:
		var m SendCandidate
		err = unmarshalData(env, &m)
		if err == nil {
			err = requireRelay(m.TargetUserID, m.Candidate, "candidate")
		}
		msg = m
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownEvent, env.Event)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", env.Event, err)
	}
	return msg, nil
}

// DecodeServer parses a frame received by a client.
func DecodeServer(raw []byte) (ServerMessage, error) {
	env, err := parseEnvelope(raw)
	if err != nil {
		return nil, err
	}

	var msg ServerMessage
	switch env.Event {
	case EventIncomingCall:
		var m IncomingCall
		err = unmarshalData(env, &m)
		msg = m
	case EventCallRinging:
		var m CallRinging
		err = unmarshalData(env, &m)
		msg = m
	case EventCallAccepted:
		var m CallAccepted
		err = unmarshalData(env, &m)
		msg = m
	case EventCallRejected:
		var m CallRejected
		err = unmarshalData(env, &m)
		msg = m
	case EventCallEnded:
		var m CallEnded
		err = unmarshalData(env, &m)
		msg = m
	case EventCallError:
		var m CallError
		err = unmarshalData(env, &m)
		msg = m
	case EventOffer:
		var m OfferRelay
		err = unmarshalData(env, &m)
		msg = m
	case EventAnswer:
		var m AnswerRelay
		err = unmarshalData(env, &m)
		msg = m
	case EventCandidate:
		var m CandidateRelay
		err = unmarshalData(env, &m)
		msg = m
	case EventUserStatus:
		var m UserStatus
		err = unmarshalData(env, &m)
		msg = m
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownEvent, env.Event)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", env.Event, err)
	}
	return msg, nil
}

func parseEnvelope(raw []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, fmt.Errorf("malformed frame: %w", err)
	}
	if env.Event == "" {
		return envelope{}, errors.New("frame missing event")
	}
	return env, nil
}

func unmarshalData(env envelope, v any) error {
	if len(env.Data) == 0 {
		return errors.New("missing data")
	}
	dec := json.NewDecoder(bytes.NewReader(env.Data))
	return dec.Decode(v)
}

func requireRelay(target string, payload json.RawMessage, name string) error {
	if target == "" {
		return errors.New("missing targetUserId")
	}
	if len(payload) == 0 || string(payload) == "null" {
		return fmt.Errorf("missing %s", name)
	}
	return nil
}
