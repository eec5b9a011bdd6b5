// Package call drives one side of a call: what the user sees, from dialing to hang-up.
package call

import (
	"github.com/vibbin/vibbin/internal/client/media"
	"github.com/vibbin/vibbin/internal/signaling"
)

type State string

const (
	Idle State = "idle"

	// outbound, waiting for the other party to accept
	Calling State = "calling"

	// inbound, waiting for the user to accept or reject
	Ringing State = "ringing"

	// accepted, peer connection handshake in progress
	Connecting State = "connecting"

	// media is flowing
	Connected State = "connected"

	// terminal until Reset
	Ended State = "ended"
)

// Active reports whether the state belongs to a call that has not ended
func (s State) Active() bool {
	switch s {
	case Calling, Ringing, Connecting, Connected:
		return true
	}
	return false
}

// End reasons that are not relayed from the server
const (
	ReasonNoAnswer = "No answer"
	ReasonHangUp   = "hang-up"
)

// Error texts shown to the user
const (
	errTextRejected     = "Call was rejected"
	errTextMedia        = "Failed to access camera/microphone"
	errTextNegotiation  = "Failed to establish connection"
	errTextDisconnected = "Connection lost"
	errTextFailed       = "Connection failed"
	errTextSignaling    = "Lost connection to server"
)

// Snapshot is a copy of the call state at one point in time
type Snapshot struct {
	State State

	TargetUserID   string
	TargetUserInfo *signaling.UserInfo
	IncomingCall   *signaling.IncomingCall

	LocalStream  *media.LocalStream
	RemoteStream *media.RemoteStream

	IsMuted     bool
	IsCameraOff bool

	// whole seconds since the peer connection came up
	CallDuration int

	Error     string
	EndReason string
}
