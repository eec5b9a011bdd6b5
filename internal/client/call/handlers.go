package call

import (
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibbin/vibbin/internal/client/media"
	"github.com/vibbin/vibbin/internal/signaling"
)

// HandleMessage applies one relay message. It is meant to be called from a single read loop,
// so messages are handled in the order they arrived. Negotiation runs inline; candidates
// that arrive meanwhile are queued by the peer manager.
func (m *Machine) HandleMessage(msg signaling.ServerMessage) {
	switch msg := msg.(type) {
	case signaling.IncomingCall:
		m.onIncomingCall(msg)
	case signaling.CallRinging:
		m.log.WithField("target", msg.TargetUserID).Debug("remote client is ringing")
	case signaling.CallAccepted:
		m.onCallAccepted(msg)
	case signaling.CallRejected:
		m.onCallRejected(msg)
	case signaling.CallEnded:
		m.onCallEnded(msg)
	case signaling.CallError:
		m.onCallError(msg)
	case signaling.OfferRelay:
		m.onOffer(msg)
	case signaling.AnswerRelay:
		m.onAnswer(msg)
	case signaling.CandidateRelay:
		m.onCandidate(msg)
	case signaling.UserStatus:
		m.log.WithFields(logrus.Fields{"user": msg.UserID, "online": msg.IsOnline}).Debug("presence")
	default:
		m.log.Warnf("unhandled message %T", msg)
	}
}

func (m *Machine) onIncomingCall(msg signaling.IncomingCall) {
	m.mu.Lock()
	if m.s.State.Active() {
		m.mu.Unlock()
		m.log.WithField("caller", msg.CallerID).Info("busy, rejecting incoming call")
		if err := m.signaler.Send(signaling.RejectCall{CallerID: msg.CallerID}); err != nil {
			m.log.Warnf("error sending reject: %v", err)
		}
		return
	}

	// an ended call nobody dismissed yet gives way to the new one
	gen := m.nextCallLocked()
	info := msg.CallerInfo
	m.s = Snapshot{
		TargetUserID:   msg.CallerID,
		TargetUserInfo: &info,
		IncomingCall:   &msg,
	}
	m.armLocked(m.opts.RingTimeout, func() { m.onRingTimeout(gen) })
	m.enterLocked(Ringing)
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{
		"caller":   msg.CallerID,
		"username": msg.CallerInfo.Username,
	}).Info("incoming call")
}

func (m *Machine) onCallAccepted(msg signaling.CallAccepted) {
	m.mu.Lock()
	if m.s.State != Calling || msg.AcceptedBy != m.s.TargetUserID {
		m.mu.Unlock()
		m.log.WithField("acceptedBy", msg.AcceptedBy).Debug("ignoring stale accept")
		return
	}
	target := m.s.TargetUserID
	m.stopTimerLocked()
	m.enterLocked(Connecting)
	gen := m.gen
	m.mu.Unlock()

	m.log.WithField("target", target).Info("call accepted, sending offer")
	m.negotiated(gen, m.peer.CreateOffer(m.ctx, target))
}

func (m *Machine) onCallRejected(msg signaling.CallRejected) {
	m.mu.Lock()
	if m.s.State != Calling || msg.RejectedBy != m.s.TargetUserID {
		m.mu.Unlock()
		return
	}
	m.s.Error = errTextRejected
	m.endLocked("")
	m.mu.Unlock()

	m.log.WithField("rejectedBy", msg.RejectedBy).Info("call rejected")
	m.peer.Cleanup()
}

func (m *Machine) onCallEnded(msg signaling.CallEnded) {
	m.mu.Lock()
	if !m.s.State.Active() {
		// the relay's acknowledgement of our own hang-up carries the authoritative duration
		if m.s.State == Ended && msg.Duration != nil {
			m.s.CallDuration = *msg.Duration
			m.publishLocked()
		}
		m.mu.Unlock()
		return
	}
	if msg.Duration != nil {
		m.s.CallDuration = *msg.Duration
	}
	m.endLocked(msg.Reason)
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{
		"endedBy": msg.EndedBy,
		"reason":  msg.Reason,
	}).Info("call ended")
	m.peer.Cleanup()
}

func (m *Machine) onCallError(msg signaling.CallError) {
	m.mu.Lock()
	if !m.s.State.Active() {
		m.mu.Unlock()
		m.log.Warnf("call error outside a call: %s", msg.Message)
		return
	}
	m.s.Error = msg.Message
	m.endLocked("")
	m.mu.Unlock()

	m.log.Warnf("call error: %s", msg.Message)
	m.peer.Cleanup()
}

func (m *Machine) onOffer(msg signaling.OfferRelay) {
	m.mu.Lock()
	if m.s.State != Connecting || msg.CallerID != m.s.TargetUserID {
		m.mu.Unlock()
		m.log.WithField("from", msg.CallerID).Debug("dropping unexpected offer")
		return
	}
	gen := m.gen
	m.mu.Unlock()

	offer, err := msg.Description()
	if err == nil {
		err = m.peer.HandleOffer(m.ctx, offer, msg.CallerID)
	}
	m.negotiated(gen, err)
}

func (m *Machine) onAnswer(msg signaling.AnswerRelay) {
	m.mu.Lock()
	if (m.s.State != Connecting && m.s.State != Connected) || msg.AnswererID != m.s.TargetUserID {
		m.mu.Unlock()
		m.log.WithField("from", msg.AnswererID).Debug("dropping unexpected answer")
		return
	}
	gen := m.gen
	m.mu.Unlock()

	answer, err := msg.Description()
	if err == nil {
		err = m.peer.HandleAnswer(answer)
	}
	if err != nil {
		m.fail(gen, failureText(err), err, true)
	}
}

func (m *Machine) onCandidate(msg signaling.CandidateRelay) {
	m.mu.Lock()
	if (m.s.State != Connecting && m.s.State != Connected) || msg.SenderID != m.s.TargetUserID {
		m.mu.Unlock()
		m.log.WithField("from", msg.SenderID).Trace("dropping candidate")
		return
	}
	gen := m.gen
	m.mu.Unlock()

	c, err := msg.Init()
	if err == nil {
		err = m.peer.HandleICECandidate(c)
	}
	if err != nil {
		m.fail(gen, failureText(err), err, true)
	}
}

// negotiated settles a negotiation step that ran outside the lock. A step that succeeded after
// its call ended has built a peer connection nobody owns, so it is released here.
func (m *Machine) negotiated(gen uint64, err error) {
	if err != nil {
		m.fail(gen, failureText(err), err, true)
		return
	}
	m.mu.Lock()
	current := gen == m.gen && m.s.State.Active()
	m.mu.Unlock()
	if !current {
		m.log.Debug("negotiation finished after the call ended")
		m.teardown(gen)
	}
}

// onPeerState runs on a pion goroutine; teardown is handed to a new goroutine
func (m *Machine) onPeerState(state webrtc.PeerConnectionState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	gen := m.gen
	switch state {
	case webrtc.PeerConnectionStateConnected:
		if m.s.State != Connecting {
			return
		}
		m.enterLocked(Connected)
		m.startTickerLocked(gen)
		m.log.WithField("target", m.s.TargetUserID).Info("call connected")

	case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed:
		if m.s.State != Connecting && m.s.State != Connected {
			return
		}
		text := errTextFailed
		if state == webrtc.PeerConnectionStateDisconnected {
			text = errTextDisconnected
		}
		go m.fail(gen, text, errTransport(state), true)
	}
}

func (m *Machine) onRemoteStream(rs *media.RemoteStream) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.s.State != Connecting && m.s.State != Connected {
		return
	}
	m.s.RemoteStream = rs
	m.publishLocked()
}

type errTransport webrtc.PeerConnectionState

func (e errTransport) Error() string {
	return "peer connection " + webrtc.PeerConnectionState(e).String()
}
