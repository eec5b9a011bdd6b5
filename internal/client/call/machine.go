package call

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibbin/vibbin/internal/client/media"
	"github.com/vibbin/vibbin/internal/client/peer"
	"github.com/vibbin/vibbin/internal/signaling"
)

var (
	ErrCallInProgress = errors.New("a call is already in progress")
	ErrNoIncomingCall = errors.New("no incoming call")
)

const (
	DefaultNoAnswerTimeout = 45 * time.Second
	DefaultRingTimeout     = 45 * time.Second

	changesBuffer = 16
)

type Signaler interface {
	Send(signaling.ClientMessage) error
}

// PeerManager is the part of peer.Manager the machine drives
type PeerManager interface {
	SetHandlers(onState func(webrtc.PeerConnectionState), onRemote func(*media.RemoteStream))
	InitializeLocalMedia(ctx context.Context) (*media.LocalStream, error)
	CreateOffer(ctx context.Context, target string) error
	HandleOffer(ctx context.Context, offer webrtc.SessionDescription, from string) error
	HandleAnswer(answer webrtc.SessionDescription) error
	HandleICECandidate(c webrtc.ICECandidateInit) error
	ToggleMute() (bool, error)
	ToggleCamera() (bool, error)
	Cleanup()
}

var _ PeerManager = (*peer.Manager)(nil)

// Tones plays the call cues. Implementations must return immediately.
type Tones interface {
	PlayRingback()
	PlayIncomingRing()
	Stop()
}

type silence struct{}

func (silence) PlayRingback()     {}
func (silence) PlayIncomingRing() {}
func (silence) Stop()             {}

type Options struct {
	NoAnswerTimeout time.Duration
	RingTimeout     time.Duration
	Tones           Tones
}

// Machine is the client call state machine. Every transition happens under one mutex;
// peer operations run outside it and check the call generation before applying results,
// so a late completion from an earlier call never touches the current one.
type Machine struct {
	ctx      context.Context
	signaler Signaler
	peer     PeerManager
	opts     Options
	log      *logrus.Entry

	mu          sync.Mutex
	s           Snapshot
	gen         uint64
	timer       *time.Timer
	stopTicker  chan struct{}
	connectedAt time.Time

	changes chan Snapshot
}

// New creates an idle machine and registers it for pm's connection events.
// ctx bounds media acquisition and negotiation.
func New(ctx context.Context, signaler Signaler, pm PeerManager, opts Options) *Machine {
	if opts.NoAnswerTimeout <= 0 {
		opts.NoAnswerTimeout = DefaultNoAnswerTimeout
	}
	if opts.RingTimeout <= 0 {
		opts.RingTimeout = DefaultRingTimeout
	}
	if opts.Tones == nil {
		opts.Tones = silence{}
	}
	m := &Machine{
		ctx:      ctx,
		signaler: signaler,
		peer:     pm,
		opts:     opts,
		log:      logrus.WithField("component", "call"),
		s:        Snapshot{State: Idle},
		changes:  make(chan Snapshot, changesBuffer),
	}
	pm.SetHandlers(m.onPeerState, m.onRemoteStream)
	return m
}

// Snapshot returns the current state
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s
}

// Changes publishes every state change. When the reader falls behind the oldest
// snapshots are dropped, so the newest one is always delivered.
func (m *Machine) Changes() <-chan Snapshot {
	return m.changes
}

// StartCall dials target. It is only legal from idle.
func (m *Machine) StartCall(target string, info *signaling.UserInfo) error {
	m.mu.Lock()
	if m.s.State != Idle {
		m.mu.Unlock()
		return ErrCallInProgress
	}
	gen := m.nextCallLocked()
	m.s = Snapshot{TargetUserID: target, TargetUserInfo: info}
	m.armLocked(m.opts.NoAnswerTimeout, func() { m.onNoAnswer(gen) })
	m.enterLocked(Calling)
	m.mu.Unlock()

	m.log.WithField("target", target).Info("calling")

	// a capture failure is reported but the call goes on; the offer retries the devices
	go m.initMedia(gen)

	if err := m.signaler.Send(signaling.CallUser{TargetUserID: target}); err != nil {
		m.fail(gen, errTextSignaling, err, false)
		return fmt.Errorf("error sending call request: %w", err)
	}
	return nil
}

// AcceptCall answers the ringing call. The caller sends the offer once it sees the accept.
func (m *Machine) AcceptCall() error {
	m.mu.Lock()
	if m.s.State != Ringing || m.s.IncomingCall == nil {
		m.mu.Unlock()
		return ErrNoIncomingCall
	}
	caller := m.s.IncomingCall.CallerID
	m.s.IncomingCall = nil
	m.stopTimerLocked()
	m.enterLocked(Connecting)
	gen := m.gen
	m.mu.Unlock()

	m.log.WithField("caller", caller).Info("accepting call")
	go m.initMedia(gen)

	if err := m.signaler.Send(signaling.AcceptCall{CallerID: caller}); err != nil {
		m.fail(gen, errTextSignaling, err, false)
		return fmt.Errorf("error sending accept: %w", err)
	}
	return nil
}

// RejectCall declines the ringing call and returns to idle
func (m *Machine) RejectCall() error {
	m.mu.Lock()
	if m.s.State != Ringing || m.s.IncomingCall == nil {
		m.mu.Unlock()
		return ErrNoIncomingCall
	}
	caller := m.s.IncomingCall.CallerID
	m.resetLocked()
	m.mu.Unlock()

	m.log.WithField("caller", caller).Info("rejecting call")
	if err := m.signaler.Send(signaling.RejectCall{CallerID: caller}); err != nil {
		return fmt.Errorf("error sending reject: %w", err)
	}
	return nil
}

// EndCall hangs up from any active state. It does nothing when no call is active.
func (m *Machine) EndCall() error {
	m.mu.Lock()
	if !m.s.State.Active() {
		m.mu.Unlock()
		return nil
	}
	target := m.s.TargetUserID
	m.endLocked(ReasonHangUp)
	m.mu.Unlock()

	m.log.WithField("target", target).Info("hanging up")
	err := m.signaler.Send(signaling.EndCall{TargetUserID: target})
	m.peer.Cleanup()
	if err != nil {
		return fmt.Errorf("error sending end-call: %w", err)
	}
	return nil
}

// Reset ends any active call and returns to idle with all call state cleared
func (m *Machine) Reset() {
	m.mu.Lock()
	prev := m.s
	m.resetLocked()
	m.mu.Unlock()

	var err error
	switch {
	case prev.State == Ringing && prev.IncomingCall != nil:
		err = m.signaler.Send(signaling.RejectCall{CallerID: prev.IncomingCall.CallerID})
	case prev.State.Active():
		err = m.signaler.Send(signaling.EndCall{TargetUserID: prev.TargetUserID})
	}
	if err != nil {
		m.log.Warnf("error notifying relay on reset: %v", err)
	}
	m.peer.Cleanup()
}

// ToggleMute flips the microphone without renegotiating
func (m *Machine) ToggleMute() error {
	muted, err := m.peer.ToggleMute()
	m.mu.Lock()
	m.s.IsMuted = muted
	m.publishLocked()
	m.mu.Unlock()
	return err
}

// ToggleCamera flips the camera without renegotiating
func (m *Machine) ToggleCamera() error {
	off, err := m.peer.ToggleCamera()
	m.mu.Lock()
	m.s.IsCameraOff = off
	m.publishLocked()
	m.mu.Unlock()
	return err
}

func (m *Machine) initMedia(gen uint64) {
	stream, err := m.peer.InitializeLocalMedia(m.ctx)

	m.mu.Lock()
	if gen != m.gen || !m.s.State.Active() {
		m.mu.Unlock()
		if err == nil {
			// the call ended while the devices were opening
			m.teardown(gen)
		}
		return
	}
	if err != nil {
		m.log.Errorf("error opening local media: %v", err)
		m.s.Error = errTextMedia
	} else {
		m.s.LocalStream = stream
	}
	m.publishLocked()
	m.mu.Unlock()
}

// fail ends the current call with an error shown to the user. notify also tells the relay,
// so the other party ends too.
func (m *Machine) fail(gen uint64, text string, cause error, notify bool) {
	m.mu.Lock()
	if gen != m.gen || !m.s.State.Active() {
		m.mu.Unlock()
		return
	}
	target := m.s.TargetUserID
	m.s.Error = text
	m.endLocked("")
	m.mu.Unlock()

	m.log.WithField("target", target).Errorf("call failed: %v", cause)
	if notify {
		if err := m.signaler.Send(signaling.EndCall{TargetUserID: target}); err != nil {
			m.log.Warnf("error sending end-call: %v", err)
		}
	}
	m.peer.Cleanup()
}

// teardown releases the peer resources of call gen, unless a newer call owns them
func (m *Machine) teardown(gen uint64) {
	m.mu.Lock()
	stale := gen != m.gen && m.s.State.Active()
	m.mu.Unlock()
	if !stale {
		m.peer.Cleanup()
	}
}

func (m *Machine) onNoAnswer(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.s.State != Calling {
		m.mu.Unlock()
		return
	}
	target := m.s.TargetUserID
	m.endLocked(ReasonNoAnswer)
	m.mu.Unlock()

	m.log.WithField("target", target).Info("no answer")
	if err := m.signaler.Send(signaling.EndCall{TargetUserID: target}); err != nil {
		m.log.Warnf("error sending end-call: %v", err)
	}
	m.peer.Cleanup()
}

func (m *Machine) onRingTimeout(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.s.State != Ringing || m.s.IncomingCall == nil {
		m.mu.Unlock()
		return
	}
	caller := m.s.IncomingCall.CallerID
	m.resetLocked()
	m.mu.Unlock()

	m.log.WithField("caller", caller).Info("stopped ringing")
	if err := m.signaler.Send(signaling.RejectCall{CallerID: caller}); err != nil {
		m.log.Warnf("error sending reject: %v", err)
	}
}

func failureText(err error) string {
	if errors.Is(err, peer.ErrMediaAccess) {
		return errTextMedia
	}
	return errTextNegotiation
}

// nextCallLocked starts a new generation; anything scheduled for an older one is ignored
func (m *Machine) nextCallLocked() uint64 {
	m.stopTimerLocked()
	m.stopTickerLocked()
	m.gen++
	return m.gen
}

func (m *Machine) enterLocked(state State) {
	if m.s.State != state {
		m.log.WithFields(logrus.Fields{"from": m.s.State, "to": state}).Debug("call state")
	}
	m.s.State = state
	switch state {
	case Calling:
		m.opts.Tones.PlayRingback()
	case Ringing:
		m.opts.Tones.PlayIncomingRing()
	default:
		m.opts.Tones.Stop()
	}
	m.publishLocked()
}

// endLocked moves an active call to ended. Peer cleanup is left to the caller, outside the lock.
func (m *Machine) endLocked(reason string) {
	m.stopTimerLocked()
	m.stopTickerLocked()
	m.s.IncomingCall = nil
	m.s.LocalStream = nil
	m.s.IsMuted, m.s.IsCameraOff = false, false
	if reason != "" {
		m.s.EndReason = reason
	}
	m.enterLocked(Ended)
}

func (m *Machine) resetLocked() {
	m.nextCallLocked()
	m.s = Snapshot{}
	m.enterLocked(Idle)
}

func (m *Machine) armLocked(d time.Duration, f func()) {
	m.stopTimerLocked()
	m.timer = time.AfterFunc(d, f)
}

func (m *Machine) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// startTickerLocked counts whole seconds of connected time
func (m *Machine) startTickerLocked(gen uint64) {
	m.stopTickerLocked()
	stop := make(chan struct{})
	m.stopTicker = stop
	m.connectedAt = time.Now()
	m.s.CallDuration = 0

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.mu.Lock()
				if gen == m.gen && m.s.State == Connected {
					m.s.CallDuration = int(time.Since(m.connectedAt) / time.Second)
					m.publishLocked()
				}
				m.mu.Unlock()
			}
		}
	}()
}

func (m *Machine) stopTickerLocked() {
	if m.stopTicker != nil {
		close(m.stopTicker)
		m.stopTicker = nil
	}
}

func (m *Machine) publishLocked() {
	for {
		select {
		case m.changes <- m.s:
			return
		default:
		}
		select {
		case <-m.changes:
		default:
		}
	}
}
