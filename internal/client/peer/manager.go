// Package peer owns the client's single WebRTC session and its local capture stream.
package peer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibbin/vibbin/internal/client/media"
	"github.com/vibbin/vibbin/internal/signaling"
)

var (
	// ErrMediaAccess wraps any failure to open the local camera or microphone
	ErrMediaAccess = errors.New("media access failed")

	// ErrNegotiation wraps offer/answer creation, description and candidate failures
	ErrNegotiation = errors.New("negotiation failed")

	// ErrNoSession is returned when an answer arrives without an outstanding offer
	ErrNoSession = errors.New("no peer connection")
)

// Signaler carries negotiation messages to the relay
type Signaler interface {
	Send(signaling.ClientMessage) error
}

type Config struct {
	API           *webrtc.API
	Configuration webrtc.Configuration
	Devices       media.Devices
	Constraints   media.Constraints
	Signaler      Signaler

	// OnRemoteAudio, if set, sees every packet of the remote audio track on the track's
	// drain goroutine. It is never called once Cleanup has returned.
	OnRemoteAudio func(*rtp.Packet)
}

// session is one peer connection and everything tied to its lifetime
type session struct {
	pc     *webrtc.PeerConnection
	target string
	remote *media.RemoteStream

	// candidates received before the remote description was committed, in arrival order
	remoteSet bool
	pending   []webrtc.ICECandidateInit

	closed       atomic.Bool
	remoteOnce   sync.Once
	keyframeOnce sync.Once
}

// Manager holds at most one peer connection and one local stream. A new session replaces
// the previous one only after closing it.
type Manager struct {
	cfg Config
	log *logrus.Entry

	mu    sync.Mutex
	local *media.LocalStream
	sess  *session

	// candidates that arrive before any session exists
	pending []webrtc.ICECandidateInit

	onState  atomic.Pointer[func(webrtc.PeerConnectionState)]
	onRemote atomic.Pointer[func(*media.RemoteStream)]

	// applies a remote candidate; replaced in tests
	applyCandidate func(*webrtc.PeerConnection, webrtc.ICECandidateInit) error
}

func NewManager(cfg Config) *Manager {
	if cfg.Constraints == (media.Constraints{}) {
		cfg.Constraints = media.DefaultConstraints()
	}
	return &Manager{
		cfg: cfg,
		log: logrus.WithField("component", "peer"),
		applyCandidate: func(pc *webrtc.PeerConnection, c webrtc.ICECandidateInit) error {
			return pc.AddICECandidate(c)
		},
	}
}

// SetHandlers registers the callbacks fired by the underlying connection. Either may be nil.
// They run on pion's goroutines and must not call back into the Manager synchronously
// while holding their own locks.
func (m *Manager) SetHandlers(onState func(webrtc.PeerConnectionState), onRemote func(*media.RemoteStream)) {
	m.onState.Store(&onState)
	m.onRemote.Store(&onRemote)
}

// InitializeLocalMedia opens the capture devices once and returns the same stream afterwards
func (m *Manager) InitializeLocalMedia(ctx context.Context) (*media.LocalStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initLocalLocked(ctx)
}

func (m *Manager) initLocalLocked(ctx context.Context) (*media.LocalStream, error) {
	if m.local != nil {
		return m.local, nil
	}
	stream, err := m.cfg.Devices.Open(ctx, m.cfg.Constraints)
	if err != nil {
		m.log.Errorf("error opening local media: %v", err)
		return nil, fmt.Errorf("%w: %w", ErrMediaAccess, err)
	}
	m.local = stream
	return stream, nil
}

// CreateOffer starts a new session towards target, commits a local offer and sends it.
// Candidates are sent to target as they are gathered.
func (m *Manager) CreateOffer(ctx context.Context, target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.newSessionLocked(ctx, target)
	if err != nil {
		return err
	}

	offer, err := sess.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("%w: create offer: %w", ErrNegotiation, err)
	}
	if err = sess.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("%w: set local description: %w", ErrNegotiation, err)
	}

	msg, err := signaling.NewOffer(target, offer)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNegotiation, err)
	}
	if err = m.cfg.Signaler.Send(msg); err != nil {
		return fmt.Errorf("error sending offer: %w", err)
	}
	m.log.WithField("target", target).Debug("offer sent")
	return nil
}

// HandleOffer starts a new session for an offer from the caller and answers it
func (m *Manager) HandleOffer(ctx context.Context, offer webrtc.SessionDescription, from string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.newSessionLocked(ctx, from)
	if err != nil {
		return err
	}
	if err = m.setRemoteLocked(sess, offer); err != nil {
		return err
	}

	answer, err := sess.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("%w: create answer: %w", ErrNegotiation, err)
	}
	if err = sess.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("%w: set local description: %w", ErrNegotiation, err)
	}

	msg, err := signaling.NewAnswer(from, answer)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNegotiation, err)
	}
	if err = m.cfg.Signaler.Send(msg); err != nil {
		return fmt.Errorf("error sending answer: %w", err)
	}
	m.log.WithField("target", from).Debug("answer sent")
	return nil
}

// HandleAnswer commits the callee's answer on the outstanding session
func (m *Manager) HandleAnswer(answer webrtc.SessionDescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil {
		return ErrNoSession
	}
	return m.setRemoteLocked(m.sess, answer)
}

// HandleICECandidate applies c if the remote description is committed, otherwise queues it
func (m *Manager) HandleICECandidate(c webrtc.ICECandidateInit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.sess == nil:
		m.pending = append(m.pending, c)
	case !m.sess.remoteSet:
		m.sess.pending = append(m.sess.pending, c)
	default:
		if err := m.applyCandidate(m.sess.pc, c); err != nil {
			return fmt.Errorf("%w: add candidate: %w", ErrNegotiation, err)
		}
	}
	return nil
}

func (m *Manager) setRemoteLocked(sess *session, sd webrtc.SessionDescription) error {
	if err := sess.pc.SetRemoteDescription(sd); err != nil {
		return fmt.Errorf("%w: set remote description: %w", ErrNegotiation, err)
	}
	sess.remoteSet = true

	queued := sess.pending
	sess.pending = nil
	for _, c := range queued {
		if err := m.applyCandidate(sess.pc, c); err != nil {
			return fmt.Errorf("%w: add queued candidate: %w", ErrNegotiation, err)
		}
	}
	if len(queued) > 0 {
		m.log.Debugf("applied %d queued candidates", len(queued))
	}
	return nil
}

// newSessionLocked closes any previous session and builds a peer connection with the local
// tracks attached. Candidates queued before the session existed move onto it.
func (m *Manager) newSessionLocked(ctx context.Context, target string) (*session, error) {
	local, err := m.initLocalLocked(ctx)
	if err != nil {
		return nil, err
	}
	m.closeSessionLocked()

	pc, err := m.cfg.API.NewPeerConnection(m.cfg.Configuration)
	if err != nil {
		return nil, fmt.Errorf("%w: error creating peer connection: %w", ErrNegotiation, err)
	}
	sess := &session{
		pc:      pc,
		target:  target,
		remote:  media.NewRemoteStream(),
		pending: m.pending,
	}
	m.pending = nil

	for _, track := range local.Tracks() {
		if err = track.Attach(pc); err != nil {
			closePC(pc)
			return nil, fmt.Errorf("%w: error adding %s track: %w", ErrNegotiation, track.Kind(), err)
		}
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		m.onICECandidate(sess, c)
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		m.onConnectionStateChange(sess, state)
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		m.onTrack(sess, track)
	})

	m.sess = sess
	return sess, nil
}

// ToggleMute flips the microphone and returns whether it is now muted.
// Without a local stream it does nothing.
func (m *Manager) ToggleMute() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.local == nil || m.local.Audio == nil {
		return false, nil
	}
	enabled := !m.local.Audio.Enabled()
	if err := m.local.Audio.SetEnabled(enabled); err != nil {
		return !enabled, fmt.Errorf("error toggling microphone: %w", err)
	}
	return !enabled, nil
}

// ToggleCamera flips the camera and returns whether it is now off
func (m *Manager) ToggleCamera() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.local == nil || m.local.Video == nil {
		return false, nil
	}
	enabled := !m.local.Video.Enabled()
	if err := m.local.Video.SetEnabled(enabled); err != nil {
		return !enabled, fmt.Errorf("error toggling camera: %w", err)
	}
	return !enabled, nil
}

// LocalStream returns the open capture stream, or nil
func (m *Manager) LocalStream() *media.LocalStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.local
}

// RemoteStream returns the current session's remote stream, or nil
func (m *Manager) RemoteStream() *media.RemoteStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil
	}
	return m.sess.remote
}

// Cleanup closes the session and the capture stream and drops queued candidates.
// It is a no-op when nothing is active.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeSessionLocked()
	if m.local != nil {
		m.local.Stop()
		m.local = nil
	}
	m.pending = nil
}

func (m *Manager) closeSessionLocked() {
	sess := m.sess
	if sess == nil {
		return
	}
	m.sess = nil

	// handlers go first so nothing fires into a closed session
	sess.closed.Store(true)
	sess.pc.OnICECandidate(func(*webrtc.ICECandidate) {})
	sess.pc.OnConnectionStateChange(func(webrtc.PeerConnectionState) {})
	sess.pc.OnTrack(func(*webrtc.TrackRemote, *webrtc.RTPReceiver) {})
	sess.pending = nil

	if m.local != nil {
		for _, track := range m.local.Tracks() {
			track.Detach()
		}
	}
	closePC(sess.pc)
	sess.remote.Close()
	m.log.WithField("target", sess.target).Debug("peer connection closed")
}

func closePC(pc *webrtc.PeerConnection) {
	if err := pc.Close(); err != nil {
		logrus.Warnf("cannot close peer connection: %v", err)
	}
}
