package peer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clientmedia "github.com/vibbin/vibbin/internal/client/media"
	"github.com/vibbin/vibbin/internal/client/peer/peertest"
	"github.com/vibbin/vibbin/internal/signaling"
)

type recorder struct {
	mu   sync.Mutex
	sent []signaling.ClientMessage
}

func (r *recorder) Send(msg signaling.ClientMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recorder) offer(t *testing.T) webrtc.SessionDescription {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range r.sent {
		if o, ok := msg.(signaling.SendOffer); ok {
			sd, err := signaling.OfferRelay{Offer: o.Offer}.Description()
			require.NoError(t, err)
			return sd
		}
	}
	t.Fatal("no offer sent")
	return webrtc.SessionDescription{}
}

type failingDevices struct{}

func (failingDevices) Open(context.Context, clientmedia.Constraints) (*clientmedia.LocalStream, error) {
	return nil, clientmedia.ErrNoDevice
}

func (failingDevices) RegisterCodecs(m *webrtc.MediaEngine) error {
	return m.RegisterDefaultCodecs()
}

func candidate(n string) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: "candidate:" + n}
}

// answerFrom builds an answer to offer on a plain peer connection
func answerFrom(t *testing.T, api *webrtc.API, offer webrtc.SessionDescription) webrtc.SessionDescription {
	t.Helper()
	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })

	require.NoError(t, pc.SetRemoteDescription(offer))
	answer, err := pc.CreateAnswer(nil)
	require.NoError(t, err)
	require.NoError(t, pc.SetLocalDescription(answer))
	return answer
}

func TestManager_QueuesCandidatesUntilRemoteDescription(t *testing.T) {
	apis := peertest.VirtualAPIs(t, 2)
	sig := &recorder{}
	m := NewManager(Config{API: apis[0], Devices: clientmedia.Synthetic{}, Signaler: sig})
	t.Cleanup(m.Cleanup)

	var applied []string
	m.applyCandidate = func(_ *webrtc.PeerConnection, c webrtc.ICECandidateInit) error {
		applied = append(applied, c.Candidate)
		return nil
	}

	// before any session exists
	require.NoError(t, m.HandleICECandidate(candidate("1")))
	require.NoError(t, m.HandleICECandidate(candidate("2")))

	require.NoError(t, m.CreateOffer(t.Context(), "bob"))

	// session exists, remote description does not
	require.NoError(t, m.HandleICECandidate(candidate("3")))
	assert.Empty(t, applied)

	require.NoError(t, m.HandleAnswer(answerFrom(t, apis[1], sig.offer(t))))
	assert.Equal(t, []string{"candidate:1", "candidate:2", "candidate:3"}, applied)

	require.NoError(t, m.HandleICECandidate(candidate("4")))
	assert.Equal(t, []string{"candidate:1", "candidate:2", "candidate:3", "candidate:4"}, applied)
}

func TestManager_CandidateFailureIsNegotiationError(t *testing.T) {
	apis := peertest.VirtualAPIs(t, 2)
	sig := &recorder{}
	m := NewManager(Config{API: apis[0], Devices: clientmedia.Synthetic{}, Signaler: sig})
	t.Cleanup(m.Cleanup)
	m.applyCandidate = func(*webrtc.PeerConnection, webrtc.ICECandidateInit) error {
		return errors.New("bad candidate")
	}

	require.NoError(t, m.CreateOffer(t.Context(), "bob"))
	require.NoError(t, m.HandleICECandidate(candidate("1")))

	err := m.HandleAnswer(answerFrom(t, apis[1], sig.offer(t)))
	assert.ErrorIs(t, err, ErrNegotiation)
}

func TestManager_CleanupIsIdempotent(t *testing.T) {
	apis := peertest.VirtualAPIs(t, 1)
	m := NewManager(Config{API: apis[0], Devices: clientmedia.Synthetic{}, Signaler: &recorder{}})

	m.Cleanup()

	require.NoError(t, m.HandleICECandidate(candidate("early")))
	require.NoError(t, m.CreateOffer(t.Context(), "bob"))
	require.NotNil(t, m.LocalStream())
	require.NotNil(t, m.RemoteStream())

	muted, err := m.ToggleMute()
	require.NoError(t, err)
	assert.True(t, muted)

	m.Cleanup()
	m.Cleanup()

	assert.Nil(t, m.LocalStream())
	assert.Nil(t, m.RemoteStream())
	assert.Empty(t, m.pending)
	assert.ErrorIs(t, m.HandleAnswer(webrtc.SessionDescription{}), ErrNoSession)

	// a fresh stream starts unmuted
	local, err := m.InitializeLocalMedia(t.Context())
	require.NoError(t, err)
	assert.True(t, local.Audio.Enabled())
	m.Cleanup()
}

func TestManager_InitializeLocalMediaIsIdempotent(t *testing.T) {
	apis := peertest.VirtualAPIs(t, 1)
	opened := 0
	devices := clientmedia.Synthetic{OnOpen: func(_, _ *webrtc.TrackLocalStaticSample) { opened++ }}
	m := NewManager(Config{API: apis[0], Devices: devices, Signaler: &recorder{}})
	t.Cleanup(m.Cleanup)

	first, err := m.InitializeLocalMedia(t.Context())
	require.NoError(t, err)
	second, err := m.InitializeLocalMedia(t.Context())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, opened)
}

func TestManager_MediaAccessDenied(t *testing.T) {
	apis := peertest.VirtualAPIs(t, 1)
	sig := &recorder{}
	m := NewManager(Config{API: apis[0], Devices: failingDevices{}, Signaler: sig})

	err := m.CreateOffer(t.Context(), "bob")
	require.ErrorIs(t, err, ErrMediaAccess)
	assert.ErrorIs(t, err, clientmedia.ErrNoDevice)
	assert.Empty(t, sig.sent)

	muted, err := m.ToggleMute()
	require.NoError(t, err)
	assert.False(t, muted)
}

// pump delivers one side's negotiation messages to the other manager, in order
func pump(ctx context.Context, ch <-chan signaling.ClientMessage, to *Manager, from string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-ch:
			var err error
			switch msg := msg.(type) {
			case signaling.SendOffer:
				var sd webrtc.SessionDescription
				if sd, err = (signaling.OfferRelay{Offer: msg.Offer}).Description(); err == nil {
					err = to.HandleOffer(ctx, sd, from)
				}
			case signaling.SendAnswer:
				var sd webrtc.SessionDescription
				if sd, err = (signaling.AnswerRelay{Answer: msg.Answer}).Description(); err == nil {
					err = to.HandleAnswer(sd)
				}
			case signaling.SendCandidate:
				var c webrtc.ICECandidateInit
				if c, err = (signaling.CandidateRelay{Candidate: msg.Candidate}).Init(); err == nil {
					err = to.HandleICECandidate(c)
				}
			}
			if err != nil {
				return err
			}
		}
	}
}

type chanSignaler chan signaling.ClientMessage

func (c chanSignaler) Send(msg signaling.ClientMessage) error {
	c <- msg
	return nil
}

// writeSamples feeds both synthetic tracks until ctx ends
func writeSamples(ctx context.Context, audio, video *webrtc.TrackLocalStaticSample) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = audio.WriteSample(media.Sample{Data: []byte{0xf8, 0xff, 0xfe}, Duration: 20 * time.Millisecond})
			_ = video.WriteSample(media.Sample{Data: []byte{0x10, 0x02, 0x00, 0x9d, 0x01, 0x2a}, Duration: 20 * time.Millisecond})
		}
	}
}

type endpoint struct {
	mgr       *Manager
	out       chanSignaler
	connected chan struct{}
	remote    chan *clientmedia.RemoteStream
	audio     atomic.Int64
}

func newEndpoint(ctx context.Context, api *webrtc.API) *endpoint {
	e := &endpoint{
		out:       make(chanSignaler, 64),
		connected: make(chan struct{}, 1),
		remote:    make(chan *clientmedia.RemoteStream, 1),
	}
	devices := clientmedia.Synthetic{OnOpen: func(audio, video *webrtc.TrackLocalStaticSample) {
		go writeSamples(ctx, audio, video)
	}}
	e.mgr = NewManager(Config{
		API:           api,
		Devices:       devices,
		Signaler:      e.out,
		OnRemoteAudio: func(*rtp.Packet) { e.audio.Add(1) },
	})
	e.mgr.SetHandlers(
		func(s webrtc.PeerConnectionState) {
			if s == webrtc.PeerConnectionStateConnected {
				select {
				case e.connected <- struct{}{}:
				default:
				}
			}
		},
		func(rs *clientmedia.RemoteStream) { e.remote <- rs },
	)
	return e
}

func TestManager_NegotiatesOverVirtualNetwork(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Second)
	defer cancel()

	apis := peertest.VirtualAPIs(t, 2)
	alice := newEndpoint(ctx, apis[0])
	bob := newEndpoint(ctx, apis[1])
	t.Cleanup(alice.mgr.Cleanup)
	t.Cleanup(bob.mgr.Cleanup)

	errs := make(chan error, 2)
	go func() { errs <- pump(ctx, alice.out, bob.mgr, "alice") }()
	go func() { errs <- pump(ctx, bob.out, alice.mgr, "bob") }()

	require.NoError(t, alice.mgr.CreateOffer(ctx, "bob"))

	for _, e := range []*endpoint{alice, bob} {
		select {
		case <-e.connected:
		case err := <-errs:
			t.Fatalf("signaling failed: %v", err)
		case <-ctx.Done():
			t.Fatal("timed out waiting for connection")
		}
	}

	var remote *clientmedia.RemoteStream
	select {
	case remote = <-bob.remote:
	case <-ctx.Done():
		t.Fatal("timed out waiting for remote stream")
	}

	assert.Eventually(t, func() bool {
		for _, s := range remote.Stats() {
			if s.Packets > 0 {
				return true
			}
		}
		return false
	}, 10*time.Second, 50*time.Millisecond)
	assert.Eventually(t, func() bool { return bob.audio.Load() > 0 }, 10*time.Second, 50*time.Millisecond)

	muted, err := alice.mgr.ToggleMute()
	require.NoError(t, err)
	assert.True(t, muted)
	off, err := alice.mgr.ToggleCamera()
	require.NoError(t, err)
	assert.True(t, off)
	assert.False(t, alice.mgr.LocalStream().Video.Enabled())

	// cleanup waits out the drain goroutines, so audio callbacks have stopped for good
	muted, err = alice.mgr.ToggleMute()
	require.NoError(t, err)
	require.False(t, muted)
	bob.mgr.Cleanup()
	heard := bob.audio.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, heard, bob.audio.Load())
}
