package internal_test

import (
	"context"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibbin/vibbin/internal/client/call"
	clientmedia "github.com/vibbin/vibbin/internal/client/media"
	"github.com/vibbin/vibbin/internal/client/peer"
	"github.com/vibbin/vibbin/internal/client/peer/peertest"
	"github.com/vibbin/vibbin/internal/client/transport"
)

func feed(ctx context.Context, audio, video *webrtc.TrackLocalStaticSample) {
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

// newClient signs name in and drives a call machine from its signaling socket
func newClient(ctx context.Context, t *testing.T, s *testServer, name string, api *webrtc.API) *call.Machine {
	t.Helper()
	conn, err := transport.Dial(ctx, s.creds(name))
	require.NoError(t, err)

	devices := clientmedia.Synthetic{OnOpen: func(audio, video *webrtc.TrackLocalStaticSample) {
		go feed(ctx, audio, video)
	}}
	mgr := peer.NewManager(peer.Config{API: api, Devices: devices, Signaler: conn})
	m := call.New(ctx, conn, mgr, call.Options{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = conn.Run(ctx, m.HandleMessage)
	}()
	t.Cleanup(func() {
		m.Reset()
		conn.Close()
		<-done
	})
	return m
}

func waitState(t *testing.T, m *call.Machine, want call.State) {
	t.Helper()
	require.Eventually(t, func() bool { return m.Snapshot().State == want }, 20*time.Second, 20*time.Millisecond,
		"still %s, want %s", m.Snapshot().State, want)
}

func TestEndToEnd_CallConnectsAndHangsUp(t *testing.T) {
	if testing.Short() {
		t.Skip("negotiates real peer connections")
	}
	ctx, cancel := context.WithTimeout(t.Context(), time.Minute)
	defer cancel()

	s := newTestServer(t, "alice", "bob")
	apis := peertest.VirtualAPIs(t, 2)
	alice := newClient(ctx, t, s, "alice", apis[0])
	bob := newClient(ctx, t, s, "bob", apis[1])
	require.Eventually(t, func() bool { return s.online("alice", "bob") }, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, alice.StartCall(s.ids["bob"], nil))
	waitState(t, bob, call.Ringing)
	incoming := bob.Snapshot().IncomingCall
	require.NotNil(t, incoming)
	assert.Equal(t, "alice", incoming.CallerInfo.Username)

	require.NoError(t, bob.AcceptCall())
	waitState(t, alice, call.Connected)
	waitState(t, bob, call.Connected)

	require.Eventually(t, func() bool {
		rs := bob.Snapshot().RemoteStream
		if rs == nil {
			return false
		}
		for _, st := range rs.Stats() {
			if st.Packets > 0 {
				return true
			}
		}
		return false
	}, 10*time.Second, 50*time.Millisecond)

	// let the relay's clock pass a whole second
	time.Sleep(1100 * time.Millisecond)

	require.NoError(t, alice.EndCall())
	assert.Equal(t, call.ReasonHangUp, alice.Snapshot().EndReason)
	waitState(t, bob, call.Ended)
	assert.GreaterOrEqual(t, bob.Snapshot().CallDuration, 1)

	require.Eventually(t, func() bool {
		history, err := transport.GetCallHistory(ctx, transport.NewClient(s.creds("alice")))
		return err == nil && len(history) == 1 && history[0].Status == "ENDED"
	}, 5*time.Second, 50*time.Millisecond)

	history, err := transport.GetCallHistory(ctx, transport.NewClient(s.creds("bob")))
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "alice", history[0].Caller.Username)
	assert.Equal(t, "bob", history[0].Receiver.Username)
	require.NotNil(t, history[0].Duration)
	assert.GreaterOrEqual(t, *history[0].Duration, int64(1))
}

func TestEndToEnd_RejectedCall(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	defer cancel()

	s := newTestServer(t, "alice", "bob")
	apis := peertest.VirtualAPIs(t, 2)
	alice := newClient(ctx, t, s, "alice", apis[0])
	bob := newClient(ctx, t, s, "bob", apis[1])
	require.Eventually(t, func() bool { return s.online("alice", "bob") }, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, alice.StartCall(s.ids["bob"], nil))
	waitState(t, bob, call.Ringing)
	require.NoError(t, bob.RejectCall())
	assert.Equal(t, call.Idle, bob.Snapshot().State)

	waitState(t, alice, call.Ended)
	assert.Equal(t, "Call was rejected", alice.Snapshot().Error)

	require.Eventually(t, func() bool {
		history, err := transport.GetCallHistory(ctx, transport.NewClient(s.creds("alice")))
		return err == nil && len(history) == 1 && history[0].Status == "REJECTED" && history[0].Duration == nil
	}, 5*time.Second, 50*time.Millisecond)
}
