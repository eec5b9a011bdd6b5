package media

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
)

// RemoteTrackStats counts what arrived on one remote track
type RemoteTrackStats struct {
	Kind    webrtc.RTPCodecType
	Codec   string
	Packets uint64
	Bytes   uint64

	// RTP packets with the marker bit set; one per video frame
	Frames uint64
}

type remoteTrack struct {
	kind    webrtc.RTPCodecType
	codec   string
	packets atomic.Uint64
	bytes   atomic.Uint64
	frames  atomic.Uint64
}

// RemoteStream collects the tracks the other party sends. Each track is drained by its own
// goroutine until the peer connection closes.
type RemoteStream struct {
	mu     sync.Mutex
	tracks []*remoteTrack
	closed bool
	wg     sync.WaitGroup
}

func NewRemoteStream() *RemoteStream {
	return &RemoteStream{}
}

// Consume starts draining track. onPacket, when not nil, sees every packet after it is counted.
// Tracks handed over after Close are ignored.
func (s *RemoteStream) Consume(track *webrtc.TrackRemote, onPacket func(*rtp.Packet)) {
	rt := &remoteTrack{kind: track.Kind(), codec: track.Codec().MimeType}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.tracks = append(s.tracks, rt)

	s.wg.Go(func() {
		for {
			pkt, _, err := track.ReadRTP()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					logrus.WithField("kind", rt.kind).Debugf("remote track closed: %v", err)
				}
				return
			}
			rt.packets.Add(1)
			rt.bytes.Add(uint64(len(pkt.Payload)))
			if pkt.Marker {
				rt.frames.Add(1)
			}
			if onPacket != nil {
				onPacket(pkt)
			}
		}
	})
}

// Stats returns a snapshot of every consumed track, in arrival order
func (s *RemoteStream) Stats() []RemoteTrackStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RemoteTrackStats, 0, len(s.tracks))
	for _, t := range s.tracks {
		out = append(out, RemoteTrackStats{
			Kind:    t.kind,
			Codec:   t.codec,
			Packets: t.packets.Load(),
			Bytes:   t.bytes.Load(),
			Frames:  t.frames.Load(),
		})
	}
	return out
}

// Close stops accepting tracks and waits for every drain goroutine to return, so no onPacket
// callback runs afterwards. The peer connection must be closed first or this blocks.
func (s *RemoteStream) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}
