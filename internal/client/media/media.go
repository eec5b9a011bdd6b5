// Package media models the local capture stream and the remote stream of a call.
package media

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
)

// ErrNoDevice is returned by Devices implementations when no usable capture device exists.
var ErrNoDevice = errors.New("no capture device")

// Constraints are the quality settings requested when opening capture devices
type Constraints struct {
	Width, Height int
	FrameRate     float32
	MaxFrameRate  float32

	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// DefaultConstraints favour a connection that succeeds over picture quality
func DefaultConstraints() Constraints {
	return Constraints{
		Width:            320,
		Height:           240,
		FrameRate:        15,
		MaxFrameRate:     20,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
	}
}

// Devices opens capture streams. RegisterCodecs fills a media engine with the codecs the opened
// tracks produce, so negotiation only offers what can actually be sent.
type Devices interface {
	Open(ctx context.Context, c Constraints) (*LocalStream, error)
	RegisterCodecs(m *webrtc.MediaEngine) error
}

// LocalTrack is one captured track. Disabling it detaches it from its RTP sender without
// renegotiating, so the m-line stays active and re-enabling resumes sending.
type LocalTrack struct {
	track   webrtc.TrackLocal
	enabled atomic.Bool

	mu     sync.Mutex
	sender *webrtc.RTPSender
}

func NewLocalTrack(track webrtc.TrackLocal) *LocalTrack {
	t := &LocalTrack{track: track}
	t.enabled.Store(true)
	return t
}

func (t *LocalTrack) Kind() webrtc.RTPCodecType { return t.track.Kind() }
func (t *LocalTrack) Track() webrtc.TrackLocal  { return t.track }
func (t *LocalTrack) Enabled() bool             { return t.enabled.Load() }

// Attach adds the track to pc, applying the current enabled flag
func (t *LocalTrack) Attach(pc *webrtc.PeerConnection) error {
	sender, err := pc.AddTrack(t.track)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.sender = sender
	t.mu.Unlock()

	if !t.Enabled() {
		return sender.ReplaceTrack(nil)
	}
	return nil
}

// Detach forgets the sender of a closed peer connection
func (t *LocalTrack) Detach() {
	t.mu.Lock()
	t.sender = nil
	t.mu.Unlock()
}

// SetEnabled flips the track on or off and applies it to the live sender, if any
func (t *LocalTrack) SetEnabled(enabled bool) error {
	t.enabled.Store(enabled)

	t.mu.Lock()
	sender := t.sender
	t.mu.Unlock()
	if sender == nil {
		return nil
	}
	if enabled {
		return sender.ReplaceTrack(t.track)
	}
	return sender.ReplaceTrack(nil)
}

// LocalStream is the capture stream of one call: at most one audio and one video track
type LocalStream struct {
	Audio *LocalTrack
	Video *LocalTrack

	stopOnce sync.Once
	stop     func()
}

// NewLocalStream wraps captured tracks. stop releases the underlying devices and may be nil.
func NewLocalStream(audio, video webrtc.TrackLocal, stop func()) *LocalStream {
	s := &LocalStream{stop: stop}
	if audio != nil {
		s.Audio = NewLocalTrack(audio)
	}
	if video != nil {
		s.Video = NewLocalTrack(video)
	}
	return s
}

// Tracks returns the non-nil tracks, audio first
func (s *LocalStream) Tracks() []*LocalTrack {
	var out []*LocalTrack
	if s.Audio != nil {
		out = append(out, s.Audio)
	}
	if s.Video != nil {
		out = append(out, s.Video)
	}
	return out
}

// Stop releases the capture devices; safe to call more than once
func (s *LocalStream) Stop() {
	s.stopOnce.Do(func() {
		for _, t := range s.Tracks() {
			t.Detach()
		}
		if s.stop != nil {
			s.stop()
		}
	})
}
