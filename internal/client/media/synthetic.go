package media

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// Synthetic provides capture tracks that are not backed by hardware. Samples written to the
// tracks by the owner are sent as-is; with no writer the tracks negotiate but stay silent.
// It serves machines without a camera or microphone, and tests.
type Synthetic struct {
	// OnOpen, if set, is called with the sample tracks of every opened stream
	OnOpen func(audio, video *webrtc.TrackLocalStaticSample)
}

func (s Synthetic) RegisterCodecs(m *webrtc.MediaEngine) error {
	return m.RegisterDefaultCodecs()
}

func (s Synthetic) Open(_ context.Context, _ Constraints) (*LocalStream, error) {
	streamId := "vibbin-" + uuid.NewString()

	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", streamId,
	)
	if err != nil {
		return nil, fmt.Errorf("error creating audio track: %w", err)
	}
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		"video", streamId,
	)
	if err != nil {
		return nil, fmt.Errorf("error creating video track: %w", err)
	}

	if s.OnOpen != nil {
		s.OnOpen(audio, video)
	}
	return NewLocalStream(audio, video, nil), nil
}
