//go:build linux && cgo

package capture

import (
	"context"
	"fmt"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibbin/vibbin/internal/client/media"
)

// Devices captures VP8 video and Opus audio from the system's default devices
type Devices struct {
	selector *mediadevices.CodecSelector
}

func New() (*Devices, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("error creating vp8 params: %w", err)
	}
	vpxParams.BitRate = 500_000

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("error creating opus params: %w", err)
	}

	return &Devices{
		selector: mediadevices.NewCodecSelector(
			mediadevices.WithVideoEncoders(&vpxParams),
			mediadevices.WithAudioEncoders(&opusParams),
		),
	}, nil
}

func (d *Devices) RegisterCodecs(m *webrtc.MediaEngine) error {
	d.selector.Populate(m)
	return nil
}

// Open asks for camera and microphone together; a missing or busy device fails the whole call.
func (d *Devices) Open(_ context.Context, c media.Constraints) (*media.LocalStream, error) {
	if devices := mediadevices.EnumerateDevices(); len(devices) == 0 {
		return nil, media.ErrNoDevice
	}

	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Codec: d.selector,
		Video: func(mc *mediadevices.MediaTrackConstraints) {
			// MJPEG nodes on some cameras produce frames the VP8 encoder chokes on
			mc.FrameFormat = prop.FrameFormatOneOf{
				frame.FormatYUYV,
				frame.FormatI420,
				frame.FormatI444,
				frame.FormatRGBA,
			}
			mc.Width = prop.Int(c.Width)
			mc.Height = prop.Int(c.Height)
			mc.FrameRate = prop.FloatRanged{Ideal: c.FrameRate, Max: c.MaxFrameRate}
		},
		Audio: func(mc *mediadevices.MediaTrackConstraints) {
			mc.ChannelCount = prop.Int(1)
			mc.SampleRate = prop.Int(48000)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", media.ErrNoDevice, err)
	}
	if c.EchoCancellation || c.NoiseSuppression || c.AutoGainControl {
		logrus.Debug("audio processing is left to the capture device")
	}

	var audio, video webrtc.TrackLocal
	tracks := stream.GetTracks()
	for _, track := range tracks {
		track.OnEnded(func(err error) {
			if err != nil {
				logrus.WithField("kind", track.Kind()).Warnf("local track ended: %v", err)
			}
		})
		switch track.Kind() {
		case webrtc.RTPCodecTypeAudio:
			audio = track
		case webrtc.RTPCodecTypeVideo:
			video = track
		}
	}
	logrus.WithField("tracks", len(tracks)).Info("local media captured")

	return media.NewLocalStream(audio, video, func() {
		for _, t := range tracks {
			t.Close()
		}
	}), nil
}
