// Package speaker plays PCM through the default output device with miniaudio.
package speaker

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/sirupsen/logrus"
	"github.com/vibbin/vibbin/internal/client/audio"
)

// 100ms of queued audio keeps a stopped cue from lingering
const bufferSamples = audio.SampleRate / 10

// Speaker is an audio.Sink backed by a playback device. The device pulls from a ring buffer
// and plays silence when it runs dry.
type Speaker struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	buffer *audio.RingBuffer

	// cues and the remote voice both write; the ring takes one producer
	writeMu sync.Mutex
}

var _ audio.Sink = (*Speaker)(nil)

// Open starts the default playback device
func Open() (*Speaker, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		logrus.WithField("component", "miniaudio").Trace(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("error initializing audio context: %w", err)
	}

	s := &Speaker{
		ctx:    ctx,
		buffer: audio.NewRingBuffer(bufferSamples),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = audio.NumChannels
	deviceConfig.SampleRate = audio.SampleRate
	deviceConfig.Alsa.NoMMap = 1

	// fires every few ms from the device thread
	onSendFrames := func(pOutputSample, _ []byte, _ uint32) {
		n := s.buffer.Read(pOutputSample)
		clear(pOutputSample[n*2:])
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSendFrames,
	})
	if err != nil {
		s.freeContext()
		return nil, fmt.Errorf("error initializing playback device: %w", err)
	}
	s.device = device

	if err = device.Start(); err != nil {
		s.Close()
		return nil, fmt.Errorf("error starting playback device: %w", err)
	}
	return s, nil
}

// Write queues samples for playback. Safe for concurrent use.
func (s *Speaker) Write(pcm []int16) int {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.buffer.Write(pcm)
}

// Close stops the device and releases the audio context
func (s *Speaker) Close() {
	if s.device != nil {
		s.device.Uninit()
		s.device = nil
	}
	s.freeContext()
}

func (s *Speaker) freeContext() {
	if s.ctx == nil {
		return
	}
	if err := s.ctx.Uninit(); err != nil {
		logrus.Warnf("error uninitializing playback device context: %v", err)
	}
	s.ctx.Free()
	s.ctx = nil
}
