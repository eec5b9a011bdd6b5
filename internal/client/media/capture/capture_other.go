//go:build !linux || !cgo

package capture

import (
	"context"
	"errors"

	"github.com/pion/webrtc/v4"
	"github.com/vibbin/vibbin/internal/client/media"
)

// Devices is unavailable on this platform; every Open fails. Use media.Synthetic instead.
type Devices struct{}

func New() (*Devices, error) {
	return &Devices{}, nil
}

func (d *Devices) RegisterCodecs(m *webrtc.MediaEngine) error {
	return m.RegisterDefaultCodecs()
}

func (d *Devices) Open(context.Context, media.Constraints) (*media.LocalStream, error) {
	return nil, errors.Join(media.ErrNoDevice, errors.New("camera capture is only supported on linux"))
}
