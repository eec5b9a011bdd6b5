// Package capture opens the camera and microphone through pion/mediadevices.
package capture

import (
	"github.com/vibbin/vibbin/internal/client/media"
)

var _ media.Devices = (*Devices)(nil)
