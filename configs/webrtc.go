package configs

import (
	"fmt"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/vibbin/vibbin/internal/logging"
)

// NewAPI creates the pion API every peer connection of this process is built from.
// registerCodecs fills the media engine, defaulting to pion's codec set when nil.
// tweaks run against the setting engine before the API is built, e.g. to set a virtual network.
func NewAPI(registerCodecs func(*webrtc.MediaEngine) error, tweaks ...func(*webrtc.SettingEngine)) (*webrtc.API, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if registerCodecs == nil {
		registerCodecs = (*webrtc.MediaEngine).RegisterDefaultCodecs
	}
	if err := registerCodecs(mediaEngine); err != nil {
		return nil, fmt.Errorf("error registering codecs: %w", err)
	}

	// NACKs, RTCP reports and TWCC
	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, fmt.Errorf("error registering interceptors: %w", err)
	}

	settingEngine := webrtc.SettingEngine{
		LoggerFactory: logging.NewPionFactory(),
	}
	// prevents packet size overruns on some networks
	settingEngine.SetReceiveMTU(3_000)
	for _, tweak := range tweaks {
		tweak(&settingEngine)
	}

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
		webrtc.WithSettingEngine(settingEngine),
	), nil
}
