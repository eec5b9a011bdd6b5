// Package peertest builds pion APIs on a virtual network for tests.
package peertest

import (
	"fmt"
	"testing"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/vnet"
	"github.com/pion/webrtc/v4"
	"github.com/vibbin/vibbin/configs"
)

const cidr = "10.0.0.0/24"

// VirtualAPIs returns n APIs whose peer connections share one virtual router,
// so ICE only ever sees host candidates on 10.0.0.0/24.
func VirtualAPIs(t testing.TB, n int) []*webrtc.API {
	t.Helper()

	router, err := vnet.NewRouter(&vnet.RouterConfig{
		CIDR:          cidr,
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	apis := make([]*webrtc.API, 0, n)
	for i := range n {
		ip := fmt.Sprintf("10.0.0.%d", i+1)
		network, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{ip}})
		if err != nil {
			t.Fatalf("new net %s: %v", ip, err)
		}
		if err = router.AddNet(network); err != nil {
			t.Fatalf("add net %s: %v", ip, err)
		}

		api, err := configs.NewAPI(nil, func(se *webrtc.SettingEngine) {
			se.SetNet(network)
		})
		if err != nil {
			t.Fatalf("new api %s: %v", ip, err)
		}
		apis = append(apis, api)
	}

	if err = router.Start(); err != nil {
		t.Fatalf("start router: %v", err)
	}
	t.Cleanup(func() {
		_ = router.Stop()
	})
	return apis
}
