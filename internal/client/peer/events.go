package peer

import (
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibbin/vibbin/internal/signaling"
)

// how often a keyframe is requested until the first remote video frame arrives
const keyframeInterval = time.Second

// onICECandidate trickles each gathered candidate to the other party
func (m *Manager) onICECandidate(sess *session, c *webrtc.ICECandidate) {
	if c == nil {
		m.log.Debug("candidate gathering complete")
		return
	}
	if sess.closed.Load() {
		return
	}
	m.log.Tracef("ICE candidate gathered: %s", c.Address)

	msg, err := signaling.NewCandidate(sess.target, c.ToJSON())
	if err != nil {
		m.log.Errorf("error encoding candidate: %v", err)
		return
	}
	if err = m.cfg.Signaler.Send(msg); err != nil {
		m.log.Warnf("error sending candidate: %v", err)
	}
}

func (m *Manager) onConnectionStateChange(sess *session, state webrtc.PeerConnectionState) {
	if sess.closed.Load() {
		return
	}
	m.log.WithFields(logrus.Fields{
		"target": sess.target,
		"state":  state.String(),
	}).Info("peer connection state changed")

	if h := m.onState.Load(); h != nil && *h != nil {
		(*h)(state)
	}
}

func (m *Manager) onTrack(sess *session, track *webrtc.TrackRemote) {
	if sess.closed.Load() {
		return
	}
	m.log.WithFields(logrus.Fields{
		"kind":  track.Kind().String(),
		"codec": track.Codec().MimeType,
	}).Info("remote track started")

	if track.Kind() != webrtc.RTPCodecTypeVideo {
		sess.remote.Consume(track, m.cfg.OnRemoteAudio)
	} else {
		// ask for a keyframe until one full frame has arrived
		gotFrame := make(chan struct{})
		sess.remote.Consume(track, func(pkt *rtp.Packet) {
			if pkt.Marker {
				sess.keyframeOnce.Do(func() { close(gotFrame) })
			}
		})
		go requestKeyframes(sess, uint32(track.SSRC()), gotFrame)
	}

	sess.remoteOnce.Do(func() {
		if h := m.onRemote.Load(); h != nil && *h != nil {
			(*h)(sess.remote)
		}
	})
}

func requestKeyframes(sess *session, ssrc uint32, gotFrame <-chan struct{}) {
	ticker := time.NewTicker(keyframeInterval)
	defer ticker.Stop()
	for {
		if sess.closed.Load() {
			return
		}
		err := sess.pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: ssrc}})
		if err != nil {
			logrus.Debugf("error sending keyframe request: %v", err)
			return
		}
		select {
		case <-gotFrame:
			return
		case <-ticker.C:
		}
	}
}
