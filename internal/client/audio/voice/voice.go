// Package voice decodes the other party's Opus audio for playback.
package voice

import (
	"fmt"
	"sync"

	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
	"github.com/vibbin/vibbin/internal/client/audio"
	"gopkg.in/hraban/opus.v2"
)

// longest Opus frame is 120ms
const maxFrameSamples = 120 * audio.SampleRate / 1000 * audio.NumChannels

// Player decodes RTP Opus packets into a sink. Packets that fail to decode are dropped.
type Player struct {
	sink audio.Sink
	log  *logrus.Entry

	mu      sync.Mutex
	decoder *opus.Decoder
	pcm     []int16

	dropped int
}

func NewPlayer(sink audio.Sink) (*Player, error) {
	decoder, err := opus.NewDecoder(audio.SampleRate, audio.NumChannels)
	if err != nil {
		return nil, fmt.Errorf("error creating opus decoder: %w", err)
	}
	return &Player{
		sink:    sink,
		log:     logrus.WithField("component", "voice"),
		decoder: decoder,
		pcm:     make([]int16, maxFrameSamples),
	}, nil
}

// HandlePacket decodes one packet of the remote audio track and queues the PCM. When the sink is
// full the rest of the frame is lost rather than delaying the conversation.
func (p *Player) HandlePacket(pkt *rtp.Packet) {
	if len(pkt.Payload) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	n, err := p.decoder.Decode(pkt.Payload, p.pcm)
	if err != nil {
		p.dropped++
		p.log.WithField("seq", pkt.SequenceNumber).Debugf("dropping audio packet: %v", err)
		return
	}
	frame := p.pcm[:n*audio.NumChannels]
	if written := p.sink.Write(frame); written < len(frame) {
		p.log.Tracef("playback buffer full, lost %d samples", len(frame)-written)
	}
}

// Dropped returns how many packets could not be decoded
func (p *Player) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}
