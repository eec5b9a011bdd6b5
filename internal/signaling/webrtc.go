package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// NewOffer wraps a local offer for delivery to target.
func NewOffer(target string, sd webrtc.SessionDescription) (SendOffer, error) {
	raw, err := json.Marshal(sd)
	if err != nil {
		return SendOffer{}, fmt.Errorf("marshal offer: %w", err)
	}
	return SendOffer{TargetUserID: target, Offer: raw}, nil
}

// NewAnswer wraps a local answer for delivery to target.
func NewAnswer(target string, sd webrtc.SessionDescription) (SendAnswer, error) {
	raw, err := json.Marshal(sd)
	if err != nil {
		return SendAnswer{}, fmt.Errorf("marshal answer: %w", err)
	}
	return SendAnswer{TargetUserID: target, Answer: raw}, nil
}

// NewCandidate wraps a locally gathered ICE candidate for delivery to target.
func NewCandidate(target string, c webrtc.ICECandidateInit) (SendCandidate, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return SendCandidate{}, fmt.Errorf("marshal candidate: %w", err)
	}
	return SendCandidate{TargetUserID: target, Candidate: raw}, nil
}

func (m OfferRelay) Description() (webrtc.SessionDescription, error) {
	return parseDescription(m.Offer, webrtc.SDPTypeOffer)
}

func (m AnswerRelay) Description() (webrtc.SessionDescription, error) {
	return parseDescription(m.Answer, webrtc.SDPTypeAnswer)
}

func (m CandidateRelay) Init() (webrtc.ICECandidateInit, error) {
	var c webrtc.ICECandidateInit
	if err := json.Unmarshal(m.Candidate, &c); err != nil {
		return webrtc.ICECandidateInit{}, fmt.Errorf("unmarshal candidate: %w", err)
	}
	return c, nil
}

func parseDescription(raw json.RawMessage, want webrtc.SDPType) (webrtc.SessionDescription, error) {
	var sd webrtc.SessionDescription
	if err := json.Unmarshal(raw, &sd); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("unmarshal %s: %w", want, err)
	}
	if sd.Type != want {
		return webrtc.SessionDescription{}, fmt.Errorf("expected sdp type %s, got %s", want, sd.Type)
	}
	if sd.SDP == "" {
		return webrtc.SessionDescription{}, fmt.Errorf("empty %s", want)
	}
	return sd, nil
}
