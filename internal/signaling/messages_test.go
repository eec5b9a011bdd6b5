package signaling

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeClient_CallUser(t *testing.T) {
	msg, err := DecodeClient([]byte(`{"event":"call-user","data":{"targetUserId":"bob"}}`))
	require.NoError(t, err)
	assert.Equal(t, CallUser{TargetUserID: "bob"}, msg)
}

func TestDecodeClient_KeepsRelayPayloadVerbatim(t *testing.T) {
	raw := `{"event":"ice-candidate","data":{"targetUserId":"bob","candidate":{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host","sdpMid":"0","x-custom":true}}}`

	msg, err := DecodeClient([]byte(raw))
	require.NoError(t, err)

	c, ok := msg.(SendCandidate)
	require.True(t, ok, "got %T", msg)
	assert.JSONEq(t, `{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host","sdpMid":"0","x-custom":true}`, string(c.Candidate))
}

func TestDecodeClient_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown event":    `{"event":"join","data":{}}`,
		"missing event":    `{"data":{"targetUserId":"bob"}}`,
		"missing data":     `{"event":"call-user"}`,
		"missing target":   `{"event":"call-user","data":{}}`,
		"missing caller":   `{"event":"accept-call","data":{"callerId":""}}`,
		"null offer":       `{"event":"webrtc-offer","data":{"targetUserId":"bob","offer":null}}`,
		"server-only name": `{"event":"incoming-call","data":{"callerId":"a"}}`,
		"not json":         `call-user`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeClient([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestDecodeServer_UnknownEvent(t *testing.T) {
	_, err := DecodeServer([]byte(`{"event":"call-user","data":{"targetUserId":"bob"}}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownEvent))
}

func TestEncodeServer_CallEndedOmitsAbsentFields(t *testing.T) {
	raw, err := EncodeServer(CallEnded{EndedBy: "alice"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"call-ended","data":{"endedBy":"alice"}}`, string(raw))

	d := 12
	raw, err = EncodeServer(CallEnded{EndedBy: "alice", Duration: &d, Reason: "disconnect"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"call-ended","data":{"endedBy":"alice","duration":12,"reason":"disconnect"}}`, string(raw))
}

func TestOfferRoundTripThroughRelayShape(t *testing.T) {
	sd := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\n"}
	out, err := NewOffer("bob", sd)
	require.NoError(t, err)

	// the relay re-tags the untouched payload with the sender
	relayed := OfferRelay{CallerID: "alice", Offer: out.Offer}
	raw, err := EncodeServer(relayed)
	require.NoError(t, err)

	msg, err := DecodeServer(raw)
	require.NoError(t, err)
	got, err := msg.(OfferRelay).Description()
	require.NoError(t, err)
	assert.Equal(t, sd, got)
}

func TestAnswerRelay_RejectsWrongType(t *testing.T) {
	raw, err := json.Marshal(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\n"})
	require.NoError(t, err)

	_, err = AnswerRelay{AnswererID: "bob", Answer: raw}.Description()
	assert.Error(t, err)
}
