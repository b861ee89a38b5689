package transport

import (
	"testing"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/require"
)

func TestNextNegotiationState(t *testing.T) {
	state := NegotiationStateNew
	state = NextNegotiationState(state, webrtc.SDPTypeOffer, true)
	require.Equal(t, NegotiationStateLocalOffer, state)
	state = NextNegotiationState(state, webrtc.SDPTypeAnswer, false)
	require.Equal(t, NegotiationStateStable, state)

	state = NextNegotiationState(state, webrtc.SDPTypeOffer, false)
	require.Equal(t, NegotiationStateRemoteOffer, state)
	state = NextNegotiationState(state, webrtc.SDPTypeAnswer, true)
	require.Equal(t, NegotiationStateStable, state)

	require.Equal(t, NegotiationStateNew, NextNegotiationState(state, webrtc.SDPTypeRollback, true))
	require.Equal(t, NegotiationStateStable, NextNegotiationState(state, webrtc.SDPTypePranswer, true))
	require.Equal(t, "REMOTE_OFFER", NegotiationStateRemoteOffer.String())
}
