package transport

import (
	"fmt"

	"github.com/pion/webrtc/v3"
)

type NegotiationState int

const (
	NegotiationStateNew NegotiationState = iota
	// local offer applied, waiting for the answer
	NegotiationStateLocalOffer
	// remote offer applied, waiting for the local answer
	NegotiationStateRemoteOffer
	NegotiationStateStable
)

func (n NegotiationState) String() string {
	switch n {
	case NegotiationStateNew:
		return "NEW"
	case NegotiationStateLocalOffer:
		return "LOCAL_OFFER"
	case NegotiationStateRemoteOffer:
		return "REMOTE_OFFER"
	case NegotiationStateStable:
		return "STABLE"
	default:
		return fmt.Sprintf("%d", int(n))
	}
}

// NextNegotiationState returns the state after applying a description of the given type.
// A local offer restarts the exchange, an answer from either side settles it.
func NextNegotiationState(current NegotiationState, sdpType webrtc.SDPType, local bool) NegotiationState {
	switch sdpType {
	case webrtc.SDPTypeOffer:
		if local {
			return NegotiationStateLocalOffer
		}
		return NegotiationStateRemoteOffer
	case webrtc.SDPTypeAnswer:
		return NegotiationStateStable
	case webrtc.SDPTypeRollback:
		return NegotiationStateNew
	default:
		return current
	}
}
