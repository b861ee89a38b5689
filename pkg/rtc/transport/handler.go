// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"errors"

	"github.com/pion/webrtc/v3"

	"github.com/livekit/rtc-session/pkg/rtc/types"
)

var (
	ErrNoICECandidateHandler = errors.New("no ICE candidate handler")
)

// Handler receives engine events for one leg. Calls are made from the transport's
// event queue, one at a time, never from the engine's callback goroutine.
type Handler interface {
	OnICECandidate(c *webrtc.ICECandidateInit, target types.PeerType) error
	OnTrack(track types.MediaTrack)
	OnRenegotiationNeeded()
	OnConnectionStateChange(state webrtc.PeerConnectionState)
	OnICEConnectionStateChange(state webrtc.ICEConnectionState)
	OnNegotiationStateChanged(state NegotiationState)
	OnFailed()
}

type UnimplementedHandler struct{}

func (h UnimplementedHandler) OnICECandidate(c *webrtc.ICECandidateInit, target types.PeerType) error {
	return ErrNoICECandidateHandler
}
func (h UnimplementedHandler) OnTrack(track types.MediaTrack)                             {}
func (h UnimplementedHandler) OnRenegotiationNeeded()                                     {}
func (h UnimplementedHandler) OnConnectionStateChange(state webrtc.PeerConnectionState)   {}
func (h UnimplementedHandler) OnICEConnectionStateChange(state webrtc.ICEConnectionState) {}
func (h UnimplementedHandler) OnNegotiationStateChanged(state NegotiationState)           {}
func (h UnimplementedHandler) OnFailed()                                                  {}
