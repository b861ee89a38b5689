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

package types

import (
	"context"

	"github.com/pion/webrtc/v3"
)

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

type TrackState int

const (
	TrackStateLive TrackState = iota
	TrackStateEnded
)

func (s TrackState) String() string {
	if s == TrackStateEnded {
		return "ENDED"
	}
	return "LIVE"
}

// MediaTrack is a local or remote media track owned by the native engine.
type MediaTrack interface {
	ID() string
	Kind() webrtc.RTPCodecType
	StreamID() string
	Enabled() bool
	SetEnabled(enabled bool) error
	State() TrackState
	IsDisposed() bool
	Dispose() error
	Stop() error
	// Clone returns a new track fed by the same source
	Clone() (MediaTrack, error)
}

type SendParameters struct {
	Encodings []EncodingLayer
	Codecs    []Codec
}

type TransceiverInit struct {
	Direction     webrtc.RTPTransceiverDirection
	StreamIDs     []string
	SendEncodings []EncodingLayer
	// preferred codec, first match wins
	CodecPreferences []Codec
}

type Sender interface {
	Track() MediaTrack
	GetParameters() SendParameters
	SetParameters(params SendParameters) error
}

type Receiver interface {
	Track() MediaTrack
}

type Transceiver interface {
	Mid() string
	Kind() webrtc.RTPCodecType
	Direction() webrtc.RTPTransceiverDirection
	Sender() Sender
	Receiver() Receiver
	Stop() error
	Dispose() error
}

// PeerConnection is the native engine handle a PCTransport drives.
type PeerConnection interface {
	OnICECandidate(f func(*webrtc.ICECandidateInit))
	OnICEConnectionStateChange(f func(webrtc.ICEConnectionState))
	OnConnectionStateChange(f func(webrtc.PeerConnectionState))
	OnTrack(f func(track MediaTrack))
	OnNegotiationNeeded(f func())

	CreateOffer(ctx context.Context, iceRestart bool) (webrtc.SessionDescription, error)
	CreateAnswer(ctx context.Context) (webrtc.SessionDescription, error)
	SetLocalDescription(ctx context.Context, desc webrtc.SessionDescription) error
	SetRemoteDescription(ctx context.Context, desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	LocalDescription() *webrtc.SessionDescription
	RemoteDescription() *webrtc.SessionDescription

	AddTransceiverFromTrack(track MediaTrack, init TransceiverInit) (Transceiver, error)
	AddTransceiverFromKind(kind webrtc.RTPCodecType, init TransceiverInit) (Transceiver, error)
	Transceivers() []Transceiver

	ConnectionState() webrtc.PeerConnectionState
	ICEConnectionState() webrtc.ICEConnectionState
	SignalingState() webrtc.SignalingState
	Close() error
}

// SignalClient is the request/response RPC surface of the SFU.
//
//counterfeiter:generate . SignalClient
type SignalClient interface {
	SetPublisher(ctx context.Context, req *SetPublisherRequest) (*SetPublisherResponse, error)
	SendAnswer(ctx context.Context, req *SendAnswerRequest) (*SendAnswerResponse, error)
	UpdateSubscriptions(ctx context.Context, req *UpdateSubscriptionsRequest) (*UpdateSubscriptionsResponse, error)
	ICERestart(ctx context.Context, req *ICERestartRequest) (*ICERestartResponse, error)
	ICETrickle(ctx context.Context, req *ICETrickleRequest) (*ICETrickleResponse, error)
}

// TrackOverrides lets an outer layer force or adjust subscriptions.
type TrackOverrides interface {
	ApplyOverrides(tracks []TrackSubscriptionDetails) []TrackSubscriptionDetails
}
