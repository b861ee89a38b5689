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

package rtc

import (
	"context"
	"sync"

	"github.com/frostbyte73/core"
	"github.com/gammazero/deque"
	"github.com/pion/webrtc/v3"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/rtc-session/pkg/rtc/transport"
	"github.com/livekit/rtc-session/pkg/rtc/types"
	"github.com/livekit/rtc-session/pkg/telemetry/prometheus"
	"github.com/livekit/rtc-session/pkg/utils"
)

type TransportParams struct {
	PeerType       types.PeerType
	PeerConnection types.PeerConnection
	Handler        transport.Handler
	Logger         logger.Logger
}

// PCTransport is one leg (publisher or subscriber) of a call. It owns the SDP and
// ICE candidate state of a single peer connection.
type PCTransport struct {
	params TransportParams
	pc     types.PeerConnection
	peer   string

	// guard local description mutations (create offer/answer, set local)
	localLock *semaphore.Weighted
	// guards set remote and the candidate drain that follows it
	remoteLock *semaphore.Weighted

	lock              sync.Mutex
	pendingCandidates deque.Deque[webrtc.ICECandidateInit]
	negotiationState  transport.NegotiationState
	localDescription  *webrtc.SessionDescription
	remoteDescription *webrtc.SessionDescription

	connectionState atomic.Int32
	iceState        atomic.Int32

	eventsQueue *utils.OpsQueue
	closed      core.Fuse
}

func NewPCTransport(params TransportParams) (*PCTransport, error) {
	if params.PeerConnection == nil {
		return nil, ErrNoPeerConnection
	}
	if params.Logger == nil {
		params.Logger = logger.GetLogger()
	}
	if params.Handler == nil {
		params.Handler = transport.UnimplementedHandler{}
	}
	params.Logger = params.Logger.WithValues("transport", params.PeerType)

	t := &PCTransport{
		params:      params,
		pc:          params.PeerConnection,
		peer:        params.PeerType.String(),
		localLock:   semaphore.NewWeighted(1),
		remoteLock:  semaphore.NewWeighted(1),
		eventsQueue: utils.NewOpsQueue(params.Logger, "transport-events"),
	}
	t.connectionState.Store(int32(t.pc.ConnectionState()))
	t.iceState.Store(int32(t.pc.ICEConnectionState()))

	t.pc.OnICECandidate(t.onICECandidate)
	t.pc.OnTrack(t.onTrack)
	t.pc.OnNegotiationNeeded(t.onNegotiationNeeded)
	t.pc.OnConnectionStateChange(t.onConnectionStateChange)
	t.pc.OnICEConnectionStateChange(t.onICEConnectionStateChange)

	t.eventsQueue.Start()
	return t, nil
}

func (t *PCTransport) PeerType() types.PeerType {
	return t.params.PeerType
}

func (t *PCTransport) Logger() logger.Logger {
	return t.params.Logger
}

func (t *PCTransport) CreateOffer(ctx context.Context, iceRestart bool) (webrtc.SessionDescription, error) {
	if err := t.localLock.Acquire(ctx, 1); err != nil {
		return webrtc.SessionDescription{}, err
	}
	defer t.localLock.Release(1)

	offer, err := t.pc.CreateOffer(ctx, iceRestart)
	prometheus.RecordNegotiationOp(t.peer, "create_offer", err)
	if err != nil {
		return webrtc.SessionDescription{}, errors.Wrap(err, "create offer failed")
	}
	return offer, nil
}

func (t *PCTransport) CreateAnswer(ctx context.Context) (webrtc.SessionDescription, error) {
	if err := t.localLock.Acquire(ctx, 1); err != nil {
		return webrtc.SessionDescription{}, err
	}
	defer t.localLock.Release(1)

	answer, err := t.pc.CreateAnswer(ctx)
	prometheus.RecordNegotiationOp(t.peer, "create_answer", err)
	if err != nil {
		return webrtc.SessionDescription{}, errors.Wrap(err, "create answer failed")
	}
	return answer, nil
}

// SetLocalDescription applies sd with canonical codec casing. Calls are serialized.
func (t *PCTransport) SetLocalDescription(ctx context.Context, sd webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := t.localLock.Acquire(ctx, 1); err != nil {
		return webrtc.SessionDescription{}, err
	}
	defer t.localLock.Release(1)

	munged := webrtc.SessionDescription{
		Type: sd.Type,
		SDP:  mungeCodecs(sd.SDP),
	}
	err := t.pc.SetLocalDescription(ctx, munged)
	prometheus.RecordNegotiationOp(t.peer, "set_local", err)
	if err != nil {
		t.params.Logger.Warnw("could not set local description", err, "type", sd.Type)
		return webrtc.SessionDescription{}, errors.Wrap(err, "set local description failed")
	}

	t.lock.Lock()
	t.localDescription = &munged
	state := t.updateNegotiationStateLocked(munged.Type, true)
	t.lock.Unlock()

	t.notifyNegotiationState(state)
	return munged, nil
}

// SetRemoteDescription applies sd and then applies every candidate that arrived before
// it, in arrival order, before any later candidate can be handled.
func (t *PCTransport) SetRemoteDescription(ctx context.Context, sd webrtc.SessionDescription) error {
	if err := t.remoteLock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer t.remoteLock.Release(1)

	munged := webrtc.SessionDescription{
		Type: sd.Type,
		SDP:  mungeCodecs(sd.SDP),
	}
	err := t.pc.SetRemoteDescription(ctx, munged)
	prometheus.RecordNegotiationOp(t.peer, "set_remote", err)
	if err != nil {
		t.params.Logger.Warnw("could not set remote description", err, "type", sd.Type)
		return errors.Wrap(err, "set remote description failed")
	}

	t.lock.Lock()
	t.remoteDescription = &munged
	state := t.updateNegotiationStateLocked(munged.Type, false)
	pending := make([]webrtc.ICECandidateInit, 0, t.pendingCandidates.Len())
	for t.pendingCandidates.Len() > 0 {
		pending = append(pending, t.pendingCandidates.PopFront())
	}
	t.lock.Unlock()

	t.notifyNegotiationState(state)

	for _, c := range pending {
		if err := t.pc.AddICECandidate(c); err != nil {
			prometheus.RecordICECandidate(t.peer, "failed")
			t.params.Logger.Warnw("could not apply buffered ICE candidate", err, "candidate", c.Candidate)
			continue
		}
		prometheus.RecordICECandidate(t.peer, "applied")
	}
	if len(pending) > 0 {
		t.params.Logger.Debugw("drained buffered ICE candidates", "count", len(pending))
	}
	return nil
}

// HandleNewICECandidate applies a remote candidate, or buffers it until the remote
// description is set.
func (t *PCTransport) HandleNewICECandidate(ctx context.Context, c webrtc.ICECandidateInit) error {
	if err := t.remoteLock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer t.remoteLock.Release(1)

	if t.pc.RemoteDescription() == nil {
		t.lock.Lock()
		t.pendingCandidates.PushBack(c)
		t.lock.Unlock()
		prometheus.RecordICECandidate(t.peer, "buffered")
		return nil
	}

	if err := t.pc.AddICECandidate(c); err != nil {
		prometheus.RecordICECandidate(t.peer, "failed")
		return errors.Wrap(err, "add ICE candidate failed")
	}
	prometheus.RecordICECandidate(t.peer, "applied")
	return nil
}

func (t *PCTransport) PendingCandidates() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.pendingCandidates.Len()
}

func (t *PCTransport) LocalDescription() *webrtc.SessionDescription {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.localDescription
}

func (t *PCTransport) RemoteDescription() *webrtc.SessionDescription {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.remoteDescription
}

func (t *PCTransport) NegotiationState() transport.NegotiationState {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.negotiationState
}

func (t *PCTransport) SignalingState() webrtc.SignalingState {
	return t.pc.SignalingState()
}

func (t *PCTransport) ConnectionState() webrtc.PeerConnectionState {
	return webrtc.PeerConnectionState(t.connectionState.Load())
}

func (t *PCTransport) ICEConnectionState() webrtc.ICEConnectionState {
	return webrtc.ICEConnectionState(t.iceState.Load())
}

func (t *PCTransport) IsHealthy() bool {
	switch t.ConnectionState() {
	case webrtc.PeerConnectionStateNew, webrtc.PeerConnectionStateConnecting, webrtc.PeerConnectionStateConnected:
		return true
	}
	return false
}

func (t *PCTransport) IsFailedOrClosed() bool {
	switch t.ConnectionState() {
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		return true
	}
	switch t.ICEConnectionState() {
	case webrtc.ICEConnectionStateFailed, webrtc.ICEConnectionStateClosed:
		return true
	}
	return false
}

func (t *PCTransport) AddTransceiverFromTrack(track types.MediaTrack, init types.TransceiverInit) (types.Transceiver, error) {
	return t.pc.AddTransceiverFromTrack(track, init)
}

func (t *PCTransport) AddTransceiverFromKind(kind webrtc.RTPCodecType, init types.TransceiverInit) (types.Transceiver, error) {
	return t.pc.AddTransceiverFromKind(kind, init)
}

func (t *PCTransport) Transceivers() []types.Transceiver {
	return t.pc.Transceivers()
}

func (t *PCTransport) IsClosed() bool {
	return t.closed.IsBroken()
}

func (t *PCTransport) Close() {
	if t.closed.IsBroken() {
		return
	}
	t.closed.Break()

	if err := t.pc.Close(); err != nil {
		t.params.Logger.Warnw("error closing peer connection", err)
	}
	t.eventsQueue.Stop()
}

func (t *PCTransport) updateNegotiationStateLocked(sdpType webrtc.SDPType, local bool) transport.NegotiationState {
	t.negotiationState = transport.NextNegotiationState(t.negotiationState, sdpType, local)
	return t.negotiationState
}

func (t *PCTransport) notifyNegotiationState(state transport.NegotiationState) {
	t.eventsQueue.Enqueue(func() {
		t.params.Handler.OnNegotiationStateChanged(state)
	})
}

// engine callbacks, these must not block

func (t *PCTransport) onICECandidate(c *webrtc.ICECandidateInit) {
	if c == nil || t.closed.IsBroken() {
		return
	}
	t.eventsQueue.Enqueue(func() {
		if err := t.params.Handler.OnICECandidate(c, t.params.PeerType); err != nil {
			t.params.Logger.Warnw("could not handle local ICE candidate", err, "candidate", c.Candidate)
		}
	})
}

func (t *PCTransport) onTrack(track types.MediaTrack) {
	t.params.Logger.Debugw("track added", "trackID", track.ID(), "streamID", track.StreamID(), "kind", track.Kind())
	t.eventsQueue.Enqueue(func() {
		t.params.Handler.OnTrack(track)
	})
}

func (t *PCTransport) onNegotiationNeeded() {
	if t.closed.IsBroken() {
		return
	}
	t.eventsQueue.Enqueue(t.params.Handler.OnRenegotiationNeeded)
}

func (t *PCTransport) onConnectionStateChange(state webrtc.PeerConnectionState) {
	t.connectionState.Store(int32(state))
	prometheus.RecordConnectionState(t.peer, "peer", state.String())
	t.params.Logger.Debugw("connection state changed", "state", state)

	t.eventsQueue.Enqueue(func() {
		t.params.Handler.OnConnectionStateChange(state)
		if state == webrtc.PeerConnectionStateFailed {
			t.params.Handler.OnFailed()
		}
	})
}

func (t *PCTransport) onICEConnectionStateChange(state webrtc.ICEConnectionState) {
	t.iceState.Store(int32(state))
	prometheus.RecordConnectionState(t.peer, "ice", state.String())
	t.params.Logger.Debugw("ICE connection state changed", "state", state)

	t.eventsQueue.Enqueue(func() {
		t.params.Handler.OnICEConnectionStateChange(state)
		if state == webrtc.ICEConnectionStateFailed {
			t.params.Handler.OnFailed()
		}
	})
}
