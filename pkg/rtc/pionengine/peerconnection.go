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

package pionengine

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v3"
	"go.uber.org/atomic"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/rtc-session/pkg/rtc/types"
)

// PeerConnection adapts a pion peer connection to types.PeerConnection.
type PeerConnection struct {
	pc     *webrtc.PeerConnection
	codecs codecTable
	logger logger.Logger

	lock         sync.Mutex
	transceivers map[*webrtc.RTPTransceiver]*Transceiver
}

func newPeerConnection(pc *webrtc.PeerConnection, codecs codecTable, l logger.Logger) *PeerConnection {
	return &PeerConnection{
		pc:           pc,
		codecs:       codecs,
		logger:       l,
		transceivers: make(map[*webrtc.RTPTransceiver]*Transceiver),
	}
}

func (p *PeerConnection) OnICECandidate(f func(*webrtc.ICECandidateInit)) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			f(nil)
			return
		}
		init := c.ToJSON()
		f(&init)
	})
}

func (p *PeerConnection) OnICEConnectionStateChange(f func(webrtc.ICEConnectionState)) {
	p.pc.OnICEConnectionStateChange(f)
}

func (p *PeerConnection) OnConnectionStateChange(f func(webrtc.PeerConnectionState)) {
	p.pc.OnConnectionStateChange(f)
}

func (p *PeerConnection) OnTrack(f func(track types.MediaTrack)) {
	p.pc.OnTrack(func(remote *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		track := newRemoteTrack(remote, receiver, p.pc.WriteRTCP)
		for _, tr := range p.pc.GetTransceivers() {
			if tr.Receiver() == receiver {
				p.wrap(tr, nil).receiver.setTrack(track)
				break
			}
		}
		p.logger.Debugw("remote track", "trackID", remote.ID(), "streamID", remote.StreamID(), "kind", remote.Kind())
		f(track)
	})
}

func (p *PeerConnection) OnNegotiationNeeded(f func()) {
	p.pc.OnNegotiationNeeded(f)
}

func (p *PeerConnection) CreateOffer(ctx context.Context, iceRestart bool) (webrtc.SessionDescription, error) {
	if err := ctx.Err(); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return p.pc.CreateOffer(&webrtc.OfferOptions{ICERestart: iceRestart})
}

func (p *PeerConnection) CreateAnswer(ctx context.Context) (webrtc.SessionDescription, error) {
	if err := ctx.Err(); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return p.pc.CreateAnswer(nil)
}

func (p *PeerConnection) SetLocalDescription(ctx context.Context, desc webrtc.SessionDescription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.pc.SetLocalDescription(desc)
}

func (p *PeerConnection) SetRemoteDescription(ctx context.Context, desc webrtc.SessionDescription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.pc.SetRemoteDescription(desc)
}

func (p *PeerConnection) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(candidate)
}

func (p *PeerConnection) LocalDescription() *webrtc.SessionDescription {
	return p.pc.LocalDescription()
}

func (p *PeerConnection) RemoteDescription() *webrtc.SessionDescription {
	return p.pc.RemoteDescription()
}

func (p *PeerConnection) AddTransceiverFromTrack(track types.MediaTrack, init types.TransceiverInit) (types.Transceiver, error) {
	local, ok := track.(*LocalTrack)
	if !ok {
		return nil, ErrUnsupportedTrack
	}

	capability := local.capability
	preferred := p.codecs.preferences(local.Kind(), init.CodecPreferences)
	if len(preferred) > 0 {
		capability = preferred[0].RTPCodecCapability
	}
	streamID := ""
	if len(init.StreamIDs) > 0 {
		streamID = init.StreamIDs[0]
	}
	sink, err := local.bind(capability, streamID)
	if err != nil {
		return nil, err
	}

	tr, err := p.pc.AddTransceiverFromTrack(sink, webrtc.RTPTransceiverInit{Direction: init.Direction})
	if err != nil {
		return nil, err
	}
	if len(preferred) > 0 {
		if err := tr.SetCodecPreferences(preferred); err != nil {
			p.logger.Warnw("could not set codec preferences", err, "trackID", local.ID())
		}
	}

	t := p.wrap(tr, local)
	t.sender.init(init.SendEncodings, preferred)
	return t, nil
}

func (p *PeerConnection) AddTransceiverFromKind(kind webrtc.RTPCodecType, init types.TransceiverInit) (types.Transceiver, error) {
	tr, err := p.pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{Direction: init.Direction})
	if err != nil {
		return nil, err
	}
	if preferred := p.codecs.preferences(kind, init.CodecPreferences); len(preferred) > 0 {
		if err := tr.SetCodecPreferences(preferred); err != nil {
			p.logger.Warnw("could not set codec preferences", err, "kind", kind)
		}
	}
	return p.wrap(tr, nil), nil
}

func (p *PeerConnection) Transceivers() []types.Transceiver {
	pionTransceivers := p.pc.GetTransceivers()
	transceivers := make([]types.Transceiver, 0, len(pionTransceivers))
	for _, tr := range pionTransceivers {
		transceivers = append(transceivers, p.wrap(tr, nil))
	}
	return transceivers
}

func (p *PeerConnection) wrap(tr *webrtc.RTPTransceiver, local *LocalTrack) *Transceiver {
	p.lock.Lock()
	defer p.lock.Unlock()
	if t, ok := p.transceivers[tr]; ok {
		return t
	}
	t := newTransceiver(tr, local, p.forget)
	p.transceivers[tr] = t
	return t
}

func (p *PeerConnection) forget(tr *webrtc.RTPTransceiver) {
	p.lock.Lock()
	defer p.lock.Unlock()
	delete(p.transceivers, tr)
}

func (p *PeerConnection) ConnectionState() webrtc.PeerConnectionState {
	return p.pc.ConnectionState()
}

func (p *PeerConnection) ICEConnectionState() webrtc.ICEConnectionState {
	return p.pc.ICEConnectionState()
}

func (p *PeerConnection) SignalingState() webrtc.SignalingState {
	return p.pc.SignalingState()
}

func (p *PeerConnection) Close() error {
	return p.pc.Close()
}

// -------------------------------

// Transceiver adapts a pion transceiver. Sender is nil for receive-only transceivers
// that never had a track attached.
type Transceiver struct {
	tr       *webrtc.RTPTransceiver
	sender   *Sender
	receiver *Receiver
	onForget func(*webrtc.RTPTransceiver)
	disposed atomic.Bool
}

func newTransceiver(tr *webrtc.RTPTransceiver, local *LocalTrack, onForget func(*webrtc.RTPTransceiver)) *Transceiver {
	t := &Transceiver{
		tr:       tr,
		receiver: &Receiver{},
		onForget: onForget,
	}
	if local != nil && tr.Sender() != nil {
		t.sender = &Sender{sender: tr.Sender(), track: local}
	}
	return t
}

func (t *Transceiver) Mid() string {
	return t.tr.Mid()
}

func (t *Transceiver) Kind() webrtc.RTPCodecType {
	return t.tr.Kind()
}

func (t *Transceiver) Direction() webrtc.RTPTransceiverDirection {
	return t.tr.Direction()
}

func (t *Transceiver) Sender() types.Sender {
	if t.sender == nil {
		return nil
	}
	return t.sender
}

func (t *Transceiver) Receiver() types.Receiver {
	return t.receiver
}

func (t *Transceiver) Stop() error {
	return t.tr.Stop()
}

func (t *Transceiver) Dispose() error {
	if t.disposed.Swap(true) {
		return nil
	}
	if t.onForget != nil {
		t.onForget(t.tr)
	}
	return nil
}

// -------------------------------

// Sender keeps the encoding parameters last applied. pion has no per-encoding
// controls, so an all-inactive parameter set pauses writes on the track instead.
type Sender struct {
	sender *webrtc.RTPSender
	track  *LocalTrack

	lock   sync.Mutex
	params types.SendParameters
}

func (s *Sender) init(encodings []types.EncodingLayer, preferred []webrtc.RTPCodecParameters) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.params.Encodings = append([]types.EncodingLayer(nil), encodings...)
	for _, c := range preferred {
		s.params.Codecs = append(s.params.Codecs, toCodec(c))
	}
}

func (s *Sender) Track() types.MediaTrack {
	if s.track == nil {
		return nil
	}
	return s.track
}

func (s *Sender) GetParameters() types.SendParameters {
	s.lock.Lock()
	params := types.SendParameters{
		Encodings: append([]types.EncodingLayer(nil), s.params.Encodings...),
		Codecs:    append([]types.Codec(nil), s.params.Codecs...),
	}
	s.lock.Unlock()

	// once negotiated, the codec in use comes first
	if negotiated := s.sender.GetParameters().Codecs; len(negotiated) > 0 {
		params.Codecs = params.Codecs[:0]
		for _, c := range negotiated {
			params.Codecs = append(params.Codecs, toCodec(c))
		}
	}
	return params
}

func (s *Sender) SetParameters(params types.SendParameters) error {
	s.lock.Lock()
	s.params.Encodings = append([]types.EncodingLayer(nil), params.Encodings...)
	if len(params.Codecs) > 0 {
		s.params.Codecs = append([]types.Codec(nil), params.Codecs...)
	}
	active := len(params.Encodings) == 0
	for _, e := range params.Encodings {
		if e.Active {
			active = true
			break
		}
	}
	s.lock.Unlock()

	if s.track != nil {
		s.track.setSending(active)
	}
	return nil
}

// -------------------------------

type Receiver struct {
	lock  sync.RWMutex
	track *RemoteTrack
}

func (r *Receiver) setTrack(track *RemoteTrack) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.track = track
}

func (r *Receiver) Track() types.MediaTrack {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.track == nil {
		return nil
	}
	return r.track
}
