package rtctest

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v3"

	"github.com/livekit/rtc-session/pkg/rtc/types"
)

// PeerConnection is an in-memory types.PeerConnection. Descriptions are opaque
// strings; nothing is parsed.
type PeerConnection struct {
	lock sync.Mutex

	onICECandidate        func(*webrtc.ICECandidateInit)
	onICEConnectionChange func(webrtc.ICEConnectionState)
	onConnectionChange    func(webrtc.PeerConnectionState)
	onTrack               func(types.MediaTrack)
	onNegotiationNeeded   func()

	local          *webrtc.SessionDescription
	remote         *webrtc.SessionDescription
	signalingState webrtc.SignalingState
	connState      webrtc.PeerConnectionState
	iceState       webrtc.ICEConnectionState
	transceivers   []*Transceiver
	closed         bool

	offerCount  int
	answerCount int
	lastRestart bool

	// OfferSDP and AnswerSDP override the generated descriptions when set.
	OfferSDP  func(n int) string
	AnswerSDP func(n int) string

	// hooks run before the description is applied, outside the lock
	SetLocalHook  func(ctx context.Context, desc webrtc.SessionDescription) error
	SetRemoteHook func(ctx context.Context, desc webrtc.SessionDescription) error
	CandidateHook func(c webrtc.ICECandidateInit) error

	createOfferErr  error
	createAnswerErr error

	appliedCandidates []webrtc.ICECandidateInit
	earlyCandidates   int
	localCalls        []webrtc.SessionDescription
	remoteCalls       []webrtc.SessionDescription
	events            StepLog
}

func NewPeerConnection() *PeerConnection {
	return &PeerConnection{
		signalingState: webrtc.SignalingStateStable,
		connState:      webrtc.PeerConnectionStateNew,
		iceState:       webrtc.ICEConnectionStateNew,
	}
}

func (pc *PeerConnection) OnICECandidate(f func(*webrtc.ICECandidateInit)) {
	pc.lock.Lock()
	defer pc.lock.Unlock()
	pc.onICECandidate = f
}

func (pc *PeerConnection) OnICEConnectionStateChange(f func(webrtc.ICEConnectionState)) {
	pc.lock.Lock()
	defer pc.lock.Unlock()
	pc.onICEConnectionChange = f
}

func (pc *PeerConnection) OnConnectionStateChange(f func(webrtc.PeerConnectionState)) {
	pc.lock.Lock()
	defer pc.lock.Unlock()
	pc.onConnectionChange = f
}

func (pc *PeerConnection) OnTrack(f func(track types.MediaTrack)) {
	pc.lock.Lock()
	defer pc.lock.Unlock()
	pc.onTrack = f
}

func (pc *PeerConnection) OnNegotiationNeeded(f func()) {
	pc.lock.Lock()
	defer pc.lock.Unlock()
	pc.onNegotiationNeeded = f
}

func (pc *PeerConnection) CreateOffer(ctx context.Context, iceRestart bool) (webrtc.SessionDescription, error) {
	if err := ctx.Err(); err != nil {
		return webrtc.SessionDescription{}, err
	}
	pc.lock.Lock()
	defer pc.lock.Unlock()
	if pc.createOfferErr != nil {
		return webrtc.SessionDescription{}, pc.createOfferErr
	}
	pc.offerCount++
	pc.lastRestart = iceRestart
	sdp := fmt.Sprintf("offer-%d", pc.offerCount)
	if pc.OfferSDP != nil {
		sdp = pc.OfferSDP(pc.offerCount)
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}, nil
}

func (pc *PeerConnection) CreateAnswer(ctx context.Context) (webrtc.SessionDescription, error) {
	if err := ctx.Err(); err != nil {
		return webrtc.SessionDescription{}, err
	}
	pc.lock.Lock()
	defer pc.lock.Unlock()
	if pc.createAnswerErr != nil {
		return webrtc.SessionDescription{}, pc.createAnswerErr
	}
	pc.answerCount++
	sdp := fmt.Sprintf("answer-%d", pc.answerCount)
	if pc.AnswerSDP != nil {
		sdp = pc.AnswerSDP(pc.answerCount)
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}, nil
}

func (pc *PeerConnection) SetLocalDescription(ctx context.Context, desc webrtc.SessionDescription) error {
	pc.events.Add("local start " + desc.SDP)
	defer pc.events.Add("local end " + desc.SDP)

	if pc.SetLocalHook != nil {
		if err := pc.SetLocalHook(ctx, desc); err != nil {
			return err
		}
	}

	pc.lock.Lock()
	defer pc.lock.Unlock()
	pc.localCalls = append(pc.localCalls, desc)
	pc.local = &desc
	switch desc.Type {
	case webrtc.SDPTypeOffer:
		pc.signalingState = webrtc.SignalingStateHaveLocalOffer
	case webrtc.SDPTypeAnswer:
		pc.signalingState = webrtc.SignalingStateStable
	}
	return nil
}

func (pc *PeerConnection) SetRemoteDescription(ctx context.Context, desc webrtc.SessionDescription) error {
	pc.events.Add("remote " + desc.SDP)
	if pc.SetRemoteHook != nil {
		if err := pc.SetRemoteHook(ctx, desc); err != nil {
			return err
		}
	}

	pc.lock.Lock()
	defer pc.lock.Unlock()
	pc.remoteCalls = append(pc.remoteCalls, desc)
	pc.remote = &desc
	switch desc.Type {
	case webrtc.SDPTypeOffer:
		pc.signalingState = webrtc.SignalingStateHaveRemoteOffer
	case webrtc.SDPTypeAnswer:
		pc.signalingState = webrtc.SignalingStateStable
	}
	return nil
}

func (pc *PeerConnection) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	pc.events.Add("candidate " + candidate.Candidate)
	if pc.CandidateHook != nil {
		if err := pc.CandidateHook(candidate); err != nil {
			return err
		}
	}

	pc.lock.Lock()
	defer pc.lock.Unlock()
	if pc.remote == nil {
		pc.earlyCandidates++
	}
	pc.appliedCandidates = append(pc.appliedCandidates, candidate)
	return nil
}

func (pc *PeerConnection) LocalDescription() *webrtc.SessionDescription {
	pc.lock.Lock()
	defer pc.lock.Unlock()
	return pc.local
}

func (pc *PeerConnection) RemoteDescription() *webrtc.SessionDescription {
	pc.lock.Lock()
	defer pc.lock.Unlock()
	return pc.remote
}

func (pc *PeerConnection) AddTransceiverFromTrack(track types.MediaTrack, init types.TransceiverInit) (types.Transceiver, error) {
	pc.lock.Lock()
	defer pc.lock.Unlock()
	if pc.closed {
		return nil, webrtc.ErrConnectionClosed
	}
	if t, ok := track.(*Track); ok && len(init.StreamIDs) > 0 {
		t.SetStreamID(init.StreamIDs[0])
	}
	tr := &Transceiver{
		kind:      track.Kind(),
		direction: init.Direction,
		sender: &Sender{
			track:  track,
			params: types.SendParameters{Encodings: append([]types.EncodingLayer(nil), init.SendEncodings...), Codecs: init.CodecPreferences},
		},
		init: init,
	}
	pc.transceivers = append(pc.transceivers, tr)
	return tr, nil
}

func (pc *PeerConnection) AddTransceiverFromKind(kind webrtc.RTPCodecType, init types.TransceiverInit) (types.Transceiver, error) {
	pc.lock.Lock()
	defer pc.lock.Unlock()
	if pc.closed {
		return nil, webrtc.ErrConnectionClosed
	}
	tr := &Transceiver{
		kind:      kind,
		direction: init.Direction,
		init:      init,
	}
	pc.transceivers = append(pc.transceivers, tr)
	return tr, nil
}

// AddRemoteTransceiver attaches a receive-side transceiver carrying track.
func (pc *PeerConnection) AddRemoteTransceiver(track types.MediaTrack) *Transceiver {
	pc.lock.Lock()
	defer pc.lock.Unlock()
	tr := &Transceiver{
		kind:      track.Kind(),
		direction: webrtc.RTPTransceiverDirectionRecvonly,
		receiver:  &Receiver{track: track},
	}
	pc.transceivers = append(pc.transceivers, tr)
	return tr
}

func (pc *PeerConnection) Transceivers() []types.Transceiver {
	pc.lock.Lock()
	defer pc.lock.Unlock()
	out := make([]types.Transceiver, 0, len(pc.transceivers))
	for _, tr := range pc.transceivers {
		out = append(out, tr)
	}
	return out
}

func (pc *PeerConnection) FakeTransceivers() []*Transceiver {
	pc.lock.Lock()
	defer pc.lock.Unlock()
	return append([]*Transceiver(nil), pc.transceivers...)
}

func (pc *PeerConnection) ConnectionState() webrtc.PeerConnectionState {
	pc.lock.Lock()
	defer pc.lock.Unlock()
	return pc.connState
}

func (pc *PeerConnection) ICEConnectionState() webrtc.ICEConnectionState {
	pc.lock.Lock()
	defer pc.lock.Unlock()
	return pc.iceState
}

func (pc *PeerConnection) SignalingState() webrtc.SignalingState {
	pc.lock.Lock()
	defer pc.lock.Unlock()
	return pc.signalingState
}

func (pc *PeerConnection) SetSignalingState(state webrtc.SignalingState) {
	pc.lock.Lock()
	defer pc.lock.Unlock()
	pc.signalingState = state
}

func (pc *PeerConnection) Close() error {
	pc.lock.Lock()
	pc.closed = true
	pc.connState = webrtc.PeerConnectionStateClosed
	f := pc.onConnectionChange
	pc.lock.Unlock()

	if f != nil {
		f(webrtc.PeerConnectionStateClosed)
	}
	return nil
}

func (pc *PeerConnection) IsClosed() bool {
	pc.lock.Lock()
	defer pc.lock.Unlock()
	return pc.closed
}

func (pc *PeerConnection) FailCreateOffer(err error) {
	pc.lock.Lock()
	defer pc.lock.Unlock()
	pc.createOfferErr = err
}

func (pc *PeerConnection) FailCreateAnswer(err error) {
	pc.lock.Lock()
	defer pc.lock.Unlock()
	pc.createAnswerErr = err
}

// event injection, mimicking the engine's callback goroutine

func (pc *PeerConnection) EmitICECandidate(c *webrtc.ICECandidateInit) {
	pc.lock.Lock()
	f := pc.onICECandidate
	pc.lock.Unlock()
	if f != nil {
		f(c)
	}
}

func (pc *PeerConnection) EmitTrack(track types.MediaTrack) {
	pc.lock.Lock()
	f := pc.onTrack
	pc.lock.Unlock()
	if f != nil {
		f(track)
	}
}

func (pc *PeerConnection) EmitNegotiationNeeded() {
	pc.lock.Lock()
	f := pc.onNegotiationNeeded
	pc.lock.Unlock()
	if f != nil {
		f()
	}
}

func (pc *PeerConnection) EmitConnectionState(state webrtc.PeerConnectionState) {
	pc.lock.Lock()
	pc.connState = state
	f := pc.onConnectionChange
	pc.lock.Unlock()
	if f != nil {
		f(state)
	}
}

func (pc *PeerConnection) EmitICEConnectionState(state webrtc.ICEConnectionState) {
	pc.lock.Lock()
	pc.iceState = state
	f := pc.onICEConnectionChange
	pc.lock.Unlock()
	if f != nil {
		f(state)
	}
}

// inspection

func (pc *PeerConnection) AppliedCandidates() []webrtc.ICECandidateInit {
	pc.lock.Lock()
	defer pc.lock.Unlock()
	return append([]webrtc.ICECandidateInit(nil), pc.appliedCandidates...)
}

// EarlyCandidates counts candidates applied while no remote description was set.
func (pc *PeerConnection) EarlyCandidates() int {
	pc.lock.Lock()
	defer pc.lock.Unlock()
	return pc.earlyCandidates
}

func (pc *PeerConnection) LocalCalls() []webrtc.SessionDescription {
	pc.lock.Lock()
	defer pc.lock.Unlock()
	return append([]webrtc.SessionDescription(nil), pc.localCalls...)
}

func (pc *PeerConnection) RemoteCalls() []webrtc.SessionDescription {
	pc.lock.Lock()
	defer pc.lock.Unlock()
	return append([]webrtc.SessionDescription(nil), pc.remoteCalls...)
}

func (pc *PeerConnection) OfferCount() int {
	pc.lock.Lock()
	defer pc.lock.Unlock()
	return pc.offerCount
}

func (pc *PeerConnection) LastOfferWasRestart() bool {
	pc.lock.Lock()
	defer pc.lock.Unlock()
	return pc.lastRestart
}

func (pc *PeerConnection) Events() []string {
	return pc.events.Steps()
}

var _ types.PeerConnection = (*PeerConnection)(nil)
var _ types.MediaTrack = (*Track)(nil)
var _ types.Transceiver = (*Transceiver)(nil)
