// Package rtctest provides an in-memory media engine for exercising sessions without network I/O.
package rtctest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v3"

	"github.com/livekit/rtc-session/pkg/rtc/types"
)

var ErrInjected = errors.New("injected failure")

// Track is a controllable media track.
type Track struct {
	lock       sync.Mutex
	id         string
	streamID   string
	kind       webrtc.RTPCodecType
	enabled    bool
	state      types.TrackState
	disposed   bool
	stopped    bool
	clones     int
	enableLog  []bool
	stepLog    *StepLog
	failEnable bool
	failDelete bool
	panicStop  bool
}

func NewTrack(kind webrtc.RTPCodecType, id string) *Track {
	return &Track{
		id:      id,
		kind:    kind,
		enabled: true,
		state:   types.TrackStateLive,
	}
}

func (t *Track) ID() string                { return t.id }
func (t *Track) Kind() webrtc.RTPCodecType { return t.kind }

func (t *Track) StreamID() string {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.streamID
}

func (t *Track) SetStreamID(streamID string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.streamID = streamID
}

func (t *Track) Enabled() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.enabled
}

func (t *Track) SetEnabled(enabled bool) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.stepLog.Add(fmt.Sprintf("track %s enabled=%v", t.id, enabled))
	if t.failEnable {
		return ErrInjected
	}
	t.enabled = enabled
	t.enableLog = append(t.enableLog, enabled)
	return nil
}

func (t *Track) EnableLog() []bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]bool(nil), t.enableLog...)
}

func (t *Track) State() types.TrackState {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.state
}

func (t *Track) End() {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.state = types.TrackStateEnded
}

func (t *Track) IsDisposed() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.disposed
}

func (t *Track) Dispose() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.stepLog.Add(fmt.Sprintf("track %s dispose", t.id))
	if t.failDelete {
		return ErrInjected
	}
	t.disposed = true
	t.state = types.TrackStateEnded
	return nil
}

func (t *Track) Stop() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.panicStop {
		panic("stop")
	}
	t.stopped = true
	t.state = types.TrackStateEnded
	return nil
}

func (t *Track) IsStopped() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.stopped
}

func (t *Track) Clone() (types.MediaTrack, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.clones++
	clone := NewTrack(t.kind, fmt.Sprintf("%s-clone-%d", t.id, t.clones))
	clone.stepLog = t.stepLog
	return clone, nil
}

func (t *Track) FailSetEnabled(fail bool) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.failEnable = fail
}

func (t *Track) FailDispose(fail bool) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.failDelete = fail
}

func (t *Track) PanicOnStop(panics bool) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.panicStop = panics
}

func (t *Track) SetStepLog(l *StepLog) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.stepLog = l
}

// StepLog records teardown and negotiation steps in order.
type StepLog struct {
	lock  sync.Mutex
	steps []string
}

func (l *StepLog) Add(step string) {
	if l == nil {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	l.steps = append(l.steps, step)
}

func (l *StepLog) Steps() []string {
	l.lock.Lock()
	defer l.lock.Unlock()
	return append([]string(nil), l.steps...)
}

type Sender struct {
	lock         sync.Mutex
	track        types.MediaTrack
	params       types.SendParameters
	setCalls     int
	setParamsErr error
}

func (s *Sender) Track() types.MediaTrack {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.track
}

func (s *Sender) GetParameters() types.SendParameters {
	s.lock.Lock()
	defer s.lock.Unlock()
	return types.SendParameters{
		Encodings: append([]types.EncodingLayer(nil), s.params.Encodings...),
		Codecs:    append([]types.Codec(nil), s.params.Codecs...),
	}
}

func (s *Sender) SetParameters(params types.SendParameters) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.setCalls++
	if s.setParamsErr != nil {
		return s.setParamsErr
	}
	s.params = params
	return nil
}

func (s *Sender) SetParametersCallCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.setCalls
}

func (s *Sender) FailSetParameters(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.setParamsErr = err
}

func (s *Sender) SetCodecs(codecs ...types.Codec) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.params.Codecs = codecs
}

type Receiver struct {
	track types.MediaTrack
}

func (r *Receiver) Track() types.MediaTrack { return r.track }

type Transceiver struct {
	lock        sync.Mutex
	mid         string
	kind        webrtc.RTPCodecType
	direction   webrtc.RTPTransceiverDirection
	sender      *Sender
	receiver    *Receiver
	init        types.TransceiverInit
	stopped     bool
	disposed    bool
	stepLog     *StepLog
	failStop    bool
	panicDelete bool
}

func (t *Transceiver) Mid() string {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.mid
}

func (t *Transceiver) SetMid(mid string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.mid = mid
}

func (t *Transceiver) Kind() webrtc.RTPCodecType { return t.kind }

func (t *Transceiver) Direction() webrtc.RTPTransceiverDirection { return t.direction }

func (t *Transceiver) Sender() types.Sender {
	if t.sender == nil {
		return nil
	}
	return t.sender
}

func (t *Transceiver) FakeSender() *Sender { return t.sender }

func (t *Transceiver) Receiver() types.Receiver {
	if t.receiver == nil {
		return nil
	}
	return t.receiver
}

func (t *Transceiver) Init() types.TransceiverInit { return t.init }

func (t *Transceiver) Stop() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.stepLog.Add("transceiver stop")
	if t.failStop {
		return ErrInjected
	}
	t.stopped = true
	return nil
}

func (t *Transceiver) Dispose() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.stepLog.Add("transceiver dispose")
	if t.panicDelete {
		panic("dispose")
	}
	t.disposed = true
	return nil
}

func (t *Transceiver) IsStopped() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.stopped
}

func (t *Transceiver) IsDisposed() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.disposed
}

func (t *Transceiver) FailStop(fail bool) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.failStop = fail
}

func (t *Transceiver) PanicOnDispose(panics bool) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.panicDelete = panics
}

// NewSendTransceiver builds a transceiver outside of a peer connection, for registry tests.
func NewSendTransceiver(track types.MediaTrack, stepLog *StepLog) *Transceiver {
	return &Transceiver{
		kind:      track.Kind(),
		direction: webrtc.RTPTransceiverDirectionSendonly,
		sender:    &Sender{track: track},
		stepLog:   stepLog,
	}
}
