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
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"github.com/livekit/rtc-session/pkg/rtc/types"
)

var (
	ErrNoCodec           = errors.New("no codec registered for media kind")
	ErrTrackEnded        = errors.New("track has ended")
	ErrUnsupportedTrack  = errors.New("track was not created by this engine")
	ErrRemoteTrackClone  = errors.New("remote tracks cannot be cloned")
	ErrTrackAlreadyBound = errors.New("track is already attached to a transceiver")
)

const keyframeRequestInterval = 500 * time.Millisecond

// a track and its clones, fed by the same source
type trackFamily struct {
	lock    sync.Mutex
	members []*LocalTrack
	clones  int
}

func (f *trackFamily) add(t *LocalTrack) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.members = append(f.members, t)
}

func (f *trackFamily) remove(t *LocalTrack) {
	f.lock.Lock()
	defer f.lock.Unlock()
	for i, m := range f.members {
		if m == t {
			f.members = append(f.members[:i], f.members[i+1:]...)
			return
		}
	}
}

func (f *trackFamily) nextCloneID(id string) string {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.clones++
	return fmt.Sprintf("%s-clone-%d", id, f.clones)
}

func (f *trackFamily) snapshot() []*LocalTrack {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]*LocalTrack(nil), f.members...)
}

// LocalTrack is an application-fed media track. The pion track backing it is created
// when it is attached to a transceiver, using the stream id and codec chosen there.
type LocalTrack struct {
	id         string
	streamID   string
	capability webrtc.RTPCodecCapability
	family     *trackFamily

	lock sync.RWMutex
	sink *webrtc.TrackLocalStaticSample

	enabled  atomic.Bool
	sending  atomic.Bool
	ended    atomic.Bool
	disposed atomic.Bool
}

func NewLocalTrack(capability webrtc.RTPCodecCapability, id string, streamID string) *LocalTrack {
	return newLocalTrack(capability, id, streamID, &trackFamily{})
}

func newLocalTrack(capability webrtc.RTPCodecCapability, id string, streamID string, family *trackFamily) *LocalTrack {
	t := &LocalTrack{
		id:         id,
		streamID:   streamID,
		capability: capability,
		family:     family,
	}
	t.enabled.Store(true)
	t.sending.Store(true)
	family.add(t)
	return t
}

func (t *LocalTrack) ID() string {
	return t.id
}

func (t *LocalTrack) Kind() webrtc.RTPCodecType {
	if strings.HasPrefix(strings.ToLower(t.capability.MimeType), "audio/") {
		return webrtc.RTPCodecTypeAudio
	}
	return webrtc.RTPCodecTypeVideo
}

func (t *LocalTrack) StreamID() string {
	t.lock.RLock()
	defer t.lock.RUnlock()
	if t.sink != nil {
		return t.sink.StreamID()
	}
	return t.streamID
}

// MimeType is the codec samples written to this track must be encoded with.
func (t *LocalTrack) MimeType() string {
	t.lock.RLock()
	defer t.lock.RUnlock()
	if t.sink != nil {
		return t.sink.Codec().MimeType
	}
	return t.capability.MimeType
}

func (t *LocalTrack) Enabled() bool {
	return t.enabled.Load()
}

func (t *LocalTrack) SetEnabled(enabled bool) error {
	if t.disposed.Load() {
		return ErrTrackEnded
	}
	t.enabled.Store(enabled)
	return nil
}

func (t *LocalTrack) State() types.TrackState {
	if t.ended.Load() {
		return types.TrackStateEnded
	}
	return types.TrackStateLive
}

func (t *LocalTrack) IsDisposed() bool {
	return t.disposed.Load()
}

func (t *LocalTrack) Dispose() error {
	if t.disposed.Swap(true) {
		return nil
	}
	t.family.remove(t)
	return nil
}

func (t *LocalTrack) Stop() error {
	t.ended.Store(true)
	t.enabled.Store(false)
	return nil
}

func (t *LocalTrack) Clone() (types.MediaTrack, error) {
	if t.ended.Load() {
		return nil, ErrTrackEnded
	}
	clone := newLocalTrack(t.capability, t.family.nextCloneID(t.id), t.streamID, t.family)
	clone.enabled.Store(t.enabled.Load())
	return clone, nil
}

// bind creates the pion track used by a transceiver.
func (t *LocalTrack) bind(capability webrtc.RTPCodecCapability, streamID string) (*webrtc.TrackLocalStaticSample, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.sink != nil {
		return nil, ErrTrackAlreadyBound
	}
	if streamID == "" {
		streamID = t.streamID
	}
	sink, err := webrtc.NewTrackLocalStaticSample(capability, t.id, streamID)
	if err != nil {
		return nil, err
	}
	t.sink = sink
	return sink, nil
}

func (t *LocalTrack) setSending(sending bool) {
	t.sending.Store(sending)
}

func (t *LocalTrack) writable(mimeType string) *webrtc.TrackLocalStaticSample {
	if t.disposed.Load() || t.ended.Load() || !t.enabled.Load() || !t.sending.Load() {
		return nil
	}
	t.lock.RLock()
	defer t.lock.RUnlock()
	if t.sink == nil || !strings.EqualFold(t.sink.Codec().MimeType, mimeType) {
		return nil
	}
	return t.sink
}

// WriteSample sends an encoded frame on this track and every clone using the same codec.
func (t *LocalTrack) WriteSample(sample media.Sample) error {
	return t.WriteCodecSample(t.MimeType(), sample)
}

// WriteCodecSample sends a frame encoded with mimeType to every track of the family
// bound to that codec. Disabled or paused tracks drop it.
func (t *LocalTrack) WriteCodecSample(mimeType string, sample media.Sample) error {
	if t.ended.Load() {
		return ErrTrackEnded
	}
	var firstErr error
	for _, member := range t.family.snapshot() {
		sink := member.writable(mimeType)
		if sink == nil {
			continue
		}
		if err := sink.WriteSample(sample); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RemoteTrack wraps a track received from the SFU.
type RemoteTrack struct {
	track     *webrtc.TrackRemote
	receiver  *webrtc.RTPReceiver
	writeRTCP func([]rtcp.Packet) error
	pliLimit  *rate.Limiter

	enabled  atomic.Bool
	ended    atomic.Bool
	disposed atomic.Bool
}

func newRemoteTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver, writeRTCP func([]rtcp.Packet) error) *RemoteTrack {
	t := &RemoteTrack{
		track:     track,
		receiver:  receiver,
		writeRTCP: writeRTCP,
		pliLimit:  rate.NewLimiter(rate.Every(keyframeRequestInterval), 1),
	}
	t.enabled.Store(true)
	return t
}

func (t *RemoteTrack) ID() string {
	return t.track.ID()
}

func (t *RemoteTrack) Kind() webrtc.RTPCodecType {
	return t.track.Kind()
}

func (t *RemoteTrack) StreamID() string {
	return t.track.StreamID()
}

func (t *RemoteTrack) Enabled() bool {
	return t.enabled.Load()
}

// SetEnabled gates ReadRTP. Re-enabling video requests a keyframe.
func (t *RemoteTrack) SetEnabled(enabled bool) error {
	if t.enabled.Swap(enabled) || !enabled || t.Kind() != webrtc.RTPCodecTypeVideo {
		return nil
	}
	return t.RequestKeyframe()
}

// RequestKeyframe sends a PLI, at most once per keyframeRequestInterval.
func (t *RemoteTrack) RequestKeyframe() error {
	if t.writeRTCP == nil || t.ended.Load() || !t.pliLimit.Allow() {
		return nil
	}
	return t.writeRTCP([]rtcp.Packet{
		&rtcp.PictureLossIndication{MediaSSRC: uint32(t.track.SSRC())},
	})
}

func (t *RemoteTrack) State() types.TrackState {
	if t.ended.Load() {
		return types.TrackStateEnded
	}
	return types.TrackStateLive
}

func (t *RemoteTrack) IsDisposed() bool {
	return t.disposed.Load()
}

func (t *RemoteTrack) Dispose() error {
	t.disposed.Store(true)
	return nil
}

func (t *RemoteTrack) Stop() error {
	if t.ended.Swap(true) {
		return nil
	}
	return t.receiver.Stop()
}

func (t *RemoteTrack) Clone() (types.MediaTrack, error) {
	return nil, ErrRemoteTrackClone
}

// ReadRTP returns the next packet. Packets arriving while the track is disabled are dropped.
func (t *RemoteTrack) ReadRTP() (*rtp.Packet, error) {
	for {
		pkt, _, err := t.track.ReadRTP()
		if err != nil {
			t.ended.Store(true)
			return nil, err
		}
		if t.enabled.Load() {
			return pkt, nil
		}
	}
}
