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
	"sort"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/frostbyte73/core"
	"github.com/gammazero/deque"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pion/webrtc/v3"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/rtc-session/pkg/rtc/transport"
	"github.com/livekit/rtc-session/pkg/rtc/types"
	"github.com/livekit/rtc-session/pkg/telemetry/prometheus"
	"github.com/livekit/rtc-session/pkg/utils"
)

const (
	defaultSubscriptionDelay       = 300 * time.Millisecond
	defaultMaxDefaultSubscriptions = 5
	defaultTrackOwnerCacheSize     = 1000
	// above this many subscriptions large tiles are throttled
	throttleSubscriptionCount = 2
)

var (
	DefaultVideoDimension   = types.VideoDimension{Width: 720, Height: 1280}
	ThrottledVideoDimension = types.VideoDimension{Width: 180, Height: 320}
)

type SubscriberParams struct {
	SessionID      string
	PeerConnection types.PeerConnection
	SignalClient   types.SignalClient
	// copy opus stereo=1 from the SFU offer into the answer
	EnableStereo            bool
	SubscriptionDelay       time.Duration
	MaxDefaultSubscriptions int
	TrackOverrides          types.TrackOverrides
	TrackOwnerCacheSize     int
	DefaultDimension        types.VideoDimension
	ThrottledDimension      types.VideoDimension
	Logger                  logger.Logger
}

// ReceivedStream is a remote track resolved to its owner.
type ReceivedStream struct {
	SessionID string
	TrackType types.TrackType
	Track     types.MediaTrack
}

type trackOwner struct {
	sessionID string
	trackType types.TrackType
}

type viewportKey struct {
	sessionID  string
	viewportID string
	trackType  types.TrackType
}

type subscriptionKey struct {
	sessionID string
	trackType types.TrackType
}

type participantTracks struct {
	lock   sync.RWMutex
	tracks map[types.TrackType]types.MediaTrack
}

// Subscriber drives the receive-only leg and decides which remote tracks to pull.
type Subscriber struct {
	transport.UnimplementedHandler

	params       SubscriberParams
	logger       logger.Logger
	transport    *PCTransport
	sdpProcessor *utils.SerialProcessor
	enabled      atomic.Bool

	// session id -> *participantTracks
	tracks sync.Map

	dimensionsLock  sync.RWMutex
	trackDimensions map[viewportKey]types.TrackDimensions

	subscriptionsLock     sync.Mutex
	subscriptions         []types.TrackSubscriptionDetails
	previousSubscriptions []types.TrackSubscriptionDetails

	prefixLock    sync.Mutex
	trackPrefixes map[string]string
	pendingTracks deque.Deque[types.MediaTrack]
	trackOwners   *lru.Cache[string, trackOwner]
	onStream      func(stream ReceivedStream)

	debouncedSubscriptions func(func())

	ctx    context.Context
	cancel context.CancelFunc
	closed core.Fuse
}

func NewSubscriber(params SubscriberParams) (*Subscriber, error) {
	if params.SignalClient == nil {
		return nil, ErrNoSignalClient
	}
	if params.Logger == nil {
		params.Logger = logger.GetLogger()
	}
	if params.SubscriptionDelay <= 0 {
		params.SubscriptionDelay = defaultSubscriptionDelay
	}
	if params.MaxDefaultSubscriptions <= 0 {
		params.MaxDefaultSubscriptions = defaultMaxDefaultSubscriptions
	}
	if params.TrackOwnerCacheSize <= 0 {
		params.TrackOwnerCacheSize = defaultTrackOwnerCacheSize
	}
	if params.DefaultDimension.IsZero() {
		params.DefaultDimension = DefaultVideoDimension
	}
	if params.ThrottledDimension.IsZero() {
		params.ThrottledDimension = ThrottledVideoDimension
	}

	owners, err := lru.New[string, trackOwner](params.TrackOwnerCacheSize)
	if err != nil {
		return nil, err
	}

	s := &Subscriber{
		params:                 params,
		logger:                 params.Logger.WithValues("peer", types.PeerTypeSubscriber),
		trackDimensions:        make(map[viewportKey]types.TrackDimensions),
		trackPrefixes:          make(map[string]string),
		trackOwners:            owners,
		debouncedSubscriptions: debounce.New(params.SubscriptionDelay),
	}
	s.enabled.Store(true)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.sdpProcessor = utils.NewSerialProcessor(s.logger)

	t, err := NewPCTransport(TransportParams{
		PeerType:       types.PeerTypeSubscriber,
		PeerConnection: params.PeerConnection,
		Handler:        s,
		Logger:         params.Logger,
	})
	if err != nil {
		s.sdpProcessor.Stop()
		return nil, err
	}
	s.transport = t
	return s, nil
}

func (s *Subscriber) Transport() *PCTransport {
	return s.transport
}

func (s *Subscriber) IsEnabled() bool {
	return s.enabled.Load()
}

func (s *Subscriber) IsHealthy() bool {
	return s.transport.IsHealthy()
}

func (s *Subscriber) IsFailedOrClosed() bool {
	return s.transport.IsFailedOrClosed()
}

// OnStream sets the callback invoked for every remote track resolved to a participant.
func (s *Subscriber) OnStream(f func(stream ReceivedStream)) {
	s.prefixLock.Lock()
	defer s.prefixLock.Unlock()
	s.onStream = f
}

// tracks

func (s *Subscriber) participant(sessionID string, create bool) *participantTracks {
	if v, ok := s.tracks.Load(sessionID); ok {
		return v.(*participantTracks)
	}
	if !create {
		return nil
	}
	v, _ := s.tracks.LoadOrStore(sessionID, &participantTracks{
		tracks: make(map[types.TrackType]types.MediaTrack),
	})
	return v.(*participantTracks)
}

func (s *Subscriber) GetTrack(sessionID string, trackType types.TrackType) types.MediaTrack {
	p := s.participant(sessionID, false)
	if p == nil {
		return nil
	}
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.tracks[trackType]
}

func (s *Subscriber) SetTrack(sessionID string, trackType types.TrackType, track types.MediaTrack) {
	p := s.participant(sessionID, true)
	p.lock.Lock()
	defer p.lock.Unlock()
	p.tracks[trackType] = track
}

// RemoveTracks drops every track received from sessionID.
func (s *Subscriber) RemoveTracks(sessionID string) {
	s.tracks.Delete(sessionID)
}

func (s *Subscriber) ClearTracks() {
	s.tracks.Range(func(key, _ any) bool {
		s.tracks.Delete(key)
		return true
	})
}

// ParticipantLeft forgets tracks and viewport state of a departed participant.
func (s *Subscriber) ParticipantLeft(sessionID string) {
	s.RemoveTracks(sessionID)

	s.dimensionsLock.Lock()
	for key := range s.trackDimensions {
		if key.sessionID == sessionID {
			delete(s.trackDimensions, key)
		}
	}
	s.dimensionsLock.Unlock()

	for _, trackID := range s.trackOwners.Keys() {
		if owner, ok := s.trackOwners.Peek(trackID); ok && owner.sessionID == sessionID {
			s.trackOwners.Remove(trackID)
		}
	}
}

// TrackOwner resolves a received track id to the participant and track type it belongs to.
func (s *Subscriber) TrackOwner(trackID string) (string, types.TrackType, bool) {
	owner, ok := s.trackOwners.Get(trackID)
	if !ok {
		return "", types.TrackTypeUnspecified, false
	}
	return owner.sessionID, owner.trackType, true
}

// dimensions

func (s *Subscriber) subscriptionCount() int {
	s.subscriptionsLock.Lock()
	defer s.subscriptionsLock.Unlock()
	return len(s.subscriptions)
}

func (s *Subscriber) throttle(dimension types.VideoDimension, subscriptions int) types.VideoDimension {
	throttled := s.params.ThrottledDimension
	if subscriptions > throttleSubscriptionCount &&
		dimension.Height > throttled.Height &&
		dimension.Width > throttled.Width {
		return throttled
	}
	return dimension
}

// normalized returns the dimension in portrait orientation.
func normalized(dimension types.VideoDimension) types.VideoDimension {
	if dimension.Width <= dimension.Height {
		return dimension
	}
	return types.VideoDimension{Width: dimension.Height, Height: dimension.Width}
}

// SetTrackDimension records what a viewport shows for a remote track. A zero dimension
// keeps the last known size for that viewport.
func (s *Subscriber) SetTrackDimension(viewportID string, sessionID string, trackType types.TrackType, visible bool, dimension types.VideoDimension) {
	count := s.subscriptionCount()
	key := viewportKey{sessionID: sessionID, viewportID: viewportID, trackType: trackType}

	s.dimensionsLock.Lock()
	defer s.dimensionsLock.Unlock()

	actual := dimension
	if dimension.IsZero() {
		actual = s.params.DefaultDimension
		if existing, ok := s.trackDimensions[key]; ok {
			actual = existing.Dimension
		}
	}
	s.trackDimensions[key] = types.TrackDimensions{
		Dimension: normalized(s.throttle(actual, count)),
		Visible:   visible,
	}
}

// ViewportDimensions returns, per participant and track type, the largest viewport.
func (s *Subscriber) ViewportDimensions() map[string]map[types.TrackType]types.TrackDimensions {
	s.dimensionsLock.RLock()
	defer s.dimensionsLock.RUnlock()

	result := make(map[string]map[types.TrackType]types.TrackDimensions)
	for key, value := range s.trackDimensions {
		byType, ok := result[key.sessionID]
		if !ok {
			byType = make(map[types.TrackType]types.TrackDimensions)
			result[key.sessionID] = byType
		}
		if current, ok := byType[key.trackType]; !ok || current.Dimension.Area() < value.Dimension.Area() {
			byType[key.trackType] = value
		}
	}
	return result
}

// subscriptions

func (s *Subscriber) Subscriptions() []types.TrackSubscriptionDetails {
	s.subscriptionsLock.Lock()
	defer s.subscriptionsLock.Unlock()
	return append([]types.TrackSubscriptionDetails(nil), s.subscriptions...)
}

// ScheduleVideoSubscriptions coalesces rapid visibility changes into one update.
func (s *Subscriber) ScheduleVideoSubscriptions(participants []types.ParticipantInfo, useDefaults bool) {
	if s.closed.IsBroken() {
		return
	}
	s.debouncedSubscriptions(func() {
		if err := s.SetVideoSubscriptions(s.ctx, participants, useDefaults); err != nil {
			s.logger.Warnw("could not update subscriptions", err)
		}
	})
}

// SetVideoSubscriptions recomputes the full subscription list and sends it to the SFU
// unless it equals the last list the SFU accepted.
func (s *Subscriber) SetVideoSubscriptions(ctx context.Context, participants []types.ParticipantInfo, useDefaults bool) error {
	var tracks []types.TrackSubscriptionDetails
	if useDefaults {
		tracks = s.defaultTracks(participants)
	} else {
		tracks = s.visibleTracks(participants)
	}
	if s.params.TrackOverrides != nil {
		tracks = s.params.TrackOverrides.ApplyOverrides(tracks)
	}
	tracks = dedupeSubscriptions(tracks)

	s.subscriptionsLock.Lock()
	s.subscriptions = tracks
	changed := subscriptionsChanged(tracks, s.previousSubscriptions)
	s.subscriptionsLock.Unlock()

	if !changed {
		s.logger.Debugw("subscriptions unchanged, skipping update", "count", len(tracks))
		prometheus.RecordSubscriptionUpdate(prometheus.StatusSkipped, len(tracks))
		return nil
	}

	s.logger.Debugw("updating subscriptions", "useDefaults", useDefaults, "tracks", tracks)
	res, err := s.params.SignalClient.UpdateSubscriptions(ctx, &types.UpdateSubscriptionsRequest{
		SessionID: s.params.SessionID,
		Tracks:    tracks,
	})
	if err == nil && res != nil && res.Error != nil {
		err = res.Error
	}
	if err != nil {
		prometheus.RecordSubscriptionUpdate(prometheus.StatusError, len(tracks))
		return errors.Wrap(err, "update subscriptions failed")
	}

	s.subscriptionsLock.Lock()
	s.previousSubscriptions = append([]types.TrackSubscriptionDetails(nil), tracks...)
	s.subscriptionsLock.Unlock()
	prometheus.RecordSubscriptionUpdate(prometheus.StatusSuccess, len(tracks))
	return nil
}

// defaultTracks subscribes to the first remote participants with media, at the default size.
func (s *Subscriber) defaultTracks(participants []types.ParticipantInfo) []types.TrackSubscriptionDetails {
	var tracks []types.TrackSubscriptionDetails
	selected := 0
	for _, p := range participants {
		if selected >= s.params.MaxDefaultSubscriptions {
			break
		}
		if p.SessionID == s.params.SessionID || !p.HasMedia() {
			continue
		}
		selected++

		if p.VideoEnabled {
			tracks = append(tracks, subscriptionFor(p, types.TrackTypeVideo, s.params.DefaultDimension))
		}
		if p.ScreenShareEnabled {
			tracks = append(tracks, subscriptionFor(p, types.TrackTypeScreenShare, s.params.DefaultDimension))
		}
	}
	return tracks
}

// visibleTracks subscribes to every track some viewport currently shows.
func (s *Subscriber) visibleTracks(participants []types.ParticipantInfo) []types.TrackSubscriptionDetails {
	count := s.subscriptionCount()

	s.dimensionsLock.RLock()
	largest := make(map[subscriptionKey]types.VideoDimension)
	for key, value := range s.trackDimensions {
		if !value.Visible {
			continue
		}
		k := subscriptionKey{sessionID: key.sessionID, trackType: key.trackType}
		if current, ok := largest[k]; !ok || current.Area() < value.Dimension.Area() {
			largest[k] = value.Dimension
		}
	}
	s.dimensionsLock.RUnlock()

	var tracks []types.TrackSubscriptionDetails
	for _, p := range participants {
		if p.SessionID == s.params.SessionID {
			continue
		}
		var trackTypes []types.TrackType
		for k := range largest {
			if k.sessionID == p.SessionID {
				trackTypes = append(trackTypes, k.trackType)
			}
		}
		sort.Slice(trackTypes, func(i, j int) bool { return trackTypes[i] < trackTypes[j] })

		for _, trackType := range trackTypes {
			dimension := largest[subscriptionKey{sessionID: p.SessionID, trackType: trackType}]
			tracks = append(tracks, subscriptionFor(p, trackType, s.throttle(dimension, count)))
		}
	}
	return tracks
}

func subscriptionFor(p types.ParticipantInfo, trackType types.TrackType, dimension types.VideoDimension) types.TrackSubscriptionDetails {
	d := dimension
	return types.TrackSubscriptionDetails{
		UserID:    p.UserID,
		SessionID: p.SessionID,
		TrackType: trackType,
		Dimension: &d,
	}
}

// dedupeSubscriptions keeps one entry per participant and track type, later entries win.
func dedupeSubscriptions(tracks []types.TrackSubscriptionDetails) []types.TrackSubscriptionDetails {
	index := make(map[subscriptionKey]int, len(tracks))
	out := make([]types.TrackSubscriptionDetails, 0, len(tracks))
	for _, t := range tracks {
		k := subscriptionKey{sessionID: t.SessionID, trackType: t.TrackType}
		if i, ok := index[k]; ok {
			out[i] = t
			continue
		}
		index[k] = len(out)
		out = append(out, t)
	}
	return out
}

func subscriptionsChanged(current, previous []types.TrackSubscriptionDetails) bool {
	if len(current) != len(previous) {
		return true
	}
	byKey := make(map[subscriptionKey]types.TrackSubscriptionDetails, len(previous))
	for _, t := range previous {
		byKey[subscriptionKey{sessionID: t.SessionID, trackType: t.TrackType}] = t
	}
	for _, t := range current {
		prev, ok := byKey[subscriptionKey{sessionID: t.SessionID, trackType: t.TrackType}]
		if !ok || !prev.Equal(t) {
			return true
		}
	}
	return false
}

// negotiation

// Negotiate answers an SFU offer. Steps run in order and the first failure aborts,
// so no answer is sent for a partially applied offer.
func (s *Subscriber) Negotiate(ctx context.Context, offerSDP string) error {
	// closing the subscriber cancels the exchange
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	return s.sdpProcessor.Submit(ctx, "subscriber-negotiate", func(ctx context.Context) error {
		start := time.Now()
		if err := s.transport.SetRemoteDescription(ctx, webrtc.SessionDescription{
			Type: webrtc.SDPTypeOffer,
			SDP:  offerSDP,
		}); err != nil {
			return err
		}

		answer, err := s.transport.CreateAnswer(ctx)
		if err != nil {
			return err
		}
		if s.params.EnableStereo {
			munged, err := enableStereo(offerSDP, answer.SDP)
			if err != nil {
				s.logger.Warnw("could not enable stereo in answer", err)
			} else {
				answer.SDP = munged
			}
		}

		local, err := s.transport.SetLocalDescription(ctx, answer)
		if err != nil {
			return err
		}

		res, err := s.params.SignalClient.SendAnswer(ctx, &types.SendAnswerRequest{
			PeerType:  types.PeerTypeSubscriber,
			SDP:       local.SDP,
			SessionID: s.params.SessionID,
		})
		if err == nil && res != nil && res.Error != nil {
			err = res.Error
		}
		prometheus.RecordNegotiationOp(types.PeerTypeSubscriber.String(), "send_answer", err)
		if err != nil {
			return errors.Wrap(err, "send answer failed")
		}

		prometheus.RecordNegotiationDuration(types.PeerTypeSubscriber.String(), time.Since(start))
		s.logger.Debugw("subscriber negotiated", "duration", time.Since(start))
		return nil
	})
}

// HandleICECandidate applies a remote candidate trickled by the SFU.
func (s *Subscriber) HandleICECandidate(ctx context.Context, c webrtc.ICECandidateInit) error {
	return s.transport.HandleNewICECandidate(ctx, c)
}

// RestartICE asks the SFU for a fresh offer with new ICE credentials. Single attempt.
func (s *Subscriber) RestartICE(ctx context.Context) error {
	res, err := s.params.SignalClient.ICERestart(ctx, &types.ICERestartRequest{
		SessionID: s.params.SessionID,
		PeerType:  types.PeerTypeSubscriber,
	})
	if err == nil && res != nil && res.Error != nil {
		err = res.Error
	}
	prometheus.RecordNegotiationOp(types.PeerTypeSubscriber.String(), "ice_restart", err)
	if err != nil {
		return errors.Wrap(err, "ICE restart request failed")
	}
	return nil
}

// AddTransceivers pre-creates receive-only video and audio transceivers.
func (s *Subscriber) AddTransceivers() error {
	init := types.TransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly}
	if _, err := s.transport.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, init); err != nil {
		return errors.Wrap(err, "could not add video transceiver")
	}
	if _, err := s.transport.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, init); err != nil {
		return errors.Wrap(err, "could not add audio transceiver")
	}
	return nil
}

func (s *Subscriber) Disable() {
	s.logger.Debugw("disabling all receiver tracks")
	s.enabled.Store(false)
	s.setReceiversEnabled(false)
}

func (s *Subscriber) Enable() {
	s.logger.Debugw("enabling all receiver tracks")
	s.enabled.Store(true)
	s.setReceiversEnabled(true)
}

func (s *Subscriber) setReceiversEnabled(enabled bool) {
	for _, tr := range s.transport.Transceivers() {
		receiver := tr.Receiver()
		if receiver == nil {
			continue
		}
		track := receiver.Track()
		if track == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Warnw("toggling receiver track panicked", nil, "trackID", track.ID(), "panic", r)
				}
			}()
			if err := track.SetEnabled(enabled); err != nil {
				s.logger.Warnw("could not toggle receiver track", err, "trackID", track.ID(), "enabled", enabled)
			}
		}()
	}
}

// remote streams

// SetTrackLookupPrefixes replaces the track prefix -> session id map and resolves
// tracks that arrived before it was known.
func (s *Subscriber) SetTrackLookupPrefixes(prefixes map[string]string) {
	s.prefixLock.Lock()
	s.trackPrefixes = make(map[string]string, len(prefixes))
	for prefix, sessionID := range prefixes {
		s.trackPrefixes[prefix] = sessionID
	}
	pending := make([]types.MediaTrack, 0, s.pendingTracks.Len())
	for s.pendingTracks.Len() > 0 {
		pending = append(pending, s.pendingTracks.PopFront())
	}
	s.prefixLock.Unlock()

	if len(pending) > 0 {
		s.logger.Debugw("resolving pending tracks", "count", len(pending))
	}
	for _, track := range pending {
		s.handleTrack(track)
	}
}

func (s *Subscriber) OnTrack(track types.MediaTrack) {
	s.handleTrack(track)
}

func (s *Subscriber) handleTrack(track types.MediaTrack) {
	s.prefixLock.Lock()
	if len(s.trackPrefixes) == 0 {
		s.pendingTracks.PushBack(track)
		s.prefixLock.Unlock()
		s.logger.Debugw("track prefixes unknown, holding track", "trackID", track.ID(), "streamID", track.StreamID())
		return
	}
	prefix, trackType, err := types.ParseStreamID(track.StreamID())
	if err != nil {
		s.prefixLock.Unlock()
		s.logger.Warnw("could not parse stream id", err, "trackID", track.ID(), "streamID", track.StreamID())
		return
	}
	sessionID := s.trackPrefixes[prefix]
	onStream := s.onStream
	s.prefixLock.Unlock()

	if sessionID == "" {
		s.logger.Debugw("skipping track with unknown prefix", "prefix", prefix, "streamID", track.StreamID())
		return
	}

	if err := track.SetEnabled(s.enabled.Load()); err != nil {
		s.logger.Warnw("could not toggle received track", err, "trackID", track.ID())
	}
	s.trackOwners.Add(track.ID(), trackOwner{sessionID: sessionID, trackType: trackType})
	s.SetTrack(sessionID, trackType, track)
	s.logger.Infow("received track", "sessionID", sessionID, "trackType", trackType, "trackID", track.ID())

	if onStream != nil {
		onStream(ReceivedStream{SessionID: sessionID, TrackType: trackType, Track: track})
	}
}

// transport.Handler

func (s *Subscriber) OnICECandidate(c *webrtc.ICECandidateInit, target types.PeerType) error {
	return trickleICECandidate(s.ctx, s.params.SignalClient, s.params.SessionID, c, target)
}

func (s *Subscriber) OnICEConnectionStateChange(state webrtc.ICEConnectionState) {
	s.logger.Debugw("subscriber ICE state", "state", state)
}

func (s *Subscriber) OnFailed() {
	s.logger.Warnw("subscriber connection failed", nil,
		"connectionState", s.transport.ConnectionState(),
		"iceState", s.transport.ICEConnectionState(),
	)
}

func (s *Subscriber) Close() {
	if s.closed.IsBroken() {
		return
	}
	s.closed.Break()
	s.cancel()
	s.sdpProcessor.Stop()

	s.ClearTracks()
	s.dimensionsLock.Lock()
	s.trackDimensions = make(map[viewportKey]types.TrackDimensions)
	s.dimensionsLock.Unlock()
	s.subscriptionsLock.Lock()
	s.subscriptions = nil
	s.previousSubscriptions = nil
	s.subscriptionsLock.Unlock()
	s.trackOwners.Purge()

	s.transport.Close()
}
