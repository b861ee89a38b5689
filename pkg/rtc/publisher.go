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
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/frostbyte73/core"
	"github.com/pion/webrtc/v3"
	"github.com/pkg/errors"
	"github.com/thoas/go-funk"
	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/rtc-session/pkg/rtc/layers"
	"github.com/livekit/rtc-session/pkg/rtc/transport"
	"github.com/livekit/rtc-session/pkg/rtc/types"
	"github.com/livekit/rtc-session/pkg/telemetry/prometheus"
	"github.com/livekit/rtc-session/pkg/utils"
)

const (
	defaultNegotiationDelay = 500 * time.Millisecond
)

type PublisherParams struct {
	SessionID      string
	TrackPrefix    string
	PeerConnection types.PeerConnection
	SignalClient   types.SignalClient
	PublishOptions []types.PublishOption
	// delay used to coalesce renegotiation requests
	NegotiationDelay  time.Duration
	CameraFormat      types.CaptureFormat
	ScreenShareFormat types.CaptureFormat
	StereoAudio       bool
	Logger            logger.Logger
}

// Publisher drives the send-only leg.
type Publisher struct {
	transport.UnimplementedHandler

	params    PublisherParams
	logger    logger.Logger
	transport *PCTransport
	registry  *TransceiverRegistry

	// serializes transceiver set changes across publish, unpublish and sync
	publishLock sync.Mutex

	lock           sync.RWMutex
	publishOptions []types.PublishOption
	captureFormats map[types.TrackType]types.CaptureFormat
	// publish option key -> id of the application track feeding it
	trackSources map[string]string

	negotiateLock      *semaphore.Weighted
	iceRestarting      atomic.Bool
	debouncedNegotiate func(func())

	ctx    context.Context
	cancel context.CancelFunc
	closed core.Fuse
}

func NewPublisher(params PublisherParams) (*Publisher, error) {
	if params.SignalClient == nil {
		return nil, ErrNoSignalClient
	}
	if params.Logger == nil {
		params.Logger = logger.GetLogger()
	}
	if params.NegotiationDelay <= 0 {
		params.NegotiationDelay = defaultNegotiationDelay
	}
	if params.CameraFormat.Width == 0 {
		params.CameraFormat = layers.DefaultCameraFormat
	}
	if params.ScreenShareFormat.Width == 0 {
		params.ScreenShareFormat = layers.DefaultScreenShareFormat
	}

	p := &Publisher{
		params:             params,
		logger:             params.Logger.WithValues("peer", types.PeerTypePublisher),
		publishOptions:     append([]types.PublishOption(nil), params.PublishOptions...),
		captureFormats:     make(map[types.TrackType]types.CaptureFormat),
		trackSources:       make(map[string]string),
		negotiateLock:      semaphore.NewWeighted(1),
		debouncedNegotiate: debounce.New(params.NegotiationDelay),
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.registry = NewTransceiverRegistry(p.logger)

	t, err := NewPCTransport(TransportParams{
		PeerType:       types.PeerTypePublisher,
		PeerConnection: params.PeerConnection,
		Handler:        p,
		Logger:         params.Logger,
	})
	if err != nil {
		return nil, err
	}
	p.transport = t
	return p, nil
}

func (p *Publisher) Transport() *PCTransport {
	return p.transport
}

func (p *Publisher) Registry() *TransceiverRegistry {
	return p.registry
}

func (p *Publisher) IsHealthy() bool {
	return p.transport.IsHealthy()
}

func (p *Publisher) IsFailedOrClosed() bool {
	return p.transport.IsFailedOrClosed()
}

// PublishOptions returns the options most recently issued by the SFU.
func (p *Publisher) PublishOptions() []types.PublishOption {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return append([]types.PublishOption(nil), p.publishOptions...)
}

// CurrentOptions returns the options that currently have a transceiver.
func (p *Publisher) CurrentOptions() []types.PublishOption {
	items := p.registry.Items()
	options := make([]types.PublishOption, 0, len(items))
	for _, item := range items {
		options = append(options, item.Option)
	}
	return options
}

func (p *Publisher) optionsFor(trackType types.TrackType) []types.PublishOption {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return funk.Filter(p.publishOptions, func(o types.PublishOption) bool {
		return o.TrackType == trackType
	}).([]types.PublishOption)
}

// PublishStream starts sending track for every publish option of trackType.
// A zero format falls back to the last known or default capture format.
func (p *Publisher) PublishStream(ctx context.Context, track types.MediaTrack, trackType types.TrackType, format types.CaptureFormat) error {
	if track.State() == types.TrackStateEnded {
		return ErrTrackEnded
	}
	options := p.optionsFor(trackType)
	if len(options) == 0 {
		p.logger.Warnw("no publish option for track", nil, "trackType", trackType)
		return ErrNoPublishOption
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.publishLock.Lock()
	defer p.publishLock.Unlock()

	if format.Width != 0 && format.Height != 0 {
		p.lock.Lock()
		p.captureFormats[trackType] = format
		p.lock.Unlock()
	}

	if !track.Enabled() {
		if err := track.SetEnabled(true); err != nil {
			p.logger.Warnw("could not enable track", err, "trackID", track.ID())
		}
	}

	for _, option := range options {
		if existing := p.registry.Get(option); existing != nil {
			if p.isSourceOf(option, track) {
				p.registry.Enable(option)
				continue
			}
			// bound to another track, recreate it with this one
			p.logger.Debugw("replacing transceiver track", "option", option, "trackID", track.ID())
			p.registry.Remove(option)
		}

		toSend := track
		if p.isAttached(track) {
			clone, err := track.Clone()
			if err != nil {
				return errors.Wrapf(err, "could not clone track for option %s", option.Key())
			}
			toSend = clone
		}
		if err := p.addTransceiver(toSend, track.ID(), option); err != nil {
			return err
		}
	}
	return nil
}

// isSourceOf reports whether option is currently fed by track.
func (p *Publisher) isSourceOf(option types.PublishOption, track types.MediaTrack) bool {
	p.lock.RLock()
	source := p.trackSources[option.Key()]
	p.lock.RUnlock()
	if source != track.ID() {
		return false
	}
	tr := p.registry.Get(option)
	if tr == nil || tr.Sender() == nil || tr.Sender().Track() == nil {
		return false
	}
	return !tr.Sender().Track().IsDisposed()
}

// isAttached reports whether track is already sent by some transceiver.
func (p *Publisher) isAttached(track types.MediaTrack) bool {
	for _, item := range p.registry.Items() {
		if t := item.Track(); t != nil && t.ID() == track.ID() {
			return true
		}
	}
	return false
}

func (p *Publisher) addTransceiver(track types.MediaTrack, sourceID string, option types.PublishOption) error {
	encodings := layers.ComputeLayers(p.captureFormat(option, types.CaptureFormat{}), option)

	init := types.TransceiverInit{
		Direction:     webrtc.RTPTransceiverDirectionSendonly,
		StreamIDs:     []string{types.StreamID(p.params.TrackPrefix, option.TrackType, utils.NewStreamSuffix())},
		SendEncodings: encodings,
	}
	if option.Codec != nil {
		init.CodecPreferences = []types.Codec{*option.Codec}
	}

	tr, err := p.transport.AddTransceiverFromTrack(track, init)
	if err != nil {
		return errors.Wrapf(err, "could not add transceiver for option %s", option.Key())
	}
	if _, added := p.registry.Add(option, tr); !added {
		// the option is already served, never leave a second sender behind
		p.registry.Discard(option, tr, track.ID() != sourceID)
		return nil
	}
	p.registry.SetLayers(option, encodings)

	p.lock.Lock()
	p.trackSources[option.Key()] = sourceID
	p.lock.Unlock()

	prometheus.SetPublishedTransceivers(p.registry.Len())
	p.logger.Debugw("added transceiver", "option", option, "trackID", track.ID(), "layers", len(encodings))
	return nil
}

// captureFormat picks, in order: explicit format, last reported format, option dimension, default.
func (p *Publisher) captureFormat(option types.PublishOption, override types.CaptureFormat) types.CaptureFormat {
	if override.Width != 0 && override.Height != 0 {
		return override
	}
	p.lock.RLock()
	format, ok := p.captureFormats[option.TrackType]
	p.lock.RUnlock()
	if ok {
		return format
	}

	fallback := p.params.CameraFormat
	if option.TrackType == types.TrackTypeScreenShare {
		fallback = p.params.ScreenShareFormat
	}
	if option.VideoDimension != nil && !option.VideoDimension.IsZero() {
		return types.CaptureFormat{
			Width:  option.VideoDimension.Width,
			Height: option.VideoDimension.Height,
			Fps:    fallback.Fps,
		}
	}
	return fallback
}

// UnpublishStream mutes every transceiver of trackType, or tears them down when stopTrack is set.
func (p *Publisher) UnpublishStream(trackType types.TrackType, stopTrack bool) {
	p.publishLock.Lock()
	defer p.publishLock.Unlock()

	if !stopTrack {
		p.registry.DisableIf(func(e TransceiverEntry) bool { return e.Option.TrackType == trackType })
		return
	}

	for _, item := range p.registry.Items() {
		if item.Option.TrackType != trackType {
			continue
		}
		if track := item.Track(); track != nil {
			if err := track.Stop(); err != nil {
				p.logger.Warnw("could not stop track", err, "trackID", track.ID())
			}
		}
	}
	removed := p.registry.RemoveIf(func(e TransceiverEntry) bool { return e.Option.TrackType == trackType })

	p.lock.Lock()
	for key := range p.trackSources {
		if !p.registryHasKey(key) {
			delete(p.trackSources, key)
		}
	}
	p.lock.Unlock()

	prometheus.SetPublishedTransceivers(p.registry.Len())
	p.logger.Debugw("unpublished stream", "trackType", trackType, "removed", removed)
}

func (p *Publisher) registryHasKey(key string) bool {
	for _, item := range p.registry.Items() {
		if item.Option.Key() == key {
			return true
		}
	}
	return false
}

// IsPublishing reports whether a live, enabled track of trackType is being sent.
func (p *Publisher) IsPublishing(trackType types.TrackType) bool {
	for _, item := range p.registry.Items() {
		if item.Option.TrackType != trackType {
			continue
		}
		track := item.Track()
		if track == nil {
			continue
		}
		if track.State() == types.TrackStateLive && track.Enabled() {
			return true
		}
	}
	return false
}

// GetPublishedTracks returns the tracks currently attached to a transceiver, in option order.
func (p *Publisher) GetPublishedTracks() []types.MediaTrack {
	var tracks []types.MediaTrack
	for _, item := range p.registry.Items() {
		if track := item.Track(); track != nil && !track.IsDisposed() {
			tracks = append(tracks, track)
		}
	}
	return tracks
}

func (p *Publisher) GetTrackType(trackID string) (types.TrackType, bool) {
	for _, item := range p.registry.Items() {
		if track := item.Track(); track != nil && track.ID() == trackID {
			return item.Option.TrackType, true
		}
	}
	return types.TrackTypeUnspecified, false
}

// SyncPublishOptions reconciles transceivers against a full option list from the SFU.
func (p *Publisher) SyncPublishOptions(ctx context.Context, options []types.PublishOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.publishLock.Lock()
	defer p.publishLock.Unlock()

	p.lock.Lock()
	p.publishOptions = append([]types.PublishOption(nil), options...)
	p.lock.Unlock()
	p.logger.Infow("syncing publish options", "options", options)

	for _, option := range options {
		if p.registry.Contains(option) {
			continue
		}
		if !p.IsPublishing(option.TrackType) {
			p.logger.Debugw("not publishing track type, skipping option", "option", option)
			continue
		}

		source, sourceID := p.sourceTrack(option.TrackType)
		if source == nil {
			p.logger.Warnw("no track to reuse for publish option", nil, "option", option)
			continue
		}
		clone, err := source.Clone()
		if err != nil {
			p.logger.Warnw("could not clone track for publish option", err, "option", option)
			continue
		}
		if err := p.addTransceiver(clone, sourceID, option); err != nil {
			p.logger.Warnw("could not add transceiver for publish option", err, "option", option)
		}
	}

	removed := p.registry.RemoveIf(func(e TransceiverEntry) bool {
		return !funk.Contains(options, func(o types.PublishOption) bool { return o.SameIdentity(e.Option) })
	})
	if removed > 0 {
		p.logger.Infow("removed revoked publish options", "count", removed)
		prometheus.SetPublishedTransceivers(p.registry.Len())
	}
	return nil
}

// sourceTrack finds a track of trackType already attached to a transceiver.
func (p *Publisher) sourceTrack(trackType types.TrackType) (types.MediaTrack, string) {
	for _, item := range p.registry.Items() {
		if item.Option.TrackType != trackType {
			continue
		}
		track := item.Track()
		if track == nil || track.IsDisposed() {
			continue
		}
		p.lock.RLock()
		sourceID := p.trackSources[item.Option.Key()]
		p.lock.RUnlock()
		if sourceID == "" {
			sourceID = track.ID()
		}
		return track, sourceID
	}
	return nil, ""
}

// OnRenegotiationNeeded coalesces engine requests into one negotiation.
func (p *Publisher) OnRenegotiationNeeded() {
	if p.closed.IsBroken() {
		return
	}
	p.debouncedNegotiate(func() {
		if p.closed.IsBroken() {
			return
		}
		if err := p.Negotiate(p.ctx, false); err != nil {
			p.logger.Warnw("renegotiation failed", err)
		}
	})
}

// Negotiate runs one offer/answer exchange with the SFU.
func (p *Publisher) Negotiate(ctx context.Context, iceRestart bool) error {
	if p.iceRestarting.Load() && !iceRestart {
		p.logger.Infow("ICE restart in progress, skipping negotiation")
		return nil
	}
	if iceRestart {
		defer p.iceRestarting.Store(false)
	}

	if err := p.negotiateLock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.negotiateLock.Release(1)

	start := time.Now()
	offer, err := p.transport.CreateOffer(ctx, iceRestart)
	if err != nil {
		return err
	}

	trackInfos := p.GetAnnouncedTracks(types.CaptureFormat{}, offer.SDP)
	if len(trackInfos) == 0 {
		p.logger.Warnw("cannot negotiate without announcing any tracks", ErrNoTracksToAnnounce)
		return ErrNoTracksToAnnounce
	}

	local, err := p.transport.SetLocalDescription(ctx, offer)
	if err != nil {
		return err
	}

	p.logger.Debugw("sending offer", "iceRestart", iceRestart, "tracks", len(trackInfos))
	res, err := p.params.SignalClient.SetPublisher(ctx, &types.SetPublisherRequest{
		SDP:       local.SDP,
		SessionID: p.params.SessionID,
		Tracks:    trackInfos,
	})
	prometheus.RecordNegotiationOp(types.PeerTypePublisher.String(), "set_publisher", err)
	if err != nil {
		return errors.Wrap(err, "set publisher request failed")
	}
	if res == nil {
		return ErrEmptyAnswer
	}
	if res.Error != nil {
		p.logger.Warnw("SFU rejected offer", res.Error, "iceRestart", iceRestart)
		return res.Error
	}
	if res.SDP == "" {
		return ErrEmptyAnswer
	}

	if err := p.transport.SetRemoteDescription(ctx, webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  res.SDP,
	}); err != nil {
		return err
	}

	prometheus.RecordNegotiationDuration(types.PeerTypePublisher.String(), time.Since(start))
	return nil
}

// RestartICE renegotiates with new ICE credentials, unless a restart or an offer is already pending.
func (p *Publisher) RestartICE(ctx context.Context) error {
	if p.transport.SignalingState() == webrtc.SignalingStateHaveLocalOffer {
		p.logger.Debugw("offer pending, skipping ICE restart")
		return nil
	}
	if !p.iceRestarting.CompareAndSwap(false, true) {
		p.logger.Debugw("ICE restart already in progress")
		return nil
	}
	p.logger.Infow("restarting ICE")
	return p.Negotiate(ctx, true)
}

// ChangePublishQuality applies the SFU's per-layer request to the matching sender.
func (p *Publisher) ChangePublishQuality(ctx context.Context, videoSender types.VideoSender) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	option := types.PublishOption{ID: videoSender.PublishOptionID, TrackType: videoSender.TrackType}
	enabledLayers := funk.Filter(videoSender.Layers, func(l types.VideoLayerSetting) bool {
		return l.Active
	}).([]types.VideoLayerSetting)
	p.logger.Debugw("update publish quality", "option", option.Key(), "enabledLayers", enabledLayers)

	tr := p.registry.Get(option)
	if tr == nil || tr.Sender() == nil || tr.Sender().Track() == nil || tr.Sender().Track().IsDisposed() {
		p.logger.Warnw("update publish quality, no video sender", nil, "option", option.Key())
		prometheus.RecordQualityChange(prometheus.StatusError)
		return ErrUnknownTransceiver
	}

	sender := tr.Sender()
	params := sender.GetParameters()
	if len(params.Encodings) == 0 {
		p.logger.Warnw("update publish quality, no encodings", nil, "option", option.Key())
		prometheus.RecordQualityChange(prometheus.StatusSkipped)
		return nil
	}

	codecInUse := ""
	if len(params.Codecs) > 0 {
		codecInUse = params.Codecs[0].Name
		if codecInUse == "" {
			codecInUse = params.Codecs[0].MimeType
		}
	}
	if !applyLayerSettings(params.Encodings, enabledLayers, layers.IsSVCCodec(codecInUse)) {
		p.logger.Debugw("update publish quality, no change", "option", option.Key())
		prometheus.RecordQualityChange(prometheus.StatusSkipped)
		return nil
	}

	if err := sender.SetParameters(params); err != nil {
		prometheus.RecordQualityChange(prometheus.StatusError)
		return errors.Wrap(err, "could not set sender parameters")
	}
	prometheus.RecordQualityChange(prometheus.StatusSuccess)
	p.logger.Infow("updated publish quality", "option", option.Key(), "encodings", params.Encodings)
	return nil
}

// applyLayerSettings mutates encodings in place and reports whether anything changed.
// SVC uses the first enabled layer; simulcast matches by rid, a lone encoding takes the first enabled layer.
func applyLayerSettings(encodings []types.EncodingLayer, enabledLayers []types.VideoLayerSetting, svc bool) bool {
	changed := false
	for i := range encodings {
		encoding := &encodings[i]

		var layer *types.VideoLayerSetting
		if svc {
			if len(enabledLayers) > 0 {
				layer = &enabledLayers[0]
			}
		} else {
			for j := range enabledLayers {
				if enabledLayers[j].Name == encoding.Rid {
					layer = &enabledLayers[j]
					break
				}
			}
			if layer == nil && len(encodings) == 1 && len(enabledLayers) > 0 {
				layer = &enabledLayers[0]
			}
		}

		active := layer != nil && layer.Active
		if active != encoding.Active {
			encoding.Active = active
			changed = true
		}
		if layer == nil {
			continue
		}

		if layer.ScaleResolutionDownBy >= 1 && layer.ScaleResolutionDownBy != encoding.ScaleResolutionDownBy {
			encoding.ScaleResolutionDownBy = layer.ScaleResolutionDownBy
			changed = true
		}
		if layer.MaxBitrate > 0 && layer.MaxBitrate != encoding.MaxBitrateBps {
			encoding.MaxBitrateBps = layer.MaxBitrate
			changed = true
		}
		if layer.MaxFramerate > 0 && layer.MaxFramerate != encoding.MaxFramerate {
			encoding.MaxFramerate = layer.MaxFramerate
			changed = true
		}
		if layer.ScalabilityMode != "" && layer.ScalabilityMode != encoding.ScalabilityMode {
			encoding.ScalabilityMode = layer.ScalabilityMode
			changed = true
		}
	}
	return changed
}

// GetAnnouncedTracks describes every live transceiver, recomputing layers for live tracks.
// sdp is used for mid lookup and defaults to the current local description.
func (p *Publisher) GetAnnouncedTracks(format types.CaptureFormat, sdp string) []types.TrackInfo {
	if sdp == "" {
		if local := p.transport.LocalDescription(); local != nil {
			sdp = local.SDP
		}
	}

	var trackInfos []types.TrackInfo
	for idx, item := range p.registry.Items() {
		track := item.Track()
		if track == nil || track.IsDisposed() {
			continue
		}
		trackInfos = append(trackInfos, p.toTrackInfo(item, track, idx, format, sdp, true))
	}
	return trackInfos
}

// GetAnnouncedTracksForReconnect reuses the last computed layers, capture may be stopped while reconnecting.
func (p *Publisher) GetAnnouncedTracksForReconnect() []types.TrackInfo {
	sdp := ""
	if local := p.transport.LocalDescription(); local != nil {
		sdp = local.SDP
	}

	var trackInfos []types.TrackInfo
	for idx, item := range p.registry.Items() {
		track := item.Track()
		if track == nil {
			continue
		}
		trackInfos = append(trackInfos, p.toTrackInfo(item, track, idx, types.CaptureFormat{}, sdp, false))
	}
	p.logger.Infow("announced tracks for reconnect", "count", len(trackInfos))
	return trackInfos
}

func (p *Publisher) toTrackInfo(
	item TransceiverEntry,
	track types.MediaTrack,
	idx int,
	format types.CaptureFormat,
	sdp string,
	recompute bool,
) types.TrackInfo {
	option := item.Option
	live := track.State() == types.TrackStateLive

	var encodings []types.EncodingLayer
	if !option.TrackType.IsAudio() {
		if live && recompute {
			encodings = layers.ComputeLayers(p.captureFormat(option, format), option)
		} else {
			encodings = item.Layers
		}
	}
	p.registry.SetLayers(option, encodings)

	return types.TrackInfo{
		TrackID:   track.ID(),
		TrackType: option.TrackType,
		Layers:    layers.ToVideoLayers(encodings),
		Mid:       extractMid(item.Transceiver, track, idx, sdp),
		Muted:     !live,
		Stereo:    option.TrackType.IsAudio() && p.params.StereoAudio,
		Codec:     option.Codec,
	}
}

// extractMid prefers the negotiated mid, then the SDP, then the transceiver's ordinal position.
func extractMid(tr types.Transceiver, track types.MediaTrack, idx int, sdp string) string {
	if mid := tr.Mid(); mid != "" {
		return mid
	}
	if mid, ok := extractMidFromSDP(sdp, track.Kind(), track.ID(), track.StreamID()); ok {
		return mid
	}
	if idx >= 0 {
		return strconv.Itoa(idx)
	}
	return ""
}

// transport.Handler

func (p *Publisher) OnICECandidate(c *webrtc.ICECandidateInit, target types.PeerType) error {
	return trickleICECandidate(p.ctx, p.params.SignalClient, p.params.SessionID, c, target)
}

// trickleICECandidate forwards a local candidate to the SFU.
func trickleICECandidate(ctx context.Context, client types.SignalClient, sessionID string, c *webrtc.ICECandidateInit, target types.PeerType) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	res, err := client.ICETrickle(ctx, &types.ICETrickleRequest{
		PeerType:     target,
		ICECandidate: string(payload),
		SessionID:    sessionID,
	})
	if err == nil && res != nil && res.Error != nil {
		err = res.Error
	}
	return err
}

func (p *Publisher) OnConnectionStateChange(state webrtc.PeerConnectionState) {
	p.logger.Debugw("publisher connection state", "state", state)
}

func (p *Publisher) OnFailed() {
	p.logger.Warnw("publisher connection failed", nil,
		"connectionState", p.transport.ConnectionState(),
		"iceState", p.transport.ICEConnectionState(),
	)
}

// Close tears down every transceiver and the peer connection. With stopTracks the
// application tracks are stopped as well.
func (p *Publisher) Close(stopTracks bool) {
	if p.closed.IsBroken() {
		return
	}
	p.closed.Break()
	p.cancel()

	if stopTracks {
		for _, item := range p.registry.Items() {
			track := item.Track()
			if track == nil {
				continue
			}
			func() {
				defer func() {
					if r := recover(); r != nil {
						p.logger.Warnw("stopping track panicked", nil, "trackID", track.ID(), "panic", r)
					}
				}()
				if err := track.Stop(); err != nil {
					p.logger.Warnw("could not stop track", err, "trackID", track.ID())
				}
			}()
		}
	}
	p.registry.Clear()
	p.transport.Close()
	prometheus.SetPublishedTransceivers(0)
}
