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
	"fmt"

	"github.com/pion/ice/v2"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
	"github.com/pkg/errors"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/rtc-session/pkg/config"
	serverlogger "github.com/livekit/rtc-session/pkg/logger"
	"github.com/livekit/rtc-session/pkg/rtc/types"
)

type EngineParams struct {
	Config *config.RTCConfig
	// empty enables every supported codec
	EnabledCodecs []types.Codec
	Logger        logger.Logger
}

// Engine creates pion peer connections that share one media and setting engine.
type Engine struct {
	api           *webrtc.API
	configuration webrtc.Configuration
	codecs        codecTable
	logger        logger.Logger
}

func NewEngine(ctx context.Context, params EngineParams) (*Engine, error) {
	if params.Config == nil {
		params.Config = &config.DefaultConfig.RTC
	}
	if params.Logger == nil {
		params.Logger = logger.GetLogger()
	}
	conf := params.Config

	me := &webrtc.MediaEngine{}
	codecs, err := registerCodecs(me, params.EnabledCodecs)
	if err != nil {
		return nil, errors.Wrap(err, "could not register codecs")
	}

	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(me, ir); err != nil {
		return nil, errors.Wrap(err, "could not register interceptors")
	}

	se := webrtc.SettingEngine{
		LoggerFactory: serverlogger.LoggerFactory(),
	}
	if conf.ICEPortRangeStart != 0 && conf.ICEPortRangeEnd != 0 {
		if err := se.SetEphemeralUDPPortRange(conf.ICEPortRangeStart, conf.ICEPortRangeEnd); err != nil {
			return nil, err
		}
	}
	if conf.DisableMDNS {
		se.SetICEMulticastDNSMode(ice.MulticastDNSModeDisabled)
	}
	natIPs, err := conf.NAT1To1IPs(ctx)
	if err != nil {
		return nil, err
	}
	if len(natIPs) > 0 {
		se.SetNAT1To1IPs(natIPs, webrtc.ICECandidateTypeHost)
	}

	c := webrtc.Configuration{
		SDPSemantics: webrtc.SDPSemanticsUnifiedPlan,
	}
	iceUrls := make([]string, 0, len(conf.STUNServers))
	for _, stunServer := range conf.STUNServers {
		iceUrls = append(iceUrls, fmt.Sprintf("stun:%s", stunServer))
	}
	if len(iceUrls) > 0 {
		c.ICEServers = []webrtc.ICEServer{{URLs: iceUrls}}
	}

	return &Engine{
		api: webrtc.NewAPI(
			webrtc.WithMediaEngine(me),
			webrtc.WithSettingEngine(se),
			webrtc.WithInterceptorRegistry(ir),
		),
		configuration: c,
		codecs:        codecs,
		logger:        params.Logger,
	}, nil
}

// NewPeerConnection returns a connection for one leg of the session.
func (e *Engine) NewPeerConnection(peerType types.PeerType) (*PeerConnection, error) {
	pc, err := e.api.NewPeerConnection(e.configuration)
	if err != nil {
		return nil, err
	}
	return newPeerConnection(pc, e.codecs, e.logger.WithValues("peer", peerType)), nil
}

// Codecs lists the registered codecs of kind in preference order.
func (e *Engine) Codecs(kind webrtc.RTPCodecType) []types.Codec {
	var codecs []types.Codec
	for _, c := range e.codecs[kind] {
		codecs = append(codecs, toCodec(c))
	}
	return codecs
}

// NewLocalTrack creates an application-fed track using the first registered codec of kind.
func (e *Engine) NewLocalTrack(kind webrtc.RTPCodecType, id string, streamID string) (*LocalTrack, error) {
	registered := e.codecs[kind]
	if len(registered) == 0 {
		return nil, ErrNoCodec
	}
	return NewLocalTrack(registered[0].RTPCodecCapability, id, streamID), nil
}
