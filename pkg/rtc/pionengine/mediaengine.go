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
	"strings"

	"github.com/pion/webrtc/v3"

	"github.com/livekit/rtc-session/pkg/rtc/types"
)

var (
	videoRTCPFeedback = []webrtc.RTCPFeedback{
		{Type: webrtc.TypeRTCPFBGoogREMB},
		{Type: webrtc.TypeRTCPFBCCM, Parameter: "fir"},
		{Type: webrtc.TypeRTCPFBNACK, Parameter: "pli"},
	}

	opusCodecParameters = webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		PayloadType: 111,
	}

	videoCodecParameters = []webrtc.RTPCodecParameters{
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:     webrtc.MimeTypeVP8,
				ClockRate:    90000,
				RTCPFeedback: videoRTCPFeedback,
			},
			PayloadType: 96,
		},
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:     webrtc.MimeTypeVP9,
				ClockRate:    90000,
				SDPFmtpLine:  "profile-id=0",
				RTCPFeedback: videoRTCPFeedback,
			},
			PayloadType: 98,
		},
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:     webrtc.MimeTypeH264,
				ClockRate:    90000,
				SDPFmtpLine:  "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
				RTCPFeedback: videoRTCPFeedback,
			},
			PayloadType: 102,
		},
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:     webrtc.MimeTypeAV1,
				ClockRate:    90000,
				RTCPFeedback: videoRTCPFeedback,
			},
			PayloadType: 45,
		},
	}
)

// codecTable remembers what was registered so codec preferences can be resolved
// without asking the media engine.
type codecTable map[webrtc.RTPCodecType][]webrtc.RTPCodecParameters

func registerCodecs(me *webrtc.MediaEngine, enabled []types.Codec) (codecTable, error) {
	table := codecTable{}

	if IsCodecEnabled(enabled, opusCodecParameters.RTPCodecCapability) {
		if err := me.RegisterCodec(opusCodecParameters, webrtc.RTPCodecTypeAudio); err != nil {
			return nil, err
		}
		table[webrtc.RTPCodecTypeAudio] = append(table[webrtc.RTPCodecTypeAudio], opusCodecParameters)
	}

	for _, codec := range videoCodecParameters {
		if !IsCodecEnabled(enabled, codec.RTPCodecCapability) {
			continue
		}
		if err := me.RegisterCodec(codec, webrtc.RTPCodecTypeVideo); err != nil {
			return nil, err
		}
		table[webrtc.RTPCodecTypeVideo] = append(table[webrtc.RTPCodecTypeVideo], codec)
	}
	return table, nil
}

// IsCodecEnabled reports whether capability is allowed by the enabled list. An empty
// list enables everything.
func IsCodecEnabled(codecs []types.Codec, capability webrtc.RTPCodecCapability) bool {
	if len(codecs) == 0 {
		return true
	}
	for _, codec := range codecs {
		if matchesCodec(codec, capability) {
			return true
		}
	}
	return false
}

func matchesCodec(codec types.Codec, capability webrtc.RTPCodecCapability) bool {
	if codec.MimeType != "" {
		if !strings.EqualFold(codec.MimeType, capability.MimeType) {
			return false
		}
	} else {
		_, name, _ := strings.Cut(capability.MimeType, "/")
		if !strings.EqualFold(codec.Name, name) {
			return false
		}
	}
	return codec.Fmtp == "" || strings.EqualFold(codec.Fmtp, capability.SDPFmtpLine)
}

// preferences returns the registered codecs of kind matching prefs, in prefs order.
func (t codecTable) preferences(kind webrtc.RTPCodecType, prefs []types.Codec) []webrtc.RTPCodecParameters {
	var matched []webrtc.RTPCodecParameters
	for _, pref := range prefs {
		for _, c := range t[kind] {
			if matchesCodec(pref, c.RTPCodecCapability) {
				matched = append(matched, c)
			}
		}
	}
	return matched
}

func toCodec(c webrtc.RTPCodecParameters) types.Codec {
	_, name, _ := strings.Cut(c.MimeType, "/")
	return types.Codec{
		Name:     name,
		MimeType: c.MimeType,
		Fmtp:     c.SDPFmtpLine,
	}
}
