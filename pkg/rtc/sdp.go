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
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v3"
	"github.com/pkg/errors"
)

// the SFU expects canonical casing for these codec names
var codecNameReplacer = strings.NewReplacer(
	"vp9", "VP9",
	"vp8", "VP8",
	"h264", "H264",
)

func mungeCodecs(sdpText string) string {
	return codecNameReplacer.Replace(sdpText)
}

func getMidValue(media *sdp.MediaDescription) string {
	for _, attr := range media.Attributes {
		if attr.Key == sdp.AttrKeyMID {
			return attr.Value
		}
	}
	return ""
}

// extractMidFromSDP finds the media section of the given kind whose msid names the track.
// Sections without an msid match any track of that kind.
func extractMidFromSDP(sdpText string, kind webrtc.RTPCodecType, trackID string, streamID string) (string, bool) {
	if sdpText == "" {
		return "", false
	}
	parsed := &sdp.SessionDescription{}
	if err := parsed.Unmarshal([]byte(sdpText)); err != nil {
		return "", false
	}

	for _, media := range parsed.MediaDescriptions {
		if media.MediaName.Media != kind.String() {
			continue
		}
		if msid, ok := media.Attribute(sdp.AttrKeyMsid); ok {
			if !strings.Contains(msid, trackID) && (streamID == "" || !strings.Contains(msid, streamID)) {
				continue
			}
		}
		if mid := getMidValue(media); mid != "" {
			return mid, true
		}
		return "", false
	}
	return "", false
}

func opusPayloadTypes(parsed *sdp.SessionDescription, media *sdp.MediaDescription) []uint8 {
	var payloadTypes []uint8
	for _, format := range media.MediaName.Formats {
		pt, err := strconv.ParseUint(format, 10, 8)
		if err != nil {
			continue
		}
		codec, err := parsed.GetCodecForPayloadType(uint8(pt))
		if err != nil {
			continue
		}
		if strings.EqualFold(codec.Name, "opus") {
			payloadTypes = append(payloadTypes, uint8(pt))
		}
	}
	return payloadTypes
}

// enableStereo carries opus stereo=1 from the remote offer into the local answer,
// matched by mid.
func enableStereo(offer string, answer string) (string, error) {
	parsedOffer := &sdp.SessionDescription{}
	if err := parsedOffer.Unmarshal([]byte(offer)); err != nil {
		return answer, errors.Wrap(err, "could not parse offer")
	}

	stereoMids := make(map[string]bool)
	for _, media := range parsedOffer.MediaDescriptions {
		if media.MediaName.Media != webrtc.RTPCodecTypeAudio.String() {
			continue
		}
		for _, pt := range opusPayloadTypes(parsedOffer, media) {
			codec, err := parsedOffer.GetCodecForPayloadType(pt)
			if err == nil && strings.Contains(codec.Fmtp, "stereo=1") {
				stereoMids[getMidValue(media)] = true
			}
		}
	}
	if len(stereoMids) == 0 {
		return answer, nil
	}

	parsedAnswer := &sdp.SessionDescription{}
	if err := parsedAnswer.Unmarshal([]byte(answer)); err != nil {
		return answer, errors.Wrap(err, "could not parse answer")
	}

	changed := false
	for _, media := range parsedAnswer.MediaDescriptions {
		if media.MediaName.Media != webrtc.RTPCodecTypeAudio.String() || !stereoMids[getMidValue(media)] {
			continue
		}
		for _, pt := range opusPayloadTypes(parsedAnswer, media) {
			prefix := strconv.Itoa(int(pt)) + " "
			for i, attr := range media.Attributes {
				if attr.Key != "fmtp" || !strings.HasPrefix(attr.Value, prefix) || strings.Contains(attr.Value, "stereo=1") {
					continue
				}
				media.Attributes[i].Value = attr.Value + ";stereo=1"
				changed = true
			}
		}
	}
	if !changed {
		return answer, nil
	}

	bytes, err := parsedAnswer.Marshal()
	if err != nil {
		return answer, errors.Wrap(err, "could not marshal answer")
	}
	return string(bytes), nil
}
