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

package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pion/webrtc/v3"
)

type TrackType int32

const (
	TrackTypeUnspecified TrackType = iota
	TrackTypeAudio
	TrackTypeVideo
	TrackTypeScreenShare
	TrackTypeScreenShareAudio
)

func (t TrackType) String() string {
	switch t {
	case TrackTypeUnspecified:
		return "TRACK_TYPE_UNSPECIFIED"
	case TrackTypeAudio:
		return "TRACK_TYPE_AUDIO"
	case TrackTypeVideo:
		return "TRACK_TYPE_VIDEO"
	case TrackTypeScreenShare:
		return "TRACK_TYPE_SCREEN_SHARE"
	case TrackTypeScreenShareAudio:
		return "TRACK_TYPE_SCREEN_SHARE_AUDIO"
	default:
		return fmt.Sprintf("%d", int(t))
	}
}

func (t TrackType) IsAudio() bool {
	return t == TrackTypeAudio || t == TrackTypeScreenShareAudio
}

// Kind returns the media kind carried by tracks of this type.
func (t TrackType) Kind() webrtc.RTPCodecType {
	if t.IsAudio() {
		return webrtc.RTPCodecTypeAudio
	}
	return webrtc.RTPCodecTypeVideo
}

// ParseTrackType accepts either the enum name or its numeric value.
func ParseTrackType(s string) (TrackType, error) {
	switch s {
	case "TRACK_TYPE_UNSPECIFIED":
		return TrackTypeUnspecified, nil
	case "TRACK_TYPE_AUDIO":
		return TrackTypeAudio, nil
	case "TRACK_TYPE_VIDEO":
		return TrackTypeVideo, nil
	case "TRACK_TYPE_SCREEN_SHARE":
		return TrackTypeScreenShare, nil
	case "TRACK_TYPE_SCREEN_SHARE_AUDIO":
		return TrackTypeScreenShareAudio, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < int(TrackTypeUnspecified) || v > int(TrackTypeScreenShareAudio) {
		return TrackTypeUnspecified, fmt.Errorf("unknown track type: %q", s)
	}
	return TrackType(v), nil
}

type PeerType int32

const (
	PeerTypePublisher PeerType = iota
	PeerTypeSubscriber
)

func (p PeerType) String() string {
	switch p {
	case PeerTypePublisher:
		return "PUBLISHER"
	case PeerTypeSubscriber:
		return "SUBSCRIBER"
	default:
		return fmt.Sprintf("%d", int(p))
	}
}

type VideoQuality int32

const (
	VideoQualityLow VideoQuality = iota
	VideoQualityMid
	VideoQualityHigh
	VideoQualityOff
)

func (v VideoQuality) String() string {
	switch v {
	case VideoQualityLow:
		return "LOW"
	case VideoQualityMid:
		return "MID"
	case VideoQualityHigh:
		return "HIGH"
	case VideoQualityOff:
		return "OFF"
	default:
		return fmt.Sprintf("%d", int(v))
	}
}

type VideoDimension struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

func (d VideoDimension) IsZero() bool {
	return d.Width == 0 && d.Height == 0
}

func (d VideoDimension) Area() uint64 {
	return uint64(d.Width) * uint64(d.Height)
}

func (d VideoDimension) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// CaptureFormat describes what the capturer is producing for a video source.
type CaptureFormat struct {
	Width  uint32
	Height uint32
	Fps    uint32
}

func (c CaptureFormat) Dimension() VideoDimension {
	return VideoDimension{Width: c.Width, Height: c.Height}
}

type Codec struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType,omitempty"`
	Fmtp     string `json:"fmtp,omitempty"`
}

// PublishOption is issued by the SFU and describes one flavour of a track the client may send.
type PublishOption struct {
	ID                uint32          `json:"id"`
	TrackType         TrackType       `json:"trackType"`
	Codec             *Codec          `json:"codec,omitempty"`
	Bitrate           uint32          `json:"bitrate,omitempty"`
	Fps               uint32          `json:"fps,omitempty"`
	MaxSpatialLayers  uint32          `json:"maxSpatialLayers,omitempty"`
	MaxTemporalLayers uint32          `json:"maxTemporalLayers,omitempty"`
	VideoDimension    *VideoDimension `json:"videoDimension,omitempty"`
}

func (p PublishOption) Key() string {
	return fmt.Sprintf("%d-%d", p.ID, p.TrackType)
}

func (p PublishOption) CodecName() string {
	if p.Codec == nil {
		return ""
	}
	return p.Codec.Name
}

func (p PublishOption) SameIdentity(o PublishOption) bool {
	return p.ID == o.ID && p.TrackType == o.TrackType
}

func (p PublishOption) String() string {
	return fmt.Sprintf("PublishOption{id: %d, type: %s, codec: %s, layers: %d}", p.ID, p.TrackType, p.CodecName(), p.MaxSpatialLayers)
}

// EncodingLayer is one sender encoding, either a simulcast rid or the single SVC encoding.
type EncodingLayer struct {
	Rid                   string
	Active                bool
	Width                 uint32
	Height                uint32
	ScaleResolutionDownBy float64
	MaxBitrateBps         uint32
	MaxFramerate          uint32
	ScalabilityMode       string
	SVC                   bool
}

type VideoLayer struct {
	Rid       string         `json:"rid"`
	Dimension VideoDimension `json:"videoDimension"`
	Bitrate   uint32         `json:"bitrate"`
	Fps       uint32         `json:"fps"`
	Quality   VideoQuality   `json:"quality"`
}

// TrackInfo announces a published track to the SFU.
type TrackInfo struct {
	TrackID   string       `json:"trackId"`
	TrackType TrackType    `json:"trackType"`
	Layers    []VideoLayer `json:"layers,omitempty"`
	Mid       string       `json:"mid"`
	Muted     bool         `json:"muted"`
	Stereo    bool         `json:"stereo"`
	Codec     *Codec       `json:"codec,omitempty"`
}

type TrackSubscriptionDetails struct {
	UserID    string          `json:"userId"`
	SessionID string          `json:"sessionId"`
	TrackType TrackType       `json:"trackType"`
	Dimension *VideoDimension `json:"dimension,omitempty"`
}

func (t TrackSubscriptionDetails) Equal(o TrackSubscriptionDetails) bool {
	if t.UserID != o.UserID || t.SessionID != o.SessionID || t.TrackType != o.TrackType {
		return false
	}
	if t.Dimension == nil || o.Dimension == nil {
		return t.Dimension == o.Dimension
	}
	return *t.Dimension == *o.Dimension
}

// VideoLayerSetting is a per-rid change requested by the SFU.
type VideoLayerSetting struct {
	Name                  string  `json:"name"`
	Active                bool    `json:"active"`
	MaxBitrate            uint32  `json:"maxBitrate"`
	ScaleResolutionDownBy float64 `json:"scaleResolutionDownBy"`
	MaxFramerate          uint32  `json:"maxFramerate"`
	ScalabilityMode       string  `json:"scalabilityMode,omitempty"`
	Codec                 *Codec  `json:"codec,omitempty"`
}

// VideoSender is the SFU's quality request for one published video track.
type VideoSender struct {
	TrackType       TrackType           `json:"trackType"`
	PublishOptionID uint32              `json:"publishOptionId"`
	Codec           *Codec              `json:"codec,omitempty"`
	Layers          []VideoLayerSetting `json:"layers"`
}

// ParticipantInfo is the subset of remote participant state used to pick subscriptions.
type ParticipantInfo struct {
	UserID             string
	SessionID          string
	TrackLookupPrefix  string
	AudioEnabled       bool
	VideoEnabled       bool
	ScreenShareEnabled bool
}

func (p ParticipantInfo) HasMedia() bool {
	return p.AudioEnabled || p.VideoEnabled || p.ScreenShareEnabled
}

type TrackDimensions struct {
	Dimension VideoDimension
	Visible   bool
}

// StreamID builds the stream id announced for a published track.
func StreamID(trackPrefix string, trackType TrackType, suffix string) string {
	return fmt.Sprintf("%s:%d:%s", trackPrefix, int(trackType), suffix)
}

// ParseStreamID splits a received stream id into its track prefix and track type.
func ParseStreamID(streamID string) (string, TrackType, error) {
	parts := strings.Split(streamID, ":")
	if len(parts) < 2 {
		return "", TrackTypeUnspecified, fmt.Errorf("malformed stream id: %q", streamID)
	}
	trackType, err := ParseTrackType(parts[1])
	if err != nil {
		return "", TrackTypeUnspecified, err
	}
	return parts[0], trackType, nil
}
