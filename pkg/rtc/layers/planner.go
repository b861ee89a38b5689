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

package layers

import (
	"fmt"
	"strings"

	"github.com/livekit/rtc-session/pkg/rtc/types"
)

const (
	QuarterResolution = "q"
	HalfResolution    = "h"
	FullResolution    = "f"

	DefaultMaxBitrate       = 1_250_000
	ScreenShareBitrate      = 1_000_000
	DefaultFramerate        = 30
	DefaultScreenShareFps   = 15
	DefaultMaxTemporalLayer = 3
	MaxSpatialLayers        = 3
)

var (
	// lowest to highest
	simulcastRids = []string{QuarterResolution, HalfResolution, FullResolution}

	defaultBitratePerRid = map[string]uint32{
		QuarterResolution: 300_000,
		HalfResolution:    750_000,
		FullResolution:    DefaultMaxBitrate,
	}

	DefaultCameraFormat      = types.CaptureFormat{Width: 1280, Height: 720, Fps: DefaultFramerate}
	DefaultScreenShareFormat = types.CaptureFormat{Width: 1920, Height: 1080, Fps: DefaultScreenShareFps}
)

// DefaultCaptureFormat is used when the capturer has not reported a format.
func DefaultCaptureFormat(trackType types.TrackType) types.CaptureFormat {
	if trackType == types.TrackTypeScreenShare {
		return DefaultScreenShareFormat
	}
	return DefaultCameraFormat
}

func IsSVCCodec(codecOrMimeType string) bool {
	switch strings.ToLower(codecOrMimeType) {
	case "vp9", "av1", "video/vp9", "video/av1":
		return true
	}
	return false
}

// ToScalabilityMode renders an L{spatial}T{temporal} mode, keyed when more than one spatial layer.
func ToScalabilityMode(spatialLayers, temporalLayers uint32) string {
	suffix := ""
	if spatialLayers > 1 {
		suffix = "_KEY"
	}
	return fmt.Sprintf("L%dT%d%s", spatialLayers, temporalLayers, suffix)
}

func RidToVideoQuality(rid string) types.VideoQuality {
	switch rid {
	case QuarterResolution:
		return types.VideoQualityLow
	case HalfResolution:
		return types.VideoQualityMid
	default:
		return types.VideoQualityHigh
	}
}

// ComputeLayers returns the encodings to offer for a publish option, lowest quality first.
// Audio has no encodings.
func ComputeLayers(format types.CaptureFormat, option types.PublishOption) []types.EncodingLayer {
	switch {
	case option.TrackType.IsAudio():
		return nil
	case option.TrackType == types.TrackTypeScreenShare:
		return screenShareLayers(format, option)
	}

	spatial := option.MaxSpatialLayers
	if spatial < 1 {
		spatial = 1
	}
	if spatial > MaxSpatialLayers {
		spatial = MaxSpatialLayers
	}
	temporal := option.MaxTemporalLayers
	if temporal == 0 {
		temporal = DefaultMaxTemporalLayer
	}
	fps := option.Fps
	if fps == 0 {
		fps = format.Fps
	}
	if fps == 0 {
		fps = DefaultFramerate
	}

	maxBitrate := computedMaxBitrate(format, option)
	svc := IsSVCCodec(option.CodecName())

	rids := simulcastRids[len(simulcastRids)-int(spatial):]
	layers := make([]types.EncodingLayer, len(rids))
	downscale := 1.0
	bitrateFactor := uint32(1)
	for i := len(rids) - 1; i >= 0; i-- {
		rid := rids[i]
		bitrate := defaultBitratePerRid[rid]
		if maxBitrate > 0 {
			bitrate = maxBitrate / bitrateFactor
		}
		layers[i] = types.EncodingLayer{
			Rid:                   rid,
			Active:                true,
			Width:                 uint32(float64(format.Width) / downscale),
			Height:                uint32(float64(format.Height) / downscale),
			ScaleResolutionDownBy: downscale,
			MaxBitrateBps:         bitrate,
			MaxFramerate:          fps,
		}
		downscale *= 2
		bitrateFactor *= 2
	}

	if !svc {
		return layers
	}

	// a single encoding carrying every spatial layer, announced as "q"
	full := layers[len(layers)-1]
	full.Rid = QuarterResolution
	full.SVC = true
	full.ScaleResolutionDownBy = 1
	full.ScalabilityMode = ToScalabilityMode(spatial, temporal)
	return []types.EncodingLayer{full}
}

func screenShareLayers(format types.CaptureFormat, option types.PublishOption) []types.EncodingLayer {
	fps := option.Fps
	if fps == 0 {
		fps = format.Fps
	}
	if fps == 0 {
		fps = DefaultScreenShareFps
	}
	return []types.EncodingLayer{
		{
			Rid:                   QuarterResolution,
			Active:                true,
			Width:                 format.Width,
			Height:                format.Height,
			ScaleResolutionDownBy: 1,
			MaxBitrateBps:         ScreenShareBitrate,
			MaxFramerate:          fps,
		},
	}
}

// computedMaxBitrate scales the option bitrate down when capture is smaller than the target dimension.
func computedMaxBitrate(format types.CaptureFormat, option types.PublishOption) uint32 {
	if option.Bitrate == 0 || option.VideoDimension == nil || option.VideoDimension.IsZero() {
		return option.Bitrate
	}
	target := *option.VideoDimension
	current := format.Dimension()
	// orientation agnostic
	if (current.Width > current.Height) != (target.Width > target.Height) {
		target.Width, target.Height = target.Height, target.Width
	}
	if current.Width >= target.Width && current.Height >= target.Height {
		return option.Bitrate
	}
	reduction := float64(current.Area()) / float64(target.Area())
	return uint32(float64(option.Bitrate) * reduction)
}

func ToVideoLayers(encodings []types.EncodingLayer) []types.VideoLayer {
	if len(encodings) == 0 {
		return nil
	}
	videoLayers := make([]types.VideoLayer, 0, len(encodings))
	for _, e := range encodings {
		quality := RidToVideoQuality(e.Rid)
		if e.SVC {
			quality = types.VideoQualityHigh
		}
		videoLayers = append(videoLayers, types.VideoLayer{
			Rid:       e.Rid,
			Dimension: types.VideoDimension{Width: e.Width, Height: e.Height},
			Bitrate:   e.MaxBitrateBps,
			Fps:       e.MaxFramerate,
			Quality:   quality,
		})
	}
	return videoLayers
}
