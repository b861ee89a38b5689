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

import "errors"

var (
	ErrNoPeerConnection   = errors.New("peer connection is required")
	ErrTrackEnded         = errors.New("cannot publish an ended track")
	ErrNoPublishOption    = errors.New("no publish option for track type")
	ErrNoTracksToAnnounce = errors.New("no tracks to announce")
	ErrNoSignalClient     = errors.New("signal client is required")
	ErrTransportClosed    = errors.New("transport is closed")
	ErrEmptyAnswer        = errors.New("SFU returned an empty answer")
	ErrUnknownTransceiver = errors.New("no transceiver for publish option")
)
