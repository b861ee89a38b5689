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

package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

const (
	namespace string = "rtc_session"

	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

var (
	initialized atomic.Bool
)

// Init registers all collectors with the default registry. Recording before Init is
// allowed; values are simply not exported.
func Init() {
	if initialized.Swap(true) {
		return
	}

	prometheus.MustRegister(negotiationCounter)
	prometheus.MustRegister(negotiationDuration)
	prometheus.MustRegister(iceCandidateCounter)
	prometheus.MustRegister(connectionStateCounter)
	prometheus.MustRegister(qualityChangeCounter)
	prometheus.MustRegister(subscriptionUpdateCounter)
	prometheus.MustRegister(subscribedTracksGauge)
	prometheus.MustRegister(publishedTracksGauge)
}
