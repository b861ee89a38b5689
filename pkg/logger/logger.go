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

package serverlogger

import (
	"sync"

	"github.com/pion/logging"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/rtc-session/pkg/config"
)

var (
	// pion/webrtc, pion/ice
	factoryLock    sync.Mutex
	defaultFactory logging.LoggerFactory
)

func LoggerFactory() logging.LoggerFactory {
	factoryLock.Lock()
	defer factoryLock.Unlock()
	if defaultFactory == nil {
		defaultFactory = NewLoggerFactory(logger.GetLogger(), "")
	}
	return defaultFactory
}

func SetLoggerFactory(lf logging.LoggerFactory) {
	factoryLock.Lock()
	defer factoryLock.Unlock()
	defaultFactory = lf
}

// InitFromConfig sets up the process logger and points pion at it.
func InitFromConfig(conf *config.LoggingConfig, name string) {
	logger.InitFromConfig(&conf.Config, name)
	SetLoggerFactory(NewLoggerFactory(logger.GetLogger(), conf.PionLevel))
}
