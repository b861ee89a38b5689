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

package config

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pion/stun"
	"github.com/pkg/errors"

	"github.com/livekit/protocol/logger"
)

const (
	externalIPAttempts = 3
	stunTimeout        = 5 * time.Second
)

// NAT1To1IPs returns the addresses host candidates should advertise. Empty means
// the engine uses the interface addresses as they are.
func (conf *RTCConfig) NAT1To1IPs(ctx context.Context) ([]string, error) {
	if conf.NodeIP != "" {
		return []string{conf.NodeIP}, nil
	}
	if !conf.UseExternalIP {
		return nil, nil
	}

	stunServers := conf.STUNServers
	if len(stunServers) == 0 {
		stunServers = DefaultStunServers
	}
	var err error
	for i := 0; i < externalIPAttempts; i++ {
		var ip string
		ip, err = GetExternalIP(ctx, stunServers)
		if err == nil {
			return []string{ip}, nil
		}
		logger.Debugw("could not resolve external IP", "attempt", i+1, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return nil, errors.Errorf("could not resolve external IP: %v", err)
}

// GetExternalIP asks the first STUN server for the reflexive IPv4 address of this host.
func GetExternalIP(ctx context.Context, stunServers []string) (string, error) {
	if len(stunServers) == 0 {
		return "", errors.New("STUN servers are required but not defined")
	}
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "udp4", stunServers[0])
	if err != nil {
		return "", err
	}
	c, err := stun.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return "", err
	}
	defer c.Close()

	message, err := stun.Build(stun.TransactionID, stun.BindingRequest)
	if err != nil {
		return "", err
	}

	// buffered so the callback never blocks
	ipChan := make(chan string, 1)
	errChan := make(chan error, 1)
	err = c.Start(message, func(res stun.Event) {
		if res.Error != nil {
			select {
			case errChan <- res.Error:
			default:
			}
			return
		}

		var xorAddr stun.XORMappedAddress
		if err := xorAddr.GetFrom(res.Message); err != nil {
			select {
			case errChan <- err:
			default:
			}
			return
		}
		if ip := xorAddr.IP.To4(); ip != nil {
			select {
			case ipChan <- ip.String():
			default:
			}
		}
	})
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, stunTimeout)
	defer cancel()
	select {
	case ip := <-ipChan:
		return ip, nil
	case err := <-errChan:
		return "", errors.Wrap(err, "could not determine public IP")
	case <-ctx.Done():
		return "", fmt.Errorf("could not determine public IP: %w", ctx.Err())
	}
}
