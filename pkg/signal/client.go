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

package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/twitchtv/twirp"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/rtc-session/pkg/rtc/types"
)

const (
	ServicePath    = "/twirp/stream.video.sfu.signal.SignalServer/"
	defaultTimeout = 10 * time.Second
	// cap on error bodies read from the server
	maxErrorBody = 64 * 1024
)

var ErrMissingURL = errors.New("SFU url is required")

type ClientParams struct {
	URL string
	// sent as a bearer token when set
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     logger.Logger
}

// Client calls the SFU signal service with Twirp's JSON encoding.
type Client struct {
	params  ClientParams
	baseURL string
	logger  logger.Logger
}

var _ types.SignalClient = (*Client)(nil)

func NewClient(params ClientParams) (*Client, error) {
	if params.URL == "" {
		return nil, ErrMissingURL
	}
	if params.HTTPClient == nil {
		params.HTTPClient = &http.Client{}
	}
	if params.Timeout <= 0 {
		params.Timeout = defaultTimeout
	}
	if params.Logger == nil {
		params.Logger = logger.GetLogger()
	}
	return &Client{
		params:  params,
		baseURL: strings.TrimSuffix(params.URL, "/"),
		logger:  params.Logger.WithValues("sfu", params.URL),
	}, nil
}

func (c *Client) SetPublisher(ctx context.Context, req *types.SetPublisherRequest) (*types.SetPublisherResponse, error) {
	res := &types.SetPublisherResponse{}
	if err := c.call(ctx, "SetPublisher", req, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) SendAnswer(ctx context.Context, req *types.SendAnswerRequest) (*types.SendAnswerResponse, error) {
	res := &types.SendAnswerResponse{}
	if err := c.call(ctx, "SendAnswer", req, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) UpdateSubscriptions(ctx context.Context, req *types.UpdateSubscriptionsRequest) (*types.UpdateSubscriptionsResponse, error) {
	res := &types.UpdateSubscriptionsResponse{}
	if err := c.call(ctx, "UpdateSubscriptions", req, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) ICERestart(ctx context.Context, req *types.ICERestartRequest) (*types.ICERestartResponse, error) {
	res := &types.ICERestartResponse{}
	if err := c.call(ctx, "IceRestart", req, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) ICETrickle(ctx context.Context, req *types.ICETrickleRequest) (*types.ICETrickleResponse, error) {
	res := &types.ICETrickleResponse{}
	if err := c.call(ctx, "IceTrickle", req, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) call(ctx context.Context, method string, in interface{}, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.params.Timeout)
	defer cancel()

	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrapf(err, "could not encode %s request", method)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ServicePath+method, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if header, ok := twirp.HTTPRequestHeaders(ctx); ok {
		for k, v := range header {
			req.Header[k] = append([]string(nil), v...)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Twirp-Version", "v8.1.3")
	if c.params.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.params.Token)
	}

	start := time.Now()
	resp, err := c.params.HTTPClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrapf(ctxErr, "%s request failed", method)
		}
		return errors.Wrapf(err, "%s request failed", method)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		terr := errorFromResponse(resp)
		c.logger.Debugw("signal request failed", "method", method, "status", resp.StatusCode, "code", terr.Code())
		return terr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return twirp.InternalErrorWith(errors.Wrapf(err, "could not decode %s response", method))
	}
	c.logger.Debugw("signal request", "method", method, "duration", time.Since(start))
	return nil
}

type twirpErrorBody struct {
	Code string            `json:"code"`
	Msg  string            `json:"msg"`
	Meta map[string]string `json:"meta"`
}

// errorFromResponse decodes a Twirp error body. Responses that are not Twirp errors,
// typically from proxies, are mapped from their HTTP status.
func errorFromResponse(resp *http.Response) twirp.Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var tb twirpErrorBody
	if err := json.Unmarshal(body, &tb); err == nil && twirp.IsValidErrorCode(twirp.ErrorCode(tb.Code)) {
		terr := twirp.NewError(twirp.ErrorCode(tb.Code), tb.Msg)
		for k, v := range tb.Meta {
			terr = terr.WithMeta(k, v)
		}
		return terr
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return twirp.NewError(codeFromStatus(resp.StatusCode), msg).
		WithMeta("http_error_from_intermediary", "true").
		WithMeta("status_code", strconv.Itoa(resp.StatusCode))
}

func codeFromStatus(status int) twirp.ErrorCode {
	switch status {
	case http.StatusBadRequest:
		return twirp.Internal
	case http.StatusUnauthorized:
		return twirp.Unauthenticated
	case http.StatusForbidden:
		return twirp.PermissionDenied
	case http.StatusNotFound:
		return twirp.BadRoute
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return twirp.Unavailable
	default:
		return twirp.Unknown
	}
}
