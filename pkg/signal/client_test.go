package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twitchtv/twirp"

	"github.com/livekit/rtc-session/pkg/rtc/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientParams{
		URL:     srv.URL + "/",
		Token:   "token",
		Timeout: time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient(ClientParams{})
	require.ErrorIs(t, err, ErrMissingURL)
}

func TestSetPublisher(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, ServicePath+"SetPublisher", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(t, "abc", r.Header.Get("X-Call-Id"))

		var req types.SetPublisherRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) || !assert.Len(t, req.Tracks, 1) {
			return
		}
		assert.Equal(t, "offer", req.SDP)
		assert.Equal(t, types.TrackTypeVideo, req.Tracks[0].TrackType)

		_ = json.NewEncoder(w).Encode(types.SetPublisherResponse{SDP: "answer", SessionID: req.SessionID})
	})

	header := http.Header{}
	header.Set("X-Call-Id", "abc")
	ctx, err := twirp.WithHTTPRequestHeaders(context.Background(), header)
	require.NoError(t, err)

	res, err := c.SetPublisher(ctx, &types.SetPublisherRequest{
		SDP:       "offer",
		SessionID: "S_1",
		Tracks:    []types.TrackInfo{{TrackID: "cam", TrackType: types.TrackTypeVideo, Mid: "0"}},
	})
	require.NoError(t, err)
	require.Equal(t, "answer", res.SDP)
	require.Equal(t, "S_1", res.SessionID)
	require.Nil(t, res.Error)
}

func TestSFUErrorIsReturnedInResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ServicePath+"UpdateSubscriptions", r.URL.Path)
		_, _ = w.Write([]byte(`{"error":{"code":3,"message":"participant not found"}}`))
	})

	res, err := c.UpdateSubscriptions(context.Background(), &types.UpdateSubscriptionsRequest{SessionID: "S_1"})
	require.NoError(t, err)
	require.NotNil(t, res.Error)
	require.Equal(t, int32(3), res.Error.Code)
	require.Equal(t, "sfu error 3: participant not found", res.Error.Error())
}

func TestTwirpErrors(t *testing.T) {
	t.Run("twirp error body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":"not_found","msg":"no such call","meta":{"call":"abc"}}`))
		})

		_, err := c.SendAnswer(context.Background(), &types.SendAnswerRequest{PeerType: types.PeerTypeSubscriber})
		require.Error(t, err)
		tErr, ok := err.(twirp.Error)
		require.True(t, ok)
		require.Equal(t, twirp.NotFound, tErr.Code())
		require.Equal(t, "no such call", tErr.Msg())
		require.Equal(t, "abc", tErr.Meta("call"))
	})

	t.Run("intermediary error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("upstream down"))
		})

		_, err := c.ICERestart(context.Background(), &types.ICERestartRequest{PeerType: types.PeerTypePublisher})
		tErr, ok := err.(twirp.Error)
		require.True(t, ok)
		require.Equal(t, twirp.Unavailable, tErr.Code())
		require.Equal(t, "upstream down", tErr.Msg())
		require.Equal(t, "503", tErr.Meta("status_code"))
	})

	t.Run("undecodable response", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		})

		_, err := c.ICETrickle(context.Background(), &types.ICETrickleRequest{ICECandidate: "{}"})
		tErr, ok := err.(twirp.Error)
		require.True(t, ok)
		require.Equal(t, twirp.Internal, tErr.Code())
	})
}

func TestRequestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewClient(ClientParams{URL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.SetPublisher(context.Background(), &types.SetPublisherRequest{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCodeFromStatus(t *testing.T) {
	require.Equal(t, twirp.Unauthenticated, codeFromStatus(http.StatusUnauthorized))
	require.Equal(t, twirp.PermissionDenied, codeFromStatus(http.StatusForbidden))
	require.Equal(t, twirp.BadRoute, codeFromStatus(http.StatusNotFound))
	require.Equal(t, twirp.Unavailable, codeFromStatus(http.StatusTooManyRequests))
	require.Equal(t, twirp.Unknown, codeFromStatus(http.StatusTeapot))
}
