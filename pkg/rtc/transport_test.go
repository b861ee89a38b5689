package rtc

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/livekit/rtc-session/pkg/rtc/rtctest"
	"github.com/livekit/rtc-session/pkg/rtc/transport"
	"github.com/livekit/rtc-session/pkg/rtc/types"
	"github.com/livekit/rtc-session/pkg/testutils"
)

type testHandler struct {
	transport.UnimplementedHandler

	lock       sync.Mutex
	candidates []string
	states     []transport.NegotiationState
	failed     atomic.Int32
}

func (h *testHandler) OnICECandidate(c *webrtc.ICECandidateInit, _ types.PeerType) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.candidates = append(h.candidates, c.Candidate)
	return nil
}

func (h *testHandler) OnNegotiationStateChanged(state transport.NegotiationState) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.states = append(h.states, state)
}

func (h *testHandler) OnFailed() {
	h.failed.Inc()
}

func (h *testHandler) Candidates() []string {
	h.lock.Lock()
	defer h.lock.Unlock()
	return append([]string(nil), h.candidates...)
}

func (h *testHandler) States() []transport.NegotiationState {
	h.lock.Lock()
	defer h.lock.Unlock()
	return append([]transport.NegotiationState(nil), h.states...)
}

func newTestTransport(t *testing.T) (*PCTransport, *rtctest.PeerConnection, *testHandler) {
	t.Helper()
	pc := rtctest.NewPeerConnection()
	handler := &testHandler{}
	tr, err := NewPCTransport(TransportParams{
		PeerType:       types.PeerTypeSubscriber,
		PeerConnection: pc,
		Handler:        handler,
	})
	require.NoError(t, err)
	t.Cleanup(tr.Close)
	return tr, pc, handler
}

func candidate(n int) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: fmt.Sprintf("candidate:%d", n)}
}

func TestTransportRequiresPeerConnection(t *testing.T) {
	_, err := NewPCTransport(TransportParams{PeerType: types.PeerTypePublisher})
	require.ErrorIs(t, err, ErrNoPeerConnection)
}

func TestCandidatesBufferedUntilRemoteDescription(t *testing.T) {
	tr, pc, _ := newTestTransport(t)
	ctx := context.Background()

	require.NoError(t, tr.HandleNewICECandidate(ctx, candidate(1)))
	require.NoError(t, tr.HandleNewICECandidate(ctx, candidate(2)))
	require.Equal(t, 2, tr.PendingCandidates())
	require.Empty(t, pc.AppliedCandidates())

	require.NoError(t, tr.SetRemoteDescription(ctx, webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer"}))
	require.Zero(t, tr.PendingCandidates())

	require.NoError(t, tr.HandleNewICECandidate(ctx, candidate(3)))

	require.Zero(t, pc.EarlyCandidates())
	require.Equal(t, []webrtc.ICECandidateInit{candidate(1), candidate(2), candidate(3)}, pc.AppliedCandidates())
	require.Equal(t, []string{
		"remote offer",
		"candidate candidate:1",
		"candidate candidate:2",
		"candidate candidate:3",
	}, pc.Events())
}

func TestBufferedCandidateFailureDoesNotFailRemoteDescription(t *testing.T) {
	tr, pc, _ := newTestTransport(t)
	ctx := context.Background()
	pc.CandidateHook = func(c webrtc.ICECandidateInit) error {
		if c.Candidate == "candidate:2" {
			return rtctest.ErrInjected
		}
		return nil
	}

	for i := 1; i <= 3; i++ {
		require.NoError(t, tr.HandleNewICECandidate(ctx, candidate(i)))
	}
	require.NoError(t, tr.SetRemoteDescription(ctx, webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer"}))
	require.Equal(t, []webrtc.ICECandidateInit{candidate(1), candidate(3)}, pc.AppliedCandidates())

	// direct candidates still surface errors
	pc.CandidateHook = func(webrtc.ICECandidateInit) error { return rtctest.ErrInjected }
	require.ErrorIs(t, tr.HandleNewICECandidate(ctx, candidate(4)), rtctest.ErrInjected)
}

func TestSetRemoteDescriptionFailureKeepsCandidates(t *testing.T) {
	tr, pc, _ := newTestTransport(t)
	ctx := context.Background()
	pc.SetRemoteHook = func(context.Context, webrtc.SessionDescription) error { return rtctest.ErrInjected }

	require.NoError(t, tr.HandleNewICECandidate(ctx, candidate(1)))
	require.ErrorIs(t, tr.SetRemoteDescription(ctx, webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer"}), rtctest.ErrInjected)
	require.Equal(t, 1, tr.PendingCandidates())
	require.Nil(t, tr.RemoteDescription())
}

func TestSetLocalDescriptionIsSerialized(t *testing.T) {
	tr, pc, _ := newTestTransport(t)
	release := make(chan struct{})
	pc.SetLocalHook = func(_ context.Context, desc webrtc.SessionDescription) error {
		if desc.SDP == "first" {
			<-release
		}
		return nil
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := tr.SetLocalDescription(context.Background(), webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "first"})
		if err != nil {
			t.Error(err)
		}
	}()
	testutils.WithTimeout(t, func() string {
		for _, e := range pc.Events() {
			if e == "local start first" {
				return ""
			}
		}
		return "first set local did not start"
	})

	go func() {
		defer wg.Done()
		_, err := tr.SetLocalDescription(context.Background(), webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "second"})
		if err != nil {
			t.Error(err)
		}
	}()

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, []string{"local start first"}, pc.Events())

	close(release)
	wg.Wait()
	require.Equal(t, []string{
		"local start first",
		"local end first",
		"local start second",
		"local end second",
	}, pc.Events())
	require.Equal(t, "second", tr.LocalDescription().SDP)
}

func TestLockWaitHonorsContext(t *testing.T) {
	tr, pc, _ := newTestTransport(t)
	release := make(chan struct{})
	pc.SetLocalHook = func(context.Context, webrtc.SessionDescription) error {
		<-release
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = tr.SetLocalDescription(context.Background(), webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "held"})
	}()
	testutils.WithTimeout(t, func() string {
		if len(pc.Events()) == 0 {
			return "set local did not start"
		}
		return ""
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := tr.CreateOffer(ctx, false)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Zero(t, pc.OfferCount())

	close(release)
	<-done

	// lock was released
	_, err = tr.CreateOffer(context.Background(), false)
	require.NoError(t, err)
}

func TestCodecNamesAreMunged(t *testing.T) {
	tr, pc, _ := newTestTransport(t)
	sdp := "m=video 9 UDP/TLS/RTP/SAVPF 96 98 102\r\na=rtpmap:96 vp8/90000\r\na=rtpmap:98 vp9/90000\r\na=rtpmap:102 h264/90000\r\n"

	local, err := tr.SetLocalDescription(context.Background(), webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp})
	require.NoError(t, err)
	require.Contains(t, local.SDP, "VP8/90000")
	require.Contains(t, local.SDP, "VP9/90000")
	require.Contains(t, local.SDP, "H264/90000")
	require.Equal(t, local.SDP, pc.LocalCalls()[0].SDP)

	require.NoError(t, tr.SetRemoteDescription(context.Background(), webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}))
	require.False(t, strings.Contains(pc.RemoteCalls()[0].SDP, "vp8"))
}

func TestNegotiationStateNotifications(t *testing.T) {
	tr, _, handler := newTestTransport(t)
	ctx := context.Background()

	offer, err := tr.CreateOffer(ctx, false)
	require.NoError(t, err)
	_, err = tr.SetLocalDescription(ctx, offer)
	require.NoError(t, err)
	require.Equal(t, transport.NegotiationStateLocalOffer, tr.NegotiationState())
	require.Equal(t, webrtc.SignalingStateHaveLocalOffer, tr.SignalingState())

	require.NoError(t, tr.SetRemoteDescription(ctx, webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer"}))
	require.Equal(t, transport.NegotiationStateStable, tr.NegotiationState())

	testutils.WithTimeout(t, func() string {
		if len(handler.States()) != 2 {
			return fmt.Sprintf("expected 2 state notifications, got %d", len(handler.States()))
		}
		return ""
	})
	require.Equal(t, []transport.NegotiationState{
		transport.NegotiationStateLocalOffer,
		transport.NegotiationStateStable,
	}, handler.States())
}

func TestTransportHealth(t *testing.T) {
	tr, pc, handler := newTestTransport(t)
	require.True(t, tr.IsHealthy())
	require.False(t, tr.IsFailedOrClosed())

	pc.EmitConnectionState(webrtc.PeerConnectionStateConnected)
	require.True(t, tr.IsHealthy())

	pc.EmitICEConnectionState(webrtc.ICEConnectionStateFailed)
	require.True(t, tr.IsFailedOrClosed())

	pc.EmitConnectionState(webrtc.PeerConnectionStateFailed)
	require.False(t, tr.IsHealthy())
	require.True(t, tr.IsFailedOrClosed())

	testutils.WithTimeout(t, func() string {
		if handler.failed.Load() != 2 {
			return "expected failure notifications for ICE and peer connection"
		}
		return ""
	})
}

func TestLocalCandidatesReachHandlerInOrder(t *testing.T) {
	tr, pc, handler := newTestTransport(t)

	for i := 1; i <= 5; i++ {
		c := candidate(i)
		pc.EmitICECandidate(&c)
	}
	// end of candidates
	pc.EmitICECandidate(nil)

	testutils.WithTimeout(t, func() string {
		if len(handler.Candidates()) != 5 {
			return "candidates not delivered"
		}
		return ""
	})
	require.Equal(t, []string{"candidate:1", "candidate:2", "candidate:3", "candidate:4", "candidate:5"}, handler.Candidates())

	tr.Close()
	require.True(t, tr.IsClosed())
	require.True(t, pc.IsClosed())
	c := candidate(6)
	pc.EmitICECandidate(&c)
	require.Len(t, handler.Candidates(), 5)
}
