package rtc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/livekit/rtc-session/pkg/rtc/layers"
	"github.com/livekit/rtc-session/pkg/rtc/rtctest"
	"github.com/livekit/rtc-session/pkg/rtc/types"
	"github.com/livekit/rtc-session/pkg/rtc/types/typesfakes"
)

var (
	vp8Option = types.PublishOption{
		ID:               1,
		TrackType:        types.TrackTypeVideo,
		Codec:            &types.Codec{Name: "VP8"},
		Bitrate:          1_200_000,
		Fps:              30,
		MaxSpatialLayers: 3,
	}
	vp9Option = types.PublishOption{
		ID:                2,
		TrackType:         types.TrackTypeVideo,
		Codec:             &types.Codec{Name: "VP9"},
		Bitrate:           1_000_000,
		Fps:               30,
		MaxSpatialLayers:  3,
		MaxTemporalLayers: 3,
	}
	opusOption = types.PublishOption{
		ID:        3,
		TrackType: types.TrackTypeAudio,
		Codec:     &types.Codec{Name: "opus"},
	}
)

func newTestPublisher(t *testing.T, options ...types.PublishOption) (*Publisher, *rtctest.PeerConnection, *typesfakes.FakeSignalClient) {
	t.Helper()

	pc := rtctest.NewPeerConnection()
	signal := &typesfakes.FakeSignalClient{}
	signal.SetPublisherReturns(&types.SetPublisherResponse{SDP: "answer"}, nil)

	p, err := NewPublisher(PublisherParams{
		SessionID:        "S_test",
		TrackPrefix:      "prefix",
		PeerConnection:   pc,
		SignalClient:     signal,
		PublishOptions:   options,
		NegotiationDelay: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close(false) })
	return p, pc, signal
}

func fakeTransceiver(t *testing.T, p *Publisher, option types.PublishOption) *rtctest.Transceiver {
	t.Helper()
	tr, ok := p.Registry().Get(option).(*rtctest.Transceiver)
	require.True(t, ok)
	return tr
}

func TestPublisherRequiresSignalClient(t *testing.T) {
	_, err := NewPublisher(PublisherParams{PeerConnection: rtctest.NewPeerConnection()})
	require.ErrorIs(t, err, ErrNoSignalClient)

	_, err = NewPublisher(PublisherParams{SignalClient: &typesfakes.FakeSignalClient{}})
	require.ErrorIs(t, err, ErrNoPeerConnection)
}

func TestPublishStream(t *testing.T) {
	t.Run("ended track is rejected", func(t *testing.T) {
		p, _, _ := newTestPublisher(t, vp8Option)
		track := rtctest.NewTrack(webrtc.RTPCodecTypeVideo, "cam")
		track.End()

		err := p.PublishStream(context.Background(), track, types.TrackTypeVideo, types.CaptureFormat{})
		require.ErrorIs(t, err, ErrTrackEnded)
		require.Zero(t, p.Registry().Len())
	})

	t.Run("no option for track type", func(t *testing.T) {
		p, _, _ := newTestPublisher(t, vp8Option)
		track := rtctest.NewTrack(webrtc.RTPCodecTypeAudio, "mic")

		err := p.PublishStream(context.Background(), track, types.TrackTypeAudio, types.CaptureFormat{})
		require.ErrorIs(t, err, ErrNoPublishOption)
	})

	t.Run("one transceiver per option, extra options get clones", func(t *testing.T) {
		p, _, _ := newTestPublisher(t, vp8Option, vp9Option, opusOption)
		track := rtctest.NewTrack(webrtc.RTPCodecTypeVideo, "cam")

		require.NoError(t, p.PublishStream(context.Background(), track, types.TrackTypeVideo, types.CaptureFormat{}))
		require.Equal(t, 2, p.Registry().Len())

		first := fakeTransceiver(t, p, vp8Option)
		second := fakeTransceiver(t, p, vp9Option)
		require.Equal(t, "cam", first.Sender().Track().ID())
		require.Equal(t, "cam-clone-1", second.Sender().Track().ID())
		require.Equal(t, webrtc.RTPTransceiverDirectionSendonly, first.Direction())

		// simulcast for VP8, a single SVC encoding for VP9
		require.Len(t, first.Init().SendEncodings, 3)
		require.Len(t, second.Init().SendEncodings, 1)
		require.Equal(t, "L3T3_KEY", second.Init().SendEncodings[0].ScalabilityMode)
		require.Equal(t, []types.Codec{{Name: "VP9"}}, second.Init().CodecPreferences)

		require.Len(t, first.Init().StreamIDs, 1)
		prefix, trackType, err := types.ParseStreamID(first.Init().StreamIDs[0])
		require.NoError(t, err)
		require.Equal(t, "prefix", prefix)
		require.Equal(t, types.TrackTypeVideo, trackType)
		require.True(t, p.IsPublishing(types.TrackTypeVideo))

		published := p.GetPublishedTracks()
		require.Len(t, published, 2)
		require.Equal(t, "cam", published[0].ID())
	})

	t.Run("republishing the same track re-enables it", func(t *testing.T) {
		p, _, _ := newTestPublisher(t, vp8Option)
		track := rtctest.NewTrack(webrtc.RTPCodecTypeVideo, "cam")

		require.NoError(t, p.PublishStream(context.Background(), track, types.TrackTypeVideo, types.CaptureFormat{}))
		tr := fakeTransceiver(t, p, vp8Option)

		p.UnpublishStream(types.TrackTypeVideo, false)
		require.False(t, track.Enabled())
		require.False(t, p.IsPublishing(types.TrackTypeVideo))

		require.NoError(t, p.PublishStream(context.Background(), track, types.TrackTypeVideo, types.CaptureFormat{}))
		require.True(t, track.Enabled())
		require.Equal(t, 1, p.Registry().Len())
		require.Same(t, tr, fakeTransceiver(t, p, vp8Option))
	})

	t.Run("a different track replaces the transceiver", func(t *testing.T) {
		p, _, _ := newTestPublisher(t, vp8Option)
		cam := rtctest.NewTrack(webrtc.RTPCodecTypeVideo, "cam")
		other := rtctest.NewTrack(webrtc.RTPCodecTypeVideo, "cam-2")

		require.NoError(t, p.PublishStream(context.Background(), cam, types.TrackTypeVideo, types.CaptureFormat{}))
		old := fakeTransceiver(t, p, vp8Option)

		require.NoError(t, p.PublishStream(context.Background(), other, types.TrackTypeVideo, types.CaptureFormat{}))
		require.True(t, old.IsStopped())
		require.True(t, old.IsDisposed())
		require.Equal(t, "cam-2", fakeTransceiver(t, p, vp8Option).Sender().Track().ID())
	})
}

func TestUnpublishStreamStopsTracks(t *testing.T) {
	p, _, _ := newTestPublisher(t, vp8Option, opusOption)
	cam := rtctest.NewTrack(webrtc.RTPCodecTypeVideo, "cam")
	mic := rtctest.NewTrack(webrtc.RTPCodecTypeAudio, "mic")
	require.NoError(t, p.PublishStream(context.Background(), cam, types.TrackTypeVideo, types.CaptureFormat{}))
	require.NoError(t, p.PublishStream(context.Background(), mic, types.TrackTypeAudio, types.CaptureFormat{}))

	tr := fakeTransceiver(t, p, vp8Option)
	p.UnpublishStream(types.TrackTypeVideo, true)

	require.True(t, cam.IsStopped())
	require.True(t, tr.IsStopped())
	require.False(t, p.Registry().Contains(vp8Option))
	require.True(t, p.Registry().Contains(opusOption))
	require.True(t, p.IsPublishing(types.TrackTypeAudio))
}

func TestPublisherNegotiate(t *testing.T) {
	t.Run("nothing to announce", func(t *testing.T) {
		p, pc, signal := newTestPublisher(t, vp8Option)

		err := p.Negotiate(context.Background(), false)
		require.ErrorIs(t, err, ErrNoTracksToAnnounce)
		require.Zero(t, signal.SetPublisherCallCount())
		require.Empty(t, pc.LocalCalls())
	})

	t.Run("offer, announce and apply answer", func(t *testing.T) {
		p, pc, signal := newTestPublisher(t, vp8Option, opusOption)
		require.NoError(t, p.PublishStream(context.Background(), rtctest.NewTrack(webrtc.RTPCodecTypeVideo, "cam"), types.TrackTypeVideo, types.CaptureFormat{}))
		require.NoError(t, p.PublishStream(context.Background(), rtctest.NewTrack(webrtc.RTPCodecTypeAudio, "mic"), types.TrackTypeAudio, types.CaptureFormat{}))

		require.NoError(t, p.Negotiate(context.Background(), false))

		require.Equal(t, 1, signal.SetPublisherCallCount())
		_, req := signal.SetPublisherArgsForCall(0)
		require.Equal(t, "offer-1", req.SDP)
		require.Equal(t, "S_test", req.SessionID)
		require.Len(t, req.Tracks, 2)

		video := req.Tracks[0]
		require.Equal(t, "cam", video.TrackID)
		require.Equal(t, types.TrackTypeVideo, video.TrackType)
		require.Equal(t, "0", video.Mid)
		require.False(t, video.Muted)
		require.Len(t, video.Layers, 3)
		require.Equal(t, "f", video.Layers[2].Rid)
		require.Equal(t, types.VideoDimension{Width: 1280, Height: 720}, video.Layers[2].Dimension)

		audio := req.Tracks[1]
		require.Equal(t, "mic", audio.TrackID)
		require.Equal(t, "1", audio.Mid)
		require.Empty(t, audio.Layers)

		remote := pc.RemoteCalls()
		require.Len(t, remote, 1)
		require.Equal(t, webrtc.SDPTypeAnswer, remote[0].Type)
		require.Equal(t, "answer", remote[0].SDP)
	})

	t.Run("SFU error fails without applying an answer", func(t *testing.T) {
		p, pc, signal := newTestPublisher(t, vp8Option)
		signal.SetPublisherReturns(&types.SetPublisherResponse{
			Error: &types.SFUError{Code: 400, Message: "bad offer"},
		}, nil)
		require.NoError(t, p.PublishStream(context.Background(), rtctest.NewTrack(webrtc.RTPCodecTypeVideo, "cam"), types.TrackTypeVideo, types.CaptureFormat{}))

		err := p.Negotiate(context.Background(), false)
		require.Error(t, err)
		require.Contains(t, err.Error(), "bad offer")
		require.Empty(t, pc.RemoteCalls())
	})

	t.Run("muted track is announced with cached layers", func(t *testing.T) {
		p, _, signal := newTestPublisher(t, vp8Option)
		cam := rtctest.NewTrack(webrtc.RTPCodecTypeVideo, "cam")
		require.NoError(t, p.PublishStream(context.Background(), cam, types.TrackTypeVideo, types.CaptureFormat{Width: 640, Height: 480, Fps: 30}))
		require.NoError(t, p.Negotiate(context.Background(), false))
		cam.End()

		require.NoError(t, p.Negotiate(context.Background(), false))
		_, first := signal.SetPublisherArgsForCall(0)
		_, second := signal.SetPublisherArgsForCall(1)
		require.True(t, second.Tracks[0].Muted)
		require.Equal(t, first.Tracks[0].Layers, second.Tracks[0].Layers)
	})
}

func TestPublisherRestartICE(t *testing.T) {
	t.Run("restarts with new credentials", func(t *testing.T) {
		p, pc, _ := newTestPublisher(t, vp8Option)
		require.NoError(t, p.PublishStream(context.Background(), rtctest.NewTrack(webrtc.RTPCodecTypeVideo, "cam"), types.TrackTypeVideo, types.CaptureFormat{}))

		require.NoError(t, p.RestartICE(context.Background()))
		require.Equal(t, 1, pc.OfferCount())
		require.True(t, pc.LastOfferWasRestart())
		require.False(t, p.iceRestarting.Load())
	})

	t.Run("skipped while an offer is pending", func(t *testing.T) {
		p, pc, _ := newTestPublisher(t, vp8Option)
		require.NoError(t, p.PublishStream(context.Background(), rtctest.NewTrack(webrtc.RTPCodecTypeVideo, "cam"), types.TrackTypeVideo, types.CaptureFormat{}))
		pc.SetSignalingState(webrtc.SignalingStateHaveLocalOffer)

		require.NoError(t, p.RestartICE(context.Background()))
		require.Zero(t, pc.OfferCount())
	})

	t.Run("regular negotiation is dropped during a restart", func(t *testing.T) {
		p, pc, signal := newTestPublisher(t, vp8Option)
		require.NoError(t, p.PublishStream(context.Background(), rtctest.NewTrack(webrtc.RTPCodecTypeVideo, "cam"), types.TrackTypeVideo, types.CaptureFormat{}))
		p.iceRestarting.Store(true)

		require.NoError(t, p.RestartICE(context.Background()))
		require.NoError(t, p.Negotiate(context.Background(), false))
		require.Zero(t, pc.OfferCount())
		require.Zero(t, signal.SetPublisherCallCount())
	})
}

func TestSyncPublishOptions(t *testing.T) {
	p, _, _ := newTestPublisher(t, vp8Option)
	cam := rtctest.NewTrack(webrtc.RTPCodecTypeVideo, "cam")
	require.NoError(t, p.PublishStream(context.Background(), cam, types.TrackTypeVideo, types.CaptureFormat{}))
	vp8 := fakeTransceiver(t, p, vp8Option)

	// a new option reuses the published track
	require.NoError(t, p.SyncPublishOptions(context.Background(), []types.PublishOption{vp8Option, vp9Option}))
	require.Equal(t, 2, p.Registry().Len())
	require.Equal(t, "cam-clone-1", fakeTransceiver(t, p, vp9Option).Sender().Track().ID())

	// options missing from the list are torn down
	require.NoError(t, p.SyncPublishOptions(context.Background(), []types.PublishOption{vp9Option}))
	require.False(t, p.Registry().Contains(vp8Option))
	require.True(t, vp8.IsStopped())
	require.True(t, vp8.IsDisposed())
	require.Equal(t, []types.PublishOption{vp9Option}, p.CurrentOptions())
	require.Equal(t, []types.PublishOption{vp9Option}, p.PublishOptions())

	// nothing is added for track types that are not being published
	require.NoError(t, p.SyncPublishOptions(context.Background(), []types.PublishOption{vp9Option, opusOption}))
	require.False(t, p.Registry().Contains(opusOption))
}

func TestChangePublishQuality(t *testing.T) {
	settingsFrom := func(encodings []types.EncodingLayer) []types.VideoLayerSetting {
		var settings []types.VideoLayerSetting
		for _, e := range encodings {
			settings = append(settings, types.VideoLayerSetting{
				Name:                  e.Rid,
				Active:                e.Active,
				MaxBitrate:            e.MaxBitrateBps,
				ScaleResolutionDownBy: e.ScaleResolutionDownBy,
				MaxFramerate:          e.MaxFramerate,
			})
		}
		return settings
	}

	t.Run("unknown sender", func(t *testing.T) {
		p, _, _ := newTestPublisher(t, vp8Option)
		err := p.ChangePublishQuality(context.Background(), types.VideoSender{TrackType: types.TrackTypeVideo, PublishOptionID: 1})
		require.ErrorIs(t, err, ErrUnknownTransceiver)
	})

	t.Run("identical settings do not touch the sender", func(t *testing.T) {
		p, _, _ := newTestPublisher(t, vp8Option)
		require.NoError(t, p.PublishStream(context.Background(), rtctest.NewTrack(webrtc.RTPCodecTypeVideo, "cam"), types.TrackTypeVideo, types.CaptureFormat{}))
		sender := fakeTransceiver(t, p, vp8Option).FakeSender()

		require.NoError(t, p.ChangePublishQuality(context.Background(), types.VideoSender{
			TrackType:       types.TrackTypeVideo,
			PublishOptionID: 1,
			Layers:          settingsFrom(sender.GetParameters().Encodings),
		}))
		require.Zero(t, sender.SetParametersCallCount())
	})

	t.Run("simulcast layers matched by rid", func(t *testing.T) {
		p, _, _ := newTestPublisher(t, vp8Option)
		require.NoError(t, p.PublishStream(context.Background(), rtctest.NewTrack(webrtc.RTPCodecTypeVideo, "cam"), types.TrackTypeVideo, types.CaptureFormat{}))
		sender := fakeTransceiver(t, p, vp8Option).FakeSender()

		require.NoError(t, p.ChangePublishQuality(context.Background(), types.VideoSender{
			TrackType:       types.TrackTypeVideo,
			PublishOptionID: 1,
			Layers: []types.VideoLayerSetting{
				{Name: "q", Active: true, MaxBitrate: 200_000},
				{Name: "h", Active: true},
				{Name: "f", Active: false, MaxBitrate: 900_000},
			},
		}))
		require.Equal(t, 1, sender.SetParametersCallCount())

		encodings := sender.GetParameters().Encodings
		require.True(t, encodings[0].Active)
		require.Equal(t, uint32(200_000), encodings[0].MaxBitrateBps)
		require.True(t, encodings[1].Active)
		require.Equal(t, uint32(600_000), encodings[1].MaxBitrateBps)
		// inactive layers are not in the enabled set, their values are left alone
		require.False(t, encodings[2].Active)
		require.Equal(t, uint32(1_200_000), encodings[2].MaxBitrateBps)
	})

	t.Run("svc uses the first enabled layer", func(t *testing.T) {
		p, _, _ := newTestPublisher(t, vp9Option)
		require.NoError(t, p.PublishStream(context.Background(), rtctest.NewTrack(webrtc.RTPCodecTypeVideo, "cam"), types.TrackTypeVideo, types.CaptureFormat{}))
		sender := fakeTransceiver(t, p, vp9Option).FakeSender()

		require.NoError(t, p.ChangePublishQuality(context.Background(), types.VideoSender{
			TrackType:       types.TrackTypeVideo,
			PublishOptionID: 2,
			Layers: []types.VideoLayerSetting{
				{Name: "f", Active: true, MaxBitrate: 500_000, ScalabilityMode: "L2T2_KEY"},
			},
		}))
		encodings := sender.GetParameters().Encodings
		require.Len(t, encodings, 1)
		require.Equal(t, "q", encodings[0].Rid)
		require.Equal(t, uint32(500_000), encodings[0].MaxBitrateBps)
		require.Equal(t, "L2T2_KEY", encodings[0].ScalabilityMode)
	})

	t.Run("sender failure is returned", func(t *testing.T) {
		p, _, _ := newTestPublisher(t, vp8Option)
		require.NoError(t, p.PublishStream(context.Background(), rtctest.NewTrack(webrtc.RTPCodecTypeVideo, "cam"), types.TrackTypeVideo, types.CaptureFormat{}))
		sender := fakeTransceiver(t, p, vp8Option).FakeSender()
		sender.FailSetParameters(rtctest.ErrInjected)

		err := p.ChangePublishQuality(context.Background(), types.VideoSender{
			TrackType:       types.TrackTypeVideo,
			PublishOptionID: 1,
			Layers:          []types.VideoLayerSetting{{Name: "q", Active: true}},
		})
		require.ErrorIs(t, err, rtctest.ErrInjected)
	})
}

func TestApplyLayerSettingsSingleEncodingFallback(t *testing.T) {
	encodings := []types.EncodingLayer{{Rid: "q", Active: false, ScaleResolutionDownBy: 1, MaxBitrateBps: 100}}
	changed := applyLayerSettings(encodings, []types.VideoLayerSetting{{Name: "f", Active: true, MaxBitrate: 300}}, false)
	require.True(t, changed)
	require.True(t, encodings[0].Active)
	require.Equal(t, uint32(300), encodings[0].MaxBitrateBps)

	// invalid values are ignored
	changed = applyLayerSettings(encodings, []types.VideoLayerSetting{{Name: "q", Active: true, ScaleResolutionDownBy: 0.5}}, false)
	require.False(t, changed)
	require.Equal(t, 1.0, encodings[0].ScaleResolutionDownBy)
}

const midTestSDP = "v=0\r\n" +
	"o=- 0 0 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:4\r\n" +
	"a=msid:other mic\r\n" +
	"a=rtpmap:111 opus/48000/2\r\n" +
	"m=video 9 UDP/TLS/RTP/SAVPF 96\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:7\r\n" +
	"a=msid:stream cam\r\n" +
	"a=rtpmap:96 VP8/90000\r\n"

func TestAnnouncedTrackMid(t *testing.T) {
	p, _, _ := newTestPublisher(t, vp8Option)
	require.NoError(t, p.PublishStream(context.Background(), rtctest.NewTrack(webrtc.RTPCodecTypeVideo, "cam"), types.TrackTypeVideo, types.CaptureFormat{}))

	// ordinal fallback
	tracks := p.GetAnnouncedTracks(types.CaptureFormat{}, "not sdp")
	require.Equal(t, "0", tracks[0].Mid)

	// from the SDP
	tracks = p.GetAnnouncedTracks(types.CaptureFormat{}, midTestSDP)
	require.Equal(t, "7", tracks[0].Mid)

	// negotiated mid wins
	fakeTransceiver(t, p, vp8Option).SetMid("2")
	tracks = p.GetAnnouncedTracks(types.CaptureFormat{}, midTestSDP)
	require.Equal(t, "2", tracks[0].Mid)

	tracks = p.GetAnnouncedTracksForReconnect()
	require.Len(t, tracks, 1)
	require.Equal(t, "2", tracks[0].Mid)
}

func TestAnnouncedTracksUseCaptureFormat(t *testing.T) {
	p, _, _ := newTestPublisher(t, vp8Option)
	require.NoError(t, p.PublishStream(context.Background(), rtctest.NewTrack(webrtc.RTPCodecTypeVideo, "cam"), types.TrackTypeVideo, types.CaptureFormat{Width: 640, Height: 360, Fps: 15}))

	tracks := p.GetAnnouncedTracks(types.CaptureFormat{}, "")
	require.Equal(t, types.VideoDimension{Width: 640, Height: 360}, tracks[0].Layers[2].Dimension)
	require.Equal(t, uint32(30), tracks[0].Layers[2].Fps)

	tracks = p.GetAnnouncedTracks(types.CaptureFormat{Width: 1920, Height: 1080, Fps: 30}, "")
	require.Equal(t, types.VideoDimension{Width: 1920, Height: 1080}, tracks[0].Layers[2].Dimension)
	require.Equal(t, tracks[0].Layers, layers.ToVideoLayers(p.Registry().GetLayers(vp8Option)))
}

func TestPublisherForwardsLocalCandidates(t *testing.T) {
	_, pc, signal := newTestPublisher(t, vp8Option)

	pc.EmitICECandidate(&webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 1 127.0.0.1 5000 typ host"})
	require.Eventually(t, func() bool { return signal.ICETrickleCallCount() == 1 }, time.Second, 10*time.Millisecond)

	_, req := signal.ICETrickleArgsForCall(0)
	require.Equal(t, types.PeerTypePublisher, req.PeerType)
	require.Equal(t, "S_test", req.SessionID)
	require.Contains(t, req.ICECandidate, "candidate:1 1 udp")
}

func TestPublisherClose(t *testing.T) {
	p, pc, _ := newTestPublisher(t, vp8Option)
	cam := rtctest.NewTrack(webrtc.RTPCodecTypeVideo, "cam")
	require.NoError(t, p.PublishStream(context.Background(), cam, types.TrackTypeVideo, types.CaptureFormat{}))

	p.Close(true)
	require.True(t, cam.IsStopped())
	require.Zero(t, p.Registry().Len())
	require.True(t, pc.IsClosed())

	// idempotent
	p.Close(true)
}

// serialCheckingPeerConnection records how many transceivers are being added at once.
type serialCheckingPeerConnection struct {
	*rtctest.PeerConnection

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (pc *serialCheckingPeerConnection) AddTransceiverFromTrack(track types.MediaTrack, init types.TransceiverInit) (types.Transceiver, error) {
	n := pc.inFlight.Inc()
	defer pc.inFlight.Dec()
	for {
		m := pc.maxInFlight.Load()
		if n <= m || pc.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return pc.PeerConnection.AddTransceiverFromTrack(track, init)
}

func TestConcurrentPublishStreamAddsOneTransceiver(t *testing.T) {
	pc := &serialCheckingPeerConnection{PeerConnection: rtctest.NewPeerConnection()}
	p, err := NewPublisher(PublisherParams{
		SessionID:        "S_test",
		TrackPrefix:      "prefix",
		PeerConnection:   pc,
		SignalClient:     &typesfakes.FakeSignalClient{},
		PublishOptions:   []types.PublishOption{vp8Option},
		NegotiationDelay: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close(false) })

	cam := rtctest.NewTrack(webrtc.RTPCodecTypeVideo, "cam")
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.PublishStream(context.Background(), cam, types.TrackTypeVideo, types.CaptureFormat{}))
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, p.SyncPublishOptions(context.Background(), []types.PublishOption{vp8Option}))
	}()
	wg.Wait()

	require.Equal(t, int32(1), pc.maxInFlight.Load())
	live := 0
	for _, tr := range pc.FakeTransceivers() {
		if !tr.IsStopped() {
			live++
		}
	}
	require.Equal(t, 1, live)
	require.Equal(t, 1, p.Registry().Len())
}

func TestRejectedTransceiverIsTornDown(t *testing.T) {
	p, pc, _ := newTestPublisher(t, vp8Option)
	cam := rtctest.NewTrack(webrtc.RTPCodecTypeVideo, "cam")
	require.NoError(t, p.addTransceiver(cam, cam.ID(), vp8Option))

	clone, err := cam.Clone()
	require.NoError(t, err)
	require.NoError(t, p.addTransceiver(clone, cam.ID(), vp8Option))
	require.NoError(t, p.addTransceiver(cam, cam.ID(), vp8Option))

	trs := pc.FakeTransceivers()
	require.Len(t, trs, 3)
	require.Same(t, trs[0], p.Registry().Get(vp8Option))
	require.False(t, trs[0].IsStopped())
	for _, tr := range trs[1:] {
		require.True(t, tr.IsStopped())
		require.True(t, tr.IsDisposed())
	}

	// the rejected clone is released, the application track is not
	require.True(t, clone.IsDisposed())
	require.False(t, clone.Enabled())
	require.False(t, cam.IsDisposed())
	require.True(t, cam.Enabled())
}

func TestPendingRenegotiationSkippedAfterClose(t *testing.T) {
	pc := rtctest.NewPeerConnection()
	signal := &typesfakes.FakeSignalClient{}
	p, err := NewPublisher(PublisherParams{
		SessionID:        "S_test",
		PeerConnection:   pc,
		SignalClient:     signal,
		PublishOptions:   []types.PublishOption{vp8Option},
		NegotiationDelay: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	p.OnRenegotiationNeeded()
	p.Close(false)

	time.Sleep(50 * time.Millisecond)
	require.Zero(t, pc.OfferCount())
	require.Zero(t, signal.SetPublisherCallCount())
}
