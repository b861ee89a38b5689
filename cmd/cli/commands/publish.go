package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/rtc-session/cmd/cli/client"
	"github.com/livekit/rtc-session/pkg/config"
	"github.com/livekit/rtc-session/pkg/rtc"
	"github.com/livekit/rtc-session/pkg/rtc/layers"
	"github.com/livekit/rtc-session/pkg/rtc/pionengine"
	"github.com/livekit/rtc-session/pkg/rtc/types"
	rtcsignal "github.com/livekit/rtc-session/pkg/signal"
	"github.com/livekit/rtc-session/pkg/telemetry/prometheus"
	"github.com/livekit/rtc-session/pkg/utils"
)

var PublishFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "session-id",
		Usage: "session id assigned by the SFU, generated when empty",
	},
	&cli.StringFlag{
		Name:  "track-prefix",
		Usage: "prefix of published stream ids, defaults to the session id",
	},
	&cli.StringFlag{
		Name:  "video",
		Usage: "an ivf or h264 file to publish as the camera track",
	},
	&cli.StringFlag{
		Name:  "screenshare",
		Usage: "an ivf or h264 file to publish as a screen share",
	},
	&cli.StringFlag{
		Name:  "audio",
		Usage: "an ogg file to publish as the microphone track",
	},
	&cli.UintFlag{
		Name:  "h264-fps",
		Usage: "frame rate of raw h264 files",
		Value: 30,
	},
	&cli.UintFlag{
		Name:  "video-bitrate",
		Usage: "max bitrate of the highest video layer",
		Value: layers.DefaultMaxBitrate,
	},
	&cli.BoolFlag{
		Name:  "loop",
		Usage: "restart files when they end",
	},
}

type publishSource struct {
	trackType types.TrackType
	writer    *client.TrackWriter
}

func Publish(c *cli.Context, conf *config.Config) error {
	if conf.SFU.URL == "" {
		return errors.New("--url or sfu.url is required")
	}
	token, err := conf.ResolveToken()
	if err != nil {
		return err
	}

	sources, err := openSources(c)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return errors.New("at least one of --video, --screenshare or --audio is required")
	}

	sessionID := c.String("session-id")
	if sessionID == "" {
		sessionID = utils.NewGuid(utils.SessionPrefix)
	}
	trackPrefix := c.String("track-prefix")
	if trackPrefix == "" {
		trackPrefix = sessionID
	}
	log := logger.GetLogger().WithValues("sessionID", sessionID)

	g, ctx := errgroup.WithContext(context.Background())
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if conf.PrometheusPort > 0 {
		prometheus.Init()
		startMetricsServer(ctx, g, conf.PrometheusPort, log)
	}

	engine, err := pionengine.NewEngine(ctx, pionengine.EngineParams{
		Config: &conf.RTC,
		Logger: log,
	})
	if err != nil {
		return err
	}
	pc, err := engine.NewPeerConnection(types.PeerTypePublisher)
	if err != nil {
		return err
	}

	signalClient, err := rtcsignal.NewClient(rtcsignal.ClientParams{
		URL:     conf.SFU.URL,
		Token:   token,
		Timeout: conf.SFU.RequestTimeout,
		Logger:  log,
	})
	if err != nil {
		return err
	}

	publisher, err := rtc.NewPublisher(rtc.PublisherParams{
		SessionID:         sessionID,
		TrackPrefix:       trackPrefix,
		PeerConnection:    pc,
		SignalClient:      signalClient,
		PublishOptions:    publishOptions(sources, uint32(c.Uint("video-bitrate"))),
		NegotiationDelay:  conf.RTC.NegotiationDelay,
		CameraFormat:      conf.Publisher.Camera.ToCaptureFormat(),
		ScreenShareFormat: conf.Publisher.ScreenShare.ToCaptureFormat(),
		StereoAudio:       conf.Publisher.StereoAudio,
		Logger:            log,
	})
	if err != nil {
		_ = pc.Close()
		return err
	}
	defer publisher.Close(true)

	writers, writeCtx := errgroup.WithContext(ctx)
	for _, source := range sources {
		source := source
		track, err := engine.NewLocalTrack(source.writer.Kind(), utils.NewGuid(utils.TrackPrefix), trackPrefix)
		if err != nil {
			return err
		}
		if err := publisher.PublishStream(ctx, track, source.trackType, types.CaptureFormat{}); err != nil {
			return fmt.Errorf("could not publish %s: %w", source.trackType, err)
		}
		writers.Go(func() error {
			return source.writer.Run(writeCtx, track)
		})
	}
	log.Infow("publishing", "url", conf.SFU.URL, "tracks", len(sources))

	err = writers.Wait()
	// files are done, release the metrics server
	stop()
	if metricsErr := g.Wait(); err == nil {
		err = metricsErr
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Infow("publish finished", "published", len(publisher.GetPublishedTracks()))
	return err
}

func openSources(c *cli.Context) ([]publishSource, error) {
	var sources []publishSource
	for _, f := range []struct {
		flag      string
		trackType types.TrackType
	}{
		{"video", types.TrackTypeVideo},
		{"screenshare", types.TrackTypeScreenShare},
		{"audio", types.TrackTypeAudio},
	} {
		flag, trackType := f.flag, f.trackType
		path := c.String(flag)
		if path == "" {
			continue
		}
		writer, err := client.NewTrackWriter(client.TrackWriterParams{
			FilePath:  path,
			Framerate: uint32(c.Uint("h264-fps")),
			Loop:      c.Bool("loop"),
		})
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", flag, err)
		}
		if writer.Kind() != trackType.Kind() {
			return nil, fmt.Errorf("--%s: %s cannot be published as %s", flag, writer.MimeType(), trackType)
		}
		sources = append(sources, publishSource{trackType: trackType, writer: writer})
	}
	return sources, nil
}

// publishOptions declares one single-layer option per source, encoded with the codec of its file.
func publishOptions(sources []publishSource, videoBitrate uint32) []types.PublishOption {
	options := make([]types.PublishOption, 0, len(sources))
	for _, source := range sources {
		option := types.PublishOption{
			TrackType: source.trackType,
			Codec:     &types.Codec{Name: source.writer.CodecName(), MimeType: source.writer.MimeType()},
		}
		if source.trackType == types.TrackTypeVideo {
			// a file holds a single pre-encoded stream, announce exactly that
			option.Bitrate = videoBitrate
			option.MaxSpatialLayers = 1
			option.MaxTemporalLayers = 1
		}
		options = append(options, option)
	}
	return options
}

func startMetricsServer(ctx context.Context, g *errgroup.Group, port uint32, log logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		log.Infow("serving metrics", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
