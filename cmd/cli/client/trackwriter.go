package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/pion/webrtc/v3/pkg/media/h264reader"
	"github.com/pion/webrtc/v3/pkg/media/ivfreader"
	"github.com/pion/webrtc/v3/pkg/media/oggreader"

	"github.com/livekit/protocol/logger"
)

const (
	opusSampleRate       = 48000
	defaultH264Framerate = 30
)

var ErrUnsupportedFile = errors.New("unsupported media file, expected .ivf, .ogg or .h264")

// SampleWriter receives encoded frames. pionengine.LocalTrack implements it.
type SampleWriter interface {
	ID() string
	WriteCodecSample(mimeType string, sample media.Sample) error
}

type TrackWriterParams struct {
	FilePath string
	// frame rate used to pace raw h264 streams
	Framerate uint32
	Loop      bool
	Logger    logger.Logger
}

// TrackWriter paces samples read from a media file onto a track at playback speed.
type TrackWriter struct {
	params   TrackWriterParams
	mimeType string
	logger   logger.Logger
}

func NewTrackWriter(params TrackWriterParams) (*TrackWriter, error) {
	if params.Logger == nil {
		params.Logger = logger.GetLogger()
	}
	if params.Framerate == 0 {
		params.Framerate = defaultH264Framerate
	}
	mimeType, err := probeMimeType(params.FilePath)
	if err != nil {
		return nil, err
	}
	return &TrackWriter{
		params:   params,
		mimeType: mimeType,
		logger:   params.Logger.WithValues("file", params.FilePath, "mimeType", mimeType),
	}, nil
}

func (w *TrackWriter) MimeType() string {
	return w.mimeType
}

func (w *TrackWriter) Kind() webrtc.RTPCodecType {
	if strings.HasPrefix(w.mimeType, "audio/") {
		return webrtc.RTPCodecTypeAudio
	}
	return webrtc.RTPCodecTypeVideo
}

// CodecName is the short codec name, e.g. VP8 or opus.
func (w *TrackWriter) CodecName() string {
	_, name, _ := strings.Cut(w.mimeType, "/")
	return name
}

// Run writes the file to track until it ends, or until ctx is done when looping.
func (w *TrackWriter) Run(ctx context.Context, track SampleWriter) error {
	w.logger.Infow("starting track writer", "trackID", track.ID())
	for {
		err := w.writeFile(ctx, track)
		switch {
		case err != nil:
			return err
		case ctx.Err() != nil:
			return nil
		case !w.params.Loop:
			w.logger.Infow("all samples parsed and sent", "trackID", track.ID())
			return nil
		}
	}
}

func (w *TrackWriter) writeFile(ctx context.Context, track SampleWriter) error {
	file, err := os.Open(w.params.FilePath)
	if err != nil {
		return err
	}
	defer file.Close()

	switch w.mimeType {
	case webrtc.MimeTypeOpus:
		return w.writeOgg(ctx, file, track)
	case webrtc.MimeTypeH264:
		return w.writeH264(ctx, file, track)
	default:
		return w.writeIVF(ctx, file, track)
	}
}

func (w *TrackWriter) writeOgg(ctx context.Context, r io.Reader, track SampleWriter) error {
	ogg, _, err := oggreader.NewWith(r)
	if err != nil {
		return err
	}

	// the granule delta is the number of samples in the page
	var lastGranule uint64
	pacer := newPacer()
	for {
		pageData, pageHeader, err := ogg.ParseNextPage()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not parse ogg page: %w", err)
		}

		sampleCount := pageHeader.GranulePosition - lastGranule
		lastGranule = pageHeader.GranulePosition
		duration := time.Duration(sampleCount) * time.Second / opusSampleRate

		if err := w.write(track, media.Sample{Data: pageData, Duration: duration}); err != nil {
			return err
		}
		if !pacer.wait(ctx, duration) {
			return nil
		}
	}
}

func (w *TrackWriter) writeIVF(ctx context.Context, r io.Reader, track SampleWriter) error {
	ivf, header, err := ivfreader.NewWith(r)
	if err != nil {
		return err
	}

	frameDuration := time.Duration(float64(header.TimebaseNumerator) / float64(header.TimebaseDenominator) * float64(time.Second))
	pacer := newPacer()
	for {
		frame, _, err := ivf.ParseNextFrame()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not parse ivf frame: %w", err)
		}

		if err := w.write(track, media.Sample{Data: frame, Duration: frameDuration}); err != nil {
			return err
		}
		if !pacer.wait(ctx, frameDuration) {
			return nil
		}
	}
}

func (w *TrackWriter) writeH264(ctx context.Context, r io.Reader, track SampleWriter) error {
	h264, err := h264reader.NewReader(r)
	if err != nil {
		return err
	}

	frameDuration := time.Second / time.Duration(w.params.Framerate)
	pacer := newPacer()
	for {
		nal, err := h264.NextNAL()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not parse h264 NAL: %w", err)
		}

		if err := w.write(track, media.Sample{Data: nal.Data, Duration: frameDuration}); err != nil {
			return err
		}
		// parameter sets travel with the next frame
		if nal.UnitType == h264reader.NalUnitTypeSPS || nal.UnitType == h264reader.NalUnitTypePPS {
			continue
		}
		if !pacer.wait(ctx, frameDuration) {
			return nil
		}
	}
}

func (w *TrackWriter) write(track SampleWriter, sample media.Sample) error {
	if err := track.WriteCodecSample(w.mimeType, sample); err != nil {
		return fmt.Errorf("could not write sample: %w", err)
	}
	return nil
}

// pacer sleeps against a running deadline so that slow writes do not accumulate drift.
type pacer struct {
	next time.Time
}

func newPacer() *pacer {
	return &pacer{next: time.Now()}
}

func (p *pacer) wait(ctx context.Context, d time.Duration) bool {
	p.next = p.next.Add(d)
	timer := time.NewTimer(time.Until(p.next))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func probeMimeType(filePath string) (string, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".ogg", ".opus":
		return webrtc.MimeTypeOpus, nil
	case ".h264", ".264":
		return webrtc.MimeTypeH264, nil
	case ".ivf":
	default:
		return "", ErrUnsupportedFile
	}

	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	_, header, err := ivfreader.NewWith(file)
	if err != nil {
		return "", err
	}
	switch header.FourCC {
	case "VP80":
		return webrtc.MimeTypeVP8, nil
	case "VP90":
		return webrtc.MimeTypeVP9, nil
	case "AV01":
		return webrtc.MimeTypeAV1, nil
	default:
		return "", fmt.Errorf("unsupported ivf codec %q", header.FourCC)
	}
}
