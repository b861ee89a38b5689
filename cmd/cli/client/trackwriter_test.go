package client

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/stretchr/testify/require"
)

type recordingTrack struct {
	lock    sync.Mutex
	mimes   []string
	samples []media.Sample
}

func (r *recordingTrack) ID() string {
	return "recording"
}

func (r *recordingTrack) WriteCodecSample(mimeType string, sample media.Sample) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.mimes = append(r.mimes, mimeType)
	r.samples = append(r.samples, sample)
	return nil
}

func (r *recordingTrack) count() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.samples)
}

// writeIVF creates a file with one-millisecond frames.
func writeIVF(t *testing.T, fourCC string, frames ...[]byte) string {
	t.Helper()
	header := make([]byte, 32)
	copy(header[0:4], "DKIF")
	binary.LittleEndian.PutUint16(header[4:6], 0)
	binary.LittleEndian.PutUint16(header[6:8], 32)
	copy(header[8:12], fourCC)
	binary.LittleEndian.PutUint16(header[12:14], 640)
	binary.LittleEndian.PutUint16(header[14:16], 480)
	binary.LittleEndian.PutUint32(header[16:20], 1000)
	binary.LittleEndian.PutUint32(header[20:24], 1)
	binary.LittleEndian.PutUint32(header[24:28], uint32(len(frames)))

	data := header
	for i, frame := range frames {
		frameHeader := make([]byte, 12)
		binary.LittleEndian.PutUint32(frameHeader[0:4], uint32(len(frame)))
		binary.LittleEndian.PutUint64(frameHeader[4:12], uint64(i))
		data = append(data, frameHeader...)
		data = append(data, frame...)
	}

	path := filepath.Join(t.TempDir(), "video.ivf")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestProbeMimeType(t *testing.T) {
	mimeType, err := probeMimeType(writeIVF(t, "VP90", []byte{1}))
	require.NoError(t, err)
	require.Equal(t, webrtc.MimeTypeVP9, mimeType)

	mimeType, err = probeMimeType("audio.OGG")
	require.NoError(t, err)
	require.Equal(t, webrtc.MimeTypeOpus, mimeType)

	mimeType, err = probeMimeType("video.h264")
	require.NoError(t, err)
	require.Equal(t, webrtc.MimeTypeH264, mimeType)

	_, err = probeMimeType("video.mp4")
	require.ErrorIs(t, err, ErrUnsupportedFile)

	_, err = probeMimeType(writeIVF(t, "XXXX", []byte{1}))
	require.Error(t, err)
}

func TestTrackWriterIVF(t *testing.T) {
	path := writeIVF(t, "VP80", []byte{1, 2}, []byte{3}, []byte{4, 5, 6})
	w, err := NewTrackWriter(TrackWriterParams{FilePath: path})
	require.NoError(t, err)
	require.Equal(t, webrtc.MimeTypeVP8, w.MimeType())
	require.Equal(t, webrtc.RTPCodecTypeVideo, w.Kind())
	require.Equal(t, "VP8", w.CodecName())

	track := &recordingTrack{}
	require.NoError(t, w.Run(context.Background(), track))

	require.Len(t, track.samples, 3)
	require.Equal(t, []byte{3}, track.samples[1].Data)
	require.Equal(t, time.Millisecond, track.samples[0].Duration)
	for _, mime := range track.mimes {
		require.Equal(t, webrtc.MimeTypeVP8, mime)
	}
}

func TestTrackWriterLoopStopsWithContext(t *testing.T) {
	path := writeIVF(t, "VP80", []byte{1}, []byte{2})
	w, err := NewTrackWriter(TrackWriterParams{FilePath: path, Loop: true})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	track := &recordingTrack{}
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, track)
	}()

	require.Eventually(t, func() bool {
		return track.count() > 4
	}, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("writer did not stop")
	}
}

func TestTrackWriterMissingFile(t *testing.T) {
	_, err := NewTrackWriter(TrackWriterParams{FilePath: filepath.Join(t.TempDir(), "missing.ivf")})
	require.Error(t, err)
}
