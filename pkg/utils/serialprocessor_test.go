package utils

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/livekit/protocol/logger"
)

func TestSerialProcessor(t *testing.T) {
	t.Run("jobs do not overlap", func(t *testing.T) {
		sp := NewSerialProcessor(logger.GetLogger())
		defer sp.Stop()

		var lock sync.Mutex
		running := 0
		maxRunning := 0
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := sp.Submit(context.Background(), "job", func(ctx context.Context) error {
					lock.Lock()
					running++
					if running > maxRunning {
						maxRunning = running
					}
					lock.Unlock()

					time.Sleep(2 * time.Millisecond)

					lock.Lock()
					running--
					lock.Unlock()
					return nil
				})
				if err != nil {
					t.Error(err)
				}
			}()
		}
		wg.Wait()
		require.Equal(t, 1, maxRunning)
	})

	t.Run("returns job error", func(t *testing.T) {
		sp := NewSerialProcessor(logger.GetLogger())
		defer sp.Stop()

		errJob := errors.New("job failed")
		err := sp.Submit(context.Background(), "job", func(ctx context.Context) error { return errJob })
		require.ErrorIs(t, err, errJob)
	})

	t.Run("cancelled context skips job", func(t *testing.T) {
		sp := NewSerialProcessor(logger.GetLogger())
		defer sp.Stop()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := sp.Submit(ctx, "job", func(ctx context.Context) error {
			t.Error("should not run")
			return nil
		})
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("stop releases queued submitters", func(t *testing.T) {
		sp := NewSerialProcessor(logger.GetLogger())

		started := make(chan struct{})
		release := make(chan struct{})
		running := make(chan error, 1)
		go func() {
			running <- sp.Submit(context.Background(), "running", func(ctx context.Context) error {
				close(started)
				<-release
				return nil
			})
		}()
		<-started

		queued := make(chan error, 1)
		go func() {
			queued <- sp.Submit(context.Background(), "queued", func(ctx context.Context) error {
				t.Error("queued job should be skipped")
				return nil
			})
		}()

		stopped := make(chan struct{})
		go func() {
			sp.Stop()
			close(stopped)
		}()

		select {
		case err := <-queued:
			require.ErrorIs(t, err, ErrProcessorStopped)
		case <-time.After(time.Second):
			t.Fatal("queued submitter still blocked after stop")
		}

		close(release)
		select {
		case <-stopped:
		case <-time.After(time.Second):
			t.Fatal("stop did not return")
		}
		<-running
	})

	t.Run("stopped", func(t *testing.T) {
		sp := NewSerialProcessor(logger.GetLogger())
		sp.Stop()
		err := sp.Submit(context.Background(), "job", func(ctx context.Context) error { return nil })
		require.ErrorIs(t, err, ErrProcessorStopped)
	})
}
