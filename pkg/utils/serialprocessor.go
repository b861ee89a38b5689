package utils

import (
	"context"
	"errors"
	"sync"

	"github.com/frostbyte73/core"
	"github.com/gammazero/workerpool"

	"github.com/livekit/protocol/logger"
)

var ErrProcessorStopped = errors.New("serial processor stopped")

// SerialProcessor runs submitted jobs strictly one after another and hands each
// result back to its submitter.
type SerialProcessor struct {
	logger logger.Logger
	pool   *workerpool.WorkerPool

	lock      sync.RWMutex
	isStopped bool
	stopped   core.Fuse
}

func NewSerialProcessor(logger logger.Logger) *SerialProcessor {
	return &SerialProcessor{
		logger: logger,
		pool:   workerpool.New(1),
	}
}

// Submit queues job and waits for it. If ctx ends first the call returns ctx.Err(),
// and if the processor stops first it returns ErrProcessorStopped. Either way a job
// that has not started yet is skipped.
func (s *SerialProcessor) Submit(ctx context.Context, name string, job func(ctx context.Context) error) error {
	s.lock.RLock()
	if s.isStopped {
		s.lock.RUnlock()
		return ErrProcessorStopped
	}

	done := make(chan error, 1)
	s.pool.Submit(func() {
		if s.stopped.IsBroken() {
			done <- ErrProcessorStopped
			return
		}
		if err := ctx.Err(); err != nil {
			done <- err
			return
		}
		s.logger.Debugw("running job", "job", name)
		done <- job(ctx)
	})
	s.lock.RUnlock()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped.Watch():
		select {
		case err := <-done:
			return err
		default:
			return ErrProcessorStopped
		}
	}
}

// Stop releases every waiting submitter and skips queued jobs. It returns once the
// running job, if any, has finished.
func (s *SerialProcessor) Stop() {
	s.lock.Lock()
	if s.isStopped {
		s.lock.Unlock()
		return
	}
	s.isStopped = true
	s.stopped.Break()
	s.lock.Unlock()

	s.pool.Stop()
}
