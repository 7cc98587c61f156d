package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/posekit/posestream/internal/domain/pose"
	"github.com/posekit/posestream/internal/infrastructure/logging"
)

// ErrStopTimeout is returned when the producer loop does not exit within the
// bounded join window. Frame acquisition may be slow to interrupt, so
// shutdown waits, but not forever.
var ErrStopTimeout = errors.New("ingest runner did not stop in time")

// Runner is the producer execution context: one loop iteration per incoming
// detection frame, unbounded/blocking on frame acquisition. It never
// performs network sends itself; the broadcast side runs independently.
type Runner struct {
	source      Source
	engine      *pose.Engine
	store       *pose.Store
	logger      *logging.Logger
	maxFailures int

	done chan struct{}
	err  error
}

// NewRunner creates a producer loop. maxFailures is the number of
// consecutive source errors tolerated before the loop gives up; the
// broadcast side keeps serving the last merged state regardless.
func NewRunner(source Source, engine *pose.Engine, store *pose.Store, logger *logging.Logger, maxFailures int) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &Runner{
		source:      source,
		engine:      engine,
		store:       store,
		logger:      logger,
		maxFailures: maxFailures,
		done:        make(chan struct{}),
	}
}

// Start launches the producer loop on its own goroutine.
func (r *Runner) Start(ctx context.Context) {
	go r.loop(ctx)
}

// Stop waits for the producer loop to exit, bounded by timeout. It returns
// the loop's terminal error, or ErrStopTimeout if the loop is still blocked
// in frame acquisition when the window closes.
func (r *Runner) Stop(timeout time.Duration) error {
	select {
	case <-r.done:
		return r.err
	case <-time.After(timeout):
		return ErrStopTimeout
	}
}

// Done returns a channel closed when the producer loop has exited.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)

	failures := 0
	for {
		frame, err := r.source.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				r.logger.Info("frame source closed")
				return
			}
			failures++
			r.logger.Warn("frame acquisition failed",
				zap.Error(err),
				zap.Int("consecutive", failures),
			)
			if failures >= r.maxFailures {
				r.err = fmt.Errorf("frame source failed %d times in a row: %w", failures, err)
				r.logger.Error("giving up on frame source", zap.Error(r.err))
				return
			}
			continue
		}
		failures = 0

		merged := r.engine.Merge(frame)
		r.store.Set(merged)
	}
}
