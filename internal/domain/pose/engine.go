package pose

import (
	"sync"

	"github.com/posekit/posestream/internal/infrastructure/monitoring"
)

// Engine consolidates noisy per-frame detections into a temporally stable
// pose state.
//
// Merge semantics:
//   - Until any landmark has been observed, an incoming frame seeds the
//     state: landmarks at or above the visibility threshold are copied in,
//     the rest stay unknown.
//   - Afterwards, each landmark is accepted or rejected independently.
//     Accepted landmarks are blended with the stored value by the smoother;
//     rejected landmarks keep their previous value (hold-last-good). A
//     landmark never reverts to unknown once it has been seen.
//
// The engine is the single writer of its State. Merge and Current hand out
// value copies, so callers can never observe or cause a partial update.
type Engine struct {
	visThresh float64
	smooth    Smoother
	metrics   *monitoring.Metrics

	mu    sync.Mutex
	state State
	seen  bool
}

// NewEngine creates a merge engine. visThresh is the minimum visibility for
// a landmark observation to be accepted and must be in [0,1]; smooth may be
// nil, which disables temporal filtering.
func NewEngine(visThresh float64, smooth Smoother) *Engine {
	if smooth == nil {
		smooth = Passthrough()
	}
	return &Engine{
		visThresh: visThresh,
		smooth:    smooth,
		state:     EmptyState(),
	}
}

// WithMetrics attaches a metrics collector to the engine.
func (e *Engine) WithMetrics(m *monitoring.Metrics) *Engine {
	e.metrics = m
	return e
}

// Merge folds one detection frame into the stored state and returns an
// independent snapshot of the result.
func (e *Engine) Merge(frame Frame) State {
	e.mu.Lock()
	defer e.mu.Unlock()

	accepted := 0
	if !e.seen {
		for i := range frame {
			if frame[i].Visibility >= e.visThresh {
				e.state[i] = frame[i]
				e.seen = true
				accepted++
			}
		}
	} else {
		for i := range frame {
			// NaN visibility compares false and is rejected, as intended.
			if !(frame[i].Visibility >= e.visThresh) {
				continue
			}
			accepted++
			prev := e.state[i]
			if prev.IsUnknown() {
				// First sighting of this landmark: adopt, don't blend.
				e.state[i] = frame[i]
				continue
			}
			e.state[i] = Landmark{
				Pos:        e.smooth(prev.Pos, frame[i].Pos),
				Visibility: frame[i].Visibility,
			}
		}
	}

	if e.metrics != nil {
		e.metrics.RecordMerge(accepted, NumLandmarks-accepted)
	}
	return e.state
}

// Current returns a snapshot of the stored state and whether any landmark
// has ever been observed.
func (e *Engine) Current() (State, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.seen
}

// VisibilityThreshold returns the configured acceptance threshold.
func (e *Engine) VisibilityThreshold() float64 {
	return e.visThresh
}
