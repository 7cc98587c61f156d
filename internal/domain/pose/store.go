package pose

import (
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/posekit/posestream/internal/infrastructure/monitoring"
)

// Observer receives each newly merged pose state.
//
// Observers are called synchronously on the producer's goroutine, in
// attachment order. A panicking observer is contained and logged; it does
// not stop the notification pass or the producer.
type Observer interface {
	OnState(s State)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(State)

// OnState calls f(s).
func (f ObserverFunc) OnState(s State) { f(s) }

// Store holds the latest merged state and pushes every update to a set of
// attached observers. Set is the single mutating entry point: it installs
// the new state and immediately notifies.
type Store struct {
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu        sync.Mutex
	latest    State
	hasLatest bool
	observers []Observer
}

// NewStore creates an observable pose store.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		logger: logger,
		latest: EmptyState(),
	}
}

// WithMetrics attaches a metrics collector to the store.
func (s *Store) WithMetrics(m *monitoring.Metrics) *Store {
	s.metrics = m
	return s
}

// Attach registers an observer. Observers are notified in attachment order.
func (s *Store) Attach(obs Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, obs)
}

// Detach removes a previously attached observer. Detaching an observer that
// was never attached is a no-op.
func (s *Store) Detach(obs Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.observers {
		if sameObserver(s.observers[i], obs) {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

// sameObserver matches observers by identity. Func-typed observers are not
// comparable with ==, so those are matched by code pointer.
func sameObserver(a, b Observer) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

// Set installs a new state and notifies every attached observer.
func (s *Store) Set(state State) {
	s.mu.Lock()
	s.latest = state
	s.hasLatest = true
	// Snapshot so a detach during notification cannot shift the pass.
	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	for _, obs := range observers {
		s.notify(obs, state)
	}
}

// Latest returns the most recently installed state and whether any state has
// been installed yet.
func (s *Store) Latest() (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.hasLatest
}

func (s *Store) notify(obs Observer, state State) {
	defer func() {
		if r := recover(); r != nil {
			if s.metrics != nil {
				s.metrics.ObserverPanics.Inc()
			}
			s.logger.Error("pose observer panicked", zap.Any("panic", r))
		}
	}()
	obs.OnState(state)
}
