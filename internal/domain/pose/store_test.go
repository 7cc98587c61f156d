package pose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestStoreNotifiesInAttachmentOrder(t *testing.T) {
	store := NewStore(zap.NewNop())

	var order []string
	store.Attach(ObserverFunc(func(State) { order = append(order, "first") }))
	store.Attach(ObserverFunc(func(State) { order = append(order, "second") }))
	store.Attach(ObserverFunc(func(State) { order = append(order, "third") }))

	store.Set(EmptyState())

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestStoreDetach(t *testing.T) {
	store := NewStore(zap.NewNop())

	calls := 0
	obs := ObserverFunc(func(State) { calls++ })
	store.Attach(obs)
	store.Set(EmptyState())
	assert.Equal(t, 1, calls)

	store.Detach(obs)
	store.Set(EmptyState())
	assert.Equal(t, 1, calls)

	// Detaching something never attached is a no-op.
	store.Detach(ObserverFunc(func(State) {}))
}

func TestStorePanicContainment(t *testing.T) {
	store := NewStore(zap.NewNop())

	received := 0
	store.Attach(ObserverFunc(func(State) { panic("observer bug") }))
	store.Attach(ObserverFunc(func(State) { received++ }))

	assert.NotPanics(t, func() { store.Set(EmptyState()) })
	assert.Equal(t, 1, received, "a panicking observer must not block the rest of the pass")
}

func TestStoreLatest(t *testing.T) {
	store := NewStore(zap.NewNop())

	_, ok := store.Latest()
	assert.False(t, ok)

	state := EmptyState()
	state[0] = lm(1, 2, 3, 0.9)
	store.Set(state)

	latest, ok := store.Latest()
	assert.True(t, ok)
	assert.Equal(t, state, latest)
}

func TestStoreObserverSeesInstalledState(t *testing.T) {
	store := NewStore(zap.NewNop())

	var seen State
	store.Attach(ObserverFunc(func(s State) { seen = s }))

	state := EmptyState()
	state[10] = lm(4, 5, 6, 0.8)
	store.Set(state)

	assert.Equal(t, state, seen)
}
