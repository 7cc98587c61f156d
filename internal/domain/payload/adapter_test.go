package payload

import (
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/posekit/posestream/internal/domain/pose"
)

var fixedClock = func() time.Time {
	return time.Date(2025, 1, 2, 3, 4, 5, 123456000, time.UTC)
}

type parsedPayload struct {
	Ts   string `json:"ts"`
	Pose []struct {
		ID int      `json:"id"`
		X  *float64 `json:"x"`
		Y  *float64 `json:"y"`
		Z  *float64 `json:"z"`
	} `json:"pose"`
}

func parse(t *testing.T, text string) parsedPayload {
	t.Helper()
	var p parsedPayload
	require.NoError(t, sonic.Unmarshal([]byte(text), &p))
	return p
}

func stateWith(idx int, x, y, z float64) pose.State {
	s := pose.EmptyState()
	s[idx] = pose.Landmark{Pos: r3.Vec{X: x, Y: y, Z: z}, Visibility: 0.9}
	return s
}

func TestAdapterShape(t *testing.T) {
	adapter := New(withClock(fixedClock))

	text, err := adapter.ToText(stateWith(0, 1, 2, 3))
	require.NoError(t, err)

	p := parse(t, text)
	assert.Equal(t, "2025-01-02T03:04:05.123456Z", p.Ts)
	require.Len(t, p.Pose, pose.NumLandmarks)
	for i, entry := range p.Pose {
		assert.Equal(t, i, entry.ID, "pose array must be ordered by landmark id")
	}
	assert.Equal(t, 1.0, *p.Pose[0].X)
	assert.Equal(t, 2.0, *p.Pose[0].Y)
	assert.Equal(t, 3.0, *p.Pose[0].Z)
}

func TestAdapterKeyOrder(t *testing.T) {
	// Key names and order are a compatibility contract with the remote
	// consumer.
	adapter := New(withClock(fixedClock))

	text, err := adapter.ToText(stateWith(0, 1, 2, 3))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(text, `{"ts":"2025-01-02T03:04:05.123456Z","pose":[`), text)
	assert.Contains(t, text, `{"id":0,"x":1,"y":2,"z":3}`)
}

func TestAdapterNaNToZero(t *testing.T) {
	adapter := New(withClock(fixedClock)) // NaN-to-zero is the default

	text, err := adapter.ToText(pose.EmptyState())
	require.NoError(t, err)

	assert.NotContains(t, text, "NaN")
	assert.NotContains(t, text, "null")

	p := parse(t, text)
	for _, entry := range p.Pose {
		require.NotNil(t, entry.X)
		assert.Equal(t, 0.0, *entry.X)
		assert.Equal(t, 0.0, *entry.Y)
		assert.Equal(t, 0.0, *entry.Z)
	}
}

func TestAdapterNullMarkers(t *testing.T) {
	adapter := New(WithNaNToZero(false), withClock(fixedClock))

	text, err := adapter.ToText(stateWith(1, 7, 8, 9))
	require.NoError(t, err)
	assert.NotContains(t, text, "NaN")

	p := parse(t, text)
	assert.Nil(t, p.Pose[0].X, "unknown coordinates must serialize as null markers")
	require.NotNil(t, p.Pose[1].X)
	assert.Equal(t, 7.0, *p.Pose[1].X)
}

func TestAdapterRounding(t *testing.T) {
	adapter := New(WithRounding(2), withClock(fixedClock))

	text, err := adapter.ToText(stateWith(0, 1.23456789, -0.006, 2.999))
	require.NoError(t, err)

	p := parse(t, text)
	assert.InDelta(t, 1.23, *p.Pose[0].X, 1e-12)
	assert.InDelta(t, -0.01, *p.Pose[0].Y, 1e-12)
	assert.InDelta(t, 3.0, *p.Pose[0].Z, 1e-12)
}

func TestAdapterFullPrecisionByDefault(t *testing.T) {
	adapter := New(withClock(fixedClock))

	text, err := adapter.ToText(stateWith(0, 1.23456789, 0, 0))
	require.NoError(t, err)

	p := parse(t, text)
	assert.Equal(t, 1.23456789, *p.Pose[0].X)
}

func TestAdapterVisibilityNotSerialized(t *testing.T) {
	adapter := New(withClock(fixedClock))

	text, err := adapter.ToText(stateWith(0, 1, 2, 3))
	require.NoError(t, err)

	assert.NotContains(t, text, "visibility")
}
