package pose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownSentinel(t *testing.T) {
	u := Unknown()
	assert.True(t, u.IsUnknown())

	known := lm(0, 0, 0, 0)
	assert.False(t, known.IsUnknown(), "an observed zero is not unknown")
}

func TestFrameFromSlice(t *testing.T) {
	landmarks := make([]Landmark, NumLandmarks)
	for i := range landmarks {
		landmarks[i] = lm(float64(i), 0, 0, 1)
	}

	frame, err := FrameFromSlice(landmarks)
	require.NoError(t, err)
	assert.Equal(t, landmarks[32], frame[32])
}

func TestFrameFromSliceWrongCount(t *testing.T) {
	_, err := FrameFromSlice(make([]Landmark, 10))
	assert.ErrorContains(t, err, "exactly 33")

	_, err = FrameFromSlice(make([]Landmark, 34))
	assert.Error(t, err)
}

func TestStateCoverage(t *testing.T) {
	s := EmptyState()
	assert.False(t, s.AnyKnown())
	assert.Equal(t, 0, s.KnownCount())

	s[3] = lm(1, 2, 3, 0.7)
	assert.True(t, s.AnyKnown())
	assert.Equal(t, 1, s.KnownCount())
}
