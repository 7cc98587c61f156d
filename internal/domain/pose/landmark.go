package pose

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// NumLandmarks is the number of body landmarks in one detection sample.
// Landmark order is part of the wire contract and must be preserved
// end-to-end.
const NumLandmarks = 33

// Landmark is one anatomical keypoint: a camera-space position and the
// detector's confidence that the point was actually visible, in [0,1].
//
// A landmark that has never been observed (or whose observations were all
// rejected) carries NaN on every channel. That is a distinct value from
// zero: it means "unknown", not "at the origin".
type Landmark struct {
	Pos        r3.Vec
	Visibility float64
}

// Unknown returns the sentinel landmark for "never observed".
func Unknown() Landmark {
	nan := math.NaN()
	return Landmark{
		Pos:        r3.Vec{X: nan, Y: nan, Z: nan},
		Visibility: nan,
	}
}

// IsUnknown reports whether the landmark holds the unknown sentinel.
func (l Landmark) IsUnknown() bool {
	return math.IsNaN(l.Pos.X)
}

// Frame is one producer-supplied detection sample of all 33 landmarks,
// indexed by anatomical landmark id.
type Frame [NumLandmarks]Landmark

// State is the engine's authoritative best estimate of all 33 landmarks.
// Being an array type, assignment and return hand out independent copies.
type State [NumLandmarks]Landmark

// EmptyFrame returns a frame with every landmark unknown.
func EmptyFrame() Frame {
	var f Frame
	for i := range f {
		f[i] = Unknown()
	}
	return f
}

// EmptyState returns a state with every landmark unknown.
func EmptyState() State {
	return State(EmptyFrame())
}

// AnyKnown reports whether at least one landmark has been observed.
func (s State) AnyKnown() bool {
	for i := range s {
		if !s[i].IsUnknown() {
			return true
		}
	}
	return false
}

// KnownCount returns the number of landmarks with an accepted value.
func (s State) KnownCount() int {
	n := 0
	for i := range s {
		if !s[i].IsUnknown() {
			n++
		}
	}
	return n
}

// FrameFromSlice validates and converts a variable-length landmark list into
// a Frame. A wrong landmark count is a caller error: it is rejected rather
// than silently truncated or padded.
func FrameFromSlice(landmarks []Landmark) (Frame, error) {
	var f Frame
	if len(landmarks) != NumLandmarks {
		return f, fmt.Errorf("frame must contain exactly %d landmarks, got %d", NumLandmarks, len(landmarks))
	}
	copy(f[:], landmarks)
	return f, nil
}
