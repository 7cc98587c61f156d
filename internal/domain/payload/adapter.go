// Package payload converts merged pose states into the wire payload sent to
// remote consumers.
package payload

import (
	"fmt"
	"math"
	"time"

	"github.com/bytedance/sonic"

	"github.com/posekit/posestream/internal/domain/pose"
)

// timeLayout is ISO-8601 UTC with microsecond precision and a trailing Z.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// wireLandmark is one entry of the "pose" array. Key names and order are a
// compatibility contract with the remote consumer; do not change without a
// version bump. Visibility is an internal gating signal and is deliberately
// not part of the payload.
type wireLandmark struct {
	ID int      `json:"id"`
	X  *float64 `json:"x"`
	Y  *float64 `json:"y"`
	Z  *float64 `json:"z"`
}

type wirePayload struct {
	Ts   string                          `json:"ts"`
	Pose [pose.NumLandmarks]wireLandmark `json:"pose"`
}

// Adapter is a pure, stateless converter from pose.State to payload text.
// Its only side effect is reading the wall clock for the timestamp.
type Adapter struct {
	nanToZero   bool
	roundDigits int
	now         func() time.Time
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithNaNToZero controls how unknown coordinates serialize: as 0.0 when
// enabled (robust output, the default) or as explicit null markers when
// disabled.
func WithNaNToZero(enabled bool) Option {
	return func(a *Adapter) { a.nanToZero = enabled }
}

// WithRounding caps coordinate precision to the given number of decimal
// places to bound payload size. A negative value emits full precision.
func WithRounding(digits int) Option {
	return func(a *Adapter) { a.roundDigits = digits }
}

// withClock overrides the wall clock. Test seam.
func withClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// New creates an adapter. Defaults: NaN-to-zero enabled, full precision.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		nanToZero:   true,
		roundDigits: -1,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ToText serializes a pose state as one compact JSON payload line.
func (a *Adapter) ToText(state pose.State) (string, error) {
	var out wirePayload
	out.Ts = a.now().UTC().Format(timeLayout)

	for i := range state {
		lm := wireLandmark{ID: i}
		if state[i].IsUnknown() {
			if a.nanToZero {
				zero := 0.0
				lm.X, lm.Y, lm.Z = &zero, &zero, &zero
			}
			// nil coordinates marshal as null markers otherwise.
		} else {
			x := a.num(state[i].Pos.X)
			y := a.num(state[i].Pos.Y)
			z := a.num(state[i].Pos.Z)
			lm.X, lm.Y, lm.Z = &x, &y, &z
		}
		out.Pose[i] = lm
	}

	data, err := sonic.Marshal(&out)
	if err != nil {
		return "", fmt.Errorf("failed to marshal pose payload: %w", err)
	}
	return string(data), nil
}

func (a *Adapter) num(v float64) float64 {
	if a.roundDigits < 0 {
		return v
	}
	p := math.Pow10(a.roundDigits)
	return math.Round(v*p) / p
}
