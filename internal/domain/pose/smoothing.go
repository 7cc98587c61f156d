package pose

import "gonum.org/v1/gonum/spatial/r3"

// Smoother blends a previously accepted position with a newly accepted one.
// It is applied to position channels only; visibility is a gating signal and
// is never smoothed.
//
// Smoothers must be pure functions. All state (the "previous" value) is
// owned and supplied by the Engine, never by the smoother itself.
type Smoother func(prev, next r3.Vec) r3.Vec

// Passthrough returns the new position unchanged: no temporal filtering.
func Passthrough() Smoother {
	return func(_, next r3.Vec) r3.Vec {
		return next
	}
}

// EMA returns an exponential-moving-average smoother with the given alpha in
// (0,1]. Higher alpha tracks the detector more closely; lower alpha is
// smoother but lags behind fast motion.
func EMA(alpha float64) Smoother {
	return func(prev, next r3.Vec) r3.Vec {
		return r3.Add(r3.Scale(1-alpha, prev), r3.Scale(alpha, next))
	}
}
