// Package pose implements the stateful landmark-merge engine at the heart
// of the service.
//
// A perception component supplies Frames: 33 body landmarks, each with a
// camera-space position and a visibility confidence. Frames are noisy and
// arrive irregularly. The Engine consolidates them into a single coherent
// State using a per-landmark visibility gate, a hold-last-good policy, and a
// pluggable smoothing strategy, and the Store fans each new State out to
// attached observers.
//
// Components:
//   - Landmark, Frame, State: data values (index = anatomical landmark id)
//   - Engine: visibility-gated merge with hold-last-good semantics
//   - Smoother: injected pure blend function (Passthrough, EMA)
//   - Store: observer registry with per-observer failure containment
//
// The Engine is the single writer of State; everyone else receives
// independent snapshots and can never corrupt the authoritative value.
package pose
