// Package ingest runs the producer side of the pipeline: a loop that pulls
// detection frames from a Source, merges them into the pose state, and
// installs each result in the observable store.
package ingest

import (
	"context"

	"github.com/posekit/posestream/internal/domain/pose"
)

// Source supplies detection frames from an embedded perception component.
//
// Next blocks until a frame is available, the context is cancelled, or the
// source fails. Returning io.EOF (or context.Canceled) stops the runner
// cleanly; other errors count toward the runner's failure limit. The runner
// tolerates arbitrarily long gaps between frames: "no detection this cycle"
// means Next simply does not return yet, never a frame of unknowns.
type Source interface {
	Next(ctx context.Context) (pose.Frame, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (pose.Frame, error)

// Next calls f(ctx).
func (f SourceFunc) Next(ctx context.Context) (pose.Frame, error) {
	return f(ctx)
}
