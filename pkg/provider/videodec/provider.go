// Package videodec defines the Provider interface for video decoding
// collaborators.
//
// Video encoding and muxing are outside the pipeline's scope; this interface
// is the seam to whatever decoder the deployment uses. Implementations turn
// an uploaded clip into an ordered slice of fixed-format frames ready for the
// feature extractor.
package videodec

import (
	"context"

	"github.com/pinkycollie/pinksync/pkg/signal"
)

// Provider decodes uploaded clips into ordered frame sequences.
type Provider interface {
	// ExtractFrames decodes the clip at path into frames ordered by capture
	// time. Frame timestamps are synthesised from the clip's sampling rate
	// when the container carries no per-frame timing.
	ExtractFrames(ctx context.Context, path string) ([]signal.Frame, error)
}
