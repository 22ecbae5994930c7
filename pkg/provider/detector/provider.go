// Package detector defines the Provider interface for landmark detection
// backends.
//
// A detector provider wraps a loaded pose, hand, or face landmark model and
// exposes a uniform per-frame detection call. Providers are long-lived,
// read-only handles: they are initialised once at process start, referenced by
// every session, and released once at shutdown. A single Detect call holds no
// per-call state inside the provider, so implementations must be safe for
// concurrent invocation from multiple sessions.
package detector

import (
	"context"

	"github.com/pinkycollie/pinksync/pkg/signal"
)

// Kind selects which landmark model a provider instance runs.
type Kind string

const (
	KindPose  Kind = "pose"
	KindHands Kind = "hands"
	KindFace  Kind = "face"
)

// IsValid reports whether k is a recognised detector kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindPose, KindHands, KindFace:
		return true
	}
	return false
}

// Handedness is the detector's own left/right classification of a detected
// hand. It reflects the signer's anatomical hand, not its screen position —
// self-occlusion or signer orientation can invert apparent left/right.
type Handedness string

const (
	HandLeft  Handedness = "left"
	HandRight Handedness = "right"
)

// HandResult is one detected hand with its handedness label.
type HandResult struct {
	Label     Handedness
	Landmarks []signal.Landmark
}

// Result holds the raw output of one Detect call. Only the fields matching
// the provider's Kind are populated; every field may independently be empty
// when the model found nothing in the frame.
type Result struct {
	// Pose holds full-body pose landmarks (Kind == KindPose).
	Pose []signal.PoseLandmark

	// Hands holds up to two detected hands (Kind == KindHands). More than one
	// entry per handedness label is possible with unusual detector output;
	// consumers retain the last entry per side.
	Hands []HandResult

	// Face holds the full facial landmark mesh (Kind == KindFace). Consumers
	// are expected to reduce it to a bounded subset.
	Face []signal.Landmark
}

// Empty reports whether the result contains no landmarks of any kind.
func (r Result) Empty() bool {
	return len(r.Pose) == 0 && len(r.Hands) == 0 && len(r.Face) == 0
}

// Provider is the abstraction over any landmark detection backend.
//
// Implementations must be safe for concurrent use; Detect may be called from
// many sessions at once against the same provider instance.
type Provider interface {
	// Detect runs the landmark model over one frame. An empty Result with a
	// nil error means the model ran but found nothing — that is not a fault.
	// A non-nil error means the detector itself failed for this frame.
	Detect(ctx context.Context, frame signal.Frame) (Result, error)

	// Close releases the loaded model. Calling Close more than once is safe
	// and returns nil.
	Close() error
}
