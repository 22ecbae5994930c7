// Package signmodel defines the Provider interface for sign→text inference
// backends.
//
// A sign→text provider wraps a loaded sequence-recognition model and exposes
// two entry points: Predict, the full-accuracy batch path over a complete
// sequence window, and PredictPartial, a low-latency path over a single
// feature record used for live feedback before an utterance is finalised.
// Partial predictions trade accuracy for turnaround and must never be
// persisted as authoritative results.
//
// Providers are stateless with respect to any single call and must be safe
// for concurrent invocation from multiple sessions.
package signmodel

import (
	"context"
	"time"

	"github.com/pinkycollie/pinksync/pkg/signal"
)

// Prediction is the output of one inference call.
type Prediction struct {
	// Text is the recognised spoken-language text, unprocessed.
	Text string

	// Confidence is the model confidence in [0, 1].
	Confidence float64

	// Latency is the model-internal inference time. Zero for providers that
	// do not report it.
	Latency time.Duration

	// Embedding is an optional fixed-dimension summary of the input window,
	// used by the translation memory. Nil when the model does not emit one
	// (partial predictions never do).
	Embedding signal.Embedding
}

// Provider is the abstraction over any sign→text inference backend.
type Provider interface {
	// Predict runs full-accuracy inference over a complete sequence window.
	// The window must be non-empty; providers may reject empty windows with
	// an error but are not required to guard against them.
	Predict(ctx context.Context, window signal.SequenceWindow) (Prediction, error)

	// PredictPartial runs the low-latency partial path over a single record.
	// Results are suitable for driving live feedback only.
	PredictPartial(ctx context.Context, record signal.FeatureRecord) (Prediction, error)

	// Close releases the loaded model. Safe to call more than once.
	Close() error
}
