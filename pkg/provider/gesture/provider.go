// Package gesture defines the Provider interface for text→sign generation
// backends.
//
// A gesture provider wraps a loaded text→sign model that turns normalised
// spoken-language text into an ordered sequence of gesture keyframes for a
// target sign language. Providers are stateless per call and must be safe for
// concurrent invocation from multiple sessions.
package gesture

import (
	"context"

	"github.com/pinkycollie/pinksync/pkg/signal"
)

// Provider is the abstraction over any text→sign generation backend.
type Provider interface {
	// Generate produces a sign sequence for text in the given target sign
	// language (e.g., "asl", "bsl"). The input text is expected to already be
	// normalised by the caller.
	Generate(ctx context.Context, text, lang string) (signal.SignSequence, error)

	// Close releases the loaded model. Safe to call more than once.
	Close() error
}
