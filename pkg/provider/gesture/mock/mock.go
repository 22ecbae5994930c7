// Package mock provides test doubles for the gesture package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/pinkycollie/pinksync/pkg/signal"
)

// GenerateCall records a single invocation of Provider.Generate.
type GenerateCall struct {
	Ctx  context.Context
	Text string
	Lang string
}

// Provider is a mock implementation of gesture.Provider.
type Provider struct {
	mu sync.Mutex

	// GenerateResult is returned from every Generate call.
	GenerateResult signal.SignSequence

	// GenerateErr, if non-nil, is returned as the error from Generate.
	GenerateErr error

	// GenerateCalls records every call to Generate.
	GenerateCalls []GenerateCall

	// Closed reports whether Close has been called.
	Closed bool
}

// Generate records the call and returns GenerateResult, GenerateErr.
func (p *Provider) Generate(ctx context.Context, text, lang string) (signal.SignSequence, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateCalls = append(p.GenerateCalls, GenerateCall{Ctx: ctx, Text: text, Lang: lang})
	if p.GenerateErr != nil {
		return signal.SignSequence{}, p.GenerateErr
	}
	return p.GenerateResult, nil
}

// Close marks the provider closed.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}
