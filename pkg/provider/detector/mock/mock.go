// Package mock provides test doubles for the detector package interfaces.
//
// Use Provider to feed controlled detection results and inspect which frames
// were delivered. Results are consumed in order; when the queue is exhausted
// the final configured result is repeated.
package mock

import (
	"context"
	"sync"

	"github.com/pinkycollie/pinksync/pkg/provider/detector"
	"github.com/pinkycollie/pinksync/pkg/signal"
)

// DetectCall records a single invocation of Provider.Detect.
type DetectCall struct {
	// Ctx is the context passed to Detect.
	Ctx context.Context
	// Frame is the frame passed to Detect.
	Frame signal.Frame
}

// Provider is a mock implementation of detector.Provider.
type Provider struct {
	mu sync.Mutex

	// Results are returned from successive Detect calls. When exhausted, the
	// last element is repeated; when empty, Detect returns a zero Result.
	Results []detector.Result

	// DetectErr, if non-nil, is returned as the error from every Detect call.
	DetectErr error

	// DetectCalls records every call to Detect.
	DetectCalls []DetectCall

	// Closed reports whether Close has been called.
	Closed bool

	next int
}

// Detect records the call and returns the next queued result.
func (p *Provider) Detect(ctx context.Context, frame signal.Frame) (detector.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.DetectCalls = append(p.DetectCalls, DetectCall{Ctx: ctx, Frame: frame})
	if p.DetectErr != nil {
		return detector.Result{}, p.DetectErr
	}
	if len(p.Results) == 0 {
		return detector.Result{}, nil
	}
	r := p.Results[p.next]
	if p.next < len(p.Results)-1 {
		p.next++
	}
	return r, nil
}

// Close marks the provider closed.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}
