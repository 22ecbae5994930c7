// Package mock provides test doubles for the videodec package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/pinkycollie/pinksync/pkg/signal"
)

// ExtractFramesCall records a single invocation of Provider.ExtractFrames.
type ExtractFramesCall struct {
	Ctx  context.Context
	Path string
}

// Provider is a mock implementation of videodec.Provider.
type Provider struct {
	mu sync.Mutex

	// Frames is returned from every ExtractFrames call.
	Frames []signal.Frame

	// ExtractErr, if non-nil, is returned as the error from ExtractFrames.
	ExtractErr error

	// ExtractCalls records every call to ExtractFrames.
	ExtractCalls []ExtractFramesCall
}

// ExtractFrames records the call and returns Frames, ExtractErr.
func (p *Provider) ExtractFrames(ctx context.Context, path string) ([]signal.Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ExtractCalls = append(p.ExtractCalls, ExtractFramesCall{Ctx: ctx, Path: path})
	if p.ExtractErr != nil {
		return nil, p.ExtractErr
	}
	return p.Frames, nil
}
