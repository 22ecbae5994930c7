// Package mock provides test doubles for the signmodel package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/pinkycollie/pinksync/pkg/provider/signmodel"
	"github.com/pinkycollie/pinksync/pkg/signal"
)

// PredictCall records a single invocation of Provider.Predict.
type PredictCall struct {
	Ctx    context.Context
	Window signal.SequenceWindow
}

// PredictPartialCall records a single invocation of Provider.PredictPartial.
type PredictPartialCall struct {
	Ctx    context.Context
	Record signal.FeatureRecord
}

// Provider is a mock implementation of signmodel.Provider.
type Provider struct {
	mu sync.Mutex

	// PredictResult is returned from every Predict call.
	PredictResult signmodel.Prediction

	// PredictErr, if non-nil, is returned as the error from Predict.
	PredictErr error

	// PartialResult is returned from every PredictPartial call.
	PartialResult signmodel.Prediction

	// PartialErr, if non-nil, is returned as the error from PredictPartial.
	PartialErr error

	// PredictCalls and PartialCalls record every invocation.
	PredictCalls []PredictCall
	PartialCalls []PredictPartialCall

	// Closed reports whether Close has been called.
	Closed bool
}

// Predict records the call and returns PredictResult, PredictErr.
func (p *Provider) Predict(ctx context.Context, window signal.SequenceWindow) (signmodel.Prediction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PredictCalls = append(p.PredictCalls, PredictCall{Ctx: ctx, Window: window})
	if p.PredictErr != nil {
		return signmodel.Prediction{}, p.PredictErr
	}
	return p.PredictResult, nil
}

// PredictPartial records the call and returns PartialResult, PartialErr.
func (p *Provider) PredictPartial(ctx context.Context, record signal.FeatureRecord) (signmodel.Prediction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PartialCalls = append(p.PartialCalls, PredictPartialCall{Ctx: ctx, Record: record})
	if p.PartialErr != nil {
		return signmodel.Prediction{}, p.PartialErr
	}
	return p.PartialResult, nil
}

// Close marks the provider closed.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}
