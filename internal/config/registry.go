package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pinkycollie/pinksync/pkg/provider/detector"
	"github.com/pinkycollie/pinksync/pkg/provider/gesture"
	"github.com/pinkycollie/pinksync/pkg/provider/signmodel"
	"github.com/pinkycollie/pinksync/pkg/provider/videodec"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// pipeline capability. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	detector map[string]func(detector.Kind, ProviderEntry) (detector.Provider, error)
	sign     map[string]func(ProviderEntry) (signmodel.Provider, error)
	gesture  map[string]func(ProviderEntry) (gesture.Provider, error)
	videodec map[string]func(ProviderEntry) (videodec.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		detector: make(map[string]func(detector.Kind, ProviderEntry) (detector.Provider, error)),
		sign:     make(map[string]func(ProviderEntry) (signmodel.Provider, error)),
		gesture:  make(map[string]func(ProviderEntry) (gesture.Provider, error)),
		videodec: make(map[string]func(ProviderEntry) (videodec.Provider, error)),
	}
}

// RegisterDetector registers a landmark detector factory under name. The
// factory receives the capability it is being built for (pose, hands, face).
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterDetector(name string, factory func(detector.Kind, ProviderEntry) (detector.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detector[name] = factory
}

// RegisterSignModel registers a sign-to-text model factory under name.
func (r *Registry) RegisterSignModel(name string, factory func(ProviderEntry) (signmodel.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sign[name] = factory
}

// RegisterGesture registers a text-to-sign generator factory under name.
func (r *Registry) RegisterGesture(name string, factory func(ProviderEntry) (gesture.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gesture[name] = factory
}

// RegisterVideoDecoder registers a clip decoder factory under name.
func (r *Registry) RegisterVideoDecoder(name string, factory func(ProviderEntry) (videodec.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videodec[name] = factory
}

// CreateDetector instantiates a landmark detector for kind using the factory
// registered under entry.Name. Returns [ErrProviderNotRegistered] if no
// factory has been registered for that name.
func (r *Registry) CreateDetector(kind detector.Kind, entry ProviderEntry) (detector.Provider, error) {
	r.mu.RLock()
	factory, ok := r.detector[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, kind, entry.Name)
	}
	return factory(kind, entry)
}

// CreateSignModel instantiates a sign-to-text model using the factory
// registered under entry.Name.
func (r *Registry) CreateSignModel(entry ProviderEntry) (signmodel.Provider, error) {
	r.mu.RLock()
	factory, ok := r.sign[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: sign_to_text/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateGesture instantiates a text-to-sign generator using the factory
// registered under entry.Name.
func (r *Registry) CreateGesture(entry ProviderEntry) (gesture.Provider, error) {
	r.mu.RLock()
	factory, ok := r.gesture[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: text_to_sign/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateVideoDecoder instantiates a clip decoder using the factory registered
// under entry.Name.
func (r *Registry) CreateVideoDecoder(entry ProviderEntry) (videodec.Provider, error) {
	r.mu.RLock()
	factory, ok := r.videodec[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: video_decoder/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
