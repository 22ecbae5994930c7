// Package mock provides an in-memory test double for store.RecordStore.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/pinkycollie/pinksync/pkg/signal"
	"github.com/pinkycollie/pinksync/pkg/store"
)

// Compile-time interface check.
var _ store.RecordStore = (*RecordStore)(nil)

// RecordStore is an in-memory mock implementation of store.RecordStore.
// All methods are safe for concurrent use.
type RecordStore struct {
	mu sync.Mutex

	// Translations and Jobs accumulate every successful insert.
	Translations []store.TranslationRecord
	Jobs         []store.SynthesisJob

	// SimilarResults is returned from every Similar call.
	SimilarResults []store.SimilarTranslation

	// InsertTranslationErr, InsertJobErr, UpdateStatusErr, and SimilarErr
	// force the corresponding method to fail when non-nil.
	InsertTranslationErr error
	InsertJobErr         error
	UpdateStatusErr      error
	SimilarErr           error
}

// InsertTranslation appends rec or returns InsertTranslationErr.
func (s *RecordStore) InsertTranslation(_ context.Context, rec store.TranslationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertTranslationErr != nil {
		return s.InsertTranslationErr
	}
	s.Translations = append(s.Translations, rec)
	return nil
}

// InsertSynthesisJob appends job or returns InsertJobErr.
func (s *RecordStore) InsertSynthesisJob(_ context.Context, job store.SynthesisJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertJobErr != nil {
		return s.InsertJobErr
	}
	s.Jobs = append(s.Jobs, job)
	return nil
}

// UpdateSynthesisStatus transitions the stored job or returns UpdateStatusErr.
func (s *RecordStore) UpdateSynthesisStatus(_ context.Context, reference string, status store.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpdateStatusErr != nil {
		return s.UpdateStatusErr
	}
	for i := range s.Jobs {
		if s.Jobs[i].Reference == reference {
			s.Jobs[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("mock store: %w: %q", store.ErrJobNotFound, reference)
}

// RecentTranslations returns the caller's translations, newest first.
func (s *RecordStore) RecentTranslations(_ context.Context, callerID string, limit int) ([]store.TranslationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.TranslationRecord
	for i := len(s.Translations) - 1; i >= 0 && len(out) < limit; i-- {
		if s.Translations[i].CallerID == callerID {
			out = append(out, s.Translations[i])
		}
	}
	return out, nil
}

// Similar returns SimilarResults truncated to k, or SimilarErr.
func (s *RecordStore) Similar(_ context.Context, _ signal.Embedding, k int) ([]store.SimilarTranslation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SimilarErr != nil {
		return nil, s.SimilarErr
	}
	if len(s.SimilarResults) > k {
		return s.SimilarResults[:k], nil
	}
	return s.SimilarResults, nil
}
