// Package store defines the RecordStore interface and its record types.
//
// The record store is an external collaborator: the translation pipeline
// writes completed translations and synthesis jobs to it on a best-effort
// basis, and correctness of an in-flight translation never depends on a write
// succeeding. Implementations live in subpackages (postgres, mock).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/pinkycollie/pinksync/pkg/signal"
)

// ErrJobNotFound is returned by UpdateSynthesisStatus when no job carries the
// given reference.
var ErrJobNotFound = errors.New("store: synthesis job not found")

// Direction identifies which way a translation ran.
type Direction string

const (
	DirectionSignToText Direction = "sign_to_text"
	DirectionTextToSign Direction = "text_to_sign"
)

// JobStatus is the lifecycle state of an asynchronous synthesis job.
type JobStatus string

const (
	JobPending JobStatus = "PENDING"
	JobReady   JobStatus = "READY"
	JobFailed  JobStatus = "FAILED"
)

// IsValid reports whether s is a recognised job status.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobPending, JobReady, JobFailed:
		return true
	}
	return false
}

// TranslationRecord is one completed translation written to the store.
type TranslationRecord struct {
	// CallerID is the already-authenticated caller identity.
	CallerID string

	// Direction records which way the translation ran.
	Direction Direction

	// SourceLanguage and TargetLanguage are the request's language tags.
	SourceLanguage string
	TargetLanguage string

	// Text is the translated text (sign→text) or the normalised source text
	// (text→sign).
	Text string

	// VideoReference is the synthesis artifact reference (text→sign only).
	VideoReference string

	// Confidence is the model confidence in [0, 1].
	Confidence float64

	// Latency is the end-to-end processing time.
	Latency time.Duration

	// Embedding is the optional window embedding for the translation memory.
	Embedding signal.Embedding

	// CreatedAt marks when the translation completed.
	CreatedAt time.Time
}

// SynthesisJob is one asynchronous rendering task recorded at dispatch time.
// The external renderer polls for PENDING jobs and transitions them to READY
// or FAILED; the pipeline itself never blocks on rendering.
type SynthesisJob struct {
	// Reference is the unique artifact reference handed to the caller.
	Reference string

	// CallerID is the caller the artifact belongs to.
	CallerID string

	// Sequence is the gesture sequence to render.
	Sequence signal.SignSequence

	// Status is the job lifecycle state.
	Status JobStatus

	// CreatedAt marks when the job was dispatched.
	CreatedAt time.Time
}

// SimilarTranslation is one translation-memory hit from [RecordStore.Similar].
type SimilarTranslation struct {
	Record TranslationRecord

	// Distance is the cosine distance to the query embedding; smaller is
	// more similar.
	Distance float64
}

// RecordStore persists completed translations and synthesis jobs.
//
// All methods must be safe for concurrent use. Insert methods are invoked on
// a fire-and-forget basis by the pipeline: callers log failures and move on.
type RecordStore interface {
	// InsertTranslation appends a completed translation.
	InsertTranslation(ctx context.Context, rec TranslationRecord) error

	// InsertSynthesisJob records a newly dispatched synthesis job.
	InsertSynthesisJob(ctx context.Context, job SynthesisJob) error

	// UpdateSynthesisStatus transitions a job to the given status. Used by
	// the external renderer's callback path.
	UpdateSynthesisStatus(ctx context.Context, reference string, status JobStatus) error

	// RecentTranslations returns the caller's most recent translations,
	// newest first, up to limit.
	RecentTranslations(ctx context.Context, callerID string, limit int) ([]TranslationRecord, error)

	// Similar returns up to k past translations whose stored embeddings are
	// nearest to embedding by cosine distance, nearest first. Records stored
	// without embeddings are never returned.
	Similar(ctx context.Context, embedding signal.Embedding, k int) ([]SimilarTranslation, error)
}
