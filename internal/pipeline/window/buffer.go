// Package window assembles per-frame feature records into bounded temporal
// sequence windows.
//
// A Buffer accumulates records for one candidate sign utterance. It finalizes
// when full, when its time span is exceeded, when enough trailing silence has
// been observed, or when the caller flags end-of-input. Out-of-order frames
// are dropped, not reordered.
package window

import (
	"errors"
	"time"

	"github.com/pinkycollie/pinksync/pkg/signal"
)

var (
	// ErrOutOfOrder is returned by Append when a record's timestamp is not
	// strictly greater than the last buffered record's timestamp.
	ErrOutOfOrder = errors.New("window: record timestamp out of order")

	// ErrNoSignal is returned by Append when the record carries no signal.
	ErrNoSignal = errors.New("window: record carries no signal")

	// ErrEmpty is returned by Drain when the buffer holds no records.
	ErrEmpty = errors.New("window: buffer is empty")
)

// Config bounds a [Buffer].
type Config struct {
	// MinLength is the minimum record count before the buffer reports ready.
	MinLength int

	// MaxLength caps the record count; reaching it makes the buffer ready
	// regardless of silence or end-of-input.
	MaxLength int

	// MaxSpan caps the wall-clock span between the first and last record.
	// Zero disables the span bound.
	MaxSpan time.Duration

	// SilenceThreshold is the number of consecutive no-signal frames that
	// marks the end of an utterance.
	SilenceThreshold int
}

// Buffer accumulates feature records into a [signal.SequenceWindow].
//
// A Buffer is owned by exactly one session and is not internally locked: the
// owning session's message loop is the only code path that may touch it, so
// Append and Drain are naturally atomic with respect to each other.
type Buffer struct {
	cfg     Config
	records []signal.FeatureRecord
	silence int
	ended   bool
}

// New creates an empty [Buffer] with the given bounds.
func New(cfg Config) *Buffer {
	if cfg.MinLength < 1 {
		cfg.MinLength = 1
	}
	if cfg.MaxLength < cfg.MinLength {
		cfg.MaxLength = cfg.MinLength
	}
	if cfg.SilenceThreshold < 1 {
		cfg.SilenceThreshold = 1
	}
	return &Buffer{
		cfg:     cfg,
		records: make([]signal.FeatureRecord, 0, cfg.MaxLength),
	}
}

// Append admits one record to the buffer.
//
// Records without signal are rejected with [ErrNoSignal]; records whose
// timestamp does not strictly increase over the last admitted record are
// rejected with [ErrOutOfOrder]. A successful append resets the trailing
// silence counter.
func (b *Buffer) Append(rec signal.FeatureRecord) error {
	if !rec.HasSignal() {
		return ErrNoSignal
	}
	if n := len(b.records); n > 0 && !rec.Timestamp.After(b.records[n-1].Timestamp) {
		return ErrOutOfOrder
	}
	b.records = append(b.records, rec)
	b.silence = 0
	return nil
}

// ObserveSilence advances the trailing-silence counter by one no-signal frame.
// Silence observed on an empty buffer is ignored; there is no utterance to
// end yet.
func (b *Buffer) ObserveSilence() {
	if len(b.records) == 0 {
		return
	}
	b.silence++
}

// MarkEnd flags explicit end-of-input. The buffer reports ready on the next
// [Buffer.Ready] call provided it holds at least one record.
func (b *Buffer) MarkEnd() {
	b.ended = true
}

// Len returns the number of buffered records.
func (b *Buffer) Len() int { return len(b.records) }

// Span returns the time covered between the first and last buffered record.
func (b *Buffer) Span() time.Duration {
	return signal.SequenceWindow{Records: b.records}.Span()
}

// Ready reports whether the buffered window should be finalized: the buffer
// holds at least MinLength records AND is full, has exceeded its span bound,
// has seen enough trailing silence, or has been explicitly ended.
//
// Exception: explicit end-of-input readies the buffer with any non-zero
// record count, even below MinLength — the utterance is over and whatever
// was collected is all there will be.
func (b *Buffer) Ready() bool {
	n := len(b.records)
	if n == 0 {
		return false
	}
	if b.ended {
		return true
	}
	if n < b.cfg.MinLength {
		return false
	}
	if n >= b.cfg.MaxLength {
		return true
	}
	if b.cfg.MaxSpan > 0 && b.Span() >= b.cfg.MaxSpan {
		return true
	}
	return b.silence >= b.cfg.SilenceThreshold
}

// Drain returns the accumulated window and resets the buffer for the next
// utterance. The returned window is never empty; draining an empty buffer
// returns [ErrEmpty].
func (b *Buffer) Drain() (signal.SequenceWindow, error) {
	if len(b.records) == 0 {
		return signal.SequenceWindow{}, ErrEmpty
	}
	w := signal.SequenceWindow{Records: b.records}
	b.records = make([]signal.FeatureRecord, 0, b.cfg.MaxLength)
	b.silence = 0
	b.ended = false
	return w, nil
}
