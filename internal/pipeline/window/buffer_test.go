package window

import (
	"errors"
	"testing"
	"time"

	"github.com/pinkycollie/pinksync/pkg/signal"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// rec builds a record with signal (one pose landmark) at epoch + i frames
// of ~33ms.
func rec(i int) signal.FeatureRecord {
	return signal.FeatureRecord{
		Pose:      []signal.PoseLandmark{{Visibility: 1}},
		Timestamp: epoch.Add(time.Duration(i) * 33 * time.Millisecond),
	}
}

func TestAppend_RejectsNoSignal(t *testing.T) {
	t.Parallel()
	b := New(Config{MinLength: 1, MaxLength: 10, SilenceThreshold: 3})

	err := b.Append(signal.FeatureRecord{Timestamp: epoch})
	if !errors.Is(err, ErrNoSignal) {
		t.Errorf("err = %v, want ErrNoSignal", err)
	}
	if b.Len() != 0 {
		t.Errorf("len = %d, want 0", b.Len())
	}
}

func TestAppend_RejectsOutOfOrder(t *testing.T) {
	t.Parallel()
	b := New(Config{MinLength: 1, MaxLength: 10, SilenceThreshold: 3})

	if err := b.Append(rec(5)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := b.Append(rec(3)); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("earlier timestamp: err = %v, want ErrOutOfOrder", err)
	}
	if err := b.Append(rec(5)); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("equal timestamp: err = %v, want ErrOutOfOrder", err)
	}
	if b.Len() != 1 {
		t.Errorf("len = %d, want 1", b.Len())
	}
}

func TestDrain_ReturnsRecordsInOrder(t *testing.T) {
	t.Parallel()
	const n = 8
	b := New(Config{MinLength: 1, MaxLength: n, SilenceThreshold: 3})

	for i := 0; i < n; i++ {
		if err := b.Append(rec(i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if !b.Ready() {
		t.Fatal("buffer at max length should be ready")
	}

	w, err := b.Drain()
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if w.Len() != n {
		t.Fatalf("window len = %d, want %d", w.Len(), n)
	}
	for i := 1; i < w.Len(); i++ {
		if !w.Records[i].Timestamp.After(w.Records[i-1].Timestamp) {
			t.Fatalf("records not strictly increasing at %d", i)
		}
	}

	// Drain is callable exactly once per accumulation.
	if _, err := b.Drain(); !errors.Is(err, ErrEmpty) {
		t.Errorf("second drain: err = %v, want ErrEmpty", err)
	}
}

func TestDrain_EmptyBuffer(t *testing.T) {
	t.Parallel()
	b := New(Config{MinLength: 1, MaxLength: 10, SilenceThreshold: 3})
	if _, err := b.Drain(); !errors.Is(err, ErrEmpty) {
		t.Errorf("err = %v, want ErrEmpty", err)
	}
}

func TestReady_RequiresMinLength(t *testing.T) {
	t.Parallel()
	b := New(Config{MinLength: 5, MaxLength: 10, SilenceThreshold: 1})

	if err := b.Append(rec(0)); err != nil {
		t.Fatalf("append: %v", err)
	}
	b.ObserveSilence()
	if b.Ready() {
		t.Error("below MinLength should not be ready on silence alone")
	}
}

func TestReady_SilenceThreshold(t *testing.T) {
	t.Parallel()
	b := New(Config{MinLength: 2, MaxLength: 100, SilenceThreshold: 3})

	for i := 0; i < 4; i++ {
		if err := b.Append(rec(i)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		b.ObserveSilence()
		if b.Ready() {
			t.Fatalf("ready after %d silent frames, threshold is 3", i+1)
		}
	}
	b.ObserveSilence()
	if !b.Ready() {
		t.Error("not ready after reaching silence threshold")
	}
}

func TestAppend_ResetsSilenceCounter(t *testing.T) {
	t.Parallel()
	b := New(Config{MinLength: 1, MaxLength: 100, SilenceThreshold: 2})

	if err := b.Append(rec(0)); err != nil {
		t.Fatalf("append: %v", err)
	}
	b.ObserveSilence()
	if err := b.Append(rec(1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	b.ObserveSilence()
	if b.Ready() {
		t.Error("silence counter should reset on append")
	}
}

func TestObserveSilence_IgnoredOnEmptyBuffer(t *testing.T) {
	t.Parallel()
	b := New(Config{MinLength: 1, MaxLength: 10, SilenceThreshold: 1})

	b.ObserveSilence()
	b.ObserveSilence()
	if b.Ready() {
		t.Error("silence on an empty buffer must not make it ready")
	}
}

func TestMarkEnd_ReadiesBelowMinLength(t *testing.T) {
	t.Parallel()
	b := New(Config{MinLength: 10, MaxLength: 100, SilenceThreshold: 3})

	if err := b.Append(rec(0)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if b.Ready() {
		t.Fatal("not yet ended, should not be ready")
	}
	b.MarkEnd()
	if !b.Ready() {
		t.Error("explicit end-of-input should ready any non-empty buffer")
	}
}

func TestMarkEnd_EmptyBufferStaysNotReady(t *testing.T) {
	t.Parallel()
	b := New(Config{MinLength: 1, MaxLength: 10, SilenceThreshold: 3})
	b.MarkEnd()
	if b.Ready() {
		t.Error("an empty ended buffer must not be ready")
	}
}

func TestReady_MaxSpan(t *testing.T) {
	t.Parallel()
	b := New(Config{MinLength: 2, MaxLength: 1000, MaxSpan: 100 * time.Millisecond, SilenceThreshold: 50})

	if err := b.Append(rec(0)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := b.Append(rec(1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if b.Ready() {
		t.Fatal("span 33ms should not be ready")
	}
	if err := b.Append(rec(4)); err != nil { // span now 132ms
		t.Fatalf("append: %v", err)
	}
	if !b.Ready() {
		t.Error("span past MaxSpan should be ready")
	}
}

func TestDrain_ResetsEndFlag(t *testing.T) {
	t.Parallel()
	b := New(Config{MinLength: 5, MaxLength: 10, SilenceThreshold: 3})

	if err := b.Append(rec(0)); err != nil {
		t.Fatalf("append: %v", err)
	}
	b.MarkEnd()
	if _, err := b.Drain(); err != nil {
		t.Fatalf("drain: %v", err)
	}

	if err := b.Append(rec(1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if b.Ready() {
		t.Error("end flag should not survive a drain")
	}
}
