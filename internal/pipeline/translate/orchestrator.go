// Package translate implements the batch inference orchestrator: the
// end-to-end sign→text and text→sign flows, including post-processing,
// translation-memory lookup, and best-effort persistence.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pinkycollie/pinksync/internal/observe"
	"github.com/pinkycollie/pinksync/internal/pipeline/feature"
	"github.com/pinkycollie/pinksync/internal/pipeline/synthesis"
	"github.com/pinkycollie/pinksync/pkg/provider/gesture"
	"github.com/pinkycollie/pinksync/pkg/provider/signmodel"
	"github.com/pinkycollie/pinksync/pkg/provider/videodec"
	"github.com/pinkycollie/pinksync/pkg/signal"
	"github.com/pinkycollie/pinksync/pkg/store"
)

var (
	// ErrEmptyInput is returned when a request carries no usable signal: a
	// clip with zero frames contributing features, or text that normalizes to
	// the empty string.
	ErrEmptyInput = errors.New("translate: no usable input")

	// ErrNotConfigured is returned when the request needs a capability the
	// server was started without.
	ErrNotConfigured = errors.New("translate: capability not configured")
)

// Config tunes the orchestrator.
type Config struct {
	// SourceLanguage and TargetLanguage are applied when a request leaves
	// languages empty.
	SourceLanguage string
	TargetLanguage string

	// MemoryThreshold is the maximum cosine distance for a translation-memory
	// hit. Zero disables the lookup.
	MemoryThreshold float64
}

// Orchestrator runs complete batch translations in either direction.
//
// All capability handles are long-lived and safe for concurrent invocation,
// so a single Orchestrator serves every request.
type Orchestrator struct {
	cfg        Config
	decoder    videodec.Provider
	extractor  *feature.Extractor
	sign       signmodel.Provider
	gesture    gesture.Provider
	dispatcher *synthesis.Dispatcher
	store      store.RecordStore
	logger     *slog.Logger
	metrics    *observe.Metrics
}

// New creates an [Orchestrator]. decoder, gesture, and store may each be nil;
// the operations needing them return [ErrNotConfigured] or degrade
// accordingly. logger and metrics may be nil and are defaulted.
func New(
	cfg Config,
	decoder videodec.Provider,
	extractor *feature.Extractor,
	sign signmodel.Provider,
	gest gesture.Provider,
	dispatcher *synthesis.Dispatcher,
	st store.RecordStore,
	logger *slog.Logger,
	metrics *observe.Metrics,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Orchestrator{
		cfg:        cfg,
		decoder:    decoder,
		extractor:  extractor,
		sign:       sign,
		gesture:    gest,
		dispatcher: dispatcher,
		store:      st,
		logger:     logger,
		metrics:    metrics,
	}
}

// SignToText translates an uploaded clip into spoken-language text.
//
// The clip at clipPath is decoded into frames, every frame runs through the
// feature extractor, frames without signal are discarded, and the surviving
// records form one window submitted for full-accuracy inference. Batch mode
// ignores readiness gating: the window always finalizes at end of clip.
//
// Returns [ErrEmptyInput] when no frame in the whole clip contributed usable
// features. Persistence of the completed translation is fire-and-forget.
func (o *Orchestrator) SignToText(ctx context.Context, clipPath, sourceLang, targetLang, callerID string) (signal.TranslationResult, error) {
	if o.decoder == nil {
		return signal.TranslationResult{}, fmt.Errorf("%w: video decoder", ErrNotConfigured)
	}
	sourceLang, targetLang = o.languages(sourceLang, targetLang)
	start := time.Now()

	frames, err := o.decoder.ExtractFrames(ctx, clipPath)
	if err != nil {
		return signal.TranslationResult{}, fmt.Errorf("translate: decode clip: %w", err)
	}

	window := signal.SequenceWindow{}
	for _, frame := range frames {
		if rec, ok := o.extractor.Extract(ctx, frame); ok {
			window.Records = append(window.Records, rec)
		}
	}
	if window.Len() == 0 {
		o.metrics.RecordTranslation(ctx, string(store.DirectionSignToText), "empty_input")
		return signal.TranslationResult{}, ErrEmptyInput
	}

	pred, err := o.sign.Predict(ctx, window)
	if err != nil {
		o.metrics.RecordModelError(ctx, "sign_to_text")
		o.metrics.RecordTranslation(ctx, string(store.DirectionSignToText), "error")
		return signal.TranslationResult{}, fmt.Errorf("translate: sign model: %w", err)
	}
	o.metrics.InferenceDuration.Record(ctx, pred.Latency.Seconds())

	text := PostProcess(pred.Text)
	o.checkMemory(ctx, pred.Embedding, text)

	result := signal.TranslationResult{
		Text:             text,
		Confidence:       pred.Confidence,
		Latency:          time.Since(start),
		FeaturesDetected: window.Len(),
		SourceLanguage:   sourceLang,
		TargetLanguage:   targetLang,
	}

	o.persist(ctx, store.TranslationRecord{
		CallerID:       callerID,
		Direction:      store.DirectionSignToText,
		SourceLanguage: sourceLang,
		TargetLanguage: targetLang,
		Text:           text,
		Confidence:     pred.Confidence,
		Latency:        result.Latency,
		Embedding:      pred.Embedding,
		CreatedAt:      time.Now().UTC(),
	})

	o.metrics.RecordTranslation(ctx, string(store.DirectionSignToText), "ok")
	o.logger.InfoContext(ctx, "sign-to-text translation completed",
		"caller_id", callerID,
		"features_detected", result.FeaturesDetected,
		"confidence", result.Confidence,
		"latency", result.Latency,
	)
	return result, nil
}

// TextToSign translates spoken-language text into a gesture sequence and
// dispatches video synthesis for it.
//
// The input is normalized first; text that normalizes to the empty string is
// rejected with [ErrEmptyInput]. The returned result carries the sequence and
// a video reference that is valid immediately, while rendering is pending.
func (o *Orchestrator) TextToSign(ctx context.Context, text, targetLang, callerID string) (signal.TranslationResult, error) {
	if o.gesture == nil {
		return signal.TranslationResult{}, fmt.Errorf("%w: text-to-sign model", ErrNotConfigured)
	}
	if targetLang == "" {
		targetLang = o.cfg.SourceLanguage
	}
	start := time.Now()

	normalized := Normalize(text)
	if normalized == "" {
		o.metrics.RecordTranslation(ctx, string(store.DirectionTextToSign), "empty_input")
		return signal.TranslationResult{}, ErrEmptyInput
	}

	seq, err := o.gesture.Generate(ctx, normalized, targetLang)
	if err != nil {
		o.metrics.RecordModelError(ctx, "text_to_sign")
		o.metrics.RecordTranslation(ctx, string(store.DirectionTextToSign), "error")
		return signal.TranslationResult{}, fmt.Errorf("translate: gesture model: %w", err)
	}
	o.metrics.GenerationDuration.Record(ctx, seq.Latency.Seconds())

	ref := o.dispatcher.Dispatch(ctx, seq, callerID)

	result := signal.TranslationResult{
		Sequence:       &seq,
		VideoReference: ref,
		Confidence:     seq.Confidence,
		Latency:        time.Since(start),
		SourceLanguage: o.cfg.TargetLanguage,
		TargetLanguage: targetLang,
	}

	o.persist(ctx, store.TranslationRecord{
		CallerID:       callerID,
		Direction:      store.DirectionTextToSign,
		SourceLanguage: result.SourceLanguage,
		TargetLanguage: targetLang,
		Text:           normalized,
		VideoReference: ref,
		Confidence:     seq.Confidence,
		Latency:        result.Latency,
		CreatedAt:      time.Now().UTC(),
	})

	o.metrics.RecordTranslation(ctx, string(store.DirectionTextToSign), "ok")
	o.logger.InfoContext(ctx, "text-to-sign translation completed",
		"caller_id", callerID,
		"keyframes", len(seq.Keyframes),
		"video_reference", ref,
		"latency", result.Latency,
	)
	return result, nil
}

// languages fills empty language tags with the configured defaults.
func (o *Orchestrator) languages(source, target string) (string, string) {
	if source == "" {
		source = o.cfg.SourceLanguage
	}
	if target == "" {
		target = o.cfg.TargetLanguage
	}
	return source, target
}

// checkMemory looks the window embedding up in the translation memory and
// counts a hit when a stored translation sits within the distance threshold.
// Hits are observational: the model's own output always wins, but hit rates
// tell us how repetitive real traffic is.
func (o *Orchestrator) checkMemory(ctx context.Context, emb signal.Embedding, text string) {
	if o.cfg.MemoryThreshold <= 0 || len(emb) == 0 || o.store == nil {
		return
	}
	hits, err := o.store.Similar(ctx, emb, 1)
	if err != nil {
		o.logger.DebugContext(ctx, "translation memory lookup failed", "error", err)
		return
	}
	if len(hits) == 0 || hits[0].Distance > o.cfg.MemoryThreshold {
		return
	}
	o.metrics.MemoryHits.Add(ctx, 1)
	o.logger.DebugContext(ctx, "translation memory hit",
		"distance", hits[0].Distance,
		"stored_text", hits[0].Record.Text,
		"model_text", text,
	)
}

// persist writes a completed translation on a best-effort basis. The write
// runs on the calling goroutine but with a detached context, so caller
// cancellation after the translation completes cannot abort it. Failures are
// logged and counted, never surfaced.
func (o *Orchestrator) persist(ctx context.Context, rec store.TranslationRecord) {
	if o.store == nil {
		return
	}
	if err := o.store.InsertTranslation(context.WithoutCancel(ctx), rec); err != nil {
		o.logger.WarnContext(ctx, "failed to persist translation record",
			"caller_id", rec.CallerID,
			"direction", rec.Direction,
			"error", err,
		)
		o.metrics.RecordPersistenceFailure(ctx, "translation")
	}
}
