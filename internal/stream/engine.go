// Package stream implements the streaming session engine: the per-connection
// state machine that turns incoming frame messages into partial and final
// translation events.
//
// Each live connection owns exactly one [Session]. The transport layer feeds
// messages to [Engine.HandleMessage] strictly in arrival order, so a session
// is never touched concurrently; the engine itself only locks its session
// registry. Model invocations are the dominant blocking operations and run
// concurrently across sessions without contention.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pinkycollie/pinksync/internal/observe"
	"github.com/pinkycollie/pinksync/internal/pipeline/feature"
	"github.com/pinkycollie/pinksync/internal/pipeline/translate"
	"github.com/pinkycollie/pinksync/internal/pipeline/window"
	"github.com/pinkycollie/pinksync/pkg/provider/signmodel"
	"github.com/pinkycollie/pinksync/pkg/signal"
	"github.com/pinkycollie/pinksync/pkg/store"
)

// ErrSessionClosed is returned by HandleMessage for a session that has
// already been closed. The transport should drop the connection.
var ErrSessionClosed = errors.New("stream: session closed")

// MessageType names the messages a client may send.
type MessageType string

const (
	// MessageSignFrame carries one video frame for incremental translation.
	MessageSignFrame MessageType = "sign_frame"

	// MessageEndOfUtterance force-finalizes the current window.
	MessageEndOfUtterance MessageType = "end_of_utterance"
)

// Message is one decoded client message. The transport layer owns the wire
// encoding; the engine only sees this form.
type Message struct {
	Type  MessageType
	Frame signal.Frame
}

// Config tunes the engine.
type Config struct {
	// Window bounds each session's sequence buffer.
	Window window.Config

	// SourceLanguage and TargetLanguage tag persisted streaming utterances.
	SourceLanguage string
	TargetLanguage string
}

// Engine drives every live session. Safe for concurrent use: the registry is
// locked, and each session is only ever handled by its own connection loop.
type Engine struct {
	cfg       Config
	extractor *feature.Extractor
	sign      signmodel.Provider
	store     store.RecordStore
	logger    *slog.Logger
	metrics   *observe.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewEngine creates an [Engine]. store may be nil; logger and metrics may be
// nil and are defaulted.
func NewEngine(cfg Config, extractor *feature.Extractor, sign signmodel.Provider, st store.RecordStore, logger *slog.Logger, metrics *observe.Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Engine{
		cfg:       cfg,
		extractor: extractor,
		sign:      sign,
		store:     st,
		logger:    logger,
		metrics:   metrics,
		sessions:  make(map[string]*Session),
	}
}

// Open admits a new session for clientID. A reconnecting client gets a
// brand-new session with an empty buffer. A session still registered under
// the same ID is unregistered here but torn down only by its own
// connection's Close, discarding its unflushed state without persistence.
func (e *Engine) Open(clientID string) *Session {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.sessions[clientID]; ok {
		// The displaced session is still owned by its connection's message
		// loop, which may be mid-HandleMessage on another goroutine.
		// Unregister it without touching its state; the old connection's own
		// Close tears it down and decrements the gauge.
		e.logger.Info("replacing session for reconnecting client", "client_id", clientID)
	}

	sess := &Session{
		ClientID: clientID,
		state:    StateOpen,
		buffer:   window.New(e.cfg.Window),
	}
	e.sessions[clientID] = sess
	e.metrics.ActiveSessions.Add(context.Background(), 1)
	e.logger.Info("session opened", "client_id", clientID)
	return sess
}

// Close tears a session down. All unflushed buffer state is discarded without
// persistence; streaming partials are never individually persisted. Closing
// is always safe, in any state, and is idempotent.
func (e *Engine) Close(sess *Session) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sess.state == StateClosed {
		return
	}
	if cur, ok := e.sessions[sess.ClientID]; ok && cur == sess {
		delete(e.sessions, sess.ClientID)
	}
	sess.close()
	e.metrics.ActiveSessions.Add(context.Background(), -1)
	e.logger.Info("session closed",
		"client_id", sess.ClientID,
		"frames_received", sess.framesReceived,
		"utterances", sess.utterances,
	)
}

// ActiveSessionCount returns the number of registered sessions.
func (e *Engine) ActiveSessionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// HandleMessage processes one client message and returns the events to push
// back over the live connection.
//
// Message handling for one session is strictly ordered; the transport must
// not call HandleMessage concurrently for the same session. Faults inside
// handling surface as error events while the session stays open; only a
// closed session makes HandleMessage itself fail.
func (e *Engine) HandleMessage(ctx context.Context, sess *Session, msg Message) ([]Event, error) {
	if sess.state == StateClosed {
		return nil, ErrSessionClosed
	}

	var events []Event
	switch msg.Type {
	case MessageSignFrame:
		events = e.handleFrame(ctx, sess, msg.Frame)
	case MessageEndOfUtterance:
		events = e.handleEndOfUtterance(ctx, sess)
	default:
		events = []Event{newError(fmt.Sprintf("unknown message type %q", msg.Type))}
	}

	for _, ev := range events {
		e.metrics.RecordStreamEvent(ctx, string(ev.EventType()))
	}
	return events, nil
}

// handleFrame runs extraction over one frame and advances the session's
// buffer. A frame without signal ticks the silence counter and yields an
// informational no_features event; enough trailing silence finalizes the
// utterance as if the client had signalled end-of-utterance.
func (e *Engine) handleFrame(ctx context.Context, sess *Session, frame signal.Frame) []Event {
	sess.framesReceived++

	rec, ok := e.extractor.Extract(ctx, frame)
	if !ok {
		sess.buffer.ObserveSilence()
		events := []Event{newNoFeatures()}
		if sess.buffer.Ready() {
			events = append(events, e.finalize(ctx, sess))
		}
		return events
	}

	sess.framesUsable++
	if err := sess.buffer.Append(rec); err != nil {
		// Out-of-order frames are dropped, never reordered. Not a client
		// fault worth an event; frame ordering jitter is normal over lossy
		// capture paths.
		e.logger.DebugContext(ctx, "dropping frame",
			"client_id", sess.ClientID,
			"error", err,
		)
		return nil
	}
	sess.accumulated()

	if sess.buffer.Ready() {
		// Full or span-exceeded: the window cannot grow further.
		return []Event{e.finalize(ctx, sess)}
	}

	if sess.buffer.Len() < e.cfg.Window.MinLength {
		return nil
	}

	// Live feedback: low-latency partial prediction over the newest record.
	pred, err := e.sign.PredictPartial(ctx, rec)
	if err != nil {
		e.metrics.RecordModelError(ctx, "sign_to_text_partial")
		return []Event{newError("partial inference failed: " + err.Error())}
	}
	e.metrics.PartialInferenceDuration.Record(ctx, pred.Latency.Seconds())

	partial := newPartial(pred.Text, pred.Confidence, true)
	sess.lastPartial = &partial
	return []Event{partial}
}

// handleEndOfUtterance force-drains the buffer regardless of readiness. An
// end signal with nothing buffered is a client protocol slip, reported as an
// error event without arming the end flag for the next utterance.
func (e *Engine) handleEndOfUtterance(ctx context.Context, sess *Session) []Event {
	if sess.buffer.Len() == 0 {
		return []Event{newError("no buffered frames to finalize")}
	}
	sess.buffer.MarkEnd()
	return []Event{e.finalize(ctx, sess)}
}

// finalize drains the current window, runs full-accuracy inference over it,
// persists the utterance, and returns the final event. Inference failure
// yields an error event; the window is dropped but the session stays open.
func (e *Engine) finalize(ctx context.Context, sess *Session) Event {
	start := time.Now()

	w, err := sess.buffer.Drain()
	if err != nil {
		return newError("no buffered frames to finalize")
	}
	sess.drained()

	pred, err := e.sign.Predict(ctx, w)
	if err != nil {
		e.metrics.RecordModelError(ctx, "sign_to_text")
		e.metrics.RecordTranslation(ctx, string(store.DirectionSignToText), "error")
		return newError("inference failed: " + err.Error())
	}
	e.metrics.InferenceDuration.Record(ctx, pred.Latency.Seconds())

	text := translate.PostProcess(pred.Text)
	latency := time.Since(start)

	e.persist(ctx, store.TranslationRecord{
		CallerID:       sess.ClientID,
		Direction:      store.DirectionSignToText,
		SourceLanguage: e.cfg.SourceLanguage,
		TargetLanguage: e.cfg.TargetLanguage,
		Text:           text,
		Confidence:     pred.Confidence,
		Latency:        latency,
		Embedding:      pred.Embedding,
		CreatedAt:      time.Now().UTC(),
	})
	e.metrics.RecordTranslation(ctx, string(store.DirectionSignToText), "ok")

	return newResult(text, pred.Confidence, latency, w.Len())
}

// persist writes a finalized streaming utterance on a best-effort basis.
func (e *Engine) persist(ctx context.Context, rec store.TranslationRecord) {
	if e.store == nil {
		return
	}
	if err := e.store.InsertTranslation(context.WithoutCancel(ctx), rec); err != nil {
		e.logger.WarnContext(ctx, "failed to persist streaming utterance",
			"caller_id", rec.CallerID,
			"error", err,
		)
		e.metrics.RecordPersistenceFailure(ctx, "translation")
	}
}
