package stream

import (
	"time"

	"github.com/pinkycollie/pinksync/pkg/signal"
)

// EventType names the events a session emits to its live connection.
type EventType string

const (
	EventPartialTranslation EventType = "partial_translation"
	EventNoFeatures         EventType = "no_features"
	EventTranslationResult  EventType = "translation_result"
	EventError              EventType = "error"
)

// Event is one message pushed to the live connection. Concrete event structs
// carry their own wire shape; the Kind field doubles as the JSON "type"
// discriminator.
type Event interface {
	EventType() EventType
}

// PartialTranslation is the low-latency feedback emitted while an utterance
// is still accumulating. Partials are never persisted.
type PartialTranslation struct {
	Kind             EventType `json:"type"`
	Text             string    `json:"text"`
	Confidence       float64   `json:"confidence"`
	FeaturesDetected bool      `json:"features_detected"`
}

func (e PartialTranslation) EventType() EventType { return e.Kind }

// NoFeatures reports that a frame carried no sign-language signal. It is
// informational, not an error.
type NoFeatures struct {
	Kind    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
}

func (e NoFeatures) EventType() EventType { return e.Kind }

// TranslationResult is the final event for one utterance.
type TranslationResult struct {
	Kind             EventType            `json:"type"`
	Text             string               `json:"text,omitempty"`
	Sequence         *signal.SignSequence `json:"sign_sequence,omitempty"`
	Confidence       float64              `json:"confidence"`
	LatencyMS        int64                `json:"latency_ms"`
	FeaturesDetected int                  `json:"features_detected"`
}

func (e TranslationResult) EventType() EventType { return e.Kind }

// ErrorEvent reports a recoverable session fault. The session stays open.
type ErrorEvent struct {
	Kind    EventType `json:"type"`
	Message string    `json:"message"`
}

func (e ErrorEvent) EventType() EventType { return e.Kind }

func newPartial(text string, confidence float64, features bool) PartialTranslation {
	return PartialTranslation{
		Kind:             EventPartialTranslation,
		Text:             text,
		Confidence:       confidence,
		FeaturesDetected: features,
	}
}

func newNoFeatures() NoFeatures {
	return NoFeatures{Kind: EventNoFeatures, Message: "no sign language features detected"}
}

func newResult(text string, confidence float64, latency time.Duration, features int) TranslationResult {
	return TranslationResult{
		Kind:             EventTranslationResult,
		Text:             text,
		Confidence:       confidence,
		LatencyMS:        latency.Milliseconds(),
		FeaturesDetected: features,
	}
}

func newError(message string) ErrorEvent {
	return ErrorEvent{Kind: EventError, Message: message}
}
