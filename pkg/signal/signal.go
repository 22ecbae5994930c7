// Package signal defines the shared types used across all PinkSync packages.
//
// These types form the lingua franca between detector providers, the sequence
// buffer, inference orchestrators, and the streaming engine. They are
// intentionally minimal — each package defines its own domain types, but
// cross-cutting data structures live here to avoid circular imports.
package signal

import "time"

// PixelFormat identifies the in-memory layout of a decoded video frame.
type PixelFormat string

const (
	// FormatRGB24 is 8-bit-per-channel packed RGB, the fixed format the
	// pipeline delivers to detectors.
	FormatRGB24 PixelFormat = "rgb24"

	// FormatBGR24 is 8-bit-per-channel packed BGR, the layout most camera
	// capture paths and OpenCV-style decoders produce.
	FormatBGR24 PixelFormat = "bgr24"
)

// Frame is one decoded video frame handed to the feature extractor.
type Frame struct {
	// Pixels is the packed pixel data in the layout described by Format.
	Pixels []byte

	// Width and Height are the frame dimensions in pixels.
	Width  int
	Height int

	// Stride is the number of bytes per row. For tightly packed frames this
	// is Width times the per-pixel byte count.
	Stride int

	// Format describes the pixel layout of Pixels.
	Format PixelFormat

	// Timestamp marks when this frame was captured.
	Timestamp time.Time
}

// Landmark is a single detected point in normalised image coordinates.
type Landmark struct {
	X float64
	Y float64
	Z float64
}

// PoseLandmark extends Landmark with the detector's visibility estimate.
type PoseLandmark struct {
	Landmark

	// Visibility is the detector's estimate (0.0–1.0) that the point is
	// visible and not occluded.
	Visibility float64
}

// FeatureRecord is one frame's canonical extracted landmark signal.
//
// A record with all four landmark sequences empty carries no signal and must
// never be admitted to a sequence buffer; use [FeatureRecord.HasSignal] to
// gate admission.
type FeatureRecord struct {
	// Pose holds the full-body pose landmarks, in detector order.
	Pose []PoseLandmark

	// LeftHand and RightHand hold the per-hand landmarks, assigned by the
	// detector's handedness label rather than screen position.
	LeftHand  []Landmark
	RightHand []Landmark

	// Face holds the reduced facial landmark subset (mouth, eyebrow, and jaw
	// region), never the full mesh.
	Face []Landmark

	// Timestamp is the capture time of the source frame.
	Timestamp time.Time
}

// HasSignal reports whether the record carries meaningful sign-language
// signal. Face landmarks alone do not count: a face-only reading cannot be
// signed content.
func (r FeatureRecord) HasSignal() bool {
	return len(r.Pose) > 0 || len(r.LeftHand) > 0 || len(r.RightHand) > 0
}

// SequenceWindow is an ordered run of FeatureRecords representing one
// candidate sign utterance. Records are strictly timestamp-increasing.
type SequenceWindow struct {
	Records []FeatureRecord
}

// Len returns the number of records in the window.
func (w SequenceWindow) Len() int { return len(w.Records) }

// Span returns the time covered between the first and last record.
// A window with fewer than two records has zero span.
func (w SequenceWindow) Span() time.Duration {
	if len(w.Records) < 2 {
		return 0
	}
	return w.Records[len(w.Records)-1].Timestamp.Sub(w.Records[0].Timestamp)
}

// GestureKeyframe is one element of a generated sign sequence.
type GestureKeyframe struct {
	// GestureID identifies the gesture in the target sign-language lexicon.
	GestureID string

	// Offset is the keyframe's start time relative to sequence start.
	Offset time.Duration

	// Hold is how long the gesture is held before transitioning.
	Hold time.Duration
}

// SignSequence is the ordered gesture output of a text→sign model.
type SignSequence struct {
	// Keyframes are the ordered gestures with their timing.
	Keyframes []GestureKeyframe

	// Confidence is the model's overall confidence (0.0–1.0).
	Confidence float64

	// Latency is the model-internal generation time.
	Latency time.Duration
}

// TranslationResult is the output of either translation direction.
//
// Sign→text fills Text and FeaturesDetected; text→sign fills Sequence and
// VideoReference. Both directions carry confidence, latency, and language tags.
type TranslationResult struct {
	// Text is the translated spoken-language text (sign→text only).
	Text string

	// Sequence is the generated sign sequence (text→sign only).
	Sequence *SignSequence

	// VideoReference points at the asynchronously rendered video artifact
	// (text→sign only). Non-empty even while rendering is still pending.
	VideoReference string

	// Confidence is the model confidence score in [0, 1].
	Confidence float64

	// Latency is the end-to-end processing time observed by the orchestrator.
	Latency time.Duration

	// FeaturesDetected counts the frames that contributed usable features
	// (sign→text only).
	FeaturesDetected int

	// SourceLanguage and TargetLanguage are the language tags of the request.
	SourceLanguage string
	TargetLanguage string
}

// Embedding is a fixed-dimension vector summary of a sequence window, emitted
// by sign→text models that support it. Used by the translation memory for
// similarity lookups; may be nil when the model does not produce one.
type Embedding []float32
