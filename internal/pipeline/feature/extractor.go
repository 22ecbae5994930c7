// Package feature turns raw video frames into landmark feature records.
//
// The extractor fans one frame out to the configured pose, hands, and face
// detectors and merges their results into a single [signal.FeatureRecord].
// Detector faults are absorbed here: a failing detector contributes nothing
// for that frame and the pipeline keeps running.
package feature

import (
	"context"
	"log/slog"
	"time"

	"github.com/pinkycollie/pinksync/internal/observe"
	"github.com/pinkycollie/pinksync/pkg/provider/detector"
	"github.com/pinkycollie/pinksync/pkg/signal"
)

// keyFaceIndices selects the facial mesh points relevant to sign language
// (mouth, eyebrows, jawline, nose bridge) out of the full 468-point mesh.
var keyFaceIndices = []int{
	0, 17, 18, 200, 199, 175, 176, 148, 149, 150, 136, 172, 58, 132, 93,
	234, 127, 162, 21, 54, 103, 67, 109, 10, 151, 9, 8, 168, 6, 197, 195,
	196, 3, 51, 48, 115, 131, 134, 102, 49, 220, 305, 292, 308, 324, 318,
}

// Extractor merges per-frame detector output into feature records. Any of the
// three detectors may be nil, in which case that capability is skipped.
//
// Extractor is stateless apart from its configuration and safe for concurrent
// use.
type Extractor struct {
	pose    detector.Provider
	hands   detector.Provider
	face    detector.Provider
	logger  *slog.Logger
	metrics *observe.Metrics
}

// New creates an [Extractor] over the given detectors. logger and metrics may
// be nil; defaults are substituted.
func New(pose, hands, face detector.Provider, logger *slog.Logger, metrics *observe.Metrics) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Extractor{
		pose:    pose,
		hands:   hands,
		face:    face,
		logger:  logger,
		metrics: metrics,
	}
}

// Extract runs all configured detectors over frame and merges their output.
//
// The boolean result reports whether the record carries signal: it is false
// when neither pose nor either hand was detected, matching
// [signal.FeatureRecord.HasSignal]. Face landmarks alone do not count as
// signal. The returned record is valid either way; callers should discard it
// when ok is false.
//
// Detector errors never propagate. A failed detector is logged at debug
// level, counted in the model-error metric, and treated as having found
// nothing in this frame.
func (e *Extractor) Extract(ctx context.Context, frame signal.Frame) (signal.FeatureRecord, bool) {
	start := time.Now()

	rec := signal.FeatureRecord{Timestamp: frame.Timestamp}

	if e.pose != nil {
		res := e.detect(ctx, detector.KindPose, e.pose, frame)
		rec.Pose = res.Pose
	}
	if e.hands != nil {
		res := e.detect(ctx, detector.KindHands, e.hands, frame)
		// Unusual detector output can label two hands identically; the last
		// entry per side wins.
		for _, h := range res.Hands {
			if h.Label == detector.HandLeft {
				rec.LeftHand = h.Landmarks
			} else {
				rec.RightHand = h.Landmarks
			}
		}
	}
	if e.face != nil {
		res := e.detect(ctx, detector.KindFace, e.face, frame)
		rec.Face = reduceFace(res.Face)
	}

	e.metrics.ExtractionDuration.Record(ctx, time.Since(start).Seconds())

	if !rec.HasSignal() {
		e.metrics.RecordFrame(ctx, "no_features")
		return rec, false
	}
	e.metrics.RecordFrame(ctx, "features")
	return rec, true
}

// detect runs one detector and absorbs its failure.
func (e *Extractor) detect(ctx context.Context, kind detector.Kind, p detector.Provider, frame signal.Frame) detector.Result {
	res, err := p.Detect(ctx, frame)
	if err != nil {
		e.logger.DebugContext(ctx, "detector fault, skipping frame contribution",
			"kind", kind,
			"error", err,
		)
		e.metrics.RecordModelError(ctx, string(kind))
		return detector.Result{}
	}
	return res
}

// reduceFace selects the key sign-language landmarks from the full face mesh.
// Indices past the end of mesh are skipped, so a short or empty mesh yields a
// short or empty result.
func reduceFace(mesh []signal.Landmark) []signal.Landmark {
	if len(mesh) == 0 {
		return nil
	}
	out := make([]signal.Landmark, 0, len(keyFaceIndices))
	for _, idx := range keyFaceIndices {
		if idx < len(mesh) {
			out = append(out, mesh[idx])
		}
	}
	return out
}
