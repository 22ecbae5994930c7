package feature

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pinkycollie/pinksync/pkg/provider/detector"
	"github.com/pinkycollie/pinksync/pkg/provider/detector/mock"
	"github.com/pinkycollie/pinksync/pkg/signal"
)

func testFrame() signal.Frame {
	return signal.Frame{
		Pixels:    make([]byte, 4*4*3),
		Width:     4,
		Height:    4,
		Stride:    12,
		Format:    signal.FormatRGB24,
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func poseResult(n int) detector.Result {
	lms := make([]signal.PoseLandmark, n)
	for i := range lms {
		lms[i] = signal.PoseLandmark{
			Landmark:   signal.Landmark{X: float64(i), Y: 0.5, Z: 0.1},
			Visibility: 0.9,
		}
	}
	return detector.Result{Pose: lms}
}

func handResult(label detector.Handedness, x float64) detector.HandResult {
	lms := make([]signal.Landmark, 21)
	for i := range lms {
		lms[i] = signal.Landmark{X: x, Y: float64(i)}
	}
	return detector.HandResult{Label: label, Landmarks: lms}
}

func TestExtract_NoDetections(t *testing.T) {
	t.Parallel()
	e := New(&mock.Provider{}, &mock.Provider{}, &mock.Provider{}, nil, nil)

	rec, ok := e.Extract(context.Background(), testFrame())
	if ok {
		t.Error("ok = true, want false for empty detections")
	}
	if rec.HasSignal() {
		t.Error("record should not carry signal")
	}
	if !rec.Timestamp.Equal(testFrame().Timestamp) {
		t.Errorf("timestamp = %s, want frame timestamp", rec.Timestamp)
	}
}

func TestExtract_PoseOnlyCarriesSignal(t *testing.T) {
	t.Parallel()
	pose := &mock.Provider{Results: []detector.Result{poseResult(33)}}
	e := New(pose, &mock.Provider{}, &mock.Provider{}, nil, nil)

	rec, ok := e.Extract(context.Background(), testFrame())
	if !ok {
		t.Fatal("ok = false, want true with pose landmarks present")
	}
	if len(rec.Pose) != 33 {
		t.Errorf("pose landmarks = %d, want 33", len(rec.Pose))
	}
}

func TestExtract_FaceOnlyIsNotSignal(t *testing.T) {
	t.Parallel()
	mesh := make([]signal.Landmark, 468)
	face := &mock.Provider{Results: []detector.Result{{Face: mesh}}}
	e := New(&mock.Provider{}, &mock.Provider{}, face, nil, nil)

	rec, ok := e.Extract(context.Background(), testFrame())
	if ok {
		t.Error("ok = true, want false: face landmarks alone are not signal")
	}
	if len(rec.Face) != len(keyFaceIndices) {
		t.Errorf("face landmarks = %d, want %d", len(rec.Face), len(keyFaceIndices))
	}
}

func TestExtract_HandednessMapping(t *testing.T) {
	t.Parallel()
	hands := &mock.Provider{Results: []detector.Result{{
		Hands: []detector.HandResult{
			handResult(detector.HandLeft, 0.1),
			handResult(detector.HandRight, 0.9),
		},
	}}}
	e := New(&mock.Provider{}, hands, nil, nil, nil)

	rec, ok := e.Extract(context.Background(), testFrame())
	if !ok {
		t.Fatal("ok = false, want true with hands present")
	}
	if len(rec.LeftHand) != 21 || rec.LeftHand[0].X != 0.1 {
		t.Errorf("left hand not mapped: %+v", rec.LeftHand[:1])
	}
	if len(rec.RightHand) != 21 || rec.RightHand[0].X != 0.9 {
		t.Errorf("right hand not mapped: %+v", rec.RightHand[:1])
	}
}

func TestExtract_DuplicateHandLabelLastWins(t *testing.T) {
	t.Parallel()
	hands := &mock.Provider{Results: []detector.Result{{
		Hands: []detector.HandResult{
			handResult(detector.HandLeft, 0.1),
			handResult(detector.HandLeft, 0.7),
		},
	}}}
	e := New(nil, hands, nil, nil, nil)

	rec, _ := e.Extract(context.Background(), testFrame())
	if rec.LeftHand[0].X != 0.7 {
		t.Errorf("left hand X = %f, want 0.7 (last entry per side wins)", rec.LeftHand[0].X)
	}
	if rec.RightHand != nil {
		t.Error("right hand should be empty")
	}
}

func TestExtract_DetectorFaultAbsorbed(t *testing.T) {
	t.Parallel()
	pose := &mock.Provider{DetectErr: errors.New("model crashed")}
	hands := &mock.Provider{Results: []detector.Result{{
		Hands: []detector.HandResult{handResult(detector.HandRight, 0.5)},
	}}}
	e := New(pose, hands, nil, nil, nil)

	rec, ok := e.Extract(context.Background(), testFrame())
	if !ok {
		t.Fatal("ok = false, want true: hands still detected despite pose fault")
	}
	if len(rec.Pose) != 0 {
		t.Error("pose should be empty after detector fault")
	}
	if len(rec.RightHand) != 21 {
		t.Error("right hand should survive pose fault")
	}
}

func TestExtract_AllDetectorsFault(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	e := New(
		&mock.Provider{DetectErr: boom},
		&mock.Provider{DetectErr: boom},
		&mock.Provider{DetectErr: boom},
		nil, nil,
	)

	_, ok := e.Extract(context.Background(), testFrame())
	if ok {
		t.Error("ok = true, want false when every detector faults")
	}
}

func TestReduceFace_ShortMesh(t *testing.T) {
	t.Parallel()
	// A 100-point mesh only contains the key indices below 100.
	mesh := make([]signal.Landmark, 100)
	got := reduceFace(mesh)

	want := 0
	for _, idx := range keyFaceIndices {
		if idx < 100 {
			want++
		}
	}
	if len(got) != want {
		t.Errorf("reduced landmarks = %d, want %d", len(got), want)
	}
}

func TestReduceFace_EmptyMesh(t *testing.T) {
	t.Parallel()
	if got := reduceFace(nil); got != nil {
		t.Errorf("reduceFace(nil) = %v, want nil", got)
	}
}
