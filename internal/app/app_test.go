package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pinkycollie/pinksync/internal/app"
	"github.com/pinkycollie/pinksync/internal/config"
	"github.com/pinkycollie/pinksync/pkg/provider/detector"
	detectormock "github.com/pinkycollie/pinksync/pkg/provider/detector/mock"
	gesturemock "github.com/pinkycollie/pinksync/pkg/provider/gesture/mock"
	"github.com/pinkycollie/pinksync/pkg/provider/signmodel"
	signmock "github.com/pinkycollie/pinksync/pkg/provider/signmodel/mock"
	videodecmock "github.com/pinkycollie/pinksync/pkg/provider/videodec/mock"
	"github.com/pinkycollie/pinksync/pkg/signal"
	"github.com/pinkycollie/pinksync/pkg/store"
	storemock "github.com/pinkycollie/pinksync/pkg/store/mock"
)

// testConfig returns a minimal config with defaults already applied.
func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			ListenAddr: "127.0.0.1:0",
			LogLevel:   config.LogInfo,
		},
		Pipeline: config.PipelineConfig{
			WindowMinFrames: config.DefaultWindowMinFrames,
			WindowMaxFrames: config.DefaultWindowMaxFrames,
			WindowMaxSpan:   config.DefaultWindowMaxSpan,
			SilenceFrames:   config.DefaultSilenceFrames,
			SourceLanguage:  config.DefaultSourceLanguage,
			TargetLanguage:  config.DefaultTargetLanguage,
		},
	}
}

// clipFrames builds n decoded frames at ~30fps.
func clipFrames(n int) []signal.Frame {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	frames := make([]signal.Frame, n)
	for i := range frames {
		frames[i] = signal.Frame{
			Pixels:    make([]byte, 4*4*3),
			Width:     4,
			Height:    4,
			Stride:    12,
			Format:    signal.FormatRGB24,
			Timestamp: start.Add(time.Duration(i) * 33 * time.Millisecond),
		}
	}
	return frames
}

func handResult() detector.Result {
	return detector.Result{Hands: []detector.HandResult{{
		Label:     detector.HandRight,
		Landmarks: make([]signal.Landmark, 21),
	}}}
}

// testApp builds an App on mock providers and an in-memory store.
func testApp(t *testing.T) (*app.App, *storemock.RecordStore) {
	t.Helper()
	st := &storemock.RecordStore{}
	providers := &app.Providers{
		Hands:      &detectormock.Provider{Results: []detector.Result{handResult()}},
		SignToText: &signmock.Provider{PredictResult: signmodel.Prediction{Text: "hello world", Confidence: 0.9}},
		TextToSign: &gesturemock.Provider{GenerateResult: signal.SignSequence{
			Keyframes:  []signal.GestureKeyframe{{GestureID: "HELLO", Hold: 400 * time.Millisecond}},
			Confidence: 0.8,
		}},
		VideoDecoder: &videodecmock.Provider{Frames: clipFrames(15)},
	}

	application, err := app.New(context.Background(), testConfig(), providers, app.WithStore(st))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		application.Shutdown(ctx) //nolint:errcheck
	})
	return application, st
}

func doJSON(t *testing.T, h http.Handler, method, path, caller string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set("X-Caller-ID", caller)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal response %q: %v", rec.Body.String(), err)
	}
}

func TestSignToText_RawBodyUpload(t *testing.T) {
	t.Parallel()
	application, st := testApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/translation/sign-to-text",
		strings.NewReader("fake clip bytes"))
	req.Header.Set("Content-Type", "video/mp4")
	req.Header.Set("X-Caller-ID", "caller-1")
	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	decodeBody(t, rec, &resp)
	if resp["text"] != "Hello world." {
		t.Errorf("text = %v, want %q", resp["text"], "Hello world.")
	}
	if got := resp["features_detected"]; got != float64(15) {
		t.Errorf("features_detected = %v, want 15", got)
	}
	if resp["source_language"] != "asl" || resp["target_language"] != "en" {
		t.Errorf("languages = %v/%v, want asl/en", resp["source_language"], resp["target_language"])
	}

	records := st.Translations
	if len(records) != 1 || records[0].CallerID != "caller-1" {
		t.Fatalf("persisted records = %+v, want one for caller-1", records)
	}
}

func TestSignToText_EmptyClipRejected(t *testing.T) {
	t.Parallel()
	st := &storemock.RecordStore{}
	providers := &app.Providers{
		// A hands detector that never finds anything: every frame is silence.
		Hands:        &detectormock.Provider{Results: []detector.Result{{}}},
		SignToText:   &signmock.Provider{PredictResult: signmodel.Prediction{Text: "x"}},
		VideoDecoder: &videodecmock.Provider{Frames: clipFrames(5)},
	}
	application, err := app.New(context.Background(), testConfig(), providers, app.WithStore(st))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/translation/sign-to-text",
		strings.NewReader("clip"))
	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body %s", rec.Code, rec.Body.String())
	}
}

func TestSignToText_NoDecoderConfigured(t *testing.T) {
	t.Parallel()
	application, err := app.New(context.Background(), testConfig(), &app.Providers{
		Hands:      &detectormock.Provider{},
		SignToText: &signmock.Provider{},
	}, app.WithStore(&storemock.RecordStore{}))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/translation/sign-to-text",
		strings.NewReader("clip"))
	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestTextToSign_Flow(t *testing.T) {
	t.Parallel()
	application, st := testApp(t)

	rec := doJSON(t, application.Handler(), http.MethodPost, "/api/translation/text-to-sign",
		"caller-2", map[string]any{"text": "Hello world!!"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	decodeBody(t, rec, &resp)
	ref, _ := resp["video_reference"].(string)
	if !strings.HasPrefix(ref, "sign-videos/caller-2-") {
		t.Errorf("video_reference = %q, want sign-videos/caller-2-… prefix", ref)
	}
	keyframes, _ := resp["keyframes"].([]any)
	if len(keyframes) != 1 {
		t.Fatalf("keyframes = %v, want one", resp["keyframes"])
	}

	jobs := st.Jobs
	if len(jobs) != 1 || jobs[0].Status != store.JobPending || jobs[0].Reference != ref {
		t.Fatalf("jobs = %+v, want one pending job for %q", jobs, ref)
	}
}

func TestTextToSign_EmptyText(t *testing.T) {
	t.Parallel()
	application, _ := testApp(t)

	rec := doJSON(t, application.Handler(), http.MethodPost, "/api/translation/text-to-sign",
		"", map[string]any{"text": "   "})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestRecentTranslations(t *testing.T) {
	t.Parallel()
	application, _ := testApp(t)
	h := application.Handler()

	// Two translations for caller-3, one for someone else.
	for _, text := range []string{"one", "two"} {
		rec := doJSON(t, h, http.MethodPost, "/api/translation/text-to-sign",
			"caller-3", map[string]any{"text": text})
		if rec.Code != http.StatusOK {
			t.Fatalf("seed translation: status = %d", rec.Code)
		}
	}
	doJSON(t, h, http.MethodPost, "/api/translation/text-to-sign",
		"other", map[string]any{"text": "three"})

	rec := doJSON(t, h, http.MethodGet, "/api/translation/recent?limit=10", "caller-3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var list []map[string]any
	decodeBody(t, rec, &list)
	if len(list) != 2 {
		t.Fatalf("got %d records, want 2", len(list))
	}
	// Newest first.
	if list[0]["text"] != "two" || list[1]["text"] != "one" {
		t.Errorf("order = %v, %v; want two, one", list[0]["text"], list[1]["text"])
	}

	rec = doJSON(t, h, http.MethodGet, "/api/translation/recent?limit=nope", "caller-3", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit: status = %d, want 400", rec.Code)
	}
}

func TestSynthesisStatusCallback(t *testing.T) {
	t.Parallel()
	application, st := testApp(t)
	h := application.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/translation/text-to-sign",
		"caller-4", map[string]any{"text": "hello"})
	if rec.Code != http.StatusOK {
		t.Fatalf("seed translation: status = %d", rec.Code)
	}
	var resp map[string]any
	decodeBody(t, rec, &resp)
	ref := resp["video_reference"].(string)

	rec = doJSON(t, h, http.MethodPost, "/api/synthesis/"+ref+"/status",
		"", map[string]any{"status": "READY"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	jobs := st.Jobs
	if len(jobs) != 1 || jobs[0].Status != store.JobReady {
		t.Fatalf("jobs = %+v, want one READY job", jobs)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/synthesis/"+ref+"/status",
		"", map[string]any{"status": "DONE"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid status: got %d, want 400", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/synthesis/no-such-job/status",
		"", map[string]any{"status": "FAILED"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown reference: got %d, want 404", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	application, _ := testApp(t)
	h := application.Handler()

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, rec.Code)
		}
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()
	application, _ := testApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	// Give the listener a moment to come up, then cancel.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil && !strings.Contains(err.Error(), context.Canceled.Error()) {
			t.Fatalf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
