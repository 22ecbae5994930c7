package app

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/pinkycollie/pinksync/internal/pipeline/translate"
	"github.com/pinkycollie/pinksync/pkg/signal"
	"github.com/pinkycollie/pinksync/pkg/store"
)

// callerHeader carries the already-authenticated caller identity. Requests
// without it are attributed to anonymousCaller; authentication itself is an
// upstream concern.
const (
	callerHeader    = "X-Caller-ID"
	anonymousCaller = "anonymous"
)

// maxClipBytes caps an uploaded clip at 64 MiB.
const maxClipBytes = 64 << 20

// api serves the REST translation endpoints.
type api struct {
	orchestrator *translate.Orchestrator
	store        store.RecordStore
	logger       *slog.Logger
}

func newAPI(o *translate.Orchestrator, st store.RecordStore, logger *slog.Logger) *api {
	return &api{orchestrator: o, store: st, logger: logger}
}

func (a *api) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/translation/sign-to-text", a.handleSignToText)
	mux.HandleFunc("POST /api/translation/text-to-sign", a.handleTextToSign)
	mux.HandleFunc("GET /api/translation/recent", a.handleRecent)
	mux.HandleFunc("POST /api/synthesis/{reference}/status", a.handleSynthesisStatus)
}

// ─── Wire types ──────────────────────────────────────────────────────────────

type textToSignRequest struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language,omitempty"`
}

type keyframeResponse struct {
	GestureID string `json:"gesture_id"`
	OffsetMS  int64  `json:"offset_ms"`
	HoldMS    int64  `json:"hold_ms"`
}

type translationResponse struct {
	Text             string             `json:"text,omitempty"`
	Keyframes        []keyframeResponse `json:"keyframes,omitempty"`
	VideoReference   string             `json:"video_reference,omitempty"`
	Confidence       float64            `json:"confidence"`
	LatencyMS        int64              `json:"latency_ms"`
	FeaturesDetected int                `json:"features_detected,omitempty"`
	SourceLanguage   string             `json:"source_language"`
	TargetLanguage   string             `json:"target_language"`
}

type recordResponse struct {
	Direction      string    `json:"direction"`
	Text           string    `json:"text"`
	VideoReference string    `json:"video_reference,omitempty"`
	Confidence     float64   `json:"confidence"`
	SourceLanguage string    `json:"source_language"`
	TargetLanguage string    `json:"target_language"`
	CreatedAt      time.Time `json:"created_at"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toResponse(res signal.TranslationResult) translationResponse {
	out := translationResponse{
		Text:             res.Text,
		VideoReference:   res.VideoReference,
		Confidence:       res.Confidence,
		LatencyMS:        res.Latency.Milliseconds(),
		FeaturesDetected: res.FeaturesDetected,
		SourceLanguage:   res.SourceLanguage,
		TargetLanguage:   res.TargetLanguage,
	}
	if res.Sequence != nil {
		out.Keyframes = make([]keyframeResponse, len(res.Sequence.Keyframes))
		for i, kf := range res.Sequence.Keyframes {
			out.Keyframes[i] = keyframeResponse{
				GestureID: kf.GestureID,
				OffsetMS:  kf.Offset.Milliseconds(),
				HoldMS:    kf.Hold.Milliseconds(),
			}
		}
	}
	return out
}

// ─── Handlers ────────────────────────────────────────────────────────────────

// handleSignToText accepts a sign-language clip and returns its translation.
// The clip arrives either as the multipart form file "clip" or as the raw
// request body; it is spooled to a temporary file for the video decoder.
func (a *api) handleSignToText(w http.ResponseWriter, r *http.Request) {
	callerID := caller(r)
	r.Body = http.MaxBytesReader(w, r.Body, maxClipBytes)

	clip, err := spoolClip(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.Remove(clip)

	res, err := a.orchestrator.SignToText(r.Context(), clip,
		r.FormValue("source_language"), r.FormValue("target_language"), callerID)
	if err != nil {
		a.writeTranslateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

// handleTextToSign translates text into a gesture sequence and dispatches
// video synthesis for it.
func (a *api) handleTextToSign(w http.ResponseWriter, r *http.Request) {
	var req textToSignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	res, err := a.orchestrator.TextToSign(r.Context(), req.Text, req.TargetLanguage, caller(r))
	if err != nil {
		a.writeTranslateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

// handleRecent returns the caller's most recent translations, newest first.
func (a *api) handleRecent(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeError(w, http.StatusServiceUnavailable, "no record store configured")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, 100)
	}

	records, err := a.store.RecentTranslations(r.Context(), caller(r), limit)
	if err != nil {
		a.logger.ErrorContext(r.Context(), "recent translations query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	out := make([]recordResponse, len(records))
	for i, rec := range records {
		out[i] = recordResponse{
			Direction:      string(rec.Direction),
			Text:           rec.Text,
			VideoReference: rec.VideoReference,
			Confidence:     rec.Confidence,
			SourceLanguage: rec.SourceLanguage,
			TargetLanguage: rec.TargetLanguage,
			CreatedAt:      rec.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleSynthesisStatus is the external renderer's callback: it transitions
// a dispatched synthesis job to READY or FAILED.
func (a *api) handleSynthesisStatus(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeError(w, http.StatusServiceUnavailable, "no record store configured")
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	status := store.JobStatus(req.Status)
	if !status.IsValid() {
		writeError(w, http.StatusBadRequest, "unknown job status "+strconv.Quote(req.Status))
		return
	}

	reference := r.PathValue("reference")
	if err := a.store.UpdateSynthesisStatus(r.Context(), reference, status); err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "unknown synthesis job")
			return
		}
		a.logger.ErrorContext(r.Context(), "synthesis status update failed",
			"reference", reference, "error", err)
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func caller(r *http.Request) string {
	if id := r.Header.Get(callerHeader); id != "" {
		return id
	}
	return anonymousCaller
}

// writeTranslateError maps orchestrator errors onto HTTP statuses.
func (a *api) writeTranslateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, translate.ErrEmptyInput):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, translate.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		a.logger.ErrorContext(r.Context(), "translation failed", "error", err)
		writeError(w, http.StatusBadGateway, "translation failed")
	}
}

// spoolClip writes the uploaded clip to a temporary file and returns its
// path. The caller removes the file.
func spoolClip(r *http.Request) (string, error) {
	var src io.Reader = r.Body
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		file, _, err := r.FormFile("clip")
		if err != nil {
			return "", errors.New(`multipart upload needs a "clip" file field`)
		}
		defer file.Close()
		src = file
	}

	tmp, err := os.CreateTemp("", "pinksync-clip-*")
	if err != nil {
		return "", errors.New("cannot spool clip upload")
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, src); err != nil {
		os.Remove(tmp.Name())
		return "", errors.New("clip upload failed or exceeds the size limit")
	}
	return tmp.Name(), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best effort, headers already sent
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
