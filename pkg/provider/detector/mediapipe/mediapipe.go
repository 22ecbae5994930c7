// Package mediapipe provides a detector.Provider backed by a MediaPipe
// landmark sidecar server.
//
// It connects to a running landmark server (which exposes a REST API at
// POST /v1/<kind>:detect) and submits each frame as a raw pixel buffer with
// its geometry described in headers. The sidecar holds the actual MediaPipe
// graph; this package is a thin, stateless HTTP client, so a single Provider
// may be shared by any number of concurrent sessions.
//
// Usage:
//
//	p, err := mediapipe.New("http://localhost:9090", detector.KindHands,
//	    mediapipe.WithMinConfidence(0.7),
//	)
//	result, err := p.Detect(ctx, frame)
package mediapipe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pinkycollie/pinksync/pkg/provider/detector"
	"github.com/pinkycollie/pinksync/pkg/signal"
)

const (
	defaultMinConfidence = 0.7
	defaultTimeout       = 2 * time.Second
)

// Compile-time assertion that Provider implements detector.Provider.
var _ detector.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithMinConfidence sets the minimum detection confidence forwarded to the
// sidecar (0.0–1.0). Detections below the threshold are suppressed server
// side. Defaults to 0.7.
func WithMinConfidence(c float64) Option {
	return func(p *Provider) {
		p.minConfidence = c
	}
}

// WithTimeout sets the per-request timeout. Detection is on the per-frame hot
// path, so the default is deliberately short (2s); raise it only for models
// running without hardware acceleration.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client. Mainly useful in tests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements detector.Provider against a MediaPipe landmark sidecar.
// One Provider runs exactly one model kind; create three instances for a full
// pose/hands/face capability set.
type Provider struct {
	serverURL     string
	kind          detector.Kind
	minConfidence float64
	httpClient    *http.Client
}

// New creates a Provider that connects to the landmark sidecar at serverURL
// (e.g., "http://localhost:9090") running the model selected by kind.
func New(serverURL string, kind detector.Kind, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("mediapipe: serverURL must not be empty")
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("mediapipe: unknown detector kind %q", kind)
	}
	p := &Provider{
		serverURL:     strings.TrimRight(serverURL, "/"),
		kind:          kind,
		minConfidence: defaultMinConfidence,
		httpClient:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// detectResponse is the JSON structure returned by the sidecar.
type detectResponse struct {
	Pose []struct {
		X          float64 `json:"x"`
		Y          float64 `json:"y"`
		Z          float64 `json:"z"`
		Visibility float64 `json:"visibility"`
	} `json:"pose"`
	Hands []struct {
		Handedness string `json:"handedness"`
		Landmarks  []struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
			Z float64 `json:"z"`
		} `json:"landmarks"`
	} `json:"hands"`
	Face []struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
		Z float64 `json:"z"`
	} `json:"face"`
}

// Detect submits frame to the sidecar and parses the landmark response.
func (p *Provider) Detect(ctx context.Context, frame signal.Frame) (detector.Result, error) {
	url := fmt.Sprintf("%s/v1/%s:detect", p.serverURL, p.kind)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(frame.Pixels))
	if err != nil {
		return detector.Result{}, fmt.Errorf("mediapipe: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Frame-Width", strconv.Itoa(frame.Width))
	req.Header.Set("X-Frame-Height", strconv.Itoa(frame.Height))
	req.Header.Set("X-Frame-Stride", strconv.Itoa(frame.Stride))
	req.Header.Set("X-Frame-Format", string(frame.Format))
	req.Header.Set("X-Min-Confidence", strconv.FormatFloat(p.minConfidence, 'g', -1, 64))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return detector.Result{}, fmt.Errorf("mediapipe: %s detect: %w", p.kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return detector.Result{}, fmt.Errorf("mediapipe: %s detect: server returned %d: %s",
			p.kind, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var dr detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return detector.Result{}, fmt.Errorf("mediapipe: decode response: %w", err)
	}
	return dr.toResult(), nil
}

// Close is a no-op: the model lives in the sidecar process.
func (p *Provider) Close() error { return nil }

// toResult converts the wire response into a detector.Result.
func (dr detectResponse) toResult() detector.Result {
	var res detector.Result

	for _, l := range dr.Pose {
		res.Pose = append(res.Pose, signal.PoseLandmark{
			Landmark:   signal.Landmark{X: l.X, Y: l.Y, Z: l.Z},
			Visibility: l.Visibility,
		})
	}

	for _, h := range dr.Hands {
		hand := detector.HandResult{Label: parseHandedness(h.Handedness)}
		for _, l := range h.Landmarks {
			hand.Landmarks = append(hand.Landmarks, signal.Landmark{X: l.X, Y: l.Y, Z: l.Z})
		}
		res.Hands = append(res.Hands, hand)
	}

	for _, l := range dr.Face {
		res.Face = append(res.Face, signal.Landmark{X: l.X, Y: l.Y, Z: l.Z})
	}

	return res
}

// parseHandedness maps the sidecar's classification label ("Left"/"Right",
// any casing) onto detector.Handedness. Unknown labels default to right,
// matching the upstream MediaPipe fallback.
func parseHandedness(label string) detector.Handedness {
	if strings.EqualFold(label, "left") {
		return detector.HandLeft
	}
	return detector.HandRight
}
