// Package triton provides a signmodel.Provider backed by an NVIDIA Triton
// inference server speaking the KServe v2 REST protocol.
//
// Each sequence window is flattened into a fixed-dimension FP32 tensor of
// shape [frames, featureDim] and submitted to POST /v2/models/<name>/infer.
// Missing landmark segments are zero-filled so the tensor layout is stable
// regardless of which detectors fired for a given frame.
//
// Partial predictions go to a separate (typically distilled) model deployed
// alongside the full one; by convention its name is the full model's name
// with a "-partial" suffix unless overridden with WithPartialModel.
package triton

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pinkycollie/pinksync/pkg/provider/signmodel"
	"github.com/pinkycollie/pinksync/pkg/signal"
)

// Landmark counts per segment of the flattened feature vector. These match
// the detector model topologies: 33 pose points (x, y, z, visibility),
// 21 points per hand (x, y, z), and the 46-point reduced face subset (x, y, z).
const (
	poseLandmarks = 33
	handLandmarks = 21
	faceLandmarks = 46

	// FeatureDim is the per-frame feature vector length.
	FeatureDim = poseLandmarks*4 + handLandmarks*3*2 + faceLandmarks*3
)

const (
	defaultModel   = "sign2text"
	defaultTimeout = 30 * time.Second
)

// Compile-time assertion that Provider implements signmodel.Provider.
var _ signmodel.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the Triton model name for full-accuracy inference.
// Defaults to "sign2text".
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithPartialModel sets the Triton model name for the low-latency partial
// path. Defaults to the full model's name with a "-partial" suffix.
func WithPartialModel(model string) Option {
	return func(p *Provider) {
		p.partialModel = model
	}
}

// WithTimeout sets the per-request timeout for full inference. The partial
// path always uses a quarter of this value, floored at one second.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client. Mainly useful in tests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements signmodel.Provider against a Triton inference server.
// It is stateless per call and safe for concurrent use.
type Provider struct {
	serverURL    string
	model        string
	partialModel string
	timeout      time.Duration
	httpClient   *http.Client
}

// New creates a Provider that connects to the Triton server at serverURL
// (e.g., "http://localhost:8000"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("triton: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		model:      defaultModel,
		timeout:    defaultTimeout,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	if p.partialModel == "" {
		p.partialModel = p.model + "-partial"
	}
	return p, nil
}

// Predict runs full-accuracy inference over window.
func (p *Provider) Predict(ctx context.Context, window signal.SequenceWindow) (signmodel.Prediction, error) {
	if window.Len() == 0 {
		return signmodel.Prediction{}, errors.New("triton: empty sequence window")
	}

	data := make([]float32, 0, window.Len()*FeatureDim)
	for _, rec := range window.Records {
		data = append(data, flattenRecord(rec)...)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	out, err := p.infer(ctx, p.model, window.Len(), data)
	if err != nil {
		return signmodel.Prediction{}, err
	}
	if out.Latency == 0 {
		out.Latency = time.Since(start)
	}
	return out, nil
}

// PredictPartial runs the low-latency partial model over a single record.
func (p *Provider) PredictPartial(ctx context.Context, record signal.FeatureRecord) (signmodel.Prediction, error) {
	timeout := p.timeout / 4
	if timeout < time.Second {
		timeout = time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := p.infer(ctx, p.partialModel, 1, flattenRecord(record))
	if err != nil {
		return signmodel.Prediction{}, err
	}
	// Partial predictions never carry embeddings.
	out.Embedding = nil
	return out, nil
}

// Close is a no-op: the model lives in the Triton server process.
func (p *Provider) Close() error { return nil }

// ── wire types ───────────────────────────────────────────────────────────────

// inferRequest is the KServe v2 inference request body.
type inferRequest struct {
	Inputs []inferTensor `json:"inputs"`
}

type inferTensor struct {
	Name     string `json:"name"`
	Datatype string `json:"datatype"`
	Shape    []int  `json:"shape"`
	Data     any    `json:"data"`
}

// inferResponse is the KServe v2 inference response body.
type inferResponse struct {
	Outputs []struct {
		Name     string          `json:"name"`
		Datatype string          `json:"datatype"`
		Shape    []int           `json:"shape"`
		Data     json.RawMessage `json:"data"`
	} `json:"outputs"`
	Parameters struct {
		InferenceMs float64 `json:"inference_ms"`
	} `json:"parameters"`
}

// infer submits one tensor batch to model and parses the standard output set.
func (p *Provider) infer(ctx context.Context, model string, frames int, data []float32) (signmodel.Prediction, error) {
	body, err := json.Marshal(inferRequest{
		Inputs: []inferTensor{{
			Name:     "FEATURES",
			Datatype: "FP32",
			Shape:    []int{frames, FeatureDim},
			Data:     data,
		}},
	})
	if err != nil {
		return signmodel.Prediction{}, fmt.Errorf("triton: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v2/models/%s/infer", p.serverURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return signmodel.Prediction{}, fmt.Errorf("triton: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return signmodel.Prediction{}, fmt.Errorf("triton: infer %s: %w", model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return signmodel.Prediction{}, fmt.Errorf("triton: infer %s: server returned %d: %s",
			model, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var ir inferResponse
	if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
		return signmodel.Prediction{}, fmt.Errorf("triton: decode response: %w", err)
	}
	return parsePrediction(ir)
}

// parsePrediction extracts TEXT, CONFIDENCE, and the optional EMBEDDING
// output tensors from a v2 inference response.
func parsePrediction(ir inferResponse) (signmodel.Prediction, error) {
	var pred signmodel.Prediction
	pred.Latency = time.Duration(ir.Parameters.InferenceMs * float64(time.Millisecond))

	for _, out := range ir.Outputs {
		switch out.Name {
		case "TEXT":
			var texts []string
			if err := json.Unmarshal(out.Data, &texts); err != nil {
				return signmodel.Prediction{}, fmt.Errorf("triton: decode TEXT tensor: %w", err)
			}
			if len(texts) > 0 {
				pred.Text = texts[0]
			}
		case "CONFIDENCE":
			var scores []float64
			if err := json.Unmarshal(out.Data, &scores); err != nil {
				return signmodel.Prediction{}, fmt.Errorf("triton: decode CONFIDENCE tensor: %w", err)
			}
			if len(scores) > 0 {
				pred.Confidence = scores[0]
			}
		case "EMBEDDING":
			var vec []float32
			if err := json.Unmarshal(out.Data, &vec); err != nil {
				return signmodel.Prediction{}, fmt.Errorf("triton: decode EMBEDDING tensor: %w", err)
			}
			if len(vec) > 0 {
				pred.Embedding = vec
			}
		}
	}

	return pred, nil
}

// flattenRecord packs one FeatureRecord into the fixed-dimension feature
// vector. Absent segments stay zero-filled.
func flattenRecord(rec signal.FeatureRecord) []float32 {
	vec := make([]float32, FeatureDim)

	off := 0
	for i, l := range rec.Pose {
		if i >= poseLandmarks {
			break
		}
		base := off + i*4
		vec[base] = float32(l.X)
		vec[base+1] = float32(l.Y)
		vec[base+2] = float32(l.Z)
		vec[base+3] = float32(l.Visibility)
	}
	off += poseLandmarks * 4

	off = packHand(vec, off, rec.LeftHand)
	off = packHand(vec, off, rec.RightHand)

	for i, l := range rec.Face {
		if i >= faceLandmarks {
			break
		}
		base := off + i*3
		vec[base] = float32(l.X)
		vec[base+1] = float32(l.Y)
		vec[base+2] = float32(l.Z)
	}

	return vec
}

// packHand writes one hand's landmarks at off and returns the next offset.
func packHand(vec []float32, off int, hand []signal.Landmark) int {
	for i, l := range hand {
		if i >= handLandmarks {
			break
		}
		base := off + i*3
		vec[base] = float32(l.X)
		vec[base+1] = float32(l.Y)
		vec[base+2] = float32(l.Z)
	}
	return off + handLandmarks*3
}
