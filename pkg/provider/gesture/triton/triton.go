// Package triton provides a gesture.Provider backed by an NVIDIA Triton
// inference server speaking the KServe v2 REST protocol.
//
// Text is submitted as a BYTES tensor alongside the target sign-language tag;
// the model returns the gesture sequence as a JSON-encoded BYTES tensor plus
// a confidence score. The JSON detour keeps the variable-length keyframe list
// out of the tensor shape contract.
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

	"github.com/pinkycollie/pinksync/pkg/provider/gesture"
	"github.com/pinkycollie/pinksync/pkg/signal"
)

const (
	defaultModel   = "text2sign"
	defaultTimeout = 30 * time.Second
)

// Compile-time assertion that Provider implements gesture.Provider.
var _ gesture.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the Triton model name. Defaults to "text2sign".
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithTimeout sets the per-request timeout. Defaults to 30s.
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

// Provider implements gesture.Provider against a Triton inference server.
type Provider struct {
	serverURL  string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

// New creates a Provider that connects to the Triton server at serverURL.
// serverURL must be non-empty.
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
	return p, nil
}

// generateResponse is the KServe v2 response shape for the text2sign model.
type generateResponse struct {
	Outputs []struct {
		Name string          `json:"name"`
		Data json.RawMessage `json:"data"`
	} `json:"outputs"`
	Parameters struct {
		InferenceMs float64 `json:"inference_ms"`
	} `json:"parameters"`
}

// wireKeyframe is the JSON layout of one keyframe inside the SEQUENCE tensor.
type wireKeyframe struct {
	GestureID string `json:"gesture_id"`
	OffsetMs  int64  `json:"offset_ms"`
	HoldMs    int64  `json:"hold_ms"`
}

// Generate submits text to the text→sign model and parses the keyframe sequence.
func (p *Provider) Generate(ctx context.Context, text, lang string) (signal.SignSequence, error) {
	body, err := json.Marshal(map[string]any{
		"inputs": []map[string]any{
			{"name": "TEXT", "datatype": "BYTES", "shape": []int{1}, "data": []string{text}},
			{"name": "LANGUAGE", "datatype": "BYTES", "shape": []int{1}, "data": []string{lang}},
		},
	})
	if err != nil {
		return signal.SignSequence{}, fmt.Errorf("triton: marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/v2/models/%s/infer", p.serverURL, p.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return signal.SignSequence{}, fmt.Errorf("triton: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return signal.SignSequence{}, fmt.Errorf("triton: generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return signal.SignSequence{}, fmt.Errorf("triton: generate: server returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return signal.SignSequence{}, fmt.Errorf("triton: decode response: %w", err)
	}

	seq, err := parseSequence(gr)
	if err != nil {
		return signal.SignSequence{}, err
	}
	if seq.Latency == 0 {
		seq.Latency = time.Since(start)
	}
	return seq, nil
}

// Close is a no-op: the model lives in the Triton server process.
func (p *Provider) Close() error { return nil }

// parseSequence extracts the SEQUENCE and CONFIDENCE output tensors.
func parseSequence(gr generateResponse) (signal.SignSequence, error) {
	var seq signal.SignSequence
	seq.Latency = time.Duration(gr.Parameters.InferenceMs * float64(time.Millisecond))

	for _, out := range gr.Outputs {
		switch out.Name {
		case "SEQUENCE":
			var encoded []string
			if err := json.Unmarshal(out.Data, &encoded); err != nil {
				return signal.SignSequence{}, fmt.Errorf("triton: decode SEQUENCE tensor: %w", err)
			}
			if len(encoded) == 0 {
				continue
			}
			var frames []wireKeyframe
			if err := json.Unmarshal([]byte(encoded[0]), &frames); err != nil {
				return signal.SignSequence{}, fmt.Errorf("triton: decode keyframes: %w", err)
			}
			for _, f := range frames {
				seq.Keyframes = append(seq.Keyframes, signal.GestureKeyframe{
					GestureID: f.GestureID,
					Offset:    time.Duration(f.OffsetMs) * time.Millisecond,
					Hold:      time.Duration(f.HoldMs) * time.Millisecond,
				})
			}
		case "CONFIDENCE":
			var scores []float64
			if err := json.Unmarshal(out.Data, &scores); err != nil {
				return signal.SignSequence{}, fmt.Errorf("triton: decode CONFIDENCE tensor: %w", err)
			}
			if len(scores) > 0 {
				seq.Confidence = scores[0]
			}
		}
	}

	return seq, nil
}
