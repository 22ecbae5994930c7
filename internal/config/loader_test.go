package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/pinkycollie/pinksync/internal/config"
)

const validYAML = `
server:
  listen_addr: ":8090"
  log_level: info
providers:
  pose:
    name: mediapipe
    server_url: http://localhost:9090
  hands:
    name: mediapipe
    server_url: http://localhost:9090
  face:
    name: mediapipe
    server_url: http://localhost:9090
  sign_to_text:
    name: triton
    server_url: http://localhost:8000
    model: sign2text
  text_to_sign:
    name: triton
    server_url: http://localhost:8000
    model: text2sign
  video_decoder:
    name: ffmpeg
store:
  postgres_dsn: "postgres://localhost/pinksync"
  embedding_dimensions: 512
`

func TestLoadFromReader_ValidConfig(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":8090" {
		t.Errorf("listen_addr = %q, want %q", cfg.Server.ListenAddr, ":8090")
	}
	if cfg.Providers.SignToText.Model != "sign2text" {
		t.Errorf("sign_to_text.model = %q, want %q", cfg.Providers.SignToText.Model, "sign2text")
	}
}

func TestLoadFromReader_AppliesPipelineDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Pipeline.WindowMinFrames != config.DefaultWindowMinFrames {
		t.Errorf("window_min_frames = %d, want %d", cfg.Pipeline.WindowMinFrames, config.DefaultWindowMinFrames)
	}
	if cfg.Pipeline.WindowMaxFrames != config.DefaultWindowMaxFrames {
		t.Errorf("window_max_frames = %d, want %d", cfg.Pipeline.WindowMaxFrames, config.DefaultWindowMaxFrames)
	}
	if cfg.Pipeline.WindowMaxSpan != config.DefaultWindowMaxSpan {
		t.Errorf("window_max_span = %s, want %s", cfg.Pipeline.WindowMaxSpan, config.DefaultWindowMaxSpan)
	}
	if cfg.Pipeline.SilenceFrames != config.DefaultSilenceFrames {
		t.Errorf("silence_frames = %d, want %d", cfg.Pipeline.SilenceFrames, config.DefaultSilenceFrames)
	}
	if cfg.Pipeline.SourceLanguage != "asl" || cfg.Pipeline.TargetLanguage != "en" {
		t.Errorf("languages = %q/%q, want asl/en", cfg.Pipeline.SourceLanguage, cfg.Pipeline.TargetLanguage)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := validYAML + `
unknown_section:
  foo: bar
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_MissingSignToText(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  pose:
    name: mediapipe
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing sign_to_text provider, got nil")
	}
	if !strings.Contains(err.Error(), "sign_to_text") {
		t.Errorf("error should mention sign_to_text, got: %v", err)
	}
}

func TestValidate_MissingAllDetectors(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  sign_to_text:
    name: triton
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error when no detector is configured, got nil")
	}
	if !strings.Contains(err.Error(), "pose or hands") {
		t.Errorf("error should mention detectors, got: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: verbose
providers:
  pose:
    name: mediapipe
  sign_to_text:
    name: triton
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_WindowBounds(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  pose:
    name: mediapipe
  sign_to_text:
    name: triton
pipeline:
  window_min_frames: 30
  window_max_frames: 10
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for max < min, got nil")
	}
	if !strings.Contains(err.Error(), "window_max_frames") {
		t.Errorf("error should mention window_max_frames, got: %v", err)
	}
}

func TestValidate_MemoryThresholdOutOfRange(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  pose:
    name: mediapipe
  sign_to_text:
    name: triton
pipeline:
  memory_threshold: 3.5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for out-of-range memory threshold, got nil")
	}
	if !strings.Contains(err.Error(), "memory_threshold") {
		t.Errorf("error should mention memory_threshold, got: %v", err)
	}
}

func TestValidate_StoreRequiresDimensions(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  pose:
    name: mediapipe
  sign_to_text:
    name: triton
store:
  postgres_dsn: "postgres://localhost/pinksync"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing embedding_dimensions, got nil")
	}
	if !strings.Contains(err.Error(), "embedding_dimensions") {
		t.Errorf("error should mention embedding_dimensions, got: %v", err)
	}
}

func TestLoadFromReader_ParsesTimeout(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  pose:
    name: mediapipe
  sign_to_text:
    name: triton
    timeout: 1500ms
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := time.Duration(cfg.Providers.SignToText.Timeout); got != 1500*time.Millisecond {
		t.Errorf("timeout = %s, want 1.5s", got)
	}
}

func TestLoadFromReader_RejectsMalformedTimeout(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  pose:
    name: mediapipe
  sign_to_text:
    name: triton
    timeout: soon
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for malformed timeout, got nil")
	}
}
