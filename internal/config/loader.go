package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per capability.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"pose":          {"mediapipe"},
	"hands":         {"mediapipe"},
	"face":          {"mediapipe"},
	"sign_to_text":  {"triton"},
	"text_to_sign":  {"triton"},
	"video_decoder": {"ffmpeg"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values and fills in
// pipeline defaults for zero fields. It returns a joined error listing all
// validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("pose", cfg.Providers.Pose.Name)
	validateProviderName("hands", cfg.Providers.Hands.Name)
	validateProviderName("face", cfg.Providers.Face.Name)
	validateProviderName("sign_to_text", cfg.Providers.SignToText.Name)
	validateProviderName("text_to_sign", cfg.Providers.TextToSign.Name)
	validateProviderName("video_decoder", cfg.Providers.VideoDecoder.Name)

	// A pipeline with no detectors at all cannot extract features.
	if cfg.Providers.Pose.Name == "" && cfg.Providers.Hands.Name == "" {
		errs = append(errs, errors.New("providers: at least one of pose or hands must be configured"))
	}
	if cfg.Providers.SignToText.Name == "" {
		errs = append(errs, errors.New("providers.sign_to_text is required"))
	}
	if cfg.Providers.TextToSign.Name == "" {
		slog.Warn("providers.text_to_sign is not configured; text-to-sign requests will be rejected")
	}

	// Pipeline defaults and bounds.
	p := &cfg.Pipeline
	if p.WindowMinFrames == 0 {
		p.WindowMinFrames = DefaultWindowMinFrames
	}
	if p.WindowMaxFrames == 0 {
		p.WindowMaxFrames = DefaultWindowMaxFrames
	}
	if p.WindowMaxSpan == 0 {
		p.WindowMaxSpan = DefaultWindowMaxSpan
	}
	if p.SilenceFrames == 0 {
		p.SilenceFrames = DefaultSilenceFrames
	}
	if p.SourceLanguage == "" {
		p.SourceLanguage = DefaultSourceLanguage
	}
	if p.TargetLanguage == "" {
		p.TargetLanguage = DefaultTargetLanguage
	}
	if p.WindowMinFrames < 1 {
		errs = append(errs, fmt.Errorf("pipeline.window_min_frames %d must be >= 1", p.WindowMinFrames))
	}
	if p.WindowMaxFrames < p.WindowMinFrames {
		errs = append(errs, fmt.Errorf("pipeline.window_max_frames %d must be >= window_min_frames %d", p.WindowMaxFrames, p.WindowMinFrames))
	}
	if p.WindowMaxSpan < 0 {
		errs = append(errs, fmt.Errorf("pipeline.window_max_span %s must not be negative", p.WindowMaxSpan))
	}
	if p.SilenceFrames < 1 {
		errs = append(errs, fmt.Errorf("pipeline.silence_frames %d must be >= 1", p.SilenceFrames))
	}
	if p.MemoryThreshold < 0 || p.MemoryThreshold > 2 {
		errs = append(errs, fmt.Errorf("pipeline.memory_threshold %.2f is out of range [0, 2]", p.MemoryThreshold))
	}
	if p.MemoryThreshold > 0 && cfg.Store.PostgresDSN == "" {
		slog.Warn("pipeline.memory_threshold is set but store.postgres_dsn is empty; translation memory will not be available")
	}

	// Store
	if cfg.Store.PostgresDSN != "" && cfg.Store.EmbeddingDimensions <= 0 {
		errs = append(errs, errors.New("store.embedding_dimensions must be > 0 when store.postgres_dsn is set"))
	}
	if cfg.Store.PostgresDSN == "" {
		slog.Warn("store.postgres_dsn is empty; translations will not be persisted")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given capability.
func validateProviderName(capability, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[capability]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"capability", capability,
		"name", name,
		"known", known,
	)
}
