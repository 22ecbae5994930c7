// Command pinksync is the main entry point for the PinkSync translation server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pinkycollie/pinksync/internal/app"
	"github.com/pinkycollie/pinksync/internal/config"
	"github.com/pinkycollie/pinksync/internal/observe"
	"github.com/pinkycollie/pinksync/pkg/provider/detector"
	"github.com/pinkycollie/pinksync/pkg/provider/detector/mediapipe"
	"github.com/pinkycollie/pinksync/pkg/provider/gesture"
	gesturetriton "github.com/pinkycollie/pinksync/pkg/provider/gesture/triton"
	"github.com/pinkycollie/pinksync/pkg/provider/signmodel"
	signtriton "github.com/pinkycollie/pinksync/pkg/provider/signmodel/triton"
	"github.com/pinkycollie/pinksync/pkg/provider/videodec"
	"github.com/pinkycollie/pinksync/pkg/provider/videodec/ffmpeg"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "pinksync: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "pinksync: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("pinksync starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ─── Provider wiring ──────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterDetector("mediapipe", func(kind detector.Kind, entry config.ProviderEntry) (detector.Provider, error) {
		var opts []mediapipe.Option
		if entry.Timeout > 0 {
			opts = append(opts, mediapipe.WithTimeout(time.Duration(entry.Timeout)))
		}
		if c, ok := entry.Options["min_confidence"].(float64); ok {
			opts = append(opts, mediapipe.WithMinConfidence(c))
		}
		return mediapipe.New(entry.ServerURL, kind, opts...)
	})

	reg.RegisterSignModel("triton", func(entry config.ProviderEntry) (signmodel.Provider, error) {
		var opts []signtriton.Option
		if entry.Model != "" {
			opts = append(opts, signtriton.WithModel(entry.Model))
		}
		if m, ok := entry.Options["partial_model"].(string); ok {
			opts = append(opts, signtriton.WithPartialModel(m))
		}
		if entry.Timeout > 0 {
			opts = append(opts, signtriton.WithTimeout(time.Duration(entry.Timeout)))
		}
		return signtriton.New(entry.ServerURL, opts...)
	})

	reg.RegisterGesture("triton", func(entry config.ProviderEntry) (gesture.Provider, error) {
		var opts []gesturetriton.Option
		if entry.Model != "" {
			opts = append(opts, gesturetriton.WithModel(entry.Model))
		}
		if entry.Timeout > 0 {
			opts = append(opts, gesturetriton.WithTimeout(time.Duration(entry.Timeout)))
		}
		return gesturetriton.New(entry.ServerURL, opts...)
	})

	reg.RegisterVideoDecoder("ffmpeg", func(entry config.ProviderEntry) (videodec.Provider, error) {
		var opts []ffmpeg.Option
		if bin, ok := entry.Options["binary"].(string); ok {
			opts = append(opts, ffmpeg.WithBinary(bin))
		}
		if fps, ok := entry.Options["fps"].(int); ok {
			opts = append(opts, ffmpeg.WithFPS(fps))
		}
		return ffmpeg.New(opts...), nil
	})
}

// buildProviders instantiates every provider the config declares. Providers
// left unconfigured stay nil; the app degrades the operations needing them.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	p := &app.Providers{}
	pc := cfg.Providers

	detectors := []struct {
		kind  detector.Kind
		entry config.ProviderEntry
		slot  *detector.Provider
	}{
		{detector.KindPose, pc.Pose, &p.Pose},
		{detector.KindHands, pc.Hands, &p.Hands},
		{detector.KindFace, pc.Face, &p.Face},
	}
	for _, d := range detectors {
		if d.entry.Name == "" {
			continue
		}
		prov, err := reg.CreateDetector(d.kind, d.entry)
		if err != nil {
			return nil, fmt.Errorf("%s detector: %w", d.kind, err)
		}
		*d.slot = prov
		slog.Info("detector configured", "kind", d.kind, "provider", d.entry.Name)
	}

	if pc.SignToText.Name != "" {
		prov, err := reg.CreateSignModel(pc.SignToText)
		if err != nil {
			return nil, fmt.Errorf("sign_to_text model: %w", err)
		}
		p.SignToText = prov
		slog.Info("sign_to_text model configured", "provider", pc.SignToText.Name, "model", pc.SignToText.Model)
	}

	if pc.TextToSign.Name != "" {
		prov, err := reg.CreateGesture(pc.TextToSign)
		if err != nil {
			return nil, fmt.Errorf("text_to_sign model: %w", err)
		}
		p.TextToSign = prov
		slog.Info("text_to_sign model configured", "provider", pc.TextToSign.Name, "model", pc.TextToSign.Model)
	}

	if pc.VideoDecoder.Name != "" {
		prov, err := reg.CreateVideoDecoder(pc.VideoDecoder)
		if err != nil {
			return nil, fmt.Errorf("video decoder: %w", err)
		}
		p.VideoDecoder = prov
		slog.Info("video decoder configured", "provider", pc.VideoDecoder.Name)
	}

	return p, nil
}

// newLogger builds the process logger at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	var l slog.Level
	switch level {
	case config.LogDebug:
		l = slog.LevelDebug
	case config.LogWarn:
		l = slog.LevelWarn
	case config.LogError:
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
