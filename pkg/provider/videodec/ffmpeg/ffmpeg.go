// Package ffmpeg provides a videodec.Provider that shells out to the ffmpeg
// binary.
//
// Frames are decoded to packed rgb24 at a fixed output geometry and streamed
// over stdout as raw video, so each frame is exactly width*height*3 bytes and
// can be sliced off the pipe without any container parsing on our side.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pinkycollie/pinksync/pkg/provider/videodec"
	"github.com/pinkycollie/pinksync/pkg/signal"
)

const (
	defaultWidth  = 640
	defaultHeight = 480
	defaultFPS    = 15

	bytesPerPixel = 3 // rgb24
)

// Compile-time assertion that Decoder implements videodec.Provider.
var _ videodec.Provider = (*Decoder)(nil)

// Option is a functional option for configuring a Decoder.
type Option func(*Decoder)

// WithGeometry sets the output frame dimensions. Detector models expect a
// consistent input size, so all clips are scaled to this geometry.
// Defaults to 640x480.
func WithGeometry(width, height int) Option {
	return func(d *Decoder) {
		d.width = width
		d.height = height
	}
}

// WithFPS sets the output sampling rate in frames per second. Defaults to 15,
// which preserves sign motion while keeping inference load bounded.
func WithFPS(fps int) Option {
	return func(d *Decoder) {
		d.fps = fps
	}
}

// WithBinary overrides the ffmpeg executable path. Defaults to "ffmpeg"
// resolved via PATH.
func WithBinary(path string) Option {
	return func(d *Decoder) {
		d.binary = path
	}
}

// Decoder implements videodec.Provider by piping raw rgb24 video out of an
// ffmpeg subprocess. It is stateless per call and safe for concurrent use.
type Decoder struct {
	binary string
	width  int
	height int
	fps    int
}

// New creates a Decoder with the given options.
func New(opts ...Option) *Decoder {
	d := &Decoder{
		binary: "ffmpeg",
		width:  defaultWidth,
		height: defaultHeight,
		fps:    defaultFPS,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// ExtractFrames decodes the clip at path into rgb24 frames. Frame timestamps
// are synthesised from the configured sampling rate, anchored at the wall
// clock when decoding starts.
func (d *Decoder) ExtractFrames(ctx context.Context, path string) ([]signal.Frame, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("ffmpeg: clip %q: %w", path, err)
	}

	cmd := exec.CommandContext(ctx, d.binary,
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-vf", fmt.Sprintf("fps=%d,scale=%d:%d", d.fps, d.width, d.height),
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg: start: %w", err)
	}

	frameSize := d.width * d.height * bytesPerPixel
	interval := time.Second / time.Duration(d.fps)
	base := time.Now()

	var frames []signal.Frame
	for i := 0; ; i++ {
		buf := make([]byte, frameSize)
		if _, err := io.ReadFull(stdout, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return nil, fmt.Errorf("ffmpeg: read frame %d: %w", i, err)
		}
		frames = append(frames, signal.Frame{
			Pixels:    buf,
			Width:     d.width,
			Height:    d.height,
			Stride:    d.width * bytesPerPixel,
			Format:    signal.FormatRGB24,
			Timestamp: base.Add(time.Duration(i) * interval),
		})
	}

	if err := cmd.Wait(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("ffmpeg: decode %q: %w: %s", path, err, msg)
		}
		return nil, fmt.Errorf("ffmpeg: decode %q: %w", path, err)
	}

	return frames, nil
}
