// Package ws is the live-connection transport: it accepts WebSocket
// connections, decodes client messages into engine messages, and pushes
// engine events back over the wire.
//
// The wire protocol is JSON text frames. Client → server:
//
//	{"type": "sign_frame", "frame": {"pixels": "<base64>", "width": W,
//	 "height": H, "format": "rgb24", "timestamp_ms": T}}
//	{"type": "end_of_utterance"}
//
// Server → client: the stream package's event types, one JSON object per
// frame. Each connection's messages are processed strictly in arrival order
// by a single loop, matching the engine's one-loop-per-session ownership
// contract.
package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/pinkycollie/pinksync/internal/stream"
	"github.com/pinkycollie/pinksync/pkg/signal"
)

// writeTimeout bounds a single event write to a slow client.
const writeTimeout = 10 * time.Second

// wireMessage is the decoded client frame.
type wireMessage struct {
	Type  string     `json:"type"`
	Frame *wireFrame `json:"frame,omitempty"`
}

// wireFrame carries one base64-encoded video frame.
type wireFrame struct {
	Pixels      string `json:"pixels"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Stride      int    `json:"stride,omitempty"`
	Format      string `json:"format,omitempty"`
	TimestampMS int64  `json:"timestamp_ms"`
}

// Handler upgrades HTTP requests to live translation sessions.
type Handler struct {
	engine *stream.Engine
	logger *slog.Logger
}

// NewHandler creates a [Handler] over engine. logger may be nil.
func NewHandler(engine *stream.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: engine, logger: logger}
}

// ServeHTTP accepts the WebSocket upgrade and runs the connection's message
// loop until the client disconnects or the server shuts down. The client ID
// comes from the request path value "client_id".
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("client_id")
	if clientID == "" {
		http.Error(w, "missing client id", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", "client_id", clientID, "error", err)
		return
	}

	sess := h.engine.Open(clientID)
	defer h.engine.Close(sess)

	if err := h.loop(r.Context(), conn, sess); err != nil {
		status := websocket.CloseStatus(err)
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
		h.logger.Info("session loop ended", "client_id", clientID, "error", err)
		conn.Close(websocket.StatusInternalError, "session error")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// loop reads, handles, and answers messages one at a time.
func (h *Handler) loop(ctx context.Context, conn *websocket.Conn, sess *stream.Session) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			if err := h.writeEvent(ctx, conn, errorEvent("binary frames are not supported")); err != nil {
				return err
			}
			continue
		}

		msg, decodeErr := decodeMessage(data)
		if decodeErr != nil {
			if err := h.writeEvent(ctx, conn, errorEvent(decodeErr.Error())); err != nil {
				return err
			}
			continue
		}

		events, err := h.engine.HandleMessage(ctx, sess, msg)
		if err != nil {
			return err
		}
		for _, ev := range events {
			if err := h.writeEvent(ctx, conn, ev); err != nil {
				return err
			}
		}
	}
}

// writeEvent marshals one event and writes it as a text frame.
func (h *Handler) writeEvent(ctx context.Context, conn *websocket.Conn, ev stream.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("ws: marshal event: %w", err)
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, raw)
}

// decodeMessage turns a raw client frame into an engine message. Unknown
// message types pass through untouched; the engine answers those with its
// own error event so the session stays open.
func decodeMessage(data []byte) (stream.Message, error) {
	var wire wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return stream.Message{}, fmt.Errorf("malformed message: %v", err)
	}

	msg := stream.Message{Type: stream.MessageType(wire.Type)}
	if wire.Type != string(stream.MessageSignFrame) {
		return msg, nil
	}

	if wire.Frame == nil {
		return stream.Message{}, errors.New("sign_frame message carries no frame")
	}
	frame, err := wire.Frame.decode()
	if err != nil {
		return stream.Message{}, err
	}
	msg.Frame = frame
	return msg, nil
}

// decode validates and unpacks one wire frame.
func (f *wireFrame) decode() (signal.Frame, error) {
	if f.Width <= 0 || f.Height <= 0 {
		return signal.Frame{}, fmt.Errorf("invalid frame geometry %dx%d", f.Width, f.Height)
	}
	pixels, err := base64.StdEncoding.DecodeString(f.Pixels)
	if err != nil {
		return signal.Frame{}, fmt.Errorf("frame pixels are not valid base64: %v", err)
	}

	format := signal.PixelFormat(f.Format)
	if format == "" {
		format = signal.FormatRGB24
	}
	if format != signal.FormatRGB24 && format != signal.FormatBGR24 {
		return signal.Frame{}, fmt.Errorf("unsupported pixel format %q", f.Format)
	}

	stride := f.Stride
	if stride == 0 {
		stride = f.Width * 3
	}
	if want := stride * f.Height; len(pixels) < want {
		return signal.Frame{}, fmt.Errorf("frame payload is %d bytes, need %d", len(pixels), want)
	}

	return signal.Frame{
		Pixels:    pixels,
		Width:     f.Width,
		Height:    f.Height,
		Stride:    stride,
		Format:    format,
		Timestamp: time.UnixMilli(f.TimestampMS).UTC(),
	}, nil
}

// errorEvent builds a transport-level error event without reaching into the
// engine's constructors.
func errorEvent(message string) stream.Event {
	return stream.ErrorEvent{Kind: stream.EventError, Message: message}
}
