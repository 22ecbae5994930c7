package stream

import (
	"github.com/pinkycollie/pinksync/internal/pipeline/window"
)

// State is a session's lifecycle state.
//
//	StateOpen ──append──▶ StateAccumulating ──drain──▶ StateOpen … ──▶ StateClosed
//
// Closed is terminal; a reconnecting client gets a brand-new session.
type State string

const (
	// StateOpen means no window is being accumulated yet.
	StateOpen State = "open"

	// StateAccumulating means the session's buffer holds at least one record.
	StateAccumulating State = "accumulating"

	// StateClosed is terminal; the session accepts no further messages.
	StateClosed State = "closed"
)

// Session is one live connection's mutable state. It is owned exclusively by
// the engine's per-connection message loop and is not internally locked:
// messages for a single session are processed strictly in arrival order, so
// no two code paths ever touch a session concurrently.
type Session struct {
	// ClientID identifies the connected client.
	ClientID string

	state  State
	buffer *window.Buffer

	// lastPartial caches the most recent partial result, letting the
	// transport replay live feedback to a lagging client.
	lastPartial *PartialTranslation

	// Cumulative counters for the session's lifetime.
	framesReceived int
	framesUsable   int
	utterances     int
}

// State returns the session's current lifecycle state.
func (s *Session) State() State { return s.state }

// LastPartial returns the most recent partial translation, or nil when none
// has been emitted in the current utterance.
func (s *Session) LastPartial() *PartialTranslation { return s.lastPartial }

// FramesReceived returns the number of frame messages the session has seen.
func (s *Session) FramesReceived() int { return s.framesReceived }

// FramesUsable returns how many of those frames carried signal.
func (s *Session) FramesUsable() int { return s.framesUsable }

// Utterances returns how many finalized windows the session has produced.
func (s *Session) Utterances() int { return s.utterances }

// accumulated marks the transition into StateAccumulating after a successful
// append. No-op when already accumulating.
func (s *Session) accumulated() {
	if s.state == StateOpen {
		s.state = StateAccumulating
	}
}

// drained marks the transition back to StateOpen after a window finalized.
func (s *Session) drained() {
	s.utterances++
	s.lastPartial = nil
	if s.state == StateAccumulating {
		s.state = StateOpen
	}
}

// close makes the session terminal and releases its buffer.
func (s *Session) close() {
	s.state = StateClosed
	s.buffer = nil
	s.lastPartial = nil
}
