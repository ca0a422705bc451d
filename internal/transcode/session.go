// Package transcode reshapes the engine's raw generation byte stream into
// OpenAI-compatible server-sent event frames. A Session consumes arbitrarily
// chunked input (chunks may split a multi-byte character, the reasoning close
// tag, or an event line) and re-emits correctly framed output, suppressing
// everything up to and including the in-band reasoning preamble.
package transcode

import (
	"strings"

	"go.uber.org/zap"
)

type Mode int

const (
	ModeChat Mode = iota
	ModeCompletion
)

// Config describes one client streaming request. Emit receives fully framed
// events ready to write to the wire; an error from Emit stops the session.
// OnFragment, if set, observes each extracted text fragment before framing.
type Config struct {
	ID         string
	Created    int64
	Model      string
	Mode       Mode
	Emit       func(frame []byte) error
	OnFragment func(fragment string)
	Log        *zap.SugaredLogger
}

// Session holds all mutable per-stream state. It is not safe for concurrent
// use; input chunks must be fed in arrival order.
type Session struct {
	id         string
	created    int64
	model      string
	mode       Mode
	emit       func([]byte) error
	onFragment func(string)
	log        *zap.SugaredLogger

	carry          []byte // undecoded trailing bytes of an incomplete rune
	window         string // preamble scan window, bounded by the close tag length
	text           string // decoded, filtered, not yet framed
	preambleClosed bool
	finished       bool
	sentinelSeen   bool
	frames         uint64
	skipped        uint64
}

func NewSession(cfg Config) *Session {
	emit := cfg.Emit
	if emit == nil {
		emit = func([]byte) error { return nil }
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Session{
		id:         cfg.ID,
		created:    cfg.Created,
		model:      cfg.Model,
		mode:       cfg.Mode,
		emit:       emit,
		onFragment: cfg.OnFragment,
		log:        log,
	}
}

// Write feeds the next raw chunk from the engine through the pipeline. Input
// arriving after the session finished is ignored.
func (s *Session) Write(chunk []byte) error {
	if s.finished {
		return nil
	}
	text := s.filterPreamble(s.decode(chunk))
	if text == "" {
		return nil
	}
	s.text += text
	return s.drainLines()
}

// Flush handles end-of-input: decodes any leftover carry with best-effort
// substitution, drops an unterminated trailing line, and finalizes the
// stream. Safe to call more than once.
func (s *Session) Flush() error {
	if s.finished {
		return nil
	}
	if tail := s.filterPreamble(s.flushCarry()); tail != "" {
		s.text += tail
		if err := s.drainLines(); err != nil {
			return err
		}
	}
	if !s.finished && s.text != "" {
		s.log.Debugw("dropping unterminated trailing line", "bytes", len(s.text))
		s.text = ""
	}
	return s.finalize()
}

func (s *Session) drainLines() error {
	for !s.finished {
		idx := strings.IndexByte(s.text, '\n')
		if idx < 0 {
			return nil
		}
		line := s.text[:idx+1]
		s.text = s.text[idx+1:]
		if err := s.handleLine(line); err != nil {
			return err
		}
	}
	return nil
}

// Finished reports whether the terminating frames have been emitted.
func (s *Session) Finished() bool {
	return s.finished
}

// Frames returns the number of frames written, terminating frame included.
func (s *Session) Frames() uint64 {
	return s.frames
}

// Skipped returns the number of event lines dropped as unparsable.
func (s *Session) Skipped() uint64 {
	return s.skipped
}

// SentinelSeen reports whether the engine sent its explicit termination
// sentinel, as opposed to the input just ending.
func (s *Session) SentinelSeen() bool {
	return s.sentinelSeen
}
