// Package recognition turns a speech recognizer's event stream into a
// status lifecycle with auto-restart, transcript analysis and a single
// completion result per recording.
//
// A Recognizer is any speech-to-text capability that can be started and
// stopped and that emits ordered events:
//
//   - EventStarted once capture is running,
//   - EventResult with interim and final segments,
//   - EventEnded when capture stops for any reason,
//   - EventError with an ErrorKind.
//
// Events of one capture must precede the EventStarted of the next. Session
// consumes those events, owns the restart policy and drops anything that
// arrives before the current capture is confirmed.
package recognition

import (
	"errors"
	"strings"
)

// ErrUnsupported is returned when no recognizer is available on this host.
var ErrUnsupported = errors.New("speech recognition is not supported")

// Recognizer is the consumed speech-to-text capability.
type Recognizer interface {
	// Start begins continuous capture with interim results.
	Start() error
	// Stop requests capture to end. Final results may still arrive.
	Stop() error
	// Events returns the ordered event stream. The channel outlives restarts.
	Events() <-chan Event
}

// EventType identifies a recognizer event.
type EventType int

// Recognizer event types.
const (
	EventStarted EventType = iota
	EventResult
	EventEnded
	EventError
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventResult:
		return "result"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Segment is one piece of recognized text.
type Segment struct {
	Text    string
	IsFinal bool
}

// Event is a single recognizer event.
type Event struct {
	Type     EventType
	Segments []Segment
	Err      ErrorKind
}

// ErrorKind classifies recognizer failures.
type ErrorKind string

// Recognizer error kinds.
const (
	ErrNoSpeech             ErrorKind = "no-speech"
	ErrAborted              ErrorKind = "aborted"
	ErrAudioCapture         ErrorKind = "audio-capture"
	ErrNetwork              ErrorKind = "network"
	ErrNotAllowed           ErrorKind = "not-allowed"
	ErrServiceNotAllowed    ErrorKind = "service-not-allowed"
	ErrBadGrammar           ErrorKind = "bad-grammar"
	ErrLanguageNotSupported ErrorKind = "language-not-supported"
)

// ParseErrorKind maps a reported error name to an ErrorKind.
func ParseErrorKind(s string) ErrorKind {
	return ErrorKind(strings.ToLower(strings.TrimSpace(s)))
}

// Recoverable reports whether a single automatic restart should be tried.
func (k ErrorKind) Recoverable() bool {
	switch k {
	case ErrNoSpeech, ErrAborted, ErrNetwork:
		return true
	default:
		return false
	}
}

// Message returns the user-facing description of the error.
func (k ErrorKind) Message() string {
	switch k {
	case ErrNoSpeech:
		return "No speech was detected. Please try again."
	case ErrAborted:
		return "Speech recognition was aborted."
	case ErrAudioCapture:
		return "No microphone was found or microphone is disabled."
	case ErrNetwork:
		return "Network error occurred. Please check your internet connection."
	case ErrNotAllowed:
		return "Microphone access was not allowed. Please enable microphone access."
	case ErrServiceNotAllowed:
		return "Speech recognition service is not allowed."
	case ErrBadGrammar:
		return "Error in speech recognition grammar."
	case ErrLanguageNotSupported:
		return "The language specified is not supported."
	default:
		return "Speech recognition error: " + string(k)
	}
}
