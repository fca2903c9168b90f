package recognition

import (
	"errors"
	"strings"
	"sync"
)

// ErrNotCapturing is returned when text is submitted to a stopped recognizer.
var ErrNotCapturing = errors.New("recognizer is not capturing")

// TextRecognizer is a keyboard-driven Recognizer: each submitted line is
// delivered as one final segment while capture is running.
type TextRecognizer struct {
	mu     sync.Mutex
	active bool
	events chan Event
}

// NewTextRecognizer returns a stopped TextRecognizer.
func NewTextRecognizer() *TextRecognizer {
	return &TextRecognizer{events: make(chan Event, 64)}
}

// Start begins capture.
func (r *TextRecognizer) Start() error {
	r.mu.Lock()
	r.active = true
	r.mu.Unlock()
	r.events <- Event{Type: EventStarted}
	return nil
}

// Stop ends capture.
func (r *TextRecognizer) Stop() error {
	r.mu.Lock()
	wasActive := r.active
	r.active = false
	r.mu.Unlock()
	if wasActive {
		r.events <- Event{Type: EventEnded}
	}
	return nil
}

// Submit delivers text as a final segment. Blank text is ignored.
func (r *TextRecognizer) Submit(text string) error {
	text = strings.TrimSpace(text)
	r.mu.Lock()
	active := r.active
	r.mu.Unlock()
	if !active {
		return ErrNotCapturing
	}
	if text == "" {
		return nil
	}
	r.events <- Event{Type: EventResult, Segments: []Segment{{Text: text, IsFinal: true}}}
	return nil
}

// Preview delivers text as an interim segment.
func (r *TextRecognizer) Preview(text string) {
	r.mu.Lock()
	active := r.active
	r.mu.Unlock()
	if !active {
		return
	}
	r.events <- Event{Type: EventResult, Segments: []Segment{{Text: text, IsFinal: false}}}
}

// Events returns the event stream.
func (r *TextRecognizer) Events() <-chan Event {
	return r.events
}
