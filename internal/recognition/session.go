package recognition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/verte-zerg/pronounce/internal/analyzer"
	"github.com/verte-zerg/pronounce/internal/event"
	"github.com/verte-zerg/pronounce/internal/model"
)

// Default timing parameters.
const (
	DefaultRestartDelay = 300 * time.Millisecond
	DefaultErrorBackoff = 1 * time.Second
	DefaultStopGrace    = 500 * time.Millisecond
)

// ErrBusy is returned by Start while a stopped recording is still being analyzed.
var ErrBusy = errors.New("recognition is processing the previous recording")

// ErrNotListening is returned by Stop when there is no recording to stop.
var ErrNotListening = errors.New("recognition is not listening")

// Status is the lifecycle state of a Session.
type Status int

// Session statuses.
const (
	StatusReady Status = iota
	StatusListening
	StatusProcessing
	StatusError
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusListening:
		return "listening"
	case StatusProcessing:
		return "processing"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// NoticeKind identifies a Session notification.
type NoticeKind int

// Session notification kinds.
const (
	NoticeStatus NoticeKind = iota
	NoticeTranscript
	NoticeSegment
	NoticeCompleted
	NoticeError
)

// Result is the outcome of one recording.
type Result struct {
	Transcript   []model.TranscriptItem
	Difficult    []model.WordRecord
	FluencyScore int
}

// Notice is published to Session subscribers. Only the fields relevant to
// Kind are set.
type Notice struct {
	Kind       NoticeKind
	Status     Status
	Transcript []model.TranscriptItem
	Segment    string
	Result     *Result
	Err        ErrorKind
	Message    string
}

// Config configures a Session.
type Config struct {
	// RestartDelay is the wait before restarting after an unexpected end.
	RestartDelay time.Duration
	// ErrorBackoff is the wait before restarting after a recoverable error.
	ErrorBackoff time.Duration
	// StopGrace is how long Stop waits for late results before analysis.
	StopGrace time.Duration
	// Clock schedules timers. Defaults to the wall clock.
	Clock clockwork.Clock
	// Random drives the analyzer's classification draws. May be nil.
	Random analyzer.Random
	// Logger receives diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Session wraps a Recognizer in a Ready/Listening/Processing/Error state
// machine. All methods are safe for concurrent use; notices are delivered
// after internal locks are released.
type Session struct {
	rec          Recognizer
	an           *analyzer.Analyzer
	clk          clockwork.Clock
	log          *slog.Logger
	restartDelay time.Duration
	errorBackoff time.Duration
	stopGrace    time.Duration

	notices event.Bus[Notice]

	mu             sync.Mutex
	status         Status
	explicitStop   bool
	restartPending bool
	restartTimer   clockwork.Timer
	stopTimer      clockwork.Timer
	gen            int
	last           *Result
	// started is set once the recognizer confirms the current capture.
	// Events before that belong to a capture that was already ended.
	started bool
}

// NewSession returns a Ready session. rec may be nil when the host has no
// recognizer; Start then reports ErrUnsupported.
func NewSession(rec Recognizer, cfg Config) *Session {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = DefaultRestartDelay
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = DefaultErrorBackoff
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = DefaultStopGrace
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Session{
		rec:          rec,
		an:           analyzer.New(cfg.Random),
		clk:          cfg.Clock,
		log:          cfg.Logger.With("component", "recognition"),
		restartDelay: cfg.RestartDelay,
		errorBackoff: cfg.ErrorBackoff,
		stopGrace:    cfg.StopGrace,
	}
}

// Subscribe registers fn for every notice and returns an unsubscribe func.
func (s *Session) Subscribe(fn func(Notice)) func() {
	return s.notices.Subscribe(fn)
}

// Supported reports whether a recognizer is attached.
func (s *Session) Supported() bool {
	return s.rec != nil
}

// Status returns the current status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Transcript returns the merged final and interim transcript.
func (s *Session) Transcript() []model.TranscriptItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.an.Transcript()
}

// LastResult returns the analysis of the most recent completed recording.
// It is nil while a new recording is under way.
func (s *Session) LastResult() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Start begins a new recording, clearing the previous transcript and
// difficult list.
func (s *Session) Start() error {
	if s.rec == nil {
		s.mu.Lock()
		s.status = StatusError
		s.mu.Unlock()
		s.emit(
			Notice{Kind: NoticeStatus, Status: StatusError},
			Notice{Kind: NoticeError, Message: "Speech recognition is not supported on this host. Use keyboard mode instead."},
		)
		return ErrUnsupported
	}

	s.mu.Lock()
	switch s.status {
	case StatusListening:
		s.mu.Unlock()
		return nil
	case StatusProcessing:
		s.mu.Unlock()
		return ErrBusy
	}
	s.gen++
	gen := s.gen
	s.cancelTimersLocked()
	s.an.Reset()
	s.explicitStop = false
	s.restartPending = false
	s.started = false
	s.last = nil
	s.status = StatusListening
	s.mu.Unlock()

	s.emit(
		Notice{Kind: NoticeStatus, Status: StatusListening},
		Notice{Kind: NoticeTranscript},
	)
	if err := s.rec.Start(); err != nil {
		s.fail(gen, err)
		return fmt.Errorf("failed to start recognition: %w", err)
	}
	s.log.Debug("recording started", "gen", gen)
	return nil
}

// Stop ends the recording. After the stop grace period the transcript is
// analyzed and a single NoticeCompleted is published.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.status != StatusListening && s.status != StatusError {
		s.mu.Unlock()
		return ErrNotListening
	}
	s.explicitStop = true
	s.restartPending = false
	s.cancelTimersLocked()
	s.status = StatusProcessing
	gen := s.gen
	s.stopTimer = s.clk.AfterFunc(s.stopGrace, func() { s.finish(gen) })
	s.mu.Unlock()

	s.emit(Notice{Kind: NoticeStatus, Status: StatusProcessing})
	if s.rec != nil {
		if err := s.rec.Stop(); err != nil {
			s.log.Warn("failed to stop recognizer", "err", err)
		}
	}
	return nil
}

// Cancel ends the recording without analysis and returns to Ready at once.
// Results that arrive afterwards are ignored.
func (s *Session) Cancel() error {
	s.mu.Lock()
	if s.status == StatusReady {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	s.explicitStop = true
	s.restartPending = false
	s.cancelTimersLocked()
	s.status = StatusReady
	s.mu.Unlock()

	s.emit(Notice{Kind: NoticeStatus, Status: StatusReady})
	if s.rec != nil {
		if err := s.rec.Stop(); err != nil {
			s.log.Warn("failed to stop recognizer", "err", err)
		}
	}
	return nil
}

// Run pumps recognizer events into HandleEvent until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	if s.rec == nil {
		return ErrUnsupported
	}
	events := s.rec.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.HandleEvent(ev)
		}
	}
}

// HandleEvent applies one recognizer event. Events that do not fit the
// current status are ignored.
func (s *Session) HandleEvent(ev Event) {
	s.mu.Lock()
	notices := s.handleLocked(ev)
	s.mu.Unlock()
	s.emit(notices...)
}

func (s *Session) handleLocked(ev Event) []Notice {
	s.log.Debug("recognizer event", "type", ev.Type.String(), "status", s.status.String())
	switch ev.Type {
	case EventStarted:
		if s.status != StatusListening || s.started {
			return nil
		}
		s.started = true
		s.log.Debug("capture confirmed", "gen", s.gen)
		return nil
	case EventResult:
		if !s.started || (s.status != StatusListening && s.status != StatusProcessing) {
			return nil
		}
		return s.applyResultLocked(ev.Segments)
	case EventEnded:
		if !s.started {
			s.log.Debug("ignoring end of a replaced capture", "gen", s.gen)
			return nil
		}
		s.started = false
		if s.status != StatusListening || s.explicitStop || s.restartPending {
			return nil
		}
		s.scheduleRestartLocked(s.restartDelay)
		return nil
	case EventError:
		if !s.started {
			return nil
		}
		return s.applyErrorLocked(ev.Err)
	default:
		return nil
	}
}

func (s *Session) applyResultLocked(segments []Segment) []Notice {
	var notices []Notice
	var interim []string
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if seg.IsFinal {
			s.an.ProcessSegment(text)
			notices = append(notices, Notice{Kind: NoticeSegment, Segment: text})
			continue
		}
		interim = append(interim, text)
	}
	if len(interim) > 0 {
		s.an.SetInterim(strings.Join(interim, " "))
	}
	if len(notices) == 0 && len(interim) == 0 {
		return nil
	}
	return append(notices, Notice{Kind: NoticeTranscript, Transcript: s.an.Transcript()})
}

func (s *Session) applyErrorLocked(kind ErrorKind) []Notice {
	if s.status == StatusProcessing {
		// Recognizers commonly report aborted when asked to stop.
		s.log.Debug("ignoring recognizer error while stopping", "kind", string(kind))
		return nil
	}
	if s.status != StatusListening {
		return nil
	}
	s.status = StatusError
	s.log.Warn("recognizer error", "kind", string(kind), "recoverable", kind.Recoverable())
	if kind.Recoverable() && !s.explicitStop && !s.restartPending {
		s.scheduleRestartLocked(s.errorBackoff)
	}
	return []Notice{
		{Kind: NoticeStatus, Status: StatusError},
		{Kind: NoticeError, Err: kind, Message: kind.Message()},
	}
}

func (s *Session) scheduleRestartLocked(delay time.Duration) {
	s.restartPending = true
	gen := s.gen
	s.restartTimer = s.clk.AfterFunc(delay, func() { s.restart(gen) })
}

func (s *Session) restart(gen int) {
	s.mu.Lock()
	if gen != s.gen || s.explicitStop || !s.restartPending {
		s.mu.Unlock()
		return
	}
	s.restartPending = false
	s.restartTimer = nil
	s.started = false
	wasError := s.status == StatusError
	s.status = StatusListening
	s.mu.Unlock()

	if wasError {
		s.emit(Notice{Kind: NoticeStatus, Status: StatusListening})
	}
	s.log.Debug("restarting recognizer", "gen", gen)
	if err := s.rec.Start(); err != nil {
		s.fail(gen, err)
	}
}

func (s *Session) fail(gen int, err error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.status = StatusError
	s.mu.Unlock()
	s.log.Warn("failed to start recognizer", "err", err)
	s.emit(
		Notice{Kind: NoticeStatus, Status: StatusError},
		Notice{Kind: NoticeError, Message: err.Error()},
	)
}

func (s *Session) finish(gen int) {
	s.mu.Lock()
	if gen != s.gen || s.status != StatusProcessing {
		s.mu.Unlock()
		return
	}
	s.stopTimer = nil
	difficult := s.an.Analyze()
	result := &Result{
		Transcript:   s.an.Transcript(),
		Difficult:    difficult,
		FluencyScore: s.an.FluencyScore(),
	}
	s.last = result
	s.status = StatusReady
	s.mu.Unlock()

	s.log.Info("recording analyzed", "words", len(result.Transcript), "difficult", len(result.Difficult), "fluency", result.FluencyScore)
	s.emit(
		Notice{Kind: NoticeStatus, Status: StatusReady},
		Notice{Kind: NoticeCompleted, Result: result},
	)
}

func (s *Session) cancelTimersLocked() {
	if s.restartTimer != nil {
		s.restartTimer.Stop()
		s.restartTimer = nil
	}
	if s.stopTimer != nil {
		s.stopTimer.Stop()
		s.stopTimer = nil
	}
}

func (s *Session) emit(notices ...Notice) {
	for _, n := range notices {
		s.notices.Publish(n)
	}
}
