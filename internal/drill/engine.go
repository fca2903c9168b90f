// Package drill runs word-by-word pronunciation drilling sessions.
//
// An Engine walks a snapshot of difficult words. Each word is presented,
// optionally played through a Speaker, attempted by voice through a Capturer
// or by typed text, and judged with the similarity scorer. A word advances
// on a match or once its attempts are exhausted. Finishing the list builds a
// summary and a practice plan and persists both.
package drill

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/verte-zerg/pronounce/internal/event"
	"github.com/verte-zerg/pronounce/internal/model"
	"github.com/verte-zerg/pronounce/internal/plan"
	"github.com/verte-zerg/pronounce/internal/recognition"
	"github.com/verte-zerg/pronounce/internal/similarity"
	"github.com/verte-zerg/pronounce/internal/speech"
)

// Default drilling parameters.
const (
	DefaultMaxAttempts    = 3
	DefaultListenTimeout  = 5 * time.Second
	DefaultListenGrace    = 300 * time.Millisecond
	DefaultPersistTimeout = 5 * time.Second
)

var (
	// ErrNoWords is returned by Start when there is nothing to drill.
	ErrNoWords = errors.New("no words to practice")
	// ErrNotActive is returned by word actions outside an active session.
	ErrNotActive = errors.New("drill is not active")
	// ErrRecognitionUnavailable is returned by Listen without a capturer.
	ErrRecognitionUnavailable = errors.New("speech recognition is not available")
	// ErrAttemptCapReached is returned by TryAgain once a word is exhausted.
	ErrAttemptCapReached = errors.New("attempt limit reached for this word")
)

// Capturer is the live speech capture used for spoken attempts.
// *recognition.Session satisfies it.
type Capturer interface {
	Start() error
	Cancel() error
	Supported() bool
	Subscribe(fn func(recognition.Notice)) func()
}

// Speaker plays example pronunciations. *speech.Player satisfies it.
type Speaker interface {
	Speak(text string, done func())
	Stop()
}

// Persister stores session progress, the practice plan and drill history.
type Persister interface {
	SaveSession(ctx context.Context, snap model.SessionSnapshot) error
	SavePlan(ctx context.Context, p model.StoredPlan) error
	InsertDrill(ctx context.Context, stats model.DrillStats, results []model.AttemptResult) (int64, error)
}

// Config configures an Engine. Zero values select the defaults.
type Config struct {
	MaxAttempts   int
	ListenTimeout time.Duration
	ListenGrace   time.Duration
	// Capturer provides spoken attempts. Nil disables Listen.
	Capturer Capturer
	// Speaker plays examples. Nil completes playback after a short delay.
	Speaker Speaker
	// Store persists progress. Nil keeps everything in memory.
	Store  Persister
	Clock  clockwork.Clock
	Logger *slog.Logger
	// NewID names sessions. Defaults to random UUIDs.
	NewID func() string
}

// Engine is the drilling state machine. All methods are safe for concurrent
// use; notices are published after the engine lock is released.
type Engine struct {
	capturer      Capturer
	speaker       Speaker
	store         Persister
	clk           clockwork.Clock
	log           *slog.Logger
	newID         func() string
	maxAttempts   int
	listenTimeout time.Duration
	listenGrace   time.Duration

	notices     event.Bus[Notice]
	unsubscribe func()

	mu          sync.Mutex
	state       State
	phase       Phase
	id          string
	startedAt   time.Time
	words       []model.WordRecord
	index       int
	failed      int
	results     []model.AttemptResult
	feedback    *Feedback
	summary     *model.SessionSummary
	capturing   bool
	listenGen   int
	playGen     int
	graceTimer  clockwork.Timer
	listenTimer clockwork.Timer
}

// New returns an Idle engine with no words.
func New(cfg Config) *Engine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.ListenTimeout <= 0 {
		cfg.ListenTimeout = DefaultListenTimeout
	}
	if cfg.ListenGrace <= 0 {
		cfg.ListenGrace = DefaultListenGrace
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Speaker == nil {
		cfg.Speaker = speech.NewPlayer(nil, speech.PlayerConfig{Clock: cfg.Clock, Logger: cfg.Logger})
	}
	e := &Engine{
		capturer:      cfg.Capturer,
		speaker:       cfg.Speaker,
		store:         cfg.Store,
		clk:           cfg.Clock,
		log:           cfg.Logger.With("component", "drill"),
		newID:         cfg.NewID,
		maxAttempts:   cfg.MaxAttempts,
		listenTimeout: cfg.ListenTimeout,
		listenGrace:   cfg.ListenGrace,
	}
	if e.capturer != nil {
		e.unsubscribe = e.capturer.Subscribe(e.onCapture)
	}
	return e
}

// Close detaches the engine from its capturer and cancels pending timers.
func (e *Engine) Close() {
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	var fx effects
	e.mu.Lock()
	e.stopListenLocked(&fx)
	e.playGen++
	e.mu.Unlock()
	e.apply(fx)
}

// Subscribe registers fn for every notice and returns an unsubscribe func.
func (e *Engine) Subscribe(fn func(Notice)) func() {
	return e.notices.Subscribe(fn)
}

// MaxAttempts returns the per-word attempt cap.
func (e *Engine) MaxAttempts() int {
	return e.maxAttempts
}

// ListenSupported reports whether spoken attempts are possible.
func (e *Engine) ListenSupported() bool {
	return e.capturer != nil && e.capturer.Supported()
}

// Initialize replaces the word list with a copy of words and resets the
// session to Idle.
func (e *Engine) Initialize(words []model.WordRecord) {
	var fx effects
	e.mu.Lock()
	e.stopListenLocked(&fx)
	e.playGen++
	e.words = append([]model.WordRecord(nil), words...)
	e.resetLocked()
	e.state = StateIdle
	fx.notify(Notice{Kind: NoticeState, State: StateIdle, Total: len(e.words)})
	e.mu.Unlock()
	e.apply(fx)
}

// Start begins drilling the first word. It is a no-op while Active.
func (e *Engine) Start() error {
	var fx effects
	e.mu.Lock()
	if e.state == StateActive {
		e.mu.Unlock()
		return nil
	}
	if len(e.words) == 0 {
		e.mu.Unlock()
		e.notices.Publish(Notice{Kind: NoticeError, Message: "No words to practice. Record some speech or pick a sound first."})
		return ErrNoWords
	}
	e.resetLocked()
	e.activateLocked(e.newID(), &fx)
	e.mu.Unlock()
	e.apply(fx)
	return nil
}

// Resume restores an interrupted session and continues at its current
// word. Completed or inconsistent snapshots restart from the first word.
func (e *Engine) Resume(snap model.SessionSnapshot) error {
	if len(snap.WordList) == 0 {
		e.notices.Publish(Notice{Kind: NoticeError, Message: "No saved session to resume."})
		return ErrNoWords
	}
	var fx effects
	e.mu.Lock()
	e.stopListenLocked(&fx)
	e.playGen++
	e.words = append([]model.WordRecord(nil), snap.WordList...)
	e.resetLocked()
	id := snap.ID
	resumable := !snap.Completed && snap.CurrentIndex < len(snap.WordList) && len(snap.Results) == snap.CurrentIndex
	if resumable {
		e.index = snap.CurrentIndex
		e.results = append([]model.AttemptResult(nil), snap.Results...)
	}
	if !resumable || id == "" {
		id = e.newID()
	}
	e.activateLocked(id, &fx)
	index := e.index
	e.mu.Unlock()
	e.log.Info("session resumed", "id", id, "index", index, "restarted", !resumable)
	e.apply(fx)
	return nil
}

// Attempt judges a typed or externally transcribed attempt at the current
// word. Any live capture is cancelled first.
func (e *Engine) Attempt(transcript string) (Feedback, error) {
	var fx effects
	e.mu.Lock()
	if e.state != StateActive {
		e.mu.Unlock()
		return Feedback{}, ErrNotActive
	}
	e.stopListenLocked(&fx)
	fb := e.judgeLocked(transcript, &fx)
	e.mu.Unlock()
	e.apply(fx)
	return fb, nil
}

// Listen captures one spoken attempt. A capture already in progress is
// stopped, and the new one begins after the listen grace period. The first
// final segment is judged. If the listen timeout passes in silence, a word
// with no attempts is recorded as unspoken and skipped; otherwise the
// silence counts as a failed attempt.
func (e *Engine) Listen() error {
	e.mu.Lock()
	if e.state != StateActive {
		e.mu.Unlock()
		return ErrNotActive
	}
	if !e.ListenSupported() {
		e.mu.Unlock()
		e.notices.Publish(Notice{Kind: NoticeError, Message: "Speech recognition is not available. Type your attempt instead."})
		return ErrRecognitionUnavailable
	}
	var fx effects
	e.stopListenLocked(&fx)
	e.playGen++
	e.phase = PhaseListening
	gen := e.listenGen
	e.graceTimer = e.clk.AfterFunc(e.listenGrace, func() { e.beginCapture(gen) })
	fx.notify(e.phaseNoticeLocked())
	e.mu.Unlock()

	e.speaker.Stop()
	e.apply(fx)
	return nil
}

// PlayExample speaks the current word. The phase returns to Presenting when
// playback completes.
func (e *Engine) PlayExample() error {
	var fx effects
	e.mu.Lock()
	if e.state != StateActive {
		e.mu.Unlock()
		return ErrNotActive
	}
	e.stopListenLocked(&fx)
	e.playGen++
	gen := e.playGen
	e.phase = PhasePlaying
	word := e.words[e.index].Word
	fx.notify(e.phaseNoticeLocked())
	e.mu.Unlock()

	e.apply(fx)
	e.speaker.Speak(word, func() { e.played(gen) })
	return nil
}

// TryAgain clears the feedback of the current word. Failed attempts are
// kept, so the attempt cap still applies.
func (e *Engine) TryAgain() error {
	var fx effects
	e.mu.Lock()
	if e.state != StateActive {
		e.mu.Unlock()
		return ErrNotActive
	}
	if e.failed >= e.maxAttempts {
		e.mu.Unlock()
		return ErrAttemptCapReached
	}
	e.stopListenLocked(&fx)
	e.feedback = nil
	e.phase = PhasePresenting
	fx.notify(e.phaseNoticeLocked())
	e.mu.Unlock()
	e.apply(fx)
	return nil
}

// Next records the current word as it stands and advances. A word with no
// attempts is recorded as unspoken at the attempt cap.
func (e *Engine) Next() error {
	var fx effects
	e.mu.Lock()
	if e.state != StateActive {
		e.mu.Unlock()
		return ErrNotActive
	}
	spoken := e.failed > 0
	attempts := e.maxAttempts
	if spoken {
		attempts = min(e.failed+1, e.maxAttempts)
	}
	e.stopListenLocked(&fx)
	e.recordLocked(attempts, spoken, &fx)
	e.mu.Unlock()
	e.apply(fx)
	return nil
}

// Finish completes the session early with the results recorded so far.
func (e *Engine) Finish() error {
	var fx effects
	e.mu.Lock()
	if e.state != StateActive {
		e.mu.Unlock()
		return ErrNotActive
	}
	e.completeLocked(&fx)
	e.mu.Unlock()
	e.apply(fx)
	return nil
}

// State returns the session state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Phase returns the phase of the current word.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Current returns the current word, its index and the list length. ok is
// false when no word is being drilled.
func (e *Engine) Current() (word model.WordRecord, index, total int, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.index >= len(e.words) {
		return model.WordRecord{}, e.index, len(e.words), false
	}
	return e.words[e.index], e.index, len(e.words), true
}

// Failed returns the failed attempts at the current word.
func (e *Engine) Failed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failed
}

// Feedback returns the feedback for the last judged attempt, if any.
func (e *Engine) Feedback() (Feedback, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.feedback == nil {
		return Feedback{}, false
	}
	return *e.feedback, true
}

// Results returns a copy of the recorded results.
func (e *Engine) Results() []model.AttemptResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.AttemptResult(nil), e.results...)
}

// Summary returns the summary of a completed session.
func (e *Engine) Summary() (model.SessionSummary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.summary == nil {
		return model.SessionSummary{}, false
	}
	return *e.summary, true
}

// Snapshot returns the persistable session state.
func (e *Engine) Snapshot() model.SessionSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) resetLocked() {
	e.index = 0
	e.failed = 0
	e.results = nil
	e.feedback = nil
	e.summary = nil
	e.id = ""
	e.phase = PhasePresenting
}

func (e *Engine) activateLocked(id string, fx *effects) {
	e.id = id
	e.startedAt = e.clk.Now()
	e.state = StateActive
	e.phase = PhasePresenting
	snap := e.snapshotLocked()
	fx.save = &snap
	fx.notify(
		Notice{Kind: NoticeState, State: StateActive, Total: len(e.words)},
		e.wordNoticeLocked(),
	)
	e.log.Info("drill started", "id", id, "words", len(e.words), "index", e.index)
}

func (e *Engine) beginCapture(gen int) {
	e.mu.Lock()
	if gen != e.listenGen || e.state != StateActive || e.phase != PhaseListening {
		e.mu.Unlock()
		return
	}
	e.graceTimer = nil
	e.capturing = true
	e.listenTimer = e.clk.AfterFunc(e.listenTimeout, func() { e.expire(gen) })
	e.mu.Unlock()

	if err := e.capturer.Start(); err != nil {
		e.log.Warn("failed to start listening", "err", err)
		var fx effects
		e.mu.Lock()
		if gen != e.listenGen {
			e.mu.Unlock()
			return
		}
		e.stopListenLocked(&fx)
		fx.cancelCapture = false
		e.phase = PhasePresenting
		fx.notify(e.phaseNoticeLocked(), Notice{Kind: NoticeError, Index: e.index, Message: "Could not start listening: " + err.Error()})
		e.mu.Unlock()
		e.apply(fx)
	}
}

func (e *Engine) onCapture(n recognition.Notice) {
	switch n.Kind {
	case recognition.NoticeSegment:
		var fx effects
		e.mu.Lock()
		if !e.capturing || e.state != StateActive || e.phase != PhaseListening {
			e.mu.Unlock()
			return
		}
		e.stopListenLocked(&fx)
		e.phase = PhaseJudging
		fx.notify(e.phaseNoticeLocked())
		e.judgeLocked(n.Segment, &fx)
		e.mu.Unlock()
		e.apply(fx)
	case recognition.NoticeError:
		if n.Err.Recoverable() {
			// The capturer restarts itself; the listen timeout still bounds the window.
			return
		}
		var fx effects
		e.mu.Lock()
		if !e.capturing || e.state != StateActive {
			e.mu.Unlock()
			return
		}
		e.stopListenLocked(&fx)
		e.phase = PhasePresenting
		fx.notify(e.phaseNoticeLocked(), Notice{Kind: NoticeError, Index: e.index, Message: n.Message})
		e.mu.Unlock()
		e.apply(fx)
	}
}

func (e *Engine) expire(gen int) {
	var fx effects
	e.mu.Lock()
	if gen != e.listenGen || !e.capturing || e.state != StateActive {
		e.mu.Unlock()
		return
	}
	e.stopListenLocked(&fx)
	if e.failed == 0 {
		e.log.Info("no speech detected; skipping word", "word", e.words[e.index].Word)
		fx.notify(Notice{Kind: NoticeTimeout, Index: e.index, Word: e.words[e.index], Message: "No speech detected. Moving to the next word."})
		e.recordLocked(e.maxAttempts, false, &fx)
	} else {
		e.failLocked(Feedback{TimedOut: true, Grade: similarity.GradeRetry}, &fx)
	}
	e.mu.Unlock()
	e.apply(fx)
}

func (e *Engine) played(gen int) {
	var fx effects
	e.mu.Lock()
	if gen != e.playGen || e.state != StateActive || e.phase != PhasePlaying {
		e.mu.Unlock()
		return
	}
	e.phase = PhasePresenting
	fx.notify(e.phaseNoticeLocked())
	e.mu.Unlock()
	e.apply(fx)
}

func (e *Engine) judgeLocked(transcript string, fx *effects) Feedback {
	target := e.words[e.index].Word
	score := similarity.Score(target, transcript)
	matched := similarity.IsMatch(target, transcript)
	fb := Feedback{
		Transcript: transcript,
		Score:      score,
		Matched:    matched,
		Grade:      similarity.Judge(score, matched),
	}
	e.log.Debug("attempt judged", "word", target, "transcript", transcript, "score", score, "matched", matched)
	if matched {
		fb.Attempt = e.failed + 1
		e.feedback = &fb
		fx.notify(Notice{Kind: NoticeFeedback, Index: e.index, Word: e.words[e.index], Feedback: &fb})
		e.recordLocked(e.failed+1, true, fx)
		return fb
	}
	fb.SoundsAlike = similarity.SoundsAlike(target, transcript)
	return e.failLocked(fb, fx)
}

func (e *Engine) failLocked(fb Feedback, fx *effects) Feedback {
	e.failed++
	fb.Attempt = e.failed
	fb.Remaining = e.maxAttempts - e.failed
	e.feedback = &fb
	fx.notify(Notice{Kind: NoticeFeedback, Index: e.index, Word: e.words[e.index], Feedback: &fb})
	if e.failed >= e.maxAttempts {
		e.recordLocked(e.maxAttempts, true, fx)
		return fb
	}
	e.phase = PhaseRetry
	fx.notify(e.phaseNoticeLocked())
	return fb
}

func (e *Engine) recordLocked(attempts int, spoken bool, fx *effects) {
	w := e.words[e.index]
	res := model.AttemptResult{Word: w.Word, Sound: w.Sound, AttemptsNeeded: attempts, Spoken: spoken}
	e.results = append(e.results, res)
	fx.notify(Notice{Kind: NoticeRecorded, Index: e.index, Word: w, Result: &res})

	e.index++
	e.failed = 0
	e.feedback = nil
	e.phase = PhasePresenting
	e.playGen++
	if e.index >= len(e.words) {
		e.completeLocked(fx)
		return
	}
	snap := e.snapshotLocked()
	fx.save = &snap
	fx.notify(e.wordNoticeLocked())
}

func (e *Engine) completeLocked(fx *effects) {
	e.stopListenLocked(fx)
	e.playGen++
	e.state = StateComplete
	e.phase = PhasePresenting
	e.feedback = nil

	now := e.clk.Now()
	summary := Summarize(e.results)
	summary.Plan = plan.Generate(e.results)
	e.summary = &summary

	snap := e.snapshotLocked()
	snap.Completed = true
	fx.save = &snap
	if summary.Plan != nil {
		fx.plan = &model.StoredPlan{PracticePlan: *summary.Plan, StartDate: now}
	}
	fx.drill = &model.DrillStats{
		SessionID:    e.id,
		StartedAt:    e.startedAt,
		EndedAt:      now,
		TotalWords:   summary.TotalWords,
		PerfectWords: summary.PerfectWords,
		SuccessRate:  summary.SuccessRate,
	}
	fx.results = append([]model.AttemptResult(nil), e.results...)
	fx.notify(
		Notice{Kind: NoticeState, State: StateComplete, Total: len(e.words)},
		Notice{Kind: NoticeCompleted, Summary: &summary},
	)
	e.log.Info("drill completed", "id", e.id, "words", summary.TotalWords, "perfect", summary.PerfectWords, "rate", summary.SuccessRate)
}

// stopListenLocked invalidates any pending or active capture.
func (e *Engine) stopListenLocked(fx *effects) {
	e.listenGen++
	if e.graceTimer != nil {
		e.graceTimer.Stop()
		e.graceTimer = nil
	}
	if e.listenTimer != nil {
		e.listenTimer.Stop()
		e.listenTimer = nil
	}
	if e.capturing {
		e.capturing = false
		fx.cancelCapture = true
	}
}

func (e *Engine) snapshotLocked() model.SessionSnapshot {
	return model.SessionSnapshot{
		ID:           e.id,
		Timestamp:    e.clk.Now(),
		WordList:     append([]model.WordRecord(nil), e.words...),
		CurrentIndex: e.index,
		Results:      append([]model.AttemptResult(nil), e.results...),
		Completed:    e.state == StateComplete,
	}
}

func (e *Engine) phaseNoticeLocked() Notice {
	return Notice{Kind: NoticePhase, Phase: e.phase, Index: e.index, Total: len(e.words)}
}

func (e *Engine) wordNoticeLocked() Notice {
	return Notice{Kind: NoticeWord, Index: e.index, Total: len(e.words), Word: e.words[e.index]}
}

// apply runs the side effects collected under the lock.
func (e *Engine) apply(fx effects) {
	if fx.cancelCapture && e.capturer != nil {
		if err := e.capturer.Cancel(); err != nil {
			e.log.Warn("failed to cancel capture", "err", err)
		}
	}
	e.persist(fx)
	for _, n := range fx.notices {
		e.notices.Publish(n)
	}
}

func (e *Engine) persist(fx effects) {
	if e.store == nil || (fx.save == nil && fx.plan == nil && fx.drill == nil) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), DefaultPersistTimeout)
	defer cancel()
	if fx.save != nil {
		if err := e.store.SaveSession(ctx, *fx.save); err != nil {
			e.log.Warn("failed to save session progress", "err", err)
		}
	}
	if fx.plan != nil {
		if err := e.store.SavePlan(ctx, *fx.plan); err != nil {
			e.log.Warn("failed to save practice plan", "err", err)
		}
	}
	if fx.drill != nil {
		if _, err := e.store.InsertDrill(ctx, *fx.drill, fx.results); err != nil {
			e.log.Warn("failed to record drill history", "err", err)
		}
	}
}

// Summarize aggregates results. A word is perfect when it was spoken
// correctly on the first attempt.
func Summarize(results []model.AttemptResult) model.SessionSummary {
	s := model.SessionSummary{
		TotalWords: len(results),
		Results:    append([]model.AttemptResult(nil), results...),
	}
	for _, r := range results {
		if r.Spoken && r.AttemptsNeeded == 1 {
			s.PerfectWords++
		}
	}
	if s.TotalWords > 0 {
		s.SuccessRate = float64(s.PerfectWords) / float64(s.TotalWords) * 100
	}
	return s
}

type effects struct {
	notices       []Notice
	cancelCapture bool
	save          *model.SessionSnapshot
	plan          *model.StoredPlan
	drill         *model.DrillStats
	results       []model.AttemptResult
}

func (fx *effects) notify(n ...Notice) {
	fx.notices = append(fx.notices, n...)
}
