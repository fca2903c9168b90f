package drill_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/pronounce/internal/drill"
	"github.com/verte-zerg/pronounce/internal/event"
	"github.com/verte-zerg/pronounce/internal/model"
	"github.com/verte-zerg/pronounce/internal/recognition"
)

type fakeCapturer struct {
	mu       sync.Mutex
	starts   int
	cancels  int
	startErr error
	bus      event.Bus[recognition.Notice]
}

func (f *fakeCapturer) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return f.startErr
}

func (f *fakeCapturer) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	return nil
}

func (f *fakeCapturer) Supported() bool { return true }

func (f *fakeCapturer) Subscribe(fn func(recognition.Notice)) func() {
	return f.bus.Subscribe(fn)
}

func (f *fakeCapturer) say(text string) {
	f.bus.Publish(recognition.Notice{Kind: recognition.NoticeSegment, Segment: text})
}

func (f *fakeCapturer) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.cancels
}

type fakeSpeaker struct {
	mu     sync.Mutex
	spoken []string
	dones  []func()
	stops  int
}

func (f *fakeSpeaker) Speak(text string, done func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, text)
	f.dones = append(f.dones, done)
}

func (f *fakeSpeaker) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeSpeaker) finish(i int) {
	f.mu.Lock()
	done := f.dones[i]
	f.mu.Unlock()
	done()
}

type memStore struct {
	mu       sync.Mutex
	sessions []model.SessionSnapshot
	plans    []model.StoredPlan
	drills   []model.DrillStats
	results  [][]model.AttemptResult
}

func (m *memStore) SaveSession(_ context.Context, snap model.SessionSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, snap)
	return nil
}

func (m *memStore) SavePlan(_ context.Context, p model.StoredPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans = append(m.plans, p)
	return nil
}

func (m *memStore) InsertDrill(_ context.Context, stats model.DrillStats, results []model.AttemptResult) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drills = append(m.drills, stats)
	m.results = append(m.results, results)
	return int64(len(m.drills)), nil
}

func (m *memStore) lastSession() model.SessionSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[len(m.sessions)-1]
}

type recorder struct {
	mu      sync.Mutex
	notices []drill.Notice
}

func (r *recorder) add(n drill.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) kind(k drill.NoticeKind) []drill.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []drill.Notice
	for _, n := range r.notices {
		if n.Kind == k {
			out = append(out, n)
		}
	}
	return out
}

type harness struct {
	engine   *drill.Engine
	clock    *clockwork.FakeClock
	capturer *fakeCapturer
	speaker  *fakeSpeaker
	store    *memStore
	notices  *recorder
}

func newHarness(t *testing.T, opts ...func(*drill.Config)) *harness {
	t.Helper()
	h := &harness{
		clock:    clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		capturer: &fakeCapturer{},
		speaker:  &fakeSpeaker{},
		store:    &memStore{},
		notices:  &recorder{},
	}
	cfg := drill.Config{
		Capturer: h.capturer,
		Speaker:  h.speaker,
		Store:    h.store,
		Clock:    h.clock,
		NewID:    func() string { return "session-1" },
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	h.engine = drill.New(cfg)
	t.Cleanup(h.engine.Close)
	t.Cleanup(h.engine.Subscribe(h.notices.add))
	return h
}

// eventually waits for cond. Fake clock callbacks run on their own
// goroutines, so their effects land shortly after Advance returns.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, time.Millisecond)
}

// waitStarts waits until the grace timer has opened n captures. The listen
// timeout is armed before the capturer starts.
func (h *harness) waitStarts(t *testing.T, n int) {
	t.Helper()
	eventually(t, func() bool {
		starts, _ := h.capturer.counts()
		return starts == n
	})
}

func words(list ...string) []model.WordRecord {
	sounds := map[string]string{"think": "/θ/", "vision": "/ʒ/", "red": "/r/", "ship": "/ʃ/"}
	out := make([]model.WordRecord, 0, len(list))
	for _, w := range list {
		out = append(out, model.WordRecord{Word: w, Sound: sounds[w], Kind: model.KindPronunciation})
	}
	return out
}

func TestStartWithoutWords(t *testing.T) {
	h := newHarness(t)
	h.engine.Initialize(nil)
	assert.ErrorIs(t, h.engine.Start(), drill.ErrNoWords)
	assert.Equal(t, drill.StateIdle, h.engine.State())
	assert.NotEmpty(t, h.notices.kind(drill.NoticeError))
	assert.Empty(t, h.store.sessions)
}

func TestInitializeCopiesWords(t *testing.T) {
	h := newHarness(t)
	list := words("think", "vision")
	h.engine.Initialize(list)
	list[0].Word = "changed"

	require.NoError(t, h.engine.Start())
	w, idx, total, ok := h.engine.Current()
	require.True(t, ok)
	assert.Equal(t, "think", w.Word)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 2, total)
}

func TestExhaustedWordCompletesSession(t *testing.T) {
	h := newHarness(t)
	h.engine.Initialize(words("think"))
	require.NoError(t, h.engine.Start())

	for i := 0; i < 2; i++ {
		fb, err := h.engine.Attempt("sink")
		require.NoError(t, err)
		assert.False(t, fb.Matched)
		assert.Equal(t, drill.PhaseRetry, h.engine.Phase())
	}
	fb, err := h.engine.Attempt("sink")
	require.NoError(t, err)
	assert.Equal(t, 3, fb.Attempt)

	assert.Equal(t, []model.AttemptResult{{Word: "think", Sound: "/θ/", AttemptsNeeded: 3, Spoken: true}}, h.engine.Results())
	assert.Equal(t, drill.StateComplete, h.engine.State())
	summary, ok := h.engine.Summary()
	require.True(t, ok)
	assert.Equal(t, 1, summary.TotalWords)
	assert.Zero(t, summary.PerfectWords)
	assert.Zero(t, summary.SuccessRate)
	require.NotNil(t, summary.Plan)
	assert.Equal(t, "/θ/", summary.Plan.Schedule[0].Sounds[0].Sound)

	require.Len(t, h.store.plans, 1)
	assert.Equal(t, h.clock.Now(), h.store.plans[0].StartDate)
	require.Len(t, h.store.drills, 1)
	assert.Equal(t, "session-1", h.store.drills[0].SessionID)
	assert.True(t, h.store.lastSession().Completed)

	done := h.notices.kind(drill.NoticeCompleted)
	require.Len(t, done, 1)
	assert.Equal(t, 1, done[0].Summary.TotalWords)

	_, err = h.engine.Attempt("think")
	assert.ErrorIs(t, err, drill.ErrNotActive)
}

func TestMatchAfterMissRecordsAttempts(t *testing.T) {
	h := newHarness(t)
	h.engine.Initialize(words("think", "vision"))
	require.NoError(t, h.engine.Start())

	_, err := h.engine.Attempt("sink")
	require.NoError(t, err)
	fb, err := h.engine.Attempt("Think")
	require.NoError(t, err)
	assert.True(t, fb.Matched)
	assert.Equal(t, 2, fb.Attempt)

	results := h.engine.Results()
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].AttemptsNeeded)
	assert.True(t, results[0].Spoken)

	w, idx, _, ok := h.engine.Current()
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "vision", w.Word)
	assert.Zero(t, h.engine.Failed())
}

func TestEveryWordGetsOneResult(t *testing.T) {
	h := newHarness(t)
	list := words("think", "vision", "red", "ship")
	h.engine.Initialize(list)
	require.NoError(t, h.engine.Start())

	_, _ = h.engine.Attempt("think")
	_, _ = h.engine.Attempt("xyz")
	_, _ = h.engine.Attempt("vision")
	require.NoError(t, h.engine.Next())
	for i := 0; i < 3; i++ {
		_, _ = h.engine.Attempt("xyz")
	}

	results := h.engine.Results()
	require.Len(t, results, len(list))
	for _, r := range results {
		assert.GreaterOrEqual(t, r.AttemptsNeeded, 1)
		assert.LessOrEqual(t, r.AttemptsNeeded, drill.DefaultMaxAttempts)
		if !r.Spoken {
			assert.Equal(t, drill.DefaultMaxAttempts, r.AttemptsNeeded)
		}
	}
	assert.Equal(t, drill.StateComplete, h.engine.State())
	summary, _ := h.engine.Summary()
	assert.Equal(t, 1, summary.PerfectWords)
	assert.InDelta(t, 25.0, summary.SuccessRate, 1e-9)
}

func TestTryAgainKeepsAttemptCounter(t *testing.T) {
	h := newHarness(t)
	h.engine.Initialize(words("think", "vision"))
	require.NoError(t, h.engine.Start())

	_, _ = h.engine.Attempt("sink")
	_, ok := h.engine.Feedback()
	require.True(t, ok)

	require.NoError(t, h.engine.TryAgain())
	_, ok = h.engine.Feedback()
	assert.False(t, ok)
	assert.Equal(t, 1, h.engine.Failed())
	assert.Equal(t, drill.PhasePresenting, h.engine.Phase())

	_, _ = h.engine.Attempt("sink")
	require.NoError(t, h.engine.TryAgain())
	_, _ = h.engine.Attempt("sink")

	results := h.engine.Results()
	require.Len(t, results, 1)
	assert.Equal(t, 3, results[0].AttemptsNeeded)
}

func TestNextRecordsCurrentWord(t *testing.T) {
	h := newHarness(t)
	h.engine.Initialize(words("think", "vision", "red"))
	require.NoError(t, h.engine.Start())

	require.NoError(t, h.engine.Next())
	_, _ = h.engine.Attempt("xyz")
	require.NoError(t, h.engine.Next())

	results := h.engine.Results()
	require.Len(t, results, 2)
	assert.Equal(t, model.AttemptResult{Word: "think", Sound: "/θ/", AttemptsNeeded: 3, Spoken: false}, results[0])
	assert.Equal(t, model.AttemptResult{Word: "vision", Sound: "/ʒ/", AttemptsNeeded: 2, Spoken: true}, results[1])
}

func TestFinishEarlyKeepsPartialResults(t *testing.T) {
	h := newHarness(t)
	h.engine.Initialize(words("think", "vision", "red"))
	require.NoError(t, h.engine.Start())
	_, _ = h.engine.Attempt("think")

	require.NoError(t, h.engine.Finish())
	assert.Equal(t, drill.StateComplete, h.engine.State())
	summary, ok := h.engine.Summary()
	require.True(t, ok)
	assert.Equal(t, 1, summary.TotalWords)
	assert.Equal(t, 1, summary.PerfectWords)
	assert.InDelta(t, 100.0, summary.SuccessRate, 1e-9)
	assert.Nil(t, summary.Plan)
	assert.Empty(t, h.store.plans)
	assert.Len(t, h.store.drills, 1)

	assert.ErrorIs(t, h.engine.Finish(), drill.ErrNotActive)
}

func TestProgressPersistedOnAdvance(t *testing.T) {
	h := newHarness(t)
	h.engine.Initialize(words("think", "vision"))
	require.NoError(t, h.engine.Start())
	require.Len(t, h.store.sessions, 1)
	assert.Equal(t, 0, h.store.lastSession().CurrentIndex)
	assert.Equal(t, "session-1", h.store.lastSession().ID)

	_, _ = h.engine.Attempt("sink")
	assert.Len(t, h.store.sessions, 1)

	_, _ = h.engine.Attempt("think")
	require.Len(t, h.store.sessions, 2)
	snap := h.store.lastSession()
	assert.Equal(t, 1, snap.CurrentIndex)
	assert.Len(t, snap.Results, 1)
	assert.False(t, snap.Completed)
	assert.Len(t, snap.WordList, 2)
}

func TestResumeContinuesAtSavedWord(t *testing.T) {
	h := newHarness(t)
	snap := model.SessionSnapshot{
		ID:           "saved",
		WordList:     words("think", "vision"),
		CurrentIndex: 1,
		Results:      []model.AttemptResult{{Word: "think", Sound: "/θ/", AttemptsNeeded: 1, Spoken: true}},
	}
	require.NoError(t, h.engine.Resume(snap))
	w, idx, _, ok := h.engine.Current()
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "vision", w.Word)

	_, _ = h.engine.Attempt("vision")
	assert.Len(t, h.engine.Results(), 2)
	require.Len(t, h.store.drills, 1)
	assert.Equal(t, "saved", h.store.drills[0].SessionID)
}

func TestResumeCompletedRestarts(t *testing.T) {
	h := newHarness(t)
	snap := model.SessionSnapshot{
		ID:           "saved",
		WordList:     words("think", "vision"),
		CurrentIndex: 2,
		Completed:    true,
	}
	require.NoError(t, h.engine.Resume(snap))
	_, idx, _, ok := h.engine.Current()
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Empty(t, h.engine.Results())

	assert.ErrorIs(t, h.engine.Resume(model.SessionSnapshot{}), drill.ErrNoWords)
}

func TestListenJudgesFirstSegment(t *testing.T) {
	h := newHarness(t)
	h.engine.Initialize(words("think", "vision"))
	require.NoError(t, h.engine.Start())

	require.NoError(t, h.engine.Listen())
	assert.Equal(t, drill.PhaseListening, h.engine.Phase())
	starts, _ := h.capturer.counts()
	assert.Zero(t, starts)

	h.clock.Advance(300 * time.Millisecond)
	h.waitStarts(t, 1)

	h.capturer.say("think")
	results := h.engine.Results()
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].AttemptsNeeded)
	_, cancels := h.capturer.counts()
	assert.Equal(t, 1, cancels)

	// A late segment from the finished capture is not applied to the next word.
	h.capturer.say("vision")
	assert.Len(t, h.engine.Results(), 1)
	assert.Zero(t, h.engine.Failed())

	// Nor does the old listen timeout fire.
	h.clock.Advance(10 * time.Second)
	assert.Len(t, h.engine.Results(), 1)
	assert.Empty(t, h.notices.kind(drill.NoticeTimeout))
}

func TestListenTimeoutSkipsSilentWord(t *testing.T) {
	h := newHarness(t)
	h.engine.Initialize(words("think", "vision"))
	require.NoError(t, h.engine.Start())

	require.NoError(t, h.engine.Listen())
	h.clock.Advance(300 * time.Millisecond)
	h.waitStarts(t, 1)
	h.clock.Advance(4 * time.Second)
	assert.Empty(t, h.engine.Results())

	h.clock.Advance(time.Second)
	eventually(t, func() bool {
		_, cancels := h.capturer.counts()
		return len(h.notices.kind(drill.NoticeTimeout)) == 1 && cancels == 1
	})
	results := h.engine.Results()
	require.Len(t, results, 1)
	assert.Equal(t, model.AttemptResult{Word: "think", Sound: "/θ/", AttemptsNeeded: 3, Spoken: false}, results[0])
	timeouts := h.notices.kind(drill.NoticeTimeout)
	require.Len(t, timeouts, 1)
	assert.Equal(t, "No speech detected. Moving to the next word.", timeouts[0].Message)
	_, cancels := h.capturer.counts()
	assert.Equal(t, 1, cancels)
}

func TestListenTimeoutAfterAttemptCountsAsMiss(t *testing.T) {
	h := newHarness(t)
	h.engine.Initialize(words("think", "vision"))
	require.NoError(t, h.engine.Start())
	_, _ = h.engine.Attempt("sink")

	require.NoError(t, h.engine.Listen())
	h.clock.Advance(300 * time.Millisecond)
	h.waitStarts(t, 1)
	h.clock.Advance(5 * time.Second)
	eventually(t, func() bool { return h.engine.Failed() == 2 })

	assert.Empty(t, h.engine.Results())
	assert.Equal(t, 2, h.engine.Failed())
	assert.Equal(t, drill.PhaseRetry, h.engine.Phase())
	fb, ok := h.engine.Feedback()
	require.True(t, ok)
	assert.True(t, fb.TimedOut)
	assert.Equal(t, 1, fb.Remaining)
}

func TestRelistenWaitsForGrace(t *testing.T) {
	h := newHarness(t)
	h.engine.Initialize(words("think", "vision"))
	require.NoError(t, h.engine.Start())

	require.NoError(t, h.engine.Listen())
	h.clock.Advance(300 * time.Millisecond)
	h.waitStarts(t, 1)
	require.NoError(t, h.engine.Listen())
	starts, cancels := h.capturer.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, cancels)

	h.clock.Advance(200 * time.Millisecond)
	starts, _ = h.capturer.counts()
	assert.Equal(t, 1, starts)
	h.clock.Advance(100 * time.Millisecond)
	h.waitStarts(t, 2)

	// Only the second window's timeout is live.
	h.clock.Advance(4900 * time.Millisecond)
	assert.Empty(t, h.engine.Results())
	h.clock.Advance(100 * time.Millisecond)
	eventually(t, func() bool { return len(h.engine.Results()) == 1 })
}

func TestListenWithoutCapturer(t *testing.T) {
	h := newHarness(t, func(c *drill.Config) { c.Capturer = nil })
	h.engine.Initialize(words("think"))
	require.NoError(t, h.engine.Start())

	assert.False(t, h.engine.ListenSupported())
	assert.ErrorIs(t, h.engine.Listen(), drill.ErrRecognitionUnavailable)
	assert.Equal(t, drill.StateActive, h.engine.State())
	assert.NotEmpty(t, h.notices.kind(drill.NoticeError))

	// Typed attempts still work.
	fb, err := h.engine.Attempt("think")
	require.NoError(t, err)
	assert.True(t, fb.Matched)
}

func TestListenStartFailure(t *testing.T) {
	h := newHarness(t)
	h.capturer.startErr = errors.New("microphone busy")
	h.engine.Initialize(words("think"))
	require.NoError(t, h.engine.Start())

	require.NoError(t, h.engine.Listen())
	h.clock.Advance(300 * time.Millisecond)
	eventually(t, func() bool { return len(h.notices.kind(drill.NoticeError)) == 1 })
	assert.Equal(t, drill.PhasePresenting, h.engine.Phase())
	h.clock.Advance(10 * time.Second)
	assert.Empty(t, h.engine.Results())
}

func TestCaptureErrors(t *testing.T) {
	h := newHarness(t)
	h.engine.Initialize(words("think"))
	require.NoError(t, h.engine.Start())
	require.NoError(t, h.engine.Listen())
	h.clock.Advance(300 * time.Millisecond)
	h.waitStarts(t, 1)

	h.capturer.bus.Publish(recognition.Notice{Kind: recognition.NoticeError, Err: recognition.ErrNoSpeech, Message: recognition.ErrNoSpeech.Message()})
	assert.Equal(t, drill.PhaseListening, h.engine.Phase())

	h.capturer.bus.Publish(recognition.Notice{Kind: recognition.NoticeError, Err: recognition.ErrNotAllowed, Message: recognition.ErrNotAllowed.Message()})
	assert.Equal(t, drill.PhasePresenting, h.engine.Phase())
	errs := h.notices.kind(drill.NoticeError)
	require.Len(t, errs, 1)
	assert.Equal(t, recognition.ErrNotAllowed.Message(), errs[0].Message)
	assert.Equal(t, drill.StateActive, h.engine.State())
}

func TestPlayExample(t *testing.T) {
	h := newHarness(t)
	h.engine.Initialize(words("think", "vision"))
	require.NoError(t, h.engine.Start())

	require.NoError(t, h.engine.PlayExample())
	assert.Equal(t, drill.PhasePlaying, h.engine.Phase())
	assert.Equal(t, []string{"think"}, h.speaker.spoken)

	h.speaker.finish(0)
	assert.Equal(t, drill.PhasePresenting, h.engine.Phase())
}

func TestStalePlaybackCompletionIgnored(t *testing.T) {
	h := newHarness(t)
	h.engine.Initialize(words("think", "vision"))
	require.NoError(t, h.engine.Start())

	require.NoError(t, h.engine.PlayExample())
	require.NoError(t, h.engine.Listen())
	assert.Equal(t, 1, h.speaker.stops)

	h.speaker.finish(0)
	assert.Equal(t, drill.PhaseListening, h.engine.Phase())
}

func TestPlayExampleWithoutSynthesis(t *testing.T) {
	h := newHarness(t, func(c *drill.Config) { c.Speaker = nil })
	h.engine.Initialize(words("think"))
	require.NoError(t, h.engine.Start())

	require.NoError(t, h.engine.PlayExample())
	h.clock.Advance(400 * time.Millisecond)
	assert.Equal(t, drill.PhasePlaying, h.engine.Phase())
	h.clock.Advance(100 * time.Millisecond)
	eventually(t, func() bool { return h.engine.Phase() == drill.PhasePresenting })
}

func TestSummarize(t *testing.T) {
	assert.Zero(t, drill.Summarize(nil).SuccessRate)

	s := drill.Summarize([]model.AttemptResult{
		{Word: "a", AttemptsNeeded: 1, Spoken: true},
		{Word: "b", AttemptsNeeded: 2, Spoken: true},
		{Word: "c", AttemptsNeeded: 3, Spoken: false},
		{Word: "d", AttemptsNeeded: 1, Spoken: true},
	})
	assert.Equal(t, 4, s.TotalWords)
	assert.Equal(t, 2, s.PerfectWords)
	assert.InDelta(t, 50.0, s.SuccessRate, 1e-9)
}

func TestFeedbackMessages(t *testing.T) {
	h := newHarness(t)
	h.engine.Initialize(words("think"))
	require.NoError(t, h.engine.Start())

	fb, err := h.engine.Attempt("sink")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, fb.Score, 1e-9)
	assert.Equal(t, "You're close! Try again focusing on the pronunciation.", fb.Message())
	assert.Equal(t, "No speech detected. Try again.", drill.Feedback{TimedOut: true}.Message())
}
