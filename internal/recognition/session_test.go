package recognition_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/pronounce/internal/model"
	"github.com/verte-zerg/pronounce/internal/recognition"
)

// fakeRecognizer confirms every Start with EventStarted, like the real
// recognizers do.
type fakeRecognizer struct {
	mu       sync.Mutex
	starts   int
	stops    int
	startErr error
	events   chan recognition.Event
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{events: make(chan recognition.Event, 16)}
}

func (f *fakeRecognizer) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.events <- recognition.Event{Type: recognition.EventStarted}
	return nil
}

func (f *fakeRecognizer) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeRecognizer) Events() <-chan recognition.Event {
	return f.events
}

func (f *fakeRecognizer) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

func (f *fakeRecognizer) startCount() int {
	starts, _ := f.counts()
	return starts
}

// drain applies every queued recognizer event.
func drain(s *recognition.Session, rec *fakeRecognizer) {
	for {
		select {
		case ev := <-rec.events:
			s.HandleEvent(ev)
		default:
			return
		}
	}
}

// listen starts a recording and applies the recognizer's confirmation.
func listen(t *testing.T, s *recognition.Session, rec *fakeRecognizer) {
	t.Helper()
	require.NoError(t, s.Start())
	drain(s, rec)
}

// waitStarts waits for timer callbacks, which the fake clock runs on their
// own goroutines, to reach the recognizer.
func waitStarts(t *testing.T, rec *fakeRecognizer, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return rec.startCount() == n }, time.Second, time.Millisecond)
}

// steady never flags a word as incorrect.
type steady struct{}

func (steady) Float64() float64 { return 0.99 }
func (steady) Intn(int) int     { return 0 }

type recorder struct {
	mu      sync.Mutex
	notices []recognition.Notice
}

func (r *recorder) add(n recognition.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) kind(k recognition.NoticeKind) []recognition.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recognition.Notice
	for _, n := range r.notices {
		if n.Kind == k {
			out = append(out, n)
		}
	}
	return out
}

func newSession(t *testing.T, rec recognition.Recognizer) (*recognition.Session, *clockwork.FakeClock, *recorder) {
	t.Helper()
	clk := clockwork.NewFakeClockAt(time.Unix(0, 0))
	s := recognition.NewSession(rec, recognition.Config{Clock: clk, Random: steady{}})
	r := &recorder{}
	t.Cleanup(s.Subscribe(r.add))
	return s, clk, r
}

func final(text string) recognition.Event {
	return recognition.Event{Type: recognition.EventResult, Segments: []recognition.Segment{{Text: text, IsFinal: true}}}
}

var ended = recognition.Event{Type: recognition.EventEnded}

func TestStartListens(t *testing.T) {
	rec := newFakeRecognizer()
	s, _, r := newSession(t, rec)

	listen(t, s, rec)
	assert.Equal(t, recognition.StatusListening, s.Status())
	assert.Equal(t, 1, rec.startCount())
	statuses := r.kind(recognition.NoticeStatus)
	require.NotEmpty(t, statuses)
	assert.Equal(t, recognition.StatusListening, statuses[0].Status)

	// Starting again while listening is a no-op.
	require.NoError(t, s.Start())
	assert.Equal(t, 1, rec.startCount())
}

func TestResultsFeedTranscript(t *testing.T) {
	rec := newFakeRecognizer()
	s, _, r := newSession(t, rec)
	listen(t, s, rec)

	s.HandleEvent(recognition.Event{Type: recognition.EventResult, Segments: []recognition.Segment{
		{Text: "hello there", IsFinal: true},
		{Text: "wor", IsFinal: false},
	}})
	items := s.Transcript()
	require.Len(t, items, 3)
	assert.Equal(t, model.StatusInterim, items[2].Status)

	segments := r.kind(recognition.NoticeSegment)
	require.Len(t, segments, 1)
	assert.Equal(t, "hello there", segments[0].Segment)
	updates := r.kind(recognition.NoticeTranscript)
	assert.Len(t, updates[len(updates)-1].Transcript, 3)
}

func TestResultsBeforeConfirmationDropped(t *testing.T) {
	rec := newFakeRecognizer()
	s, _, r := newSession(t, rec)
	require.NoError(t, s.Start())

	s.HandleEvent(final("stale"))
	assert.Empty(t, s.Transcript())
	assert.Empty(t, r.kind(recognition.NoticeSegment))

	drain(s, rec)
	s.HandleEvent(final("fresh"))
	require.Len(t, s.Transcript(), 1)
	assert.Equal(t, "fresh", s.Transcript()[0].Word)
}

func TestUnexpectedEndRestartsOnce(t *testing.T) {
	rec := newFakeRecognizer()
	s, clk, _ := newSession(t, rec)
	listen(t, s, rec)

	s.HandleEvent(ended)
	s.HandleEvent(ended)
	clk.Advance(200 * time.Millisecond)
	assert.Equal(t, 1, rec.startCount())

	clk.Advance(100 * time.Millisecond)
	waitStarts(t, rec, 2)
	assert.Equal(t, recognition.StatusListening, s.Status())

	clk.Advance(time.Second)
	assert.Equal(t, 2, rec.startCount())
}

func TestStaleEndAfterRestartIgnored(t *testing.T) {
	rec := newFakeRecognizer()
	s, clk, _ := newSession(t, rec)
	listen(t, s, rec)

	require.NoError(t, s.Cancel())
	require.NoError(t, s.Start())
	// The cancelled capture reports its end after the new one started.
	s.HandleEvent(ended)
	drain(s, rec)
	clk.Advance(time.Second)
	assert.Equal(t, 2, rec.startCount())
	assert.Equal(t, recognition.StatusListening, s.Status())

	// The live capture's own end still restarts it.
	s.HandleEvent(ended)
	clk.Advance(300 * time.Millisecond)
	waitStarts(t, rec, 3)
}

func TestStaleErrorAfterRestartIgnored(t *testing.T) {
	rec := newFakeRecognizer()
	s, _, r := newSession(t, rec)
	listen(t, s, rec)

	require.NoError(t, s.Cancel())
	require.NoError(t, s.Start())
	s.HandleEvent(recognition.Event{Type: recognition.EventError, Err: recognition.ErrNetwork})
	assert.Equal(t, recognition.StatusListening, s.Status())
	assert.Empty(t, r.kind(recognition.NoticeError))
}

func TestStartedIgnoredWhenReady(t *testing.T) {
	rec := newFakeRecognizer()
	s, _, _ := newSession(t, rec)
	s.HandleEvent(recognition.Event{Type: recognition.EventStarted})
	require.NoError(t, s.Start())

	// Without its own confirmation the new capture drops results.
	s.HandleEvent(final("hello"))
	assert.Empty(t, s.Transcript())
}

func TestTranscriptSurvivesAutoRestart(t *testing.T) {
	rec := newFakeRecognizer()
	s, clk, _ := newSession(t, rec)
	listen(t, s, rec)
	s.HandleEvent(final("hello"))
	s.HandleEvent(ended)
	clk.Advance(time.Second)
	waitStarts(t, rec, 2)
	drain(s, rec)
	s.HandleEvent(final("world"))
	assert.Len(t, s.Transcript(), 2)
}

func TestRecoverableErrorRetriesAfterBackoff(t *testing.T) {
	rec := newFakeRecognizer()
	s, clk, r := newSession(t, rec)
	listen(t, s, rec)

	s.HandleEvent(recognition.Event{Type: recognition.EventError, Err: recognition.ErrNoSpeech})
	assert.Equal(t, recognition.StatusError, s.Status())
	errs := r.kind(recognition.NoticeError)
	require.Len(t, errs, 1)
	assert.Equal(t, "No speech was detected. Please try again.", errs[0].Message)

	// The end event that follows an error does not add a second restart.
	s.HandleEvent(ended)
	clk.Advance(900 * time.Millisecond)
	assert.Equal(t, 1, rec.startCount())

	clk.Advance(100 * time.Millisecond)
	waitStarts(t, rec, 2)
	assert.Equal(t, recognition.StatusListening, s.Status())
}

func TestTerminalErrorWaitsForStart(t *testing.T) {
	rec := newFakeRecognizer()
	s, clk, _ := newSession(t, rec)
	listen(t, s, rec)

	s.HandleEvent(recognition.Event{Type: recognition.EventError, Err: recognition.ErrNotAllowed})
	clk.Advance(10 * time.Second)
	assert.Equal(t, 1, rec.startCount())
	assert.Equal(t, recognition.StatusError, s.Status())

	require.NoError(t, s.Start())
	assert.Equal(t, recognition.StatusListening, s.Status())
}

func TestStopCompletesAfterGrace(t *testing.T) {
	rec := newFakeRecognizer()
	s, clk, r := newSession(t, rec)
	listen(t, s, rec)
	s.HandleEvent(final("I I want water"))

	require.NoError(t, s.Stop())
	assert.Equal(t, recognition.StatusProcessing, s.Status())
	_, stops := rec.counts()
	assert.Equal(t, 1, stops)

	// Late results during the grace period still count.
	s.HandleEvent(final("please"))
	s.HandleEvent(recognition.Event{Type: recognition.EventError, Err: recognition.ErrAborted})
	s.HandleEvent(ended)
	assert.Empty(t, r.kind(recognition.NoticeCompleted))

	clk.Advance(500 * time.Millisecond)
	require.Eventually(t, func() bool {
		return len(r.kind(recognition.NoticeCompleted)) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, recognition.StatusReady, s.Status())
	res := r.kind(recognition.NoticeCompleted)[0].Result
	require.NotNil(t, res)
	assert.Len(t, res.Transcript, 5)
	require.Len(t, res.Difficult, 1)
	assert.Equal(t, "i", res.Difficult[0].Word)
	assert.Equal(t, 60, res.FluencyScore)

	// No restart after an explicit stop.
	clk.Advance(5 * time.Second)
	assert.Equal(t, 1, rec.startCount())
	assert.Len(t, r.kind(recognition.NoticeCompleted), 1)
}

func TestStopCancelsPendingRestart(t *testing.T) {
	rec := newFakeRecognizer()
	s, clk, _ := newSession(t, rec)
	listen(t, s, rec)
	s.HandleEvent(ended)
	require.NoError(t, s.Stop())
	clk.Advance(time.Second)
	require.Eventually(t, func() bool {
		return s.Status() == recognition.StatusReady
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, rec.startCount())
}

func TestLateEventsIgnoredWhenReady(t *testing.T) {
	rec := newFakeRecognizer()
	s, _, r := newSession(t, rec)
	s.HandleEvent(final("hello"))
	s.HandleEvent(recognition.Event{Type: recognition.EventError, Err: recognition.ErrNetwork})
	assert.Empty(t, s.Transcript())
	assert.Equal(t, recognition.StatusReady, s.Status())
	assert.Empty(t, r.kind(recognition.NoticeError))
}

func TestCancelSkipsAnalysis(t *testing.T) {
	rec := newFakeRecognizer()
	s, clk, r := newSession(t, rec)
	listen(t, s, rec)
	s.HandleEvent(final("hello"))

	require.NoError(t, s.Cancel())
	assert.Equal(t, recognition.StatusReady, s.Status())
	_, stops := rec.counts()
	assert.Equal(t, 1, stops)

	s.HandleEvent(final("late"))
	clk.Advance(time.Second)
	assert.Empty(t, r.kind(recognition.NoticeCompleted))
	assert.Len(t, s.Transcript(), 1)

	// A new recording can start immediately.
	require.NoError(t, s.Start())
	assert.Equal(t, recognition.StatusListening, s.Status())
}

func TestStopWhenReady(t *testing.T) {
	s, _, _ := newSession(t, newFakeRecognizer())
	assert.ErrorIs(t, s.Stop(), recognition.ErrNotListening)
}

func TestStartWhileProcessing(t *testing.T) {
	rec := newFakeRecognizer()
	s, _, _ := newSession(t, rec)
	listen(t, s, rec)
	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Start(), recognition.ErrBusy)
}

func TestStartClearsPreviousRecording(t *testing.T) {
	rec := newFakeRecognizer()
	s, clk, _ := newSession(t, rec)
	listen(t, s, rec)
	s.HandleEvent(final("hello"))
	require.NoError(t, s.Stop())
	clk.Advance(time.Second)
	require.Eventually(t, func() bool {
		return s.Status() == recognition.StatusReady
	}, time.Second, time.Millisecond)
	require.NoError(t, s.Start())
	assert.Empty(t, s.Transcript())
}

func TestMissingRecognizer(t *testing.T) {
	s, _, r := newSession(t, nil)
	assert.False(t, s.Supported())
	assert.ErrorIs(t, s.Start(), recognition.ErrUnsupported)
	assert.Equal(t, recognition.StatusError, s.Status())
	assert.NotEmpty(t, r.kind(recognition.NoticeError))
	assert.ErrorIs(t, s.Run(context.Background()), recognition.ErrUnsupported)
}

func TestStartFailure(t *testing.T) {
	rec := newFakeRecognizer()
	rec.startErr = errors.New("device busy")
	s, _, r := newSession(t, rec)
	assert.Error(t, s.Start())
	assert.Equal(t, recognition.StatusError, s.Status())
	assert.NotEmpty(t, r.kind(recognition.NoticeError))
}

func TestRunPumpsEvents(t *testing.T) {
	rec := newFakeRecognizer()
	s, _, r := newSession(t, rec)
	require.NoError(t, s.Start())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	rec.events <- final("hello world")
	require.Eventually(t, func() bool {
		return len(r.kind(recognition.NoticeSegment)) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestErrorKinds(t *testing.T) {
	assert.True(t, recognition.ErrNetwork.Recoverable())
	assert.True(t, recognition.ErrAborted.Recoverable())
	assert.False(t, recognition.ErrAudioCapture.Recoverable())
	assert.False(t, recognition.ErrLanguageNotSupported.Recoverable())
	assert.Equal(t, recognition.ErrServiceNotAllowed, recognition.ParseErrorKind(" Service-Not-Allowed "))
}

func TestParseLine(t *testing.T) {
	ev, ok := recognition.ParseLine("partial: hel")
	require.True(t, ok)
	assert.Equal(t, recognition.EventResult, ev.Type)
	assert.False(t, ev.Segments[0].IsFinal)

	ev, ok = recognition.ParseLine("final: hello world")
	require.True(t, ok)
	assert.Equal(t, "hello world", ev.Segments[0].Text)
	assert.True(t, ev.Segments[0].IsFinal)

	ev, ok = recognition.ParseLine("error: no-speech")
	require.True(t, ok)
	assert.Equal(t, recognition.EventError, ev.Type)
	assert.Equal(t, recognition.ErrNoSpeech, ev.Err)

	ev, ok = recognition.ParseLine("just words")
	require.True(t, ok)
	assert.Equal(t, "just words", ev.Segments[0].Text)

	_, ok = recognition.ParseLine("   ")
	assert.False(t, ok)
}

func TestTextRecognizer(t *testing.T) {
	rec := recognition.NewTextRecognizer()
	assert.ErrorIs(t, rec.Submit("hello"), recognition.ErrNotCapturing)

	require.NoError(t, rec.Start())
	assert.Equal(t, recognition.EventStarted, (<-rec.Events()).Type)
	require.NoError(t, rec.Submit("hello"))
	ev := <-rec.Events()
	assert.Equal(t, recognition.EventResult, ev.Type)
	assert.Equal(t, "hello", ev.Segments[0].Text)

	require.NoError(t, rec.Stop())
	assert.Equal(t, recognition.EventEnded, (<-rec.Events()).Type)
}
