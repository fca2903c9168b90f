package drill_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/pronounce/internal/drill"
	"github.com/verte-zerg/pronounce/internal/model"
	"github.com/verte-zerg/pronounce/internal/recognition"
)

// scriptedRecognizer confirms each Start with EventStarted. With lateEnd
// set, the end of a stopped capture is reported only when the next one
// starts, just ahead of its confirmation.
type scriptedRecognizer struct {
	mu      sync.Mutex
	starts  int
	stops   int
	lateEnd bool
	owedEnd bool
	events  chan recognition.Event
}

func newScriptedRecognizer() *scriptedRecognizer {
	return &scriptedRecognizer{events: make(chan recognition.Event, 32)}
}

func (r *scriptedRecognizer) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	if r.owedEnd {
		r.owedEnd = false
		r.events <- recognition.Event{Type: recognition.EventEnded}
	}
	r.events <- recognition.Event{Type: recognition.EventStarted}
	return nil
}

func (r *scriptedRecognizer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	if r.lateEnd {
		r.owedEnd = true
		return nil
	}
	r.events <- recognition.Event{Type: recognition.EventEnded}
	return nil
}

func (r *scriptedRecognizer) Events() <-chan recognition.Event {
	return r.events
}

func (r *scriptedRecognizer) say(text string, final bool) {
	r.events <- recognition.Event{Type: recognition.EventResult, Segments: []recognition.Segment{{Text: text, IsFinal: final}}}
}

func (r *scriptedRecognizer) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts, r.stops
}

type steadyRandom struct{}

func (steadyRandom) Float64() float64 { return 0.99 }
func (steadyRandom) Intn(int) int     { return 0 }

type liveHarness struct {
	engine  *drill.Engine
	session *recognition.Session
	rec     *scriptedRecognizer
	clock   *clockwork.FakeClock
}

// newLiveHarness drives the engine through a real recognition session, the
// way the CLI wires them.
func newLiveHarness(t *testing.T) *liveHarness {
	t.Helper()
	h := &liveHarness{
		rec:   newScriptedRecognizer(),
		clock: clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
	}
	h.session = recognition.NewSession(h.rec, recognition.Config{Clock: h.clock, Random: steadyRandom{}})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.session.Run(ctx)
	}()
	h.engine = drill.New(drill.Config{
		Capturer: h.session,
		Speaker:  &fakeSpeaker{},
		Clock:    h.clock,
		NewID:    func() string { return "live" },
	})
	t.Cleanup(func() {
		h.engine.Close()
		cancel()
		<-done
	})
	return h
}

// listen opens the next capture and waits until the session has confirmed it.
func (h *liveHarness) listen(t *testing.T, capture int) {
	t.Helper()
	require.NoError(t, h.engine.Listen())
	h.clock.Advance(drill.DefaultListenGrace)
	eventually(t, func() bool {
		starts, _ := h.rec.counts()
		return starts == capture
	})
	// A marker interim result shows every event queued before it was applied.
	h.rec.say("…", false)
	eventually(t, func() bool { return len(h.session.Transcript()) > 0 })
}

func TestLiveMissThenMatch(t *testing.T) {
	h := newLiveHarness(t)
	h.engine.Initialize(words("think", "vision"))
	require.NoError(t, h.engine.Start())

	h.listen(t, 1)
	h.rec.say("sink", true)
	eventually(t, func() bool { return h.engine.Failed() == 1 })
	assert.Equal(t, drill.PhaseRetry, h.engine.Phase())
	eventually(t, func() bool { return h.session.Status() == recognition.StatusReady })
	_, stops := h.rec.counts()
	assert.Equal(t, 1, stops)

	h.listen(t, 2)
	h.rec.say("think", true)
	eventually(t, func() bool { return len(h.engine.Results()) == 1 })
	assert.Equal(t, model.AttemptResult{Word: "think", Sound: "/θ/", AttemptsNeeded: 2, Spoken: true}, h.engine.Results()[0])
	w, idx, _, ok := h.engine.Current()
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "vision", w.Word)
	eventually(t, func() bool { return h.session.Status() == recognition.StatusReady })
}

func TestLiveSilenceSkipsWord(t *testing.T) {
	h := newLiveHarness(t)
	h.engine.Initialize(words("think", "vision"))
	require.NoError(t, h.engine.Start())

	h.listen(t, 1)
	h.clock.Advance(drill.DefaultListenTimeout)
	eventually(t, func() bool { return len(h.engine.Results()) == 1 })
	assert.Equal(t, model.AttemptResult{Word: "think", Sound: "/θ/", AttemptsNeeded: 3, Spoken: false}, h.engine.Results()[0])
	_, idx, _, _ := h.engine.Current()
	assert.Equal(t, 1, idx)
	eventually(t, func() bool { return h.session.Status() == recognition.StatusReady })

	// The ended capture is not restarted behind the engine's back.
	h.clock.Advance(time.Second)
	starts, _ := h.rec.counts()
	assert.Equal(t, 1, starts)
}

func TestLiveLateEndDoesNotRestartNewCapture(t *testing.T) {
	h := newLiveHarness(t)
	h.rec.lateEnd = true
	h.engine.Initialize(words("think", "vision"))
	require.NoError(t, h.engine.Start())

	h.listen(t, 1)
	h.rec.say("sink", true)
	eventually(t, func() bool { return h.engine.Failed() == 1 })
	eventually(t, func() bool { return h.session.Status() == recognition.StatusReady })

	// The first capture's end is queued ahead of the second's confirmation.
	h.listen(t, 2)

	// Only the listen timeout is pending; no restart was scheduled.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.clock.BlockUntilContext(ctx, 1))
	h.clock.Advance(time.Second)

	h.rec.say("think", true)
	eventually(t, func() bool { return len(h.engine.Results()) == 1 })
	assert.Equal(t, 2, h.engine.Results()[0].AttemptsNeeded)
	starts, _ := h.rec.counts()
	assert.Equal(t, 2, starts)
}
