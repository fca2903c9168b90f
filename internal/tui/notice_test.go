package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/verte-zerg/pronounce/internal/recognition"
)

func pumpEvents(s *recognition.Session, typed *recognition.TextRecognizer) {
	for {
		select {
		case ev := <-typed.Events():
			s.HandleEvent(ev)
		default:
			return
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCompletionSurvivesFullNoticeBuffer(t *testing.T) {
	typed := recognition.NewTextRecognizer()
	clk := clockwork.NewFakeClock()
	s := recognition.NewSession(typed, recognition.Config{Clock: clk})
	m := NewModel(Options{Session: s, Typed: typed})
	defer m.Close()

	for len(m.notices) < cap(m.notices) {
		m.notices <- sessionMsg(recognition.Notice{Kind: recognition.NoticeTranscript})
	}

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	pumpEvents(s, typed)
	if err := typed.Submit("think about it"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	pumpEvents(s, typed)
	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	pumpEvents(s, typed)
	clk.Advance(recognition.DefaultStopGrace)
	waitFor(t, func() bool { return s.LastResult() != nil })

	drainNotices(m)
	if m.result == nil || m.result != s.LastResult() {
		t.Fatalf("expected the completed recording to reach the view")
	}
	if m.status != recognition.StatusReady {
		t.Fatalf("expected ready status, got %s", m.status)
	}
	if len(m.transcript) != 3 {
		t.Fatalf("expected 3 transcript items, got %d", len(m.transcript))
	}
	if !strings.Contains(m.message, "Press") {
		t.Fatalf("expected completion message, got %q", m.message)
	}
}

func TestNewRecordingClearsResult(t *testing.T) {
	typed := recognition.NewTextRecognizer()
	clk := clockwork.NewFakeClock()
	s := recognition.NewSession(typed, recognition.Config{Clock: clk})
	m := NewModel(Options{Session: s, Typed: typed})
	defer m.Close()

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	pumpEvents(s, typed)
	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	clk.Advance(recognition.DefaultStopGrace)
	waitFor(t, func() bool { return s.LastResult() != nil })
	drainNotices(m)
	if m.result == nil {
		t.Fatalf("expected a result after stopping")
	}

	if err := s.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	drainNotices(m)
	if m.result != nil {
		t.Fatalf("expected the previous result to be cleared")
	}
	if m.status != recognition.StatusListening {
		t.Fatalf("expected listening status, got %s", m.status)
	}
}
