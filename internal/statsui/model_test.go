package statsui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/pronounce/internal/model"
	"github.com/verte-zerg/pronounce/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "pronounce.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestParseFilter(t *testing.T) {
	cfg, err := ParseFilter("2026-03-01", "5", "10")
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cfg.Since == nil || cfg.Since.Day() != 1 || cfg.Last != 5 || cfg.CurveWindow != 10 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if _, err := ParseFilter("03/01", "", ""); err == nil {
		t.Fatalf("expected invalid date error")
	}
	if _, err := ParseFilter("", "-1", ""); err == nil {
		t.Fatalf("expected invalid last error")
	}
	if _, err := ParseFilter("", "", "0"); err == nil {
		t.Fatalf("expected invalid window error")
	}
}

func TestCurveWindowSteps(t *testing.T) {
	if got := nextCurveWindow(1); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
	if got := nextCurveWindow(7); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
	if got := prevCurveWindow(10); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
	if got := prevCurveWindow(5); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}

func TestEmptyHistory(t *testing.T) {
	m := NewModel(openStore(t), model.StatsConfig{CurveWindow: 5})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	if !strings.Contains(m.View(), "No drills found.") {
		t.Fatalf("expected empty overview")
	}
	m.moveTab(2)
	if !strings.Contains(m.View(), "No practice plan yet.") {
		t.Fatalf("expected empty plan tab")
	}
}

func TestOverviewAndPlan(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	ended := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	results := []model.AttemptResult{
		{Word: "think", Sound: "/θ/", AttemptsNeeded: 3, Spoken: false},
		{Word: "ship", Sound: "/ʃ/", AttemptsNeeded: 1, Spoken: true},
	}
	if _, err := st.InsertDrill(ctx, model.DrillStats{
		SessionID: "s", StartedAt: ended.Add(-time.Minute), EndedAt: ended,
		TotalWords: 2, PerfectWords: 1, SuccessRate: 50,
	}, results); err != nil {
		t.Fatalf("insert drill: %v", err)
	}
	if err := st.SavePlan(ctx, model.StoredPlan{
		PracticePlan: model.PracticePlan{Days: 5, Schedule: []model.DayPlan{
			{Day: 1, Sounds: []model.SoundWords{{Sound: "/θ/", Words: []string{"think"}}}},
		}},
		StartDate: ended,
	}); err != nil {
		t.Fatalf("save plan: %v", err)
	}

	m := NewModel(st, model.StatsConfig{CurveWindow: 5})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	out := m.View()
	if !strings.Contains(out, "Drills") || !strings.Contains(out, "50.0%") {
		t.Fatalf("expected summary cards in overview")
	}
	if rows := m.soundTable.Rows(); len(rows) != 2 || rows[0][0] != "/θ/" {
		t.Fatalf("expected weakest sound first, got %v", rows)
	}
	m.moveTab(2)
	if !strings.Contains(m.View(), "think") {
		t.Fatalf("expected plan words in plan tab")
	}
}
