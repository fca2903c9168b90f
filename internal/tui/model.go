// Package tui provides the Bubble Tea recording and drilling interface.
package tui

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/pronounce/internal/analyzer"
	"github.com/verte-zerg/pronounce/internal/drill"
	"github.com/verte-zerg/pronounce/internal/model"
	"github.com/verte-zerg/pronounce/internal/plan"
	"github.com/verte-zerg/pronounce/internal/recognition"
	"github.com/verte-zerg/pronounce/internal/sounds"
)

type screen int

const (
	screenRecord screen = iota
	screenDrill
	screenSummary
)

const noticeBuffer = 64

var (
	correctStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#73D13D"))
	incorrectStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Underline(true)
	stutterStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	neutralStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	interimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C")).Italic(true)
	titleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	wordStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true).Padding(0, 2).
			Border(lipgloss.RoundedBorder(), true).BorderForeground(lipgloss.Color("#C89A3A"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

type sessionMsg recognition.Notice

type drillMsg drill.Notice

// Options wires the interface to the recording session and the drill engine.
type Options struct {
	Session *recognition.Session
	// Typed feeds keyboard input to Session when no audio recognizer is
	// available. Nil when Session captures real speech.
	Typed  *recognition.TextRecognizer
	Engine *drill.Engine
	// Practice supplies words when a recording yields nothing to drill.
	Practice func() []model.WordRecord
	// Drilling opens the drill screen for an engine that is already started.
	Drilling bool
	Logger   *slog.Logger
}

// Model implements the Bubble Tea pronunciation UI.
type Model struct {
	session  *recognition.Session
	typed    *recognition.TextRecognizer
	engine   *drill.Engine
	practice func() []model.WordRecord
	log      *slog.Logger

	notices chan tea.Msg
	unsubs  []func()

	screen screen
	width  int
	height int

	status     recognition.Status
	transcript []model.TranscriptItem
	result     *recognition.Result
	seen       *recognition.Result

	summary *model.SessionSummary
	message string
	errMsg  string

	typing   bool
	input    textinput.Model
	spinner  spinner.Model
	progress progress.Model
}

// NewModel constructs the UI and subscribes it to session and engine notices.
// Call Close after the program exits.
func NewModel(opts Options) *Model {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	m := &Model{
		session:  opts.Session,
		typed:    opts.Typed,
		engine:   opts.Engine,
		practice: opts.Practice,
		log:      opts.Logger.With("component", "tui"),
		notices:  make(chan tea.Msg, noticeBuffer),
		input:    newAttemptInput(),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(stutterStyle)),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
	if m.session != nil {
		m.unsubs = append(m.unsubs, m.session.Subscribe(func(n recognition.Notice) { m.post(sessionMsg(n)) }))
	}
	if m.engine != nil {
		m.unsubs = append(m.unsubs, m.engine.Subscribe(func(n drill.Notice) { m.post(drillMsg(n)) }))
	}
	if opts.Drilling {
		m.screen = screenDrill
	}
	return m
}

func newAttemptInput() textinput.Model {
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 120
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

// Close detaches the model from its notice sources.
func (m *Model) Close() {
	for _, unsub := range m.unsubs {
		unsub()
	}
	m.unsubs = nil
}

// post hands a notice to the Bubble Tea loop. A full buffer drops the
// notice; the queued ones still trigger a full re-read of session and
// engine state.
func (m *Model) post(msg tea.Msg) {
	select {
	case m.notices <- msg:
	default:
		m.log.Warn("dropping notice, UI is not keeping up")
	}
}

func waitForNotice(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(waitForNotice(m.notices), m.spinner.Tick)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(10, min(m.width-8, 60))
		m.input.Width = max(10, min(m.width-8, 60))
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case sessionMsg:
		m.handleSession(recognition.Notice(msg))
		return m, waitForNotice(m.notices)
	case drillMsg:
		m.handleDrill(drill.Notice(msg))
		return m, waitForNotice(m.notices)
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.typing {
			return m.updateInput(msg)
		}
		switch m.screen {
		case screenRecord:
			return m.updateRecord(msg)
		case screenDrill:
			return m.updateDrill(msg)
		default:
			return m.updateSummary(msg)
		}
	}
	return m, nil
}

func (m *Model) handleSession(n recognition.Notice) {
	if n.Kind == recognition.NoticeError {
		m.errMsg = n.Message
	}
	m.syncSession()
}

// syncSession re-reads the session, so any notice brings the view up to
// date even when earlier ones were dropped.
func (m *Model) syncSession() {
	status := m.session.Status()
	if status != m.status {
		m.status = status
		if status == recognition.StatusListening {
			m.errMsg = ""
		}
	}
	if status != recognition.StatusListening && m.screen == screenRecord && m.typing {
		m.stopTyping()
	}
	m.transcript = m.session.Transcript()
	if m.screen != screenRecord {
		return
	}
	last := m.session.LastResult()
	if last == m.seen {
		return
	}
	m.seen = last
	m.result = last
	if last == nil {
		return
	}
	if len(last.Difficult) > 0 {
		m.message = fmt.Sprintf("Found %d word(s) to practice. Press d to drill them.", len(last.Difficult))
	} else {
		m.message = "Nothing to practice in that recording. Press p for practice words."
	}
}

func (m *Model) handleDrill(n drill.Notice) {
	switch n.Kind {
	case drill.NoticeState:
		switch n.State {
		case drill.StateActive:
			m.screen = screenDrill
			m.summary = nil
		case drill.StateComplete:
			if s, ok := m.engine.Summary(); ok {
				m.summary = &s
			}
			m.screen = screenSummary
		}
	case drill.NoticeWord:
		m.errMsg = ""
		m.message = ""
		m.transcript = nil
		m.stopTyping()
	case drill.NoticeFeedback:
		if n.Feedback != nil {
			m.message = n.Feedback.Message()
		}
	case drill.NoticeTimeout, drill.NoticeError:
		m.errMsg = n.Message
	case drill.NoticeCompleted:
		m.summary = n.Summary
		m.screen = screenSummary
		m.stopTyping()
	}
}

func (m *Model) updateRecord(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "r", " ":
		return m, m.toggleRecording()
	case "d":
		var words []model.WordRecord
		if m.result != nil {
			words = m.result.Difficult
		}
		if len(words) == 0 && m.practice != nil {
			words = m.practice()
		}
		m.startDrill(words)
	case "p":
		if m.practice != nil {
			m.startDrill(m.practice())
		}
	}
	return m, nil
}

func (m *Model) toggleRecording() tea.Cmd {
	if m.status == recognition.StatusListening {
		if err := m.session.Stop(); err != nil {
			m.errMsg = err.Error()
		}
		return nil
	}
	m.message = ""
	if err := m.session.Start(); err != nil {
		if errors.Is(err, recognition.ErrBusy) {
			m.errMsg = "Still analyzing the last recording."
		} else if !errors.Is(err, recognition.ErrUnsupported) {
			m.errMsg = err.Error()
		}
		return nil
	}
	m.status = recognition.StatusListening
	m.errMsg = ""
	if m.typed != nil {
		return m.startTyping("Type what you say, enter per sentence, esc to stop")
	}
	return nil
}

func (m *Model) startDrill(words []model.WordRecord) {
	m.engine.Initialize(words)
	if err := m.engine.Start(); err != nil {
		m.errMsg = err.Error()
		return
	}
	m.screen = screenDrill
	m.result = nil
	m.message = ""
}

func (m *Model) updateDrill(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var err error
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "l":
		err = m.engine.Listen()
		if errors.Is(err, drill.ErrRecognitionUnavailable) {
			err = nil
		}
	case "s":
		err = m.engine.PlayExample()
	case "t", "enter":
		word, _, _, ok := m.engine.Current()
		if ok {
			return m, m.startTyping("type " + word.Word)
		}
	case "r":
		err = m.engine.TryAgain()
		if err == nil {
			m.message = ""
		}
	case "n":
		err = m.engine.Next()
	case "f":
		err = m.engine.Finish()
	}
	if err != nil {
		m.errMsg = err.Error()
	}
	return m, nil
}

func (m *Model) updateSummary(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "a":
		if m.summary != nil {
			words := reviewWords(*m.summary)
			if len(words) == 0 {
				m.errMsg = "Nothing needs review."
				return m, nil
			}
			m.startDrill(words)
		}
	case "h":
		m.screen = screenRecord
		m.summary = nil
		m.transcript = nil
		m.result = nil
		m.message = ""
		m.errMsg = ""
	}
	return m, nil
}

func (m *Model) startTyping(placeholder string) tea.Cmd {
	m.typing = true
	m.input.Reset()
	m.input.Placeholder = placeholder
	return m.input.Focus()
}

func (m *Model) stopTyping() {
	m.typing = false
	m.input.Blur()
	m.input.Reset()
}

func (m *Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.stopTyping()
		if m.screen == screenRecord && m.status == recognition.StatusListening {
			if err := m.session.Stop(); err != nil {
				m.errMsg = err.Error()
			}
		}
		return m, nil
	case tea.KeyEnter:
		value := m.input.Value()
		if m.screen == screenRecord {
			m.input.Reset()
			if err := m.typed.Submit(value); err != nil {
				m.errMsg = err.Error()
			}
			return m, nil
		}
		m.stopTyping()
		if strings.TrimSpace(value) == "" {
			return m, nil
		}
		if _, err := m.engine.Attempt(value); err != nil {
			m.errMsg = err.Error()
		}
		return m, nil
	}
	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.screen == screenRecord && m.typed != nil && m.input.Value() != before {
		m.typed.Preview(m.input.Value())
	}
	return m, cmd
}

// View implements tea.Model.
func (m *Model) View() string {
	var content string
	switch m.screen {
	case screenRecord:
		content = m.renderRecord()
	case screenDrill:
		content = m.renderDrill()
	default:
		content = m.renderSummary()
	}
	if m.width == 0 || m.height == 0 {
		return content
	}
	contentWidth := m.contentWidth()
	content = lipgloss.NewStyle().Width(contentWidth).Render(content)
	footer := m.renderFooter()
	if footer == "" || m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	bodyHeight := m.height - 1
	body := lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) contentWidth() int {
	return max(1, int(float64(m.width)*0.70))
}

func (m *Model) renderRecord() string {
	lines := []string{titleStyle.Render("Record"), ""}
	switch m.status {
	case recognition.StatusListening:
		lines = append(lines, m.spinner.View()+" Listening...")
	case recognition.StatusProcessing:
		lines = append(lines, m.spinner.View()+" Analyzing your speech...")
	case recognition.StatusError:
		lines = append(lines, errorStyle.Render("Recognition error"))
	default:
		lines = append(lines, mutedStyle.Render("Press r to start recording. Read a few sentences aloud."))
	}
	if len(m.transcript) > 0 {
		lines = append(lines, "", wrapStyledRunes(buildTranscriptRunes(m.transcript), m.contentWidth()))
		score := analyzer.FluencyScore(m.transcript)
		if m.result != nil {
			score = m.result.FluencyScore
		}
		lines = append(lines, "", fmt.Sprintf("Fluency %d/100", score))
	}
	if m.result != nil && len(m.result.Difficult) > 0 {
		lines = append(lines, "", "Words to practice:")
		for _, w := range m.result.Difficult {
			lines = append(lines, fmt.Sprintf("  %s  %s  %s", w.Word, mutedStyle.Render(w.Sound), mutedStyle.Render(string(w.Kind))))
		}
	}
	if m.typing {
		lines = append(lines, "", m.input.View())
	}
	return m.appendMessages(lines)
}

func (m *Model) renderDrill() string {
	word, index, total, ok := m.engine.Current()
	if !ok {
		return m.appendMessages([]string{titleStyle.Render("Drill"), "", "No word to practice."})
	}
	pct := 0.0
	if total > 0 {
		pct = float64(index) / float64(total)
	}
	lines := []string{
		titleStyle.Render("Drill"),
		m.progress.ViewAs(pct) + mutedStyle.Render(fmt.Sprintf("  %d/%d", index+1, total)),
		"",
		wordStyle.Render(word.Word),
		fmt.Sprintf("%s  %s", word.Sound, mutedStyle.Render(word.Hint)),
		"",
	}
	switch m.engine.Phase() {
	case drill.PhasePlaying:
		lines = append(lines, m.spinner.View()+" Playing example...")
	case drill.PhaseListening:
		lines = append(lines, m.spinner.View()+" Listening... say the word")
		if len(m.transcript) > 0 {
			lines = append(lines, wrapStyledRunes(buildTranscriptRunes(m.transcript), m.contentWidth()))
		}
	case drill.PhaseJudging:
		lines = append(lines, m.spinner.View()+" Checking...")
	}
	if fb, ok := m.engine.Feedback(); ok {
		lines = append(lines, renderFeedback(fb, m.engine.MaxAttempts())...)
	}
	if m.typing {
		lines = append(lines, "", m.input.View())
	}
	return m.appendMessages(lines)
}

func renderFeedback(fb drill.Feedback, maxAttempts int) []string {
	style := incorrectStyle
	if fb.Matched {
		style = correctStyle
	}
	lines := []string{style.Render(fb.Message())}
	if !fb.TimedOut {
		lines = append(lines, mutedStyle.Render(fmt.Sprintf("Heard %q, similarity %.0f%%", fb.Transcript, fb.Score*100)))
	}
	if !fb.Matched {
		lines = append(lines, mutedStyle.Render(fmt.Sprintf("Attempt %d of %d, %d left", fb.Attempt, maxAttempts, fb.Remaining)))
	}
	return lines
}

func (m *Model) renderSummary() string {
	if m.summary == nil {
		return m.appendMessages([]string{titleStyle.Render("Summary"), "", "No results."})
	}
	s := m.summary
	lines := []string{
		titleStyle.Render("Session complete"),
		"",
		fmt.Sprintf("Words %d  Perfect %d  Success %.0f%%", s.TotalWords, s.PerfectWords, s.SuccessRate),
		"",
	}
	for _, r := range s.Results {
		mark := correctStyle.Render("✓")
		if !r.Spoken || r.AttemptsNeeded > 1 {
			mark = incorrectStyle.Render("✗")
		}
		spoken := ""
		if !r.Spoken {
			spoken = mutedStyle.Render(" not spoken")
		}
		lines = append(lines, fmt.Sprintf("%s %s %s  %d attempt(s)%s", mark, r.Word, mutedStyle.Render(r.Sound), r.AttemptsNeeded, spoken))
	}
	lines = append(lines, "", titleStyle.Render("Practice plan"))
	lines = append(lines, plan.Lines(s.Plan, m.engine.Snapshot().Timestamp)...)
	return m.appendMessages(lines)
}

func (m *Model) appendMessages(lines []string) string {
	if m.message != "" {
		lines = append(lines, "", m.message)
	}
	if m.errMsg != "" {
		lines = append(lines, "", errorStyle.Render(m.errMsg))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderFooter() string {
	var segments []string
	switch m.screen {
	case screenRecord:
		if m.typing {
			segments = append(segments, "Submit: enter", "Stop: esc")
		} else {
			segments = append(segments, "Record: r", "Drill: d", "Practice words: p", "Quit: q")
		}
	case screenDrill:
		if m.typing {
			segments = append(segments, "Submit: enter", "Cancel: esc")
			break
		}
		_, index, total, ok := m.engine.Current()
		if ok {
			segments = append(segments,
				fmt.Sprintf("Word %d/%d", index+1, total),
				fmt.Sprintf("Misses %d/%d", m.engine.Failed(), m.engine.MaxAttempts()),
			)
		}
		if m.engine.ListenSupported() {
			segments = append(segments, "Listen: l")
		}
		segments = append(segments, "Hear: s", "Type: t", "Retry: r", "Next: n", "Finish: f", "Quit: q")
	default:
		segments = append(segments, "Review plan words: a", "Record again: h", "Quit: q")
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}

// reviewWords turns the plan of a finished session into drill records.
func reviewWords(s model.SessionSummary) []model.WordRecord {
	soundOf := make(map[string]string, len(s.Results))
	for _, r := range s.Results {
		soundOf[r.Word] = r.Sound
	}
	words := plan.Words(s.Plan)
	out := make([]model.WordRecord, 0, len(words))
	for _, w := range words {
		rec := model.WordRecord{Word: w, Sound: soundOf[w], Kind: model.KindPractice}
		if c, ok := sounds.Category(rec.Sound); ok {
			rec.Hint = c.Hint
		}
		out = append(out, rec)
	}
	return out
}
