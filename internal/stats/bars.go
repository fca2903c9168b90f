package stats

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/verte-zerg/pronounce/internal/model"
)

const (
	minBarWidth         = 10
	maxBarWidth         = 50
	terminalWidthBackup = 80
	barFull             = "█"
	barEmpty            = "·"
)

// BarWidthFor computes a bar width that fits beside a label column within
// the total available width.
func BarWidthFor(totalWidth, labelWidth int) int {
	if totalWidth <= 0 {
		return minBarWidth
	}
	// label, two separators and a "100%" suffix.
	width := totalWidth - labelWidth - 2 - 5
	return max(minBarWidth, min(width, maxBarWidth))
}

// RenderSoundBars prints first-try accuracy per sound as horizontal bars,
// weakest first. Bars are green, yellow or red by accuracy when useColor is set.
func RenderSoundBars(w io.Writer, aggs []model.SoundAggregate, totalWidth int, useColor bool) error {
	if len(aggs) == 0 {
		return nil
	}
	rows := make([]model.SoundAggregate, len(aggs))
	copy(rows, aggs)
	sortWeakest(rows)

	labelWidth := 0
	for _, r := range rows {
		labelWidth = max(labelWidth, runewidth.StringWidth(r.Sound))
	}
	barWidth := BarWidthFor(totalWidth, labelWidth)

	renderer := lipgloss.NewRenderer(w)
	styles := map[string]lipgloss.Style{
		"good": renderer.NewStyle().Foreground(lipgloss.Color("2")),
		"fair": renderer.NewStyle().Foreground(lipgloss.Color("3")),
		"poor": renderer.NewStyle().Foreground(lipgloss.Color("1")),
	}

	if _, err := fmt.Fprintln(w, "First-Try Accuracy"); err != nil {
		return err
	}
	for _, r := range rows {
		acc := SoundAccuracy(r)
		filled := int(acc*float64(barWidth) + 0.5)
		bar := strings.Repeat(barFull, filled)
		if useColor {
			bar = styles[accuracyBand(acc)].Render(bar)
		}
		line := fmt.Sprintf("%s %s%s %3.0f%%",
			runewidth.FillRight(r.Sound, labelWidth),
			bar,
			strings.Repeat(barEmpty, barWidth-filled),
			acc*100,
		)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

func accuracyBand(acc float64) string {
	switch {
	case acc >= 0.8:
		return "good"
	case acc >= 0.5:
		return "fair"
	default:
		return "poor"
	}
}

// TerminalWidth returns the width of stdout, or a fallback when it is not
// a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

// ShouldUseColor reports whether w should receive ANSI colors.
func ShouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
