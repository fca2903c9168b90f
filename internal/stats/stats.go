// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/verte-zerg/pronounce/internal/model"
	"github.com/verte-zerg/pronounce/internal/sounds"
)

const (
	sparkChars   = " .:-=+*#%@"
	maxHintWidth = 40
)

// SoundAccuracy returns the share of words of a sound said right first time.
func SoundAccuracy(agg model.SoundAggregate) float64 {
	if agg.Words == 0 {
		return 1.0
	}
	return float64(agg.Perfect) / float64(agg.Words)
}

// AvgAttempts returns the mean attempts needed per word of a sound.
func AvgAttempts(agg model.SoundAggregate) float64 {
	if agg.Words == 0 {
		return 0
	}
	return float64(agg.Attempts) / float64(agg.Words)
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(min(i+1, window))
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi-lo < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	last := len(sparkChars) - 1
	for _, v := range values {
		idx := int(math.Round((v - lo) / (hi - lo) * float64(last)))
		b.WriteByte(sparkChars[max(0, min(idx, last))])
	}
	return b.String()
}

// RenderSummary prints a summary of drills.
func RenderSummary(w io.Writer, drills []model.DrillAggregate) error {
	if len(drills) == 0 {
		_, err := fmt.Fprintln(w, "No drills found.")
		return err
	}
	var words, perfect int
	var totalRate, bestRate float64
	for _, d := range drills {
		words += d.TotalWords
		perfect += d.PerfectWords
		totalRate += d.SuccessRate
		bestRate = math.Max(bestRate, d.SuccessRate)
	}
	lines := []string{
		"Summary",
		fmt.Sprintf("Drills: %d", len(drills)),
		fmt.Sprintf("Words drilled: %d", words),
		fmt.Sprintf("Perfect words: %d", perfect),
		fmt.Sprintf("Avg success rate: %.2f%%", totalRate/float64(len(drills))),
		fmt.Sprintf("Best success rate: %.2f%%", bestRate),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderTrend prints the smoothed success rate across drills.
func RenderTrend(w io.Writer, drills []model.DrillAggregate, window int) error {
	if len(drills) == 0 {
		return nil
	}
	rates := make([]float64, len(drills))
	for i, d := range drills {
		rates[i] = d.SuccessRate
	}
	smoothed := MovingAverage(rates, window)
	if _, err := fmt.Fprintf(w, "Trend (success rate, window %d)\n", max(window, 1)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "[%s] %.1f%% -> %.1f%%\n\n", Sparkline(smoothed), smoothed[0], smoothed[len(smoothed)-1]); err != nil {
		return err
	}
	return nil
}

// RenderSoundTable prints per-sound aggregates, weakest first.
func RenderSoundTable(w io.Writer, title string, aggs []model.SoundAggregate) error {
	if len(aggs) == 0 {
		_, err := fmt.Fprintln(w, "No sound stats found.")
		return err
	}
	rows := make([]model.SoundAggregate, len(aggs))
	copy(rows, aggs)
	sortWeakest(rows)

	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}
	cols := []column{
		{title: "Sound"},
		{title: "Hint", max: maxHintWidth},
		{title: "Words", right: true},
		{title: "Perfect", right: true},
		{title: "Avg Attempts", right: true},
		{title: "Unspoken", right: true},
	}
	tableRows := make([][]string, 0, len(rows))
	for _, r := range rows {
		hint := ""
		if c, ok := sounds.Category(r.Sound); ok {
			hint = c.Hint
		}
		tableRows = append(tableRows, []string{
			r.Sound,
			hint,
			fmt.Sprintf("%d", r.Words),
			fmt.Sprintf("%.2f%%", SoundAccuracy(r)*100),
			fmt.Sprintf("%.2f", AvgAttempts(r)),
			fmt.Sprintf("%d", r.Unspoken),
		})
	}
	for _, line := range layoutTable(cols, tableRows) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}
	return nil
}

// sortWeakest orders by lowest first-try accuracy, then most attempts.
func sortWeakest(aggs []model.SoundAggregate) {
	sort.Slice(aggs, func(i, j int) bool {
		ai, aj := SoundAccuracy(aggs[i]), SoundAccuracy(aggs[j])
		if ai != aj {
			return ai < aj
		}
		ti, tj := AvgAttempts(aggs[i]), AvgAttempts(aggs[j])
		if ti != tj {
			return ti > tj
		}
		return aggs[i].Sound < aggs[j].Sound
	})
}

// SortWeakest returns a copy of aggs ordered weakest first.
func SortWeakest(aggs []model.SoundAggregate) []model.SoundAggregate {
	out := make([]model.SoundAggregate, len(aggs))
	copy(out, aggs)
	sortWeakest(out)
	return out
}
