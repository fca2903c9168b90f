// Package plan builds multi-day review schedules from drill results.
package plan

import (
	"fmt"
	"strings"
	"time"

	"github.com/verte-zerg/pronounce/internal/model"
)

// Days is the length of every generated plan.
const Days = 5

// ReviewThreshold is the attempt count above which a word needs review.
const ReviewThreshold = 2

// Generate schedules every word that needed more than ReviewThreshold
// attempts. Sounds keep the order in which they first appear and are dealt
// round-robin over Days days. It returns nil when no word needs review.
func Generate(results []model.AttemptResult) *model.PracticePlan {
	var order []string
	words := make(map[string][]string)
	for _, r := range results {
		if r.AttemptsNeeded <= ReviewThreshold {
			continue
		}
		if _, ok := words[r.Sound]; !ok {
			order = append(order, r.Sound)
		}
		words[r.Sound] = append(words[r.Sound], r.Word)
	}
	if len(order) == 0 {
		return nil
	}

	p := &model.PracticePlan{Days: Days, Schedule: make([]model.DayPlan, Days)}
	for d := range p.Schedule {
		p.Schedule[d].Day = d + 1
	}
	for i, sound := range order {
		day := &p.Schedule[i%Days]
		day.Sounds = append(day.Sounds, model.SoundWords{Sound: sound, Words: words[sound]})
	}
	return p
}

// Words returns every scheduled word in day order.
func Words(p *model.PracticePlan) []string {
	if p == nil {
		return nil
	}
	var out []string
	for _, day := range p.Schedule {
		for _, sw := range day.Sounds {
			out = append(out, sw.Words...)
		}
	}
	return out
}

// Lines renders the schedule one day per line. When start is non-zero each
// day is labelled with its calendar date.
func Lines(p *model.PracticePlan, start time.Time) []string {
	if p == nil {
		return []string{"No review needed."}
	}
	lines := make([]string, 0, len(p.Schedule))
	for _, day := range p.Schedule {
		label := fmt.Sprintf("Day %d", day.Day)
		if !start.IsZero() {
			label += start.AddDate(0, 0, day.Day-1).Format(" (Mon Jan 2)")
		}
		if len(day.Sounds) == 0 {
			lines = append(lines, label+": rest")
			continue
		}
		parts := make([]string, 0, len(day.Sounds))
		for _, sw := range day.Sounds {
			parts = append(parts, sw.Sound+" "+strings.Join(sw.Words, ", "))
		}
		lines = append(lines, label+": "+strings.Join(parts, "; "))
	}
	return lines
}
