// Package analyzer classifies recognized words and builds the list of
// difficult words for a recording.
package analyzer

import (
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/verte-zerg/pronounce/internal/model"
	"github.com/verte-zerg/pronounce/internal/sounds"
)

const (
	// DatasetMissRate is the chance a dataset word is flagged incorrect.
	DatasetMissRate = 0.4
	// GeneralMissRate is the chance a longer non-dataset word is flagged incorrect.
	GeneralMissRate = 0.15

	maxFallbackPicks = 3
)

// Random is the pseudo-random source used for classification draws.
// *rand.Rand satisfies it.
type Random interface {
	Float64() float64
	Intn(n int) int
}

// Analyzer accumulates a transcript and its difficult words. It is not safe
// for concurrent use; the recognition session serializes access.
type Analyzer struct {
	rnd        Random
	transcript []model.TranscriptItem
	interim    []model.TranscriptItem
	difficult  []model.WordRecord
}

// New returns an Analyzer drawing from rnd, or from a time-seeded source
// when rnd is nil.
func New(rnd Random) *Analyzer {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Analyzer{rnd: rnd}
}

// Reset clears the transcript, the interim preview and the difficult list.
func (a *Analyzer) Reset() {
	a.transcript = nil
	a.interim = nil
	a.difficult = nil
}

// ProcessSegment classifies every token of one final segment, appends them
// to the transcript and reruns stutter detection. Segments must arrive in
// recognition order.
func (a *Analyzer) ProcessSegment(segment string) {
	for _, token := range strings.Fields(segment) {
		clean := Clean(token)
		if clean == "" {
			continue
		}
		status := model.StatusNeutral
		if c, ok := sounds.Lookup(clean); ok {
			status = model.StatusCorrect
			if a.rnd.Float64() < DatasetMissRate {
				status = model.StatusIncorrect
				a.difficult = append(a.difficult, model.WordRecord{
					Word:  clean,
					Sound: c.Sound,
					Hint:  c.Hint,
					Kind:  model.KindPronunciation,
				})
			}
		} else if len(clean) > 3 && a.rnd.Float64() < GeneralMissRate {
			status = model.StatusIncorrect
			c := sounds.ByFirstLetter(clean)
			a.difficult = append(a.difficult, model.WordRecord{
				Word:  clean,
				Sound: c.Sound,
				Hint:  c.Hint,
				Kind:  model.KindGeneral,
			})
		}
		a.transcript = append(a.transcript, model.TranscriptItem{Word: token, Status: status})
	}
	a.interim = nil
	a.detectStutter()
}

// SetInterim replaces the provisional preview with the tokens of text.
func (a *Analyzer) SetInterim(text string) {
	a.interim = a.interim[:0]
	for _, token := range strings.Fields(text) {
		a.interim = append(a.interim, model.TranscriptItem{Word: token, Status: model.StatusInterim})
	}
}

// Transcript returns the final items followed by the interim preview.
func (a *Analyzer) Transcript() []model.TranscriptItem {
	out := make([]model.TranscriptItem, 0, len(a.transcript)+len(a.interim))
	out = append(out, a.transcript...)
	return append(out, a.interim...)
}

// Difficult returns a copy of the difficult list.
func (a *Analyzer) Difficult() []model.WordRecord {
	return append([]model.WordRecord(nil), a.difficult...)
}

// Analyze finalizes the difficult list. When nothing was flagged it picks up
// to three longer words at random so every non-trivial recording yields a
// practice target. The result holds each word at most once.
func (a *Analyzer) Analyze() []model.WordRecord {
	if len(a.difficult) == 0 && len(a.transcript) > 0 {
		a.pickFallback()
	}
	a.difficult = Dedupe(a.difficult)
	return a.Difficult()
}

// FluencyScore scores the current transcript.
func (a *Analyzer) FluencyScore() int {
	return FluencyScore(a.Transcript())
}

func (a *Analyzer) pickFallback() {
	var candidates []string
	for _, item := range a.transcript {
		if item.Status == model.StatusInterim {
			continue
		}
		if clean := Clean(item.Word); len(clean) > 3 {
			candidates = append(candidates, clean)
		}
	}
	if len(candidates) == 0 {
		return
	}
	n := int(math.Ceil(float64(len(candidates)) / 5))
	if n > maxFallbackPicks {
		n = maxFallbackPicks
	}
	picked := make(map[int]struct{}, n)
	for len(picked) < n {
		idx := a.rnd.Intn(len(candidates))
		if _, ok := picked[idx]; ok {
			continue
		}
		picked[idx] = struct{}{}
		word := candidates[idx]
		record := model.WordRecord{Word: word, Sound: sounds.UnknownSound, Hint: sounds.UnknownSound, Kind: model.KindPronunciation}
		if c, ok := sounds.Lookup(word); ok {
			record.Sound = c.Sound
			record.Hint = c.Hint
		}
		a.difficult = append(a.difficult, record)
	}
}

// detectStutter marks adjacent repeats and prefix restarts as stutters.
func (a *Analyzer) detectStutter() {
	for i := 1; i < len(a.transcript); i++ {
		prev := Clean(a.transcript[i-1].Word)
		cur := Clean(a.transcript[i].Word)
		if !isStutter(prev, cur) {
			continue
		}
		a.transcript[i-1].Status = model.StatusStutter
		a.transcript[i].Status = model.StatusStutter
		if a.hasDifficult(cur) {
			continue
		}
		record := model.WordRecord{Word: cur, Sound: sounds.UnknownSound, Hint: sounds.UnknownSound, Kind: model.KindStutter}
		if c, ok := sounds.Lookup(cur); ok {
			record.Sound = c.Sound
			record.Hint = c.Hint
		}
		a.difficult = append(a.difficult, record)
	}
}

func isStutter(prev, cur string) bool {
	if prev == "" || cur == "" {
		return false
	}
	if prev == cur {
		return true
	}
	return len(prev) > 3 && len(prev) < len(cur) && strings.HasPrefix(cur, prev)
}

func (a *Analyzer) hasDifficult(word string) bool {
	for _, r := range a.difficult {
		if strings.EqualFold(r.Word, word) {
			return true
		}
	}
	return false
}

// Clean lowercases word and keeps only the letters a to z.
func Clean(word string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(word) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Dedupe keeps the first record for each word, compared case-insensitively.
func Dedupe(records []model.WordRecord) []model.WordRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]model.WordRecord, 0, len(records))
	for _, r := range records {
		key := strings.ToLower(r.Word)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// FluencyScore returns the share of final words not marked incorrect or
// stutter, as a rounded percentage. It returns 0 when there are no final
// words or none is longer than two characters.
func FluencyScore(items []model.TranscriptItem) int {
	final := 0
	bad := 0
	substantial := false
	for _, item := range items {
		if item.Status == model.StatusInterim {
			continue
		}
		final++
		if item.Status == model.StatusIncorrect || item.Status == model.StatusStutter {
			bad++
		}
		if len([]rune(item.Word)) > 2 {
			substantial = true
		}
	}
	if final == 0 || !substantial {
		return 0
	}
	score := math.Max(0, 100-float64(bad)/float64(final)*100)
	return int(math.Round(score))
}
