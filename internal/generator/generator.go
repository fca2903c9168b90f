// Package generator picks practice word sequences.
package generator

import (
	"math/rand"
	"strings"
	"time"

	"github.com/verte-zerg/pronounce/internal/model"
	"github.com/verte-zerg/pronounce/internal/sounds"
)

// Generator produces randomized practice word lists.
type Generator struct {
	rnd *rand.Rand
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewWithSeed(time.Now().UnixNano())
}

// NewWithSeed returns a deterministic Generator.
func NewWithSeed(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Practice picks count distinct example words from the sound dataset.
func (g *Generator) Practice(count int) []model.WordRecord {
	return g.Pick(Records(sounds.Words()), count)
}

// Pick selects up to count distinct records uniformly, in random order.
func (g *Generator) Pick(records []model.WordRecord, count int) []model.WordRecord {
	count = min(count, len(records))
	if count <= 0 {
		return nil
	}
	result := make([]model.WordRecord, 0, count)
	for _, i := range g.rnd.Perm(len(records))[:count] {
		result = append(result, records[i])
	}
	return result
}

// PickWeighted selects up to count distinct records with a bias toward weak
// sounds. A record of a weak sound weighs 1+factor; others weigh 1.
func (g *Generator) PickWeighted(records []model.WordRecord, count int, weakSet map[string]struct{}, factor float64) []model.WordRecord {
	count = min(count, len(records))
	if count <= 0 {
		return nil
	}
	pool := append([]model.WordRecord(nil), records...)
	weights := make([]float64, len(pool))
	total := 0.0
	for i, rec := range pool {
		w := 1.0
		if _, ok := weakSet[rec.Sound]; ok {
			w += factor
		}
		weights[i] = w
		total += w
	}

	result := make([]model.WordRecord, 0, count)
	for len(result) < count {
		r := g.rnd.Float64() * total
		acc := 0.0
		idx := len(pool) - 1
		for j, w := range weights {
			acc += w
			if r < acc {
				idx = j
				break
			}
		}
		result = append(result, pool[idx])
		total -= weights[idx]
		pool = append(pool[:idx], pool[idx+1:]...)
		weights = append(weights[:idx], weights[idx+1:]...)
	}
	return result
}

// Records builds practice records for words, resolving each word's sound
// from the dataset. Words are lowercased and deduplicated.
func Records(words []string) []model.WordRecord {
	seen := make(map[string]struct{}, len(words))
	out := make([]model.WordRecord, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		rec := model.WordRecord{Word: w, Sound: sounds.UnknownSound, Hint: "Practice pronunciation", Kind: model.KindPractice}
		if c, ok := sounds.Lookup(w); ok {
			rec.Sound = c.Sound
			rec.Hint = c.Hint
		}
		out = append(out, rec)
	}
	return out
}
