package stats

import (
	"sort"

	"github.com/verte-zerg/pronounce/internal/model"
)

// TopSoundsByFrequency returns the N most drilled sounds.
func TopSoundsByFrequency(aggs []model.SoundAggregate, n int) []string {
	if n <= 0 || len(aggs) == 0 {
		return nil
	}
	items := make([]model.SoundAggregate, len(aggs))
	copy(items, aggs)
	sort.Slice(items, func(i, j int) bool {
		if items[i].Words == items[j].Words {
			return items[i].Sound < items[j].Sound
		}
		return items[i].Words > items[j].Words
	})
	n = min(n, len(items))
	out := make([]string, 0, n)
	for _, item := range items[:n] {
		out = append(out, item.Sound)
	}
	return out
}
