package stats

import "github.com/verte-zerg/pronounce/internal/model"

// SelectWeakSounds selects the lowest-accuracy sounds from aggregates.
func SelectWeakSounds(aggs []model.SoundAggregate, top int) map[string]struct{} {
	weakSet := map[string]struct{}{}
	if len(aggs) == 0 {
		return weakSet
	}
	candidates := make([]model.SoundAggregate, 0, len(aggs))
	for _, agg := range aggs {
		if agg.Sound == "" || agg.Words == 0 {
			continue
		}
		candidates = append(candidates, agg)
	}
	sortWeakest(candidates)
	if top <= 0 || top > len(candidates) {
		top = len(candidates)
	}
	for i := 0; i < top; i++ {
		weakSet[candidates[i].Sound] = struct{}{}
	}
	return weakSet
}
