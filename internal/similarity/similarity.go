// Package similarity scores how closely a spoken transcript matches a target
// word using normalized Levenshtein distance.
//
// Callers always pass the target first and the transcript second: the
// containment shortcut only checks whether the transcript contains the
// target. That shortcut lets a short target embedded in a longer, unrelated
// transcript score high; it is kept so that phrase-level transcripts still
// match single-word targets.
package similarity

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

const (
	// DrillContainment is the score given when the transcript contains the
	// target during word drilling.
	DrillContainment = 0.9
	// PhraseContainment is the lower containment score used for phrase checks.
	PhraseContainment = 0.8
	// MatchThreshold is the score a transcript must exceed to count as a match.
	MatchThreshold = 0.7
)

// Score returns the similarity of spoken to target in [0, 1] using the
// drilling containment constant.
func Score(target, spoken string) float64 {
	return ScoreWith(target, spoken, DrillContainment)
}

// ScoreWith returns the similarity of spoken to target in [0, 1], returning
// containment when spoken contains target.
func ScoreWith(target, spoken string, containment float64) float64 {
	a := normalize(target)
	b := normalize(spoken)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if strings.Contains(b, a) {
		return containment
	}
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	score := 1 - float64(matchr.Levenshtein(a, b))/float64(longest)
	if score < 0 {
		return 0
	}
	return score
}

// IsMatch reports whether spoken counts as a correct attempt at target.
func IsMatch(target, spoken string) bool {
	if Score(target, spoken) > MatchThreshold {
		return true
	}
	a := normalize(target)
	return a != "" && strings.Contains(normalize(spoken), a)
}

// SoundsAlike reports whether any token of spoken shares a Double Metaphone
// code with target.
func SoundsAlike(target, spoken string) bool {
	want := codes(normalize(target))
	if len(want) == 0 {
		return false
	}
	for _, token := range strings.Fields(normalize(spoken)) {
		for code := range codes(token) {
			if _, ok := want[code]; ok {
				return true
			}
		}
	}
	return false
}

// Grade is the feedback tier of one attempt.
type Grade int

// Feedback grades, from best to worst.
const (
	GradePerfect Grade = iota
	GradeCorrect
	GradeClose
	GradeGettingThere
	GradeRetry
)

// Judge grades an attempt by its score and match decision.
func Judge(score float64, matched bool) Grade {
	switch {
	case matched && score > 0.9:
		return GradePerfect
	case matched:
		return GradeCorrect
	case score > 0.5:
		return GradeClose
	case score > 0.3:
		return GradeGettingThere
	default:
		return GradeRetry
	}
}

// Message returns the user-facing feedback for a grade.
func (g Grade) Message() string {
	switch g {
	case GradePerfect:
		return "Perfect!"
	case GradeCorrect:
		return "Good job!"
	case GradeClose:
		return "You're close! Try again focusing on the pronunciation."
	case GradeGettingThere:
		return "Getting there. Listen to the example again and try once more."
	default:
		return "Let's try again. Press 'l' to hear the correct pronunciation."
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func codes(token string) map[string]struct{} {
	out := map[string]struct{}{}
	if token == "" {
		return out
	}
	p, s := matchr.DoubleMetaphone(token)
	if p != "" {
		out[p] = struct{}{}
	}
	if s != "" {
		out[s] = struct{}{}
	}
	return out
}
