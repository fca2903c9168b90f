// Package sounds provides the static sound category dataset and lookups.
package sounds

import (
	"sort"
	"strings"

	"github.com/verte-zerg/pronounce/internal/model"
)

// UnknownSound labels words with no dataset category.
const UnknownSound = "unknown"

var categories = []model.SoundCategory{
	{
		Sound: "/θ/",
		Hint:  "th as in thin",
		ExampleWords: []string{"theater", "theme", "thick", "thief", "think", "thirst", "thirty",
			"thermal", "thorn", "thought", "three", "thrill", "thumb", "thunder", "thanks"},
	},
	{
		Sound: "/ð/",
		Hint:  "th as in this",
		ExampleWords: []string{"another", "brother", "father", "gather", "leather", "mother", "other",
			"rather", "that", "there", "these", "they", "those", "together", "weather"},
	},
	{
		Sound: "/r/",
		Hint:  "r as in run",
		ExampleWords: []string{"rabbit", "race", "rain", "rat", "red", "ribbon", "rid", "rip", "ripe",
			"river", "road", "roar", "roast", "rock", "round", "ruler"},
	},
	{
		Sound: "/l/",
		Hint:  "l as in light",
		ExampleWords: []string{"love", "list", "leaf", "lake", "lemon", "lamp", "laugh", "like", "life",
			"long", "land", "loss", "late", "left", "load"},
	},
	{
		Sound: "/ʒ/",
		Hint:  "zh as in measure",
		ExampleWords: []string{"pleasure", "treasure", "vision", "leisure", "genre", "fusion", "erosion",
			"measure", "closure", "exposure", "composure", "seizure", "occasion", "delusion"},
	},
	{
		Sound: "/ʃ/",
		Hint:  "sh as in she",
		ExampleWords: []string{"ship", "shine", "sugar", "shoe", "shout", "short", "shelter", "share",
			"shore", "shame", "shy", "shift", "shape", "shoot", "shower"},
	},
	{
		Sound: "/ŋ/",
		Hint:  "ng as in sing",
		ExampleWords: []string{"banging", "belonging", "bring", "hanging", "king", "longing", "ring",
			"sing", "song", "spring", "string", "strong", "swing", "thing"},
	},
	{
		Sound: "/æ/",
		Hint:  "short a as in cat",
		ExampleWords: []string{"bat", "cat", "clap", "fat", "flat", "hat", "lap", "mat", "pat", "rat",
			"sat", "slap", "spat", "that", "trap"},
	},
	{
		Sound: "/ʊ/",
		Hint:  "short u as in book",
		ExampleWords: []string{"book", "brook", "cook", "could", "foot", "hook", "look", "nook", "put",
			"should", "shook", "soot", "took", "wood", "would"},
	},
	{
		Sound: "/ə/",
		Hint:  "uh as in sofa",
		ExampleWords: []string{"about", "agenda", "banana", "cabin", "camera", "circus", "comma", "focus",
			"idea", "nation", "potion", "reason", "salad", "sofa", "teacher"},
	},
	{
		Sound: "/tʃ/",
		Hint:  "ch as in chair",
		ExampleWords: []string{"chair", "cheese", "choose", "chain", "child", "church", "chart", "chief",
			"chapter", "chimney", "cherish", "chick", "chest", "charm", "chisel"},
	},
	{
		Sound: "/dʒ/",
		Hint:  "j as in judge",
		ExampleWords: []string{"judge", "jam", "joy", "jungle", "jacket", "joke", "juice", "journey",
			"jump", "jealous", "journal", "juncture", "junction", "adjust", "adjoin"},
	},
	{
		Sound: "/v/",
		Hint:  "v as in very",
		ExampleWords: []string{"vivid", "voice", "velvet", "vote", "van", "visit", "value", "view",
			"vision", "vow", "vulture", "viable", "vital", "evolve", "reverse"},
	},
	{
		Sound: "/z/",
		Hint:  "z as in zebra",
		ExampleWords: []string{"buzz", "zip", "zone", "zero", "zebra", "quiz", "dizzy", "lazy", "pizza",
			"puzzle", "size", "prize", "fizz", "sneeze", "freeze"},
	},
	{
		Sound: "/h/",
		Hint:  "h as in hat",
		ExampleWords: []string{"hello", "happy", "house", "heart", "hair", "help", "heal", "huge", "hope",
			"hill", "hot", "hat", "hold", "hunt", "haste"},
	},
}

// byWord maps a lowercase example word to the first category holding it.
var byWord = func() map[string]int {
	index := make(map[string]int)
	for i, c := range categories {
		for _, w := range c.ExampleWords {
			if _, ok := index[w]; !ok {
				index[w] = i
			}
		}
	}
	return index
}()

// All returns a copy of the dataset in its canonical order.
func All() []model.SoundCategory {
	out := make([]model.SoundCategory, len(categories))
	for i, c := range categories {
		out[i] = copyCategory(c)
	}
	return out
}

// Sorted returns the dataset ordered by sound symbol.
func Sorted() []model.SoundCategory {
	out := All()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Sound < out[j].Sound
	})
	return out
}

// Lookup finds the category holding word, matching case-insensitively.
func Lookup(word string) (model.SoundCategory, bool) {
	idx, ok := byWord[strings.ToLower(strings.TrimSpace(word))]
	if !ok {
		return model.SoundCategory{}, false
	}
	return copyCategory(categories[idx]), true
}

// Category returns the category for a sound symbol. The slashes are optional.
func Category(sound string) (model.SoundCategory, bool) {
	sound = strings.TrimSpace(sound)
	if sound == "" {
		return model.SoundCategory{}, false
	}
	if !strings.HasPrefix(sound, "/") {
		sound = "/" + sound + "/"
	}
	for _, c := range categories {
		if c.Sound == sound {
			return copyCategory(c), true
		}
	}
	return model.SoundCategory{}, false
}

// SoundFor returns the dataset sound of word or UnknownSound.
func SoundFor(word string) string {
	if c, ok := Lookup(word); ok {
		return c.Sound
	}
	return UnknownSound
}

// ByFirstLetter returns the first category with an example word sharing
// the first letter of word, falling back to the first category.
func ByFirstLetter(word string) model.SoundCategory {
	word = strings.ToLower(word)
	if word != "" {
		first := word[0]
		for _, c := range categories {
			for _, w := range c.ExampleWords {
				if w != "" && w[0] == first {
					return copyCategory(c)
				}
			}
		}
	}
	return copyCategory(categories[0])
}

// Words returns every example word in dataset order, duplicates included.
func Words() []string {
	var out []string
	for _, c := range categories {
		out = append(out, c.ExampleWords...)
	}
	return out
}

// Records builds practice records for every example word of a category.
func Records(c model.SoundCategory) []model.WordRecord {
	out := make([]model.WordRecord, 0, len(c.ExampleWords))
	for _, w := range c.ExampleWords {
		out = append(out, model.WordRecord{
			Word:  w,
			Sound: c.Sound,
			Hint:  c.Hint,
			Kind:  model.KindPractice,
		})
	}
	return out
}

func copyCategory(c model.SoundCategory) model.SoundCategory {
	c.ExampleWords = append([]string(nil), c.ExampleWords...)
	return c
}
