package wordlist

import "strings"

// FilterFunc returns true when a word should be kept.
type FilterFunc func(string) bool

// FilterForLang returns a language-specific filter for word lists.
func FilterForLang(lang string) FilterFunc {
	lang, _, _ = strings.Cut(strings.ToLower(lang), "-")
	switch lang {
	case "en":
		return filterEnglish
	default:
		return func(string) bool { return true }
	}
}

// Filter lowercases words and keeps those accepted by keep.
func Filter(words []string, keep FilterFunc) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if keep(w) {
			out = append(out, w)
		}
	}
	return out
}

// filterEnglish accepts lowercase ASCII words with inner apostrophes.
func filterEnglish(word string) bool {
	if word == "" || word[0] == '\'' || word[len(word)-1] == '\'' {
		return false
	}
	for i := 0; i < len(word); i++ {
		ch := word[i]
		if (ch < 'a' || ch > 'z') && ch != '\'' {
			return false
		}
	}
	return true
}
