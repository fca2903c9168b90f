// Package speech provides text-to-speech playback for example words.
package speech

import (
	"context"
	"errors"
	"strings"
)

// ErrUnsupported is returned when no synthesizer is available.
var ErrUnsupported = errors.New("speech synthesis is not supported")

// DefaultLocale is the preferred voice locale.
const DefaultLocale = "en-US"

// DefaultRate slows speech slightly for pronunciation clarity.
const DefaultRate = 0.9

// Voice describes an installed synthesis voice.
type Voice struct {
	// ID is the identifier passed to the synthesizer. Empty means Name.
	ID     string
	Name   string
	Lang   string
	Gender string
}

// Ident returns the identifier used to request the voice.
func (v Voice) Ident() string {
	if v.ID != "" {
		return v.ID
	}
	return v.Name
}

// Female reports whether the voice is marked as female.
func (v Voice) Female() bool {
	g := strings.ToLower(v.Gender)
	return g == "f" || g == "female" || strings.Contains(strings.ToLower(v.Name), "female")
}

// Synthesizer is the consumed text-to-speech capability.
type Synthesizer interface {
	// Speak blocks until text has been spoken or ctx is cancelled.
	Speak(ctx context.Context, text string) error
	// Stop interrupts any speech in progress.
	Stop()
	// Supported reports whether speech can be produced on this host.
	Supported() bool
	// Voices lists the installed voices.
	Voices(ctx context.Context) ([]Voice, error)
}

// SelectVoice picks a voice by preference: a female voice for locale, any
// voice for locale, any voice sharing the locale's language, then the first
// voice.
func SelectVoice(voices []Voice, locale string) (Voice, bool) {
	if len(voices) == 0 {
		return Voice{}, false
	}
	locale = strings.ToLower(locale)
	lang, _, _ := strings.Cut(locale, "-")
	matchesLocale := func(v Voice) bool {
		return strings.EqualFold(v.Lang, locale)
	}
	matchesLang := func(v Voice) bool {
		l := strings.ToLower(v.Lang)
		return l == lang || strings.HasPrefix(l, lang+"-")
	}
	preferences := []func(Voice) bool{
		func(v Voice) bool { return matchesLocale(v) && v.Female() },
		matchesLocale,
		func(v Voice) bool { return matchesLang(v) && v.Female() },
		matchesLang,
	}
	for _, want := range preferences {
		for _, v := range voices {
			if want(v) {
				return v, true
			}
		}
	}
	return voices[0], true
}
