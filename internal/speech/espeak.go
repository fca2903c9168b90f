package speech

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

const espeakBaseWPM = 175

// CommandConfig configures a CommandSynthesizer.
type CommandConfig struct {
	// Command is the espeak-compatible binary. Defaults to espeak-ng.
	Command string
	// Voice forces a voice name. Empty selects one by locale.
	Voice string
	// Locale is used for voice selection. Defaults to DefaultLocale.
	Locale string
	// Rate scales the default speaking speed. Defaults to DefaultRate.
	Rate float64
	// Logger receives diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// CommandSynthesizer speaks through an espeak-ng compatible command.
type CommandSynthesizer struct {
	path   string
	voice  string
	locale string
	wpm    int
	log    *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	once   sync.Once
}

// NewCommandSynthesizer looks up the binary. A missing binary yields a
// synthesizer that reports itself unsupported.
func NewCommandSynthesizer(cfg CommandConfig) *CommandSynthesizer {
	if cfg.Command == "" {
		cfg.Command = "espeak-ng"
	}
	if cfg.Locale == "" {
		cfg.Locale = DefaultLocale
	}
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultRate
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	log := cfg.Logger.With("component", "speech")
	path, err := exec.LookPath(cfg.Command)
	if err != nil {
		log.Warn("speech synthesizer not found", "command", cfg.Command, "err", err)
		path = ""
	}
	return &CommandSynthesizer{
		path:   path,
		voice:  cfg.Voice,
		locale: cfg.Locale,
		wpm:    int(math.Round(espeakBaseWPM * cfg.Rate)),
		log:    log,
	}
}

// Supported reports whether the binary was found.
func (s *CommandSynthesizer) Supported() bool {
	return s.path != ""
}

// Voices lists voices reported by the binary.
func (s *CommandSynthesizer) Voices(ctx context.Context) ([]Voice, error) {
	if !s.Supported() {
		return nil, ErrUnsupported
	}
	out, err := exec.CommandContext(ctx, s.path, "--voices").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list voices: %w", err)
	}
	return ParseVoices(bytes.NewReader(out))
}

// Speak runs the binary and waits for it to finish. A new Speak or Stop
// interrupts the previous utterance.
func (s *CommandSynthesizer) Speak(ctx context.Context, text string) error {
	if !s.Supported() {
		return ErrUnsupported
	}
	s.once.Do(s.resolveVoice)

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	voice := s.voice
	s.mu.Unlock()
	defer cancel()

	args := []string{"-s", strconv.Itoa(s.wpm)}
	if voice != "" {
		args = append(args, "-v", voice)
	}
	args = append(args, "--", text)
	cmd := exec.CommandContext(ctx, s.path, args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to speak %q: %w", text, err)
	}
	return nil
}

// Stop interrupts the current utterance.
func (s *CommandSynthesizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *CommandSynthesizer) resolveVoice() {
	s.mu.Lock()
	forced := s.voice
	s.mu.Unlock()
	if forced != "" {
		return
	}
	voices, err := s.Voices(context.Background())
	if err != nil {
		s.log.Warn("failed to load voices; using default voice", "err", err)
		return
	}
	v, ok := SelectVoice(voices, s.locale)
	if !ok {
		return
	}
	s.log.Debug("selected voice", "name", v.Name, "lang", v.Lang)
	s.mu.Lock()
	s.voice = v.Ident()
	s.mu.Unlock()
}

// ParseVoices reads the table printed by espeak-ng --voices:
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 2  en-us           --/M      English_(America)  gmw/en-US     (en 3)
func ParseVoices(r io.Reader) ([]Voice, error) {
	var voices []Voice
	scanner := bufio.NewScanner(r)
	header := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if header {
			header = false
			if strings.HasPrefix(line, "Pty") {
				continue
			}
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		gender := ""
		if _, g, ok := strings.Cut(fields[2], "/"); ok {
			gender = g
		}
		voices = append(voices, Voice{ID: fields[1], Name: fields[3], Lang: fields[1], Gender: gender})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read voices: %w", err)
	}
	if len(voices) == 0 {
		return nil, errors.New("no voices found")
	}
	return voices, nil
}
