package speech

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Default playback timing.
const (
	DefaultBackupTimeout = 5 * time.Second
	DefaultFallbackDelay = 500 * time.Millisecond
)

// PlayerConfig configures a Player.
type PlayerConfig struct {
	// BackupTimeout completes playback if the synthesizer never returns.
	BackupTimeout time.Duration
	// FallbackDelay completes playback when synthesis is unsupported.
	FallbackDelay time.Duration
	Clock         clockwork.Clock
	Logger        *slog.Logger
}

// Player gives a synthesizer a callback contract: every Speak call invokes
// its done callback exactly once, whether speech finishes, fails, times out
// or is unsupported.
type Player struct {
	syn           Synthesizer
	clk           clockwork.Clock
	log           *slog.Logger
	backupTimeout time.Duration
	fallbackDelay time.Duration

	mu sync.Mutex
	wg sync.WaitGroup
}

// NewPlayer wraps syn. syn may be nil for hosts without synthesis.
func NewPlayer(syn Synthesizer, cfg PlayerConfig) *Player {
	if cfg.BackupTimeout <= 0 {
		cfg.BackupTimeout = DefaultBackupTimeout
	}
	if cfg.FallbackDelay <= 0 {
		cfg.FallbackDelay = DefaultFallbackDelay
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Player{
		syn:           syn,
		clk:           cfg.Clock,
		log:           cfg.Logger.With("component", "player"),
		backupTimeout: cfg.BackupTimeout,
		fallbackDelay: cfg.FallbackDelay,
	}
}

// Supported reports whether real speech will be produced.
func (p *Player) Supported() bool {
	return p.syn != nil && p.syn.Supported()
}

// Speak starts speaking text and returns immediately. done runs once when
// playback ends, on the goroutine that ended it. Any previous utterance is
// interrupted.
func (p *Player) Speak(text string, done func()) {
	var once sync.Once
	complete := func() {
		once.Do(func() {
			if done != nil {
				done()
			}
		})
	}

	if !p.Supported() {
		p.log.Debug("speech unsupported; completing after fallback delay", "text", text)
		p.clk.AfterFunc(p.fallbackDelay, complete)
		return
	}

	p.mu.Lock()
	p.syn.Stop()
	p.mu.Unlock()

	backup := p.clk.AfterFunc(p.backupTimeout, func() {
		p.log.Warn("speech timed out", "text", text)
		p.syn.Stop()
		complete()
	})
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		err := p.syn.Speak(context.Background(), text)
		backup.Stop()
		if err != nil && !errors.Is(err, context.Canceled) {
			p.log.Warn("speech failed", "text", text, "err", err)
		}
		complete()
	}()
}

// Stop interrupts the current utterance. Its done callback still runs.
func (p *Player) Stop() {
	if p.syn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.syn.Stop()
}

// Wait blocks until every started utterance goroutine has returned.
func (p *Player) Wait() {
	p.wg.Wait()
}
