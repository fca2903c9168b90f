package recognition

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// CommandConfig configures a CommandRecognizer.
type CommandConfig struct {
	// Command is the transcriber command line, split on whitespace.
	Command string
	// Lang is passed to the transcriber as PRONOUNCE_LANG.
	Lang string
	// Logger receives diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// CommandRecognizer runs an external transcriber and reads one event per
// stdout line:
//
//	partial: <text>   interim segment
//	final: <text>     final segment
//	error: <kind>     recognizer error, e.g. "error: no-speech"
//	<text>            final segment
//
// Process start emits EventStarted and process exit emits EventEnded.
type CommandRecognizer struct {
	args []string
	lang string
	log  *slog.Logger

	events chan Event

	mu  sync.Mutex
	run int
	cmd *exec.Cmd
}

// NewCommandRecognizer validates cfg and looks up the transcriber binary.
func NewCommandRecognizer(cfg CommandConfig) (*CommandRecognizer, error) {
	args := strings.Fields(cfg.Command)
	if len(args) == 0 {
		return nil, ErrUnsupported
	}
	if _, err := exec.LookPath(args[0]); err != nil {
		return nil, fmt.Errorf("failed to find transcriber %q: %w", args[0], errors.Join(ErrUnsupported, err))
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &CommandRecognizer{
		args:   args,
		lang:   cfg.Lang,
		log:    log.With("component", "transcriber"),
		events: make(chan Event, 64),
	}, nil
}

// Events returns the event stream.
func (r *CommandRecognizer) Events() <-chan Event {
	return r.events
}

// Start launches a new transcriber process, ending any previous one.
func (r *CommandRecognizer) Start() error {
	r.mu.Lock()
	if r.cmd != nil {
		r.killLocked()
	}
	cmd := exec.Command(r.args[0], r.args[1:]...)
	cmd.Env = append(os.Environ(), "PRONOUNCE_LANG="+r.lang)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("failed to create transcriber stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("failed to start transcriber: %w", err)
	}
	r.run++
	run := r.run
	r.cmd = cmd
	r.mu.Unlock()

	r.log.Debug("transcriber started", "pid", cmd.Process.Pid, "run", run)
	r.emit(run, Event{Type: EventStarted})
	go r.read(run, cmd, stdout)
	return nil
}

// Stop asks the transcriber to finish. Buffered results still arrive
// before EventEnded.
func (r *CommandRecognizer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd == nil || r.cmd.Process == nil {
		return nil
	}
	if err := r.cmd.Process.Signal(os.Interrupt); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return fmt.Errorf("failed to stop transcriber: %w", err)
	}
	return nil
}

func (r *CommandRecognizer) killLocked() {
	if r.cmd.Process != nil {
		if err := r.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			r.log.Warn("failed to kill transcriber", "err", err)
		}
	}
	r.cmd = nil
}

func (r *CommandRecognizer) read(run int, cmd *exec.Cmd, stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		ev, ok := ParseLine(scanner.Text())
		if !ok {
			continue
		}
		r.emit(run, ev)
	}
	if err := scanner.Err(); err != nil {
		r.log.Warn("failed to read transcriber output", "err", err)
	}
	if err := cmd.Wait(); err != nil {
		r.log.Debug("transcriber exited", "err", err, "run", run)
	}
	r.mu.Lock()
	if r.run == run {
		r.cmd = nil
	}
	r.mu.Unlock()
	r.emit(run, Event{Type: EventEnded})
}

// emit drops events from a process that a newer Start replaced.
func (r *CommandRecognizer) emit(run int, ev Event) {
	r.mu.Lock()
	current := r.run == run
	r.mu.Unlock()
	if !current {
		return
	}
	r.events <- ev
}

// ParseLine converts one transcriber output line into an event.
func ParseLine(line string) (Event, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Event{}, false
	}
	prefix, rest, found := strings.Cut(line, ":")
	if found {
		rest = strings.TrimSpace(rest)
		switch strings.ToLower(strings.TrimSpace(prefix)) {
		case "partial":
			return Event{Type: EventResult, Segments: []Segment{{Text: rest, IsFinal: false}}}, true
		case "final":
			if rest == "" {
				return Event{}, false
			}
			return Event{Type: EventResult, Segments: []Segment{{Text: rest, IsFinal: true}}}, true
		case "error":
			return Event{Type: EventError, Err: ParseErrorKind(rest)}, true
		}
	}
	return Event{Type: EventResult, Segments: []Segment{{Text: line, IsFinal: true}}}, true
}
