// Package main provides the CLI entrypoint for pronounce.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/pronounce/internal/config"
	"github.com/verte-zerg/pronounce/internal/drill"
	"github.com/verte-zerg/pronounce/internal/generator"
	"github.com/verte-zerg/pronounce/internal/logging"
	"github.com/verte-zerg/pronounce/internal/model"
	"github.com/verte-zerg/pronounce/internal/plan"
	"github.com/verte-zerg/pronounce/internal/recognition"
	"github.com/verte-zerg/pronounce/internal/sounds"
	"github.com/verte-zerg/pronounce/internal/speech"
	"github.com/verte-zerg/pronounce/internal/stats"
	"github.com/verte-zerg/pronounce/internal/statsui"
	"github.com/verte-zerg/pronounce/internal/store"
	"github.com/verte-zerg/pronounce/internal/tui"
	"github.com/verte-zerg/pronounce/internal/wordlist"
)

const (
	defaultWords        = 5
	defaultWeakTop      = 3
	defaultWeakFactor   = 2.0
	defaultWeakWindow   = 10
	defaultCurveWindow  = 10
	defaultLang         = "en-US"
	defaultSynthCommand = "espeak-ng"
	defaultLogLevel     = "info"
	defaultLogFormat    = "text"
	sayTimeout          = 30 * time.Second
)

var (
	practiceWords         int
	practiceMaxAttempts   int
	practiceListenTimeout time.Duration
	practiceFocusWeak     bool
	practiceWeakTop       int
	practiceWeakFactor    float64
	practiceWeakWindow    int

	drillSound     string
	drillWords     string
	drillWordsFile string
	drillResume    bool

	statsSince       string
	statsLast        int
	statsCurveWindow int
	statsText        bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pronounce",
		Short:         "TUI pronunciation trainer",
		Long:          "Record yourself reading aloud, then drill the words that gave you trouble.",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runRecordCmd,
	}
	addPracticeFlags(rootCmd)

	rootCmd.AddCommand(newDrillCmd())
	rootCmd.AddCommand(newSoundsCmd())
	rootCmd.AddCommand(newSayCmd())
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func addPracticeFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&practiceWords, "count", defaultWords, "practice words when nothing else is selected")
	cmd.Flags().IntVar(&practiceMaxAttempts, "max-attempts", drill.DefaultMaxAttempts, "attempts per word")
	cmd.Flags().DurationVar(&practiceListenTimeout, "listen-timeout", drill.DefaultListenTimeout, "silence before a spoken attempt times out")
	cmd.Flags().BoolVar(&practiceFocusWeak, "focus-weak", false, "bias practice words toward weak sounds")
	cmd.Flags().IntVar(&practiceWeakTop, "weak-top", defaultWeakTop, "number of weak sounds to focus on")
	cmd.Flags().Float64Var(&practiceWeakFactor, "weak-factor", defaultWeakFactor, "weight factor for weak sounds")
	cmd.Flags().IntVar(&practiceWeakWindow, "weak-window", defaultWeakWindow, "number of recent drills to compute weak sounds")
}

func loadPracticeConfig(cmd *cobra.Command) (config.FileConfig, model.Config, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, model.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyIntConfig(cmd, "count", &practiceWords, fileCfg.Practice.Words)
	applyIntConfig(cmd, "max-attempts", &practiceMaxAttempts, fileCfg.Practice.MaxAttempts)
	if err := applyDurationConfig(cmd, "listen-timeout", &practiceListenTimeout, fileCfg.Practice.ListenTimeout); err != nil {
		return config.FileConfig{}, model.Config{}, err
	}
	applyBoolConfig(cmd, "focus-weak", &practiceFocusWeak, fileCfg.Practice.FocusWeak)
	applyIntConfig(cmd, "weak-top", &practiceWeakTop, fileCfg.Practice.WeakTop)
	applyFloatConfig(cmd, "weak-factor", &practiceWeakFactor, fileCfg.Practice.WeakFactor)
	applyIntConfig(cmd, "weak-window", &practiceWeakWindow, fileCfg.Practice.WeakWindow)

	cfg := model.Config{
		Words:         practiceWords,
		MaxAttempts:   practiceMaxAttempts,
		ListenTimeout: practiceListenTimeout,
		FocusWeak:     practiceFocusWeak,
		WeakTop:       practiceWeakTop,
		WeakFactor:    practiceWeakFactor,
		WeakWindow:    practiceWeakWindow,
	}
	if err := validateConfig(cfg); err != nil {
		return config.FileConfig{}, model.Config{}, err
	}
	return fileCfg, cfg, nil
}

func runRecordCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, cfg, err := loadPracticeConfig(cmd)
	if err != nil {
		return err
	}
	rt, err := newRuntime(fileCfg, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()
	return rt.runTUI(false)
}

func newDrillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drill",
		Short: "Drill words by sound, list or the last session",
		Args:  cobra.NoArgs,
		RunE:  runDrillCmd,
	}
	addPracticeFlags(cmd)
	cmd.Flags().StringVar(&drillSound, "sound", "", "drill every example word of a sound, e.g. θ or /ʃ/")
	cmd.Flags().StringVar(&drillWords, "words", "", "comma or space separated words to drill")
	cmd.Flags().StringVar(&drillWordsFile, "words-file", "", "file with words to drill ('#' starts a comment)")
	cmd.Flags().BoolVar(&drillResume, "resume", false, "continue the last saved session")
	return cmd
}

func runDrillCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, cfg, err := loadPracticeConfig(cmd)
	if err != nil {
		return err
	}
	words, err := selectedWords(fileLang(fileCfg))
	if err != nil {
		return err
	}

	rt, err := newRuntime(fileCfg, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if drillResume {
		snap, err := rt.st.LoadSession(context.Background())
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no saved session to resume")
		}
		if err != nil {
			return fmt.Errorf("failed to load last session: %w", err)
		}
		if err := rt.engine.Resume(snap); err != nil {
			return fmt.Errorf("failed to resume session: %w", err)
		}
		return rt.runTUI(true)
	}

	if len(words) == 0 {
		words = rt.practice()
	}
	rt.engine.Initialize(words)
	if err := rt.engine.Start(); err != nil {
		return fmt.Errorf("failed to start drill: %w", err)
	}
	return rt.runTUI(true)
}

// selectedWords resolves --sound, --words and --words-file. It returns nil
// when none is set.
func selectedWords(lang string) ([]model.WordRecord, error) {
	if drillSound != "" {
		c, ok := sounds.Category(drillSound)
		if !ok {
			return nil, fmt.Errorf("unknown sound %q (run: pronounce sounds)", drillSound)
		}
		return sounds.Records(c), nil
	}
	var raw []string
	if drillWords != "" {
		raw = append(raw, wordlist.ParseWords(drillWords)...)
	}
	if drillWordsFile != "" {
		fileWords, err := wordlist.LoadWords(drillWordsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load word list: %w", err)
		}
		raw = append(raw, fileWords...)
	}
	if drillWords == "" && drillWordsFile == "" {
		return nil, nil
	}
	kept := wordlist.Filter(raw, wordlist.FilterForLang(lang))
	if len(kept) == 0 {
		return nil, fmt.Errorf("no usable words given")
	}
	if dropped := len(raw) - len(kept); dropped > 0 {
		logErrf("skipped %d word(s) that are not plain %s words\n", dropped, lang)
	}
	return generator.Records(kept), nil
}

// runtime holds the services shared by the interactive commands.
type runtime struct {
	log      *slog.Logger
	closeLog func() error
	st       *store.Store
	session  *recognition.Session
	typed    *recognition.TextRecognizer
	player   *speech.Player
	engine   *drill.Engine
	practice func() []model.WordRecord
	cancel   context.CancelFunc
}

func newRuntime(fileCfg config.FileConfig, cfg model.Config) (*runtime, error) {
	log, closeLog, err := newLogger(fileCfg)
	if err != nil {
		return nil, err
	}
	rt := &runtime{log: log, closeLog: closeLog}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	rt.st = st

	session, typed, err := newSession(fileCfg, log)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.session = session
	rt.typed = typed
	ctx, cancel := context.WithCancel(context.Background())
	rt.cancel = cancel
	go func() {
		if err := session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("recognition loop ended", "err", err)
		}
	}()

	_, player, err := newSpeaker(fileCfg, log)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.player = player

	var capturer drill.Capturer
	if typed == nil {
		capturer = session
	}
	rt.engine = drill.New(drill.Config{
		MaxAttempts:   cfg.MaxAttempts,
		ListenTimeout: cfg.ListenTimeout,
		Capturer:      capturer,
		Speaker:       player,
		Store:         st,
		Logger:        log,
	})
	rt.practice = practiceSource(st, cfg)
	return rt, nil
}

func newLogger(fileCfg config.FileConfig) (*slog.Logger, func() error, error) {
	logCfg := logging.Config{
		Level:  defaultLogLevel,
		Format: defaultLogFormat,
		Path:   config.DefaultLogPath(),
	}
	if fileCfg.Log.Level != nil {
		logCfg.Level = *fileCfg.Log.Level
	}
	if fileCfg.Log.Format != nil {
		logCfg.Format = *fileCfg.Log.Format
	}
	if fileCfg.Log.Path != nil {
		logCfg.Path = *fileCfg.Log.Path
	}
	log, closeLog, err := logging.New(logCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	slog.SetDefault(log)
	return log, closeLog, nil
}

func newSession(fileCfg config.FileConfig, log *slog.Logger) (*recognition.Session, *recognition.TextRecognizer, error) {
	rc := fileCfg.Recognition
	restartDelay, err := config.Duration("recognition.restart-delay", rc.RestartDelay, recognition.DefaultRestartDelay)
	if err != nil {
		return nil, nil, err
	}
	errorBackoff, err := config.Duration("recognition.error-backoff", rc.ErrorBackoff, recognition.DefaultErrorBackoff)
	if err != nil {
		return nil, nil, err
	}
	stopGrace, err := config.Duration("recognition.stop-grace", rc.StopGrace, recognition.DefaultStopGrace)
	if err != nil {
		return nil, nil, err
	}

	var rec recognition.Recognizer
	var typed *recognition.TextRecognizer
	command := ""
	if rc.Command != nil {
		command = strings.TrimSpace(*rc.Command)
	}
	if command != "" {
		cr, err := recognition.NewCommandRecognizer(recognition.CommandConfig{
			Command: command,
			Lang:    fileLang(fileCfg),
			Logger:  log,
		})
		if err != nil {
			logErrf("%v; using keyboard input\n", err)
		} else {
			rec = cr
		}
	}
	if rec == nil {
		if command == "" {
			log.Info("no speech transcriber configured; using keyboard input")
		}
		typed = recognition.NewTextRecognizer()
		rec = typed
	}
	session := recognition.NewSession(rec, recognition.Config{
		RestartDelay: restartDelay,
		ErrorBackoff: errorBackoff,
		StopGrace:    stopGrace,
		Logger:       log,
	})
	return session, typed, nil
}

func newSpeaker(fileCfg config.FileConfig, log *slog.Logger) (*speech.CommandSynthesizer, *speech.Player, error) {
	sc := fileCfg.Speech
	backup, err := config.Duration("speech.backup-timeout", sc.BackupTimeout, speech.DefaultBackupTimeout)
	if err != nil {
		return nil, nil, err
	}
	synthCfg := speech.CommandConfig{
		Command: defaultSynthCommand,
		Locale:  fileLang(fileCfg),
		Logger:  log,
	}
	if sc.Command != nil {
		synthCfg.Command = *sc.Command
	}
	if sc.Voice != nil {
		synthCfg.Voice = *sc.Voice
	}
	if sc.Locale != nil {
		synthCfg.Locale = *sc.Locale
	}
	if sc.Rate != nil {
		synthCfg.Rate = *sc.Rate
	}
	synth := speech.NewCommandSynthesizer(synthCfg)
	player := speech.NewPlayer(synth, speech.PlayerConfig{BackupTimeout: backup, Logger: log})
	return synth, player, nil
}

// practiceSource returns the word picker used when nothing else is selected.
// The weak-sound set is computed once, before the UI takes the terminal.
func practiceSource(st *store.Store, cfg model.Config) func() []model.WordRecord {
	gen := generator.New()
	records := generator.Records(sounds.Words())
	weakSet := map[string]struct{}{}
	if cfg.FocusWeak {
		aggs, err := st.GetWeakSounds(context.Background(), cfg.WeakWindow)
		if err != nil {
			logErrf("failed to load weak sounds: %v\n", err)
		} else {
			weakSet = stats.SelectWeakSounds(aggs, cfg.WeakTop)
			if len(weakSet) == 0 {
				logErrln("no stats available for weak-sound focus yet; using random words")
			}
		}
	}
	return func() []model.WordRecord {
		if len(weakSet) > 0 {
			return gen.PickWeighted(records, cfg.Words, weakSet, cfg.WeakFactor)
		}
		return gen.Pick(records, cfg.Words)
	}
}

func (rt *runtime) runTUI(drilling bool) error {
	m := tui.NewModel(tui.Options{
		Session:  rt.session,
		Typed:    rt.typed,
		Engine:   rt.engine,
		Practice: rt.practice,
		Drilling: drilling,
		Logger:   rt.log,
	})
	defer m.Close()
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	if snap := rt.engine.Snapshot(); len(snap.WordList) > 0 && !snap.Completed {
		logErrf("Progress saved at word %d of %d. Continue with: pronounce drill --resume\n", snap.CurrentIndex+1, len(snap.WordList))
	}
	return nil
}

// Close releases everything newRuntime acquired. It tolerates partially
// built runtimes.
func (rt *runtime) Close() {
	if rt.engine != nil {
		rt.engine.Close()
	}
	if rt.session != nil {
		if err := rt.session.Cancel(); err != nil {
			rt.log.Warn("failed to stop recognition", "err", err)
		}
	}
	if rt.cancel != nil {
		rt.cancel()
	}
	if rt.player != nil {
		rt.player.Stop()
		rt.player.Wait()
	}
	if rt.st != nil {
		if err := rt.st.Close(); err != nil {
			logErrf("failed to close db: %v\n", err)
		}
	}
	if rt.closeLog != nil {
		if err := rt.closeLog(); err != nil {
			logErrf("failed to close log: %v\n", err)
		}
	}
}

func newSoundsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sounds",
		Short: "List practice sounds with hints and example words",
		Args:  cobra.NoArgs,
		RunE:  runSoundsCmd,
	}
}

func runSoundsCmd(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	for _, c := range sounds.Sorted() {
		line := fmt.Sprintf("%s  %s  %s",
			runewidth.FillRight(c.Sound, 6),
			runewidth.FillRight(runewidth.Truncate(c.Hint, 48, "..."), 48),
			strings.Join(c.ExampleWords, ", "),
		)
		if _, err := fmt.Fprintln(out, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newSayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "say <word>...",
		Short: "Speak words with the speech synthesizer",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSayCmd,
	}
}

func runSayCmd(_ *cobra.Command, args []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log, closeLog, err := newLogger(fileCfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeLog(); cerr != nil {
			logErrf("failed to close log: %v\n", cerr)
		}
	}()
	synth, _, err := newSpeaker(fileCfg, log)
	if err != nil {
		return err
	}
	if !synth.Supported() {
		return fmt.Errorf("speech synthesis is not available; install espeak-ng or set [speech] command")
	}
	ctx, cancel := context.WithTimeout(context.Background(), sayTimeout)
	defer cancel()
	for _, word := range args {
		if err := synth.Speak(ctx, word); err != nil {
			return fmt.Errorf("failed to speak %q: %w", word, err)
		}
	}
	return nil
}

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show the current practice plan",
		Args:  cobra.NoArgs,
		RunE:  runPlanCmd,
	}
}

func runPlanCmd(cmd *cobra.Command, _ []string) error {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	out := cmd.OutOrStdout()
	p, err := st.CurrentPlan(context.Background())
	if errors.Is(err, store.ErrNotFound) {
		_, err = fmt.Fprintln(out, "No practice plan yet. Finish a drill with words that need review.")
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to load plan: %w", err)
	}
	start := p.StartDate.Local()
	lines := append([]string{fmt.Sprintf("Practice plan started %s", start.Format("Mon Jan 2 2006"))},
		plan.Lines(&p.PracticePlan, start)...)
	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show drill history",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N drills")
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	cmd.Flags().BoolVar(&statsText, "text", false, "print a plain text report instead of the TUI")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	var sinceTime *time.Time
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	if statsLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	if statsCurveWindow < 1 {
		return fmt.Errorf("--curve-window must be >= 1")
	}

	cfg := model.StatsConfig{
		Since:       sinceTime,
		Last:        statsLast,
		CurveWindow: statsCurveWindow,
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	if statsText {
		return printStats(cmd, st, cfg)
	}
	m := statsui.NewModel(st, cfg)
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func printStats(cmd *cobra.Command, st *store.Store, cfg model.StatsConfig) error {
	report, err := stats.BuildReport(context.Background(), st, cfg)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	out := cmd.OutOrStdout()
	if err := stats.RenderSummary(out, report.Drills); err != nil {
		return err
	}
	if len(report.Drills) == 0 {
		return nil
	}
	if err := stats.RenderTrend(out, report.Drills, cfg.CurveWindow); err != nil {
		return err
	}
	if err := stats.RenderSoundBars(out, report.SoundAggsWindow, stats.TerminalWidth(), stats.ShouldUseColor(out, false)); err != nil {
		return err
	}
	title := fmt.Sprintf("Sounds (last %d drills)", len(report.WindowDrillIDs))
	if err := stats.RenderSoundTable(out, title, report.SoundAggsWindow); err != nil {
		return err
	}
	return stats.RenderSoundTable(out, "Sounds (all drills)", report.SoundAggsAll)
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target *time.Duration, value *string) error {
	if value == nil || cmd.Flags().Changed(name) {
		return nil
	}
	d, err := config.Duration("practice."+name, value, *target)
	if err != nil {
		return err
	}
	*target = d
	return nil
}

func fileLang(fileCfg config.FileConfig) string {
	if fileCfg.Recognition.Lang != nil && *fileCfg.Recognition.Lang != "" {
		return *fileCfg.Recognition.Lang
	}
	return defaultLang
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# pronounce configuration
# Uncomment a value to enable it. CLI flags override config values.

[practice]
# words = %d                 # Practice words when nothing else is selected
# max-attempts = %d          # Attempts per word
# listen-timeout = %q      # Silence before a spoken attempt times out
# focus-weak = false        # Bias practice words toward weak sounds
# weak-top = %d              # Number of weak sounds to focus on
# weak-factor = %.1f         # Weight factor for weak sounds
# weak-window = %d          # Number of recent drills to compute weak sounds

[recognition]
# command = ""              # Transcriber printing "partial: ..." / "final: ..." lines; empty uses keyboard input
# lang = %q            # Language passed to the transcriber and used for voices
# restart-delay = %q     # Wait before restarting after the transcriber exits
# error-backoff = %q        # Wait before retrying after a recoverable error
# stop-grace = %q        # Wait for late results after stopping

[speech]
# command = %q      # espeak-ng compatible synthesizer
# voice = ""                # Force a voice; empty picks one by locale
# locale = %q          # Preferred voice locale
# rate = %.1f                # Speaking speed relative to normal
# backup-timeout = %q       # Give up waiting for speech after this long

[log]
# level = %q             # debug, info, warn or error
# format = %q            # text or json
# path = ""                 # Log file (default %s)
`,
		defaultWords,
		drill.DefaultMaxAttempts,
		drill.DefaultListenTimeout.String(),
		defaultWeakTop,
		defaultWeakFactor,
		defaultWeakWindow,
		defaultLang,
		recognition.DefaultRestartDelay.String(),
		recognition.DefaultErrorBackoff.String(),
		recognition.DefaultStopGrace.String(),
		defaultSynthCommand,
		speech.DefaultLocale,
		speech.DefaultRate,
		speech.DefaultBackupTimeout.String(),
		defaultLogLevel,
		defaultLogFormat,
		config.DefaultLogPath(),
	)
}

func validateConfig(cfg model.Config) error {
	if cfg.Words <= 0 {
		return fmt.Errorf("--count must be > 0")
	}
	if cfg.MaxAttempts <= 0 {
		return fmt.Errorf("--max-attempts must be > 0")
	}
	if cfg.WeakTop < 0 {
		return fmt.Errorf("--weak-top must be >= 0")
	}
	if cfg.WeakFactor < 0 {
		return fmt.Errorf("--weak-factor must be >= 0")
	}
	if cfg.WeakWindow < 0 {
		return fmt.Errorf("--weak-window must be >= 0")
	}
	if cfg.ListenTimeout <= 0 {
		return fmt.Errorf("--listen-timeout must be > 0")
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
