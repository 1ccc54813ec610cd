package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillsmith/pkg/logger"
	"github.com/jingkaihe/skillsmith/pkg/presenter"
	"github.com/jingkaihe/skillsmith/pkg/skills"
	"github.com/jingkaihe/skillsmith/pkg/verify"
)

// WatchConfig holds configuration for the watch command
type WatchConfig struct {
	DebounceTime int
	Strict       bool
	Verbose      bool
}

// NewWatchConfig creates a new WatchConfig with default values
func NewWatchConfig() *WatchConfig {
	return &WatchConfig{
		DebounceTime: 500,
	}
}

// Validate validates the WatchConfig and returns an error if invalid
func (c *WatchConfig) Validate() error {
	if c.DebounceTime < 0 {
		return errors.Errorf("debounce time cannot be negative: %d", c.DebounceTime)
	}
	return nil
}

// FileEvent is a SKILL.md change waiting to be verified
type FileEvent struct {
	Path string
	Op   fsnotify.Op
	Time time.Time
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-verify SKILL.md files whenever they change",
	Long: `Watch the skills directory and re-run verification on every SKILL.md that is
created or modified. Rapid successive writes to the same file are debounced.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		config := getWatchConfigFromFlags(cmd)
		if err := config.Validate(); err != nil {
			presenter.Error(err, "Invalid configuration")
			os.Exit(1)
		}

		verifier, err := newVerifier()
		if err != nil {
			presenter.Error(err, "Invalid verification configuration")
			os.Exit(1)
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			presenter.Warning("Cancellation requested, shutting down...")
			cancel()
		}()

		if err := runWatchMode(ctx, skills.ConfiguredDir(), verifier, config); err != nil {
			presenter.Error(err, "Watch failed")
			os.Exit(1)
		}
	},
}

func init() {
	defaults := NewWatchConfig()
	watchCmd.Flags().IntP("debounce", "d", defaults.DebounceTime, "Debounce time in milliseconds for file change events")
	watchCmd.Flags().Bool("strict", defaults.Strict, "Report warnings as failures")
	watchCmd.Flags().BoolP("verbose", "v", defaults.Verbose, "Also report skills that pass")
}

// getWatchConfigFromFlags extracts watch configuration from command flags
func getWatchConfigFromFlags(cmd *cobra.Command) *WatchConfig {
	config := NewWatchConfig()
	if debounceTime, err := cmd.Flags().GetInt("debounce"); err == nil {
		config.DebounceTime = debounceTime
	}
	if strict, err := cmd.Flags().GetBool("strict"); err == nil {
		config.Strict = strict
	}
	if verbose, err := cmd.Flags().GetBool("verbose"); err == nil {
		config.Verbose = verbose
	}
	return config
}

func runWatchMode(ctx context.Context, dir string, verifier *verify.Verifier, config *WatchConfig) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer watcher.Close()

	events := make(chan FileEvent)
	debouncedEvents := make(chan FileEvent)
	go debounceFileEvents(ctx, events, debouncedEvents, time.Duration(config.DebounceTime)*time.Millisecond)

	go func() {
		for {
			select {
			case event := <-debouncedEvents:
				logger.G(ctx).WithField("file", event.Path).WithField("operation", event.Op.String()).Debug("skill change detected")
				result := verifier.VerifyFile(ctx, event.Path)
				reportWatchResult(result, config)
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Create != 0 {
					// New skill directories need watching too
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						if err := addWatchDirs(ctx, watcher, event.Name); err != nil {
							logger.G(ctx).WithError(err).WithField("directory", event.Name).Warn("failed to watch new directory")
						}
						continue
					}
				}
				if !isSkillFileEvent(event) {
					continue
				}
				select {
				case events <- FileEvent{Path: event.Name, Op: event.Op, Time: time.Now()}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.G(ctx).WithError(err).Error("error watching files")
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := addWatchDirs(ctx, watcher, dir); err != nil {
		return errors.Wrapf(err, "failed to watch %s", dir)
	}

	presenter.Info(fmt.Sprintf("Watching %s for SKILL.md changes... Press Ctrl+C to stop", dir))
	<-ctx.Done()
	return nil
}

// isSkillFileEvent reports whether event is a write or create of a SKILL.md
func isSkillFileEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}
	return filepath.Base(event.Name) == skills.FileName
}

// addWatchDirs adds root and every directory below it to the watcher,
// skipping hidden directories such as the .optimizer data directory.
func addWatchDirs(ctx context.Context, watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && len(d.Name()) > 1 && d.Name()[0] == '.' {
			return filepath.SkipDir
		}
		logger.G(ctx).WithField("directory", path).Debug("adding directory to watcher")
		return watcher.Add(path)
	})
}

func reportWatchResult(result *verify.Result, config *WatchConfig) {
	stamp := time.Now().Format("15:04:05")
	if result.Passes(config.Strict) && len(result.Issues) == 0 {
		if config.Verbose {
			presenter.Success(fmt.Sprintf("%s %s passes", stamp, result.SkillName))
		}
		return
	}
	if result.Passes(config.Strict) {
		presenter.Info(fmt.Sprintf("%s %s passes with %d findings", stamp, result.SkillName, len(result.Issues)))
	} else {
		presenter.Warning(fmt.Sprintf("%s %s fails verification", stamp, result.SkillName))
	}
	for _, issue := range result.Issues {
		presenter.Issue(string(issue.Severity), string(issue.Code), issue.Message, issue.Line)
	}
}

// debounceFileEvents forwards the last event per path once no further event
// for that path arrives within delay.
func debounceFileEvents(ctx context.Context, input <-chan FileEvent, output chan<- FileEvent, delay time.Duration) {
	pending := make(map[string]*time.Timer)
	fired := make(chan FileEvent)

	stopAll := func() {
		for _, timer := range pending {
			timer.Stop()
		}
	}

	for {
		select {
		case event, ok := <-input:
			if !ok {
				stopAll()
				return
			}
			if timer, exists := pending[event.Path]; exists {
				timer.Stop()
			}
			eventCopy := event
			pending[event.Path] = time.AfterFunc(delay, func() {
				select {
				case fired <- eventCopy:
				case <-ctx.Done():
				}
			})
		case event := <-fired:
			delete(pending, event.Path)
			select {
			case output <- event:
			case <-ctx.Done():
				stopAll()
				return
			}
		case <-ctx.Done():
			stopAll()
			return
		}
	}
}
