// Package watcher re-runs a batch whenever sidecars or videos land in the
// input directory.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Options contains watcher settings.
type Options struct {
	Debounce        time.Duration // Quiet period per file before its stability check
	StableThreshold time.Duration // Time a file's size must stay unchanged
	IgnorePatterns  []string      // Glob patterns to ignore (e.g., "*.part")
	Extensions      []string      // Extensions that trigger a cycle, e.g. ".json", ".mp4"
	Recursive       bool          // Watch subdirectories, including ones created later
}

// DefaultOptions returns Options with a 2s debounce and a 1s stability threshold.
func DefaultOptions() Options {
	return Options{
		Debounce:        2 * time.Second,
		StableThreshold: time.Second,
		IgnorePatterns:  DefaultIgnorePatterns(),
		Extensions:      []string{".json", ".mp4"},
	}
}

// CycleResult is what one batch run reports back to the watcher.
type CycleResult struct {
	Tagged  int
	Skipped int
	Failed  int
}

// BatchHandler re-plans and processes the whole input directory.
type BatchHandler func(ctx context.Context) (CycleResult, error)

// WatchSummary contains stats from the watch session.
type WatchSummary struct {
	Cycles   int
	Tagged   int
	Skipped  int
	Failed   int
	Errors   int // cycles whose handler returned an error
	Duration time.Duration
}

// Watcher monitors directories and runs the handler once per burst of
// relevant changes. Cycles never overlap; requests that arrive while a cycle
// runs collapse into a single follow-up cycle.
type Watcher struct {
	opts      Options
	handler   BatchHandler
	log       *zap.Logger
	fsWatcher *fsnotify.Watcher
	filter    *FileFilter
	debouncer *Debouncer
	stability *StabilityChecker
	requests  chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startTime time.Time

	mu      sync.Mutex
	summary WatchSummary
}

// New creates a Watcher. A nil logger disables logging.
func New(opts Options, handler BatchHandler, log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	w := &Watcher{
		opts:      opts,
		handler:   handler,
		log:       log,
		filter:    NewFileFilter(opts.IgnorePatterns, opts.Extensions),
		stability: NewStabilityChecker(opts.StableThreshold),
		requests:  make(chan struct{}, 1),
	}
	w.debouncer = NewDebouncer(opts.Debounce, w.settle)
	return w
}

// Start begins watching dirs. The watcher runs until ctx is cancelled or Stop
// is called.
func (w *Watcher) Start(ctx context.Context, dirs []string) error {
	var err error
	w.fsWatcher, err = fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	for _, dir := range dirs {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			w.fsWatcher.Close()
			return err
		}
		if err := w.addTree(absDir); err != nil {
			w.fsWatcher.Close()
			return err
		}
	}

	w.startTime = time.Now()
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(2)
	go w.processEvents()
	go w.runCycles()

	return nil
}

// Trigger requests a cycle without waiting for a file event.
func (w *Watcher) Trigger() {
	select {
	case w.requests <- struct{}{}:
	default:
	}
}

// Stop shuts the watcher down, waits for a running cycle to finish and
// returns a summary of the session.
func (w *Watcher) Stop() *WatchSummary {
	if w.cancel != nil {
		w.cancel()
	}
	w.debouncer.CancelAll()
	w.wg.Wait()

	if w.fsWatcher != nil {
		w.fsWatcher.Close()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	summary := w.summary
	summary.Duration = time.Since(w.startTime)
	return &summary
}

// addTree watches dir and, when recursive, every non-hidden directory below it.
func (w *Watcher) addTree(dir string) error {
	if !w.opts.Recursive {
		return w.fsWatcher.Add(dir)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	if w.opts.Recursive && event.Has(fsnotify.Create) && isDir(event.Name) {
		if err := w.addTree(event.Name); err != nil {
			w.log.Warn("failed to watch new directory", zap.String("path", event.Name), zap.Error(err))
		}
		return
	}

	if !w.filter.IsRelevant(event.Name) {
		w.log.Debug("ignoring file", zap.String("path", event.Name))
		return
	}
	w.debouncer.Add(event.Name)
}

// settle runs once a path has been quiet for the debounce delay.
func (w *Watcher) settle(path string) {
	if w.ctx.Err() != nil {
		return
	}
	err := w.stability.WaitForStable(w.ctx, path)
	switch {
	case err == nil:
		w.Trigger()
	case errors.Is(err, ErrFileNotFound):
		w.log.Debug("file vanished before settling", zap.String("path", path))
	case errors.Is(err, context.Canceled):
	default:
		w.log.Warn("file did not settle", zap.String("path", path), zap.Error(err))
	}
}

func (w *Watcher) runCycles() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.requests:
			w.runCycle()
		}
	}
}

func (w *Watcher) runCycle() {
	if w.handler == nil {
		return
	}
	result, err := w.handler(w.ctx)

	w.mu.Lock()
	w.summary.Cycles++
	w.summary.Tagged += result.Tagged
	w.summary.Skipped += result.Skipped
	w.summary.Failed += result.Failed
	if err != nil {
		w.summary.Errors++
	}
	w.mu.Unlock()

	if err != nil {
		w.log.Error("batch cycle failed", zap.Error(err))
		return
	}
	w.log.Info("batch cycle complete",
		zap.Int("tagged", result.Tagged),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
}

// IsRunning returns true if the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	return w.ctx != nil && w.ctx.Err() == nil
}
