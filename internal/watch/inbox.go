// Package watch feeds recordings dropped into an inbox directory to a handler,
// one at a time, and files them under processed/ or failed/ afterwards.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/josephgoksu/voiceboard/internal/audio"
)

// Subdirectories that receive handled files.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// DefaultDebounce is the quiet period after the last write before a file is
// considered complete.
const DefaultDebounce = 750 * time.Millisecond

// Handler processes one recording.
type Handler func(ctx context.Context, path string) error

// Config configures an Inbox.
type Config struct {
	Dir      string
	Debounce time.Duration
	Handler  Handler
	Logger   *slog.Logger
}

// Outcome is reported for every file the inbox finishes.
type Outcome struct {
	Path    string // original location
	MovedTo string
	Err     error
}

// Inbox watches one directory (not recursive).
type Inbox struct {
	dir      string
	debounce time.Duration
	handler  Handler
	logger   *slog.Logger

	mu      sync.Mutex
	timers  map[string]*time.Timer
	done    <-chan struct{}
	queue   chan string
	results chan Outcome
}

// New validates cfg and creates the processed/ and failed/ directories.
func New(cfg Config) (*Inbox, error) {
	if cfg.Handler == nil {
		return nil, errors.New("watch: handler is required")
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch: inbox directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch: %s is not a directory", cfg.Dir)
	}
	for _, sub := range []string{ProcessedDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(cfg.Dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("watch: create %s: %w", sub, err)
		}
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{
		dir:      cfg.Dir,
		debounce: debounce,
		handler:  cfg.Handler,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
		queue:    make(chan string, 64),
		results:  make(chan Outcome, 64),
	}, nil
}

// Results delivers an Outcome per finished file. Unread outcomes are dropped.
func (i *Inbox) Results() <-chan Outcome { return i.results }

// Run processes recordings already in the inbox, then watches for new ones
// until ctx is cancelled.
func (i *Inbox) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(i.dir); err != nil {
		return fmt.Errorf("watch %s: %w", i.dir, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	i.mu.Lock()
	i.done = ctx.Done()
	i.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		i.worker(ctx)
	}()
	defer func() {
		cancel()
		i.stopTimers()
		wg.Wait()
	}()

	for _, path := range i.pending() {
		i.schedule(path)
	}
	i.logger.Info("watching inbox", "dir", i.dir, "debounce", i.debounce)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			i.handleEvent(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			i.logger.Warn("watch error", "error", err)
		case <-ctx.Done():
			return nil
		}
	}
}

func (i *Inbox) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if !i.accepts(event.Name) {
		return
	}
	if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
		return
	}
	i.logger.Debug("inbox change", "file", filepath.Base(event.Name), "op", event.Op.String())
	i.schedule(event.Name)
}

func (i *Inbox) accepts(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return filepath.Dir(path) == filepath.Clean(i.dir) && audio.IsAudioFile(name)
}

// schedule (re)starts the quiet-period timer for path.
func (i *Inbox) schedule(path string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if t, ok := i.timers[path]; ok {
		t.Stop()
	}
	done := i.done
	i.timers[path] = time.AfterFunc(i.debounce, func() {
		i.mu.Lock()
		delete(i.timers, path)
		i.mu.Unlock()
		select {
		case i.queue <- path:
		case <-done:
		}
	})
}

func (i *Inbox) stopTimers() {
	i.mu.Lock()
	defer i.mu.Unlock()
	for path, t := range i.timers {
		t.Stop()
		delete(i.timers, path)
	}
}

func (i *Inbox) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-i.queue:
			if _, err := os.Stat(path); err != nil {
				// Already filed or removed.
				continue
			}
			i.process(ctx, path)
		}
	}
}

func (i *Inbox) process(ctx context.Context, path string) {
	i.logger.Info("processing recording", "file", filepath.Base(path))
	err := i.handler(ctx, path)

	dest := ProcessedDir
	if err != nil {
		dest = FailedDir
		i.logger.Warn("recording failed", "file", filepath.Base(path), "error", err)
	}
	movedTo, moveErr := move(path, filepath.Join(i.dir, dest))
	if moveErr != nil {
		i.logger.Error("could not file recording", "file", filepath.Base(path), "error", moveErr)
		err = errors.Join(err, moveErr)
	}

	select {
	case i.results <- Outcome{Path: path, MovedTo: movedTo, Err: err}:
	default:
	}
}

// pending lists the recordings waiting in the inbox, oldest name first.
func (i *Inbox) pending() []string {
	entries, err := os.ReadDir(i.dir)
	if err != nil {
		i.logger.Warn("could not list inbox", "dir", i.dir, "error", err)
		return nil
	}
	var paths []string
	for _, e := range entries {
		path := filepath.Join(i.dir, e.Name())
		if !e.IsDir() && i.accepts(path) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}

// move renames path into dir, prefixing a timestamp when the name is taken.
func move(path, dir string) (string, error) {
	target := filepath.Join(dir, filepath.Base(path))
	if _, err := os.Stat(target); err == nil {
		target = filepath.Join(dir, time.Now().Format("20060102-150405.000")+"-"+filepath.Base(path))
	}
	if err := os.Rename(path, target); err != nil {
		return "", fmt.Errorf("move %s: %w", filepath.Base(path), err)
	}
	return target, nil
}
