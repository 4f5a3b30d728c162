// Package watch re-runs project analysis whenever IR files change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/phobologic/surc/internal/analyze"
	"github.com/phobologic/surc/internal/manifest"
)

// DefaultDebounce is how long the IR tree must stay quiet before a re-run.
const DefaultDebounce = 200 * time.Millisecond

// Config configures a Watcher.
type Config struct {
	// ManifestPath is the project manifest; its IR root is watched.
	ManifestPath string

	// Debounce is how long to wait for more changes before re-running.
	Debounce time.Duration

	// Logger for watcher events; also handed to each analysis run.
	Logger *slog.Logger
}

// Callback receives the result of each analysis run. err is non-nil when
// the run could not complete, for example because the manifest is invalid.
type Callback func(r *analyze.Report, err error)

// Watcher watches a project's IR tree.
type Watcher struct {
	config  Config
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	root    string
}

// New creates a watcher for the project at cfg.ManifestPath.
func New(cfg Config) (*Watcher, error) {
	m, err := manifest.Load(cfg.ManifestPath)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	return &Watcher{config: cfg, watcher: fsw, logger: logger, root: m.IRRoot()}, nil
}

// Run analyzes the project once, then again after every debounced burst of
// .toml changes, passing each result to fn. It blocks until ctx is
// cancelled and then returns nil.
func (w *Watcher) Run(ctx context.Context, fn Callback) error {
	defer w.watcher.Close()

	if err := w.addWatchesRecursive(w.root); err != nil {
		return err
	}
	// The manifest may live outside the IR root.
	manifestDir := filepath.Dir(w.config.ManifestPath)
	if err := w.watcher.Add(manifestDir); err != nil {
		w.logger.Warn("Failed to watch manifest directory", slog.String("path", manifestDir), slog.Any("error", err))
	}

	w.logger.Info("File watcher started",
		slog.String("root", w.root),
		slog.Duration("debounce", w.config.Debounce))

	w.analyze(ctx, fn)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.handleFSEvent(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.config.Debounce)
			} else {
				timer.Reset(w.config.Debounce)
			}
			fire = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", slog.Any("error", err))

		case <-fire:
			fire = nil
			w.analyze(ctx, fn)
		}
	}
}

func (w *Watcher) analyze(ctx context.Context, fn Callback) {
	r, err := analyze.Project(ctx, w.config.ManifestPath, analyze.Options{Logger: w.logger})
	if ctx.Err() != nil {
		return
	}
	fn(r, err)
}

// handleFSEvent reports whether event should trigger a re-run. Newly created
// directories are watched as they appear.
func (w *Watcher) handleFSEvent(event fsnotify.Event) bool {
	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addWatchesRecursive(path); err != nil {
				w.logger.Warn("Failed to watch new directory", slog.String("path", path), slog.Any("error", err))
			}
			return false
		}
	}

	if filepath.Ext(path) != ".toml" || strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	if event.Op == fsnotify.Chmod {
		return false
	}

	w.logger.Debug("File change detected", slog.String("path", path), slog.String("op", event.Op.String()))
	return true
}

// addWatchesRecursive adds watches to root and every non-hidden directory
// below it.
func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory", slog.String("path", path), slog.Any("error", err))
		} else {
			w.logger.Debug("Watching directory", slog.String("path", path))
		}
		return nil
	})
}
