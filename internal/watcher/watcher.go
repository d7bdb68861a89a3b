// Package watcher contains the service that starts rebuild cycles when the
// filter or user-rule files change.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AdguardTeam/AdGuardCB/internal/cycle"
	"github.com/AdguardTeam/AdGuardCB/internal/errcoll"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/fsnotify/fsnotify"
)

// Runner queues rebuild cycles.  [cycle.Orchestrator] implements it.
type Runner interface {
	// RunCycle queues a cycle described by req and returns immediately.
	RunCycle(ctx context.Context, req *cycle.Request, onComplete func(err error))
}

// Watcher watches directories, including their subdirectories, and queues a
// cycle once the changes within them have settled.
type Watcher struct {
	logger   *slog.Logger
	runner   Runner
	errColl  errcoll.Interface
	fsw      *fsnotify.Watcher
	done     chan struct{}
	stopped  chan struct{}
	dirs     []string
	debounce time.Duration
}

// Config is the configuration structure for [Watcher].
type Config struct {
	// Logger is used for logging the operation of the watcher.  It must not be
	// nil.
	Logger *slog.Logger

	// Runner queues the cycles.  It must not be nil.
	Runner Runner

	// ErrColl is used to collect the failed cycles.  It must not be nil.
	ErrColl errcoll.Interface

	// Dirs are the directories to watch.  Their subdirectories, except for the
	// hidden ones, are watched as well.  Empty strings are ignored.
	Dirs []string

	// Debounce is the time without changes after which a cycle is queued.  It
	// must be positive.
	Debounce time.Duration
}

// New returns a new properly initialized *Watcher.  c must not be nil.
func New(c *Config) (w *Watcher, err error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	dirs := make([]string, 0, len(c.Dirs))
	for _, d := range c.Dirs {
		if d != "" {
			dirs = append(dirs, d)
		}
	}

	return &Watcher{
		logger:   c.Logger,
		runner:   c.Runner,
		errColl:  c.ErrColl,
		fsw:      fsw,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		dirs:     dirs,
		debounce: c.Debounce,
	}, nil
}

// type check
var _ service.Interface = (*Watcher)(nil)

// Start implements the [service.Interface] interface for *Watcher.  It must
// only be called once.
func (w *Watcher) Start(ctx context.Context) (err error) {
	for _, d := range w.dirs {
		err = w.addTree(d)
		if err != nil {
			return err
		}
	}

	go w.watch(context.WithoutCancel(ctx))

	w.logger.InfoContext(ctx, "started", "dirs", w.dirs, "debounce", w.debounce)

	return nil
}

// Shutdown implements the [service.Interface] interface for *Watcher.  It must
// only be called after a successful call to [Watcher.Start].
func (w *Watcher) Shutdown(ctx context.Context) (err error) {
	close(w.done)

	select {
	case <-w.stopped:
		// Go on.
	case <-ctx.Done():
		err = fmt.Errorf("waiting for watcher: %w", ctx.Err())
	}

	closeErr := w.fsw.Close()
	if closeErr != nil {
		closeErr = fmt.Errorf("closing fsnotify watcher: %w", closeErr)
	}

	return errors.Join(err, closeErr)
}

// watch processes the events until shutdown.  It is intended to be used as a
// goroutine.
func (w *Watcher) watch(ctx context.Context) {
	defer close(w.stopped)
	defer slogutil.RecoverAndLog(ctx, w.logger)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			if isRelevant(ev) {
				w.logger.DebugContext(ctx, "change detected", "path", ev.Name, "op", ev.Op)
				w.handleCreate(ctx, ev)
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}

			errcoll.Collect(ctx, w.errColl, w.logger, "watching files", err)
		case <-timer.C:
			w.logger.InfoContext(ctx, "files changed, queueing cycle")
			w.runner.RunCycle(ctx, &cycle.Request{}, func(err error) {
				w.handleCycle(ctx, err)
			})
		}
	}
}

// addTree watches root and all directories within it, except for the hidden
// ones.
func (w *Watcher) addTree(root string) (err error) {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) (err error) {
		if walkErr != nil {
			return fmt.Errorf("walking %q: %w", path, walkErr)
		}

		if !d.IsDir() {
			return nil
		} else if path != root && isHidden(path) {
			return fs.SkipDir
		}

		err = w.fsw.Add(path)
		if err != nil {
			return fmt.Errorf("watching %q: %w", path, err)
		}

		return nil
	})
}

// handleCreate starts watching the directory created in ev, if any.
func (w *Watcher) handleCreate(ctx context.Context, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) {
		return
	}

	fi, err := os.Lstat(ev.Name)
	if err != nil || !fi.IsDir() {
		// The file may be gone already, which is reported by another event.
		return
	}

	err = w.addTree(ev.Name)
	if err != nil {
		errcoll.Collect(ctx, w.errColl, w.logger, "watching new directory", err)
	}
}

// handleCycle reports the result of a cycle queued by w.
func (w *Watcher) handleCycle(ctx context.Context, err error) {
	if err == nil {
		return
	} else if errors.Is(err, cycle.ErrShutdown) {
		w.logger.DebugContext(ctx, "cycle dropped on shutdown")

		return
	}

	errcoll.Collect(ctx, w.errColl, w.logger, "running cycle after change", err)
}

// isRelevant returns true if ev should trigger a cycle.  Permission changes
// and hidden files, including the temporary files of atomic writes, are
// ignored.
func isRelevant(ev fsnotify.Event) (ok bool) {
	if ev.Op == fsnotify.Chmod {
		return false
	}

	return !isHidden(ev.Name)
}

// isHidden returns true if the base name of path starts with a dot.
func isHidden(path string) (ok bool) {
	return strings.HasPrefix(filepath.Base(path), ".")
}
