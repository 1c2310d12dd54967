// Package watch reruns tests when their sources change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/phuslu/log"
	"golang.org/x/time/rate"

	"github.com/eykd/dgrun/internal/logging"
)

// DefaultDebounce is the minimum spacing between two reruns.
const DefaultDebounce = 500 * time.Millisecond

// Watcher tracks a directory tree and batches the files written or created
// in it.
type Watcher struct {
	root    string
	accept  func(path string) bool
	limiter *rate.Limiter
	fw      *fsnotify.Watcher
	logger  *log.Logger
}

// Options configures New.
type Options struct {
	// Accept filters changed paths; nil accepts every file.
	Accept   func(path string) bool
	Debounce time.Duration
	Logger   *log.Logger
}

// New watches every directory under root except hidden ones. The watches
// are in place when New returns.
func New(root string, opts Options) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		root:    root,
		accept:  opts.Accept,
		limiter: rate.NewLimiter(rate.Every(debounce), 1),
		fw:      fw,
		logger:  logging.OrDiscard(opts.Logger),
	}
	if err := w.addTree(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fw.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}

// Run calls fn with each batch of changed files, sorted, until ctx is done
// or fn fails. It closes the watcher on return.
func (w *Watcher) Run(ctx context.Context, fn func(ctx context.Context, paths []string) error) error {
	defer w.fw.Close()
	w.logger.Info().Str("root", w.root).Msg("watching for changes")

	pending := map[string]struct{}{}
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if !w.note(ev) {
				continue
			}
			pending[ev.Name] = struct{}{}
			if fire == nil {
				fire = time.After(w.limiter.Reserve().Delay())
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("watcher error")
		case <-fire:
			fire = nil
			paths := slices.Sorted(maps.Keys(pending))
			clear(pending)
			w.logger.Debug().Strs("paths", paths).Msg("rerunning")
			if err := fn(ctx, paths); err != nil {
				return err
			}
		}
	}
}

// note reports whether ev names a file to rerun. New directories are added
// to the watch as a side effect.
func (w *Watcher) note(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return false
	}
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn().Err(err).Msg("watching new directory")
			}
			return false
		}
	}
	return w.accept == nil || w.accept(ev.Name)
}
