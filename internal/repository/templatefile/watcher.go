package templatefile

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce groups the bursts of events editors emit on save.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads a Source when its files change.
type Watcher struct {
	source   *Source
	logger   *zap.Logger
	debounce time.Duration
	onReload func(error)
}

// WatcherOption configures Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithReloadHook is called after every reload attempt.
func WithReloadHook(fn func(error)) WatcherOption {
	return func(w *Watcher) { w.onReload = fn }
}

// NewWatcher creates a watcher for source.
func NewWatcher(source *Source, logger *zap.Logger, opts ...WatcherOption) *Watcher {
	w := &Watcher{source: source, logger: logger, debounce: DefaultDebounce}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Run watches until ctx is done. Reload failures are logged and keep the
// previous templates.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	// Watch the directory: editors replace files by rename, which drops
	// a watch on the file itself.
	dir := w.source.Path()
	if !w.source.IsDir() {
		dir = filepath.Dir(dir)
	}
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Info("watching templates", zap.String("path", w.source.Path()))

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			pending = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("template watcher error", zap.Error(err))
		case <-pending:
			pending = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	err := w.source.Reload()
	if err != nil {
		w.logger.Error("reload templates failed, keeping previous set",
			zap.String("path", w.source.Path()), zap.Error(err))
	} else {
		w.logger.Info("templates reloaded", zap.String("path", w.source.Path()))
	}
	if w.onReload != nil {
		w.onReload(err)
	}
}

// relevant reports whether an event can change the loaded templates.
// Chmod, hidden files and unsupported extensions are ignored.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) &&
		!ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if w.source.IsDir() {
		return Supported(base)
	}
	return filepath.Clean(ev.Name) == filepath.Clean(w.source.Path())
}
