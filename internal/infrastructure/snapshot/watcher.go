package snapshot

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/turtacn/substance-resolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/substance-resolver/pkg/errors"
)

// DefaultDebounce is used when a Watcher is created with a zero debounce.
const DefaultDebounce = 500 * time.Millisecond

// Watcher calls a reload function after the watched file changes. Bursts of
// events within the debounce window trigger a single reload.
//
// The parent directory is watched rather than the file itself, so editors
// and deploy tools that replace the file by rename are picked up.
type Watcher struct {
	path     string
	debounce time.Duration
	reload   func(ctx context.Context) error
	logger   logging.Logger
}

// NewWatcher creates a Watcher for path. reload runs on the Watcher's
// goroutine; it is never called concurrently with itself.
func NewWatcher(path string, debounce time.Duration, reload func(ctx context.Context) error, log logging.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		reload:   reload,
		logger:   log.Named("snapshot-watcher"),
	}
}

// Run watches until ctx is cancelled. It returns an error only when the
// watch cannot be established.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create file watcher")
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return errors.Wrap(err, errors.ErrCodeSourceLoadFailed, "failed to watch snapshot directory").
			WithDetail("dir=" + dir)
	}
	w.logger.Info("watching reference snapshot",
		logging.String("path", w.path), logging.Duration("debounce", w.debounce))

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	fire := make(chan struct{}, 1)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !relevant(ev.Op) {
				continue
			}
			w.logger.Debug("snapshot event", logging.String("op", ev.Op.String()))
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
			mu.Unlock()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", logging.Err(err))

		case <-fire:
			if err := w.reload(ctx); err != nil {
				w.logger.Warn("snapshot reload failed", logging.String("path", w.path), logging.Err(err))
				continue
			}
			w.logger.Info("snapshot reloaded", logging.String("path", w.path))
		}
	}
}

func relevant(op fsnotify.Op) bool {
	return op.Has(fsnotify.Write) || op.Has(fsnotify.Create) || op.Has(fsnotify.Rename)
}
