// Package watch observes a graph description file and reports
// coalesced change notifications, so hosts can re-parse or re-render
// on edit.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the write bursts editors produce when
// saving a file.
const DefaultDebounce = time.Second

// Watcher reports changes to a single file. Events are debounced:
// rapid successive writes collapse into one notification.
type Watcher struct {
	path     string
	debounce time.Duration
	fw       *fsnotify.Watcher
	changes  chan struct{}
	errs     chan error
}

// New watches path. The containing directory is watched rather than
// the file itself, so editors that replace the file on save (rename
// over) keep being observed.
func New(path string, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", filepath.Dir(abs), err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		path:     abs,
		debounce: debounce,
		fw:       fw,
		changes:  make(chan struct{}, 1),
		errs:     make(chan error, 1),
	}
	return w, nil
}

// Changes delivers one value per coalesced modification of the watched
// file. The channel is closed when Run returns.
func (w *Watcher) Changes() <-chan struct{} { return w.changes }

// Run pumps filesystem events until ctx is cancelled or the underlying
// watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.changes)
	defer func() { _ = w.fw.Close() }()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fw.Events:
			if !ok {
				return fmt.Errorf("watcher closed")
			}
			if !w.concerns(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			select {
			case w.changes <- struct{}{}:
			default:
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return fmt.Errorf("watcher closed")
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// concerns reports whether the event touches the watched file with a
// content-affecting operation.
func (w *Watcher) concerns(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	return strings.EqualFold(filepath.Clean(event.Name), w.path)
}
