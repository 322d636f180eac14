package watcher

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchChanges posts a rescan job once the root directory has been quiet
// for the debounce window and the most recently created folder has
// stopped growing.
func (w *Watcher) watchChanges(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	w.mu.RLock()
	root := w.root
	w.mu.RUnlock()

	if err := fw.Add(root); err != nil {
		return err
	}
	w.log.Info("watching for snapshot folders", "root", root)

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending string // newest created entry, checked for stability
	)
	arm := func() {
		d := w.debounceWindow()
		if timer == nil {
			timer = time.NewTimer(d)
		} else {
			timer.Reset(d)
		}
		fire = timer.C
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				w.log.Error("events channel closed")
				return nil
			}
			if !relevant(ev) {
				continue
			}
			w.log.Debug("event", "name", ev.Name, "op", ev.Op.String())
			if ev.Has(fsnotify.Create) {
				pending = ev.Name
			}
			arm()

		case <-fire:
			fire = nil
			if pending != "" {
				stable, err := w.isFolderStable(ctx, pending)
				if err != nil {
					// gone or unreadable; the rescan will sort it out
					w.log.Debug("stability check failed", "path", pending, "error", err)
				} else if !stable {
					arm()
					continue
				}
			}
			pending = ""
			w.post("fsnotify")

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("fsnotify error", "error", err)
		}
	}
}

// relevant keeps events that can change the set of snapshot folders.
func relevant(ev fsnotify.Event) bool {
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}

func (w *Watcher) debounceWindow() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.debounce
}
