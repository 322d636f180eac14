// Package watcher decides when the backup directory gets rescanned. A
// fixed schedule always runs; filesystem notifications add early rescans
// when a snapshot folder appears or disappears.
package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/raoulx24/snapkeeper/internal/config"
	"github.com/raoulx24/snapkeeper/internal/fsprobe"
	"github.com/raoulx24/snapkeeper/internal/logging"
	"github.com/raoulx24/snapkeeper/internal/mailbox"
	"github.com/raoulx24/snapkeeper/internal/worker"
)

// probeWait bounds how long auto mode waits for a probe event.
var probeWait = 200 * time.Millisecond

// Watcher posts rescan jobs into the worker mailbox.
type Watcher struct {
	mu sync.RWMutex

	root      string
	period    time.Duration
	mode      string
	debounce  time.Duration
	stability time.Duration

	sched *cron.Cron
	entry cron.EntryID

	log logging.Logger
	mb  *mailbox.Mailbox[worker.Job]
}

// New creates a watcher for root from the rescan configuration.
func New(cfg config.RescanConfig, root string, log logging.Logger, mb *mailbox.Mailbox[worker.Job]) *Watcher {
	return &Watcher{
		root:      root,
		period:    time.Duration(cfg.Period) * time.Second,
		mode:      cfg.Watch.Mode,
		debounce:  cfg.Watch.DebounceWindow,
		stability: cfg.Watch.StabilityWindow,
		log:       log.With("component", "watcher"),
		mb:        mb,
	}
}

// Serve runs the rescan schedule and, depending on the watch mode, the
// change notifier until ctx ends.
func (w *Watcher) Serve(ctx context.Context) error {
	sched := w.startSchedule()
	defer func() {
		<-sched.Stop().Done()
		w.mu.Lock()
		w.sched = nil
		w.mu.Unlock()
	}()

	w.mu.RLock()
	mode := w.mode
	root := w.root
	w.mu.RUnlock()

	switch mode {
	case "off":
		<-ctx.Done()
		return nil

	case "fsnotify":
		return w.watchChanges(ctx)

	case "auto":
		res := fsprobe.Probe(root, probeWait)
		if res.FsnotifySupported {
			return w.watchChanges(ctx)
		}
		w.log.Warn("change notifications disabled, relying on schedule", "reason", res.Reason)
		<-ctx.Done()
		return nil

	default:
		return fmt.Errorf("unknown watch mode %q", mode)
	}
}

func (w *Watcher) String() string { return "watcher" }

func (w *Watcher) post(reason string) {
	w.log.Debug("rescan requested", "reason", reason)
	w.mb.Put(worker.NewJob(reason))
}
