package watcher

import (
	"time"

	"github.com/raoulx24/snapkeeper/internal/config"
)

// UpdateConfig applies a reloaded rescan configuration. A new period
// replaces the running schedule immediately; a new watch mode is only
// picked up when the watcher restarts.
func (w *Watcher) UpdateConfig(cfg config.RescanConfig) {
	w.mu.Lock()
	defer w.mu.Unlock()

	period := time.Duration(cfg.Period) * time.Second
	if period != w.period {
		w.period = period
		w.reschedule()
		w.log.Info("rescan period updated", "period", period)
	}
	if cfg.Watch.Mode != w.mode {
		w.log.Warn("watch mode change takes effect on restart", "current", w.mode, "configured", cfg.Watch.Mode)
	}

	w.debounce = cfg.Watch.DebounceWindow
	w.stability = cfg.Watch.StabilityWindow
}
