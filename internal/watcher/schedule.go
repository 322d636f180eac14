package watcher

import (
	"github.com/robfig/cron/v3"

	"github.com/raoulx24/snapkeeper/internal/logging"
)

// startSchedule starts a cron runner posting a rescan job every period.
// Periods below one second are rounded up by cron.
func (w *Watcher) startSchedule() *cron.Cron {
	cl := cronLogger{log: w.log}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)

	w.mu.Lock()
	w.entry = c.Schedule(cron.Every(w.period), cron.FuncJob(w.scheduled))
	w.sched = c
	period := w.period
	w.mu.Unlock()

	c.Start()
	w.log.Info("rescan schedule started", "period", period)
	return c
}

func (w *Watcher) scheduled() { w.post("schedule") }

// reschedule swaps the cron entry for one using the current period.
// Caller holds w.mu.
func (w *Watcher) reschedule() {
	if w.sched == nil {
		return
	}
	w.sched.Remove(w.entry)
	w.entry = w.sched.Schedule(cron.Every(w.period), cron.FuncJob(w.scheduled))
}

// cronLogger adapts logging.Logger to cron.Logger.
type cronLogger struct {
	log logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
