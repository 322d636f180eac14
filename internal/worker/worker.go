// Package worker runs rescan jobs against the snapshot store.
package worker

import (
	"context"
	"time"

	"github.com/raoulx24/snapkeeper/internal/logging"
	"github.com/raoulx24/snapkeeper/internal/mailbox"
	"github.com/raoulx24/snapkeeper/internal/metrics"
)

// Store is the part of the snapshot store the worker drives.
type Store interface {
	Rescan(ctx context.Context) error
	EnforceRetention(ctx context.Context) ([]uint64, error)
}

// Worker takes jobs from the mailbox and refreshes the store.
type Worker struct {
	store Store
	log   logging.Logger
	mb    *mailbox.Mailbox[Job]
}

// New creates a worker reading from mb.
func New(store Store, log logging.Logger, mb *mailbox.Mailbox[Job]) *Worker {
	log.Debug("creating worker")
	return &Worker{
		store: store,
		log:   log.With("component", "worker"),
		mb:    mb,
	}
}

// Serve runs the worker loop until ctx ends. A job already taken when
// ctx ends is completed first.
func (w *Worker) Serve(ctx context.Context) error {
	w.log.Info("starting worker")
	for {
		job, ok := w.mb.Take(ctx)
		if !ok {
			w.log.Info("worker stopped")
			return ctx.Err()
		}
		if err := w.Handle(context.WithoutCancel(ctx), job); err != nil {
			w.log.Error("rescan job failed", "reason", job.Reason, "error", err)
		}
	}
}

// Handle rescans the store and then applies retention.
func (w *Worker) Handle(ctx context.Context, job Job) error {
	metrics.JobsTotal.WithLabelValues(job.Reason).Inc()
	w.log.Debug("handling job", "reason", job.Reason, "waited", time.Since(job.Requested))

	if err := w.store.Rescan(ctx); err != nil {
		return err
	}

	evicted, err := w.store.EnforceRetention(ctx)
	if len(evicted) > 0 {
		w.log.Info("retention applied", "evicted", len(evicted))
	}
	return err
}

// String names the service for the supervisor.
func (w *Worker) String() string { return "rescan-worker" }
