// Package store owns the ordered set of fingerprinted snapshots.
//
// Readers load the published state with a single atomic pointer read.
// Writers never modify a published slice: a rescan or a retention pass
// builds a replacement off to the side and swaps it in with a
// compare-and-swap, so a reader always sees a whole state.
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/raoulx24/snapkeeper/internal/fs"
	"github.com/raoulx24/snapkeeper/internal/logging"
	"github.com/raoulx24/snapkeeper/internal/metrics"
	"github.com/raoulx24/snapkeeper/internal/retention"
	"github.com/raoulx24/snapkeeper/internal/snapshot"
)

// DeletionHook removes the on-disk folder of an evicted snapshot.
type DeletionHook func(ctx context.Context, timestamp uint64) error

// state is one published, immutable view of the store.
type state struct {
	snaps []snapshot.Snapshot
	// seq is the sequence number of the rescan that produced snaps.
	seq uint64
}

// Store holds the snapshots found under root.
type Store struct {
	root string
	fs   fs.FS
	log  logging.Logger
	hook DeletionHook

	budget atomic.Uint64
	seq    atomic.Uint64
	cur    atomic.Pointer[state]
}

// New creates root if needed and performs the initial scan. A nil hook
// removes root/<timestamp>; a nil filesystem means the OS filesystem.
func New(root string, budget uint64, hook DeletionHook, log logging.Logger, filesystem fs.FS) (*Store, error) {
	if filesystem == nil {
		filesystem = fs.New()
	}
	if log == nil {
		log = logging.Nop()
	}

	s := &Store{
		root: root,
		fs:   filesystem,
		log:  log.With("component", "store"),
	}
	s.budget.Store(budget)
	s.cur.Store(&state{})

	if hook == nil {
		hook = s.removeFolder
	}
	s.hook = hook

	if err := s.fs.MkdirAll(root); err != nil {
		return nil, &snapshot.IOError{Op: "mkdir", Path: root, Err: err}
	}

	if err := s.Rescan(context.Background()); err != nil {
		return nil, err
	}

	return s, nil
}

// Root returns the backup directory.
func (s *Store) Root() string { return s.root }

// Budget returns the retention budget in bytes.
func (s *Store) Budget() uint64 { return s.budget.Load() }

// SetBudget replaces the retention budget. It takes effect on the next
// EnforceRetention.
func (s *Store) SetBudget(b uint64) {
	s.budget.Store(b)
	s.log.Info("retention budget updated", "bytes", b)
}

// Dump returns the published snapshots, oldest first.
func (s *Store) Dump() []snapshot.Snapshot {
	return slices.Clone(s.cur.Load().snaps)
}

// Stats reports the published snapshot count and total size.
func (s *Store) Stats() (int, uint64) {
	st := s.cur.Load()
	return len(st.snaps), retention.TotalBytes(st.snaps)
}

// Rescan fingerprints every folder under root and publishes the result.
// Folders that fail with a malformed name or an I/O error are skipped.
// If a rescan that started later has already published, the result of
// this one is discarded.
func (s *Store) Rescan(ctx context.Context) error {
	seq := s.seq.Add(1)
	start := time.Now()

	snaps, err := s.scan(ctx)
	metrics.RescanDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RescansTotal.WithLabelValues("error").Inc()
		return err
	}

	next := &state{snaps: snaps, seq: seq}
	for {
		cur := s.cur.Load()
		if cur.seq > seq {
			metrics.RescansTotal.WithLabelValues("stale").Inc()
			s.log.Debug("rescan superseded", "seq", seq, "published", cur.seq)
			return nil
		}
		if s.cur.CompareAndSwap(cur, next) {
			break
		}
	}

	metrics.RescansTotal.WithLabelValues("ok").Inc()
	s.publishStats(snaps)
	s.log.Debug("rescan published", "snapshots", len(snaps), "took", time.Since(start))
	return nil
}

// scan builds a new sorted snapshot list without touching published state.
func (s *Store) scan(ctx context.Context) ([]snapshot.Snapshot, error) {
	entries, err := s.fs.ReadDir(s.root)
	if err != nil {
		return nil, &snapshot.IOError{Op: "readdir", Path: s.root, Err: err}
	}

	snaps := make([]snapshot.Snapshot, 0, len(entries))
	for _, ent := range entries {
		if !ent.IsDir() {
			continue
		}
		// Checked between folders only; a started fingerprint always completes.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(s.root, ent.Name())
		snap, err := snapshot.FromFolder(s.fs, path)
		if err != nil {
			s.skip(path, err)
			continue
		}
		snaps = append(snaps, snap)
	}

	slices.SortFunc(snaps, func(a, b snapshot.Snapshot) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})
	return snaps, nil
}

func (s *Store) skip(path string, err error) {
	var ioe *snapshot.IOError
	switch {
	case errors.Is(err, snapshot.ErrMalformedSnapshot):
		metrics.RescanSkipped.WithLabelValues("malformed").Inc()
		s.log.Warn("skipping folder with non-timestamp name", "path", path)
	case errors.As(err, &ioe):
		metrics.RescanSkipped.WithLabelValues("io").Inc()
		s.log.Warn("skipping unreadable folder", "path", path, "error", err)
	default:
		metrics.RescanSkipped.WithLabelValues("other").Inc()
		s.log.Error("skipping folder", "path", path, "error", err)
	}
}

// EnforceRetention evicts the oldest snapshots while the published total
// exceeds the budget. The survivors are published before the deletion
// hook runs for each evicted timestamp, oldest first. It returns the
// evicted timestamps and the joined hook errors.
func (s *Store) EnforceRetention(ctx context.Context) ([]uint64, error) {
	var plan retention.Plan
	for {
		cur := s.cur.Load()
		plan = retention.Evaluate(cur.snaps, s.budget.Load())
		if len(plan.Evict) == 0 {
			return nil, nil
		}

		next := &state{snaps: slices.Clone(plan.Keep), seq: cur.seq}
		if s.cur.CompareAndSwap(cur, next) {
			break
		}
	}
	s.publishStats(plan.Keep)

	evicted := make([]uint64, 0, len(plan.Evict))
	var errs []error
	for _, snap := range plan.Evict {
		evicted = append(evicted, snap.Timestamp)
		metrics.EvictionsTotal.Inc()
		if err := s.hook(ctx, snap.Timestamp); err != nil {
			metrics.DeletionFailures.Inc()
			s.log.Error("deleting evicted snapshot failed", "timestamp", snap.Timestamp, "error", err)
			errs = append(errs, fmt.Errorf("deleting snapshot %d: %w", snap.Timestamp, err))
			continue
		}
		s.log.Info("evicted snapshot", "timestamp", snap.Timestamp, "bytes", snap.SizeBytes)
	}

	return evicted, errors.Join(errs...)
}

// removeFolder is the default DeletionHook.
func (s *Store) removeFolder(ctx context.Context, timestamp uint64) error {
	return s.fs.RemoveAll(ctx, filepath.Join(s.root, strconv.FormatUint(timestamp, 10)))
}

func (s *Store) publishStats(snaps []snapshot.Snapshot) {
	metrics.SnapshotsRetained.Set(float64(len(snaps)))
	metrics.BytesRetained.Set(float64(retention.TotalBytes(snaps)))
}
