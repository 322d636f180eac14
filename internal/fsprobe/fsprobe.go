// Package fsprobe checks whether change notifications work for a
// directory by creating and renaming a scratch file inside it.
package fsprobe

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// Result reports whether fsnotify is usable and why.
type Result struct {
	FsnotifySupported bool   // true if events are delivered
	Reason            string // explanation when unsupported
}

// Probe waits up to wait for dir to report the scratch file events.
// The scratch files are hidden and removed before Probe returns.
func Probe(dir string, wait time.Duration) Result {
	st, err := os.Stat(dir)
	if err != nil {
		return Result{false, fmt.Sprintf("stat failed: %v", err)}
	}
	if !st.IsDir() {
		return Result{false, "not a directory"}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return Result{false, fmt.Sprintf("fsnotify unavailable: %v", err)}
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return Result{false, fmt.Sprintf("cannot watch directory: %v", err)}
	}

	id := uuid.NewString()
	tmp := filepath.Join(dir, ".probe-"+id+".tmp")
	final := filepath.Join(dir, ".probe-"+id)

	f, err := os.Create(tmp)
	if err != nil {
		return Result{false, fmt.Sprintf("cannot create scratch file: %v", err)}
	}
	f.Close()

	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return Result{false, fmt.Sprintf("rename failed: %v", err)}
	}
	defer os.Remove(final)

	timeout := time.NewTimer(wait)
	defer timeout.Stop()
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return Result{false, "event channel closed"}
			}
			if ev.Name != tmp && ev.Name != final {
				continue
			}
			if ev.Op&(fsnotify.Rename|fsnotify.Create) != 0 {
				return Result{true, ""}
			}
		case <-timeout.C:
			return Result{false, "no events received within " + wait.String()}
		}
	}
}
