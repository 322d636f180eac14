package watcher

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// isFolderStable reports whether the total size and file count of path
// are unchanged across the stability window.
func (w *Watcher) isFolderStable(ctx context.Context, path string) (bool, error) {
	w.mu.RLock()
	stability := w.stability
	w.mu.RUnlock()

	size1, n1, err := folderSize(path)
	if err != nil {
		return false, err
	}

	t := time.NewTimer(stability)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-t.C:
	}

	size2, n2, err := folderSize(path)
	if err != nil {
		return false, err
	}

	return size1 == size2 && n1 == n2, nil
}

// folderSize sums the regular files directly inside path. A plain file
// is measured on its own.
func folderSize(path string) (int64, int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, err
	}
	if !info.IsDir() {
		return info.Size(), 1, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return 0, 0, err
	}

	var total int64
	var n int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fi, err := os.Stat(filepath.Join(path, e.Name()))
		if err != nil {
			return 0, 0, err
		}
		total += fi.Size()
		n++
	}
	return total, n, nil
}
