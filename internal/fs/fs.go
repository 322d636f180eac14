// Package fs defines the filesystem abstraction used by snapkeeper.
// It provides the FS interface and the FileInfo type shared by the
// fingerprinting and store packages.
package fs

import (
	"context"
	"io"
	iofs "io/fs"
	"time"
)

type FileInfo struct {
	Path  string
	Size  int64
	MTime time.Time
	IsDir bool
}

type FS interface {
	Stat(path string) (FileInfo, error)
	ReadDir(path string) ([]iofs.DirEntry, error)
	Open(path string) (io.ReadCloser, error)
	MkdirAll(path string) error
	RemoveAll(ctx context.Context, path string) error
}
