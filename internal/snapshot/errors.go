package snapshot

import (
	"errors"
	"fmt"
)

// ErrMalformedSnapshot matches every *MalformedSnapshotError.
var ErrMalformedSnapshot = errors.New("malformed snapshot folder name")

// MalformedSnapshotError reports a folder whose name is not a timestamp.
type MalformedSnapshotError struct {
	Name string
}

func (e *MalformedSnapshotError) Error() string {
	return fmt.Sprintf("%v: %q", ErrMalformedSnapshot, e.Name)
}

func (e *MalformedSnapshotError) Is(target error) bool {
	return target == ErrMalformedSnapshot
}

// IOError reports a filesystem failure while reading a snapshot.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
