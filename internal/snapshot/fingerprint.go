package snapshot

import (
	"errors"
	"hash"
	"io"
	"path/filepath"
	"sort"
	"strconv"

	"golang.org/x/crypto/blake2b"

	"github.com/raoulx24/snapkeeper/internal/fs"
)

// bufSize is the read buffer shared by every file of one fingerprint.
const bufSize = 64 * 1024

// ParseTimestamp parses a folder name as a canonical unsigned decimal.
// "0" is accepted, "007", "+7" and "-1" are not.
func ParseTimestamp(name string) (uint64, error) {
	ts, err := strconv.ParseUint(name, 10, 64)
	if err != nil || strconv.FormatUint(ts, 10) != name {
		return 0, &MalformedSnapshotError{Name: name}
	}
	return ts, nil
}

// FromFolder fingerprints the regular files directly inside path.
// Only regular files count; sub-directories and special files are
// skipped. Files are hashed in name order so the digest does not depend
// on the order the filesystem lists them.
// On error the returned Snapshot is the zero value.
func FromFolder(fsys fs.FS, path string) (Snapshot, error) {
	ts, err := ParseTimestamp(filepath.Base(path))
	if err != nil {
		return Snapshot{}, err
	}

	entries, err := fsys.ReadDir(path)
	if err != nil {
		return Snapshot{}, &IOError{Op: "readdir", Path: path, Err: err}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	h, err := blake2b.New256(nil)
	if err != nil {
		return Snapshot{}, err
	}

	var (
		size  uint64
		count uint32
		buf   = make([]byte, bufSize)
	)
	for _, ent := range entries {
		// directories, symlinks, FIFOs and devices are not content
		if !ent.Type().IsRegular() {
			continue
		}
		full := filepath.Join(path, ent.Name())
		n, err := hashFile(fsys, full, h, buf)
		if err != nil {
			return Snapshot{}, err
		}
		size += n
		count++
	}

	snap := Snapshot{
		Timestamp:     ts,
		SizeBytes:     size,
		DocumentCount: count,
	}
	copy(snap.ContentHash[:], h.Sum(nil))
	return snap, nil
}

// hashFile streams one file into h through buf and returns its length.
func hashFile(fsys fs.FS, path string, h hash.Hash, buf []byte) (uint64, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return 0, &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	var total uint64
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			total += uint64(n)
		}
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return 0, &IOError{Op: "read", Path: path, Err: err}
		}
	}
}
