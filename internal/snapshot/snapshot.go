// Package snapshot describes one backup capture and computes its fingerprint.
package snapshot

import (
	"encoding/hex"
	"fmt"
)

// DigestSize is the number of bytes in a content hash.
const DigestSize = 32

// Digest is a 256-bit content hash.
type Digest [DigestSize]byte

// String returns the digest as lowercase hex.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Digest) UnmarshalText(b []byte) error {
	if hex.DecodedLen(len(b)) != DigestSize {
		return fmt.Errorf("digest: want %d hex chars, got %d", 2*DigestSize, len(b))
	}
	_, err := hex.Decode(d[:], b)
	return err
}

// Snapshot represents a single backup folder. Identity is Timestamp.
type Snapshot struct {
	Timestamp     uint64 `json:"timestamp"`
	SizeBytes     uint64 `json:"size_bytes"`
	DocumentCount uint32 `json:"document_count"`
	ContentHash   Digest `json:"content_hash"`
}
