package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/gowebpki/jcs"
)

// ComputeChecksum hashes the RFC 8785 canonical JSON form of v with SHA-256.
// Canonicalization makes the digest independent of map iteration order and
// encoder quirks, so the same logical snapshot always hashes the same.
// The hash guards against accidental corruption, not tampering.
func ComputeChecksum(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// SnapshotChecksum computes the envelope checksum with the checksum field
// itself cleared
func SnapshotChecksum(s *Snapshot) (string, error) {
	original := s.Checksum
	s.Checksum = ""
	defer func() { s.Checksum = original }()
	return ComputeChecksum(s)
}

// VerifySnapshotChecksum reports whether the stored checksum matches the
// envelope contents
func VerifySnapshotChecksum(s *Snapshot) bool {
	if s.Checksum == "" {
		return false
	}
	computed, err := SnapshotChecksum(s)
	if err != nil {
		return false
	}
	return computed == s.Checksum
}
