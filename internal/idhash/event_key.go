// Package idhash computes deterministic event keys. The database sinks use
// them as unique keys so a re-appended record is rejected instead of
// duplicated.
package idhash

import (
	"crypto/sha256"

	"github.com/mr-tron/base58"
)

// EventKey computes a deterministic key over a serialized record.
// Identical lines hash to identical keys, which matches the emission
// contract: one gate decision maps to at most one physical write.
func EventKey(line []byte) string {
	sum := sha256.Sum256(line)
	return base58.Encode(sum[:])
}
