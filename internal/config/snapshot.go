package config

import (
	"crypto/sha256"
	"encoding/hex"
)

// contentHash identifies a persisted document so self-inflicted file events can be ignored.
func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
