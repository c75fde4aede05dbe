// Package fingerprint derives deterministic content digests used as cache
// keys and as content identity for predictions.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the lowercase hex SHA-256 digest of data. Identical bytes
// always yield identical fingerprints; empty input is hashed like any other
// payload.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
