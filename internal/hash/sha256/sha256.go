// Package sha256 derives content validators from rendered documents.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hex returns the hex SHA-256 digest of data.
func Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ETag returns a strong entity tag for data, quoted as HTTP requires.
func ETag(data []byte) string {
	return `"` + Hex(data) + `"`
}
