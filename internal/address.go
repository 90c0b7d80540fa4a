package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeAddress lowercases and trims an email address.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// HashAddress returns a stable hex digest of the normalized address for use in
// storage keys and audit metadata.
func HashAddress(address string) string {
	sum := sha256.Sum256([]byte(NormalizeAddress(address)))
	return hex.EncodeToString(sum[:16])
}
