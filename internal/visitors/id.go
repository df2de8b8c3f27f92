// Package visitors derives pseudonymous visitor identifiers.
package visitors

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint creates a one-way pseudonymous visitor identifier from the
// client IP and user-agent string. The IP address is never stored, only
// hashed. The hash is deliberately unsalted so the identifier stays
// stable across restarts; it is used solely for per-day unique-visitor
// deduplication.
//
// Returns "" when both inputs are empty, since there is nothing to
// identify the visitor by.
func Fingerprint(ipAddress, userAgent string) string {
	if ipAddress == "" && userAgent == "" {
		return ""
	}

	hash := sha256.Sum256([]byte(ipAddress + "|" + userAgent))
	return hex.EncodeToString(hash[:])
}
