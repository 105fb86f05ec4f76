// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package sec

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns the hex-encoded BLAKE2b-256 digest of data.
//
// It is used where a stable, collision-resistant identifier for a blob is
// needed: change detection on watched dictionary files and cache keys derived
// from session tokens (so the raw token never appears in Redis).
func Fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FingerprintString is a convenience wrapper around [Fingerprint].
func FingerprintString(s string) string {
	return Fingerprint([]byte(s))
}
