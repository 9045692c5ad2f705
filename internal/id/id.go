// Package id provides utilities for generating unique identifiers.
package id

import (
	"crypto/rand"
	"encoding/hex"
)

// Generate returns a random 6-character hex ID.
func Generate() string {
	b := make([]byte, 3)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Prefixed returns a random ID with a fixed prefix, e.g. Prefixed("pl")
// yields "pl-a3f2c1". Used for plan and feed-client identifiers in logs.
func Prefixed(prefix string) string {
	return prefix + "-" + Generate()
}
