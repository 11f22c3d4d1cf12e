// Package idutil generates short prefixed identifiers for in-flight requests.
package idutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

var seq atomic.Uint64

// RequestID returns a fresh identifier for one in-flight request.
// Format: req_XXXXXXXXXXXX (16 chars total). The nanosecond clock plus a
// process-wide counter keeps concurrent calls distinct.
func RequestID() string {
	return hashID("req", fmt.Sprintf("%d:%d", time.Now().UnixNano(), seq.Add(1)))
}

// hashID creates a short hash-based ID with the given prefix.
func hashID(prefix, data string) string {
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(hash[:])[:12])
}
