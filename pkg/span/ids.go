package span

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// newTraceID returns a 16-byte hex trace identifier.
func newTraceID(now time.Time) string {
	return randomHex(16, now)
}

// newSpanID returns an 8-byte hex span identifier.
func newSpanID(now time.Time) string {
	return randomHex(8, now)
}

func randomHex(n int, now time.Time) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// Fall back to a time-derived ID if crypto/rand fails; uniqueness
		// degrades but instrumentation must not.
		return hex.EncodeToString([]byte(now.Format(time.RFC3339Nano)))[:2*n]
	}
	return hex.EncodeToString(b)
}
