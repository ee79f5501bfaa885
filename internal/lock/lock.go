// Package lock provides the distributed set-if-absent lock that makes the
// reply pipeline idempotent. Failing to acquire a lock is the expected
// "someone else already claimed this" signal, never an error.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/autoreply/internal/model"
)

// Locker is a key-value lock store with SETNX+EXPIRE / DEL semantics.
// Single-key atomicity only; no ordering across keys.
type Locker interface {
	// Acquire sets key to the current timestamp only if absent (or expired),
	// expiring after ttl. It reports whether the caller now holds the key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release unconditionally deletes the key.
	Release(ctx context.Context, key string) error
}

// DedupKey identifies one logical inbound event. Provider retries repeat
// the source id; locally originated duplicates only share the local id,
// hence the dual keying.
func DedupKey(m *model.Message) string {
	if m.SourceID != "" {
		return m.SourceID
	}
	return fmt.Sprintf("msg_%d", m.ID)
}

// TriggerKey is the trigger-time dedup lock key for a dedup key.
func TriggerKey(dedup string) string {
	return "ai_response_triggered:" + dedup
}

// RunKey is the job-run mutual-exclusion key for a dedup key. It is kept
// independent of TriggerKey: the trigger lock guards webhook duplication,
// the run lock guards queue redelivery.
func RunKey(dedup string) string {
	return "job_running:" + dedup
}
