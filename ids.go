package statekit

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// SubscriberID identifies a single subscription on a [Store].
type SubscriberID string

// IDGenerator produces subscriber identifiers.
//
// Implementations must be safe for concurrent use and must not return the
// same identifier twice for the lifetime of the store that owns them.
type IDGenerator interface {
	Next() SubscriberID
}

// CounterIDs is a monotonic per-store counter. It is the default generator.
type CounterIDs struct {
	n atomic.Uint64
}

// NewCounterIDs returns a counter starting at 1.
func NewCounterIDs() *CounterIDs {
	return &CounterIDs{}
}

// Next returns the next counter value as a decimal string.
func (c *CounterIDs) Next() SubscriberID {
	return SubscriberID(strconv.FormatUint(c.n.Add(1), 10))
}

// UUIDIDs issues random UUIDv4 identifiers.
type UUIDIDs struct{}

// Next returns a fresh UUID string.
func (UUIDIDs) Next() SubscriberID {
	return SubscriberID(uuid.NewString())
}
