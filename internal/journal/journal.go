package journal

import "time"

// Kind classifies an [Entry].
type Kind string

const (
	// KindState is a state-changed notification seen by a subscriber.
	KindState Kind = "state"

	// KindEvent is a custom event notification seen by a subscriber.
	KindEvent Kind = "event"

	// KindStatus is an action status transition.
	KindStatus Kind = "status"

	// KindResult is the value or error returned to the caller of an action.
	KindResult Kind = "result"

	// KindStep marks the start of a scenario step.
	KindStep Kind = "step"
)

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindState, KindEvent, KindStatus, KindResult, KindStep:
		return true
	}
	return false
}

// Entry is one recorded observation, shaped for JSON output.
type Entry struct {
	// Seq is assigned by the journal and increases by one per entry.
	Seq int64 `json:"seq"`

	// Kind classifies the entry.
	Kind Kind `json:"kind"`

	// Source names the subscriber, action or step that produced the entry.
	Source string `json:"source"`

	// Event is the dispatched event name, for state and event entries.
	Event string `json:"event,omitempty"`

	// Status is the action status, for status entries.
	Status string `json:"status,omitempty"`

	// State is the store state at the time of the entry.
	State map[string]any `json:"state,omitempty"`

	// Payload is the success payload or step detail.
	Payload any `json:"payload,omitempty"`

	// Error contains the error message, if any.
	Error *string `json:"error,omitempty"`

	// At is the time the entry was recorded.
	At time.Time `json:"at"`
}

// Journal defines the interface for recording and following entries.
//
// Journal implementations must be safe for concurrent access.
type Journal interface {
	// Record assigns the next sequence number and timestamp, stores the
	// entry and notifies all subscribers. The stored entry is returned.
	Record(e Entry) Entry

	// Entries returns all recorded entries in sequence order.
	// The returned slice is a snapshot; modifications do not affect the journal.
	Entries() []Entry

	// Subscribe returns a channel that receives entries as they are recorded.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Entry

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Entry)
}
