package journal

import (
	"sync"
	"time"
)

// subscriberBuffer is the channel capacity given to each subscriber.
const subscriberBuffer = 100

// MemoryJournal is an in-memory implementation of [Journal].
//
// Subscribers receive entries via buffered channels (buffer size 100).
// Entries are sent non-blocking; if a subscriber's buffer is full, the entry
// is dropped for that subscriber. [MemoryJournal.Entries] always has the
// full history.
type MemoryJournal struct {
	mu      sync.RWMutex
	entries []Entry
	seq     int64
	now     func() time.Time

	subMu       sync.RWMutex
	subscribers map[chan Entry]struct{}
}

// NewMemoryJournal creates an empty journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{
		now:         time.Now,
		subscribers: make(map[chan Entry]struct{}),
	}
}

// Record stores e with the next sequence number and notifies subscribers.
func (m *MemoryJournal) Record(e Entry) Entry {
	m.mu.Lock()
	m.seq++
	e.Seq = m.seq
	if e.At.IsZero() {
		e.At = m.now()
	}
	m.entries = append(m.entries, e)
	m.mu.Unlock()

	m.notifySubscribers(e)
	return e
}

// Entries returns a copy of all recorded entries in sequence order.
func (m *MemoryJournal) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Filter returns the recorded entries of the given kind, in sequence order.
func (m *MemoryJournal) Filter(kind Kind) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Entry
	for _, e := range m.entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Subscribe creates a new subscription and returns a channel for receiving entries.
//
// Caller must call [MemoryJournal.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryJournal) Subscribe() <-chan Entry {
	ch := make(chan Entry, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (m *MemoryJournal) Unsubscribe(ch <-chan Entry) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends e to all active subscribers without blocking.
func (m *MemoryJournal) notifySubscribers(e Entry) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- e:
		default:
			// subscriber is slow, drop the entry
		}
	}
}
