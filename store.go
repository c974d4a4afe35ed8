package statekit

import (
	"errors"
	"log/slog"
	"reflect"
	"slices"
	"sync"
)

// EventStateChanged is the reserved event name dispatched after every
// successful [Store.Set] or [Store.SetFunc].
const EventStateChanged = "setState"

// State is the record held by a [Store].
//
// Top-level keys are the unit of merge and comparison: nested maps and
// slices are replaced wholesale by an update, never merged.
type State map[string]any

// Subscriber is a callback registered on a [Store] event.
// It receives the store's current state at the moment it is invoked.
type Subscriber func(State)

// Store is an observable state container.
//
// Store owns a [State] value, a registry of event subscriptions and the
// dispatch of notifications. State is replaced, never mutated in place, so a
// snapshot returned by [Store.Get] stays valid after later updates; callers
// must treat it as read-only.
//
// All methods are safe for concurrent use. Subscribers are always invoked
// with no internal lock held, so a subscriber may call back into the store.
// Operations that would fail on bad input (unknown event, unknown id) are
// silent no-ops.
type Store struct {
	// updateMu serializes SetFunc read-modify-write cycles.
	updateMu sync.Mutex

	mu            sync.Mutex
	state         State
	subscriptions map[string][]SubscriberID
	subscribers   map[SubscriberID]Subscriber
	lastID        SubscriberID
	attachedID    SubscriberID

	ids    IDGenerator
	logger *slog.Logger
}

// New creates a [Store] holding initial.
//
// A nil initial state is treated as an empty record. The initial map is
// held by reference.
//
// Returns an error if any option is invalid.
//
// Example:
//
//	s, err := statekit.New(statekit.State{"count": 0})
//	if err != nil {
//	    return err
//	}
//	s.OnSetState(func(st statekit.State) { fmt.Println(st["count"]) })
//	s.Set(statekit.State{"count": 1}) // prints 1
func New(initial State, opts ...Option) (*Store, error) {
	cfg := &storeConfig{}
	for _, opt := range opts {
		if opt == nil {
			return nil, errors.New("option cannot be nil")
		}
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.ids == nil {
		cfg.ids = NewCounterIDs()
	}
	if initial == nil {
		initial = State{}
	}

	return &Store{
		state:         initial,
		subscriptions: make(map[string][]SubscriberID),
		subscribers:   make(map[SubscriberID]Subscriber),
		ids:           cfg.ids,
		logger:        cfg.logger,
	}, nil
}

// Get returns the current state.
func (s *Store) Get() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn under event and returns the store for chaining.
//
// Subscribers of one event are dispatched in subscription order. The new
// subscription's id is available from [Store.LastSubscriberID] until the
// next subscription is made. A nil fn is ignored.
func (s *Store) Subscribe(event string, fn Subscriber) *Store {
	if fn == nil {
		return s
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribeLocked(event, fn)
	return s
}

// SubscribeID registers fn under event like [Store.Subscribe] and returns
// the new subscription's id. Unlike reading [Store.LastSubscriberID]
// afterwards, it cannot observe an id issued to a concurrent subscriber.
//
// A nil fn is ignored and "" is returned.
func (s *Store) SubscribeID(event string, fn Subscriber) SubscriberID {
	if fn == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribeLocked(event, fn)
}

func (s *Store) subscribeLocked(event string, fn Subscriber) SubscriberID {
	id := s.ids.Next()
	s.subscriptions[event] = append(s.subscriptions[event], id)
	s.subscribers[id] = fn
	s.lastID = id
	return id
}

// LastSubscriberID returns the id issued by the most recent subscription,
// or "" if nothing has subscribed yet.
func (s *Store) LastSubscriberID() SubscriberID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastID
}

// Unsubscribe removes the subscription id from event.
//
// Safe to call with an unknown event, an unknown id or an id that was
// already removed.
func (s *Store) Unsubscribe(event string, id SubscriberID) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribeLocked(event, id)
	return s
}

func (s *Store) unsubscribeLocked(event string, id SubscriberID) {
	ids, ok := s.subscriptions[event]
	if !ok {
		return
	}
	i := slices.Index(ids, id)
	if i < 0 {
		return
	}
	ids = slices.Delete(ids, i, i+1)
	if len(ids) == 0 {
		delete(s.subscriptions, event)
	} else {
		s.subscriptions[event] = ids
	}
	delete(s.subscribers, id)
}

// Dispatch invokes every subscriber of event in subscription order.
//
// Each subscriber is passed the state current at the moment it runs, so an
// update made by one subscriber is visible to the ones after it. A
// subscriber removed mid-dispatch by an earlier one is skipped. Dispatching
// an event nobody subscribed to is a no-op.
func (s *Store) Dispatch(event string) *Store {
	s.mu.Lock()
	ids := slices.Clone(s.subscriptions[event])
	s.mu.Unlock()

	if len(ids) == 0 {
		return s
	}

	s.logger.Debug("dispatch", "event", event, "subscribers", len(ids))
	for _, id := range ids {
		s.mu.Lock()
		fn, ok := s.subscribers[id]
		state := s.state
		s.mu.Unlock()
		if !ok {
			continue
		}
		invokeSafe(s.logger, "subscriber", func() { fn(state) },
			"event", event,
			"subscriber_id", string(id),
		)
	}
	return s
}

// Set shallow-merges partial into the current state.
//
// If the merged result is shallow-equal to the current state nothing
// happens. Otherwise the state is replaced and [EventStateChanged] is
// dispatched exactly once.
func (s *Store) Set(partial State) *Store {
	s.mu.Lock()
	next, changed := merge(s.state, partial)
	if changed {
		s.state = next
	}
	s.mu.Unlock()

	if !changed {
		s.logger.Debug("set skipped", "reason", "shallow equal")
		return s
	}
	return s.Dispatch(EventStateChanged)
}

// SetFunc computes a partial update from the current state and applies it
// as [Store.Set] does.
//
// Concurrent SetFunc calls are serialized, so each fn sees the result of the
// one before it. fn may read the store and call [Store.Set], but must not
// call SetFunc. Subscribers run after the update is applied and are free to
// call SetFunc.
func (s *Store) SetFunc(fn func(State) State) *Store {
	if fn == nil {
		return s
	}

	s.updateMu.Lock()
	partial := fn(s.Get())
	s.mu.Lock()
	next, changed := merge(s.state, partial)
	if changed {
		s.state = next
	}
	s.mu.Unlock()
	s.updateMu.Unlock()

	if !changed {
		s.logger.Debug("set skipped", "reason", "shallow equal")
		return s
	}
	return s.Dispatch(EventStateChanged)
}

// OnSetState subscribes fn to [EventStateChanged].
func (s *Store) OnSetState(fn Subscriber) *Store {
	return s.Subscribe(EventStateChanged, fn)
}

// AttachComponent subscribes fn to [EventStateChanged] in the store's single
// component slot.
//
// A component already attached is detached first, so at most one component
// subscription exists at a time. A nil fn only detaches.
func (s *Store) AttachComponent(fn Subscriber) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attachedID != "" {
		s.unsubscribeLocked(EventStateChanged, s.attachedID)
		s.attachedID = ""
	}
	if fn != nil {
		s.attachedID = s.subscribeLocked(EventStateChanged, fn)
	}
	return s
}

// DetachComponent removes the attached component subscription, if any.
func (s *Store) DetachComponent() *Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attachedID != "" {
		s.unsubscribeLocked(EventStateChanged, s.attachedID)
		s.attachedID = ""
	}
	return s
}

// SubscriberCount returns the number of subscriptions registered under event.
func (s *Store) SubscriberCount(event string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscriptions[event])
}

// merge returns cur overlaid with partial and whether the result differs
// from cur under shallow equality.
//
// Keys absent from partial carry the same value into the result, so only the
// keys of partial are compared.
func merge(cur, partial State) (State, bool) {
	changed := false
	for k, v := range partial {
		old, ok := cur[k]
		if !ok || !sameValue(old, v) {
			changed = true
			break
		}
	}
	if !changed {
		return cur, false
	}

	next := make(State, len(cur)+len(partial))
	for k, v := range cur {
		next[k] = v
	}
	for k, v := range partial {
		next[k] = v
	}
	return next, true
}

// ShallowEqual reports whether a and b have the same key set and identical
// values per key.
//
// Comparable values are compared with ==. Maps, slices and funcs compare by
// reference: two slices are identical only when they share a backing array
// and length, and funcs are identical only when both are nil. Non-nil empty
// slices are never identical: Go may back distinct empty slices with the same
// zero-size allocation, so their headers cannot tell them apart. Values that
// cannot be compared are treated as different.
func ShallowEqual(a, b State) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || !sameValue(va, vb) {
			return false
		}
	}
	return true
}

func sameValue(a, b any) (same bool) {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}

	switch ta.Kind() {
	case reflect.Map, reflect.Slice:
		va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
		if va.Len() != vb.Len() {
			return false
		}
		if ta.Kind() == reflect.Slice && va.Len() == 0 && !va.IsNil() && !vb.IsNil() {
			return false
		}
		return va.Pointer() == vb.Pointer()
	case reflect.Func:
		return reflect.ValueOf(a).IsNil() && reflect.ValueOf(b).IsNil()
	}

	if !ta.Comparable() {
		return false
	}

	// structs or arrays holding incomparable interface values panic on ==
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
