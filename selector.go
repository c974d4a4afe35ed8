package statekit

import "sync"

// Select subscribes fn to changes of a value derived from the store's state.
//
// selector is applied to the current state immediately and after every
// [EventStateChanged] dispatch; fn runs only when the selected value differs
// from the previous one according to equal. A nil equal compares the values
// the way [ShallowEqual] compares a single key.
//
// The returned function removes the subscription. It is safe to call more
// than once.
func Select[T any](s *Store, selector func(State) T, equal func(a, b T) bool, fn func(T)) (unsubscribe func()) {
	if equal == nil {
		equal = func(a, b T) bool { return sameValue(any(a), any(b)) }
	}

	var mu sync.Mutex
	last := selector(s.Get())

	id := s.SubscribeID(EventStateChanged, func(st State) {
		next := selector(st)

		mu.Lock()
		if equal(last, next) {
			mu.Unlock()
			return
		}
		last = next
		mu.Unlock()

		fn(next)
	})

	var once sync.Once
	return func() {
		once.Do(func() { s.Unsubscribe(EventStateChanged, id) })
	}
}
