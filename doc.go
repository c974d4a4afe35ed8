// Package statekit provides a minimal observable state container and a
// cancellable asynchronous action wrapper, intended to back reactive views.
//
// # Quick Start
//
// Create a store, subscribe to changes and update it:
//
//	s, _ := statekit.New(statekit.State{"count": 0})
//	s.OnSetState(func(st statekit.State) {
//	    fmt.Println("count is now", st["count"])
//	})
//	s.Set(statekit.State{"count": 1})
//	s.SetFunc(func(st statekit.State) statekit.State {
//	    return statekit.State{"count": st["count"].(int) + 1}
//	})
//
// Updates are shallow merges of top-level keys. An update that leaves every
// top-level value identical is dropped without notifying anyone.
//
// # Async Actions
//
// An [Action] wraps one asynchronous [Operation] bound to a store and
// reports its lifecycle through effects:
//
//	load, _ := statekit.NewAction(s, fetchUser)
//	load.OnLoading(func(s *statekit.Store) { s.Set(statekit.State{"spinner": true}) }).
//	    OnSuccess(func(s *statekit.Store, u User) { s.Set(statekit.State{"user": u, "spinner": false}) }).
//	    OnError(func(s *statekit.Store, err error) { s.Set(statekit.State{"err": err.Error()}) })
//
//	user, err := load.Call(ctx, userID)
//
// At most one invocation per action is observable. Calling again while a
// call is in flight, or calling [Action.Cancel], silences the older
// invocation: its status reports and result no longer change the status or
// fire effects, though its own caller still receives what it returned.
//
// # Binding Boundary
//
// View layers consume [Store.Get], [Store.Subscribe] with
// [Store.LastSubscriberID] or [Store.SubscribeID], [Store.Unsubscribe],
// [Store.AttachComponent] and [Store.DetachComponent]. [Select] derives a
// value and notifies only when it changes.
//
// # Architecture
//
//   - internal/journal: In-memory event journal with pub/sub
//   - internal/scenario: Executes YAML scenarios against a store
//   - config: YAML scenario parsing and validation
//   - cmd/statekit: CLI that runs and validates scenarios
package statekit
