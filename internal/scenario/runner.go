// Package scenario executes a parsed [config.Scenario] against a statekit
// store and records every observation into a journal.
//
// This package is internal to statekit and backs the CLI's run command.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jpalmerr/statekit"
	"github.com/jpalmerr/statekit/config"
	"github.com/jpalmerr/statekit/internal/journal"
)

// action is the concrete action type built from an [config.ActionConfig].
type action = statekit.Action[struct{}, any]

// Runner drives one scenario. A Runner is single use.
type Runner struct {
	sc      *config.Scenario
	journal journal.Journal
	logger  *slog.Logger

	store   *statekit.Store
	actions map[string]*action
	subs    map[string]subscription

	wg sync.WaitGroup
}

type subscription struct {
	event string
	id    statekit.SubscriberID
}

// NewRunner builds the store, subscribers and actions described by sc.
//
// Nothing is recorded until [Runner.Run] is called, except notifications
// caused by construction itself (there are none for a valid scenario).
func NewRunner(sc *config.Scenario, j journal.Journal, logger *slog.Logger) (*Runner, error) {
	if sc == nil {
		return nil, errors.New("scenario cannot be nil")
	}
	if j == nil {
		return nil, errors.New("journal cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []statekit.Option{statekit.WithLogger(logger)}
	if sc.IDGenerator == "uuid" {
		opts = append(opts, statekit.WithIDGenerator(statekit.UUIDIDs{}))
	}

	store, err := statekit.New(statekit.State(copyState(sc.InitialState)), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	r := &Runner{
		sc:      sc,
		journal: j,
		logger:  logger,
		store:   store,
		actions: make(map[string]*action, len(sc.Actions)),
		subs:    make(map[string]subscription, len(sc.Subscribers)),
	}

	for _, sub := range sc.Subscribers {
		event := sub.Event
		if event == "" {
			event = statekit.EventStateChanged
		}
		id := store.SubscribeID(event, r.recordNotification(sub.Name, event))
		r.subs[sub.Name] = subscription{event: event, id: id}
	}

	for _, ac := range sc.Actions {
		a, err := r.buildAction(ac)
		if err != nil {
			return nil, fmt.Errorf("action %q: %w", ac.Name, err)
		}
		r.actions[ac.Name] = a
	}

	return r, nil
}

// Store returns the store the scenario drives.
func (r *Runner) Store() *statekit.Store {
	return r.store
}

// Run executes every step in order, then waits for background calls.
//
// Run returns early with the context's error if ctx is cancelled; calls
// still in flight are cancelled and awaited first.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("scenario starting", "name", r.sc.Name, "steps", len(r.sc.Steps))

	for i, step := range r.sc.Steps {
		if err := ctx.Err(); err != nil {
			r.abort()
			return err
		}

		op := step.Op()
		r.journal.Record(journal.Entry{
			Kind:    journal.KindStep,
			Source:  fmt.Sprintf("steps[%d]", i),
			Payload: op,
		})

		if err := r.runStep(ctx, step); err != nil {
			r.abort()
			return fmt.Errorf("steps[%d] (%s): %w", i, op, err)
		}
	}

	r.wg.Wait()
	r.logger.Info("scenario finished", "name", r.sc.Name, "entries", len(r.journal.Entries()))
	return nil
}

func (r *Runner) runStep(ctx context.Context, step config.Step) error {
	switch step.Op() {
	case config.OpSet:
		r.store.Set(statekit.State(copyState(step.Set)))
	case config.OpIncrement:
		r.store.SetFunc(r.increment(step.Increment))
	case config.OpDispatch:
		r.store.Dispatch(step.Dispatch)
	case config.OpCall:
		a := r.actions[step.Call]
		if step.Async {
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				r.call(ctx, step.Call, a)
			}()
			return nil
		}
		r.call(ctx, step.Call, a)
	case config.OpCancel:
		a := r.actions[step.Cancel]
		before := a.Status()
		a.Cancel()
		if before != statekit.StatusIdle && a.IsIdle() {
			r.recordStatus(step.Cancel, statekit.StatusIdle, nil, nil)
		}
	case config.OpAttach:
		r.store.AttachComponent(r.recordNotification("component:"+step.Attach, statekit.EventStateChanged))
	case config.OpDetach:
		r.store.DetachComponent()
	case config.OpUnsubscribe:
		sub := r.subs[step.Unsubscribe]
		r.store.Unsubscribe(sub.event, sub.id)
	case config.OpSleep:
		select {
		case <-time.After(step.Sleep.Duration()):
		case <-ctx.Done():
			return ctx.Err()
		}
	case config.OpJoin:
		r.wg.Wait()
	default:
		return fmt.Errorf("unsupported step operation %q", step.Op())
	}
	return nil
}

// call invokes a and records what its caller receives.
func (r *Runner) call(ctx context.Context, name string, a *action) {
	v, err := a.Call(ctx, struct{}{})

	e := journal.Entry{Kind: journal.KindResult, Source: name, Payload: v}
	if err != nil {
		msg := err.Error()
		e.Error = &msg
	}
	r.journal.Record(e)
}

// abort cancels every action and waits for background calls to return.
func (r *Runner) abort() {
	for _, a := range r.actions {
		a.Cancel()
	}
	r.wg.Wait()
}

func (r *Runner) buildAction(ac config.ActionConfig) (*action, error) {
	a, err := statekit.NewAction(r.store, simulate(ac),
		statekit.WithActionLogger(r.logger),
		statekit.WithActionName(ac.Name),
	)
	if err != nil {
		return nil, err
	}

	a.OnLoading(func(*statekit.Store) {
		r.recordStatus(ac.Name, statekit.StatusLoading, nil, nil)
	}).OnSuccess(func(s *statekit.Store, v any) {
		r.recordStatus(ac.Name, statekit.StatusSuccess, v, nil)
	}).OnError(func(s *statekit.Store, err error) {
		r.recordStatus(ac.Name, statekit.StatusError, nil, err)
	})

	if ac.Set != nil {
		set := ac.Set
		a.OnSuccess(func(s *statekit.Store, _ any) {
			s.Set(statekit.State(copyState(set)))
		})
	}
	return a, nil
}

// simulate returns an operation that waits ac.Delay, emitting ac.Reports at
// even intervals on the way, then settles with ac.Result or ac.Error.
func simulate(ac config.ActionConfig) statekit.Operation[struct{}, any] {
	return func(ctx context.Context, _ *statekit.Store, report statekit.Reporter, _ struct{}) (any, error) {
		slice := ac.Delay.Duration() / time.Duration(len(ac.Reports)+1)

		for _, rep := range ac.Reports {
			if err := sleepCtx(ctx, slice); err != nil {
				return nil, err
			}
			report(statekit.Status(rep.Status), rep.Payload)
		}
		if err := sleepCtx(ctx, slice); err != nil {
			return nil, err
		}

		if ac.Error != "" {
			return nil, errors.New(ac.Error)
		}
		return ac.Result, nil
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) recordNotification(source, event string) statekit.Subscriber {
	kind := journal.KindEvent
	if event == statekit.EventStateChanged {
		kind = journal.KindState
	}
	return func(st statekit.State) {
		r.journal.Record(journal.Entry{
			Kind:   kind,
			Source: source,
			Event:  event,
			State:  st,
		})
	}
}

func (r *Runner) recordStatus(name string, status statekit.Status, payload any, err error) {
	e := journal.Entry{
		Kind:    journal.KindStatus,
		Source:  name,
		Status:  status.String(),
		Payload: payload,
	}
	if err != nil {
		msg := err.Error()
		e.Error = &msg
	}
	r.journal.Record(e)
}

// increment returns an updater adding one to key. Missing keys start at
// zero; non-numeric values are left unchanged.
func (r *Runner) increment(key string) func(statekit.State) statekit.State {
	return func(st statekit.State) statekit.State {
		switch v := st[key].(type) {
		case nil:
			return statekit.State{key: 1}
		case int:
			return statekit.State{key: v + 1}
		case int64:
			return statekit.State{key: v + 1}
		case float64:
			return statekit.State{key: v + 1}
		default:
			r.logger.Warn("increment skipped", "key", key, "type", fmt.Sprintf("%T", v))
			return nil
		}
	}
}

// copyState returns a shallow copy of m so scenario data is never shared
// with the store.
func copyState(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
