package statekit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Reporter lets a running operation push an intermediate status, such as a
// progress update, through its action's effects.
//
// A Reporter becomes a no-op once its invocation is cancelled, superseded
// by a newer call or settled.
type Reporter func(status Status, payload any)

// Operation is the asynchronous work wrapped by an [Action].
//
// ctx is cancelled when the invocation is cancelled or superseded. Honouring
// it is up to the operation: the action never interrupts running work, it
// only stops observing it. Several call arguments travel as one struct A.
type Operation[A, R any] func(ctx context.Context, s *Store, report Reporter, arg A) (R, error)

// Action tracks a single in-flight [Operation] bound to one [Store].
//
// Each call to [Action.Call] takes a fresh generation token. Only the
// invocation holding the current generation may change the status or fire
// effects; a stale invocation still returns its own result to its own
// caller, but nothing else observes it.
//
// Effects for a status run synchronously in registration order, with no
// internal lock held.
//
// The zero value is not usable; create actions with [NewAction].
type Action[A, R any] struct {
	store  *Store
	op     Operation[A, R]
	name   string
	logger *slog.Logger

	mu     sync.Mutex
	status Status
	gen    uint64
	active bool
	cancel context.CancelFunc

	onError   []func(*Store, error)
	onSuccess []func(*Store, R)
	onLoading []func(*Store)
}

// NewAction creates an idle [Action] that runs op against s.
//
// Returns [ErrNilStore] or [ErrNilOperation] for missing arguments, or the
// first error returned by an option.
//
// Example:
//
//	fetch, err := statekit.NewAction(s,
//	    func(ctx context.Context, s *statekit.Store, _ statekit.Reporter, id int) (string, error) {
//	        return lookup(ctx, id)
//	    },
//	)
//	fetch.OnSuccess(func(s *statekit.Store, name string) {
//	    s.Set(statekit.State{"name": name})
//	})
//	name, err := fetch.Call(ctx, 42)
func NewAction[A, R any](s *Store, op Operation[A, R], opts ...ActionOption) (*Action[A, R], error) {
	if s == nil {
		return nil, ErrNilStore
	}
	if op == nil {
		return nil, ErrNilOperation
	}

	cfg := &actionConfig{}
	for _, opt := range opts {
		if opt == nil {
			return nil, errors.New("option cannot be nil")
		}
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.logger == nil {
		cfg.logger = s.logger
	}

	return &Action[A, R]{
		store:  s,
		op:     op,
		name:   cfg.name,
		logger: cfg.logger,
		status: StatusIdle,
	}, nil
}

// OnError registers an effect run on every transition to [StatusError].
func (a *Action[A, R]) OnError(effect func(*Store, error)) *Action[A, R] {
	if effect != nil {
		a.mu.Lock()
		a.onError = append(a.onError, effect)
		a.mu.Unlock()
	}
	return a
}

// OnSuccess registers an effect run on every transition to [StatusSuccess].
func (a *Action[A, R]) OnSuccess(effect func(*Store, R)) *Action[A, R] {
	if effect != nil {
		a.mu.Lock()
		a.onSuccess = append(a.onSuccess, effect)
		a.mu.Unlock()
	}
	return a
}

// OnLoading registers an effect run on every transition to [StatusLoading].
func (a *Action[A, R]) OnLoading(effect func(*Store)) *Action[A, R] {
	if effect != nil {
		a.mu.Lock()
		a.onLoading = append(a.onLoading, effect)
		a.mu.Unlock()
	}
	return a
}

// SetStatus sets the status and runs the effects registered for it.
//
// A success payload that is not an R is delivered as the zero R. An error
// payload that is not an error is wrapped with fmt.Errorf. [StatusIdle] has
// no effects. A status that is not one of the four defined ones is logged
// and ignored.
func (a *Action[A, R]) SetStatus(status Status, payload any) {
	if !status.Valid() {
		a.logger.Warn("invalid status ignored", "action", a.name, "status", status.String())
		return
	}
	a.mu.Lock()
	a.status = status
	fx := a.effectsLocked()
	a.mu.Unlock()

	value, err := a.decodePayload(status, payload)
	a.runEffects(fx, status, value, err)
}

// Call runs the operation with arg and blocks until it returns.
//
// An invocation that is still active is cancelled first. The status moves
// to [StatusLoading] before the operation starts, then to [StatusSuccess] or
// [StatusError] when it returns, unless this invocation was cancelled or
// superseded in the meantime. The operation's result and error are always
// returned to this caller unchanged. A panic in the operation is returned
// as a *[PanicError].
func (a *Action[A, R]) Call(ctx context.Context, arg A) (R, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.mu.Lock()
	if a.active {
		a.cancelLocked()
		a.logger.Debug("action superseded", "action", a.name, "generation", a.gen)
	}
	a.gen++
	gen := a.gen
	a.active = true
	a.cancel = cancel
	a.mu.Unlock()

	a.transition(gen, StatusLoading, nil, false)

	report := func(status Status, payload any) {
		a.transition(gen, status, payload, false)
	}
	result, err := a.run(opCtx, report, arg)

	if err != nil {
		a.transition(gen, StatusError, err, true)
	} else {
		a.transition(gen, StatusSuccess, result, true)
	}
	return result, err
}

// Cancel invalidates the active invocation, if any, and sets the status to
// [StatusIdle] without running effects. The invocation's context is
// cancelled; its later reports and settlement are discarded.
func (a *Action[A, R]) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active {
		return
	}
	a.cancelLocked()
	a.logger.Debug("action cancelled", "action", a.name)
}

func (a *Action[A, R]) cancelLocked() {
	a.gen++
	a.active = false
	a.status = StatusIdle
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

// Status returns the current status.
func (a *Action[A, R]) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// IsIdle reports whether the status is [StatusIdle].
func (a *Action[A, R]) IsIdle() bool { return a.Status() == StatusIdle }

// IsLoading reports whether the status is [StatusLoading].
func (a *Action[A, R]) IsLoading() bool { return a.Status() == StatusLoading }

// IsSuccess reports whether the status is [StatusSuccess].
func (a *Action[A, R]) IsSuccess() bool { return a.Status() == StatusSuccess }

// IsError reports whether the status is [StatusError].
func (a *Action[A, R]) IsError() bool { return a.Status() == StatusError }

// Store returns the store the action is bound to.
func (a *Action[A, R]) Store() *Store {
	return a.store
}

// run calls the operation, converting a panic into an error.
func (a *Action[A, R]) run(ctx context.Context, report Reporter, arg A) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverAsError(a.logger, r, "action", a.name)
		}
	}()
	return a.op(ctx, a.store, report, arg)
}

// transition applies status on behalf of invocation gen. It is discarded
// when gen is no longer current. A final transition also ends the
// invocation, so later reports from it are discarded too.
func (a *Action[A, R]) transition(gen uint64, status Status, payload any, final bool) {
	if !status.Valid() {
		a.logger.Warn("invalid status ignored", "action", a.name, "status", status.String())
		return
	}
	a.mu.Lock()
	if a.gen != gen {
		a.mu.Unlock()
		a.logger.Debug("stale status suppressed", "action", a.name, "status", status.String())
		return
	}
	a.status = status
	if final {
		a.gen++
		a.active = false
		a.cancel = nil
	}
	fx := a.effectsLocked()
	a.mu.Unlock()

	a.logger.Debug("status changed", "action", a.name, "status", status.String())
	value, err := a.decodePayload(status, payload)
	a.runEffects(fx, status, value, err)
}

type effectSet[R any] struct {
	onError   []func(*Store, error)
	onSuccess []func(*Store, R)
	onLoading []func(*Store)
}

// effectsLocked snapshots the effect lists so effects registered while
// running are picked up on the next transition, not the current one.
func (a *Action[A, R]) effectsLocked() effectSet[R] {
	return effectSet[R]{
		onError:   slices.Clone(a.onError),
		onSuccess: slices.Clone(a.onSuccess),
		onLoading: slices.Clone(a.onLoading),
	}
}

func (a *Action[A, R]) decodePayload(status Status, payload any) (R, error) {
	var zero R
	switch status {
	case StatusSuccess:
		if payload == nil {
			return zero, nil
		}
		v, ok := payload.(R)
		if !ok {
			a.logger.Warn("success payload type mismatch",
				"action", a.name,
				"got", fmt.Sprintf("%T", payload),
				"want", fmt.Sprintf("%T", zero),
			)
		}
		return v, nil
	case StatusError:
		switch p := payload.(type) {
		case nil:
			return zero, nil
		case error:
			return zero, p
		default:
			return zero, fmt.Errorf("%v", p)
		}
	}
	return zero, nil
}

func (a *Action[A, R]) runEffects(fx effectSet[R], status Status, value R, err error) {
	attrs := []any{"action", a.name, "status", status.String()}
	switch status {
	case StatusError:
		for _, effect := range fx.onError {
			invokeSafe(a.logger, "effect", func() { effect(a.store, err) }, attrs...)
		}
	case StatusSuccess:
		for _, effect := range fx.onSuccess {
			invokeSafe(a.logger, "effect", func() { effect(a.store, value) }, attrs...)
		}
	case StatusLoading:
		for _, effect := range fx.onLoading {
			invokeSafe(a.logger, "effect", func() { effect(a.store) }, attrs...)
		}
	}
}
