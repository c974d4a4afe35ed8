package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/statekit"
)

// profile is the success payload of the load action.
type profile struct {
	Name  string
	Email string
}

// fetchProfile simulates a slow backend lookup that honours cancellation.
func fetchProfile(ctx context.Context, _ *statekit.Store, report statekit.Reporter, id int) (profile, error) {
	for pct := 25; pct < 100; pct += 25 {
		select {
		case <-time.After(100 * time.Millisecond):
			report(statekit.StatusLoading, pct)
		case <-ctx.Done():
			return profile{}, ctx.Err()
		}
	}
	if id <= 0 {
		return profile{}, errors.New("no such user")
	}
	return profile{Name: fmt.Sprintf("user-%d", id), Email: fmt.Sprintf("user-%d@example.com", id)}, nil
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	store, err := statekit.New(statekit.State{"loading": false, "profile": nil, "error": ""},
		statekit.WithLogger(logger),
	)
	if err != nil {
		slog.Error("failed to create store", "error", err)
		os.Exit(1)
	}

	// the "view": re-render whenever state changes
	store.AttachComponent(func(st statekit.State) {
		fmt.Printf("render loading=%v profile=%v error=%q\n", st["loading"], st["profile"], st["error"])
	})
	defer store.DetachComponent()

	stopWatch := statekit.Select(store,
		func(st statekit.State) any { return st["profile"] },
		nil,
		func(p any) { fmt.Printf("profile changed: %v\n", p) },
	)
	defer stopWatch()

	load, err := statekit.NewAction(store, fetchProfile, statekit.WithActionName("load_profile"))
	if err != nil {
		slog.Error("failed to create action", "error", err)
		os.Exit(1)
	}
	load.OnLoading(func(s *statekit.Store) {
		s.Set(statekit.State{"loading": true, "error": ""})
	}).OnSuccess(func(s *statekit.Store, p profile) {
		s.Set(statekit.State{"loading": false, "profile": p})
	}).OnError(func(s *statekit.Store, err error) {
		s.Set(statekit.State{"loading": false, "error": err.Error()})
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the first lookup is superseded by the second and is never rendered
	go func() { _, _ = load.Call(ctx, 1) }()
	time.Sleep(50 * time.Millisecond)

	if _, err := load.Call(ctx, 2); err != nil {
		slog.Error("load failed", "error", err)
	}
	if _, err := load.Call(ctx, 0); err != nil {
		fmt.Printf("second load failed as expected: %v (status %s)\n", err, load.Status())
	}
}
