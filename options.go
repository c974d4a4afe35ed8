package statekit

import (
	"errors"
	"log/slog"
)

// storeConfig holds mutable state during Store construction.
type storeConfig struct {
	logger *slog.Logger
	ids    IDGenerator
}

// Option is a function that configures a [Store] during construction.
//
// Option implements the functional options pattern. Options return an
// error if validation fails, and [New] reports the first such error.
//
// Built-in options: [WithLogger], [WithIDGenerator].
type Option func(*storeConfig) error

// WithLogger sets a custom [slog.Logger] for the store.
//
// Dispatch, skipped updates and recovered subscriber panics are logged to
// it. If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *storeConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithIDGenerator replaces the default [CounterIDs] generator.
//
// Example:
//
//	s, err := statekit.New(statekit.State{"count": 0},
//	    statekit.WithIDGenerator(statekit.UUIDIDs{}),
//	)
//
// Returns an error if the generator is nil.
func WithIDGenerator(g IDGenerator) Option {
	return func(cfg *storeConfig) error {
		if g == nil {
			return errors.New("id generator cannot be nil")
		}
		cfg.ids = g
		return nil
	}
}

// actionConfig holds mutable state during Action construction.
type actionConfig struct {
	logger *slog.Logger
	name   string
}

// ActionOption configures an [Action] during construction.
type ActionOption func(*actionConfig) error

// WithActionLogger sets the logger used for status transitions and
// recovered effect panics. Defaults to the logger of the bound store.
//
// Returns an error if the logger is nil.
func WithActionLogger(logger *slog.Logger) ActionOption {
	return func(cfg *actionConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithActionName labels the action in log records.
func WithActionName(name string) ActionOption {
	return func(cfg *actionConfig) error {
		cfg.name = name
		return nil
	}
}
