package statekit

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/google/uuid"
)

// PanicError is returned by [Action.Call] when the operation panics.
//
// The full stack trace is logged with the same correlation ID so the
// failure can be matched to its log record.
type PanicError struct {
	CorrelationID string
	Value         any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("operation panic: %v (correlation_id: %s)", e.Value, e.CorrelationID)
}

// invokeSafe calls fn with panic recovery.
// Panics are logged with a correlation ID and stack trace but do not propagate.
func invokeSafe(logger *slog.Logger, kind string, fn func(), attrs ...any) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(kind+" panicked", append(attrs,
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)...)
		}
	}()
	fn()
}

// recoverAsError converts a recovered panic into a *PanicError.
func recoverAsError(logger *slog.Logger, r any, attrs ...any) error {
	id := uuid.NewString()
	logger.Error("operation panicked", append(attrs,
		"correlation_id", id,
		"panic", fmt.Sprintf("%v", r),
		"stack", string(debug.Stack()),
	)...)
	return &PanicError{CorrelationID: id, Value: r}
}
