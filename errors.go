package statekit

import "errors"

var (
	ErrNilStore     = errors.New("store cannot be nil")
	ErrNilOperation = errors.New("operation cannot be nil")
)
