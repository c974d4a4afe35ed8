package statekit

// Status is the lifecycle state of an [Action].
//
// Exactly one status is current at any time. Status is a string type so it
// logs and serializes without translation.
type Status string

const (
	// StatusIdle means no invocation is running. Every action starts idle
	// and returns to idle when cancelled.
	StatusIdle Status = "idle"

	// StatusLoading means an invocation is in flight.
	StatusLoading Status = "loading"

	// StatusError means the most recent invocation failed.
	StatusError Status = "error"

	// StatusSuccess means the most recent invocation succeeded.
	StatusSuccess Status = "success"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Valid reports whether s is one of the four defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusLoading, StatusError, StatusSuccess:
		return true
	}
	return false
}
