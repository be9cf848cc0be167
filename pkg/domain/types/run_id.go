package types

import "github.com/google/uuid"

// RunID identifies one evaluation run for log and report correlation.
type RunID string

// NewRunID generates a new time-ordered RunID
func NewRunID() RunID {
	return RunID(uuid.Must(uuid.NewV7()).String())
}

// String returns the string representation of RunID
func (r RunID) String() string {
	return string(r)
}
