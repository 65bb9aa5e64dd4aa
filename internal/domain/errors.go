package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEntry is returned when an entry cannot be analysed at all.
	ErrInvalidEntry = errors.New("invalid entry")
	// ErrNoUsableScores is returned when every category batch failed.
	ErrNoUsableScores = errors.New("no usable category scores")
	// ErrDeadlineExceeded marks work cut short by the run deadline.
	ErrDeadlineExceeded = errors.New("analysis deadline exceeded")
)

// ValidationError describes one discarded unit of model output.
type ValidationError struct {
	CategoryID string
	Reason     string
}

func (e *ValidationError) Error() string {
	if e.CategoryID == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: category %s: %s", e.CategoryID, e.Reason)
}

// IntegrityError is raised when a report misses structurally required fields.
type IntegrityError struct {
	Field  string
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("report integrity: %s: %s", e.Field, e.Reason)
}
