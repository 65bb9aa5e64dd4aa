package gateway

import (
	"context"
	"errors"
	"fmt"

	"NarrativeScorer/internal/ports"
)

// Kind classifies a gateway failure.
type Kind string

const (
	KindTimeout     Kind = "timeout"
	KindMalformed   Kind = "malformed"
	KindRateLimited Kind = "rate_limited"
	KindUnavailable Kind = "unavailable"
	KindPermanent   Kind = "permanent"
)

var (
	errTimeout         = errors.New("model call timed out")
	errMalformed       = errors.New("malformed model payload")
	errBudgetExhausted = errors.New("run retry budget exhausted")
	errInvalidSchema   = errors.New("invalid schema")
)

// Error is the only error type Invoke returns.
type Error struct {
	Kind     Kind
	Stage    string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %s: %s after %d attempt(s): %v", e.Stage, e.Kind, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether the failure was of a retryable kind.
func (e *Error) Transient() bool { return e.Kind != KindPermanent }

// IsPermanent reports whether err carries a permanent gateway failure.
func IsPermanent(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == KindPermanent
}

func classify(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ports.ErrModelUnauthorized), errors.Is(err, ports.ErrModelBadRequest),
		errors.Is(err, errInvalidSchema):
		return KindPermanent
	case errors.Is(err, ports.ErrModelRateLimited):
		return KindRateLimited
	case errors.Is(err, errTimeout), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindTimeout
	case errors.Is(err, errMalformed):
		return KindMalformed
	default:
		return KindUnavailable
	}
}
