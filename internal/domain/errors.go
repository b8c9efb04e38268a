package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and retry decisions.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthorization  Kind = "authorization"
	KindNotFound       Kind = "not_found"
	KindTimeout        Kind = "timeout"
	KindTransient      Kind = "transient"
	KindRenderDegraded Kind = "render_degraded"
	KindUnknown        Kind = "unknown"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrResumeNotFound    = errors.New("parsed resume data not found")
	ErrNotOwner          = errors.New("job does not belong to caller")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrRetryLimit        = errors.New("retry limit reached")
	ErrNotRetryable      = errors.New("job failure is not retryable")
	ErrMissingHTML       = errors.New("completed job requires an html url")
	ErrGenerationTimeout = errors.New("generation timed out")
	ErrMissingJobID      = errors.New("job id is required")
)

// Error carries a Kind alongside the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in the chain, or KindUnknown.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

func IsKind(err error, kind Kind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == kind
}

// Code is the user-visible error code for a kind.
func (k Kind) Code() string {
	switch k {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindAuthorization:
		return "PERMISSION_DENIED"
	case KindNotFound:
		return "NOT_FOUND"
	case KindTimeout:
		return "GENERATION_TIMEOUT"
	case KindTransient:
		return "TRANSIENT_INFRA"
	case KindRenderDegraded:
		return "RENDER_DEGRADED"
	}
	return "UNKNOWN_GENERATION_ERROR"
}
