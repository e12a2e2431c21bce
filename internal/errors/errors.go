package errors

import (
	"errors"
)

// Sentinel errors for different categories
var (
	// ErrInvalidInput - invalid input (reject before any state is touched)
	ErrInvalidInput = errors.New("invalid input")

	// ErrMalformedState - tracked data violated an internal invariant
	// (empty id, zero start time); only the comprehensive validator
	// surfaces this
	ErrMalformedState = errors.New("malformed state")

	// ErrInternal - internal error (generic message, retry once then fail)
	ErrInternal = errors.New("internal error")
)
