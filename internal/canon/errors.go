// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package canon

import (
	"errors"
	"fmt"
)

var (
	// ErrUnrepresentable indicates a caller-supplied value could not be
	// converted to the value model.
	ErrUnrepresentable = errors.New("unrepresentable value")

	// ErrNonFinite indicates a NaN or infinite float, which has no decimal form.
	ErrNonFinite = errors.New("non-finite float")

	// ErrDepthExceeded indicates the value tree nests deeper than MaxDepth.
	ErrDepthExceeded = errors.New("maximum nesting depth exceeded")

	// ErrOrderingViolation indicates mapping keys that are not in strictly
	// ascending order where a signing payload requires them to be.
	ErrOrderingViolation = errors.New("mapping keys out of order")
)

// ErrorKind classifies an EncodeError.
type ErrorKind uint8

const (
	Unrepresentable ErrorKind = iota
	NonFinite
	DepthExceeded
	OrderingViolation
)

func (k ErrorKind) sentinel() error {
	switch k {
	case NonFinite:
		return ErrNonFinite
	case DepthExceeded:
		return ErrDepthExceeded
	case OrderingViolation:
		return ErrOrderingViolation
	default:
		return ErrUnrepresentable
	}
}

// String returns the kind name.
func (k ErrorKind) String() string {
	return k.sentinel().Error()
}

// EncodeError is returned by every encoding entry point. It matches the
// sentinel for its Kind under errors.Is and unwraps to the underlying cause,
// if any.
type EncodeError struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *EncodeError) Error() string {
	msg := "canon: " + e.Kind.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is the sentinel for e.Kind.
func (e *EncodeError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (e *EncodeError) Unwrap() error { return e.Err }

func newError(kind ErrorKind, err error, format string, args ...any) *EncodeError {
	return &EncodeError{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: err}
}
