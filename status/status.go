// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package status defines the error kinds reported by gpuimage and its
// sub-packages.
//
// Every error returned by the library wraps exactly one of the sentinel
// errors below, so callers classify failures with [errors.Is] or [CodeOf]:
//
//	img, err := ctx.Wrap(bufs, format.None)
//	if errors.Is(err, status.ErrInvalidArgument) {
//	    // fix the buffers and retry
//	}
package status

import (
	"errors"
	"fmt"
)

// Code is a coarse classification of an error.
type Code int

const (
	// Success means no error.
	Success Code = iota

	// InvalidArgument covers malformed buffers, strides, channel overflow,
	// incompatible formats or layouts and unsupported memory layouts.
	InvalidArgument

	// AllocationFailure means an allocator returned no memory or a size
	// computation overflowed.
	AllocationFailure

	// NotReady is reserved for asynchronous status queries.
	NotReady

	// Internal means an invariant was violated.
	Internal
)

// Sentinel errors, one per Code.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrAllocation      = errors.New("allocation failure")
	ErrNotReady        = errors.New("not ready")
	ErrInternal        = errors.New("internal error")
)

// String returns the name of the code.
func (c Code) String() string {
	switch c {
	case Success:
		return "Success"
	case InvalidArgument:
		return "InvalidArgument"
	case AllocationFailure:
		return "AllocationFailure"
	case NotReady:
		return "NotReady"
	case Internal:
		return "Internal"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// Err returns the sentinel error for the code, or nil for Success.
func (c Code) Err() error {
	switch c {
	case Success:
		return nil
	case InvalidArgument:
		return ErrInvalidArgument
	case AllocationFailure:
		return ErrAllocation
	case NotReady:
		return ErrNotReady
	default:
		return ErrInternal
	}
}

// CodeOf classifies err. Errors that wrap none of the sentinels are Internal.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, ErrInvalidArgument):
		return InvalidArgument
	case errors.Is(err, ErrAllocation):
		return AllocationFailure
	case errors.Is(err, ErrNotReady):
		return NotReady
	default:
		return Internal
	}
}

// Errorf formats an error of the given code.
func Errorf(c Code, format string, args ...any) error {
	sentinel := c.Err()
	if sentinel == nil {
		sentinel = ErrInternal
	}
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// Invalidf is shorthand for Errorf(InvalidArgument, ...).
func Invalidf(format string, args ...any) error {
	return Errorf(InvalidArgument, format, args...)
}
