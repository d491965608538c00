// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"

	"github.com/gogpu/gpuimage/mem"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("backend: not initialized")
)

// Backend provides image memory and the stream that moves it.
//
// Backends must be registered via Register() and are selected via
// Get() or Default().
type Backend interface {
	// Name returns the backend identifier (e.g., "host", "vulkan").
	Name() string

	// Init acquires the backend resources. It must be called before
	// Allocator and Stream.
	Init() error

	// Allocator returns the allocator image memory comes from. The backend
	// keeps its own reference until Close.
	Allocator() *mem.Allocator

	// Stream returns the stream copies and fills are issued on. It is
	// closed by Close.
	Stream() mem.Stream

	// Close releases all backend resources.
	// The backend should not be used after Close is called.
	Close()
}
