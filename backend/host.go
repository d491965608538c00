// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"github.com/gogpu/gpuimage/mem"
)

// Backend name constants.
const (
	// BackendHost is the name of the Go memory backend.
	BackendHost = "host"
	// BackendVulkan is the name of the hal backend on a Vulkan device.
	BackendVulkan = "vulkan"
	// BackendNoop is the name of the hal backend on the no-op device.
	BackendNoop = "noop"
)

// HostBackend keeps images in Go memory and copies them on a host stream.
type HostBackend struct {
	alloc  *mem.Allocator
	stream *mem.HostStream
}

// init registers the host backend on package import.
func init() {
	Register(BackendHost, func() Backend {
		return &HostBackend{}
	})
}

// NewHostBackend creates a new host backend.
func NewHostBackend() *HostBackend {
	return &HostBackend{}
}

// Name returns the backend identifier.
func (b *HostBackend) Name() string {
	return BackendHost
}

// Init creates the allocator and starts the stream.
func (b *HostBackend) Init() error {
	if b.alloc != nil {
		return nil
	}
	b.alloc = mem.NewDefault()
	b.stream = mem.NewStream()
	return nil
}

// Allocator returns the host allocator, or nil before Init.
func (b *HostBackend) Allocator() *mem.Allocator {
	return b.alloc
}

// Stream returns the host stream, or nil before Init.
func (b *HostBackend) Stream() mem.Stream {
	if b.stream == nil {
		return nil
	}
	return b.stream
}

// Close stops the stream and drops the allocator reference.
func (b *HostBackend) Close() {
	if b.alloc == nil {
		return
	}
	_ = b.stream.Close()
	b.alloc.DecRef()
	b.alloc = nil
	b.stream = nil
}
