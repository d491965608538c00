// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halmem

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/gpuimage/backend"
	"github.com/gogpu/gpuimage/mem"
)

// init registers the hal backends on package import.
func init() {
	backend.Register(backend.BackendVulkan, func() backend.Backend {
		return &deviceBackend{name: backend.BackendVulkan, open: func() (*Backend, error) {
			return OpenVariant(gputypes.BackendVulkan)
		}}
	})
	backend.Register(backend.BackendNoop, func() backend.Backend {
		return &deviceBackend{name: backend.BackendNoop, open: func() (*Backend, error) {
			var api hal.Backend = &noop.API{}
			return Open(api)
		}}
	})
}

// deviceBackend is a backend.Backend over a device it opens itself.
type deviceBackend struct {
	name string
	open func() (*Backend, error)

	b      *Backend
	alloc  *mem.Allocator
	stream *Stream
}

func (d *deviceBackend) Name() string {
	return d.name
}

func (d *deviceBackend) Init() error {
	if d.b != nil {
		return nil
	}
	b, err := d.open()
	if err != nil {
		return err
	}
	alloc, err := mem.NewCustom(b.Resource())
	if err != nil {
		b.Close()
		return err
	}
	// Images may outlive the backend; the device goes with the last block.
	alloc.OnCleanup(b.Close)
	d.b, d.alloc, d.stream = b, alloc, b.NewStream()
	return nil
}

func (d *deviceBackend) Allocator() *mem.Allocator {
	return d.alloc
}

func (d *deviceBackend) Stream() mem.Stream {
	if d.stream == nil {
		return nil
	}
	return d.stream
}

// Close stops the stream and drops the backend's allocator reference. The
// device is closed once no allocator references remain.
func (d *deviceBackend) Close() {
	if d.b == nil {
		return
	}
	_ = d.stream.Close()
	d.alloc.DecRef()
	d.b, d.alloc, d.stream = nil, nil, nil
}
