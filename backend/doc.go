// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package backend selects where gpuimage images live.
//
// A backend provides the allocator image memory comes from and the stream
// copies and fills are issued on. Backends register themselves from init
// functions and are selected by name at runtime. The host backend is always
// registered:
//
//	import _ "github.com/gogpu/gpuimage/backend"
//
// Importing backend/halmem registers the "vulkan" and "noop" backends, which
// allocate hal buffers on a device of that API. The Vulkan driver itself is
// registered by importing github.com/gogpu/wgpu/hal/vulkan.
//
// # Usage
//
//	b, err := backend.InitDefault()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer b.Close()
//
//	c, err := gpuimage.NewContext(
//		gpuimage.WithAllocator(b.Allocator()),
//		gpuimage.WithStream(b.Stream()),
//	)
//
// Close the context before the backend.
//
// # Available Backends
//
//   - "host": Go memory, copies on a host stream (always available)
//   - "vulkan": hal buffers on the preferred Vulkan adapter
//   - "noop": hal buffers on the no-op device, for tests
package backend
