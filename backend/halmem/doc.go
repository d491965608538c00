// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package halmem backs image memory with GPU buffers of a
// github.com/gogpu/wgpu/hal device.
//
// A Backend wraps a hal.Device and its hal.Queue. It provides a
// mem.ResourceAllocator that allocates KindDevice blocks as hal buffers,
// and a Stream that moves rows between those buffers and host memory:
//
//	b, err := halmem.NewFromProvider(app.GPUContextProvider())
//	if err != nil {
//	    return err
//	}
//	alloc, _ := mem.NewCustom(b.Resource())
//	stream := b.NewStream()
//	ctx, err := gpuimage.NewContext(
//	    gpuimage.WithAllocator(alloc),
//	    gpuimage.WithStream(stream),
//	)
//
// Open creates a backend owning its own device instead, and importing the
// package registers the "vulkan" and "noop" backends with package backend.
//
// # Copies
//
// Host to device copies and fills are written with Queue.WriteBuffer.
// Device to device copies are recorded with CommandEncoder.CopyBufferToBuffer
// and device to host copies go through a staging buffer read back with
// Queue.ReadBuffer, both waiting on a fence.
//
// Buffer copies have a 4-byte granularity. Device offsets must be multiples
// of 4, and rows may be rounded up to 4 bytes, overwriting up to 3 bytes of
// row padding. Pitched writes whose row width or pitch is not a multiple of
// 4 are issued as one write spanning every row and overwrite the bytes
// between rows.
package halmem
