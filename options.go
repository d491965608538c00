// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpuimage

import (
	"github.com/gogpu/gpuimage/internal/image"
	"github.com/gogpu/gpuimage/mem"
	"github.com/gogpu/gpuimage/tensor"
)

// Option configures a Context during creation.
//
// Example:
//
//	// Go memory and a host stream
//	c, err := gpuimage.NewContext()
//
//	// GPU memory with a 64 MiB pool
//	c, err := gpuimage.NewContext(
//	    gpuimage.WithAllocator(alloc),
//	    gpuimage.WithStream(stream),
//	    gpuimage.WithCacheLimit(64<<20),
//	)
type Option func(*options)

// options holds optional configuration for Context creation.
type options struct {
	allocator  *mem.Allocator
	stream     mem.Stream
	cacheLimit int64
	rowAlign   int
	baseAlign  int
	device     int
}

// defaultOptions returns the default context options.
func defaultOptions() options {
	return options{
		rowAlign:  image.DefaultRowAlign,
		baseAlign: image.DefaultBaseAlign,
	}
}

// WithAllocator sets the allocator images are allocated from. The context
// takes a reference and drops it on Close. Defaults to mem.NewDefault().
func WithAllocator(a *mem.Allocator) Option {
	return func(o *options) {
		o.allocator = a
	}
}

// WithStream sets the stream copies and fills are issued on. A stream
// passed in is not closed by the context. Defaults to a mem.HostStream
// owned by the context.
func WithStream(s mem.Stream) Option {
	return func(o *options) {
		o.stream = s
	}
}

// WithCacheLimit bounds the bytes held by pooled images that are not in
// use. Zero, the default, means unlimited.
func WithCacheLimit(bytes int64) Option {
	return func(o *options) {
		o.cacheLimit = bytes
	}
}

// WithRowAlign sets the default row alignment of allocated images, in
// bytes. It must be a power of two.
func WithRowAlign(align int) Option {
	return func(o *options) {
		o.rowAlign = align
	}
}

// WithBaseAlign sets the alignment of plane starts of allocated images, in
// bytes. It must be a power of two.
func WithBaseAlign(align int) Option {
	return func(o *options) {
		o.baseAlign = align
	}
}

// WithDevice sets the device ordinal reported by exported device buffers.
func WithDevice(id int) Option {
	return func(o *options) {
		o.device = id
	}
}

// deviceOf returns the descriptor of memory of kind k on the context device.
func (o options) deviceOf(k mem.Kind) tensor.Device {
	if k == mem.KindHost {
		return tensor.Device{Kind: k}
	}
	return tensor.Device{Kind: k, ID: o.device}
}
