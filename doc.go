// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpuimage marshals images between external multi-dimensional
// buffers and a canonical strided image representation for GPU image
// pipelines, and manages the lifetime of those images.
//
// # Overview
//
// An external buffer (tensor.Buffer) is a rank 1 to 4 array with byte
// strides, an element type and a device. Wrapping one or more buffers
// infers the image format from their geometry: a 3-channel interleaved
// buffer becomes RGB8, three single-channel buffers a planar image, a luma
// plane followed by a 2-channel half-size plane NV12. An explicit format
// is checked against the inferred one.
//
// # Quick Start
//
//	c, err := gpuimage.NewContext()
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	img, err := c.Wrap([]tensor.Buffer{buf}, format.None)
//	if err != nil {
//		return err
//	}
//	defer img.Release()
//
//	fmt.Println(img) // <gpuimage.Image 640x480 RGB8>
//
//	// Export as CHW, or copy to packed host memory.
//	bufs, err := img.Device(tensor.LayoutCHW)
//	host, err := img.Host(ctx, tensor.LayoutNone)
//
// # Lifecycle
//
// A Context pools every image it creates. Released images are reused by
// later requests: Create and Zeros reuse images of the same size and format,
// Wrap re-targets idle wrappers at new buffers. An image with copies or
// fills pending on the context stream stays in use until the stream reaches
// them, so reuse never races device work.
//
// # Memory
//
// Images are allocated from a mem.Allocator and filled through a
// mem.Stream. The defaults use Go memory and a host worker goroutine;
// backend/halmem provides both on a WebGPU HAL device, and package backend
// selects between them by name.
//
// # Logging
//
// gpuimage is silent by default; see SetLogger.
package gpuimage
