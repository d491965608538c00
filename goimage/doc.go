// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package goimage converts between Go image.Image values and the buffer
// descriptions used by gpuimage.
//
// FromImage describes the pixels of a Go image as host buffers and the
// format they hold. Gray, NRGBA and 4:2:0 YCbCr images are described in
// place; other images are copied, converting through NRGBA when no format
// matches their memory.
//
// ToImage builds a Go image from host buffers. It aliases the buffer memory
// when the Go type stores pixels the same way and copies otherwise.
//
// Upload and Download move Go images in and out of a gpuimage.Context.
package goimage
