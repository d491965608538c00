// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package image implements the strided image representation shared by
// gpuimage and the conversions between it and external buffer descriptions:
// buffer layout normalization, format inference and validation, allocation
// requirements, and export back to buffers.
package image

import (
	"fmt"

	"github.com/gogpu/gpuimage/format"
	"github.com/gogpu/gpuimage/mem"
)

// Plane is one pitch-linear 2-D region of an image. Its element type is
// given by the image format.
type Plane struct {
	Width     int32
	Height    int32
	RowStride int64
	Base      mem.Ptr
}

// Size returns the plane size.
func (p Plane) Size() format.Size {
	return format.Size{W: p.Width, H: p.Height}
}

// Data is the strided description of an image: its format and planes.
type Data struct {
	Format format.ImageFormat
	Planes []Plane
}

// NumPlanes returns the number of planes.
func (d Data) NumPlanes() int {
	return len(d.Planes)
}

// Size returns the image size, which is the size of plane 0.
func (d Data) Size() format.Size {
	if len(d.Planes) == 0 {
		return format.Size{}
	}
	return d.Planes[0].Size()
}

// RowBytes returns the number of meaningful bytes in a row of plane p.
func (d Data) RowBytes(p int) int64 {
	return int64(d.Planes[p].Width) * int64(d.Format.PlanePixelStrideBytes(p))
}

// MemKind returns the resource kind of the image memory.
func (d Data) MemKind() mem.Kind {
	if len(d.Planes) == 0 {
		return mem.KindHost
	}
	return d.Planes[0].Base.Kind()
}

// Geometry reports whether d and other have the same format and plane
// sizes and row lengths, regardless of where the planes live.
func (d Data) Geometry(other Data) bool {
	if d.Format != other.Format || len(d.Planes) != len(other.Planes) {
		return false
	}
	for p := range d.Planes {
		if d.Planes[p].Size() != other.Planes[p].Size() {
			return false
		}
	}
	return true
}

// String formats the data for logs.
func (d Data) String() string {
	return fmt.Sprintf("%s %s (%d planes)", d.Size(), d.Format, len(d.Planes))
}
