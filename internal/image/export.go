// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package image

import (
	"github.com/gogpu/gpuimage/format"
	"github.com/gogpu/gpuimage/mem"
	"github.com/gogpu/gpuimage/status"
	"github.com/gogpu/gpuimage/tensor"
)

// ExportInfo describes one buffer an image exports to.
type ExportInfo struct {
	Layout  tensor.Layout
	Shape   []int64
	Strides []int64
	DType   tensor.DType

	// Base is the first element in image memory.
	Base mem.Ptr

	// Planes, PlaneStride, Rows, RowStride and RowBytes describe the
	// exported memory as a stack of 2-D regions for plane-by-plane copies.
	Planes      int
	PlaneStride int64
	Rows        int32
	RowStride   int64
	RowBytes    int64
}

// Buffer returns the export as a buffer aliasing image memory.
func (e ExportInfo) Buffer(dev tensor.Device) tensor.Buffer {
	return tensor.Buffer{
		Shape:   e.Shape,
		Strides: e.Strides,
		DType:   e.DType,
		Data:    e.Base,
		Device:  dev,
		Layout:  e.Layout,
	}
}

// PackedStrides returns row-major strides for a densely packed copy of the
// export.
func (e ExportInfo) PackedStrides() []int64 {
	strides := make([]int64, len(e.Shape))
	s := e.DType.SizeBytes()
	for i := len(e.Shape) - 1; i >= 0; i-- {
		strides[i] = s
		s *= e.Shape[i]
	}
	return strides
}

// PackedSize returns the byte size of a densely packed copy of the export.
func (e ExportInfo) PackedSize() int64 {
	n := e.DType.SizeBytes()
	for _, d := range e.Shape {
		n *= d
	}
	return n
}

// CopyTo issues the copies of the exported memory into dst, a densely
// packed buffer of PackedSize bytes.
func (e ExportInfo) CopyTo(s mem.Stream, dst mem.Ptr) error {
	hostPlane := e.RowBytes * int64(e.Rows)
	for p := range e.Planes {
		err := s.Copy2D(dst.Add(int64(p)*hostPlane), e.RowBytes,
			e.Base.Add(int64(p)*e.PlaneStride), e.RowStride, e.RowBytes, e.Rows)
		if err != nil {
			return err
		}
	}
	return nil
}

// Export describes the buffers d exports to.
//
// Planes are coalesced into a single buffer when every plane has the size
// and row stride of plane 0, plane 0 holds one channel, all planes share its
// element type and the planes are evenly spaced in one allocation. A single
// buffer is laid out HW for one-channel images, HWC for packed images and
// CHW for planar ones. Otherwise each plane exports to its own HWC buffer.
//
// A non-empty layout reorders the axes: every exported axis of extent two
// or more must appear in it, in the same relative order, and axes it adds
// get extent 1 and stride 0.
func Export(d Data, layout tensor.Layout) ([]ExportInfo, error) {
	if len(d.Planes) == 0 {
		return nil, nil
	}
	if d.Format.MemLayout() != format.PitchLinear {
		return nil, status.Invalidf("only images with pitch-linear formats can be exported, not %s", d.Format)
	}

	planeStride, single := coalescedStride(d)
	numBuffers := len(d.Planes)
	if single {
		numBuffers = 1
	}

	out := make([]ExportInfo, 0, numBuffers)
	for p := range numBuffers {
		pl := d.Planes[p]
		channels := int64(d.Format.PlaneNumChannels(p))
		if d.Format.PlanePacking(p).Pair != format.PairNone {
			// Three channels in the plane, but two per pixel.
			channels = 2
		}
		bpp := int64(d.Format.PlanePixelStrideBytes(p))
		h, w := int64(pl.Height), int64(pl.Width)

		e := ExportInfo{
			DType:     tensor.ChannelDType(d.Format.PlaneDataType(p)),
			Base:      pl.Base,
			Planes:    1,
			Rows:      pl.Height,
			RowStride: pl.RowStride,
			RowBytes:  w * bpp,
		}

		var (
			shape, strides []int64
			inferred       tensor.Layout
		)
		switch {
		case numBuffers > 1:
			shape = []int64{h, w, channels}
			strides = []int64{pl.RowStride, bpp, bpp / channels}
			inferred = tensor.LayoutHWC
		case d.Format.NumChannels() == 1:
			shape = []int64{h, w}
			strides = []int64{pl.RowStride, bpp}
			inferred = tensor.LayoutHW
		case len(d.Planes) == 1:
			shape = []int64{h, w, channels}
			strides = []int64{pl.RowStride, bpp, bpp / channels}
			inferred = tensor.LayoutHWC
		default:
			shape = []int64{int64(len(d.Planes)), h, w}
			strides = []int64{planeStride, pl.RowStride, bpp}
			inferred = tensor.LayoutCHW
			e.Planes = len(d.Planes)
			e.PlaneStride = planeStride
		}

		if layout == tensor.LayoutNone {
			e.Layout, e.Shape, e.Strides = inferred, shape, strides
		} else {
			var err error
			e.Shape, e.Strides, err = applyLayout(layout, inferred, shape, strides)
			if err != nil {
				return nil, err
			}
			e.Layout = layout
		}
		out = append(out, e)
	}
	return out, nil
}

// coalescedStride reports whether the planes of d fit one buffer and the
// byte distance between consecutive planes.
func coalescedStride(d Data) (int64, bool) {
	if len(d.Planes) == 1 {
		return 0, true
	}
	first := d.Planes[0]
	dt := d.Format.PlaneDataType(0)
	if dt.NumChannels() >= 2 {
		return 0, false
	}

	stride, ok := d.Planes[1].Base.Diff(first.Base)
	if !ok || stride <= 0 {
		return 0, false
	}
	for p := 1; p < len(d.Planes); p++ {
		pl := d.Planes[p]
		if pl.Width != first.Width || pl.Height != first.Height || pl.RowStride != first.RowStride ||
			d.Format.PlaneDataType(p) != dt {
			return 0, false
		}
		if p >= 2 {
			cur, ok := pl.Base.Diff(d.Planes[p-1].Base)
			if !ok || cur != stride {
				return 0, false
			}
		}
	}
	return stride, true
}

func applyLayout(user, inferred tensor.Layout, shape, strides []int64) ([]int64, []int64, error) {
	for i := range inferred.Rank() {
		if shape[i] >= 2 && user.Find(inferred.Axis(i)) < 0 {
			return nil, nil, status.Invalidf("layout %s needs dimension '%c'", user, inferred.Axis(i))
		}
	}

	outShape := make([]int64, user.Rank())
	outStrides := make([]int64, user.Rank())
	last := -1
	for i := range user.Rank() {
		j := inferred.Find(user.Axis(i))
		if j < 0 {
			outShape[i] = 1
			outStrides[i] = 0
			continue
		}
		if j <= last {
			return nil, nil, status.Invalidf("layout %s not compatible with image exported as %s", user, inferred)
		}
		last = j
		outShape[i] = shape[j]
		outStrides[i] = strides[j]
	}
	return outShape, outStrides, nil
}
