// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package image

import (
	"math"
	"math/bits"

	"github.com/gogpu/gpuimage/format"
	"github.com/gogpu/gpuimage/mem"
	"github.com/gogpu/gpuimage/status"
)

// Default alignments of freshly allocated images.
const (
	DefaultBaseAlign = 256
	DefaultRowAlign  = 32
)

// PlaneRequirements is the placement of one plane inside an allocation.
type PlaneRequirements struct {
	Width     int32
	Height    int32
	RowStride int64
	Offset    int64
}

// Requirements is the memory needed by an image of a given size and format.
type Requirements struct {
	Format    format.ImageFormat
	Planes    []PlaneRequirements
	SizeBytes int64
	Alignment int
}

// CalcRequirements computes the memory needed by a pitch-linear image.
// Rows are padded to rowAlign and planes start at multiples of baseAlign;
// zero selects the defaults. Size computations that overflow are
// AllocationFailure errors.
func CalcRequirements(size format.Size, f format.ImageFormat, baseAlign, rowAlign int) (Requirements, error) {
	if size.W <= 0 || size.H <= 0 {
		return Requirements{}, status.Invalidf("image size must be positive, not %s", size)
	}
	if f.IsNone() || f.NumPlanes() == 0 {
		return Requirements{}, status.Invalidf("image format must not be %s", f)
	}
	if f.MemLayout() != format.PitchLinear {
		return Requirements{}, status.Invalidf("only pitch-linear images can be allocated, not %s", f)
	}
	if baseAlign == 0 {
		baseAlign = DefaultBaseAlign
	}
	if rowAlign == 0 {
		rowAlign = DefaultRowAlign
	}
	if !isPow2(baseAlign) || !isPow2(rowAlign) {
		return Requirements{}, status.Invalidf("alignments must be powers of two, not base %d and row %d",
			baseAlign, rowAlign)
	}

	req := Requirements{
		Format:    f,
		Planes:    make([]PlaneRequirements, f.NumPlanes()),
		Alignment: max(baseAlign, rowAlign),
	}
	var offset int64
	for p := range req.Planes {
		ps := f.PlaneSize(size, p)
		bpp := int64(f.PlanePixelStrideBytes(p))

		row, ok := alignUp(int64(ps.W)*bpp, int64(rowAlign))
		if !ok {
			return Requirements{}, overflow(size, f)
		}
		if row > math.MaxInt64/int64(ps.H) {
			return Requirements{}, overflow(size, f)
		}
		if offset, ok = alignUp(offset, int64(baseAlign)); !ok {
			return Requirements{}, overflow(size, f)
		}

		req.Planes[p] = PlaneRequirements{Width: ps.W, Height: ps.H, RowStride: row, Offset: offset}

		planeBytes := row * int64(ps.H)
		if offset > math.MaxInt64-planeBytes {
			return Requirements{}, overflow(size, f)
		}
		offset += planeBytes
	}
	req.SizeBytes = offset
	return req, nil
}

// Bind lays the planes out in memory starting at base.
func (r Requirements) Bind(base mem.Ptr) Data {
	planes := make([]Plane, len(r.Planes))
	for p, pr := range r.Planes {
		planes[p] = Plane{
			Width:     pr.Width,
			Height:    pr.Height,
			RowStride: pr.RowStride,
			Base:      base.Add(pr.Offset),
		}
	}
	return Data{Format: r.Format, Planes: planes}
}

func overflow(size format.Size, f format.ImageFormat) error {
	return status.Errorf(status.AllocationFailure, "memory size of %s image with format %s overflows", size, f)
}

func isPow2(n int) bool {
	return n > 0 && bits.OnesCount(uint(n)) == 1
}

func alignUp(n, align int64) (int64, bool) {
	if n > math.MaxInt64-(align-1) {
		return 0, false
	}
	return (n + align - 1) &^ (align - 1), true
}
