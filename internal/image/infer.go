// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package image

import (
	"github.com/gogpu/gpuimage/format"
	"github.com/gogpu/gpuimage/status"
)

// baseFormats are the packed/planar templates indexed by channel count - 1.
var baseFormats = [format.MaxChannels]format.ImageFormat{
	format.U8,
	format.TwoF32,
	format.RGB8,
	format.RGBA8,
}

// InferFormat derives an image format from the element types of its planes.
//
// Packed (one plane) and fully planar (one channel per plane) images take
// the color model and swizzle of the base format for their channel count:
// U8, 2F32, RGB8 or RGBA8. Two planes holding three channels are taken as
// semi-planar luma/chroma and get the NV12_ER template. Anything else
// becomes a non-color format whose swizzle covers its channels in order.
//
// Only the 2-plane, 3-channel arrangement is recognized as semi-planar; a
// 2-plane, 4-channel image falls through to the non-color case.
//
// An empty list yields format.None.
func InferFormat(planeTypes []format.DataType) (format.ImageFormat, error) {
	if len(planeTypes) == 0 {
		return format.None, nil
	}
	if len(planeTypes) > format.MaxPlanes {
		return format.None, status.Errorf(status.Internal, "%d planes inferred, at most %d are possible",
			len(planeTypes), format.MaxPlanes)
	}

	packings := make([]format.Packing, len(planeTypes))
	channels := 0
	kind := planeTypes[0].Kind
	for p, dt := range planeTypes {
		if dt.Kind != kind {
			return format.None, status.Invalidf("planes must all have the same data kind, plane %d is %s, not %s",
				p, dt.Kind, kind)
		}
		packings[p] = dt.Packing
		channels += dt.NumChannels()
	}
	if channels < 1 || channels > format.MaxChannels {
		return format.None, status.Invalidf("images must have between 1 and %d channels, not %d",
			format.MaxChannels, channels)
	}

	planes := len(planeTypes)
	switch {
	case planes == 1 || channels == planes:
		base := baseFormats[channels-1]
		return base.WithDataKind(kind).WithSwizzleAndPacking(base.Swizzle(), packings...), nil

	case planes == 2 && channels == 3:
		return format.NV12ER.WithDataKind(kind).WithSwizzleAndPacking(format.SwizzleXYZ0, packings...), nil

	default:
		return format.U8.WithDataKind(kind).WithSwizzleAndPacking(format.SwizzleFor(channels), packings...), nil
	}
}
