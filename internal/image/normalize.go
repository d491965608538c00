// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package image

import (
	"math"

	"github.com/gogpu/gpuimage/format"
	"github.com/gogpu/gpuimage/mem"
	"github.com/gogpu/gpuimage/status"
	"github.com/gogpu/gpuimage/tensor"
)

// BufferInfo is the image interpretation of one buffer.
type BufferInfo struct {
	// NumPlanes is the number of image planes the buffer holds: its sample
	// count for channel-last buffers, its channel count otherwise.
	NumPlanes int

	Size        format.Size
	NumChannels int
	ChannelLast bool
	PlaneStride int64
	RowStride   int64
	DType       format.DataType
	Data        mem.Ptr
}

// PlaneChannels returns the number of channels of each plane of the buffer.
func (b BufferInfo) PlaneChannels() int {
	if b.ChannelLast {
		return b.NumChannels
	}
	return 1
}

// Axis positions of the canonical 4-D view.
const (
	nchwSample, nchwChannel, nchwHeight, nchwWidth = 0, 1, 2, 3
	nhwcSample, nhwcHeight, nhwcWidth, nhwcChannel = 0, 1, 2, 3
)

// Normalize interprets every buffer as a 4-D NCHW or NHWC image view.
//
// Rank 1 buffers are a single row and rank 2 buffers a single-channel
// plane. For rank 3 and 4 the last axis holds channels when declared names
// that many channels for the buffer's plane, or, without a declared format,
// when it has at most 4 elements; otherwise it is the width axis of a
// channel-first buffer.
//
// Rows may be padded in either layout. The buffers together must hold at
// most 4 channels and live on one device.
func Normalize(bufs []tensor.Buffer, declared format.ImageFormat) ([]BufferInfo, error) {
	infos := make([]BufferInfo, 0, len(bufs))
	channels := 0
	for i, b := range bufs {
		if i > 0 && b.Device != bufs[0].Device {
			return nil, status.Invalidf("all buffers must belong to the same device, buffer %d is on %s, not %s",
				i, b.Device, bufs[0].Device)
		}

		info, err := normalizeBuffer(b, declared, i)
		if err != nil {
			return nil, err
		}

		channels += info.NumPlanes * info.PlaneChannels()
		if channels > format.MaxChannels {
			return nil, status.Invalidf("number of channels specified in buffers must be <= %d", format.MaxChannels)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func normalizeBuffer(b tensor.Buffer, declared format.ImageFormat, index int) (BufferInfo, error) {
	rank := b.Rank()
	if rank < 1 || rank > 4 {
		return BufferInfo{}, status.Invalidf("number of buffer dimensions must be between 1 and 4, not %d", rank)
	}
	if len(b.Strides) != rank {
		return BufferInfo{}, status.Invalidf("buffer has %d strides for %d dimensions", len(b.Strides), rank)
	}
	for i, n := range b.Shape {
		if n <= 0 {
			return BufferInfo{}, status.Invalidf("buffer extent %d must be positive, not %d", i, n)
		}
	}
	elem := b.DType.SizeBytes()
	if elem <= 0 || b.DType.Kind == format.KindUnspecified {
		return BufferInfo{}, status.Invalidf("unsupported buffer element type %s", b.DType)
	}

	var shape, strides [4]int64
	channelLast := false

	switch rank {
	case 1:
		shape = [4]int64{1, 1, 1, b.Shape[0]}
		row := b.Shape[0] * b.Strides[0]
		strides = [4]int64{row, row, row, b.Strides[0]}

	case 2:
		shape = [4]int64{1, 1, b.Shape[0], b.Shape[1]}
		strides[0] = b.Shape[0] * b.Strides[0]
		strides[1] = strides[0]
		strides[2] = b.Strides[0]
		strides[3] = b.Strides[1]

	default:
		off := rank - 3
		shape[0] = 1
		if rank == 4 {
			shape[0] = b.Shape[0]
		}
		copy(shape[1:], b.Shape[off:])
		copy(strides[1:], b.Strides[off:])
		if rank == 3 {
			strides[0] = shape[1] * strides[1]
		} else {
			strides[0] = b.Strides[0]
		}

		if !declared.IsNone() {
			channelLast = int64(declared.PlaneNumChannels(index)) == shape[3]
		} else {
			channelLast = shape[3] <= format.MaxChannels
		}
	}

	if strides[0] <= 0 || strides[1] <= 0 || strides[2] <= 0 {
		return BufferInfo{}, status.Invalidf("buffer strides must all be >= 1")
	}
	if strides[3] != elem {
		return BufferInfo{}, status.Invalidf(
			"fastest changing dimension must be packed, i.e., have stride equal to %d byte(s), not %d",
			elem, strides[3])
	}

	info := BufferInfo{
		ChannelLast: channelLast,
		DType:       b.DType.DataType(),
		Data:        b.Data,
	}
	var width, height int64
	if channelLast {
		width, height = shape[nhwcWidth], shape[nhwcHeight]
		info.NumChannels = int(shape[nhwcChannel])
		info.NumPlanes = int(shape[nhwcSample])
		info.PlaneStride = strides[nhwcSample]
		info.RowStride = strides[nhwcHeight]

		pixel := elem * shape[nhwcChannel]
		if strides[nhwcWidth] != pixel {
			return BufferInfo{}, status.Invalidf(
				"image pixels must be packed, i.e., have stride equal to %d byte(s), not %d",
				pixel, strides[nhwcWidth])
		}
		if height > 1 && info.RowStride < pixel*width {
			return BufferInfo{}, status.Invalidf("row stride %d is smaller than the row size of %d byte(s)",
				info.RowStride, pixel*width)
		}
	} else {
		width, height = shape[nchwWidth], shape[nchwHeight]
		info.NumChannels = int(min(shape[nchwChannel], math.MaxInt32))
		info.NumPlanes = info.NumChannels
		info.PlaneStride = strides[nchwChannel]
		info.RowStride = strides[nchwHeight]

		// Rows may be padded, as in the planes Export hands out.
		packedRow := elem * width
		if height > 1 && info.RowStride < packedRow {
			return BufferInfo{}, status.Invalidf("row stride %d is smaller than the row size of %d byte(s)",
				info.RowStride, packedRow)
		}
	}

	if width > math.MaxInt32 || height > math.MaxInt32 {
		return BufferInfo{}, status.Invalidf("image size %dx%d is too large", width, height)
	}
	info.Size = format.Size{W: int32(width), H: int32(height)}

	if b.Data.IsNil() {
		return BufferInfo{}, status.Invalidf("buffer %d has no data", index)
	}
	if !b.Data.InBounds(b.SpanBytes()) {
		return BufferInfo{}, status.Invalidf("buffer %d spans %d bytes past offset %d of a %d byte block",
			index, b.SpanBytes(), b.Data.Offset(), b.Data.Block().Size())
	}
	return info, nil
}
