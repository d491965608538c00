// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package image

import (
	"github.com/gogpu/gpuimage/format"
	"github.com/gogpu/gpuimage/status"
	"github.com/gogpu/gpuimage/tensor"
)

// FromBuffers builds the strided description of the image held by bufs.
//
// Without a declared format the format is inferred. With one, the inferred
// format must have the same data layout and the declared format is kept,
// preserving its color interpretation. Either way every plane must have the
// size the final format prescribes for an image the size of plane 0.
func FromBuffers(bufs []tensor.Buffer, declared format.ImageFormat) (Data, error) {
	infos, err := Normalize(bufs, declared)
	if err != nil {
		return Data{}, err
	}

	var (
		planes []Plane
		types  []format.DataType
	)
	for _, b := range infos {
		for p := range b.NumPlanes {
			planes = append(planes, Plane{
				Width:     b.Size.W,
				Height:    b.Size.H,
				RowStride: b.RowStride,
				Base:      b.Data.Add(b.PlaneStride * int64(p)),
			})
			types = append(types, format.MakePacked(b.DType, b.PlaneChannels()))
		}
	}
	if len(planes) == 0 {
		return Data{}, status.Invalidf("number of planes must be >= 1")
	}

	inferred, err := InferFormat(types)
	if err != nil {
		return Data{}, err
	}

	final := inferred
	origin := "inferred"
	if !declared.IsNone() {
		if !format.HasSameDataLayout(declared, inferred) {
			return Data{}, status.Invalidf("format inferred from buffers %s isn't compatible with given image format %s",
				inferred, declared)
		}
		final = declared
		origin = "given"
	}

	data := Data{Format: final, Planes: planes}
	size := data.Size()
	for p, pl := range planes {
		want := final.PlaneSize(size, p)
		if pl.Size() != want {
			return Data{}, status.Invalidf(
				"plane %d's size %s doesn't correspond to what's expected by %s format %s of image with size %s",
				p, pl.Size(), origin, final, size)
		}
	}
	return data, nil
}
