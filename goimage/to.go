// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package goimage

import (
	"encoding/binary"
	"image"

	"github.com/gogpu/gpuimage/format"
	gimage "github.com/gogpu/gpuimage/internal/image"
	"github.com/gogpu/gpuimage/status"
	"github.com/gogpu/gpuimage/tensor"
)

// ToImage returns a Go image holding the pixels of the host buffers bufs,
// interpreted as for gpuimage.Context.Wrap. Single-channel 8-bit images
// become *image.Gray, full-range 4:2:0 planar YCbCr becomes *image.YCbCr
// and RGBA8 becomes *image.NRGBA, all sharing the buffer memory. Other
// supported formats are copied into the closest Go type.
//
// YCbCr formats must use BT.601, the only matrix of Go's color.YCbCr;
// limited-range samples are expanded to full range.
func ToImage(bufs []tensor.Buffer, f format.ImageFormat) (image.Image, error) {
	data, err := gimage.FromBuffers(bufs, f)
	if err != nil {
		return nil, err
	}
	if !data.MemKind().HostAccessible() {
		return nil, status.Invalidf("buffers must be host accessible, not %s memory", data.MemKind())
	}
	f = data.Format
	size := data.Size()
	w, h := int(size.W), int(size.H)
	rect := image.Rect(0, 0, w, h)

	switch f.ColorModel() {
	case format.ModelYCbCr:
		return toYCbCr(data, rect)
	case format.ModelRGB:
		return toNRGBA(data, rect)
	}

	switch {
	case format.HasSameDataLayout(f, format.U8):
		return &image.Gray{Pix: planeBytes(data, 0), Stride: int(data.Planes[0].RowStride), Rect: rect}, nil
	case format.HasSameDataLayout(f, format.U16):
		out := image.NewGray16(rect)
		pix := planeBytes(data, 0)
		stride := int(data.Planes[0].RowStride)
		for y := range h {
			for x := range w {
				v := binary.NativeEndian.Uint16(pix[y*stride+2*x:])
				binary.BigEndian.PutUint16(out.Pix[out.PixOffset(x, y):], v)
			}
		}
		return out, nil
	}
	return nil, status.Invalidf("format %s has no Go image equivalent", f)
}

// rgbLayouts lists the RGB formats ToImage converts, keyed by their sRGB
// variant, with the source byte of R, G, B and A per pixel and the plane
// count. A negative alpha index means opaque.
var rgbLayouts = map[format.ImageFormat]struct {
	r, g, b, a int
	planar     bool
}{
	format.RGBA8:  {0, 1, 2, 3, false},
	format.BGRA8:  {2, 1, 0, 3, false},
	format.RGB8:   {0, 1, 2, -1, false},
	format.BGR8:   {2, 1, 0, -1, false},
	format.RGB8p:  {0, 1, 2, -1, true},
	format.RGBA8p: {0, 1, 2, 3, true},
}

func toNRGBA(data gimage.Data, rect image.Rectangle) (image.Image, error) {
	f := data.Format
	lay, ok := rgbLayouts[f.WithColorSpec(format.SpecSRGB)]
	if !ok {
		return nil, status.Invalidf("format %s has no Go image equivalent", f)
	}
	if f.WithColorSpec(format.SpecSRGB) == format.RGBA8 {
		return &image.NRGBA{Pix: planeBytes(data, 0), Stride: int(data.Planes[0].RowStride), Rect: rect}, nil
	}

	out := image.NewNRGBA(rect)
	w, h := rect.Dx(), rect.Dy()
	if lay.planar {
		planes := make([][]byte, data.NumPlanes())
		strides := make([]int, data.NumPlanes())
		for p := range planes {
			planes[p] = planeBytes(data, p)
			strides[p] = int(data.Planes[p].RowStride)
		}
		at := func(p, x, y int) byte { return planes[p][y*strides[p]+x] }
		for y := range h {
			for x := range w {
				o := out.PixOffset(x, y)
				out.Pix[o], out.Pix[o+1], out.Pix[o+2] = at(lay.r, x, y), at(lay.g, x, y), at(lay.b, x, y)
				out.Pix[o+3] = 0xff
				if lay.a >= 0 {
					out.Pix[o+3] = at(lay.a, x, y)
				}
			}
		}
		return out, nil
	}

	pix := planeBytes(data, 0)
	stride := int(data.Planes[0].RowStride)
	bpp := f.PlanePixelStrideBytes(0)
	for y := range h {
		for x := range w {
			o := out.PixOffset(x, y)
			px := pix[y*stride+x*bpp:]
			out.Pix[o], out.Pix[o+1], out.Pix[o+2] = px[lay.r], px[lay.g], px[lay.b]
			out.Pix[o+3] = 0xff
			if lay.a >= 0 {
				out.Pix[o+3] = px[lay.a]
			}
		}
	}
	return out, nil
}

func toYCbCr(data gimage.Data, rect image.Rectangle) (image.Image, error) {
	f := data.Format
	full := false
	switch f.ColorSpec() {
	case format.SpecBT601ER:
		full = true
	case format.SpecBT601:
	default:
		return nil, status.Invalidf("Go images only hold BT.601 YCbCr, not %s", f.ColorSpec())
	}
	w, h := rect.Dx(), rect.Dy()
	base := f.WithColorSpec(format.SpecBT601)

	if base == format.Y8 {
		out := image.NewGray(rect)
		pix := planeBytes(data, 0)
		stride := int(data.Planes[0].RowStride)
		for y := range h {
			for x := range w {
				out.Pix[out.PixOffset(x, y)] = expandY(pix[y*stride+x], full)
			}
		}
		return out, nil
	}

	if base == format.YUV420 && full && data.Planes[1].RowStride == data.Planes[2].RowStride {
		return &image.YCbCr{
			Y:              planeBytes(data, 0),
			Cb:             planeBytes(data, 1),
			Cr:             planeBytes(data, 2),
			YStride:        int(data.Planes[0].RowStride),
			CStride:        int(data.Planes[1].RowStride),
			SubsampleRatio: image.YCbCrSubsampleRatio420,
			Rect:           rect,
		}, nil
	}

	// sample returns the Y, Cb and Cr byte of pixel (x, y).
	var (
		sample func(x, y int) (byte, byte, byte)
		ratio  image.YCbCrSubsampleRatio
	)
	p0 := planeBytes(data, 0)
	s0 := int(data.Planes[0].RowStride)
	switch base {
	case format.YUV420:
		ratio = image.YCbCrSubsampleRatio420
		cb, cr := planeBytes(data, 1), planeBytes(data, 2)
		sb, sr := int(data.Planes[1].RowStride), int(data.Planes[2].RowStride)
		sample = func(x, y int) (byte, byte, byte) {
			return p0[y*s0+x], cb[(y/2)*sb+x/2], cr[(y/2)*sr+x/2]
		}
	case format.NV12, format.NV21:
		ratio = image.YCbCrSubsampleRatio420
		uv := planeBytes(data, 1)
		s1 := int(data.Planes[1].RowStride)
		u, v := 0, 1
		if base == format.NV21 {
			u, v = 1, 0
		}
		sample = func(x, y int) (byte, byte, byte) {
			c := (y/2)*s1 + (x/2)*2
			return p0[y*s0+x], uv[c+u], uv[c+v]
		}
	case format.YUV8:
		ratio = image.YCbCrSubsampleRatio444
		sample = func(x, y int) (byte, byte, byte) {
			o := y*s0 + 3*x
			return p0[o], p0[o+1], p0[o+2]
		}
	default:
		return nil, status.Invalidf("format %s has no Go image equivalent", f)
	}

	out := image.NewYCbCr(rect, ratio)
	for y := range h {
		for x := range w {
			yy, cb, cr := sample(x, y)
			out.Y[out.YOffset(x, y)] = expandY(yy, full)
			c := out.COffset(x, y)
			out.Cb[c] = expandC(cb, full)
			out.Cr[c] = expandC(cr, full)
		}
	}
	return out, nil
}

// planeBytes returns the bytes of plane p from its first row to the end of
// its last.
func planeBytes(data gimage.Data, p int) []byte {
	pl := data.Planes[p]
	return pl.Base.Bytes(int64(pl.Height-1)*pl.RowStride + data.RowBytes(p))
}

// expandY maps limited-range luma [16, 235] to [0, 255].
func expandY(v byte, full bool) byte {
	if full {
		return v
	}
	return clamp8((int(v) - 16) * 255 / 219)
}

// expandC maps limited-range chroma [16, 240] to [0, 255].
func expandC(v byte, full bool) byte {
	if full {
		return v
	}
	return clamp8((int(v)-128)*255/224 + 128)
}

func clamp8(v int) byte {
	return byte(min(max(v, 0), 255))
}
