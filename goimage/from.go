// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package goimage

import (
	"encoding/binary"
	"image"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/gpuimage/format"
	"github.com/gogpu/gpuimage/mem"
	"github.com/gogpu/gpuimage/status"
	"github.com/gogpu/gpuimage/tensor"
)

// FromImage returns host buffers describing the pixels of img and their
// format. Buffers of *image.Gray, *image.Alpha, *image.NRGBA and 4:2:0
// *image.YCbCr alias the image memory; the image must not be modified while
// they are in use. Other images are copied.
func FromImage(img image.Image) ([]tensor.Buffer, format.ImageFormat, error) {
	r := img.Bounds()
	if r.Empty() {
		return nil, format.None, status.Invalidf("image bounds %v are empty", r)
	}
	h, w := int64(r.Dy()), int64(r.Dx())

	switch m := img.(type) {
	case *image.Gray:
		return []tensor.Buffer{alias(m.Pix, m.PixOffset(r.Min.X, r.Min.Y), int64(m.Stride), tensor.Uint8, h, w)}, format.U8, nil
	case *image.Alpha:
		return []tensor.Buffer{alias(m.Pix, m.PixOffset(r.Min.X, r.Min.Y), int64(m.Stride), tensor.Uint8, h, w)}, format.U8, nil
	case *image.NRGBA:
		return []tensor.Buffer{alias(m.Pix, m.PixOffset(r.Min.X, r.Min.Y), int64(m.Stride), tensor.Uint8, h, w, 4)}, format.RGBA8, nil
	case *image.Gray16:
		return []tensor.Buffer{fromGray16(m)}, format.U16, nil
	case *image.YCbCr:
		switch m.SubsampleRatio {
		case image.YCbCrSubsampleRatio420:
			return fromYCbCr420(m), format.YUV420.WithColorSpec(format.SpecBT601ER), nil
		case image.YCbCrSubsampleRatio444:
			return []tensor.Buffer{fromYCbCr444(m)}, format.YUV8.WithColorSpec(format.SpecBT601ER), nil
		}
	}

	// Everything else, premultiplied RGBA included, goes through NRGBA.
	dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	xdraw.Draw(dst, dst.Bounds(), img, r.Min, xdraw.Src)
	return []tensor.Buffer{alias(dst.Pix, 0, int64(dst.Stride), tensor.Uint8, h, w, 4)}, format.RGBA8, nil
}

// alias describes pix starting at off as a host buffer of the given shape
// with rows stride bytes apart and densely packed trailing dimensions.
func alias(pix []byte, off int, stride int64, dt tensor.DType, shape ...int64) tensor.Buffer {
	strides := make([]int64, len(shape))
	s := dt.SizeBytes()
	for i := len(shape) - 1; i > 0; i-- {
		strides[i] = s
		s *= shape[i]
	}
	strides[0] = stride
	return tensor.Buffer{
		Shape:   shape,
		Strides: strides,
		DType:   dt,
		Data:    mem.NewHostBlock(mem.KindHost, pix).Ptr().Add(int64(off)),
		Device:  tensor.Device{Kind: mem.KindHost},
	}
}

// fromGray16 copies big-endian Gray16 samples into native order.
func fromGray16(m *image.Gray16) tensor.Buffer {
	r := m.Bounds()
	w, h := r.Dx(), r.Dy()
	pix := make([]byte, 2*w*h)
	for y := range h {
		src := m.Pix[m.PixOffset(r.Min.X, r.Min.Y+y):]
		for x := range w {
			binary.NativeEndian.PutUint16(pix[2*(y*w+x):], binary.BigEndian.Uint16(src[2*x:]))
		}
	}
	return alias(pix, 0, int64(2*w), tensor.Uint16, int64(h), int64(w))
}

func fromYCbCr420(m *image.YCbCr) []tensor.Buffer {
	r := m.Bounds()
	h, w := int64(r.Dy()), int64(r.Dx())
	ch, cw := (h+1)/2, (w+1)/2
	// Chroma of an odd origin starts mid-sample; COffset rounds down.
	if r.Min.X%2 != 0 || r.Min.Y%2 != 0 {
		return copyYCbCr420(m)
	}
	return []tensor.Buffer{
		alias(m.Y, m.YOffset(r.Min.X, r.Min.Y), int64(m.YStride), tensor.Uint8, h, w),
		alias(m.Cb, m.COffset(r.Min.X, r.Min.Y), int64(m.CStride), tensor.Uint8, ch, cw),
		alias(m.Cr, m.COffset(r.Min.X, r.Min.Y), int64(m.CStride), tensor.Uint8, ch, cw),
	}
}

func copyYCbCr420(m *image.YCbCr) []tensor.Buffer {
	r := m.Bounds()
	w, h := r.Dx(), r.Dy()
	cw, ch := (w+1)/2, (h+1)/2
	y, cb, cr := make([]byte, w*h), make([]byte, cw*ch), make([]byte, cw*ch)
	for j := range h {
		for i := range w {
			px, py := r.Min.X+i, r.Min.Y+j
			y[j*w+i] = m.Y[m.YOffset(px, py)]
			if i%2 == 0 && j%2 == 0 {
				c := m.COffset(px, py)
				cb[(j/2)*cw+i/2] = m.Cb[c]
				cr[(j/2)*cw+i/2] = m.Cr[c]
			}
		}
	}
	return []tensor.Buffer{
		alias(y, 0, int64(w), tensor.Uint8, int64(h), int64(w)),
		alias(cb, 0, int64(cw), tensor.Uint8, int64(ch), int64(cw)),
		alias(cr, 0, int64(cw), tensor.Uint8, int64(ch), int64(cw)),
	}
}

// fromYCbCr444 interleaves the three planes of a 4:4:4 image.
func fromYCbCr444(m *image.YCbCr) tensor.Buffer {
	r := m.Bounds()
	w, h := r.Dx(), r.Dy()
	pix := make([]byte, 3*w*h)
	for j := range h {
		for i := range w {
			px, py := r.Min.X+i, r.Min.Y+j
			c := m.COffset(px, py)
			o := 3 * (j*w + i)
			pix[o], pix[o+1], pix[o+2] = m.Y[m.YOffset(px, py)], m.Cb[c], m.Cr[c]
		}
	}
	return alias(pix, 0, int64(3*w), tensor.Uint8, int64(h), int64(w), 3)
}
