// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package format describes image pixel formats: element data types, channel
// packings and swizzles, and multi-plane image formats with their plane
// geometry.
//
// An ImageFormat is an immutable comparable value. Formats are either taken
// from the predefined set (RGB8, NV12, ...) or derived from another format
// with the With* modifiers, which return modified copies.
package format

import (
	"fmt"
	"strings"
)

// MaxPlanes is the maximum number of planes of an image.
const MaxPlanes = 4

// MaxChannels is the maximum total number of channels of an image.
const MaxChannels = 4

// Size is the width and height of an image or plane in pixels.
type Size struct {
	W, H int32
}

// String returns the size as "WxH".
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.W, s.H)
}

// ColorModel is the color interpretation of the channels.
type ColorModel uint8

// Color models.
const (
	ModelUndefined ColorModel = iota
	ModelRGB
	ModelYCbCr
	ModelRaw
)

// String returns the name of the color model.
func (m ColorModel) String() string {
	switch m {
	case ModelRGB:
		return "RGB"
	case ModelYCbCr:
		return "YCbCr"
	case ModelRaw:
		return "RAW"
	default:
		return "UNDEFINED"
	}
}

// ColorSpec is the color space of RGB and YCbCr formats.
type ColorSpec uint8

// Color specs. The ER suffix marks extended (full) range encodings.
const (
	SpecUndefined ColorSpec = iota
	SpecSRGB
	SpecBT601
	SpecBT601ER
	SpecBT709
	SpecBT709ER
)

// String returns the name of the color spec.
func (s ColorSpec) String() string {
	switch s {
	case SpecSRGB:
		return "sRGB"
	case SpecBT601:
		return "BT601"
	case SpecBT601ER:
		return "BT601_ER"
	case SpecBT709:
		return "BT709"
	case SpecBT709ER:
		return "BT709_ER"
	default:
		return "UNDEFINED"
	}
}

// ChromaSubsampling is the chroma subsampling of YCbCr formats.
type ChromaSubsampling uint8

// Chroma subsamplings.
const (
	ChromaNone ChromaSubsampling = iota
	Chroma444
	Chroma422
	Chroma420
	Chroma411
)

// divisors returns the horizontal and vertical subsampling factors.
func (c ChromaSubsampling) divisors() (int32, int32) {
	switch c {
	case Chroma422:
		return 2, 1
	case Chroma420:
		return 2, 2
	case Chroma411:
		return 4, 1
	default:
		return 1, 1
	}
}

// String returns the name of the subsampling.
func (c ChromaSubsampling) String() string {
	switch c {
	case Chroma444:
		return "444"
	case Chroma422:
		return "422"
	case Chroma420:
		return "420"
	case Chroma411:
		return "411"
	default:
		return "NONE"
	}
}

// RawPattern is the Bayer pattern of RAW formats.
type RawPattern uint8

// Raw patterns.
const (
	RawNone RawPattern = iota
	RawBayerRGGB
	RawBayerBGGR
	RawBayerGRBG
	RawBayerGBRG
)

// MemLayout is the arrangement of rows in memory.
type MemLayout uint8

const (
	// PitchLinear stores each row at a fixed byte offset from the previous one.
	PitchLinear MemLayout = iota

	// BlockLinear stores pixels in GPU-specific tiles.
	BlockLinear
)

// String returns the name of the memory layout.
func (l MemLayout) String() string {
	if l == BlockLinear {
		return "BL"
	}
	return "PL"
}

// ImageFormat is a complete description of an image's pixel format: color
// interpretation, memory layout, data kind, swizzle and the packing of each
// plane. The zero value is None.
type ImageFormat struct {
	model   ColorModel
	spec    ColorSpec
	chroma  ChromaSubsampling
	raw     RawPattern
	layout  MemLayout
	kind    DataKind
	swizzle Swizzle
	packing [MaxPlanes]Packing
}

// NewColorFormat returns an RGB or YCbCr format.
func NewColorFormat(model ColorModel, spec ColorSpec, chroma ChromaSubsampling, layout MemLayout,
	kind DataKind, swizzle Swizzle, packing ...Packing) ImageFormat {
	f := ImageFormat{
		model:   model,
		spec:    spec,
		chroma:  chroma,
		layout:  layout,
		kind:    kind,
		swizzle: swizzle,
	}
	copy(f.packing[:], packing)
	return f
}

// NewNonColorFormat returns a format without color interpretation.
func NewNonColorFormat(layout MemLayout, kind DataKind, swizzle Swizzle, packing ...Packing) ImageFormat {
	return NewColorFormat(ModelUndefined, SpecUndefined, ChromaNone, layout, kind, swizzle, packing...)
}

// NewRawFormat returns a RAW (Bayer) format.
func NewRawFormat(pattern RawPattern, layout MemLayout, kind DataKind, swizzle Swizzle, packing ...Packing) ImageFormat {
	f := NewColorFormat(ModelRaw, SpecUndefined, ChromaNone, layout, kind, swizzle, packing...)
	f.raw = pattern
	return f
}

// IsNone reports whether f is the None format.
func (f ImageFormat) IsNone() bool {
	return f == None
}

// ColorModel returns the color model.
func (f ImageFormat) ColorModel() ColorModel { return f.model }

// ColorSpec returns the color spec.
func (f ImageFormat) ColorSpec() ColorSpec { return f.spec }

// ChromaSubsampling returns the chroma subsampling.
func (f ImageFormat) ChromaSubsampling() ChromaSubsampling { return f.chroma }

// RawPattern returns the Bayer pattern of RAW formats.
func (f ImageFormat) RawPattern() RawPattern { return f.raw }

// MemLayout returns the memory layout.
func (f ImageFormat) MemLayout() MemLayout { return f.layout }

// DataKind returns the data kind shared by all planes.
func (f ImageFormat) DataKind() DataKind { return f.kind }

// Swizzle returns the swizzle.
func (f ImageFormat) Swizzle() Swizzle { return f.swizzle }

// WithDataKind returns a copy of f with the data kind replaced.
func (f ImageFormat) WithDataKind(kind DataKind) ImageFormat {
	f.kind = kind
	return f
}

// WithColorSpec returns a copy of f with the color spec replaced.
func (f ImageFormat) WithColorSpec(spec ColorSpec) ImageFormat {
	f.spec = spec
	return f
}

// WithMemLayout returns a copy of f with the memory layout replaced.
func (f ImageFormat) WithMemLayout(layout MemLayout) ImageFormat {
	f.layout = layout
	return f
}

// WithSwizzleAndPacking returns a copy of f with the swizzle and the plane
// packings replaced. Planes not given become absent.
func (f ImageFormat) WithSwizzleAndPacking(swizzle Swizzle, packing ...Packing) ImageFormat {
	f.swizzle = swizzle
	f.packing = [MaxPlanes]Packing{}
	copy(f.packing[:], packing)
	return f
}

// NumPlanes returns the number of planes.
func (f ImageFormat) NumPlanes() int {
	n := 0
	for _, p := range f.packing {
		if p.IsNone() {
			break
		}
		n++
	}
	return n
}

// NumChannels returns the total channel count over all planes.
func (f ImageFormat) NumChannels() int {
	n := 0
	for p := 0; p < f.NumPlanes(); p++ {
		n += f.PlaneNumChannels(p)
	}
	return n
}

// PlanePacking returns the packing of plane p, PackingNone when absent.
func (f ImageFormat) PlanePacking(p int) Packing {
	if p < 0 || p >= MaxPlanes {
		return PackingNone
	}
	return f.packing[p]
}

// PlaneNumChannels returns the channel count of plane p.
func (f ImageFormat) PlaneNumChannels(p int) int {
	return f.PlanePacking(p).NumChannels()
}

// PlaneDataType returns the element type of plane p.
func (f ImageFormat) PlaneDataType(p int) DataType {
	pk := f.PlanePacking(p)
	if pk.IsNone() {
		return DataType{}
	}
	return DataType{Kind: f.kind, Packing: pk}
}

// PlaneBitsPerPixel returns the pixel size of plane p in bits.
func (f ImageFormat) PlaneBitsPerPixel(p int) int {
	return f.PlanePacking(p).BitsPerPixel()
}

// PlanePixelStrideBytes returns the pixel size of plane p in bytes.
func (f ImageFormat) PlanePixelStrideBytes(p int) int {
	return f.PlanePacking(p).StrideBytes()
}

// PlaneSize returns the size of plane p of an image of the given size.
// Chroma planes of subsampled YCbCr formats are reduced, rounding up.
func (f ImageFormat) PlaneSize(size Size, p int) Size {
	if p < 0 || p >= f.NumPlanes() {
		return Size{}
	}
	if p == 0 || f.model != ModelYCbCr {
		return size
	}
	hdiv, vdiv := f.chroma.divisors()
	return Size{
		W: (size.W + hdiv - 1) / hdiv,
		H: (size.H + vdiv - 1) / vdiv,
	}
}

// HasSameDataLayout reports whether a and b store pixels identically: same
// memory layout, data kind and per-plane packing. Color model, color spec,
// chroma subsampling and swizzle only affect interpretation and are ignored.
func HasSameDataLayout(a, b ImageFormat) bool {
	return a.layout == b.layout && a.kind == b.kind && a.packing == b.packing
}

// String returns the name of predefined formats, or a structural
// description of any other format.
func (f ImageFormat) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	var sb strings.Builder
	sb.WriteString("ImageFormat(")
	fmt.Fprintf(&sb, "%s,%s,%s,", f.model, f.spec, f.chroma)
	fmt.Fprintf(&sb, "%s,%s,%s", f.layout, f.kind, f.swizzle)
	for p := 0; p < f.NumPlanes(); p++ {
		sb.WriteByte(',')
		sb.WriteString(f.packing[p].String())
	}
	sb.WriteByte(')')
	return sb.String()
}
