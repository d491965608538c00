// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package format

import "slices"

// None is the absent format. Declaring None lets the format be inferred.
var None = ImageFormat{}

// Predefined single-channel formats.
var (
	U8  = NewNonColorFormat(PitchLinear, KindUnsigned, SwizzleX000, PackingX8)
	S8  = NewNonColorFormat(PitchLinear, KindSigned, SwizzleX000, PackingX8)
	U16 = NewNonColorFormat(PitchLinear, KindUnsigned, SwizzleX000, PackingX16)
	S16 = NewNonColorFormat(PitchLinear, KindSigned, SwizzleX000, PackingX16)
	F16 = NewNonColorFormat(PitchLinear, KindFloat, SwizzleX000, PackingX16)
	U32 = NewNonColorFormat(PitchLinear, KindUnsigned, SwizzleX000, PackingX32)
	S32 = NewNonColorFormat(PitchLinear, KindSigned, SwizzleX000, PackingX32)
	F32 = NewNonColorFormat(PitchLinear, KindFloat, SwizzleX000, PackingX32)
	F64 = NewNonColorFormat(PitchLinear, KindFloat, SwizzleX000, PackingX64)

	Y8  = NewColorFormat(ModelYCbCr, SpecBT601, ChromaNone, PitchLinear, KindUnsigned, SwizzleX000, PackingX8)
	Y16 = NewColorFormat(ModelYCbCr, SpecBT601, ChromaNone, PitchLinear, KindUnsigned, SwizzleX000, PackingX16)
)

// Predefined two-channel formats.
var (
	TwoS16 = NewNonColorFormat(PitchLinear, KindSigned, SwizzleXY00, PackingX16Y16)
	TwoF32 = NewNonColorFormat(PitchLinear, KindFloat, SwizzleXY00, PackingX32Y32)
)

// Predefined RGB formats. The "p" suffix marks planar variants.
var (
	RGB8    = NewColorFormat(ModelRGB, SpecSRGB, ChromaNone, PitchLinear, KindUnsigned, SwizzleXYZ1, PackingX8Y8Z8)
	BGR8    = NewColorFormat(ModelRGB, SpecSRGB, ChromaNone, PitchLinear, KindUnsigned, SwizzleZYX1, PackingX8Y8Z8)
	RGBA8   = NewColorFormat(ModelRGB, SpecSRGB, ChromaNone, PitchLinear, KindUnsigned, SwizzleXYZW, PackingX8Y8Z8W8)
	BGRA8   = NewColorFormat(ModelRGB, SpecSRGB, ChromaNone, PitchLinear, KindUnsigned, SwizzleZYXW, PackingX8Y8Z8W8)
	RGB8p   = NewColorFormat(ModelRGB, SpecSRGB, ChromaNone, PitchLinear, KindUnsigned, SwizzleXYZ1, PackingX8, PackingX8, PackingX8)
	RGBA8p  = NewColorFormat(ModelRGB, SpecSRGB, ChromaNone, PitchLinear, KindUnsigned, SwizzleXYZW, PackingX8, PackingX8, PackingX8, PackingX8)
	RGBf32  = NewColorFormat(ModelRGB, SpecSRGB, ChromaNone, PitchLinear, KindFloat, SwizzleXYZ1, PackingX32Y32Z32)
	RGBAf32 = NewColorFormat(ModelRGB, SpecSRGB, ChromaNone, PitchLinear, KindFloat, SwizzleXYZW, PackingX32Y32Z32W32)
	RGBf32p = NewColorFormat(ModelRGB, SpecSRGB, ChromaNone, PitchLinear, KindFloat, SwizzleXYZ1, PackingX32, PackingX32, PackingX32)
)

// Predefined YCbCr formats.
var (
	NV12   = NewColorFormat(ModelYCbCr, SpecBT601, Chroma420, PitchLinear, KindUnsigned, SwizzleXYZ0, PackingX8, PackingX8Y8)
	NV12ER = NewColorFormat(ModelYCbCr, SpecBT601ER, Chroma420, PitchLinear, KindUnsigned, SwizzleXYZ0, PackingX8, PackingX8Y8)
	NV21   = NewColorFormat(ModelYCbCr, SpecBT601, Chroma420, PitchLinear, KindUnsigned, SwizzleXZY0, PackingX8, PackingX8Y8)
	NV21ER = NewColorFormat(ModelYCbCr, SpecBT601ER, Chroma420, PitchLinear, KindUnsigned, SwizzleXZY0, PackingX8, PackingX8Y8)
	YUV420 = NewColorFormat(ModelYCbCr, SpecBT601, Chroma420, PitchLinear, KindUnsigned, SwizzleXYZ0, PackingX8, PackingX8, PackingX8)
	YUV8   = NewColorFormat(ModelYCbCr, SpecBT601, Chroma444, PitchLinear, KindUnsigned, SwizzleXYZ1, PackingX8Y8Z8)
	YUYV   = NewColorFormat(ModelYCbCr, SpecBT601, Chroma422, PitchLinear, KindUnsigned, SwizzleXYZ1, PackingX8Y8X8Z8)
	UYVY   = NewColorFormat(ModelYCbCr, SpecBT601, Chroma422, PitchLinear, KindUnsigned, SwizzleXYZ1, PackingY8X8Z8X8)
)

// Predefined RAW formats.
var (
	BayerRGGB8 = NewRawFormat(RawBayerRGGB, PitchLinear, KindUnsigned, SwizzleX000, PackingX8)
)

var formatNames = map[ImageFormat]string{
	None:       "NONE",
	U8:         "U8",
	S8:         "S8",
	U16:        "U16",
	S16:        "S16",
	F16:        "F16",
	U32:        "U32",
	S32:        "S32",
	F32:        "F32",
	F64:        "F64",
	Y8:         "Y8",
	Y16:        "Y16",
	TwoS16:     "2S16",
	TwoF32:     "2F32",
	RGB8:       "RGB8",
	BGR8:       "BGR8",
	RGBA8:      "RGBA8",
	BGRA8:      "BGRA8",
	RGB8p:      "RGB8p",
	RGBA8p:     "RGBA8p",
	RGBf32:     "RGBf32",
	RGBAf32:    "RGBAf32",
	RGBf32p:    "RGBf32p",
	NV12:       "NV12",
	NV12ER:     "NV12_ER",
	NV21:       "NV21",
	NV21ER:     "NV21_ER",
	YUV420:     "YUV420",
	YUV8:       "YUV8",
	YUYV:       "YUYV",
	UYVY:       "UYVY",
	BayerRGGB8: "BAYER_RGGB8",
}

// Names returns the names of the predefined formats in sorted order.
func Names() []string {
	names := make([]string, 0, len(formatNames))
	for f, n := range formatNames {
		if !f.IsNone() {
			names = append(names, n)
		}
	}
	slices.Sort(names)
	return names
}

// Lookup returns the predefined format with the given name.
func Lookup(name string) (ImageFormat, bool) {
	for f, n := range formatNames {
		if n == name {
			return f, true
		}
	}
	return None, false
}
