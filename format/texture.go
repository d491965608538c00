// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package format

import "github.com/gogpu/gputypes"

// PlaneTextureFormat returns the GPU texture format that can sample plane p
// directly, or gputypes.TextureFormatUndefined when the plane has no
// equivalent (3-channel packings, pair packings, 64-bit channels).
func (f ImageFormat) PlaneTextureFormat(p int) gputypes.TextureFormat {
	pk := f.PlanePacking(p)
	if pk.IsNone() || pk.Pair != PairNone || f.layout != PitchLinear {
		return gputypes.TextureFormatUndefined
	}

	bits := int(pk.Bits[0])
	switch f.kind {
	case KindUnsigned:
		return unsignedTexture(bits, pk.NumChannels(), f.swizzle)
	case KindSigned:
		switch {
		case bits == 8 && pk.NumChannels() == 1:
			return gputypes.TextureFormatR8Sint
		case bits == 16 && pk.NumChannels() == 1:
			return gputypes.TextureFormatR16Sint
		case bits == 16 && pk.NumChannels() == 2:
			return gputypes.TextureFormatRG16Sint
		case bits == 32 && pk.NumChannels() == 1:
			return gputypes.TextureFormatR32Sint
		}
	case KindFloat:
		switch {
		case bits == 16 && pk.NumChannels() == 1:
			return gputypes.TextureFormatR16Float
		case bits == 32 && pk.NumChannels() == 1:
			return gputypes.TextureFormatR32Float
		case bits == 32 && pk.NumChannels() == 2:
			return gputypes.TextureFormatRG32Float
		case bits == 32 && pk.NumChannels() == 4:
			return gputypes.TextureFormatRGBA32Float
		}
	}
	return gputypes.TextureFormatUndefined
}

func unsignedTexture(bits, channels int, sw Swizzle) gputypes.TextureFormat {
	switch {
	case bits == 8 && channels == 1:
		return gputypes.TextureFormatR8Unorm
	case bits == 8 && channels == 2:
		return gputypes.TextureFormatRG8Unorm
	case bits == 8 && channels == 4 && sw == SwizzleZYXW:
		return gputypes.TextureFormatBGRA8Unorm
	case bits == 8 && channels == 4:
		return gputypes.TextureFormatRGBA8Unorm
	case bits == 16 && channels == 1:
		return gputypes.TextureFormatR16Uint
	case bits == 32 && channels == 1:
		return gputypes.TextureFormatR32Uint
	}
	return gputypes.TextureFormatUndefined
}

// FromTextureFormat returns the image format matching a GPU texture format.
// The second result is false when no predefined format corresponds.
func FromTextureFormat(tf gputypes.TextureFormat) (ImageFormat, bool) {
	switch tf {
	case gputypes.TextureFormatR8Unorm:
		return U8, true
	case gputypes.TextureFormatRGBA8Unorm:
		return RGBA8, true
	case gputypes.TextureFormatBGRA8Unorm:
		return BGRA8, true
	case gputypes.TextureFormatR32Float:
		return F32, true
	case gputypes.TextureFormatRG32Float:
		return TwoF32, true
	case gputypes.TextureFormatRGBA32Float:
		return RGBAf32, true
	}
	return None, false
}
