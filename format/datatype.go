// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package format

import (
	"fmt"
	"strings"
)

// DataKind is the numeric interpretation of a channel.
type DataKind uint8

const (
	// KindUnspecified is the data kind of the None format.
	KindUnspecified DataKind = iota

	// KindUnsigned is an unsigned integer channel.
	KindUnsigned

	// KindSigned is a signed integer channel.
	KindSigned

	// KindFloat is an IEEE-754 floating point channel.
	KindFloat
)

// String returns the short name used in data type names ("U", "S", "F").
func (k DataKind) String() string {
	switch k {
	case KindUnsigned:
		return "U"
	case KindSigned:
		return "S"
	case KindFloat:
		return "F"
	default:
		return "?"
	}
}

// Channel selects a logical channel inside a swizzle.
type Channel uint8

// Swizzle channels. Channel0 and Channel1 are the constants zero and one.
const (
	ChannelNone Channel = iota
	ChannelX
	ChannelY
	ChannelZ
	ChannelW
	Channel0
	Channel1
)

func (c Channel) letter() byte {
	switch c {
	case ChannelX:
		return 'X'
	case ChannelY:
		return 'Y'
	case ChannelZ:
		return 'Z'
	case ChannelW:
		return 'W'
	case Channel1:
		return '1'
	default:
		return '0'
	}
}

// Swizzle maps the four output slots of a pixel to channels.
type Swizzle [4]Channel

// Common swizzles.
var (
	Swizzle0000 = Swizzle{Channel0, Channel0, Channel0, Channel0}
	SwizzleX000 = Swizzle{ChannelX, Channel0, Channel0, Channel0}
	SwizzleXY00 = Swizzle{ChannelX, ChannelY, Channel0, Channel0}
	SwizzleXYZ0 = Swizzle{ChannelX, ChannelY, ChannelZ, Channel0}
	SwizzleXYZ1 = Swizzle{ChannelX, ChannelY, ChannelZ, Channel1}
	SwizzleXYZW = Swizzle{ChannelX, ChannelY, ChannelZ, ChannelW}
	SwizzleXZY0 = Swizzle{ChannelX, ChannelZ, ChannelY, Channel0}
	SwizzleZYX1 = Swizzle{ChannelZ, ChannelY, ChannelX, Channel1}
	SwizzleZYXW = Swizzle{ChannelZ, ChannelY, ChannelX, ChannelW}
)

// MakeSwizzle builds a swizzle from four channels.
func MakeSwizzle(x, y, z, w Channel) Swizzle {
	return Swizzle{x, y, z, w}
}

// SwizzleFor returns the identity swizzle covering n channels in order,
// padding the remaining slots with zero.
func SwizzleFor(n int) Swizzle {
	sw := Swizzle0000
	for i := 0; i < n && i < 4; i++ {
		sw[i] = ChannelX + Channel(i)
	}
	return sw
}

// NumChannels counts the slots that select a real channel.
func (s Swizzle) NumChannels() int {
	n := 0
	for _, c := range s {
		if c >= ChannelX && c <= ChannelW {
			n++
		}
	}
	return n
}

// String returns the swizzle as four letters, e.g. "XYZ1".
func (s Swizzle) String() string {
	var b [4]byte
	for i, c := range s {
		b[i] = c.letter()
	}
	return string(b[:])
}

// ByteOrder is the order in which packed channels are stored.
type ByteOrder uint8

const (
	// ByteOrderMSB stores the first channel in the most significant bits.
	ByteOrderMSB ByteOrder = iota

	// ByteOrderLSB stores the first channel in the least significant bits.
	ByteOrderLSB
)

// PairOrder describes packings where two horizontally adjacent pixels share
// chroma samples (4:2:2 packed luma/chroma).
type PairOrder uint8

const (
	// PairNone is a regular per-pixel packing.
	PairNone PairOrder = iota

	// PairYUYV is X8_Y8__X8_Z8: luma, chroma-b, luma, chroma-r.
	PairYUYV

	// PairUYVY is Y8_X8__Z8_X8: chroma-b, luma, chroma-r, luma.
	PairUYVY
)

// Packing describes how the channels of one pixel are laid out in memory.
// The zero value is PackingNone, which marks an unused plane.
type Packing struct {
	Bits      [4]uint8
	Swizzle   Swizzle
	ByteOrder ByteOrder
	Pair      PairOrder
}

// PackingNone marks an absent plane.
var PackingNone = Packing{}

// Common packings.
var (
	PackingX8           = MakePacking(8)
	PackingX16          = MakePacking(16)
	PackingX32          = MakePacking(32)
	PackingX64          = MakePacking(64)
	PackingX8Y8         = MakePacking(8, 8)
	PackingX8Y8Z8       = MakePacking(8, 8, 8)
	PackingX8Y8Z8W8     = MakePacking(8, 8, 8, 8)
	PackingX16Y16       = MakePacking(16, 16)
	PackingX32Y32       = MakePacking(32, 32)
	PackingX32Y32Z32    = MakePacking(32, 32, 32)
	PackingX32Y32Z32W32 = MakePacking(32, 32, 32, 32)

	PackingX8Y8X8Z8 = Packing{Bits: [4]uint8{8, 8, 8, 0}, Swizzle: SwizzleXYZ0, Pair: PairYUYV}
	PackingY8X8Z8X8 = Packing{Bits: [4]uint8{8, 8, 8, 0}, Swizzle: SwizzleXYZ0, Pair: PairUYVY}
)

// MakePacking returns an MSB packing with one channel per entry of bits,
// in XYZW order.
func MakePacking(bits ...uint8) Packing {
	var p Packing
	n := copy(p.Bits[:], bits)
	p.Swizzle = SwizzleFor(n)
	p.ByteOrder = ByteOrderMSB
	return p
}

// IsNone reports whether p marks an absent plane.
func (p Packing) IsNone() bool {
	return p == PackingNone
}

// NumChannels returns the number of channels stored per pixel.
func (p Packing) NumChannels() int {
	n := 0
	for _, b := range p.Bits {
		if b != 0 {
			n++
		}
	}
	return n
}

// BitsPerPixel returns the storage size of one pixel in bits. Pair packings
// store two pixels in four channel slots, i.e. two slots per pixel.
func (p Packing) BitsPerPixel() int {
	if p.Pair != PairNone {
		return 2 * int(p.Bits[0])
	}
	sum := 0
	for _, b := range p.Bits {
		sum += int(b)
	}
	return sum
}

// StrideBytes returns the number of bytes between consecutive pixels.
func (p Packing) StrideBytes() int {
	return (p.BitsPerPixel() + 7) / 8
}

// String returns names like "X8", "X8_Y8_Z8" or "X8_Y8__X8_Z8".
func (p Packing) String() string {
	switch {
	case p.IsNone():
		return "NONE"
	case p.Pair == PairYUYV:
		return fmt.Sprintf("X%d_Y%d__X%d_Z%d", p.Bits[0], p.Bits[1], p.Bits[0], p.Bits[2])
	case p.Pair == PairUYVY:
		return fmt.Sprintf("Y%d_X%d__Z%d_X%d", p.Bits[1], p.Bits[0], p.Bits[2], p.Bits[0])
	}
	parts := make([]string, 0, 4)
	for i, b := range p.Bits {
		if b == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%c%d", "XYZW"[i], b))
	}
	return strings.Join(parts, "_")
}

// DataType is the element type of one pixel of a plane.
type DataType struct {
	Kind    DataKind
	Packing Packing
}

// NewDataType returns a data type with lanes channels of bits each.
func NewDataType(kind DataKind, bits, lanes int) DataType {
	bs := make([]uint8, lanes)
	for i := range bs {
		bs[i] = uint8(bits) //nolint:gosec // bits validated by callers (<= 64)
	}
	return DataType{Kind: kind, Packing: MakePacking(bs...)}
}

// NumChannels returns the channel count of the data type.
func (d DataType) NumChannels() int {
	return d.Packing.NumChannels()
}

// StrideBytes returns the size of one element in bytes.
func (d DataType) StrideBytes() int {
	return d.Packing.StrideBytes()
}

// ChannelType returns the single-channel type of channel i.
func (d DataType) ChannelType(i int) DataType {
	if i < 0 || i >= 4 || d.Packing.Bits[i] == 0 {
		return DataType{}
	}
	return DataType{Kind: d.Kind, Packing: MakePacking(d.Packing.Bits[i])}
}

// IsCompatible reports whether d and other share the data kind.
func (d DataType) IsCompatible(other DataType) bool {
	return d.Kind == other.Kind
}

// String returns names like "U8", "3U8" or "2F32".
func (d DataType) String() string {
	if d.Packing.IsNone() {
		return "NONE"
	}
	if d.Packing.Pair != PairNone {
		return d.Kind.String() + d.Packing.String()
	}
	n := d.NumChannels()
	if n == 1 {
		return fmt.Sprintf("%s%d", d.Kind, d.Packing.Bits[0])
	}
	return fmt.Sprintf("%d%s%d", n, d.Kind, d.Packing.Bits[0])
}

// MakePacked returns a data type with exactly numChannels channels, keeping
// the data kind, the bit depth of channel 0 and MSB byte order. The swizzle
// is widened or narrowed to cover numChannels channels.
func MakePacked(d DataType, numChannels int) DataType {
	if d.NumChannels() == numChannels {
		return d
	}
	bits := make([]uint8, numChannels)
	for i := range bits {
		bits[i] = d.Packing.Bits[0]
	}
	return DataType{Kind: d.Kind, Packing: MakePacking(bits...)}
}
