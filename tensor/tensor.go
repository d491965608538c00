// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package tensor describes externally supplied multi-dimensional buffers in
// the shape/stride/dtype/device convention used for zero-copy interchange
// between frameworks, and the axis layouts that label their dimensions.
package tensor

import (
	"fmt"
	"strings"

	"github.com/gogpu/gpuimage/format"
	"github.com/gogpu/gpuimage/mem"
)

// DType is the element type of a buffer: Lanes values of Bits bits each.
type DType struct {
	Kind  format.DataKind
	Bits  int
	Lanes int
}

// Common element types.
var (
	Uint8   = DType{Kind: format.KindUnsigned, Bits: 8, Lanes: 1}
	Int8    = DType{Kind: format.KindSigned, Bits: 8, Lanes: 1}
	Uint16  = DType{Kind: format.KindUnsigned, Bits: 16, Lanes: 1}
	Int16   = DType{Kind: format.KindSigned, Bits: 16, Lanes: 1}
	Float16 = DType{Kind: format.KindFloat, Bits: 16, Lanes: 1}
	Float32 = DType{Kind: format.KindFloat, Bits: 32, Lanes: 1}
	Float64 = DType{Kind: format.KindFloat, Bits: 64, Lanes: 1}
)

// SizeBytes returns the storage size of one element, rounded up to bytes.
func (d DType) SizeBytes() int64 {
	return int64(d.Bits*d.Lanes+7) / 8
}

// DataType converts d to a format data type with Lanes channels.
func (d DType) DataType() format.DataType {
	return format.NewDataType(d.Kind, d.Bits, max(d.Lanes, 1))
}

// String returns names like "uint8" or "float32x2".
func (d DType) String() string {
	var name string
	switch d.Kind {
	case format.KindUnsigned:
		name = "uint"
	case format.KindSigned:
		name = "int"
	case format.KindFloat:
		name = "float"
	default:
		name = "unknown"
	}
	if d.Lanes > 1 {
		return fmt.Sprintf("%s%dx%d", name, d.Bits, d.Lanes)
	}
	return fmt.Sprintf("%s%d", name, d.Bits)
}

// ChannelDType returns the single-lane element type of channel 0 of dt.
func ChannelDType(dt format.DataType) DType {
	return DType{Kind: dt.Kind, Bits: int(dt.Packing.Bits[0]), Lanes: 1}
}

// Device identifies where a buffer's memory lives.
type Device struct {
	Kind mem.Kind
	ID   int
}

// String returns names like "device:0".
func (d Device) String() string {
	return fmt.Sprintf("%s:%d", d.Kind, d.ID)
}

// Buffer describes a strided multi-dimensional buffer. Strides are in
// bytes. Data points at the element with all indices zero.
type Buffer struct {
	Shape   []int64
	Strides []int64
	DType   DType
	Data    mem.Ptr
	Device  Device

	// Layout optionally labels the axes; it is empty for buffers whose
	// layout must be inferred.
	Layout Layout
}

// Rank returns the number of dimensions.
func (b Buffer) Rank() int {
	return len(b.Shape)
}

// SpanBytes returns the number of bytes from Data to one past the last
// element, or 0 for an empty buffer.
func (b Buffer) SpanBytes() int64 {
	if len(b.Shape) == 0 {
		return 0
	}
	span := b.DType.SizeBytes()
	for i, n := range b.Shape {
		if n <= 0 {
			return 0
		}
		span += (n - 1) * b.Strides[i]
	}
	return span
}

// String formats the buffer description for logs and the CLI.
func (b Buffer) String() string {
	var sb strings.Builder
	sb.WriteString("Buffer(shape=")
	writeInts(&sb, b.Shape)
	sb.WriteString(", strides=")
	writeInts(&sb, b.Strides)
	fmt.Fprintf(&sb, ", dtype=%s, device=%s", b.DType, b.Device)
	if b.Layout != "" {
		fmt.Fprintf(&sb, ", layout=%s", b.Layout)
	}
	sb.WriteByte(')')
	return sb.String()
}

func writeInts(sb *strings.Builder, v []int64) {
	sb.WriteByte('(')
	for i, n := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(sb, "%d", n)
	}
	sb.WriteByte(')')
}
