// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package mem provides the memory primitives images are built on: resource
// kinds, allocated blocks and pointers into them, the ref-counted allocator
// set, and ordered asynchronous streams that copy and fill strided memory.
//
// A Block is one allocation. Host-addressable blocks expose their bytes;
// backend blocks (GPU buffers) carry an opaque handle that only the backend's
// Stream understands. A Ptr is a byte offset into a Block and is the
// equivalent of a raw address: two pointers can be subtracted only when they
// point into the same block.
package mem

import "fmt"

// Kind is the resource kind of a block of memory.
type Kind uint8

// Resource kinds.
const (
	KindHost Kind = iota
	KindHostPinned
	KindDevice

	numKinds
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindHost:
		return "host"
	case KindHostPinned:
		return "host-pinned"
	case KindDevice:
		return "device"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// HostAccessible reports whether memory of kind k can be read by the CPU.
func (k Kind) HostAccessible() bool {
	return k == KindHost || k == KindHostPinned
}

// DeviceAccessible reports whether device work can use memory of kind k.
func (k Kind) DeviceAccessible() bool {
	return k == KindDevice || k == KindHostPinned
}

// Block is a single allocation.
type Block struct {
	kind   Kind
	size   int64
	align  int
	data   []byte
	handle any
}

// NewHostBlock wraps bytes as a block of the given kind. The block is
// host-addressable regardless of kind; the default device allocator uses
// this to back device memory with system RAM.
func NewHostBlock(kind Kind, data []byte) *Block {
	return &Block{kind: kind, size: int64(len(data)), align: 1, data: data}
}

// NewHandleBlock returns a block whose memory lives behind a backend handle.
func NewHandleBlock(kind Kind, size int64, align int, handle any) *Block {
	return &Block{kind: kind, size: size, align: align, handle: handle}
}

// Kind returns the resource kind.
func (b *Block) Kind() Kind { return b.kind }

// Size returns the block size in bytes.
func (b *Block) Size() int64 { return b.size }

// Align returns the alignment the block was allocated with.
func (b *Block) Align() int { return b.align }

// Handle returns the backend handle, nil for host-addressable blocks.
func (b *Block) Handle() any { return b.handle }

// Bytes returns the block's memory, or nil if it is not host-addressable.
func (b *Block) Bytes() []byte { return b.data }

// Ptr returns a pointer to the start of the block.
func (b *Block) Ptr() Ptr { return Ptr{block: b} }

// Ptr is a byte offset into a Block. The zero value is the nil pointer.
type Ptr struct {
	block *Block
	off   int64
}

// IsNil reports whether p points nowhere.
func (p Ptr) IsNil() bool { return p.block == nil }

// Block returns the block p points into.
func (p Ptr) Block() *Block { return p.block }

// Offset returns the byte offset of p inside its block.
func (p Ptr) Offset() int64 { return p.off }

// Kind returns the resource kind of the pointed-to memory.
func (p Ptr) Kind() Kind {
	if p.block == nil {
		return KindHost
	}
	return p.block.kind
}

// Add returns p advanced by n bytes.
func (p Ptr) Add(n int64) Ptr {
	return Ptr{block: p.block, off: p.off + n}
}

// Diff returns p - q in bytes. ok is false when the pointers are in
// different blocks.
func (p Ptr) Diff(q Ptr) (n int64, ok bool) {
	if p.block != q.block {
		return 0, false
	}
	return p.off - q.off, true
}

// Bytes returns n bytes starting at p. It returns nil when the memory is
// not host-addressable or the range falls outside the block.
func (p Ptr) Bytes(n int64) []byte {
	if p.block == nil || p.block.data == nil {
		return nil
	}
	if p.off < 0 || n < 0 || p.off+n > int64(len(p.block.data)) {
		return nil
	}
	return p.block.data[p.off : p.off+n]
}

// InBounds reports whether the n bytes starting at p lie inside the block.
func (p Ptr) InBounds(n int64) bool {
	return p.block != nil && p.off >= 0 && n >= 0 && p.off+n <= p.block.size
}

// String formats p for logs.
func (p Ptr) String() string {
	if p.block == nil {
		return "nil"
	}
	return fmt.Sprintf("%s:%p+%d", p.block.kind, p.block, p.off)
}
