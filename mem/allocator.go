// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package mem

import (
	"math/bits"
	"sync"

	"github.com/gogpu/gpuimage/status"
)

// AllocFunc allocates size bytes aligned to align. It returns nil when the
// memory cannot be provided.
type AllocFunc func(size int64, align int) *Block

// FreeFunc releases a block returned by the matching AllocFunc.
type FreeFunc func(b *Block, size int64, align int)

// ResourceAllocator provides memory of one resource kind.
type ResourceAllocator struct {
	Kind  Kind
	Alloc AllocFunc
	Free  FreeFunc
}

// Allocator is a set of resource allocators, one per kind. It is reference
// counted: cleanup callbacks registered with OnCleanup run when the count
// drops to zero.
//
// Allocator is safe for concurrent use.
type Allocator struct {
	res [numKinds]ResourceAllocator

	mu      sync.Mutex
	refs    int
	cleanup []func()
}

// DefaultResource returns the built-in allocator for kind. Every kind is
// backed by Go-managed system memory.
func DefaultResource(kind Kind) ResourceAllocator {
	return ResourceAllocator{
		Kind: kind,
		Alloc: func(size int64, align int) *Block {
			b := NewHostBlock(kind, make([]byte, size))
			b.align = align
			return b
		},
		Free: func(b *Block, _ int64, _ int) {
			b.data = nil
		},
	}
}

// NewDefault returns an allocator set using DefaultResource for every kind.
// The returned allocator holds one reference.
func NewDefault() *Allocator {
	a := &Allocator{refs: 1}
	for k := range numKinds {
		a.res[k] = DefaultResource(k)
	}
	return a
}

// NewCustom returns an allocator set using res for the kinds they name and
// the defaults for the others. A kind given twice, an unknown kind, or a
// resource allocator missing either function is an InvalidArgument error.
func NewCustom(res ...ResourceAllocator) (*Allocator, error) {
	a := NewDefault()
	var seen [numKinds]bool
	for _, r := range res {
		if r.Kind >= numKinds {
			return nil, status.Invalidf("unknown resource kind %d", int(r.Kind))
		}
		if seen[r.Kind] {
			return nil, status.Invalidf("resource kind %s given more than once", r.Kind)
		}
		if r.Alloc == nil || r.Free == nil {
			return nil, status.Invalidf("resource allocator for %s must define both alloc and free", r.Kind)
		}
		seen[r.Kind] = true
		a.res[r.Kind] = r
	}
	return a, nil
}

// Alloc allocates size bytes of the given kind.
func (a *Allocator) Alloc(kind Kind, size int64, align int) (*Block, error) {
	if kind >= numKinds {
		return nil, status.Invalidf("unknown resource kind %d", int(kind))
	}
	if size < 0 {
		return nil, status.Invalidf("allocation size must be non-negative, not %d", size)
	}
	if align <= 0 || bits.OnesCount(uint(align)) != 1 {
		return nil, status.Invalidf("alignment must be a power of two, not %d", align)
	}
	b := a.res[kind].Alloc(size, align)
	if b == nil {
		return nil, status.Errorf(status.AllocationFailure, "%s allocator returned no memory for %d bytes", kind, size)
	}
	return b, nil
}

// Free returns b to the allocator of its kind.
func (a *Allocator) Free(b *Block) {
	if b == nil {
		return
	}
	a.res[b.kind].Free(b, b.size, b.align)
}

// IncRef adds a reference.
func (a *Allocator) IncRef() {
	a.mu.Lock()
	a.refs++
	a.mu.Unlock()
}

// DecRef drops a reference and runs the cleanup callbacks, in reverse
// registration order, when none remain. It returns the remaining count.
func (a *Allocator) DecRef() int {
	a.mu.Lock()
	if a.refs == 0 {
		a.mu.Unlock()
		return 0
	}
	a.refs--
	n := a.refs
	var fns []func()
	if n == 0 {
		fns = a.cleanup
		a.cleanup = nil
	}
	a.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
	return n
}

// RefCount returns the current reference count.
func (a *Allocator) RefCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refs
}

// OnCleanup registers fn to run when the reference count reaches zero.
func (a *Allocator) OnCleanup(fn func()) {
	a.mu.Lock()
	a.cleanup = append(a.cleanup, fn)
	a.mu.Unlock()
}
