// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package format

import "hash/fnv"

// Hash returns an FNV-1a hash of every field of f. Equal formats have equal
// hashes.
func (f ImageFormat) Hash() uint64 {
	buf := make([]byte, 0, 6+len(f.swizzle)+MaxPlanes*(len(Packing{}.Bits)+len(Packing{}.Swizzle)+2))
	buf = append(buf, byte(f.model), byte(f.spec), byte(f.chroma), byte(f.raw), byte(f.layout), byte(f.kind))
	for _, c := range f.swizzle {
		buf = append(buf, byte(c))
	}
	for _, pk := range f.packing {
		buf = append(buf, pk.Bits[:]...)
		for _, c := range pk.Swizzle {
			buf = append(buf, byte(c))
		}
		buf = append(buf, byte(pk.ByteOrder), byte(pk.Pair))
	}

	h := fnv.New64a()
	_, _ = h.Write(buf) // fnv.Write never returns an error
	return h.Sum64()
}
