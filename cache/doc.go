// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package cache pools reusable objects by identity key.
//
// A Registry holds items whose keys say what they can be reused for. Fetch
// returns the pooled items compatible with a key that are not in use; an
// item is in use while it has an owner or device work pending, and such
// items are never handed out, removed or evicted.
//
//	reg := cache.New[*Image](cache.Config{MaxBytes: 64 << 20})
//	if img, ok := reg.FetchOne(key); ok {
//		return img
//	}
//	img := allocate()
//	err := reg.Add(img)
//
// # Eviction
//
// With a byte budget, Add evicts not-in-use items, least recently used
// first, until the pooled items fit. Evicted items implementing Destroyer
// are destroyed outside the registry lock.
//
// # Thread Safety
//
// Registry is safe for concurrent use and must not be copied after creation.
package cache
