// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpuimage

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"

	"github.com/gogpu/gpuimage/cache"
	"github.com/gogpu/gpuimage/format"
)

// Key identifies what a pooled image can be reused for.
//
// Wrapper keys are all equal: any wrapper not in use can be re-targeted at
// new buffers. Sized keys match images of the same size and format. A
// wrapper key never matches a sized key.
type Key struct {
	wrapper bool
	size    format.Size
	format  format.ImageFormat
}

// WrapperKey returns the key shared by all wrapper images.
func WrapperKey() Key {
	return Key{wrapper: true}
}

// SizedKey returns the key of owned images with the given size and format.
func SizedKey(size format.Size, f format.ImageFormat) Key {
	return Key{size: size, format: f}
}

// IsWrapper reports whether k is the wrapper key.
func (k Key) IsWrapper() bool { return k.wrapper }

// Size returns the image size of a sized key.
func (k Key) Size() format.Size { return k.size }

// Format returns the image format of a sized key.
func (k Key) Format() format.ImageFormat { return k.format }

// IsCompatible implements cache.Key.
func (k Key) IsCompatible(other cache.Key) bool {
	o, ok := other.(Key)
	return ok && o == k
}

// Hash implements cache.Key. Wrapper keys hash to 0.
func (k Key) Hash() uint64 {
	if k.wrapper {
		return 0
	}
	var buf [16]byte
	binary.LittleEndian.PutUint32(buf[0:], uint32(k.size.W))
	binary.LittleEndian.PutUint32(buf[4:], uint32(k.size.H))
	binary.LittleEndian.PutUint64(buf[8:], k.format.Hash())

	h := fnv.New64a()
	_, _ = h.Write(buf[:]) // fnv.Write never returns an error
	return h.Sum64()
}

// String returns "wrapper" or "WxH FORMAT".
func (k Key) String() string {
	if k.wrapper {
		return "wrapper"
	}
	return fmt.Sprintf("%s %s", k.size, k.format)
}
