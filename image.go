// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpuimage

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpuimage/cache"
	"github.com/gogpu/gpuimage/format"
	"github.com/gogpu/gpuimage/internal/image"
	"github.com/gogpu/gpuimage/mem"
	"github.com/gogpu/gpuimage/status"
	"github.com/gogpu/gpuimage/tensor"
)

// Image is a strided image of 1 to 4 planes, either owning its memory or
// wrapping external buffers.
//
// An Image returned by a Context is owned by the caller until Release. The
// context keeps every image pooled: released images are reused by later
// requests with a matching Key once the device work issued on them is done.
//
// Image is safe for concurrent use.
type Image struct {
	ctx *Context
	key Key

	// Bytes of owned memory; wrappers hold none.
	sizeBytes int64

	owners atomic.Int32
	busy   atomic.Int32

	mu        sync.Mutex
	data      image.Data
	block     *mem.Block
	wrapped   []tensor.Buffer
	destroyed bool
}

// Size returns the image size, the size of plane 0.
func (img *Image) Size() format.Size {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.data.Size()
}

// Format returns the image format.
func (img *Image) Format() format.ImageFormat {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.data.Format
}

// NumPlanes returns the number of planes.
func (img *Image) NumPlanes() int {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.data.NumPlanes()
}

// IsWrapper reports whether the image wraps external buffers.
func (img *Image) IsWrapper() bool {
	return img.key.IsWrapper()
}

// Key implements cache.Item.
func (img *Image) Key() cache.Key {
	return img.key
}

// SizeBytes implements cache.Item. Wrappers report 0.
func (img *Image) SizeBytes() int64 {
	return img.sizeBytes
}

// InUse implements cache.Item. An image is in use while a caller owns it or
// work issued on it is pending on the stream.
func (img *Image) InUse() bool {
	return img.owners.Load() > 0 || img.busy.Load() > 0
}

// Use keeps the image in use until s reaches the work issued on it so far.
// Work queued on the context stream by Context and Image methods is tracked
// already; code that issues its own work on the image memory must call Use
// with the stream it used before Release. A nil s selects the context
// stream. The caller must own the image.
func (img *Image) Use(s mem.Stream) error {
	if img.owners.Load() <= 0 {
		return status.Invalidf("image %s is not owned", img.key)
	}
	if s == nil {
		s = img.ctx.stream
	}
	return img.ctx.markBusy(img, s)
}

// Release gives up the caller's ownership. The image stays pooled for reuse
// and must not be used by the caller afterwards. Release is a no-op on an
// image that is not owned.
//
// A released image is reused as soon as no work registered on it is
// pending. Work issued outside this package must be registered with Use
// first, or a later request may claim the image while that work still
// reads or writes it.
func (img *Image) Release() {
	for {
		n := img.owners.Load()
		if n <= 0 {
			return
		}
		if img.owners.CompareAndSwap(n, n-1) {
			break
		}
	}
	img.ctx.retire(img)
}

// Destroy implements cache.Destroyer. It frees owned memory, dropping the
// image's allocator reference, and drops wrapped buffers. Destroy is
// idempotent.
func (img *Image) Destroy() {
	img.mu.Lock()
	if img.destroyed {
		img.mu.Unlock()
		return
	}
	img.destroyed = true
	block := img.block
	img.block = nil
	img.wrapped = nil
	img.data = image.Data{}
	img.mu.Unlock()

	if block != nil {
		img.ctx.alloc.Free(block)
		img.ctx.alloc.DecRef()
	}
	Logger().Debug("gpuimage: image destroyed", "key", img.key, "bytes", img.sizeBytes)
}

// String returns "<gpuimage.Image WxH FORMAT>".
func (img *Image) String() string {
	img.mu.Lock()
	defer img.mu.Unlock()
	return fmt.Sprintf("<gpuimage.Image %s %s>", img.data.Size(), img.data.Format)
}

// Device returns buffers describing the image memory, laid out per layout.
// An empty layout selects HW, HWC or CHW from the image format, and images
// whose planes cannot share one buffer export one HWC buffer per plane.
//
// A wrapper exported without a layout returns the buffers it wraps. The
// returned buffers alias image memory and are valid while the caller owns
// the image.
func (img *Image) Device(layout tensor.Layout) ([]tensor.Buffer, error) {
	img.mu.Lock()
	data, wrapped := img.data, img.wrapped
	img.mu.Unlock()

	if img.IsWrapper() && layout == tensor.LayoutNone && deviceAccessible(wrapped) {
		out := make([]tensor.Buffer, len(wrapped))
		copy(out, wrapped)
		return out, nil
	}
	if !data.MemKind().DeviceAccessible() {
		return nil, status.Invalidf("image data isn't device accessible, it lives in %s memory", data.MemKind())
	}

	exports, err := image.Export(data, layout)
	if err != nil {
		return nil, err
	}
	dev := img.ctx.opts.deviceOf(data.MemKind())
	out := make([]tensor.Buffer, len(exports))
	for i, e := range exports {
		out[i] = e.Buffer(dev)
	}
	return out, nil
}

// Host copies the image into densely packed host buffers laid out per
// layout, as for Device, and waits for the copies to finish.
func (img *Image) Host(ctx context.Context, layout tensor.Layout) ([]tensor.Buffer, error) {
	img.mu.Lock()
	data := img.data
	img.mu.Unlock()

	exports, err := image.Export(data, layout)
	if err != nil {
		return nil, err
	}

	s := img.ctx.stream
	out := make([]tensor.Buffer, len(exports))
	for i, e := range exports {
		block := mem.NewHostBlock(mem.KindHost, make([]byte, e.PackedSize()))
		if err := e.CopyTo(s, block.Ptr()); err != nil {
			return nil, err
		}
		out[i] = tensor.Buffer{
			Shape:   e.Shape,
			Strides: e.PackedStrides(),
			DType:   e.DType,
			Data:    block.Ptr(),
			Device:  tensor.Device{Kind: mem.KindHost},
			Layout:  e.Layout,
		}
	}
	if err := img.ctx.markBusy(img, s); err != nil {
		return nil, err
	}
	if err := s.Sync(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// acquire makes the caller an owner. It fails on destroyed images.
func (img *Image) acquire() bool {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.destroyed {
		return false
	}
	img.owners.Add(1)
	return true
}

// rowsAligned reports whether every plane's row stride is a multiple of
// align.
func (img *Image) rowsAligned(align int) bool {
	img.mu.Lock()
	defer img.mu.Unlock()
	for _, pl := range img.data.Planes {
		if pl.RowStride%int64(align) != 0 {
			return false
		}
	}
	return true
}

// setWrapData points a wrapper at new buffers.
func (img *Image) setWrapData(data image.Data, bufs []tensor.Buffer) {
	wrapped := make([]tensor.Buffer, len(bufs))
	copy(wrapped, bufs)

	img.mu.Lock()
	img.data = data
	img.wrapped = wrapped
	img.mu.Unlock()
}

// snapshot returns the current image data.
func (img *Image) snapshot() image.Data {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.data
}

func deviceAccessible(bufs []tensor.Buffer) bool {
	if len(bufs) == 0 {
		return false
	}
	for _, b := range bufs {
		if !b.Device.Kind.DeviceAccessible() {
			return false
		}
	}
	return true
}
