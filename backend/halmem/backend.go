// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halmem

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpuimage/mem"
	"github.com/gogpu/gpuimage/status"
)

// ErrNilProvider is returned when a nil DeviceProvider is passed.
var ErrNilProvider = errors.New("halmem: nil DeviceProvider")

// copyAlign is the granularity of buffer copies and writes.
const copyAlign = 4

// DefaultTimeout bounds the fence wait of a device copy.
const DefaultTimeout = 5 * time.Second

// Backend allocates image memory on a hal device and copies to and from it.
//
// Backend is safe for concurrent use.
type Backend struct {
	device  hal.Device
	queue   hal.Queue
	timeout atomic.Int64

	buffers atomic.Int64
	logger  atomic.Pointer[slog.Logger]

	// release destroys the device and instance of an opened backend.
	release   func()
	closeOnce sync.Once
}

// New returns a backend over device and queue. The backend does not own
// them; destroying the device is left to the caller.
func New(device hal.Device, queue hal.Queue) (*Backend, error) {
	if device == nil || queue == nil {
		return nil, status.Invalidf("halmem: nil hal device or queue")
	}
	b := &Backend{device: device, queue: queue}
	b.timeout.Store(int64(DefaultTimeout))
	b.logger.Store(slog.New(slog.DiscardHandler))
	return b, nil
}

// NewFromProvider returns a backend sharing the device of an external
// provider, such as a gogpu application. The provider must implement
// HalDevice() any and HalQueue() any returning hal.Device and hal.Queue.
func NewFromProvider(provider gpucontext.DeviceProvider) (*Backend, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, status.Invalidf("halmem: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, status.Invalidf("halmem: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, status.Invalidf("halmem: provider HalQueue is not hal.Queue")
	}
	return New(device, queue)
}

// SetLogger sets the logger for allocation and copy diagnostics.
// A nil logger disables logging.
func (b *Backend) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	b.logger.Store(l)
}

func (b *Backend) log() *slog.Logger {
	return b.logger.Load()
}

// SetTimeout sets how long a device copy waits for its fence. Non-positive
// values restore DefaultTimeout.
func (b *Backend) SetTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultTimeout
	}
	b.timeout.Store(int64(d))
}

// Buffers returns the number of live buffers allocated by the backend.
func (b *Backend) Buffers() int64 {
	return b.buffers.Load()
}

// Resource returns a resource allocator handing out KindDevice blocks
// backed by hal buffers. Pass it to mem.NewCustom.
func (b *Backend) Resource() mem.ResourceAllocator {
	return mem.ResourceAllocator{
		Kind:  mem.KindDevice,
		Alloc: b.alloc,
		Free:  b.free,
	}
}

func (b *Backend) alloc(size int64, align int) *mem.Block {
	buf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "gpuimage",
		Size:  uint64(alignUp(size, copyAlign)),
		Usage: gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst | gputypes.BufferUsageStorage,
	})
	if err != nil {
		b.log().Warn("halmem: create buffer failed", "size", size, "err", err)
		return nil
	}
	b.buffers.Add(1)
	b.log().Debug("halmem: buffer created", "size", size, "align", align)
	return mem.NewHandleBlock(mem.KindDevice, size, align, buf)
}

func (b *Backend) free(blk *mem.Block, size int64, _ int) {
	buf, ok := blk.Handle().(hal.Buffer)
	if !ok || buf == nil {
		return
	}
	b.device.DestroyBuffer(buf)
	b.buffers.Add(-1)
	b.log().Debug("halmem: buffer destroyed", "size", size)
}

// submit records a command buffer with record, submits it and waits for it
// to complete.
func (b *Backend) submit(label string, record func(enc hal.CommandEncoder)) error {
	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label + "_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	record(encoder)
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer b.device.FreeCommandBuffer(cmdBuf)

	fence, err := b.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer b.device.DestroyFence(fence)

	if err := b.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	fenceOK, err := b.device.Wait(fence, 1, time.Duration(b.timeout.Load()))
	if err != nil || !fenceOK {
		return fmt.Errorf("wait for GPU: ok=%v err=%w", fenceOK, err)
	}
	return nil
}

// bufferOf returns the hal buffer behind p, if any.
func bufferOf(p mem.Ptr) (hal.Buffer, bool) {
	buf, ok := p.Block().Handle().(hal.Buffer)
	return buf, ok && buf != nil
}

func alignUp(n, align int64) int64 {
	return (n + align - 1) &^ (align - 1)
}
