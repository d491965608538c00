// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halmem

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/gpuimage/backend"
	"github.com/gogpu/gpuimage/mem"
	"github.com/gogpu/gpuimage/status"
)

// createNoopDevice creates a noop device and queue for testing.
// Returns the device, queue, and a cleanup function.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	t.Cleanup(cleanup)
	b, err := New(device, queue)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

type mockDevice struct{}

func (m *mockDevice) Poll(wait bool) {}
func (m *mockDevice) Destroy()       {}

type mockQueue struct{}

type mockAdapter struct{}

// mockProvider implements gpucontext.DeviceProvider without HAL access.
type mockProvider struct{}

func (m *mockProvider) Device() gpucontext.Device             { return &mockDevice{} }
func (m *mockProvider) Queue() gpucontext.Queue               { return &mockQueue{} }
func (m *mockProvider) Adapter() gpucontext.Adapter           { return &mockAdapter{} }
func (m *mockProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatBGRA8Unorm }

// halMockProvider also exposes a hal device and queue.
type halMockProvider struct {
	mockProvider
	device any
	queue  any
}

func (m *halMockProvider) HalDevice() any { return m.device }
func (m *halMockProvider) HalQueue() any  { return m.queue }

func TestNewFromProvider(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	tests := []struct {
		name     string
		provider gpucontext.DeviceProvider
		wantErr  error
	}{
		{"nil", nil, ErrNilProvider},
		{"no hal", &mockProvider{}, status.ErrInvalidArgument},
		{"wrong device", &halMockProvider{device: "device", queue: queue}, status.ErrInvalidArgument},
		{"wrong queue", &halMockProvider{device: device, queue: 42}, status.ErrInvalidArgument},
		{"hal", &halMockProvider{device: device, queue: queue}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewFromProvider(tt.provider)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if b.device != device || b.queue != queue {
				t.Error("backend does not use the provider's device and queue")
			}
		})
	}
}

func TestNewNil(t *testing.T) {
	if _, err := New(nil, nil); !errors.Is(err, status.ErrInvalidArgument) {
		t.Errorf("err = %v, want InvalidArgument", err)
	}
}

func TestResourceAllocator(t *testing.T) {
	b := newTestBackend(t)
	a, err := mem.NewCustom(b.Resource())
	if err != nil {
		t.Fatal(err)
	}

	blk, err := a.Alloc(mem.KindDevice, 1001, 256)
	if err != nil {
		t.Fatal(err)
	}
	if blk.Kind() != mem.KindDevice || blk.Size() != 1001 || blk.Align() != 256 {
		t.Errorf("block = %v %d %d, want device 1001 256", blk.Kind(), blk.Size(), blk.Align())
	}
	if blk.Bytes() != nil {
		t.Error("device block is host addressable")
	}
	if _, ok := blk.Handle().(hal.Buffer); !ok {
		t.Errorf("handle = %T, want hal.Buffer", blk.Handle())
	}
	if n := b.Buffers(); n != 1 {
		t.Errorf("Buffers() = %d, want 1", n)
	}

	// Other kinds fall back to host memory.
	host, err := a.Alloc(mem.KindHost, 16, 8)
	if err != nil {
		t.Fatal(err)
	}
	if host.Bytes() == nil {
		t.Error("host block is not host addressable")
	}

	a.Free(blk)
	a.Free(host)
	if n := b.Buffers(); n != 0 {
		t.Errorf("Buffers() = %d after free, want 0", n)
	}
}

func TestCopyRegions(t *testing.T) {
	tests := []struct {
		name             string
		dstOff, dstPitch int64
		srcOff, srcPitch int64
		width, height    int64
		want             []hal.BufferCopy
		wantErr          bool
	}{
		{"packed", 0, 6, 8, 6, 6, 3, []hal.BufferCopy{{SrcOffset: 8, DstOffset: 0, Size: 20}}, false},
		{"single row", 4, 0, 0, 0, 5, 1, []hal.BufferCopy{{SrcOffset: 0, DstOffset: 4, Size: 8}}, false},
		{"pitched", 0, 32, 256, 64, 6, 2, []hal.BufferCopy{
			{SrcOffset: 256, DstOffset: 0, Size: 8},
			{SrcOffset: 320, DstOffset: 32, Size: 8},
		}, false},
		{"unaligned offset", 2, 32, 0, 32, 6, 2, nil, true},
		{"unaligned pitch", 0, 30, 0, 32, 6, 2, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := copyRegions(tt.dstOff, tt.dstPitch, tt.srcOff, tt.srcPitch, tt.width, tt.height)
			if tt.wantErr {
				if !errors.Is(err, status.ErrInvalidArgument) {
					t.Errorf("err = %v, want InvalidArgument", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

type recordedWrite struct {
	offset uint64
	data   []byte
}

func TestPlanWrite(t *testing.T) {
	tests := []struct {
		name             string
		off, pitch, w, h int64
		want             []recordedWrite
	}{
		{"packed", 0, 3, 3, 2, []recordedWrite{{0, []byte{1, 1, 1, 2, 2, 2, 0, 0}}}},
		{"per row", 8, 8, 4, 2, []recordedWrite{{8, []byte{1, 1, 1, 1}}, {16, []byte{2, 2, 2, 2}}}},
		{"span", 4, 4, 3, 2, []recordedWrite{{4, []byte{1, 1, 1, 0, 2, 2, 2, 0}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := planWrite(tt.off, tt.pitch, tt.w, tt.h)
			if err != nil {
				t.Fatal(err)
			}
			var writes []recordedWrite
			put := func(offset uint64, data []byte) {
				writes = append(writes, recordedWrite{offset, slices.Clone(data)})
			}
			w.run(put, func(y int64, row []byte) {
				for i := range row {
					row[i] = byte(y + 1)
				}
			})
			if len(writes) != len(tt.want) {
				t.Fatalf("got %d writes, want %d", len(writes), len(tt.want))
			}
			for i, got := range writes {
				if got.offset != tt.want[i].offset || !slices.Equal(got.data, tt.want[i].data) {
					t.Errorf("write %d = %v, want %v", i, got, tt.want[i])
				}
			}
		})
	}

	if _, err := planWrite(3, 4, 4, 1); !errors.Is(err, status.ErrInvalidArgument) {
		t.Errorf("unaligned offset: err = %v, want InvalidArgument", err)
	}
}

func TestStreamHostCopies(t *testing.T) {
	b := newTestBackend(t)
	s := b.NewStream()
	defer s.Close()

	src := mem.NewHostBlock(mem.KindHost, []byte{1, 2, 3, 9, 4, 5, 6, 9})
	dst := mem.NewHostBlock(mem.KindHost, make([]byte, 6))
	if err := s.Copy2D(dst.Ptr(), 3, src.Ptr(), 4, 3, 2); err != nil {
		t.Fatal(err)
	}
	if err := s.Memset2D(dst.Ptr().Add(1), 3, 7, 1, 2); err != nil {
		t.Fatal(err)
	}
	if err := s.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	if want := []byte{1, 7, 3, 4, 7, 6}; !slices.Equal(dst.Bytes(), want) {
		t.Errorf("dst = %v, want %v", dst.Bytes(), want)
	}
}

func TestStreamDeviceCopies(t *testing.T) {
	b := newTestBackend(t)
	a, err := mem.NewCustom(b.Resource())
	if err != nil {
		t.Fatal(err)
	}
	s := b.NewStream()
	defer s.Close()

	dev1, err := a.Alloc(mem.KindDevice, 256, 256)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Free(dev1)
	dev2, err := a.Alloc(mem.KindDevice, 256, 256)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Free(dev2)
	host := mem.NewHostBlock(mem.KindHost, make([]byte, 64))

	steps := []struct {
		name string
		op   func() error
	}{
		{"upload", func() error { return s.Copy2D(dev1.Ptr(), 32, host.Ptr(), 16, 16, 4) }},
		{"memset", func() error { return s.Memset2D(dev1.Ptr().Add(128), 32, 0, 10, 3) }},
		{"device copy", func() error { return s.Copy2D(dev2.Ptr(), 32, dev1.Ptr(), 32, 16, 4) }},
		{"download", func() error { return s.Copy2D(host.Ptr(), 16, dev2.Ptr().Add(2), 32, 16, 4) }},
	}
	for _, step := range steps {
		if err := step.op(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
	}
	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

func TestStreamErrors(t *testing.T) {
	b := newTestBackend(t)
	a, err := mem.NewCustom(b.Resource())
	if err != nil {
		t.Fatal(err)
	}
	s := b.NewStream()
	defer s.Close()

	dev, err := a.Alloc(mem.KindDevice, 64, 64)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Free(dev)
	opaque := mem.NewHandleBlock(mem.KindDevice, 64, 64, "not a buffer")
	host := mem.NewHostBlock(mem.KindHost, make([]byte, 64))

	tests := []struct {
		name string
		op   func() error
	}{
		{"out of bounds", func() error { return s.Copy2D(dev.Ptr(), 32, host.Ptr(), 32, 32, 3) }},
		{"opaque handle", func() error { return s.Copy2D(opaque.Ptr(), 8, host.Ptr(), 8, 8, 1) }},
		{"opaque memset", func() error { return s.Memset2D(opaque.Ptr(), 8, 0, 8, 1) }},
		{"unaligned write", func() error { return s.Copy2D(dev.Ptr().Add(1), 8, host.Ptr(), 8, 4, 1) }},
		{"unaligned device copy", func() error { return s.Copy2D(dev.Ptr(), 6, dev.Ptr().Add(32), 6, 5, 2) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.op(); !errors.Is(err, status.ErrInvalidArgument) {
				t.Errorf("err = %v, want InvalidArgument", err)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	b, err := Open(&noop.API{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	blk := b.Resource().Alloc(256, 4)
	if blk == nil {
		t.Fatal("Alloc returned nil")
	}
	b.Resource().Free(blk, 256, 4)
	b.Close()
	b.Close()

	if _, err := Open(nil); err == nil {
		t.Error("Open(nil) succeeded")
	}
}

func TestRegisteredBackends(t *testing.T) {
	for _, name := range []string{backend.BackendVulkan, backend.BackendNoop} {
		if !backend.IsRegistered(name) {
			t.Errorf("backend %q not registered", name)
		}
	}

	b, err := backend.Open(backend.BackendNoop)
	if err != nil {
		t.Fatalf("Open(noop): %v", err)
	}
	defer b.Close()

	blk, err := b.Allocator().Alloc(mem.KindDevice, 1024, 256)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if _, ok := blk.Handle().(hal.Buffer); !ok {
		t.Errorf("block handle is %T, want hal.Buffer", blk.Handle())
	}
	if err := b.Stream().Memset2D(blk.Ptr(), 256, 0, 256, 4); err != nil {
		t.Fatalf("Memset2D: %v", err)
	}
	if err := b.Stream().Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	b.Allocator().Free(blk)
}

func TestDeviceBackendCloseWaitsForBlocks(t *testing.T) {
	var (
		released bool
		live     int64
	)
	d := &deviceBackend{name: "test", open: func() (*Backend, error) {
		b, err := Open(&noop.API{})
		if err != nil {
			return nil, err
		}
		release := b.release
		b.release = func() {
			released = true
			live = b.Buffers()
			release()
		}
		return b, nil
	}}
	if err := d.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	// A block kept by an image holds its own allocator reference.
	alloc := d.Allocator()
	blk, err := alloc.Alloc(mem.KindDevice, 256, 4)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	alloc.IncRef()

	d.Close()
	if released {
		t.Fatal("device closed while a block was live")
	}
	alloc.Free(blk)
	alloc.DecRef()
	if !released {
		t.Fatal("device not closed after the last reference was dropped")
	}
	if live != 0 {
		t.Errorf("live buffers at close = %d, want 0", live)
	}
}
