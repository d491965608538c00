// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpuimage

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/gpuimage/format"
	"github.com/gogpu/gpuimage/mem"
	"github.com/gogpu/gpuimage/status"
	"github.com/gogpu/gpuimage/tensor"
)

// buffer returns a packed buffer of the given kind filled with a ramp.
func buffer(kind mem.Kind, dt tensor.DType, shape ...int64) tensor.Buffer {
	strides := make([]int64, len(shape))
	s := dt.SizeBytes()
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = s
		s *= shape[i]
	}
	data := make([]byte, s)
	for i := range data {
		data[i] = byte(i)
	}
	return tensor.Buffer{
		Shape:   shape,
		Strides: strides,
		DType:   dt,
		Data:    mem.NewHostBlock(kind, data).Ptr(),
		Device:  tensor.Device{Kind: kind},
	}
}

func newTestContext(t *testing.T, opts ...Option) *Context {
	t.Helper()
	c, err := NewContext(opts...)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitStream(t *testing.T, c *Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

// countingAllocator counts device allocations and frees.
type countingAllocator struct {
	mu     sync.Mutex
	allocs int
	frees  int
}

func (a *countingAllocator) allocator(t *testing.T) *mem.Allocator {
	t.Helper()
	alloc, err := mem.NewCustom(mem.ResourceAllocator{
		Kind: mem.KindDevice,
		Alloc: func(size int64, _ int) *mem.Block {
			a.mu.Lock()
			a.allocs++
			a.mu.Unlock()
			return mem.NewHostBlock(mem.KindDevice, make([]byte, size))
		},
		Free: func(*mem.Block, int64, int) {
			a.mu.Lock()
			a.frees++
			a.mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("NewCustom: %v", err)
	}
	return alloc
}

func (a *countingAllocator) counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocs, a.frees
}

// gatedStream holds stream callbacks back until flush.
type gatedStream struct {
	*mem.HostStream

	mu      sync.Mutex
	pending []func(error)
}

func newGatedStream(t *testing.T) *gatedStream {
	s := &gatedStream{HostStream: mem.NewStream()}
	t.Cleanup(func() { _ = s.HostStream.Close() })
	return s
}

func (s *gatedStream) AddCallback(fn func(error)) error {
	s.mu.Lock()
	s.pending = append(s.pending, fn)
	s.mu.Unlock()
	return nil
}

func (s *gatedStream) flush() {
	s.mu.Lock()
	fns := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, fn := range fns {
		fn(nil)
	}
}

func TestNewContextOptions(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		ok   bool
	}{
		{"defaults", nil, true},
		{"row align", []Option{WithRowAlign(128)}, true},
		{"bad row align", []Option{WithRowAlign(48)}, false},
		{"bad base align", []Option{WithBaseAlign(0)}, false},
		{"negative cache limit", []Option{WithCacheLimit(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewContext(tt.opts...)
			if tt.ok {
				if err != nil {
					t.Fatalf("NewContext: %v", err)
				}
				_ = c.Close()
				return
			}
			if !errors.Is(err, status.ErrInvalidArgument) {
				t.Errorf("err = %v, want InvalidArgument", err)
			}
		})
	}
}

func TestCreateReuse(t *testing.T) {
	c := newTestContext(t)
	size := format.Size{W: 64, H: 48}

	a, err := c.Create(size, format.RGB8, 0)
	if err != nil {
		t.Fatal(err)
	}
	other, err := c.Create(size, format.RGB8, 0)
	if err != nil {
		t.Fatal(err)
	}
	if other == a {
		t.Fatal("owned image handed out twice")
	}
	other.Release()
	a.Release()

	b, err := c.Create(size, format.RGB8, 0)
	if err != nil {
		t.Fatal(err)
	}
	if b != a && b != other {
		t.Error("released image was not reused")
	}

	d, err := c.Create(size, format.BGR8, 0)
	if err != nil {
		t.Fatal(err)
	}
	if d == a || d == other {
		t.Error("image reused for another format")
	}

	s := c.Stats()
	if s.Entries != 3 || s.Hits != 1 || s.Misses != 3 {
		t.Errorf("stats = %v, want 3 entries, 1 hit, 3 misses", s)
	}
}

func TestCreateRowAlign(t *testing.T) {
	c := newTestContext(t)
	size := format.Size{W: 64, H: 8}

	a, err := c.Create(size, format.RGB8, 0)
	if err != nil {
		t.Fatal(err)
	}
	a.Release()

	// Rows of 192 bytes are not 256-byte aligned.
	b, err := c.Create(size, format.RGB8, 256)
	if err != nil {
		t.Fatal(err)
	}
	if b == a {
		t.Error("image with smaller row alignment reused")
	}
	if got := b.snapshot().Planes[0].RowStride; got != 256 {
		t.Errorf("row stride = %d, want 256", got)
	}

	if _, err := c.Create(size, format.RGB8, 3); !errors.Is(err, status.ErrInvalidArgument) {
		t.Errorf("err = %v, want InvalidArgument", err)
	}
}

func TestCreateErrors(t *testing.T) {
	c := newTestContext(t)
	tests := []struct {
		name string
		size format.Size
		f    format.ImageFormat
		want error
	}{
		{"empty size", format.Size{}, format.RGB8, status.ErrInvalidArgument},
		{"no format", format.Size{W: 4, H: 4}, format.None, status.ErrInvalidArgument},
		{"block linear", format.Size{W: 4, H: 4}, format.RGB8.WithMemLayout(format.BlockLinear), status.ErrInvalidArgument},
		{"overflow", format.Size{W: 1 << 30, H: 1 << 30}, format.RGBAf32, status.ErrAllocation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Create(tt.size, tt.f, 0); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestZeros(t *testing.T) {
	c := newTestContext(t)
	size := format.Size{W: 10, H: 6}

	dirty, err := c.Create(size, format.NV12, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, pl := range dirty.snapshot().Planes {
		b := pl.Base.Bytes(pl.RowStride * int64(pl.Height))
		for i := range b {
			b[i] = 0xFF
		}
	}
	dirty.Release()

	img, err := c.Zeros(size, format.NV12, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer img.Release()
	if img != dirty {
		t.Fatal("released image was not reused")
	}
	waitStream(t, c)

	data := img.snapshot()
	for p, pl := range data.Planes {
		for y := range int64(pl.Height) {
			for x, v := range pl.Base.Add(y * pl.RowStride).Bytes(data.RowBytes(p)) {
				if v != 0 {
					t.Fatalf("plane %d (%d,%d) = %#x, want 0", p, x, y, v)
				}
			}
		}
	}
}

func TestBusyImagesNotReused(t *testing.T) {
	s := newGatedStream(t)
	c := newTestContext(t, WithStream(s))
	size := format.Size{W: 16, H: 16}

	z, err := c.Zeros(size, format.U8, 0)
	if err != nil {
		t.Fatal(err)
	}
	z.Release()
	if !z.InUse() {
		t.Fatal("image with pending fill is not in use")
	}

	other, err := c.Create(size, format.U8, 0)
	if err != nil {
		t.Fatal(err)
	}
	if other == z {
		t.Fatal("busy image reused")
	}
	other.Release()

	s.flush()
	if z.InUse() {
		t.Fatal("image still in use after its work completed")
	}
	again, err := c.Create(size, format.U8, 0)
	if err != nil {
		t.Fatal(err)
	}
	if again != z {
		t.Error("oldest idle image not reused first")
	}
}

func TestCacheLimitEvicts(t *testing.T) {
	var counter countingAllocator
	c := newTestContext(t, WithAllocator(counter.allocator(t)), WithCacheLimit(3000))

	// Each 32x32 U8 image takes 1024 bytes.
	var imgs []*Image
	for range 3 {
		img, err := c.Create(format.Size{W: 32, H: 32}, format.U8, 0)
		if err != nil {
			t.Fatal(err)
		}
		imgs = append(imgs, img)
	}
	if got := c.Stats().Evictions; got != 0 {
		t.Fatalf("evicted %d images in use", got)
	}
	imgs[0].Release()

	big, err := c.Create(format.Size{W: 32, H: 64}, format.U8, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer big.Release()

	s := c.Stats()
	if s.Evictions != 1 {
		t.Errorf("evictions = %d, want 1", s.Evictions)
	}
	if allocs, frees := counter.counts(); allocs != 4 || frees != 1 {
		t.Errorf("allocs/frees = %d/%d, want 4/1", allocs, frees)
	}
}

func TestWrapInfersFormat(t *testing.T) {
	c := newTestContext(t)
	tests := []struct {
		name   string
		bufs   []tensor.Buffer
		f      format.ImageFormat
		want   format.ImageFormat
		planes int
	}{
		{"packed", []tensor.Buffer{buffer(mem.KindDevice, tensor.Uint8, 480, 640, 3)}, format.None, format.RGB8, 1},
		{"planar", []tensor.Buffer{
			buffer(mem.KindDevice, tensor.Uint8, 480, 640),
			buffer(mem.KindDevice, tensor.Uint8, 480, 640),
			buffer(mem.KindDevice, tensor.Uint8, 480, 640),
		}, format.None, format.RGB8p, 3},
		{"declared RGBA", []tensor.Buffer{buffer(mem.KindDevice, tensor.Uint8, 480, 640, 4)}, format.RGBA8, format.RGBA8, 1},
		{"semi-planar", []tensor.Buffer{
			buffer(mem.KindDevice, tensor.Uint8, 480, 640, 1),
			buffer(mem.KindDevice, tensor.Uint8, 240, 320, 2),
		}, format.NV12, format.NV12, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := c.Wrap(tt.bufs, tt.f)
			if err != nil {
				t.Fatalf("Wrap: %v", err)
			}
			defer img.Release()
			if img.Format() != tt.want || img.NumPlanes() != tt.planes {
				t.Errorf("got %v with %d planes, want %v with %d", img.Format(), img.NumPlanes(), tt.want, tt.planes)
			}
			if img.Size() != (format.Size{W: 640, H: 480}) {
				t.Errorf("Size() = %v", img.Size())
			}
			if !img.IsWrapper() || img.SizeBytes() != 0 {
				t.Error("wrapper reports owned memory")
			}
		})
	}
}

func TestWrapErrors(t *testing.T) {
	c := newTestContext(t, WithDevice(1))
	other := buffer(mem.KindDevice, tensor.Uint8, 4, 4)
	other.Device.ID = 2
	onCtx := buffer(mem.KindDevice, tensor.Uint8, 4, 4)
	onCtx.Device.ID = 1

	tests := []struct {
		name string
		bufs []tensor.Buffer
		f    format.ImageFormat
		text string
	}{
		{"channel overflow", []tensor.Buffer{buffer(mem.KindDevice, tensor.Uint8, 480, 640, 5)}, format.None, "channels"},
		{"no buffers", nil, format.None, "planes"},
		{"other device", []tensor.Buffer{other}, format.None, "device 1"},
		{"incompatible", []tensor.Buffer{onCtx}, format.F32, "compatible"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Wrap(tt.bufs, tt.f)
			if !errors.Is(err, status.ErrInvalidArgument) || !strings.Contains(err.Error(), tt.text) {
				t.Errorf("err = %v, want InvalidArgument mentioning %q", err, tt.text)
			}
		})
	}
	if got := c.Stats().Entries; got != 0 {
		t.Errorf("failed wraps left %d cache entries", got)
	}
}

func TestWrapRetargets(t *testing.T) {
	c := newTestContext(t)

	first, err := c.Wrap([]tensor.Buffer{buffer(mem.KindDevice, tensor.Uint8, 8, 8, 3)}, format.None)
	if err != nil {
		t.Fatal(err)
	}
	first.Release()

	second, err := c.Wrap([]tensor.Buffer{buffer(mem.KindDevice, tensor.Float32, 4, 4, 2)}, format.None)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Release()
	if second != first {
		t.Fatal("idle wrapper not re-targeted")
	}
	if second.Format() != format.TwoF32 || second.Size() != (format.Size{W: 4, H: 4}) {
		t.Errorf("re-targeted wrapper is %v", second)
	}
	if got := c.Stats().Entries; got != 1 {
		t.Errorf("entries = %d, want 1", got)
	}
}

func TestUseKeepsImageBusy(t *testing.T) {
	c := newTestContext(t)
	kernel := mem.NewStream()
	defer kernel.Close()

	first, err := c.Wrap([]tensor.Buffer{buffer(mem.KindDevice, tensor.Uint8, 4, 4)}, format.None)
	if err != nil {
		t.Fatal(err)
	}
	running := make(chan struct{})
	if err := kernel.AddCallback(func(error) { <-running }); err != nil {
		t.Fatal(err)
	}
	if err := first.Use(kernel); err != nil {
		t.Fatalf("Use: %v", err)
	}
	first.Release()
	if !first.InUse() {
		t.Fatal("released image with pending kernel work is not in use")
	}

	second, err := c.Wrap([]tensor.Buffer{buffer(mem.KindDevice, tensor.Uint8, 8, 8)}, format.None)
	if err != nil {
		t.Fatal(err)
	}
	if second == first {
		t.Fatal("wrapper re-targeted while kernel work was pending")
	}
	if first.Size() != (format.Size{W: 4, H: 4}) {
		t.Errorf("busy wrapper size = %v, want 4x4", first.Size())
	}
	second.Release()

	close(running)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := kernel.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	if first.InUse() {
		t.Error("image still in use after the kernel work completed")
	}
	if err := first.Use(kernel); !errors.Is(err, status.ErrInvalidArgument) {
		t.Errorf("Use on released image: err = %v, want InvalidArgument", err)
	}
}

func TestWrapMany(t *testing.T) {
	c := newTestContext(t)

	idle, err := c.Wrap([]tensor.Buffer{buffer(mem.KindDevice, tensor.Uint8, 2, 2)}, format.None)
	if err != nil {
		t.Fatal(err)
	}
	idle.Release()

	bufs := []tensor.Buffer{
		buffer(mem.KindDevice, tensor.Uint8, 16, 16, 3),
		buffer(mem.KindDevice, tensor.Uint8, 32, 16, 3),
		buffer(mem.KindDevice, tensor.Uint8, 8, 16, 3),
	}
	imgs, err := c.WrapMany(bufs, format.RGB8)
	if err != nil {
		t.Fatal(err)
	}
	if len(imgs) != 3 {
		t.Fatalf("got %d images, want 3", len(imgs))
	}
	if imgs[0] != idle {
		t.Error("idle wrapper not reused")
	}
	for i, img := range imgs {
		if img.Size().H != int32(bufs[i].Shape[0]) || img.Format() != format.RGB8 {
			t.Errorf("image %d is %v", i, img)
		}
	}
	if got := c.Stats().Entries; got != 3 {
		t.Errorf("entries = %d, want 3", got)
	}

	// One bad buffer fails the batch before anything is handed out.
	for _, img := range imgs {
		img.Release()
	}
	bad := append(bufs[:1:1], buffer(mem.KindDevice, tensor.Uint8, 8, 8, 4))
	if _, err := c.WrapMany(bad, format.RGB8); !errors.Is(err, status.ErrInvalidArgument) {
		t.Fatalf("err = %v, want InvalidArgument", err)
	}
	for i, img := range imgs {
		if img.InUse() {
			t.Errorf("wrapper %d claimed by failed batch", i)
		}
	}
}

func TestCreateHost(t *testing.T) {
	c := newTestContext(t)

	idle, err := c.Wrap([]tensor.Buffer{buffer(mem.KindDevice, tensor.Uint8, 2, 2)}, format.None)
	if err != nil {
		t.Fatal(err)
	}
	idle.Release()

	src := buffer(mem.KindHost, tensor.Uint8, 3, 5, 3)
	img, err := c.CreateHost([]tensor.Buffer{src}, format.None, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer img.Release()
	if img.IsWrapper() || img.Format() != format.RGB8 {
		t.Errorf("CreateHost gave %v", img)
	}
	if c.Stats().Entries != 1 {
		t.Error("idle wrappers not dropped")
	}

	host, err := img.Host(context.Background(), tensor.LayoutNone)
	if err != nil {
		t.Fatal(err)
	}
	got := host[0].Data.Bytes(host[0].SpanBytes())
	want := src.Data.Bytes(src.SpanBytes())
	if string(got) != string(want) {
		t.Errorf("host copy = %v, want %v", got, want)
	}

	if _, err := c.CreateHost([]tensor.Buffer{buffer(mem.KindDevice, tensor.Uint8, 4, 4)}, format.None, 0); !errors.Is(err, status.ErrInvalidArgument) {
		t.Errorf("device source: err = %v, want InvalidArgument", err)
	}
}

func TestContextClose(t *testing.T) {
	var counter countingAllocator
	alloc := counter.allocator(t)
	c, err := NewContext(WithAllocator(alloc))
	if err != nil {
		t.Fatal(err)
	}
	if alloc.RefCount() != 2 {
		t.Errorf("RefCount() = %d, want 2", alloc.RefCount())
	}

	idle, _ := c.Create(format.Size{W: 8, H: 8}, format.U8, 0)
	idle.Release()
	owned, _ := c.Create(format.Size{W: 8, H: 8}, format.U8, 0)
	owned2, _ := c.Create(format.Size{W: 8, H: 8}, format.U8, 0)

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if alloc.RefCount() != 3 {
		t.Errorf("RefCount() = %d after Close, want 3: one per owned image", alloc.RefCount())
	}
	if _, frees := counter.counts(); frees != 0 {
		t.Errorf("frees = %d, want 0: every image is in use", frees)
	}

	owned.Release()
	owned2.Release()
	if allocs, frees := counter.counts(); frees != allocs {
		t.Errorf("allocs/frees = %d/%d after release", allocs, frees)
	}
	if alloc.RefCount() != 1 {
		t.Errorf("RefCount() = %d after release, want 1", alloc.RefCount())
	}

	if _, err := c.Create(format.Size{W: 8, H: 8}, format.U8, 0); !errors.Is(err, ErrClosed) {
		t.Errorf("Create after Close: err = %v, want ErrClosed", err)
	}
	if _, err := c.Wrap(nil, format.None); !errors.Is(err, ErrClosed) {
		t.Errorf("Wrap after Close: err = %v, want ErrClosed", err)
	}
}

func TestCloseWithOwnedImage(t *testing.T) {
	var (
		mu     sync.Mutex
		events []string
	)
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}
	alloc, err := mem.NewCustom(mem.ResourceAllocator{
		Kind: mem.KindDevice,
		Alloc: func(size int64, _ int) *mem.Block {
			return mem.NewHostBlock(mem.KindDevice, make([]byte, size))
		},
		Free: func(*mem.Block, int64, int) { record("free") },
	})
	if err != nil {
		t.Fatal(err)
	}
	alloc.OnCleanup(func() { record("cleanup") })

	c, err := NewContext(WithAllocator(alloc))
	if err != nil {
		t.Fatal(err)
	}
	alloc.DecRef()

	img, err := c.Create(format.Size{W: 8, H: 8}, format.U8, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if got := alloc.RefCount(); got != 1 {
		t.Errorf("RefCount() = %d with an owned image, want 1", got)
	}
	mu.Lock()
	if len(events) != 0 {
		t.Errorf("events = %v before Release, want none", events)
	}
	mu.Unlock()

	img.Release()
	mu.Lock()
	defer mu.Unlock()
	if want := []string{"free", "cleanup"}; !slices.Equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestDefaultContext(t *testing.T) {
	t.Cleanup(func() { _ = Shutdown() })

	if _, err := Default(); !errors.Is(err, status.ErrNotReady) {
		t.Fatalf("Default() before Init: err = %v, want NotReady", err)
	}
	if err := Init(WithCacheLimit(1 << 20)); err != nil {
		t.Fatal(err)
	}
	if err := Init(); !errors.Is(err, status.ErrInvalidArgument) {
		t.Errorf("second Init: err = %v, want InvalidArgument", err)
	}
	c, err := Default()
	if err != nil || c == nil {
		t.Fatalf("Default() = %v, %v", c, err)
	}
	if c.Stats().MaxBytes != 1<<20 {
		t.Errorf("MaxBytes = %d", c.Stats().MaxBytes)
	}

	if err := Shutdown(); err != nil {
		t.Fatal(err)
	}
	if _, err := Default(); !errors.Is(err, status.ErrNotReady) {
		t.Errorf("Default() after Shutdown: err = %v, want NotReady", err)
	}
}
