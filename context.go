// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpuimage

import (
	"context"
	"errors"
	"sync"

	"github.com/gogpu/gpuimage/cache"
	"github.com/gogpu/gpuimage/format"
	"github.com/gogpu/gpuimage/internal/image"
	"github.com/gogpu/gpuimage/mem"
	"github.com/gogpu/gpuimage/status"
	"github.com/gogpu/gpuimage/tensor"
)

// ErrClosed is returned by operations on a closed Context.
var ErrClosed = errors.New("gpuimage: context closed")

// Context creates and pools images. It ties together the allocator images
// are allocated from, the stream copies and fills are issued on, and the
// cache that lets released images be reused.
//
// Context is safe for concurrent use.
type Context struct {
	opts      options
	alloc     *mem.Allocator
	stream    mem.Stream
	ownStream bool
	reg       *cache.Registry[*Image]

	closeOnce sync.Once
	closeErr  error
}

// NewContext creates a context configured by opts.
func NewContext(opts ...Option) (*Context, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if !isPow2(o.rowAlign) || !isPow2(o.baseAlign) {
		return nil, status.Invalidf("alignments must be powers of two, not row %d and base %d",
			o.rowAlign, o.baseAlign)
	}
	if o.cacheLimit < 0 {
		return nil, status.Invalidf("cache limit must not be negative, not %d", o.cacheLimit)
	}

	c := &Context{
		opts: o,
		reg:  cache.New[*Image](cache.Config{MaxBytes: o.cacheLimit}),
	}
	if o.allocator != nil {
		c.alloc = o.allocator
		c.alloc.IncRef()
	} else {
		c.alloc = mem.NewDefault()
	}
	if o.stream != nil {
		c.stream = o.stream
	} else {
		c.stream = mem.NewStream()
		c.ownStream = true
	}
	propagateLogger(c.stream, Logger())

	Logger().Info("gpuimage: context created",
		"cacheLimit", o.cacheLimit, "rowAlign", o.rowAlign, "baseAlign", o.baseAlign)
	return c, nil
}

// Create returns an uninitialized image of the given size and format. Rows
// are aligned to rowAlign bytes, or the context default when zero. A
// released image of the same size and format is reused when available.
func (c *Context) Create(size format.Size, f format.ImageFormat, rowAlign int) (*Image, error) {
	if c.reg.Closed() {
		return nil, ErrClosed
	}
	if rowAlign == 0 {
		rowAlign = c.opts.rowAlign
	}
	if !isPow2(rowAlign) {
		return nil, status.Invalidf("row alignment must be a power of two, not %d", rowAlign)
	}

	key := SizedKey(size, f)
	img, ok := c.reg.Claim(key, func(img *Image) bool {
		return img.rowsAligned(rowAlign) && img.acquire()
	})
	if ok {
		Logger().Debug("gpuimage: cache hit", "key", key)
		return img, nil
	}
	Logger().Debug("gpuimage: cache miss", "key", key)

	img, err := c.allocate(size, f, rowAlign)
	if err != nil {
		return nil, err
	}
	if err := c.pool(img); err != nil {
		return nil, err
	}
	return img, nil
}

// Zeros returns an image of the given size and format filled with zeros.
// The fill is issued on the context stream.
func (c *Context) Zeros(size format.Size, f format.ImageFormat, rowAlign int) (*Image, error) {
	img, err := c.Create(size, f, rowAlign)
	if err != nil {
		return nil, err
	}

	data := img.snapshot()
	for p, pl := range data.Planes {
		if err := c.stream.Memset2D(pl.Base, pl.RowStride, 0, data.RowBytes(p), pl.Height); err != nil {
			img.Release()
			return nil, err
		}
	}
	if err := c.markBusy(img, c.stream); err != nil {
		img.Release()
		return nil, err
	}
	return img, nil
}

// Wrap returns an image over external buffers without copying. The buffers
// hold the image planes in order; their format is inferred from their
// geometry and checked against f unless f is format.None. A released
// wrapper is re-targeted at the buffers when available.
func (c *Context) Wrap(bufs []tensor.Buffer, f format.ImageFormat) (*Image, error) {
	if c.reg.Closed() {
		return nil, ErrClosed
	}
	data, err := image.FromBuffers(bufs, f)
	if err != nil {
		return nil, err
	}
	if err := c.checkDevice(bufs); err != nil {
		return nil, err
	}
	return c.wrap(data, bufs)
}

// WrapMany wraps every buffer as its own image with format f. All buffers
// are validated before any image is handed out.
func (c *Context) WrapMany(bufs []tensor.Buffer, f format.ImageFormat) ([]*Image, error) {
	if c.reg.Closed() {
		return nil, ErrClosed
	}
	datas := make([]image.Data, len(bufs))
	for i, b := range bufs {
		data, err := image.FromBuffers([]tensor.Buffer{b}, f)
		if err != nil {
			return nil, err
		}
		if err := c.checkDevice([]tensor.Buffer{b}); err != nil {
			return nil, err
		}
		datas[i] = data
	}

	out := make([]*Image, 0, len(bufs))
	for i, data := range datas {
		img, err := c.wrap(data, bufs[i:i+1])
		if err != nil {
			for _, done := range out {
				done.Release()
			}
			return nil, err
		}
		out = append(out, img)
	}
	return out, nil
}

// CreateHost returns a new image holding a copy of host buffers. The
// buffers are interpreted as for Wrap and must be host accessible. The copy
// is issued on the context stream; the buffers must not be modified until
// the stream reaches it, see Sync.
func (c *Context) CreateHost(bufs []tensor.Buffer, f format.ImageFormat, rowAlign int) (*Image, error) {
	if c.reg.Closed() {
		return nil, ErrClosed
	}
	if rowAlign == 0 {
		rowAlign = c.opts.rowAlign
	}
	src, err := image.FromBuffers(bufs, f)
	if err != nil {
		return nil, err
	}
	if !src.MemKind().HostAccessible() {
		return nil, status.Invalidf("buffers must be host accessible, not %s memory", src.MemKind())
	}

	if n := c.reg.RemoveAllNotInUseMatching(WrapperKey()); n > 0 {
		Logger().Debug("gpuimage: dropped idle wrappers", "count", n)
	}

	img, err := c.allocate(src.Size(), src.Format, rowAlign)
	if err != nil {
		return nil, err
	}
	dst := img.snapshot()
	for p, pl := range src.Planes {
		d := dst.Planes[p]
		if err := c.stream.Copy2D(d.Base, d.RowStride, pl.Base, pl.RowStride, src.RowBytes(p), pl.Height); err != nil {
			img.Destroy()
			return nil, err
		}
	}
	if err := c.markBusy(img, c.stream); err != nil {
		img.Destroy()
		return nil, err
	}
	if err := c.pool(img); err != nil {
		return nil, err
	}
	return img, nil
}

// Sync waits for the work issued on the context stream.
func (c *Context) Sync(ctx context.Context) error {
	return c.stream.Sync(ctx)
}

// Stats returns statistics of the image cache.
func (c *Context) Stats() cache.Stats {
	return c.reg.Stats()
}

// Close releases the pooled images that are not in use, closes the stream
// if the context created it and drops the allocator reference. Images still
// owned are freed when released; each holds its own allocator reference, so
// allocator cleanups run after the last of them is freed. Close is
// idempotent.
func (c *Context) Close() error {
	c.closeOnce.Do(func() {
		stats := c.reg.Stats()
		c.reg.Close()
		if c.ownStream {
			c.closeErr = c.stream.Close()
		}
		c.alloc.DecRef()
		Logger().Info("gpuimage: context closed", "stats", stats.String())
	})
	return c.closeErr
}

// allocate returns a new owned image with one owner, not yet pooled.
func (c *Context) allocate(size format.Size, f format.ImageFormat, rowAlign int) (*Image, error) {
	req, err := image.CalcRequirements(size, f, c.opts.baseAlign, rowAlign)
	if err != nil {
		return nil, err
	}
	block, err := c.alloc.Alloc(mem.KindDevice, req.SizeBytes, req.Alignment)
	if err != nil {
		return nil, err
	}
	// Dropped by Destroy, so the allocator outlives a closed context.
	c.alloc.IncRef()

	img := &Image{
		ctx:       c,
		key:       SizedKey(size, f),
		sizeBytes: req.SizeBytes,
		data:      req.Bind(block.Ptr()),
		block:     block,
	}
	img.owners.Store(1)
	Logger().Debug("gpuimage: image allocated", "size", size, "format", f, "bytes", req.SizeBytes)
	return img, nil
}

// wrap re-targets a released wrapper at data, or creates a new one.
func (c *Context) wrap(data image.Data, bufs []tensor.Buffer) (*Image, error) {
	img, ok := c.reg.Claim(WrapperKey(), (*Image).acquire)
	if ok {
		img.setWrapData(data, bufs)
		Logger().Debug("gpuimage: wrapper re-targeted", "data", data)
		return img, nil
	}

	img = &Image{ctx: c, key: WrapperKey()}
	img.setWrapData(data, bufs)
	img.owners.Store(1)
	if err := c.pool(img); err != nil {
		return nil, err
	}
	Logger().Debug("gpuimage: wrapper created", "data", data)
	return img, nil
}

// pool adds a new image to the cache, destroying it on failure.
func (c *Context) pool(img *Image) error {
	if err := c.reg.Add(img); err != nil {
		img.Destroy()
		if errors.Is(err, cache.ErrClosed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// markBusy keeps img in use until s reaches the work issued so far.
func (c *Context) markBusy(img *Image, s mem.Stream) error {
	img.busy.Add(1)
	err := s.AddCallback(func(err error) {
		if err != nil {
			Logger().Warn("gpuimage: stream error", "image", img.key, "err", err)
		}
		img.busy.Add(-1)
		c.retire(img)
	})
	if err != nil {
		img.busy.Add(-1)
		return err
	}
	return nil
}

// retire destroys img once it is neither in use nor pooled.
func (c *Context) retire(img *Image) {
	if !img.InUse() && !c.reg.Contains(img) {
		img.Destroy()
	}
}

// checkDevice rejects device buffers on another device than the context's.
func (c *Context) checkDevice(bufs []tensor.Buffer) error {
	for _, b := range bufs {
		if b.Device.Kind != mem.KindHost && b.Device.ID != c.opts.device {
			return status.Invalidf("buffer is on %s, but the context uses device %d", b.Device, c.opts.device)
		}
	}
	return nil
}

func isPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Default context.
var (
	defaultMu  sync.Mutex
	defaultCtx *Context
)

// Init creates the default context. It fails if the default context exists.
func Init(opts ...Option) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultCtx != nil {
		return status.Invalidf("default context already initialized")
	}
	c, err := NewContext(opts...)
	if err != nil {
		return err
	}
	defaultCtx = c
	return nil
}

// Default returns the default context created by Init.
func Default() (*Context, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultCtx == nil {
		return nil, status.Errorf(status.NotReady, "default context not initialized")
	}
	return defaultCtx, nil
}

// Shutdown closes the default context. Init may be called again afterwards.
func Shutdown() error {
	defaultMu.Lock()
	c := defaultCtx
	defaultCtx = nil
	defaultMu.Unlock()

	if c == nil {
		return nil
	}
	return c.Close()
}
