// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package mem

import (
	"context"
	"errors"
	"sync"

	"github.com/gogpu/gpuimage/internal/parallel"
	"github.com/gogpu/gpuimage/status"
)

// ErrStreamClosed is returned by operations on a closed stream.
var ErrStreamClosed = errors.New("mem: stream closed")

// Stream is an ordered queue of memory operations. Operations run in
// submission order and may complete after the submitting call returns.
// Argument errors are reported synchronously; execution errors are sticky
// and reported by Sync and to callbacks.
type Stream interface {
	// Copy2D copies height rows of widthBytes bytes each.
	Copy2D(dst Ptr, dstPitch int64, src Ptr, srcPitch int64, widthBytes int64, height int32) error

	// Memset2D fills height rows of widthBytes bytes with value.
	Memset2D(dst Ptr, pitch int64, value byte, widthBytes int64, height int32) error

	// AddCallback runs fn after every previously submitted operation has
	// completed. fn receives the stream's sticky error.
	AddCallback(fn func(err error)) error

	// Sync waits for every submitted operation and returns the sticky error.
	Sync(ctx context.Context) error

	// Close drains the queue and stops the stream.
	Close() error
}

// CheckRegion validates the arguments of a 2-D operation on p.
func CheckRegion(p Ptr, pitch, widthBytes int64, height int32) error {
	if p.IsNil() {
		return status.Invalidf("nil pointer in 2D operation")
	}
	if widthBytes < 0 || height < 0 {
		return status.Invalidf("negative 2D extent %dx%d", widthBytes, height)
	}
	if height > 1 && pitch < widthBytes {
		return status.Invalidf("pitch %d smaller than row width %d", pitch, widthBytes)
	}
	if height == 0 || widthBytes == 0 {
		return nil
	}
	if !p.InBounds(int64(height-1)*pitch + widthBytes) {
		return status.Invalidf("2D region %dx%d pitch %d at offset %d exceeds block of %d bytes",
			widthBytes, height, pitch, p.Offset(), p.Block().Size())
	}
	return nil
}

// Worker executes operations in submission order on a single goroutine.
// The first error returned by an operation is sticky: later operations are
// skipped and the error is reported by Sync, Close and callbacks.
//
// Worker is safe for concurrent use.
type Worker struct {
	ops  chan func()
	done chan struct{}

	mu     sync.Mutex
	closed bool

	errMu sync.Mutex
	err   error
}

// NewWorker starts a worker that queues up to depth operations before
// Submit blocks.
func NewWorker(depth int) *Worker {
	w := &Worker{
		ops:  make(chan func(), max(depth, 0)),
		done: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *Worker) run() {
	defer close(w.done)
	for op := range w.ops {
		w.exec(op)
	}
}

func (w *Worker) exec(op func()) {
	defer func() {
		if r := recover(); r != nil {
			w.fail(status.Errorf(status.Internal, "stream operation panicked: %v", r))
		}
	}()
	op()
}

// enqueue holds the mutex across the send so Close cannot close the channel
// underneath a sender.
func (w *Worker) enqueue(op func()) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrStreamClosed
	}
	w.ops <- op
	return nil
}

func (w *Worker) fail(err error) {
	w.errMu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.errMu.Unlock()
}

// Err returns the sticky error.
func (w *Worker) Err() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

// Submit queues op. op is skipped once an earlier operation failed.
func (w *Worker) Submit(op func() error) error {
	return w.enqueue(func() {
		if w.Err() != nil {
			return
		}
		if err := op(); err != nil {
			w.fail(err)
		}
	})
}

// AddCallback queues fn; it receives the sticky error.
func (w *Worker) AddCallback(fn func(err error)) error {
	if fn == nil {
		return status.Invalidf("nil stream callback")
	}
	return w.enqueue(func() {
		fn(w.Err())
	})
}

// Sync waits for every queued operation and returns the sticky error.
func (w *Worker) Sync(ctx context.Context) error {
	reached := make(chan struct{})
	if err := w.enqueue(func() { close(reached) }); err != nil {
		return err
	}
	select {
	case <-reached:
		return w.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains queued operations and stops the goroutine. Close is safe to
// call multiple times.
func (w *Worker) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.ops)
	w.mu.Unlock()

	<-w.done
	return w.Err()
}

// HostStream is a Stream over host-addressable blocks. Large copies and
// fills are split into row bands run on a shared worker pool.
//
// HostStream is safe for concurrent use.
type HostStream struct {
	*Worker
	pool *parallel.WorkerPool
}

// NewStream starts a host stream.
func NewStream() *HostStream {
	return &HostStream{Worker: NewWorker(64), pool: parallel.Default()}
}

// Copy2D implements Stream.
func (s *HostStream) Copy2D(dst Ptr, dstPitch int64, src Ptr, srcPitch int64, widthBytes int64, height int32) error {
	if err := CheckRegion(dst, dstPitch, widthBytes, height); err != nil {
		return err
	}
	if err := CheckRegion(src, srcPitch, widthBytes, height); err != nil {
		return err
	}
	if dst.Block().Bytes() == nil || src.Block().Bytes() == nil {
		return status.Invalidf("host stream cannot access %s to %s memory", src.Kind(), dst.Kind())
	}
	return s.Submit(func() error {
		s.pool.Rows(int64(height), widthBytes, func(y0, y1 int64) {
			copyRows(dst, dstPitch, src, srcPitch, widthBytes, y0, y1)
		})
		return nil
	})
}

// Memset2D implements Stream.
func (s *HostStream) Memset2D(dst Ptr, pitch int64, value byte, widthBytes int64, height int32) error {
	if err := CheckRegion(dst, pitch, widthBytes, height); err != nil {
		return err
	}
	if dst.Block().Bytes() == nil {
		return status.Invalidf("host stream cannot access %s memory", dst.Kind())
	}
	return s.Submit(func() error {
		s.pool.Rows(int64(height), widthBytes, func(y0, y1 int64) {
			fillRows(dst, pitch, value, widthBytes, y0, y1)
		})
		return nil
	})
}

// Copy2DBytes copies rows between host-addressable pointers immediately.
// Arguments must have been checked with CheckRegion.
func Copy2DBytes(dst Ptr, dstPitch int64, src Ptr, srcPitch int64, widthBytes int64, height int32) {
	copyRows(dst, dstPitch, src, srcPitch, widthBytes, 0, int64(height))
}

// Memset2DBytes fills rows of a host-addressable pointer immediately.
// Arguments must have been checked with CheckRegion.
func Memset2DBytes(dst Ptr, pitch int64, value byte, widthBytes int64, height int32) {
	fillRows(dst, pitch, value, widthBytes, 0, int64(height))
}

func copyRows(dst Ptr, dstPitch int64, src Ptr, srcPitch int64, widthBytes, y0, y1 int64) {
	for y := y0; y < y1; y++ {
		copy(dst.Add(y*dstPitch).Bytes(widthBytes), src.Add(y*srcPitch).Bytes(widthBytes))
	}
}

func fillRows(dst Ptr, pitch int64, value byte, widthBytes, y0, y1 int64) {
	for y := y0; y < y1; y++ {
		row := dst.Add(y * pitch).Bytes(widthBytes)
		for i := range row {
			row[i] = value
		}
	}
}
