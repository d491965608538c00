// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halmem

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpuimage/mem"
	"github.com/gogpu/gpuimage/status"
)

// Stream is a mem.Stream moving rows between hal buffers of its backend and
// host memory. Operations run in order on a worker goroutine; each device
// operation waits for the GPU before the next one starts.
//
// Stream is safe for concurrent use.
type Stream struct {
	*mem.Worker
	b *Backend
}

// NewStream starts a stream on the backend's queue.
func (b *Backend) NewStream() *Stream {
	return &Stream{Worker: mem.NewWorker(64), b: b}
}

// SetLogger sets the backend logger. It lets a gpuimage context pass its
// logger down.
func (s *Stream) SetLogger(l *slog.Logger) {
	s.b.SetLogger(l)
}

// Copy2D implements mem.Stream.
func (s *Stream) Copy2D(dst mem.Ptr, dstPitch int64, src mem.Ptr, srcPitch int64, widthBytes int64, height int32) error {
	if err := mem.CheckRegion(dst, dstPitch, widthBytes, height); err != nil {
		return err
	}
	if err := mem.CheckRegion(src, srcPitch, widthBytes, height); err != nil {
		return err
	}
	dstBuf, dstDev := bufferOf(dst)
	srcBuf, srcDev := bufferOf(src)
	if (!dstDev && dst.Block().Bytes() == nil) || (!srcDev && src.Block().Bytes() == nil) {
		return status.Invalidf("halmem stream cannot access %s to %s memory", src.Kind(), dst.Kind())
	}
	if widthBytes == 0 || height == 0 {
		return nil
	}

	switch {
	case dstDev && srcDev:
		regions, err := copyRegions(dst.Offset(), dstPitch, src.Offset(), srcPitch, widthBytes, int64(height))
		if err != nil {
			return err
		}
		return s.Submit(func() error {
			return s.b.submit("halmem_copy", func(enc hal.CommandEncoder) {
				enc.CopyBufferToBuffer(srcBuf, dstBuf, regions)
			})
		})
	case dstDev:
		w, err := planWrite(dst.Offset(), dstPitch, widthBytes, int64(height))
		if err != nil {
			return err
		}
		return s.Submit(func() error {
			w.run(s.writer(dstBuf), func(y int64, row []byte) {
				copy(row, src.Add(y*srcPitch).Bytes(widthBytes))
			})
			return nil
		})
	case srcDev:
		return s.Submit(func() error {
			return s.download(dst, dstPitch, srcBuf, src, srcPitch, widthBytes, int64(height))
		})
	default:
		return s.Submit(func() error {
			mem.Copy2DBytes(dst, dstPitch, src, srcPitch, widthBytes, height)
			return nil
		})
	}
}

// Memset2D implements mem.Stream.
func (s *Stream) Memset2D(dst mem.Ptr, pitch int64, value byte, widthBytes int64, height int32) error {
	if err := mem.CheckRegion(dst, pitch, widthBytes, height); err != nil {
		return err
	}
	dstBuf, dev := bufferOf(dst)
	if !dev && dst.Block().Bytes() == nil {
		return status.Invalidf("halmem stream cannot access %s memory", dst.Kind())
	}
	if widthBytes == 0 || height == 0 {
		return nil
	}
	if !dev {
		return s.Submit(func() error {
			mem.Memset2DBytes(dst, pitch, value, widthBytes, height)
			return nil
		})
	}

	w, err := planWrite(dst.Offset(), pitch, widthBytes, int64(height))
	if err != nil {
		return err
	}
	return s.Submit(func() error {
		w.run(s.writer(dstBuf), func(_ int64, row []byte) {
			for i := range row {
				row[i] = value
			}
		})
		return nil
	})
}

// download copies rows of a hal buffer into host memory through a staging
// buffer.
func (s *Stream) download(dst mem.Ptr, dstPitch int64, srcBuf hal.Buffer, src mem.Ptr, srcPitch, width, height int64) error {
	start := src.Offset() &^ (copyAlign - 1)
	shift := src.Offset() - start
	size := alignUp(shift+(height-1)*srcPitch+width, copyAlign)

	staging, err := s.b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "halmem_staging",
		Size:  uint64(size),
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", err)
	}
	defer s.b.device.DestroyBuffer(staging)

	err = s.b.submit("halmem_readback", func(enc hal.CommandEncoder) {
		enc.CopyBufferToBuffer(srcBuf, staging, []hal.BufferCopy{
			{SrcOffset: uint64(start), DstOffset: 0, Size: uint64(size)},
		})
	})
	if err != nil {
		return err
	}

	readback := make([]byte, size)
	if err := s.b.queue.ReadBuffer(staging, 0, readback); err != nil {
		return fmt.Errorf("readback: %w", err)
	}
	for y := range height {
		off := shift + y*srcPitch
		copy(dst.Add(y*dstPitch).Bytes(width), readback[off:off+width])
	}
	s.b.log().Debug("halmem: readback", "bytes", size, "rows", height)
	return nil
}

// copyRegions returns the buffer copies of a 2-D device to device copy.
// Rows are rounded up to the copy granularity.
func copyRegions(dstOff, dstPitch, srcOff, srcPitch, width, height int64) ([]hal.BufferCopy, error) {
	if dstOff%copyAlign != 0 || srcOff%copyAlign != 0 {
		return nil, status.Invalidf("device copy offsets must be multiples of %d, not %d and %d",
			copyAlign, srcOff, dstOff)
	}
	if height == 1 || dstPitch == width && srcPitch == width {
		span := (height-1)*width + width
		return []hal.BufferCopy{{
			SrcOffset: uint64(srcOff),
			DstOffset: uint64(dstOff),
			Size:      uint64(alignUp(span, copyAlign)),
		}}, nil
	}
	if dstPitch%copyAlign != 0 || srcPitch%copyAlign != 0 {
		return nil, status.Invalidf("device copy pitches must be multiples of %d, not %d and %d",
			copyAlign, srcPitch, dstPitch)
	}
	size := uint64(alignUp(width, copyAlign))
	regions := make([]hal.BufferCopy, height)
	for y := range height {
		regions[y] = hal.BufferCopy{
			SrcOffset: uint64(srcOff + y*srcPitch),
			DstOffset: uint64(dstOff + y*dstPitch),
			Size:      size,
		}
	}
	return regions, nil
}

// write is a planned host to device write of pitched rows.
type write struct {
	off    int64
	pitch  int64
	width  int64
	height int64

	// Rows are written one by one, or as one span including the bytes
	// between them.
	perRow bool
}

func planWrite(off, pitch, width, height int64) (write, error) {
	if off%copyAlign != 0 {
		return write{}, status.Invalidf("device write offset must be a multiple of %d, not %d", copyAlign, off)
	}
	w := write{off: off, pitch: pitch, width: width, height: height}
	w.perRow = height > 1 && pitch != width && pitch%copyAlign == 0 && width%copyAlign == 0
	return w, nil
}

// run fills rows with fill and hands them to put at their buffer offsets.
func (w write) run(put func(offset uint64, data []byte), fill func(y int64, row []byte)) {
	if w.perRow {
		row := make([]byte, w.width)
		for y := range w.height {
			fill(y, row)
			put(uint64(w.off+y*w.pitch), row)
		}
		return
	}
	span := make([]byte, alignUp((w.height-1)*w.pitch+w.width, copyAlign))
	for y := range w.height {
		fill(y, span[y*w.pitch:y*w.pitch+w.width])
	}
	put(uint64(w.off), span)
}

// writer returns a put function writing to buf through the queue.
func (s *Stream) writer(buf hal.Buffer) func(offset uint64, data []byte) {
	return func(offset uint64, data []byte) {
		s.b.queue.WriteBuffer(buf, offset, data)
	}
}
