// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package goimage

import (
	"context"
	"image"

	"github.com/gogpu/gpuimage"
	"github.com/gogpu/gpuimage/tensor"
)

// Upload copies img into a new image created by c. The copy is issued on
// the context stream and may read img until the stream reaches it; img must
// not be modified before c.Sync returns.
func Upload(c *gpuimage.Context, img image.Image) (*gpuimage.Image, error) {
	bufs, f, err := FromImage(img)
	if err != nil {
		return nil, err
	}
	return c.CreateHost(bufs, f, 0)
}

// Download copies img to host memory and returns it as a Go image.
func Download(ctx context.Context, img *gpuimage.Image) (image.Image, error) {
	bufs, err := img.Host(ctx, tensor.LayoutNone)
	if err != nil {
		return nil, err
	}
	return ToImage(bufs, img.Format())
}
