// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // register the WebP decoder

	"github.com/gogpu/gpuimage"
	"github.com/gogpu/gpuimage/goimage"
)

// commandTimeout bounds the wait for stream work.
const commandTimeout = time.Minute

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), commandTimeout)
}

func newRoundtripCommand(a *app) *cobra.Command {
	var repeat int
	cmd := &cobra.Command{
		Use:   "roundtrip <input> <output>",
		Short: "Copy an image file through a gpuimage context",
		Long: `roundtrip decodes a BMP, JPEG, PNG, TIFF or WebP file, uploads it into a
gpuimage image, downloads it again and encodes the result as BMP, JPEG, PNG or
TIFF, chosen by the output extension. Repeated round trips reuse pooled images.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeContext, err := a.newContext()
			if err != nil {
				return err
			}
			defer closeContext()
			return roundtrip(cmd.OutOrStdout(), c, args[0], args[1], repeat)
		},
	}
	cmd.Flags().IntVarP(&repeat, "repeat", "n", 1, "number of round trips")
	return cmd
}

func roundtrip(w io.Writer, c *gpuimage.Context, in, out string, repeat int) error {
	enc, err := encoderFor(out)
	if err != nil {
		return err
	}
	src, kind, err := decodeFile(in)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "decoded %s: %s %v\n", in, kind, src.Bounds().Size())

	ctx, cancel := commandContext()
	defer cancel()

	result := src
	for range max(repeat, 1) {
		img, err := goimage.Upload(c, result)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "uploaded %s\n", img)
		result, err = goimage.Download(ctx, img)
		img.Release()
		if err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "%s\n", c.Stats())

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := enc(f, result); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", out, err)
	}
	return f.Close()
}

func decodeFile(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	img, kind, err := image.Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", path, err)
	}
	return img, kind, nil
}

type encodeFunc func(w io.Writer, img image.Image) error

func encoderFor(path string) (encodeFunc, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return png.Encode, nil
	case ".jpg", ".jpeg":
		return func(w io.Writer, img image.Image) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
		}, nil
	case ".bmp":
		return bmp.Encode, nil
	case ".tif", ".tiff":
		return func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
		}, nil
	}
	return nil, fmt.Errorf("no encoder for %q", filepath.Ext(path))
}
