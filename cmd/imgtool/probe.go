// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"fmt"
	"io"

	"github.com/gogpu/gputypes"
	"github.com/spf13/cobra"

	"github.com/gogpu/gpuimage"
	"github.com/gogpu/gpuimage/format"
	"github.com/gogpu/gpuimage/tensor"
)

func newProbeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <description.yaml>",
		Short: "Show how described buffers are interpreted and exported",
		Long: `probe wraps zeroed buffers matching a YAML description, prints the
resulting image and the buffers it exports in the requested layout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := LoadDescription(args[0])
			if err != nil {
				return err
			}
			c, closeContext, err := a.newContext()
			if err != nil {
				return err
			}
			defer closeContext()
			return probe(cmd.OutOrStdout(), c, d)
		},
	}
}

func probe(w io.Writer, c *gpuimage.Context, d Description) error {
	f, err := d.ImageFormat()
	if err != nil {
		return err
	}
	layout, err := d.ExportLayout()
	if err != nil {
		return err
	}
	bufs, err := d.Allocate()
	if err != nil {
		return err
	}

	img, err := c.Wrap(bufs, f)
	if err != nil {
		return err
	}
	defer img.Release()

	f = img.Format()
	fmt.Fprintf(w, "image: %s\n", img)
	fmt.Fprintf(w, "planes: %d\n", img.NumPlanes())
	for p := range img.NumPlanes() {
		fmt.Fprintf(w, "  plane %d: %s %s\n", p, f.PlaneSize(img.Size(), p), f.PlaneDataType(p))
	}

	exported, err := exportBuffers(c, img, layout)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "export %s:\n", layoutName(layout))
	for _, b := range exported {
		fmt.Fprintf(w, "  %s\n", b)
	}
	return nil
}

// exportBuffers exports device accessible images in place and copies the
// others to the host.
func exportBuffers(c *gpuimage.Context, img *gpuimage.Image, layout tensor.Layout) ([]tensor.Buffer, error) {
	bufs, err := img.Device(layout)
	if err == nil {
		return bufs, nil
	}
	gpuimage.Logger().Debug("imgtool: device export unavailable", "err", err)
	ctx, cancel := commandContext()
	defer cancel()
	return img.Host(ctx, layout)
}

func layoutName(l tensor.Layout) string {
	if l == tensor.LayoutNone {
		return "default"
	}
	return l.String()
}

func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List the predefined image formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			for _, name := range format.Names() {
				f, _ := format.Lookup(name)
				fmt.Fprintf(w, "%-12s planes=%d channels=%d", name, f.NumPlanes(), f.NumChannels())
				for p := range f.NumPlanes() {
					fmt.Fprintf(w, " %s", f.PlaneDataType(p))
					if tf := f.PlaneTextureFormat(p); tf != gputypes.TextureFormatUndefined {
						fmt.Fprintf(w, "(%v)", tf)
					}
				}
				fmt.Fprintln(w)
			}
			return nil
		},
	}
}
