// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/gogpu/gpuimage/format"
	"github.com/gogpu/gpuimage/mem"
	"github.com/gogpu/gpuimage/tensor"
)

// Description is a YAML description of the buffers of one image:
//
//	format: NV12
//	export: NHWC
//	buffers:
//	  - shape: [480, 640]
//	  - shape: [240, 320, 2]
//	    strides: [1024, 2, 1]
//	    memory: device
type Description struct {
	// Format names a predefined format; empty to infer it.
	Format string `yaml:"format"`
	// Export is the layout to export the image in; empty for the default.
	Export  string       `yaml:"export"`
	Buffers []BufferDesc `yaml:"buffers"`
}

// BufferDesc describes one buffer.
type BufferDesc struct {
	Shape []int64 `yaml:"shape"`
	// Strides are in bytes; omitted strides describe a packed buffer.
	Strides []int64 `yaml:"strides"`
	// DType defaults to uint8.
	DType  string `yaml:"dtype"`
	Layout string `yaml:"layout"`
	// Memory is host, host_pinned or device. Defaults to host.
	Memory string `yaml:"memory"`
}

// LoadDescription reads a description file.
func LoadDescription(path string) (Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Description{}, fmt.Errorf("read description: %w", err)
	}
	var d Description
	if err := yaml.UnmarshalStrict(data, &d); err != nil {
		return Description{}, fmt.Errorf("parse description %s: %w", path, err)
	}
	if len(d.Buffers) == 0 {
		return Description{}, fmt.Errorf("description %s lists no buffers", path)
	}
	return d, nil
}

// ImageFormat returns the declared format, format.None when empty.
func (d Description) ImageFormat() (format.ImageFormat, error) {
	if d.Format == "" {
		return format.None, nil
	}
	f, ok := format.Lookup(d.Format)
	if !ok {
		return format.None, fmt.Errorf("unknown format %q", d.Format)
	}
	return f, nil
}

// ExportLayout returns the export layout.
func (d Description) ExportLayout() (tensor.Layout, error) {
	return tensor.ParseLayout(d.Export)
}

// Allocate returns the described buffers over zeroed memory.
func (d Description) Allocate() ([]tensor.Buffer, error) {
	bufs := make([]tensor.Buffer, len(d.Buffers))
	for i, bd := range d.Buffers {
		b, err := bd.allocate()
		if err != nil {
			return nil, fmt.Errorf("buffer %d: %w", i, err)
		}
		bufs[i] = b
	}
	return bufs, nil
}

var dtypes = map[string]tensor.DType{}

func init() {
	for _, dt := range []tensor.DType{
		tensor.Uint8, tensor.Int8, tensor.Uint16, tensor.Int16,
		tensor.Float16, tensor.Float32, tensor.Float64,
	} {
		dtypes[dt.String()] = dt
	}
}

var memKinds = map[string]mem.Kind{
	"":            mem.KindHost,
	"host":        mem.KindHost,
	"host_pinned": mem.KindHostPinned,
	"device":      mem.KindDevice,
}

func (bd BufferDesc) allocate() (tensor.Buffer, error) {
	dt := tensor.Uint8
	if bd.DType != "" {
		var ok bool
		if dt, ok = dtypes[bd.DType]; !ok {
			return tensor.Buffer{}, fmt.Errorf("unknown dtype %q", bd.DType)
		}
	}
	kind, ok := memKinds[bd.Memory]
	if !ok {
		return tensor.Buffer{}, fmt.Errorf("unknown memory kind %q", bd.Memory)
	}
	layout, err := tensor.ParseLayout(bd.Layout)
	if err != nil {
		return tensor.Buffer{}, err
	}
	strides := bd.Strides
	if strides == nil {
		strides = make([]int64, len(bd.Shape))
		s := dt.SizeBytes()
		for i := len(bd.Shape) - 1; i >= 0; i-- {
			strides[i] = s
			s *= bd.Shape[i]
		}
	}

	b := tensor.Buffer{
		Shape:   bd.Shape,
		Strides: strides,
		DType:   dt,
		Device:  tensor.Device{Kind: kind},
		Layout:  layout,
	}
	if len(strides) != len(bd.Shape) {
		return tensor.Buffer{}, fmt.Errorf("%d strides for %d dimensions", len(strides), len(bd.Shape))
	}
	b.Data = mem.NewHostBlock(kind, make([]byte, b.SpanBytes())).Ptr()
	return b, nil
}
