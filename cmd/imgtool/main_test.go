// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"bytes"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/gogpu/gpuimage"
	"github.com/gogpu/gpuimage/mem"
	"github.com/gogpu/gpuimage/tensor"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// run executes imgtool with args and returns its output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	orig, origDefault := gpuimage.Logger(), slog.Default()
	t.Cleanup(func() {
		gpuimage.SetLogger(orig)
		slog.SetDefault(origDefault)
	})

	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Config
		wantErr bool
	}{
		{"full", "cache_limit: 1048576\nrow_align: 64\nbase_align: 512\nlog_level: debug\nbackend: noop\n",
			Config{CacheLimit: 1 << 20, RowAlign: 64, BaseAlign: 512, LogLevel: "debug", Backend: "noop"}, false},
		{"defaults", "cache_limit: 10\n", Config{CacheLimit: 10, LogLevel: "warn", Backend: "host"}, false},
		{"auto backend", "backend: auto\n", Config{LogLevel: "warn", Backend: "auto"}, false},
		{"unknown field", "cache_size: 10\n", Config{}, true},
		{"bad level", "log_level: loud\n", Config{}, true},
		{"bad backend", "backend: tape\n", Config{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadConfig(writeFile(t, "config.yaml", tt.content))
			if tt.wantErr {
				if err == nil {
					t.Error("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestConfigOptions(t *testing.T) {
	c, err := gpuimage.NewContext(Config{CacheLimit: 4096, RowAlign: 64}.Options()...)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if got := c.Stats().MaxBytes; got != 4096 {
		t.Errorf("MaxBytes = %d, want 4096", got)
	}

	if _, err := gpuimage.NewContext(Config{RowAlign: 48}.Options()...); err == nil {
		t.Error("row alignment 48 accepted")
	}
}

func TestDescriptionAllocate(t *testing.T) {
	d := Description{Buffers: []BufferDesc{
		{Shape: []int64{4, 6}},
		{Shape: []int64{2, 3, 2}, DType: "float32", Memory: "device", Layout: "HWC"},
		{Shape: []int64{2, 3}, Strides: []int64{32, 1}},
	}}
	bufs, err := d.Allocate()
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		strides []int64
		dtype   tensor.DType
		kind    mem.Kind
		layout  tensor.Layout
		span    int64
	}{
		{[]int64{6, 1}, tensor.Uint8, mem.KindHost, tensor.LayoutNone, 24},
		{[]int64{24, 8, 4}, tensor.Float32, mem.KindDevice, tensor.LayoutHWC, 48},
		{[]int64{32, 1}, tensor.Uint8, mem.KindHost, tensor.LayoutNone, 35},
	}
	for i, tt := range tests {
		b := bufs[i]
		if !slices.Equal(b.Strides, tt.strides) || b.DType != tt.dtype || b.Device.Kind != tt.kind || b.Layout != tt.layout {
			t.Errorf("buffer %d = %v", i, b)
		}
		if got := b.Data.Block().Size(); got != tt.span {
			t.Errorf("buffer %d holds %d bytes, want %d", i, got, tt.span)
		}
	}

	bad := []BufferDesc{
		{Shape: []int64{2}, DType: "complex64"},
		{Shape: []int64{2}, Memory: "tape"},
		{Shape: []int64{2, 2}, Strides: []int64{1}},
		{Shape: []int64{2}, Layout: "HWCC"},
	}
	for _, bd := range bad {
		if _, err := (Description{Buffers: []BufferDesc{bd}}).Allocate(); err == nil {
			t.Errorf("%+v accepted", bd)
		}
	}
}

func TestProbeCommand(t *testing.T) {
	desc := writeFile(t, "nv12.yaml", `format: NV12
buffers:
  - shape: [480, 640]
    memory: device
  - shape: [240, 320, 2]
    memory: device
`)
	for _, name := range []string{"host", "noop"} {
		t.Run(name, func(t *testing.T) {
			out, err := run(t, "--backend", name, "probe", desc)
			if err != nil {
				t.Fatal(err)
			}
			for _, want := range []string{
				"image: <gpuimage.Image 640x480 NV12>",
				"planes: 2",
				"plane 1: 320x240",
				"export default:",
				"device=device:0",
			} {
				if !strings.Contains(out, want) {
					t.Errorf("output lacks %q:\n%s", want, out)
				}
			}
		})
	}

	if _, err := run(t, "--backend", "tape", "probe", desc); err == nil {
		t.Error("unknown backend accepted")
	}
}

func TestProbeHostExport(t *testing.T) {
	desc := writeFile(t, "rgb.yaml", `export: NCHW
buffers:
  - shape: [4, 6, 3]
`)
	out, err := run(t, "probe", desc)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"RGB8", "export NCHW:", "device=host:0"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestProbeErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no buffers", "format: U8\n"},
		{"unknown format", "format: XYZ\nbuffers:\n  - shape: [2, 2]\n"},
		{"incompatible", "format: NV12\nbuffers:\n  - shape: [2, 2, 3]\n"},
		{"bad layout", "export: QQ\nbuffers:\n  - shape: [2, 2]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, "probe", writeFile(t, "desc.yaml", tt.content)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestFormatsCommand(t *testing.T) {
	out, err := run(t, "formats")
	if err != nil {
		t.Fatal(err)
	}
	var nv12 string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "NV12 ") {
			nv12 = line
		}
	}
	if !strings.Contains(nv12, "planes=2 channels=3") {
		t.Errorf("NV12 line = %q", nv12)
	}
}

func TestRoundtripCommand(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 7, 5))
	for i := range src.Pix {
		src.Pix[i] = byte(i * 5)
	}
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	f, err := os.Create(in)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, src); err != nil {
		t.Fatal(err)
	}
	f.Close()

	for _, name := range []string{"out.tiff", "out.bmp", "out.png"} {
		t.Run(name, func(t *testing.T) {
			out := filepath.Join(dir, name)
			stdout, err := run(t, "roundtrip", "-n", "2", in, out)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(stdout, "uploaded <gpuimage.Image 7x5 U8>") {
				t.Errorf("output = %q", stdout)
			}
			got, _, err := decodeFile(out)
			if err != nil {
				t.Fatal(err)
			}
			for y := range 5 {
				for x := range 7 {
					r, _, _, _ := got.At(x, y).RGBA()
					if want := uint32(src.GrayAt(x, y).Y); r>>8 != want {
						t.Fatalf("pixel (%d,%d) = %d, want %d", x, y, r>>8, want)
					}
				}
			}
		})
	}

	if _, err := run(t, "roundtrip", in, filepath.Join(dir, "out.gif")); err == nil {
		t.Error("gif output accepted")
	}
}
