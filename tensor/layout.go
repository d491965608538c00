// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package tensor

import (
	"strings"

	"github.com/gogpu/gpuimage/status"
)

// Layout labels the axes of a buffer, outermost first, one letter per axis:
// N (samples), C (channels), H (height), W (width), D (depth), F (frames).
type Layout string

// Common layouts.
const (
	LayoutNone Layout = ""
	LayoutHW   Layout = "HW"
	LayoutHWC  Layout = "HWC"
	LayoutCHW  Layout = "CHW"
	LayoutNHWC Layout = "NHWC"
	LayoutNCHW Layout = "NCHW"
)

const axisLabels = "NCHWDF"

// ParseLayout validates s as a layout. Labels must be known and unique.
func ParseLayout(s string) (Layout, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(axisLabels, rune(s[i])) {
			return LayoutNone, status.Invalidf("layout %q: unknown axis %q", s, s[i])
		}
		if strings.IndexByte(s[:i], s[i]) >= 0 {
			return LayoutNone, status.Invalidf("layout %q: axis %q repeated", s, s[i])
		}
	}
	return Layout(s), nil
}

// MustParseLayout is like ParseLayout but panics on error.
func MustParseLayout(s string) Layout {
	l, err := ParseLayout(s)
	if err != nil {
		panic(err)
	}
	return l
}

// Rank returns the number of axes.
func (l Layout) Rank() int {
	return len(l)
}

// Find returns the index of axis, or -1.
func (l Layout) Find(axis byte) int {
	return strings.IndexByte(string(l), axis)
}

// Axis returns the label of axis i.
func (l Layout) Axis(i int) byte {
	return l[i]
}

// String returns the layout letters, or "NONE" for the empty layout.
func (l Layout) String() string {
	if l == LayoutNone {
		return "NONE"
	}
	return string(l)
}
