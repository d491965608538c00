// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package parallel

import "sync"

// MinBandBytes is the smallest band of rows handed to a worker.
const MinBandBytes = 256 << 10

var defaultPool = sync.OnceValue(func() *WorkerPool {
	return NewWorkerPool(0)
})

// Default returns the process-wide pool, creating it on first use.
func Default() *WorkerPool {
	return defaultPool()
}

// Bands splits height rows of rowBytes bytes into at most n bands of at
// least MinBandBytes each. It returns the first row of each band followed by
// height.
func Bands(height, rowBytes int64, n int) []int64 {
	if height <= 0 {
		return []int64{0, max(height, 0)}
	}
	minRows := max(MinBandBytes/max(rowBytes, 1), 1)
	bands := min(int64(n), height/minRows)
	if bands < 1 {
		bands = 1
	}
	bounds := make([]int64, bands+1)
	for i := range bands + 1 {
		bounds[i] = height * i / bands
	}
	return bounds
}

// Rows calls fn for consecutive row ranges [y0, y1) covering height rows
// and waits for them. Small ranges run on the calling goroutine.
func (p *WorkerPool) Rows(height, rowBytes int64, fn func(y0, y1 int64)) {
	bounds := Bands(height, rowBytes, p.Workers())
	if len(bounds) == 2 {
		fn(bounds[0], bounds[1])
		return
	}
	work := make([]func(), len(bounds)-1)
	for i := range work {
		y0, y1 := bounds[i], bounds[i+1]
		work[i] = func() { fn(y0, y1) }
	}
	p.ExecuteAll(work)
}
