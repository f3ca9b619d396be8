// Package pool provides bucketed sync.Pool instances for reducing allocations
// in the per-frame hot path. Buffers are organized by size class to minimize
// waste, the same bucketing scheme the encoder side of the pack uses for byte
// scratch, generalized here to the float32/float64/complex128 buffers the
// localization pipeline allocates per call.
package pool

import "sync"

// Size classes, in elements rather than bytes: a typical ROI buffer is a few
// hundred elements, a full frame can run into the millions for a large stack.
const (
	SizeSmall  = 256
	SizeMedium = 4096
	SizeLarge  = 65536
	SizeHuge   = 1048576
)

var sizes = [4]int{SizeSmall, SizeMedium, SizeLarge, SizeHuge}

func bucketIndex(size int) int {
	switch {
	case size <= SizeSmall:
		return 0
	case size <= SizeMedium:
		return 1
	case size <= SizeLarge:
		return 2
	default:
		return 3
	}
}

var float32Pools [4]sync.Pool
var float64Pools [4]sync.Pool
var complex128Pools [4]sync.Pool

func init() {
	for i, sz := range sizes {
		sz := sz
		float32Pools[i] = sync.Pool{New: func() any { b := make([]float32, sz); return &b }}
		float64Pools[i] = sync.Pool{New: func() any { b := make([]float64, sz); return &b }}
		complex128Pools[i] = sync.Pool{New: func() any { b := make([]complex128, sz); return &b }}
	}
}

// GetFloat32 returns a []float32 of length n from the pool, zeroed.
// Slices larger than SizeHuge bypass the pool entirely.
func GetFloat32(n int) []float32 {
	if n > sizes[len(sizes)-1] {
		return make([]float32, n)
	}
	idx := bucketIndex(n)
	bp := float32Pools[idx].Get().(*[]float32)
	b := *bp
	if cap(b) < n {
		b = make([]float32, n)
		return b
	}
	b = b[:n]
	for i := range b {
		b[i] = 0
	}
	return b
}

// PutFloat32 returns a slice obtained from GetFloat32 to the pool.
func PutFloat32(b []float32) {
	c := cap(b)
	if c < SizeSmall || c > sizes[len(sizes)-1] {
		return
	}
	idx := bucketIndex(c)
	b = b[:c]
	float32Pools[idx].Put(&b)
}

// GetFloat64 returns a []float64 of length n from the pool, zeroed.
func GetFloat64(n int) []float64 {
	if n > sizes[len(sizes)-1] {
		return make([]float64, n)
	}
	idx := bucketIndex(n)
	bp := float64Pools[idx].Get().(*[]float64)
	b := *bp
	if cap(b) < n {
		b = make([]float64, n)
		return b
	}
	b = b[:n]
	for i := range b {
		b[i] = 0
	}
	return b
}

// PutFloat64 returns a slice obtained from GetFloat64 to the pool.
func PutFloat64(b []float64) {
	c := cap(b)
	if c < SizeSmall || c > sizes[len(sizes)-1] {
		return
	}
	idx := bucketIndex(c)
	b = b[:c]
	float64Pools[idx].Put(&b)
}

// GetComplex128 returns a []complex128 of length n from the pool, zeroed.
// Used for the FFT Filter's per-call W×H complex scratch grid (component C2).
func GetComplex128(n int) []complex128 {
	if n > sizes[len(sizes)-1] {
		return make([]complex128, n)
	}
	idx := bucketIndex(n)
	bp := complex128Pools[idx].Get().(*[]complex128)
	b := *bp
	if cap(b) < n {
		b = make([]complex128, n)
		return b
	}
	b = b[:n]
	for i := range b {
		b[i] = 0
	}
	return b
}

// PutComplex128 returns a slice obtained from GetComplex128 to the pool.
func PutComplex128(b []complex128) {
	c := cap(b)
	if c < SizeSmall || c > sizes[len(sizes)-1] {
		return
	}
	idx := bucketIndex(c)
	b = b[:c]
	complex128Pools[idx].Put(&b)
}
