// Package kernel is the shared resampling sub-library (component C11):
// kernel generation from a Catmull-Rom spline for rational sampling ratios,
// periodic application of the kernel bank along a line, and specialized
// expand-by-2 / reduce-by-2 fast paths for the power-of-two ratios the
// up-sampling factor always uses today (spec.md §9, "Rational sampling
// ratios"). The general rational path is kept so a future fractional
// factor does not need a new kernel generator.
//
// Grounded on the teacher's internal/dsp/upsample.go and rescale.go
// (separable fixed-kernel resampling with dedicated 2x fast paths) and on
// the pack's stdimg resample helper (separable interpolation over an
// image buffer without a prefilter).
package kernel

// Tap is one weighted sample contributing to an output pixel.
type Tap struct {
	Offset int     // offset from the kernel's centre input index
	Weight float64
}

// Kernel is one entry of a periodic Bank: the taps needed to produce one
// output sample, plus the explicit integer support [Left, Right] around the
// centre the spec's data model requires.
type Kernel struct {
	Left, Right int // inclusive support bounds, relative to centre
	Weights     []float64
}

// Bank is a periodic array of Kernels: entry k is used for every output
// index congruent to k modulo len(Bank).
type Bank []Kernel

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	return a / gcd(a, b) * b
}

// catmullRom evaluates the Catmull-Rom (3rd-order) cubic convolution kernel
// at t, the third-order spline used throughout the pipeline for ROI
// up-sampling without a prefilter.
func catmullRom(t float64) float64 {
	if t < 0 {
		t = -t
	}
	switch {
	case t <= 1:
		return 1.5*t*t*t - 2.5*t*t + 1
	case t <= 2:
		return -0.5*t*t*t + 2.5*t*t - 4*t + 2
	default:
		return 0
	}
}

// GenerateBank builds the periodic kernel bank for up-sampling ratio
// num/den (den=1 for the integer factors this pipeline uses). Output index
// o maps to input position o*den/num; the bank has period lcm(num,den) and
// kernel k covers output indices o ≡ k (mod period).
func GenerateBank(num, den int) Bank {
	if num <= 0 || den <= 0 {
		panic("kernel: ratio numerator and denominator must be positive")
	}
	period := lcm(num, den)
	bank := make(Bank, period)
	for k := 0; k < period; k++ {
		// Input-space position of output index k, relative to its floor.
		pos := float64(k*den) / float64(num)
		base := int(pos)
		frac := pos - float64(base)

		// 4-tap Catmull-Rom support: input samples at base-1..base+2,
		// expressed relative to the output's own centre (base).
		weights := make([]float64, 4)
		weights[0] = catmullRom(frac + 1)
		weights[1] = catmullRom(frac)
		weights[2] = catmullRom(frac - 1)
		weights[3] = catmullRom(frac - 2)
		bank[k] = Kernel{Left: -1, Right: 2, Weights: weights}
	}
	return bank
}

// clampIndex reflects an out-of-range sample index back into [0, n-1] by
// clamping, matching the ROI refiner's border handling (spec.md §9): ROI
// bounds are already clamped to the frame before resampling, so edge
// repetition here only ever affects the outermost tap or two.
func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Apply1D resamples src (length n) along one dimension using bank, producing
// an output of length outLen. outLen is the caller's responsibility to size
// correctly (factor*(n-1)+1 for the integer up-sampling path).
//
// Output index o decomposes as o = base*period + k: the kernel cycles every
// period output samples (one full pass through the bank), and each such
// cycle advances the input centre by exactly one sample — the relationship
// GenerateBank's phases are built around.
func Apply1D(src []float64, bank Bank, outLen int) []float64 {
	n := len(src)
	out := make([]float64, outLen)
	period := len(bank)
	for o := 0; o < outLen; o++ {
		k := bank[o%period]
		base := o / period
		// Each period of output indices advances the input centre by
		// exactly one sample (this holds for the num/den ratios this
		// pipeline builds banks for, where den divides evenly into the
		// output stride); base is that whole-sample advance.
		var acc float64
		for t, w := range k.Weights {
			idx := clampIndex(base+t-1, n)
			acc += w * src[idx]
		}
		out[o] = acc
	}
	return out
}

// ExpandBy2 doubles the length of src using the 2x fast path: output index
// 2*i maps exactly onto src[i] (weight 1, the interpolated grid lands on
// existing samples at even output indices), output index 2*i+1 is the
// Catmull-Rom interpolation at the half-integer phase between src[i] and
// src[i+1]. Applied log2(factor) times it up-samples by a power-of-two
// factor; the ROI refiner does not use it, and up-samples in one step with
// GenerateBank(factor, 1) and Apply1D instead.
func ExpandBy2(src []float64) []float64 {
	n := len(src)
	if n == 0 {
		return nil
	}
	out := make([]float64, 2*n-1)
	half := GenerateBank(2, 1)[1] // phase 1/2 kernel
	for i := 0; i < n; i++ {
		out[2*i] = src[i]
		if i+1 < n {
			var acc float64
			for t, w := range half.Weights {
				idx := clampIndex(i+t-1, n)
				acc += w * src[idx]
			}
			out[2*i+1] = acc
		}
	}
	return out
}

// ReduceBy2 halves the length of src by taking every other sample,
// the dual fast path to ExpandBy2. Nothing in the pipeline calls it; it is
// kept for symmetry with ExpandBy2.
func ReduceBy2(src []float64) []float64 {
	n := (len(src) + 1) / 2
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = src[2*i]
	}
	return out
}
