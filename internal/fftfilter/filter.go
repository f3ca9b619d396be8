// Package fftfilter owns the thread-safe frequency-domain filtering engine
// (component C2) and the Wiener-filter estimator trained from the stack's
// own power spectrum (component C3).
//
// The reference implementation builds one real-to-complex forward plan and
// one complex-to-real backward plan, sized once to a frame, and shares them
// read-only across worker goroutines. Go's FFT ecosystem does not expose an
// FFTW-style persistent-plan, execute-on-other-buffer API; github.com/mjibson/go-dsp/fft
// exposes stateless FFT2/IFFT2 over [][]complex128 instead. Filter therefore
// holds only the frame dimensions (no plan handle to tear down), and gets
// its thread-safety from that statelessness rather than from a documented
// "plans are concurrently reentrant" guarantee — every call builds its own
// scratch grid, exactly as spec.md §4.2 requires of the scratch buffer even
// under a literal-plan implementation.
package fftfilter

import (
	"github.com/mjibson/go-dsp/fft"
	"github.com/pkg/errors"

	"github.com/stormrecon/storm/internal/pool"
)

// Sentinel errors per the taxonomy of spec.md §7.
var (
	ErrInvalidFilter = errors.New("fftfilter: filter image is not single-channel")
	ErrShapeMismatch = errors.New("fftfilter: shape mismatch")
)

// Filter applies a precomputed Wiener mask to frames in the frequency
// domain. A Filter is immutable after construction and ApplyFourierFilter is
// safe for concurrent use by multiple goroutines sharing one instance.
type Filter struct {
	w, h int
}

// NewFilter constructs a Filter sized to one frame. Mirrors the reference
// implementation's plan-construction step; kept as a constructor (rather
// than a bare function) so call sites read the same way they would against
// a real planner, and so a future FFTW-backed Filter can be dropped in
// without changing callers.
func NewFilter(w, h int) (*Filter, error) {
	if w <= 0 || h <= 0 {
		return nil, errors.Wrapf(ErrShapeMismatch, "invalid frame shape %dx%d", w, h)
	}
	return &Filter{w: w, h: h}, nil
}

// Close is a no-op: there is no plan handle to tear down with the
// stateless go-dsp transforms, but the method is kept so call sites that
// scope a Filter's lifetime with defer f.Close() continue to read correctly
// if a future implementation reintroduces a real plan.
func (f *Filter) Close() error { return nil }

// ApplyFourierFilter forward-transforms input, multiplies element-wise by
// mask (a W×H real-valued array as built by PSAccumulator.Finalize, with DC at
// upper-left), and inverse-transforms the result into output. input, mask
// and output must each have length w*h in row-major (y-major) order.
//
// Precondition: len(input) == w*h. The reference implementation silently
// returns on a row-stride mismatch; spec.md §9 design note (b) upgrades
// that to a hard failure since it indicates a caller bug, not a runtime
// condition to recover from.
func (f *Filter) ApplyFourierFilter(input []float32, mask []float64, output []float32) {
	n := f.w * f.h
	if len(input) != n || len(mask) != n || len(output) != n {
		panic("fftfilter: input/mask/output length must equal w*h")
	}

	grid := make([][]complex128, f.h)
	buf := pool.GetComplex128(n)
	defer pool.PutComplex128(buf)
	for y := 0; y < f.h; y++ {
		row := buf[y*f.w : (y+1)*f.w]
		for x := 0; x < f.w; x++ {
			row[x] = complex(float64(input[y*f.w+x]), 0)
		}
		grid[y] = row
	}

	spectrum := fft.FFT2(grid)
	for y := 0; y < f.h; y++ {
		for x := 0; x < f.w; x++ {
			spectrum[y][x] *= complex(mask[y*f.w+x], 0)
		}
	}

	// go-dsp's IFFT2 already divides by W*H internally (unlike the raw
	// backward transform spec.md §4.2 describes, which leaves that scaling
	// to the caller), so no further 1/(W*H) scaling is applied here.
	inverse := fft.IFFT2(spectrum)
	for y := 0; y < f.h; y++ {
		for x := 0; x < f.w; x++ {
			output[y*f.w+x] = float32(real(inverse[y][x]))
		}
	}
}
