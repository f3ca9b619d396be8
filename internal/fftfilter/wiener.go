package fftfilter

import (
	"image"

	"github.com/mjibson/go-dsp/fft"
	"github.com/pkg/errors"

	"github.com/stormrecon/storm/internal/kernel"
)

// noiseRingWidth is the hard-coded outer-ring width (in up-shifted-spectrum
// pixels) used to estimate the noise floor. spec.md §9 design note (c):
// this is intentionally not scaled to frame size, and frames smaller than
// minWienerFrameSize on a side are rejected outright below rather than
// silently degenerating.
const noiseRingWidth = 10

// minWienerFrameSize is the smallest frame side NewPSAccumulator accepts.
// Below this the noise ring (spec.md §4.3, §9c) leaves less than a
// noiseRingWidth-wide block of the spectrum outside it, and at
// 2*noiseRingWidth or less it covers the whole spectrum.
const minWienerFrameSize = 30

// PSAccumulator averages the power spectra of a stack's frames without
// requiring the whole stack to be resident in memory at once: Add is called
// once per frame by a single-threaded pass over the stack (storm's
// buildMask, cmd/storm's buildFilterImage), and Finalize derives the Wiener
// mask from the running sum.
type PSAccumulator struct {
	w, h int
	sum  []float64 // w*h, unshifted (DC at [0][0])
	n    int
}

// NewPSAccumulator starts a power-spectrum accumulation for w×h frames.
func NewPSAccumulator(w, h int) (*PSAccumulator, error) {
	if w < minWienerFrameSize || h < minWienerFrameSize {
		return nil, errors.Wrapf(ErrShapeMismatch,
			"frame %dx%d is smaller than the minimum %dx%d the noise-ring estimate supports",
			w, h, minWienerFrameSize, minWienerFrameSize)
	}
	return &PSAccumulator{w: w, h: h, sum: make([]float64, w*h)}, nil
}

// Add folds one frame's power spectrum |FFT(frame)|² into the running sum.
func (p *PSAccumulator) Add(frame []float32) error {
	if len(frame) != p.w*p.h {
		return errors.Wrapf(ErrShapeMismatch, "frame has %d pixels, want %d", len(frame), p.w*p.h)
	}
	grid := make([][]complex128, p.h)
	flat := make([]complex128, p.w*p.h)
	for y := 0; y < p.h; y++ {
		row := flat[y*p.w : (y+1)*p.w]
		for x := 0; x < p.w; x++ {
			row[x] = complex(float64(frame[y*p.w+x]), 0)
		}
		grid[y] = row
	}
	spectrum := fft.FFT2(grid)
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			c := spectrum[y][x]
			mag2 := real(c)*real(c) + imag(c)*imag(c)
			p.sum[y*p.w+x] += mag2
		}
	}
	p.n++
	return nil
}

// Finalize computes PS(u,v) = sum/n (DC at [0][0]), estimates the noise
// floor σ² from the high-frequency ring of the DC-centred spectrum, and
// returns the real-valued Wiener mask H(u,v) = max(0, PS-σ²)/PS with DC
// moved back to upper-left, per spec.md §4.3.
func (p *PSAccumulator) Finalize() ([]float64, error) {
	if p.n == 0 {
		return nil, errors.New("fftfilter: Finalize called with no frames added")
	}
	ps := make([]float64, len(p.sum))
	for i, v := range p.sum {
		ps[i] = v / float64(p.n)
	}

	centred := fftshift2D(ps, p.w, p.h)
	sigma2 := meanOuterRing(centred, p.w, p.h, noiseRingWidth)

	maskCentred := make([]float64, len(centred))
	for i, v := range centred {
		if v <= 0 {
			continue
		}
		m := (v - sigma2) / v
		if m < 0 {
			m = 0
		}
		if m > 1 {
			m = 1
		}
		maskCentred[i] = m
	}

	return ifftshift2D(maskCentred, p.w, p.h), nil
}

// fftshift2D moves the DC component from [0][0] to the array's centre,
// the standard visualization convention and the one spec.md §4.3 uses to
// describe the noise-ring estimate.
func fftshift2D(src []float64, w, h int) []float64 {
	out := make([]float64, w*h)
	hw, hh := w/2, h/2
	for y := 0; y < h; y++ {
		sy := (y + hh) % h
		for x := 0; x < w; x++ {
			sx := (x + hw) % w
			out[sy*w+sx] = src[y*w+x]
		}
	}
	return out
}

// ifftshift2D is fftshift2D's inverse: moves a centred DC back to [0][0].
func ifftshift2D(src []float64, w, h int) []float64 {
	out := make([]float64, w*h)
	hw, hh := w/2, h/2
	for y := 0; y < h; y++ {
		sy := (y + hh) % h
		for x := 0; x < w; x++ {
			sx := (x + hw) % w
			out[y*w+x] = src[sy*w+sx]
		}
	}
	return out
}

// meanOuterRing averages a DC-centred array over its outer ring of width
// ring, the hard-coded high-frequency tail spec.md §4.3 and §9c describe:
// (x<ring || x>=w-ring || y<ring || y>=h-ring).
func meanOuterRing(centred []float64, w, h, ring int) float64 {
	var sum float64
	var n int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < ring || x >= w-ring || y < ring || y >= h-ring {
				sum += centred[y*w+x]
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// LoadFilterImage loads a pre-built filter from img and spline-resamples it
// to w×h, per spec.md §4.3. A non-grayscale image yields ErrInvalidFilter
// so the caller can fall back to building the mask from data with
// NewPSAccumulator.
func LoadFilterImage(img image.Image, w, h int) ([]float64, error) {
	gray, ok := img.(*image.Gray)
	var gray16 *image.Gray16
	if !ok {
		gray16, ok = img.(*image.Gray16)
	}
	if !ok {
		return nil, ErrInvalidFilter
	}

	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	srcRows := make([][]float64, srcH)
	for y := 0; y < srcH; y++ {
		row := make([]float64, srcW)
		for x := 0; x < srcW; x++ {
			if gray != nil {
				row[x] = float64(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y) / 255
			} else {
				row[x] = float64(gray16.Gray16At(b.Min.X+x, b.Min.Y+y).Y) / 65535
			}
		}
		srcRows[y] = row
	}

	resampled := resample2D(srcRows, srcW, srcH, w, h)
	flat := make([]float64, w*h)
	for y := 0; y < h; y++ {
		copy(flat[y*w:(y+1)*w], resampled[y])
	}
	return flat, nil
}

// resample2D separably resamples a srcW×srcH grid to dstW×dstH using the
// spline kernel bank (component C11), one rational ratio per axis.
// Ratios are taken as raw (unreduced) dst/src fractions; GenerateBank's
// period is their lcm, so a user-supplied filter image whose size is
// nearly but not exactly the frame size can produce a large bank. That
// cost is paid once at start-up, not per frame, so it is left unreduced
// for simplicity rather than introducing a gcd-reduction step here.
func resample2D(src [][]float64, srcW, srcH, dstW, dstH int) [][]float64 {
	rowBankNum, rowBankDen := dstW, srcW
	colBankNum, colBankDen := dstH, srcH

	// Resample each row to dstW.
	rowBank := kernel.GenerateBank(rowBankNum, rowBankDen)
	widened := make([][]float64, srcH)
	for y := 0; y < srcH; y++ {
		widened[y] = kernel.Apply1D(src[y], rowBank, dstW)
	}

	// Transpose, resample to dstH, transpose back.
	colBank := kernel.GenerateBank(colBankNum, colBankDen)
	out := make([][]float64, dstH)
	for y := range out {
		out[y] = make([]float64, dstW)
	}
	col := make([]float64, srcH)
	for x := 0; x < dstW; x++ {
		for y := 0; y < srcH; y++ {
			col[y] = widened[y][x]
		}
		resampledCol := kernel.Apply1D(col, colBank, dstH)
		for y := 0; y < dstH; y++ {
			out[y][x] = resampledCol[y]
		}
	}
	return out
}
