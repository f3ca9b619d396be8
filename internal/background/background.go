// Package background implements the separable recursive exponential
// smoothing background estimator (component C4). Two passes of a
// first-order recursive filter — forward then backward, to cancel the
// single-pole filter's phase lag — approximate a Gaussian blur of the
// given time constant at O(W·H) cost and with linear cache behaviour,
// which is what makes it viable to run once per frame on the hot path
// instead of a true (and much more expensive) Gaussian convolution.
//
// Grounded on the teacher's internal/dsp separable per-axis passes
// (upsample.go/rescale.go process rows then columns), generalized from a
// polyphase convolution to a recursive IIR smoothing pass.
package background

import (
	"math"

	"github.com/pkg/errors"
)

// Sigma is the hard-coded smoothing time constant, in pixels. spec.md §9
// design note (a): whether this should depend on the microscope's pixel
// size is an open question in the original implementation; this port does
// not guess and keeps the constant exactly as specified.
const Sigma = 10.0

var ErrShapeMismatch = errors.New("background: shape mismatch")

// Estimate computes the background bg for frame (w×h, row-major) by
// applying the recursive exponential smoothing filter first along x, then
// along y, both with a reflecting boundary. It returns bg and baseline, the
// global minimum of bg over the whole frame — the floor below which the ROI
// refiner rejects low-signal candidates (spec.md §4.6).
//
// corrected[i] = frame[i] - bg[i] is the caller's responsibility; Estimate
// only produces bg and baseline, since callers need both bg and the
// subtraction result separately (the refiner compares against bg directly,
// not just the corrected frame).
func Estimate(frame []float32, w, h int) (bg []float64, baseline float64, err error) {
	if len(frame) != w*h {
		return nil, 0, errors.Wrapf(ErrShapeMismatch, "frame has %d pixels, want %d", len(frame), w*h)
	}

	bg = make([]float64, w*h)
	for i, v := range frame {
		bg[i] = float64(v)
	}

	row := make([]float64, w)
	for y := 0; y < h; y++ {
		copy(row, bg[y*w:(y+1)*w])
		smoothLine(row)
		copy(bg[y*w:(y+1)*w], row)
	}

	col := make([]float64, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = bg[y*w+x]
		}
		smoothLine(col)
		for y := 0; y < h; y++ {
			bg[y*w+x] = col[y]
		}
	}

	baseline = bg[0]
	for _, v := range bg {
		if v < baseline {
			baseline = v
		}
	}
	return bg, baseline, nil
}

// smoothLine applies the forward-then-backward first-order recursive
// exponential filter to line in place, with a reflecting boundary: each
// pass starts from the state reached by running the filter over the mirror
// image of the samples beyond its starting end (x[-k] = x[k]), up to
// 6*Sigma samples deep.
func smoothLine(line []float64) {
	n := len(line)
	if n == 0 {
		return
	}
	alpha := 1 - math.Exp(-1.0/Sigma)
	kmax := n - 1
	if kmax > int(6*Sigma) {
		kmax = int(6 * Sigma)
	}

	forward := make([]float64, n)
	state := line[kmax]
	for k := kmax - 1; k >= 1; k-- {
		state = alpha*line[k] + (1-alpha)*state
	}
	forward[0] = alpha*line[0] + (1-alpha)*state
	for i := 1; i < n; i++ {
		forward[i] = alpha*line[i] + (1-alpha)*forward[i-1]
	}

	backward := make([]float64, n)
	state = forward[n-1-kmax]
	for k := kmax - 1; k >= 1; k-- {
		state = alpha*forward[n-1-k] + (1-alpha)*state
	}
	backward[n-1] = alpha*forward[n-1] + (1-alpha)*state
	for i := n - 2; i >= 0; i-- {
		backward[i] = alpha*forward[i] + (1-alpha)*backward[i+1]
	}

	copy(line, backward)
}
