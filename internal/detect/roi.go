package detect

import "github.com/stormrecon/storm/internal/kernel"

// Candidate is a refined sub-pixel detection on the up-sampled grid, before
// its asymmetry figure of merit has been computed (component C7 fills that
// in once every ROI in the frame has been refined).
type Candidate struct {
	X, Y  uint32
	Value float32
}

// RefineROI extracts a small ROI around each coarse candidate, up-samples it
// by Factor using separable Catmull-Rom interpolation without prefiltering,
// and finds strictly-interior sub-pixel maxima above Threshold, per
// spec.md §4.6.
//
// filtered and bg are both w×h, row-major. baseline is the scene-wide
// background floor from background.Estimate.
func RefineROI(filtered, bg []float64, baseline float64, w, h int, candidates []Point, p Params) []Candidate {
	factor := p.Factor
	roiLen := p.ROILen
	half := roiLen / 2
	bank := kernel.GenerateBank(factor, 1)

	var out []Candidate
	for _, c := range candidates {
		// Clamp the ROI to the frame; record the clipped origin (x0, y0)
		// so the up-sampled ROI's own origin maps back to the correct
		// original-pixel coordinate, not to 0 (spec.md §9, "ROI border
		// handling").
		x0 := c.X - half
		if x0 < 0 {
			x0 = 0
		}
		y0 := c.Y - half
		if y0 < 0 {
			y0 = 0
		}
		x1 := x0 + roiLen
		if x1 > w {
			x1 = w
		}
		y1 := y0 + roiLen
		if y1 > h {
			y1 = h
		}
		roiW, roiH := x1-x0, y1-y0
		if roiW < 4 || roiH < 4 {
			// Too close to the frame edge for a meaningful 4-tap spline;
			// skip rather than let the kernel read garbage taps.
			continue
		}

		if filtered[c.Y*w+c.X] < bg[c.Y*w+c.X]-baseline {
			continue // very low signal, spec.md §4.6 step 2
		}

		patch := make([][]float64, roiH)
		for y := 0; y < roiH; y++ {
			row := make([]float64, roiW)
			copy(row, filtered[(y0+y)*w+x0:(y0+y)*w+x1])
			patch[y] = row
		}

		upW := factor*(roiW-1) + 1
		upH := factor*(roiH-1) + 1
		upsampled := resampleROI(patch, roiW, roiH, bank, upW, upH)

		border := factor
		for j := border; j < upH-border; j++ {
			for i := border; i < upW-border; i++ {
				v := upsampled[j*upW+i]
				if v <= p.Threshold {
					continue
				}
				if !isStrictLocalMax(upsampled, upW, i, j, v) {
					continue
				}
				out = append(out, Candidate{
					X:     uint32(factor*x0 + i),
					Y:     uint32(factor*y0 + j),
					Value: float32(v),
				})
			}
		}
	}
	return out
}

// resampleROI separably up-samples a roiW×roiH patch along x then y using
// bank, returning a flat row-major upW×upH array.
func resampleROI(patch [][]float64, roiW, roiH int, bank kernel.Bank, upW, upH int) []float64 {
	widened := make([][]float64, roiH)
	for y := 0; y < roiH; y++ {
		widened[y] = kernel.Apply1D(patch[y], bank, upW)
	}

	out := make([]float64, upW*upH)
	col := make([]float64, roiH)
	for x := 0; x < upW; x++ {
		for y := 0; y < roiH; y++ {
			col[y] = widened[y][x]
		}
		resampledCol := kernel.Apply1D(col, bank, upH)
		for y := 0; y < upH; y++ {
			out[y*upW+x] = resampledCol[y]
		}
	}
	return out
}
