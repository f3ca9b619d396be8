// Package pipeline composes the Fourier filter (component C2), the
// background estimator (component C4), and the two-stage detector
// (components C5-C7) into the single per-frame function the scheduler
// (component C9) calls from each worker goroutine.
//
// Grounded on the teacher's encode_parallel.go, where a similar
// per-worker Pipeline bundles a VP8 encoder's scratch state (residual
// buffers, boolean coder) so each goroutine owns its own working set and
// never touches another worker's memory.
package pipeline

import (
	"github.com/pkg/errors"

	"github.com/stormrecon/storm/internal/background"
	"github.com/stormrecon/storm/internal/detect"
	"github.com/stormrecon/storm/internal/fftfilter"
	"github.com/stormrecon/storm/internal/loc"
)

// Params collects the tunables a single Process call needs, independent of
// which worker or frame it's handling.
type Params struct {
	Mask      []float64 // w*h Wiener (or loaded) filter mask, DC at upper-left
	Factor    int
	Threshold float64
	ROILen    int
}

// Pipeline holds one worker's private scratch state: its own Filter
// instance and a reusable float32 filtered-frame buffer (the float64
// working buffers are allocated per Process call), so N workers processing
// N frames concurrently never share mutable state (spec.md §4.9).
type Pipeline struct {
	filter   *fftfilter.Filter
	w, h     int
	filtered []float32
}

// New builds a worker-private Pipeline sized to w×h frames.
func New(w, h int) (*Pipeline, error) {
	f, err := fftfilter.NewFilter(w, h)
	if err != nil {
		return nil, errors.Wrap(err, "pipeline: new filter")
	}
	return &Pipeline{
		filter:   f,
		w:        w,
		h:        h,
		filtered: make([]float32, w*h),
	}, nil
}

// Close releases the Pipeline's Filter. Safe to call once per worker at
// shutdown; the Filter itself has no real resources to release, but this
// keeps the call site correct if a future Filter does.
func (p *Pipeline) Close() error {
	return p.filter.Close()
}

// Process runs one frame through the full detection chain: Fourier
// filtering, background subtraction, coarse maxima, ROI refinement, and
// asymmetry scoring, returning the frame's set of localizations.
//
// frame must have length w*h, the shape Pipeline was constructed with.
func (p *Pipeline) Process(frame []float32, params Params) (*loc.Set, error) {
	if len(frame) != p.w*p.h {
		return nil, errors.Wrapf(fftfilter.ErrShapeMismatch,
			"frame has %d pixels, want %d", len(frame), p.w*p.h)
	}

	p.filter.ApplyFourierFilter(frame, params.Mask, p.filtered)

	filtered64 := make([]float64, len(p.filtered))
	for i, v := range p.filtered {
		filtered64[i] = float64(v)
	}

	bg, baseline, err := background.Estimate(p.filtered, p.w, p.h)
	if err != nil {
		return nil, errors.Wrap(err, "pipeline: background estimate")
	}

	corrected := make([]float64, len(filtered64))
	for i := range corrected {
		corrected[i] = filtered64[i] - bg[i]
	}

	dp := detect.Params{Factor: params.Factor, Threshold: params.Threshold, ROILen: params.ROILen}
	coarse := detect.CoarseMaxima(corrected, p.w, p.h, params.Threshold)
	refined := detect.RefineROI(corrected, bg, baseline, p.w, p.h, coarse, dp)
	localizations := detect.ScoreAsymmetry(corrected, p.w, p.h, refined, params.Factor)

	set := loc.NewSet()
	for _, l := range localizations {
		set.Add(l)
	}
	return set, nil
}
