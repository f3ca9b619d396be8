package storm

import (
	"context"
	"image"
	"runtime"

	"github.com/pkg/errors"

	"github.com/stormrecon/storm/internal/accum"
	"github.com/stormrecon/storm/internal/fftfilter"
	"github.com/stormrecon/storm/internal/frames"
	"github.com/stormrecon/storm/internal/loc"
	"github.com/stormrecon/storm/internal/scheduler"
)

// Re-exported data-model types: callers work entirely in terms of the
// public storm API and never need to import the internal packages that
// build up a Catalogue.
type (
	Localization = loc.Localization
	Set          = loc.Set
	Catalogue    = loc.Catalogue
)

// Progress reports done/total frame counts, updated at chunk boundaries
// (spec.md §4.9).
type Progress = scheduler.Progress

// Options mirrors the teacher's EncoderOptions pattern: a flat struct of
// user-tunable knobs with a DefaultOptions constructor, rather than
// functional options or a builder.
type Options struct {
	// Factor is the up-sampling factor. Must be a power of two on this
	// implementation's integer-ROI code path (spec.md §9).
	Factor int
	// Threshold is the minimum filtered intensity for a maximum candidate.
	Threshold float64
	// ROILen is the odd ROI edge length around each coarse candidate.
	ROILen int
	// Workers is the worker pool size; 0 means runtime.NumCPU().
	Workers int
	// ChunkSize is the scheduler's frame chunk size; 0 means
	// scheduler.DefaultChunkSize.
	ChunkSize int
	// Begin, End, and Stride select the frame range the scheduler iterates
	// (spec.md §4.9's i_beg/i_end/i_stride). Begin defaults to 0, End<=0 or
	// End>N means the full stack, Stride<=0 means 1. Frames outside the
	// selection are left nil in the returned Catalogue.
	Begin, End, Stride int
	// FilterImage, if non-nil, is used as the Wiener mask source instead of
	// building one from the stack's own power spectrum (spec.md §4.3).
	FilterImage image.Image
}

// DefaultOptions returns the spec's documented CLI defaults (spec.md §6):
// factor 8, threshold 250, ROI length 9, worker count and chunk size left
// to Run's own defaults.
func DefaultOptions() Options {
	return Options{
		Factor:    8,
		Threshold: 250,
		ROILen:    9,
	}
}

// Run opens the Wiener mask (from opts.FilterImage if given, else built
// from src's own power spectrum), then streams the frames of src selected
// by opts.Begin/End/Stride through the per-frame pipeline via the parallel
// scheduler, returning the
// frame-indexed Catalogue and the up-sampled Accumulator image.
//
// progressFn, if non-nil, is called at chunk boundaries with the running
// done/total frame count.
func Run(ctx context.Context, src frames.Source, opts Options, progressFn func(Progress)) (Catalogue, *accum.Image, error) {
	w, h, n := src.Shape()

	mask, err := buildMask(src, w, h, n, opts)
	if err != nil {
		return nil, nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	schedOpts := scheduler.Options{
		Workers:   workers,
		ChunkSize: opts.ChunkSize,
		Begin:     opts.Begin,
		End:       opts.End,
		Stride:    opts.Stride,
		Mask:      mask,
		Factor:    opts.Factor,
		Threshold: opts.Threshold,
		ROILen:    opts.ROILen,
		Progress:  progressFn,
	}

	cat, err := scheduler.Run(ctx, src, workers, schedOpts)
	if err != nil {
		return cat, nil, err
	}

	upW := opts.Factor*(w-1) + 1
	upH := opts.Factor*(h-1) + 1
	acc := accum.NewImage(upW, upH)
	accum.Accumulate(cat, acc)

	return cat, acc, nil
}

// buildMask either resamples opts.FilterImage to the frame shape, or
// streams the whole stack once (single-threaded, per spec.md §4.9's FFT
// plan-construction note) to accumulate a Wiener mask from the data.
func buildMask(src frames.Source, w, h, n int, opts Options) ([]float64, error) {
	if opts.FilterImage != nil {
		mask, err := fftfilter.LoadFilterImage(opts.FilterImage, w, h)
		if err != nil {
			return nil, errors.Wrap(err, "storm: load filter image")
		}
		return mask, nil
	}

	psAcc, err := fftfilter.NewPSAccumulator(w, h)
	if err != nil {
		return nil, errors.Wrap(err, "storm: new power spectrum accumulator")
	}

	const passChunk = 10
	for start := 0; start < n; start += passChunk {
		k := passChunk
		if start+k > n {
			k = n - start
		}
		block, err := src.ReadBlock(frames.Offset{F: start}, frames.Extent{W: w, H: h, K: k})
		if err != nil {
			return nil, errors.Wrapf(err, "storm: read frames for power spectrum pass at %d", start)
		}
		for _, frame := range block {
			if err := psAcc.Add(frame); err != nil {
				return nil, errors.Wrap(err, "storm: accumulate power spectrum")
			}
		}
	}

	mask, err := psAcc.Finalize()
	if err != nil {
		return nil, errors.Wrap(err, "storm: finalize wiener mask")
	}
	return mask, nil
}
