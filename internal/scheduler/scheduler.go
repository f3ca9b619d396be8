// Package scheduler implements the parallel frame-streaming scheduler
// (component C9): it drains a frames.Source in fixed-size chunks over a
// selected [begin, end) range with a stride, claims frames across a worker
// pool with an atomic counter, and assembles the results back into a
// Catalogue ordered by frame index regardless of which worker finished
// which frame first.
//
// Grounded on the teacher's internal/lossy/encode_parallel.go: an
// atomic.Int32 row counter there lets goroutines in encodeFrameParallel
// each claim the next unencoded MB row without a mutex; this scheduler
// uses the same atomic-claim idiom at the granularity of frames within a
// chunk instead of macroblock rows within a picture.
package scheduler

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/stormrecon/storm/internal/frames"
	"github.com/stormrecon/storm/internal/loc"
	"github.com/stormrecon/storm/internal/pipeline"
)

// DefaultChunkSize is the number of frames read from the source and handed
// to the worker pool per scheduling round, per spec.md §4.9.
const DefaultChunkSize = 10

// ErrCancelled is returned by Run when ctx is cancelled before the stack
// finishes processing. Frames already claimed by a worker when cancellation
// is observed are still completed; no partial frame is ever left half-done.
var ErrCancelled = errors.New("scheduler: cancelled")

// Progress reports how many of the selected frames have been processed so
// far. Delivered at chunk boundaries, not per frame, to keep the callback
// cheap enough to call from the scheduling goroutine directly.
type Progress struct {
	Done, Total int
}

// Options configures one Run call.
type Options struct {
	Workers   int // goroutine pool size; <=0 means runtime.GOMAXPROCS(0)
	ChunkSize int // <=0 means DefaultChunkSize

	// Begin, End, and Stride select the frame range iterated per spec.md
	// §4.9 ("iterate frames [i_beg, i_end) with stride i_stride"). Begin
	// defaults to 0, End<=0 or End>N means the full stack, Stride<=0 means
	// 1. Frames outside [Begin, End) or not on the stride are left as nil,
	// empty entries in the returned Catalogue, which is always sized to
	// the source's full frame count.
	Begin, End, Stride int

	Mask      []float64
	Factor    int
	Threshold float64
	ROILen    int
	Progress  func(Progress)
}

// Run streams the selected frames of src through a fresh per-worker
// pipeline.Pipeline and returns a Catalogue sized to src's full frame count,
// indexed by original frame number; slots outside the selected range are
// left nil.
//
// If src is Reentrant and reports true, workers call src.ReadBlock directly
// and concurrently. Otherwise (the common case for the in-memory TIFF and
// SIF backends) the scheduling goroutine itself performs every ReadBlock
// call single-threaded, and only hands already-materialized frame buffers
// to the pool — per spec.md §4.9 and the frames.Reentrant contract.
func Run(ctx context.Context, src frames.Source, workers int, opts Options) (loc.Catalogue, error) {
	w, h, n := src.Shape()
	if workers <= 0 {
		workers = opts.Workers
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	begin := opts.Begin
	if begin < 0 {
		begin = 0
	}
	end := opts.End
	if end <= 0 || end > n {
		end = n
	}
	if end < begin {
		end = begin
	}
	stride := opts.Stride
	if stride <= 0 {
		stride = 1
	}

	catalogue := make(loc.Catalogue, n)
	if n == 0 || begin >= end {
		return catalogue, nil
	}

	total := (end - begin + stride - 1) / stride

	pipelines := make([]*pipeline.Pipeline, workers)
	for i := range pipelines {
		p, err := pipeline.New(w, h)
		if err != nil {
			return nil, errors.Wrap(err, "scheduler: new pipeline")
		}
		pipelines[i] = p
	}
	defer func() {
		for _, p := range pipelines {
			p.Close()
		}
	}()

	reentrant := false
	if r, ok := src.(frames.Reentrant); ok {
		reentrant = r.ReentrantRead()
	}

	params := pipeline.Params{Mask: opts.Mask, Factor: opts.Factor, Threshold: opts.Threshold, ROILen: opts.ROILen}

	done := 0
	for chunkStart := begin; chunkStart < end; chunkStart += chunkSize {
		select {
		case <-ctx.Done():
			return catalogue, errors.Wrap(ErrCancelled, ctx.Err().Error())
		default:
		}

		chunkLen := chunkSize
		if chunkStart+chunkLen > end {
			chunkLen = end - chunkStart
		}

		var chunkFrames [][]float32
		if !reentrant {
			blocks, err := src.ReadBlock(frames.Offset{F: chunkStart}, frames.Extent{W: w, H: h, K: chunkLen})
			if err != nil {
				return catalogue, errors.Wrapf(err, "scheduler: read chunk at frame %d", chunkStart)
			}
			chunkFrames = blocks
		}

		processed, err := runChunk(ctx, src, pipelines, params, catalogue, chunkStart, chunkLen, chunkFrames, reentrant, begin, stride)
		if err != nil {
			return catalogue, err
		}

		done += processed
		if opts.Progress != nil {
			opts.Progress(Progress{Done: done, Total: total})
		}
	}

	return catalogue, nil
}

// runChunk dispatches chunkLen frames starting at chunkStart across
// len(pipelines) workers, each claiming the next unprocessed frame index
// within the chunk via an atomic counter until the chunk is exhausted.
// A claimed index is skipped, without counting toward the returned
// processed total, when it doesn't fall on (begin, stride)'s selection.
func runChunk(ctx context.Context, src frames.Source, pipelines []*pipeline.Pipeline, params pipeline.Params,
	catalogue loc.Catalogue, chunkStart, chunkLen int, chunkFrames [][]float32, reentrant bool, begin, stride int) (int, error) {

	var next atomic.Int32
	var processed atomic.Int32
	var wg sync.WaitGroup
	errs := make(chan error, len(pipelines))

	w, h, _ := src.Shape()

	for wi := 0; wi < len(pipelines); wi++ {
		wg.Add(1)
		go func(p *pipeline.Pipeline) {
			defer wg.Done()
			for {
				i := int(next.Add(1) - 1)
				if i >= chunkLen {
					return
				}

				absolute := chunkStart + i
				if (absolute-begin)%stride != 0 {
					continue
				}

				var frame []float32
				if reentrant {
					blocks, err := src.ReadBlock(frames.Offset{F: absolute}, frames.Extent{W: w, H: h, K: 1})
					if err != nil {
						select {
						case errs <- errors.Wrapf(err, "scheduler: read frame %d", absolute):
						default:
						}
						return
					}
					frame = blocks[0]
				} else {
					frame = chunkFrames[i]
				}

				set, err := p.Process(frame, params)
				if err != nil {
					select {
					case errs <- errors.Wrapf(err, "scheduler: process frame %d", absolute):
					default:
					}
					return
				}
				catalogue[absolute] = set
				processed.Add(1)
			}
		}(pipelines[wi])
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		return int(processed.Load()), err
	}
	return int(processed.Load()), nil
}
