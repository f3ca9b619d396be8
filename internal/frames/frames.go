// Package frames implements the uniform random-access reader (component C1)
// over the three frame-stack container formats the pipeline accepts: TIFF
// multi-page, HDF5 (dataset "/data"), and Andor SIF. Exactly one concrete
// backend is selected by Open based on the path's extension and hidden
// behind the Source interface — the polymorphic-reader pattern of §9 of the
// spec, done with an interface rather than a tagged union or a class
// hierarchy, mirroring the way the teacher pack dispatches container formats
// (webp.Decode picks VP8 vs. VP8L vs. VP8X off the RIFF chunk tag; periph
// picks a host driver off the running platform) behind one call.
package frames

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Sentinel errors per the taxonomy of spec.md §7. Wrapped with
// github.com/pkg/errors at call boundaries so cmd/storm's --verbose output
// can show the originating backend and path.
var (
	ErrUnsupportedFormat = errors.New("frames: unsupported format")
	ErrIO                = errors.New("frames: io error")
	ErrDecode            = errors.New("frames: decode error")
	ErrUnsupported       = errors.New("frames: unsupported operation")
	ErrShapeMismatch     = errors.New("frames: shape mismatch")
)

// Offset addresses a sub-volume of the stack: (x, y, f0).
type Offset struct {
	X, Y, F int
}

// Extent sizes a sub-volume read: width, height, frame count.
type Extent struct {
	W, H, K int
}

// Source is the uniform random-access reader over a frame stack. A single
// Source is not safe for concurrent reads except where a concrete backend
// documents otherwise (Hdf5Source; see scheduler.go and spec.md §4.9).
type Source interface {
	// Shape returns the stack's width, height and frame count. Constant time.
	Shape() (w, h, n int)

	// ReadBlock materializes extent.K consecutive frames starting at
	// offset.F into a caller-owned buffer, one []float32 of length
	// extent.W*extent.H per frame, row-major. Narrower on-disk pixel
	// encodings are promoted to float32.
	ReadBlock(offset Offset, extent Extent) ([][]float32, error)

	// Close releases the backend's file handles and any decoder state.
	Close() error
}

// Reentrant reports whether a Source's ReadBlock may be called concurrently
// by multiple goroutines without external synchronization. TIFF and SIF
// backends hold non-thread-safe decoder state and return false; the
// scheduler (§4.9) falls back to single-threaded reads for those and hands
// materialized frames to the worker pool. HDF5 hyperslab reads are
// effectively reentrant and return true.
type Reentrant interface {
	ReentrantRead() bool
}

// Open inspects path's extension to choose a backend.
func Open(path string) (Source, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".tif", ".tiff":
		return openTiff(path)
	case ".h5", ".hdf5":
		return openHdf5(path)
	case ".sif":
		return openSif(path)
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "extension %q", ext)
	}
}
