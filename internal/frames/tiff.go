package frames

import (
	"image"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/image/tiff"
)

// TiffSource reads a multi-page TIFF as a frame stack. golang.org/x/image/tiff
// decodes one page at a time into an image.Image; TiffSource eagerly decodes
// all pages on Open since the package exposes no page-seeking API, then
// serves ReadBlock out of that in-memory cache. This keeps the Source
// interface uniform with the HDF5 and SIF backends, at the cost of holding
// the whole (decoded, float32) stack in memory — acceptable for the typical
// dSTORM stack sizes this pipeline targets (hundreds of MB, not many GB).
type TiffSource struct {
	w, h, n int
	frames  [][]float32
}

func openTiff(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(ErrIO, "open %s: %v", path, err)
	}
	defer f.Close()

	var pages []image.Image
	for {
		img, err := tiff.Decode(f)
		if err != nil {
			break
		}
		pages = append(pages, img)
	}
	if len(pages) == 0 {
		return nil, errors.Wrapf(ErrDecode, "%s: no decodable TIFF pages", path)
	}

	w := pages[0].Bounds().Dx()
	h := pages[0].Bounds().Dy()
	out := make([][]float32, len(pages))
	for i, img := range pages {
		if img.Bounds().Dx() != w || img.Bounds().Dy() != h {
			return nil, errors.Wrapf(ErrShapeMismatch, "%s: page %d has shape %dx%d, want %dx%d",
				path, i, img.Bounds().Dx(), img.Bounds().Dy(), w, h)
		}
		out[i] = toFloat32Plane(img, w, h)
	}

	return &TiffSource{w: w, h: h, n: len(pages), frames: out}, nil
}

// toFloat32Plane promotes an arbitrary image.Image (typically Gray16 for
// scientific TIFFs, but Gray and NRGBA are handled too) to a row-major
// float32 plane, taking the luminance channel for color inputs.
func toFloat32Plane(img image.Image, w, h int) []float32 {
	out := make([]float32, w*h)
	b := img.Bounds()
	switch px := img.(type) {
	case *image.Gray16:
		for y := 0; y < h; y++ {
			row := px.Pix[(y)*px.Stride:]
			for x := 0; x < w; x++ {
				v := uint16(row[2*x])<<8 | uint16(row[2*x+1])
				out[y*w+x] = float32(v)
			}
		}
	case *image.Gray:
		for y := 0; y < h; y++ {
			row := px.Pix[y*px.Stride:]
			for x := 0; x < w; x++ {
				out[y*w+x] = float32(row[x])
			}
		}
	default:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				lum := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)) / 257
				out[y*w+x] = float32(lum)
			}
		}
	}
	return out
}

func (s *TiffSource) Shape() (int, int, int) { return s.w, s.h, s.n }

func (s *TiffSource) ReadBlock(offset Offset, extent Extent) ([][]float32, error) {
	if extent.W != s.w || extent.H != s.h {
		return nil, errors.Wrapf(ErrUnsupported, "TIFF requires a full-frame extent (%dx%d), got %dx%d",
			s.w, s.h, extent.W, extent.H)
	}
	if offset.F < 0 || offset.F+extent.K > s.n {
		return nil, errors.Wrapf(ErrIO, "frame range [%d,%d) out of bounds [0,%d)", offset.F, offset.F+extent.K, s.n)
	}
	out := make([][]float32, extent.K)
	copy(out, s.frames[offset.F:offset.F+extent.K])
	return out, nil
}

func (s *TiffSource) Close() error { return nil }

// ReentrantRead reports false: per spec.md §4.9 the TIFF backend is treated
// as owning non-thread-safe decoder state, so the scheduler always routes
// TIFF reads through its single-threaded chunk fetch even though this
// particular implementation's ReadBlock is, incidentally, just a slice copy.
func (s *TiffSource) ReentrantRead() bool { return false }
