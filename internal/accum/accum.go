// Package accum implements the accumulator image and stack writers
// (component C10): splatting a Catalogue onto the up-sampled grid,
// percentile-clipped display rendering, and the image and text catalogue
// output formats.
package accum

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/tiff"

	"github.com/stormrecon/storm/internal/loc"
)

// ErrUnsupportedFormat is returned by WriteImage for an extension with no
// registered encoder.
var ErrUnsupportedFormat = errors.New("accum: unsupported image format")

// Image is the W'×H' f64 Accumulator Image: element (x,y) is the sum of
// Value over every catalogue Localization landing at (x,y), so repeated
// detections at the same sub-pixel cell reinforce (spec.md §3 data model).
type Image struct {
	W, H int
	Data []float64 // row-major, length W*H
}

// NewImage allocates a zeroed W×H accumulator.
func NewImage(w, h int) *Image {
	return &Image{W: w, H: h, Data: make([]float64, w*h)}
}

// Accumulate splats every localization in cat onto acc, summing Value at
// each (X, Y) cell.
func Accumulate(cat loc.Catalogue, acc *Image) {
	for _, set := range cat {
		if set == nil {
			continue
		}
		for _, l := range set.Sorted() {
			x, y := int(l.X), int(l.Y)
			if x < 0 || x >= acc.W || y < 0 || y >= acc.H {
				continue
			}
			acc.Data[y*acc.W+x] += float64(l.Value)
		}
	}
}

// clipLowPercentile and clipHighPercentile are the fixed percentile bounds
// spec.md §4.10 step 3 names: the 0th percentile (the data minimum) and the
// 99.6th percentile, linearly rescaled to [0, 255] with clipping above.
const (
	clipLowPercentile  = 0.0
	clipHighPercentile = 99.6
)

// Render rescales acc's pixel values into an 8-bit grayscale image using a
// percentile clip: the 0th percentile (minlim) and the 99.6th percentile
// (maxlim) of all pixel values become black and white respectively, with
// values above maxlim clipped rather than wrapped.
func (acc *Image) Render() *image.Gray {
	sorted := make([]float64, len(acc.Data))
	copy(sorted, acc.Data)
	sort.Float64s(sorted)

	minlim := percentile(sorted, clipLowPercentile)
	maxlim := percentile(sorted, clipHighPercentile)

	out := image.NewGray(image.Rect(0, 0, acc.W, acc.H))
	span := maxlim - minlim
	for y := 0; y < acc.H; y++ {
		for x := 0; x < acc.W; x++ {
			v := acc.Data[y*acc.W+x]
			var scaled float64
			if span > 0 {
				scaled = (v - minlim) / span * 255
			}
			if scaled < 0 {
				scaled = 0
			}
			if scaled > 255 {
				scaled = 255
			}
			out.SetGray(x, y, color.Gray{Y: uint8(scaled + 0.5)})
		}
	}
	return out
}

// percentile returns the value at the given percentile (0-100) of a
// pre-sorted ascending slice, interpolating linearly between the two
// samples either side of rank pct/100*(len-1).
func percentile(sorted []float64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := pct / 100 * float64(len(sorted)-1)
	lo := int(rank)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// WriteImage encodes img to path, dispatching on the file extension the
// same way frames.Open dispatches readers: .png, .jpg/.jpeg, .tif/.tiff.
func WriteImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "accum: create %s", path)
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".png":
		err = png.Encode(f, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 95})
	case ".tif", ".tiff":
		err = tiff.Encode(f, img, nil)
	default:
		return errors.Wrapf(ErrUnsupportedFormat, "extension %q", ext)
	}
	if err != nil {
		return errors.Wrapf(err, "accum: encode %s", path)
	}
	return nil
}

// WriteCatalogue writes cat as the text catalogue format of spec.md §4.10
// step 4: first line "W H N" where N is the stack's frame count (len(cat)),
// then one line per localization "x/factor y/factor frame value asymmetry"
// ordered by frame, then by the Set's own (Y, X) order within a frame.
func WriteCatalogue(path string, cat loc.Catalogue, w, h, factor int) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "accum: create %s", path)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := writeCatalogue(bw, cat, w, h, factor); err != nil {
		return err
	}
	return bw.Flush()
}

func writeCatalogue(w io.Writer, cat loc.Catalogue, width, height, factor int) error {
	if _, err := fmt.Fprintf(w, "%d %d %d\n", width, height, len(cat)); err != nil {
		return errors.Wrap(err, "accum: write catalogue header")
	}
	for frameIdx, set := range cat {
		if set == nil {
			continue
		}
		for _, l := range set.Sorted() {
			x := float64(l.X) / float64(factor)
			y := float64(l.Y) / float64(factor)
			if _, err := fmt.Fprintf(w, "%.3f %.3f %d %.1f %.3f\n", x, y, frameIdx, l.Value, l.Asymmetry); err != nil {
				return errors.Wrap(err, "accum: write catalogue row")
			}
		}
	}
	return nil
}
