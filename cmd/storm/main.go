// Command storm reconstructs a super-resolution localization image and
// coordinate catalogue from a dSTORM frame stack.
//
// Usage:
//
//	storm [OPTIONS] INFILE [OUTFILE]
package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	fcolor "github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	_ "golang.org/x/image/tiff"

	"github.com/stormrecon/storm"
	"github.com/stormrecon/storm/internal/accum"
	"github.com/stormrecon/storm/internal/fftfilter"
	"github.com/stormrecon/storm/internal/frames"
)

// VERSION is injected by build flags.
var VERSION = "SELFBUILD"

func main() {
	app := cli.NewApp()
	app.Name = "storm"
	app.Usage = "reconstruct a super-resolution image from a dSTORM frame stack"
	app.Version = VERSION
	// urfave/cli's default VersionFlag claims shorthand "v", colliding with
	// spec.md §6's --verbose/-v. Declare our own --version/-V instead so
	// both shorthands match the spec exactly.
	app.HideVersion = true
	app.ArgsUsage = "INFILE [OUTFILE]"
	app.Flags = []cli.Flag{
		cli.IntFlag{Name: "factor, g", Value: 8, Usage: "up-sampling factor (power of two)"},
		cli.Float64Flag{Name: "threshold, t", Value: 250, Usage: "minimum filtered intensity for a maximum candidate"},
		cli.IntFlag{Name: "roi-len, m", Value: 9, Usage: "ROI edge length around each candidate (odd)"},
		cli.StringFlag{Name: "filter, f", Usage: "filter image path; loaded if it exists, else built and saved here"},
		cli.StringFlag{Name: "coordsfile, c", Usage: "text catalogue output path"},
		cli.StringFlag{Name: "frames, F", Usage: "frame subset as [start]:[end][:stride]; negative counts from end"},
		cli.BoolFlag{Name: "verbose, v", Usage: "progress detail on stderr"},
		cli.BoolFlag{Name: "version, V", Usage: "print the version and exit"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		if _, ok := errors.Cause(err).(usageError); ok {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(-1)
		}
		fmt.Fprintln(os.Stderr, fcolor.RedString("storm: %v", err))
		os.Exit(1)
	}
}

// usageError marks an argument-parsing problem, mapped to exit code -1
// rather than 1 (spec.md §6 exit codes).
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func run(c *cli.Context) error {
	if c.Bool("version") {
		fmt.Println(c.App.Version)
		return nil
	}
	if c.NArg() < 1 {
		return usageError{"storm: missing INFILE"}
	}
	inPath := c.Args().Get(0)
	outPath := c.Args().Get(1)
	if outPath == "" {
		outPath = replaceExt(inPath, ".png")
	}

	factor := c.Int("factor")
	if factor < 1 || factor&(factor-1) != 0 {
		return usageError{fmt.Sprintf("storm: --factor %d must be a power of two >= 1", factor)}
	}
	roiLen := c.Int("roi-len")
	if roiLen%2 == 0 {
		return usageError{fmt.Sprintf("storm: --roi-len %d must be odd", roiLen)}
	}

	verbose := c.Bool("verbose")

	coordsPath := c.String("coordsfile")
	if coordsPath == "" {
		coordsPath = replaceExt(inPath, ".txt")
	}
	filterPath := c.String("filter")
	if filterPath == "" {
		filterPath = defaultFilterPath(inPath)
	}

	src, err := frames.Open(inPath)
	if err != nil {
		return errors.Wrap(err, "storm: open input")
	}
	defer src.Close()

	w, h, n := src.Shape()
	beg, end, stride, err := parseFrameRange(c.String("frames"), n)
	if err != nil {
		return err
	}

	opts := storm.DefaultOptions()
	opts.Factor = factor
	opts.Threshold = c.Float64("threshold")
	opts.ROILen = roiLen
	opts.Begin, opts.End, opts.Stride = beg, end, stride

	img, err := loadFilterImage(filterPath, w, h)
	if err != nil {
		return errors.Wrap(err, "storm: load filter image")
	}
	if img == nil {
		img, err = buildFilterImage(src, w, h)
		if err != nil {
			return errors.Wrap(err, "storm: build filter from data")
		}
		if err := accum.WriteImage(filterPath, img); err != nil && verbose {
			log.Printf("storm: warning: could not save derived filter to %s: %v", filterPath, err)
		}
	}
	opts.FilterImage = img

	if verbose {
		log.Printf("storm: %dx%d x %d frames, factor=%d threshold=%v roi-len=%d",
			w, h, n, opts.Factor, opts.Threshold, opts.ROILen)
	}

	progressFn := func(p storm.Progress) {
		if verbose {
			fmt.Fprintf(os.Stderr, "\r%s", fcolor.CyanString("progress: %d/%d", p.Done, p.Total))
		}
	}

	cat, acc, err := storm.Run(context.Background(), src, opts, progressFn)
	if err != nil {
		if verbose {
			fmt.Fprintln(os.Stderr)
		}
		return errors.Wrap(err, "storm: run")
	}
	if verbose {
		fmt.Fprintln(os.Stderr)
	}

	if err := accum.WriteCatalogue(coordsPath, cat, w, h, opts.Factor); err != nil {
		return errors.Wrap(err, "storm: write catalogue")
	}
	if err := accum.WriteImage(outPath, acc.Render()); err != nil {
		return errors.Wrap(err, "storm: write image")
	}

	if verbose {
		log.Printf("storm: wrote %s and %s (%d localizations)", outPath, coordsPath, cat.Total())
	}
	return nil
}

// loadFilterImage attempts to load filterPath as a grayscale filter mask
// resampled to w×h. A missing file, or one that fails UnsupportedFormat
// (non-grayscale), returns a nil image so the caller falls back to a
// data-derived mask per spec.md §7 (S6).
func loadFilterImage(path string, w, h int) (image.Image, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open filter %s", path)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decode filter %s", path)
	}

	if _, err := fftfilter.LoadFilterImage(img, w, h); errors.Is(err, fftfilter.ErrInvalidFilter) {
		return nil, nil
	}
	return img, nil
}

// buildFilterImage streams src once to accumulate a Wiener mask from its
// own power spectrum and renders it as a 16-bit grayscale image in [0,1]
// so it can both be handed to storm.Run as opts.FilterImage and written
// back to the --filter path (spec.md §6, §7 local-recovery policy).
func buildFilterImage(src frames.Source, w, h int) (image.Image, error) {
	psAcc, err := fftfilter.NewPSAccumulator(w, h)
	if err != nil {
		return nil, errors.Wrap(err, "new power spectrum accumulator")
	}
	_, _, n := src.Shape()
	const chunk = 10
	for start := 0; start < n; start += chunk {
		k := chunk
		if start+k > n {
			k = n - start
		}
		block, err := src.ReadBlock(frames.Offset{F: start}, frames.Extent{W: w, H: h, K: k})
		if err != nil {
			return nil, errors.Wrapf(err, "read frames at %d", start)
		}
		for _, frame := range block {
			if err := psAcc.Add(frame); err != nil {
				return nil, errors.Wrap(err, "accumulate power spectrum")
			}
		}
	}
	mask, err := psAcc.Finalize()
	if err != nil {
		return nil, errors.Wrap(err, "finalize wiener mask")
	}

	img := image.NewGray16(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := mask[y*w+x]
			if v < 0 {
				v = 0
			}
			if v > 1 {
				v = 1
			}
			img.SetGray16(x, y, color.Gray16{Y: uint16(v * 65535)})
		}
	}
	return img, nil
}

func replaceExt(path, ext string) string {
	trimmed := strings.TrimSuffix(path, filepath.Ext(path))
	return trimmed + ext
}

func defaultFilterPath(inPath string) string {
	dir := filepath.Dir(inPath)
	base := strings.TrimSuffix(filepath.Base(inPath), filepath.Ext(inPath))
	return filepath.Join(dir, base+"_filter.tif")
}

// parseFrameRange parses the --frames [start]:[end][:stride] syntax,
// resolving negative start/end as counting from the end (spec.md §6).
func parseFrameRange(spec string, n int) (beg, end, stride int, err error) {
	beg, end, stride = 0, n, 1
	if spec == "" {
		return beg, end, stride, nil
	}
	parts := strings.Split(spec, ":")
	if len(parts) > 3 {
		return 0, 0, 0, usageError{fmt.Sprintf("storm: invalid --frames %q", spec)}
	}
	parse := func(s string, def int) (int, error) {
		if s == "" {
			return def, nil
		}
		v, convErr := strconv.Atoi(s)
		if convErr != nil {
			return 0, usageError{fmt.Sprintf("storm: invalid --frames %q", spec)}
		}
		if v < 0 {
			v += n
		}
		return v, nil
	}
	if len(parts) >= 1 {
		if beg, err = parse(parts[0], 0); err != nil {
			return 0, 0, 0, err
		}
	}
	if len(parts) >= 2 {
		if end, err = parse(parts[1], n); err != nil {
			return 0, 0, 0, err
		}
	}
	if len(parts) == 3 && parts[2] != "" {
		v, convErr := strconv.Atoi(parts[2])
		if convErr != nil {
			return 0, 0, 0, usageError{fmt.Sprintf("storm: invalid --frames %q", spec)}
		}
		stride = v
	}
	if stride < 1 {
		stride = 1
	}
	if beg < 0 {
		beg = 0
	}
	if end > n {
		end = n
	}
	if end < beg {
		end = beg
	}
	return beg, end, stride, nil
}
