package accum

import (
	"bytes"
	"image"
	"strings"
	"testing"

	"github.com/stormrecon/storm/internal/loc"
)

func TestAccumulate_SumsRepeatedDetections(t *testing.T) {
	cat := loc.NewCatalogue(2)
	cat[0].Add(loc.Localization{X: 5, Y: 5, Value: 10, Asymmetry: 1})
	cat[1].Add(loc.Localization{X: 5, Y: 5, Value: 20, Asymmetry: 0.9})
	cat[1].Add(loc.Localization{X: 1, Y: 1, Value: 3, Asymmetry: 1})

	acc := NewImage(8, 8)
	Accumulate(cat, acc)

	if got := acc.Data[5*8+5]; got != 30 {
		t.Errorf("acc[5][5] = %v, want 30", got)
	}
	if got := acc.Data[1*8+1]; got != 3 {
		t.Errorf("acc[1][1] = %v, want 3", got)
	}
}

func TestAccumulate_OutOfBoundsIgnored(t *testing.T) {
	cat := loc.NewCatalogue(1)
	cat[0].Add(loc.Localization{X: 100, Y: 100, Value: 99, Asymmetry: 1})

	acc := NewImage(8, 8)
	Accumulate(cat, acc)

	for _, v := range acc.Data {
		if v != 0 {
			t.Fatalf("out-of-bounds localization was splatted: acc has nonzero value %v", v)
		}
	}
}

func TestRender_MinLimMaxLimOrdering(t *testing.T) {
	acc := NewImage(4, 4)
	for i := range acc.Data {
		acc.Data[i] = float64(i)
	}
	img := acc.Render()
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 4 {
		t.Fatalf("rendered image has wrong bounds: %v", img.Bounds())
	}
	// Largest values should clip near white, smallest near black.
	if img.GrayAt(0, 0).Y > img.GrayAt(3, 3).Y {
		t.Errorf("expected increasing brightness with increasing accumulator value")
	}
}

func TestRender_ConstantImageDoesNotDivideByZero(t *testing.T) {
	acc := NewImage(4, 4)
	for i := range acc.Data {
		acc.Data[i] = 42
	}
	img := acc.Render()
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if img.GrayAt(x, y).Y != 0 {
				t.Fatalf("constant accumulator should render flat, got %d at (%d,%d)", img.GrayAt(x, y).Y, x, y)
			}
		}
	}
}

func TestWriteCatalogue_HeaderAndRowFormat(t *testing.T) {
	cat := loc.NewCatalogue(2)
	cat[0].Add(loc.Localization{X: 16, Y: 24, Value: 123.456, Asymmetry: 0.987})
	cat[1].Add(loc.Localization{X: 8, Y: 8, Value: 50, Asymmetry: 1})

	var buf bytes.Buffer
	if err := writeCatalogue(&buf, cat, 32, 32, 4); err != nil {
		t.Fatalf("writeCatalogue: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3 (header + 2 rows)", len(lines))
	}
	if lines[0] != "32 32 2" {
		t.Errorf("header = %q, want %q", lines[0], "32 32 2")
	}
	if lines[1] != "4.000 6.000 0 123.5 0.987" {
		t.Errorf("row 0 = %q, want %q", lines[1], "4.000 6.000 0 123.5 0.987")
	}
	if lines[2] != "2.000 2.000 1 50.0 1.000" {
		t.Errorf("row 1 = %q, want %q", lines[2], "2.000 2.000 1 50.0 1.000")
	}
}

func TestWriteCatalogue_HeaderUsesFrameCountNotLocalizationTotal(t *testing.T) {
	cat := loc.NewCatalogue(3)
	cat[0].Add(loc.Localization{X: 4, Y: 4, Value: 10, Asymmetry: 1})
	cat[0].Add(loc.Localization{X: 8, Y: 8, Value: 20, Asymmetry: 1})
	cat[1].Add(loc.Localization{X: 2, Y: 2, Value: 5, Asymmetry: 1})
	// cat[2] has no localizations at all.

	var buf bytes.Buffer
	if err := writeCatalogue(&buf, cat, 16, 16, 1); err != nil {
		t.Fatalf("writeCatalogue: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if cat.Total() == len(cat) {
		t.Fatalf("fixture invalid: Total() %d must differ from len(cat) %d to catch this bug", cat.Total(), len(cat))
	}
	if lines[0] != "16 16 3" {
		t.Errorf("header = %q, want %q (frame count, not localization total %d)", lines[0], "16 16 3", cat.Total())
	}
	if len(lines) != 1+3 {
		t.Fatalf("got %d lines, want 4 (header + 3 rows)", len(lines))
	}
}

func TestWriteCatalogue_EmptyCatalogueStillWritesHeader(t *testing.T) {
	cat := loc.NewCatalogue(0)
	var buf bytes.Buffer
	if err := writeCatalogue(&buf, cat, 10, 10, 2); err != nil {
		t.Fatalf("writeCatalogue: %v", err)
	}
	if got := buf.String(); got != "10 10 0\n" {
		t.Errorf("got %q, want %q", got, "10 10 0\n")
	}
}

func TestPercentile_Monotone(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	lo := percentile(sorted, 0)
	hi := percentile(sorted, 99.6)
	if lo != 1 {
		t.Errorf("0th percentile = %v, want 1", lo)
	}
	if hi < sorted[len(sorted)-2] || hi > sorted[len(sorted)-1] {
		t.Errorf("99.6th percentile = %v, want near the top of the range", hi)
	}
}

func TestWriteImage_UnsupportedExtension(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	err := WriteImage("/tmp/storm_test_output.bmp", img)
	if err == nil {
		t.Fatal("want error for unsupported extension")
	}
}
