package fftfilter

import (
	"image"
	"image/color"
	"math"
	"math/rand"
	"testing"
)

func TestFilter_PassthroughMaskPreservesFrame(t *testing.T) {
	w, h := 32, 32
	f, err := NewFilter(w, h)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	defer f.Close()

	mask := make([]float64, w*h)
	for i := range mask {
		mask[i] = 1
	}

	input := make([]float32, w*h)
	rng := rand.New(rand.NewSource(1))
	for i := range input {
		input[i] = float32(rng.Intn(1000))
	}
	output := make([]float32, w*h)
	f.ApplyFourierFilter(input, mask, output)

	for i := range input {
		if diff := float64(output[i] - input[i]); diff > 1e-3 || diff < -1e-3 {
			t.Fatalf("pixel %d: got %v, want %v (mask=1 must be identity)", i, output[i], input[i])
		}
	}
}

func TestFilter_PanicsOnShapeMismatch(t *testing.T) {
	f, err := NewFilter(8, 8)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("want panic on length mismatch (spec.md §9 design note b)")
		}
	}()
	f.ApplyFourierFilter(make([]float32, 4), make([]float64, 64), make([]float32, 64))
}

func TestWienerMask_PreservesAverageIntensity(t *testing.T) {
	w, h := 32, 32
	acc, err := NewPSAccumulator(w, h)
	if err != nil {
		t.Fatalf("NewPSAccumulator: %v", err)
	}

	rng := rand.New(rand.NewSource(2))
	frames := make([][]float32, 20)
	for i := range frames {
		frame := make([]float32, w*h)
		for j := range frame {
			frame[j] = 100 + float32(rng.NormFloat64()*5)
		}
		frames[i] = frame
		if err := acc.Add(frame); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	mask, err := acc.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	for _, v := range mask {
		if v < 0 || v > 1 {
			t.Fatalf("mask value %v out of [0,1]", v)
		}
	}
	// DC gain should be close to 1: a strong, low-frequency-dominated
	// signal's DC power massively exceeds the high-frequency noise floor.
	if mask[0] < 0.9 {
		t.Errorf("mask[0] (DC) = %v, want close to 1", mask[0])
	}

	f, err := NewFilter(w, h)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	out := make([]float32, w*h)
	f.ApplyFourierFilter(frames[0], mask, out)

	var wantAvg, gotAvg float64
	for i := range frames[0] {
		wantAvg += float64(frames[0][i])
		gotAvg += float64(out[i])
	}
	wantAvg /= float64(len(frames[0]))
	gotAvg /= float64(len(out))
	if math.Abs(wantAvg-gotAvg) > 1 {
		t.Errorf("average intensity not preserved: got %v, want ~%v", gotAvg, wantAvg)
	}
}

func TestNewPSAccumulator_RejectsSmallFrames(t *testing.T) {
	if _, err := NewPSAccumulator(16, 16); err == nil {
		t.Fatal("want ShapeMismatch for frames smaller than the noise-ring minimum")
	}
}

func TestLoadFilterImage_RejectsColor(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	_, err := LoadFilterImage(img, 8, 8)
	if err != ErrInvalidFilter {
		t.Fatalf("err = %v, want ErrInvalidFilter", err)
	}
}

func TestLoadFilterImage_ResamplesGray(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetGray(x, y, color.Gray{Y: 128})
		}
	}
	mask, err := LoadFilterImage(img, 8, 8)
	if err != nil {
		t.Fatalf("LoadFilterImage: %v", err)
	}
	if len(mask) != 64 {
		t.Fatalf("len(mask) = %d, want 64", len(mask))
	}
}
