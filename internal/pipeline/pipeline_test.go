package pipeline

import (
	"math"
	"testing"
)

func gaussianFrame(w, h int, cx, cy, amp, sigma float64) []float32 {
	out := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx := float64(x) - cx
			dy := float64(y) - cy
			out[y*w+x] = float32(amp * math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma)))
		}
	}
	return out
}

func passthroughMask(w, h int) []float64 {
	m := make([]float64, w*h)
	for i := range m {
		m[i] = 1
	}
	return m
}

func TestProcess_FindsIsolatedSpot(t *testing.T) {
	w, h := 48, 48
	frame := gaussianFrame(w, h, 24, 24, 2000, 3)

	p, err := New(w, h)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	params := Params{
		Mask:      passthroughMask(w, h),
		Factor:    4,
		Threshold: 300,
		ROILen:    9,
	}
	set, err := p.Process(frame, params)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if set.Len() == 0 {
		t.Fatal("want at least one localization for an isolated bright spot")
	}
	for _, l := range set.Sorted() {
		ox := int(l.X) / params.Factor
		oy := int(l.Y) / params.Factor
		if math.Abs(float64(ox-24)) > 3 || math.Abs(float64(oy-24)) > 3 {
			t.Errorf("localization (%d,%d) -> original (%d,%d) too far from expected centre (24,24)", l.X, l.Y, ox, oy)
		}
	}
}

func TestProcess_ShapeMismatchRejected(t *testing.T) {
	w, h := 32, 32
	p, err := New(w, h)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	params := Params{Mask: passthroughMask(w, h), Factor: 4, Threshold: 100, ROILen: 9}
	_, err = p.Process(make([]float32, w*h-1), params)
	if err == nil {
		t.Fatal("want error on shape mismatch")
	}
}

func TestProcess_EmptyFrameYieldsEmptySet(t *testing.T) {
	w, h := 32, 32
	frame := make([]float32, w*h)

	p, err := New(w, h)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	params := Params{Mask: passthroughMask(w, h), Factor: 4, Threshold: 100, ROILen: 9}
	set, err := p.Process(frame, params)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if set.Len() != 0 {
		t.Errorf("got %d localizations for a blank frame, want 0", set.Len())
	}
}

func TestProcess_DeterministicAcrossRepeatedCalls(t *testing.T) {
	w, h := 48, 48
	frame := gaussianFrame(w, h, 20, 28, 1500, 2.5)

	p, err := New(w, h)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	params := Params{Mask: passthroughMask(w, h), Factor: 4, Threshold: 200, ROILen: 9}

	first, err := p.Process(frame, params)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	second, err := p.Process(frame, params)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if first.Len() != second.Len() {
		t.Fatalf("non-deterministic result: %d vs %d localizations", first.Len(), second.Len())
	}
	a, b := first.Sorted(), second.Sorted()
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("localization %d differs across repeated calls: %+v vs %+v", i, a[i], b[i])
		}
	}
}
