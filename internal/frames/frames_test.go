package frames

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"
)

func writeTestTiff(t *testing.T, path string, w, h, n int) {
	t.Helper()
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		img := image.NewGray16(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.SetGray16(x, y, color.Gray16{Y: uint16((x + y + i) % 65536)})
			}
		}
		if err := tiff.Encode(&buf, img, nil); err != nil {
			t.Fatalf("encode page %d: %v", i, err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestOpen_UnsupportedExtension(t *testing.T) {
	_, err := Open("foo.bar")
	if err == nil {
		t.Fatal("want error for unsupported extension")
	}
}

func TestTiff_ShapeAndReadBlock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stack.tif")
	writeTestTiff(t, path, 8, 6, 3)

	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	w, h, n := src.Shape()
	if w != 8 || h != 6 || n != 3 {
		t.Fatalf("Shape() = (%d,%d,%d), want (8,6,3)", w, h, n)
	}

	block, err := src.ReadBlock(Offset{F: 1}, Extent{W: 8, H: 6, K: 2})
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if len(block) != 2 {
		t.Fatalf("len(block) = %d, want 2", len(block))
	}
	for _, plane := range block {
		if len(plane) != 8*6 {
			t.Fatalf("len(plane) = %d, want %d", len(plane), 8*6)
		}
	}

	if r, ok := src.(Reentrant); !ok || r.ReentrantRead() {
		t.Fatalf("TIFF backend must report non-reentrant per spec.md §4.9")
	}
}

func TestTiff_PartialFrameExtentRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stack.tif")
	writeTestTiff(t, path, 8, 6, 1)

	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	_, err = src.ReadBlock(Offset{}, Extent{W: 4, H: 3, K: 1})
	if err == nil {
		t.Fatal("want error for partial-frame extent on TIFF backend")
	}
}
