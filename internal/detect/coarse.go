package detect

// CoarseMaxima scans the filtered (background-subtracted) frame (w×h,
// row-major) and returns the coordinates that are strict 8-neighbour local
// maxima exceeding threshold (component C5). Tie-breaking is strict
// greater-than against all eight neighbours: a plateau (any neighbour
// equal to the centre) yields no detection there, per spec.md §4.5.
//
// Border pixels (x==0, x==w-1, y==0, y==h-1) have fewer than eight
// neighbours and are never candidates — the ROI refiner needs room around
// a candidate anyway (spec.md §4.6), so excluding the border here costs
// nothing.
func CoarseMaxima(filtered []float64, w, h int, threshold float64) []Point {
	var out []Point
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			v := filtered[y*w+x]
			if v <= threshold {
				continue
			}
			if isStrictLocalMax(filtered, w, x, y, v) {
				out = append(out, Point{X: x, Y: y})
			}
		}
	}
	return out
}

func isStrictLocalMax(filtered []float64, w, x, y int, v float64) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if filtered[(y+dy)*w+(x+dx)] >= v {
				return false
			}
		}
	}
	return true
}
