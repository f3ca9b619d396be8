// Package detect implements the two-stage sub-pixel maximum detector and
// spot asymmetry scorer: the Coarse Maxima Detector (component C5), the ROI
// Refiner (component C6), and the Asymmetry Scorer (component C7).
package detect

import "github.com/pkg/errors"

// ErrShapeMismatch is returned when a caller-supplied buffer's length
// doesn't match the declared frame shape.
var ErrShapeMismatch = errors.New("detect: shape mismatch")

// Params collects the user-tunable parameters shared by the coarse
// detector and the ROI refiner (spec.md §6 CLI options table).
type Params struct {
	Factor    int     // up-sampling factor (must be a power of two, spec.md §6)
	Threshold float64 // minimum filtered intensity for a maximum candidate
	ROILen    int     // odd ROI edge length around each candidate, default 9
}

// Point is an integer coordinate on the original (non-up-sampled) frame.
type Point struct {
	X, Y int
}
