// Package storm reconstructs a super-resolution fluorescence microscopy
// image from a time-series stack of diffraction-limited frames (the dSTORM /
// single-molecule-localization problem).
//
// Each input frame contains sparse, randomly blinking point emitters whose
// true positions lie below the optical diffraction limit. By localizing each
// blink to sub-pixel precision across thousands of frames and accumulating
// the localizations on an up-sampled grid, Run produces a final image with
// roughly an order-of-magnitude better resolution than any single frame.
//
// The package does not model the physics of blinking, does not track
// emitters across frames, does not deconvolve overlapping spots, and does
// not estimate localization precision via a fitting routine: it reports the
// location and intensity of each detected local maximum on the up-sampled
// grid together with a shape-asymmetry figure of merit.
//
// Basic usage:
//
//	src, err := frames.Open("stack.tif")
//	cat, acc, err := storm.Run(ctx, src, storm.DefaultOptions(), nil)
package storm
