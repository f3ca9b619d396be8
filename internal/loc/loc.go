// Package loc defines the Localization record and the ordered, deduplicated
// set and per-stack catalogue types built from it. These are the data model
// shared by the detector, the per-frame pipeline, the scheduler and the
// accumulator, kept in their own package (rather than the top-level storm
// package) so that all of those internal packages can depend on them without
// an import cycle through the public API.
package loc

import "sort"

// Localization is one detected emitter on the up-sampled grid.
//
// (X, Y) are coordinates on the up-sampled grid (W' = factor*(W-1)+1 by
// H' = factor*(H-1)+1). Value is the filtered-image intensity at detection.
// Asymmetry is the ratio of the smaller to the larger Hessian eigenvalue at
// the detection (1 = perfectly symmetric spot, near 0 = elongated/artefact).
type Localization struct {
	X         uint32
	Y         uint32
	Value     float32
	Asymmetry float32
}

// key identifies a Localization for set-deduplication purposes: two
// Localizations with the same (X, Y, Value) are the same detection, even if
// they were pushed by different overlapping ROIs.
type key struct {
	x, y uint32
	v    float32
}

// Set is a Frame Localization Set: Localizations ordered by (Y, X)
// lexicographically, with no two sharing the same (X, Y, Value).
type Set struct {
	items map[key]Localization
}

// NewSet returns an empty Frame Localization Set.
func NewSet() *Set {
	return &Set{items: make(map[key]Localization)}
}

// Add inserts l into the set, absorbing duplicates produced by overlapping
// ROIs (same identity (X, Y, Value) is a no-op).
func (s *Set) Add(l Localization) {
	s.items[key{l.X, l.Y, l.Value}] = l
}

// Len returns the number of distinct Localizations in the set.
func (s *Set) Len() int {
	return len(s.items)
}

// Sorted returns the set's Localizations ordered by (Y, X) lexicographically.
func (s *Set) Sorted() []Localization {
	out := make([]Localization, 0, len(s.items))
	for _, l := range s.items {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// Catalogue is the sequence, indexed by frame, of Frame Localization Sets.
// len(Catalogue) equals the stack's frame count. NewCatalogue fills every
// slot with an empty set; a Catalogue returned by scheduler.Run leaves the
// slots of frames it did not process nil.
type Catalogue []*Set

// NewCatalogue allocates a Catalogue with n empty slots.
func NewCatalogue(n int) Catalogue {
	c := make(Catalogue, n)
	for i := range c {
		c[i] = NewSet()
	}
	return c
}

// Total returns the number of Localizations across all frames.
func (c Catalogue) Total() int {
	n := 0
	for _, s := range c {
		if s != nil {
			n += s.Len()
		}
	}
	return n
}
