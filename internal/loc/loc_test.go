package loc

import "testing"

func TestSet_DedupesByIdentity(t *testing.T) {
	s := NewSet()
	s.Add(Localization{X: 10, Y: 20, Value: 5, Asymmetry: 1})
	s.Add(Localization{X: 10, Y: 20, Value: 5, Asymmetry: 0.5}) // same (x,y,value): absorbed
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
	s.Add(Localization{X: 10, Y: 20, Value: 6, Asymmetry: 1}) // different value: distinct
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
}

func TestSet_SortedLexByYThenX(t *testing.T) {
	s := NewSet()
	s.Add(Localization{X: 5, Y: 1})
	s.Add(Localization{X: 1, Y: 1})
	s.Add(Localization{X: 3, Y: 0})
	sorted := s.Sorted()
	want := [][2]uint32{{3, 0}, {1, 1}, {5, 1}}
	if len(sorted) != len(want) {
		t.Fatalf("len = %d, want %d", len(sorted), len(want))
	}
	for i, l := range sorted {
		if l.X != want[i][0] || l.Y != want[i][1] {
			t.Errorf("sorted[%d] = (%d,%d), want (%d,%d)", i, l.X, l.Y, want[i][0], want[i][1])
		}
	}
}

func TestCatalogue_SizeAndEmptySlots(t *testing.T) {
	c := NewCatalogue(5)
	if len(c) != 5 {
		t.Fatalf("len = %d, want 5", len(c))
	}
	for i, s := range c {
		if s == nil {
			t.Fatalf("slot %d is nil, want empty set", i)
		}
		if s.Len() != 0 {
			t.Errorf("slot %d: Len() = %d, want 0", i, s.Len())
		}
	}
	c[2].Add(Localization{X: 1, Y: 1, Value: 1})
	if c.Total() != 1 {
		t.Errorf("Total() = %d, want 1", c.Total())
	}
}
