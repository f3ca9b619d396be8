package kernel

import "testing"

func TestGenerateBank_PeriodAndSupport(t *testing.T) {
	bank := GenerateBank(8, 1)
	if len(bank) != 8 {
		t.Fatalf("len(bank) = %d, want 8", len(bank))
	}
	for i, k := range bank {
		if k.Left != -1 || k.Right != 2 {
			t.Errorf("bank[%d] support = [%d,%d], want [-1,2]", i, k.Left, k.Right)
		}
		if len(k.Weights) != 4 {
			t.Errorf("bank[%d] has %d weights, want 4", i, len(k.Weights))
		}
	}
}

func TestGenerateBank_PhaseZeroIsIdentity(t *testing.T) {
	// At integer phase (k=0, frac=0) the Catmull-Rom kernel should
	// reproduce the source sample exactly: weight 1 on the centre tap,
	// zero elsewhere.
	bank := GenerateBank(8, 1)
	k0 := bank[0]
	if k0.Weights[1] < 0.999 || k0.Weights[1] > 1.001 {
		t.Errorf("phase-0 centre weight = %v, want ~1", k0.Weights[1])
	}
	for i, w := range k0.Weights {
		if i == 1 {
			continue
		}
		if w < -0.001 || w > 0.001 {
			t.Errorf("phase-0 weight[%d] = %v, want ~0", i, w)
		}
	}
}

func TestApply1D_LengthMatchesExpandFormula(t *testing.T) {
	src := []float64{0, 1, 2, 3, 4}
	factor := 4
	bank := GenerateBank(factor, 1)
	outLen := factor*(len(src)-1) + 1
	out := Apply1D(src, bank, outLen)
	if len(out) != outLen {
		t.Fatalf("len(out) = %d, want %d", len(out), outLen)
	}
	// Every factor-th output sample should land back on a source sample.
	for i, v := range src {
		got := out[i*factor]
		if diff := got - v; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("out[%d] = %v, want %v (source sample %d)", i*factor, got, v, i)
		}
	}
}

func TestExpandBy2_LandsOnSourceSamples(t *testing.T) {
	src := []float64{1, 5, 2, 8}
	out := ExpandBy2(src)
	if len(out) != 2*len(src)-1 {
		t.Fatalf("len(out) = %d, want %d", len(out), 2*len(src)-1)
	}
	for i, v := range src {
		if out[2*i] != v {
			t.Errorf("out[%d] = %v, want %v", 2*i, out[2*i], v)
		}
	}
}

func TestReduceBy2_Inverts_ExpandBy2_OnGridPoints(t *testing.T) {
	src := []float64{1, 5, 2, 8, 3}
	expanded := ExpandBy2(src)
	reduced := ReduceBy2(expanded)
	if len(reduced) != len(src) {
		t.Fatalf("len(reduced) = %d, want %d", len(reduced), len(src))
	}
	for i := range src {
		if reduced[i] != src[i] {
			t.Errorf("reduced[%d] = %v, want %v", i, reduced[i], src[i])
		}
	}
}

func TestLCMAndGCD(t *testing.T) {
	if gcd(8, 12) != 4 {
		t.Errorf("gcd(8,12) = %d, want 4", gcd(8, 12))
	}
	if lcm(8, 1) != 8 {
		t.Errorf("lcm(8,1) = %d, want 8", lcm(8, 1))
	}
	if lcm(4, 6) != 12 {
		t.Errorf("lcm(4,6) = %d, want 12", lcm(4, 6))
	}
}
