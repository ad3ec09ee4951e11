package numus_test

import (
	"math"
	"testing"

	"github.com/tsb/numus"
)

func TestEnergyParams(t *testing.T) {
	m := numus.DefaultEnergyMap
	lo, hi := m.Params(0), m.Params(1)
	if lo.Density != m.Density.Min || hi.Density != m.Density.Max {
		t.Fatalf("density: got %v..%v, expected %v..%v", lo.Density, hi.Density, m.Density.Min, m.Density.Max)
	}
	if lo.Cutoff != m.Cutoff.Min || hi.Cutoff != m.Cutoff.Max {
		t.Fatalf("cutoff: got %v..%v", lo.Cutoff, hi.Cutoff)
	}
	mid := m.Params(0.5)
	if math.Abs(mid.Velocity-0.75) > 1e-12 || math.Abs(mid.Cutoff-1900) > 1e-9 {
		t.Fatalf("midpoint: got %+v", mid)
	}
	if m.Params(7) != hi || m.Params(-2) != lo {
		t.Fatal("energy should be clamped")
	}
	if got := m.Ghost.Map(0.5); math.Abs(got-mid.Ghost) > 1e-12 {
		t.Fatalf("Range.Map and Params disagree: %v vs %v", got, mid.Ghost)
	}
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		energy   float64
		expected numus.Category
	}{
		{0, numus.Silence},
		{0.09, numus.Silence},
		{0.1, numus.Intro},
		{0.29, numus.Intro},
		{0.3, numus.Development},
		{0.6, numus.Peak},
		{0.9, numus.Climax},
		{1, numus.Climax},
	}
	for _, test := range tests {
		if got := numus.CategoryOf(test.energy); got != test.expected {
			t.Errorf("CategoryOf(%v): got %v, expected %v", test.energy, got, test.expected)
		}
	}
	if numus.Peak.String() != "peak" || numus.Category(9).String() != "unknown" {
		t.Fatal("wrong category names")
	}
}
