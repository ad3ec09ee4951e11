package numus_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/tsb/numus"
	"gopkg.in/yaml.v3"
)

func TestInterpolateBoundaries(t *testing.T) {
	for k := numus.Linear; k < numus.NumCurveKinds; k++ {
		if got := numus.Interpolate(0, k); math.Abs(got) > 1e-12 {
			t.Errorf("%v: Interpolate(0) = %v, expected 0", k, got)
		}
		if got := numus.Interpolate(1, k); math.Abs(got-1) > 1e-12 {
			t.Errorf("%v: Interpolate(1) = %v, expected 1", k, got)
		}
		prev := 0.0
		for i := 0; i <= 100; i++ {
			v := numus.Interpolate(float64(i)/100, k)
			if v < prev-1e-12 || v < 0 || v > 1 {
				t.Fatalf("%v: not monotonic in [0,1] at %v: %v", k, float64(i)/100, v)
			}
			prev = v
		}
		for _, p := range []float64{-3, 1.5, math.Inf(1), math.Inf(-1), math.NaN()} {
			v := numus.Interpolate(p, k)
			if !(v >= 0 && v <= 1) {
				t.Errorf("%v: Interpolate(%v) = %v outside [0,1]", k, p, v)
			}
		}
	}
}

func TestInterpolateShapes(t *testing.T) {
	tests := []struct {
		kind     numus.CurveKind
		progress float64
		expected float64
	}{
		{numus.Linear, 0.25, 0.25},
		{numus.Exponential, 0.5, 0.25},
		{numus.Cubic, 0.5, 0.125},
		{numus.Sine, 0.5, math.Sqrt2 / 2},
		{numus.Logistic, 0.5, 0.5},
		{numus.CurveKind(42), 0.3, 0.3},
	}
	for _, test := range tests {
		if got := numus.Interpolate(test.progress, test.kind); math.Abs(got-test.expected) > 1e-9 {
			t.Errorf("Interpolate(%v, %v): got %v, expected %v", test.progress, test.kind, got, test.expected)
		}
	}
	if got := numus.Lerp(30, 40, 0.5, numus.Linear); got != 35 {
		t.Errorf("Lerp: got %v, expected 35", got)
	}
	if got := numus.Lerp(1, 0, 0.5, numus.Exponential); got != 0.75 {
		t.Errorf("Lerp: got %v, expected 0.75", got)
	}
}

func TestCurveKindText(t *testing.T) {
	for k := numus.Linear; k < numus.NumCurveKinds; k++ {
		parsed, err := numus.ParseCurveKind(k.String())
		if err != nil || parsed != k {
			t.Fatalf("ParseCurveKind(%v) failed: %v, %v", k.String(), parsed, err)
		}
	}
	if k, err := numus.ParseCurveKind(" Sine "); err != nil || k != numus.Sine {
		t.Fatalf("ParseCurveKind should ignore case and spaces, got %v, %v", k, err)
	}
	if _, err := numus.ParseCurveKind("wobble"); err == nil {
		t.Fatal("ParseCurveKind should fail on an unknown kind")
	}
	var seg numus.Segment
	if err := yaml.Unmarshal([]byte("{start: 0, end: 4, curve: logistic}"), &seg); err != nil {
		t.Fatalf("yaml.Unmarshal failed: %v", err)
	}
	if seg.Curve != numus.Logistic {
		t.Fatalf("got curve %v, expected logistic", seg.Curve)
	}
	b, err := json.Marshal(numus.Segment{End: 1, Curve: numus.Cubic})
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}
	if err := json.Unmarshal(b, &seg); err != nil || seg.Curve != numus.Cubic {
		t.Fatalf("json round trip: got %v, %v", seg.Curve, err)
	}
}
