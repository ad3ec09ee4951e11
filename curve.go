package numus

import (
	"fmt"
	"math"
	"strings"
)

// CurveKind selects the shape used to interpolate between two values. The
// zero value is Linear.
type CurveKind int

const (
	Linear      CurveKind = iota // identity
	Exponential                  // progress^2, ease-in
	Logistic                     // normalized sigmoid, slow-fast-slow
	Sine                         // sin(progress*pi/2), ease-out
	Cubic                        // progress^3, steeper ease-in
	NumCurveKinds
)

// LogisticSteepness is the k in 1/(1+e^(-k(p-0.5))).
const LogisticSteepness = 10.0

var curveKindNames = [NumCurveKinds]string{"linear", "exponential", "logistic", "sine", "cubic"}

var (
	logisticLow  = sigmoid(-LogisticSteepness / 2)
	logisticHigh = sigmoid(LogisticSteepness / 2)
)

// Interpolate maps progress in [0,1] to a shaped value in [0,1]. Progress
// outside [0,1] is clamped first and the result is clamped again, so
// Interpolate(0, k) == 0 and Interpolate(1, k) == 1 for every kind.
// Unknown kinds behave as Linear.
func Interpolate(progress float64, kind CurveKind) float64 {
	p := clamp01(progress)
	var ret float64
	switch kind {
	case Exponential:
		ret = p * p
	case Logistic:
		ret = (sigmoid(LogisticSteepness*(p-0.5)) - logisticLow) / (logisticHigh - logisticLow)
	case Sine:
		ret = math.Sin(p * math.Pi / 2)
	case Cubic:
		ret = p * p * p
	default:
		ret = p
	}
	return clamp01(ret)
}

// Lerp blends from start to end with the shaped progress.
func Lerp(start, end, progress float64, kind CurveKind) float64 {
	return start + (end-start)*Interpolate(progress, kind)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// clamp01 clamps to [0,1]; NaN maps to 0.
func clamp01(x float64) float64 {
	if !(x > 0) {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func (k CurveKind) String() string {
	if k < 0 || k >= NumCurveKinds {
		return fmt.Sprintf("CurveKind(%d)", int(k))
	}
	return curveKindNames[k]
}

// ParseCurveKind parses the name of a curve kind, case-insensitively. The
// empty string parses as Linear.
func ParseCurveKind(s string) (CurveKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Linear, nil
	}
	for i, n := range curveKindNames {
		if n == s {
			return CurveKind(i), nil
		}
	}
	return Linear, fmt.Errorf("unknown curve kind %q", s)
}

// MarshalText implements encoding.TextMarshaler, so curve kinds appear by name
// in both .yml and .json performance files.
func (k CurveKind) MarshalText() ([]byte, error) {
	if k < 0 || k >= NumCurveKinds {
		return nil, fmt.Errorf("cannot marshal invalid curve kind %d", int(k))
	}
	return []byte(curveKindNames[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *CurveKind) UnmarshalText(text []byte) error {
	v, err := ParseCurveKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
